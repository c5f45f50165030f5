// Command mockbus publishes synthetic device telemetry to an MQTT broker
// at a configurable rate, for local development against a running core.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/telehealth/core/internal/mockbus"
)

func main() {
	endpoint := flag.String("bus-endpoint", "tcp://127.0.0.1:1883", "MQTT broker endpoint")
	clientID := flag.String("bus-client-id", "telehealth-mockbus", "MQTT client ID")
	rate := flag.Float64("rate", 2.0, "Frames per second")
	count := flag.Int("count", 0, "Stop after this many frames (0 = run until interrupted)")
	gatewayMAC := flag.String("gateway-mac", "", "Gateway MAC the fleet reports")
	subDeviceMAC := flag.String("sub-device-mac", "", "BLE sub-device MAC the fleet reports")
	imei := flag.String("imei", "", "Watch IMEI the fleet reports")
	citizenID := flag.String("citizen-id", "", "Citizen ID the kiosk reports")
	errorRate := flag.Float64("error-rate", 0.0, "Fraction of frames emitted as malformed JSON")
	emergencyRate := flag.Float64("emergency-rate", 0.0, "Fraction of frames emitted as SOS events")
	seed := flag.Int64("seed", 1, "Generator seed (same seed, same frame sequence)")
	flag.Parse()

	if *rate <= 0 {
		fmt.Fprintln(os.Stderr, "rate must be positive")
		os.Exit(1)
	}

	opts := mqtt.NewClientOptions().
		AddBroker(*endpoint).
		SetClientID(*clientID).
		SetAutoReconnect(true)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); !token.WaitTimeout(10*time.Second) || token.Error() != nil {
		fmt.Fprintf(os.Stderr, "broker connect failed: %v\n", token.Error())
		os.Exit(1)
	}
	defer client.Disconnect(250)

	gen := mockbus.New(mockbus.Options{
		GatewayMAC:    *gatewayMAC,
		SubDeviceMAC:  *subDeviceMAC,
		IMEI:          *imei,
		CitizenID:     *citizenID,
		ErrorRate:     *errorRate,
		EmergencyRate: *emergencyRate,
		Seed:          *seed,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Duration(float64(time.Second) / *rate))
	defer ticker.Stop()

	var published int
	for {
		select {
		case <-sigChan:
			fmt.Printf("\npublished %d frames\n", published)
			return
		case <-ticker.C:
			frame := gen.Next(time.Now().UTC())
			token := client.Publish(frame.Topic, 1, false, frame.Payload)
			if token.WaitTimeout(5*time.Second) && token.Error() != nil {
				fmt.Fprintf(os.Stderr, "publish to %s failed: %v\n", frame.Topic, token.Error())
				continue
			}
			published++
			if *count > 0 && published >= *count {
				fmt.Printf("published %d frames\n", published)
				return
			}
		}
	}
}
