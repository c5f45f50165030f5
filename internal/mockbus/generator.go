// Package mockbus generates synthetic device payloads in the wire shapes
// the three families publish, for local development and integration
// tests. A Generator walks a fixed rotation of payload kinds and can
// inject malformed frames at a configured rate to exercise the decode
// error path.
package mockbus

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"
)

// Options selects the device identities the generated fleet reports.
// Zero values fall back to stable defaults so a bare Generator works out
// of the box against a seeded database.
type Options struct {
	GatewayMAC   string
	SubDeviceMAC string
	IMEI         string
	CitizenID    string
	KioskMAC     string

	// ErrorRate is the fraction of frames emitted as malformed JSON,
	// in [0,1).
	ErrorRate float64

	// EmergencyRate is the fraction of frames emitted as watch SOS
	// events, in [0,1).
	EmergencyRate float64

	Seed int64
}

func (o Options) withDefaults() Options {
	if o.GatewayMAC == "" {
		o.GatewayMAC = "AA:BB:CC:DD:EE:FF"
	}
	if o.SubDeviceMAC == "" {
		o.SubDeviceMAC = "d616f9641622"
	}
	if o.IMEI == "" {
		o.IMEI = "861265061482607"
	}
	if o.CitizenID == "" {
		o.CitizenID = "1100700000001"
	}
	if o.KioskMAC == "" {
		o.KioskMAC = "11:22:33:44:55:66"
	}
	return o
}

// Generator produces one frame per Next call, rotating through gateway
// blood pressure, watch vitals, watch heartbeat, watch AP55 batch, and
// kiosk glucose shapes.
type Generator struct {
	opts Options
	rng  *rand.Rand
	seq  int
}

// New builds a Generator. The same seed reproduces the same frame
// sequence, including injected errors.
func New(opts Options) *Generator {
	opts = opts.withDefaults()
	return &Generator{
		opts: opts,
		rng:  rand.New(rand.NewSource(opts.Seed)),
	}
}

// Frame is one synthetic bus delivery.
type Frame struct {
	Topic   string
	Payload []byte
}

// Next produces the next frame, stamped with now.
func (g *Generator) Next(now time.Time) Frame {
	g.seq++

	if g.opts.ErrorRate > 0 && g.rng.Float64() < g.opts.ErrorRate {
		return Frame{Topic: "dusun_pub", Payload: []byte(`{"from":"BLE","data":{"attribute"`)}
	}
	if g.opts.EmergencyRate > 0 && g.rng.Float64() < g.opts.EmergencyRate {
		return g.watchSOS(now)
	}

	switch g.seq % 5 {
	case 0:
		return g.gatewayBloodPressure(now)
	case 1:
		return g.watchVitals(now)
	case 2:
		return g.watchHeartbeat(now)
	case 3:
		return g.watchBatch(now)
	default:
		return g.kioskGlucose(now)
	}
}

func (g *Generator) gatewayBloodPressure(now time.Time) Frame {
	payload := map[string]any{
		"from":       "BLE",
		"to":         "CLOUD",
		"time":       now.Unix(),
		"deviceCode": g.opts.GatewayMAC,
		"mac":        g.opts.GatewayMAC,
		"type":       "reportAttribute",
		"device":     "WBP BIOLIGHT",
		"data": map[string]any{
			"attribute": "BP_BIOLIGTH",
			"mac":       g.opts.GatewayMAC,
			"value": map[string]any{
				"device_list": []map[string]any{{
					"scan_time": now.Unix(),
					"ble_addr":  g.opts.SubDeviceMAC,
					"bp_high":   100 + g.rng.Intn(80),
					"bp_low":    60 + g.rng.Intn(40),
					"PR":        55 + g.rng.Intn(50),
				}},
			},
		},
	}
	return Frame{Topic: "dusun_pub", Payload: mustJSON(payload)}
}

func (g *Generator) watchVitals(now time.Time) Frame {
	payload := map[string]any{
		"IMEI":      g.opts.IMEI,
		"heartRate": 55 + g.rng.Intn(60),
		"bloodPressure": map[string]any{
			"bp_sys": 100 + g.rng.Intn(60),
			"bp_dia": 60 + g.rng.Intn(40),
		},
		"spO2":            93 + g.rng.Intn(7),
		"bodyTemperature": 36.0 + g.rng.Float64()*1.5,
		"battery":         20 + g.rng.Intn(80),
		"signalGSM":       1 + g.rng.Intn(4),
		"step":            g.rng.Intn(20000),
		"timeStamps":      now.In(bangkok).Format("02/01/2006 15:04:05"),
	}
	return Frame{Topic: "iMEDE_watch/VitalSign", Payload: mustJSON(payload)}
}

func (g *Generator) watchHeartbeat(now time.Time) Frame {
	payload := map[string]any{
		"IMEI":      g.opts.IMEI,
		"battery":   20 + g.rng.Intn(80),
		"signalGSM": 1 + g.rng.Intn(4),
		"step":      g.rng.Intn(20000),
	}
	return Frame{Topic: "iMEDE_watch/hb", Payload: mustJSON(payload)}
}

func (g *Generator) watchBatch(now time.Time) Frame {
	n := 2 + g.rng.Intn(3)
	samples := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		sampleAt := now.Add(time.Duration(i-n) * time.Minute)
		samples = append(samples, map[string]any{
			"heartRate": 55 + g.rng.Intn(60),
			"bloodPressure": map[string]any{
				"bp_sys": 100 + g.rng.Intn(60),
				"bp_dia": 60 + g.rng.Intn(40),
			},
			"spO2":            93 + g.rng.Intn(7),
			"bodyTemperature": 36.0 + g.rng.Float64()*1.5,
			"timestamp":       sampleAt.Unix(),
		})
	}
	payload := map[string]any{
		"IMEI":      g.opts.IMEI,
		"num_datas": n,
		"data":      samples,
	}
	return Frame{Topic: "iMEDE_watch/AP55", Payload: mustJSON(payload)}
}

func (g *Generator) watchSOS(now time.Time) Frame {
	payload := map[string]any{
		"IMEI": g.opts.IMEI,
		"time": now.Unix(),
		"location": map[string]any{
			"gps": map[string]any{
				"lat":   13.7563 + g.rng.Float64()*0.01,
				"lng":   100.5018 + g.rng.Float64()*0.01,
				"speed": g.rng.Float64() * 5,
			},
		},
	}
	return Frame{Topic: "iMEDE_watch/SOS", Payload: mustJSON(payload)}
}

func (g *Generator) kioskGlucose(now time.Time) Frame {
	payload := map[string]any{
		"mac":  g.opts.KioskMAC,
		"time": now.Unix(),
		"data": map[string]any{
			"attribute":  "CONTOUR",
			"citizen_id": g.opts.CitizenID,
			"value": map[string]any{
				"glucose": 70 + g.rng.Intn(150),
			},
		},
	}
	return Frame{Topic: "CM4_BLE_GW_TX", Payload: mustJSON(payload)}
}

var bangkok = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Bangkok")
	if err != nil {
		return time.FixedZone("Asia/Bangkok", 7*60*60)
	}
	return loc
}()

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("mockbus: marshaling payload: %v", err))
	}
	return b
}
