package busadapter

import (
	"log/slog"
	"math/rand"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/telehealth/core/internal/config"
)

// defaultQueueCapacity bounds the inbound channel; once full, the MQTT
// message callback blocks, which is the back pressure the adapter is
// meant to apply to the broker.
const defaultQueueCapacity = 512

// BusAdapter subscribes to the closed device topic set and yields a
// back-pressured stream of InboundMessage. Reconnect uses a capped,
// jittered backoff state machine behind the usual stopCh/stoppedCh
// goroutine lifecycle.
type BusAdapter struct {
	cfg         config.BusConfig
	newClient   func(*mqtt.ClientOptions) mqtt.Client
	client      mqtt.Client
	messages    chan InboundMessage
	onReconnect func()
	logger      *slog.Logger

	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// New builds a BusAdapter. It does not connect until Start is called.
func New(cfg config.BusConfig, logger *slog.Logger) *BusAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &BusAdapter{
		cfg:       cfg,
		newClient: mqtt.NewClient,
		messages:  make(chan InboundMessage, defaultQueueCapacity),
		logger:    logger,
	}
}

// Messages is the lazy, non-restartable stream of inbound broker
// deliveries. It stays open across reconnects and is
// closed only after Stop completes.
func (b *BusAdapter) Messages() <-chan InboundMessage {
	return b.messages
}

// Start begins connecting in the background and returns immediately; the
// first and every subsequent connection attempt run through the same
// backoff loop, so callers do not need to distinguish "first connect"
// from "reconnect".
func (b *BusAdapter) Start() {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return
	}
	b.running = true
	b.stopCh = make(chan struct{})
	b.stoppedCh = make(chan struct{})
	b.mu.Unlock()

	opts := mqtt.NewClientOptions().
		AddBroker(b.cfg.Endpoint).
		SetClientID(b.cfg.ClientID).
		SetUsername(b.cfg.Username).
		SetPassword(b.cfg.Password).
		SetKeepAlive(b.cfg.Keepalive).
		SetAutoReconnect(false).
		SetCleanSession(false)
	opts.SetOnConnectHandler(b.onConnect)
	opts.SetConnectionLostHandler(b.onConnectionLost)

	b.client = b.newClient(opts)

	go b.run()
}

func (b *BusAdapter) run() {
	defer close(b.stoppedCh)
	b.connectLoop()
	<-b.stopCh
}

// connectLoop retries Connect with exponential backoff (start 1s, cap
// 30s, jitter <=50%) until it succeeds or Stop is called.
// It is re-entered from onConnectionLost on every subsequent drop.
func (b *BusAdapter) connectLoop() {
	backoff := b.cfg.ReconnectMin
	if backoff <= 0 {
		backoff = config.DefaultBusReconnectMin
	}
	maxBackoff := b.cfg.ReconnectMax
	if maxBackoff <= 0 {
		maxBackoff = config.DefaultBusReconnectMax
	}

	for {
		select {
		case <-b.stopCh:
			return
		default:
		}

		token := b.client.Connect()
		if token.WaitTimeout(10*time.Second) && token.Error() == nil {
			b.logger.Info("bus adapter connected", "endpoint", b.cfg.Endpoint)
			return
		}
		b.logger.Warn("bus adapter connect failed, retrying", "endpoint", b.cfg.Endpoint, "backoff", backoff, "error", token.Error())

		select {
		case <-b.stopCh:
			return
		case <-time.After(withJitter(backoff, b.cfg.ReconnectJitter)):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func withJitter(d time.Duration, frac float64) time.Duration {
	if frac <= 0 {
		return d
	}
	delta := float64(d) * frac
	offset := (rand.Float64()*2 - 1) * delta
	jittered := float64(d) + offset
	if jittered < 0 {
		return 0
	}
	return time.Duration(jittered)
}

// onConnect subscribes to the closed topic set on every successful
// connect, including reconnects, since paho drops subscriptions across
// a session loss.
func (b *BusAdapter) onConnect(client mqtt.Client) {
	for _, topic := range Topics {
		topic := topic
		token := client.Subscribe(topic, b.cfg.QoS, b.onMessage)
		go func() {
			if !token.WaitTimeout(10 * time.Second) {
				b.logger.Warn("bus adapter subscribe timed out", "topic", topic)
				return
			}
			if err := token.Error(); err != nil {
				b.logger.Warn("bus adapter subscribe failed", "topic", topic, "error", err)
			}
		}()
	}
}

// SetOnReconnect installs a hook invoked once per connection loss, used
// for the reconnect counters. Call before Start; not synchronized.
func (b *BusAdapter) SetOnReconnect(fn func()) {
	b.onReconnect = fn
}

// onConnectionLost is called by paho off its own goroutine; it must not
// block, so reconnection is handed off to a fresh connectLoop goroutine.
func (b *BusAdapter) onConnectionLost(client mqtt.Client, err error) {
	b.logger.Warn("bus adapter connection lost", "error", err)
	if b.onReconnect != nil {
		b.onReconnect()
	}
	go b.connectLoop()
}

// onMessage enqueues a delivery, blocking if the channel is full. This
// blocking is the adapter's back-pressure contract: every topic shares
// this one channel, so a slow pipeline holds up deliveries for all topics
// rather than dropping them.
func (b *BusAdapter) onMessage(client mqtt.Client, msg mqtt.Message) {
	inbound := InboundMessage{
		Topic:      msg.Topic(),
		Payload:    msg.Payload(),
		ReceivedAt: time.Now().UTC(),
	}
	select {
	case b.messages <- inbound:
	case <-b.stopCh:
	}
}

// Stop disconnects from the broker and waits for the connect loop to
// exit before returning; safe to call multiple times.
func (b *BusAdapter) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.running = false
	close(b.stopCh)
	stoppedCh := b.stoppedCh
	b.mu.Unlock()

	if b.client != nil && b.client.IsConnected() {
		b.client.Disconnect(250)
	}

	<-stoppedCh
	close(b.messages)
}

// IsRunning reports whether Start has been called without a matching Stop.
func (b *BusAdapter) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}
