// Package config holds process-wide configuration for the telehealth core:
// the bus adapter, the document store, the fanout hub, the flow emitter,
// and the event-log store. A single Config is assembled once at startup
// and passed down to every component explicitly (no package-level globals).
package config

import "time"

// Default configuration constants for every recognized option.
const (
	DefaultInFlightPerPipeline = 4
	DefaultPersistRetryBudget  = 3

	DefaultFanoutOutboundBuffer = 256
	DefaultEmitterQueueCapacity = 1024

	DefaultEventLogRetentionDays = 30
	DefaultEventLogPageLimitMax  = 500
	DefaultEventLogPageLimit     = 50

	DefaultBusQoS             = 1 // at-least-once
	DefaultBusKeepalive       = 60 * time.Second
	DefaultBusReconnectMin    = 1 * time.Second
	DefaultBusReconnectMax    = 30 * time.Second
	DefaultBusReconnectJitter = 0.5

	DefaultStoreTimeout     = 5 * time.Second
	DefaultEmitterTimeout   = 5 * time.Second
	DefaultShutdownFlush    = 2 * time.Second
	DefaultShutdownDrain    = 5 * time.Second
	DefaultPersistAbandonAt = 10 * time.Second

	DefaultFanoutPingInterval   = 30 * time.Second
	DefaultFanoutPongTolerance  = 2
	DefaultFanoutMaxFrameBytes  = 64 * 1024
	DefaultInitialFlowEventsCap = 50

	DefaultRetryBaseDelay = 100 * time.Millisecond
	DefaultRetryMaxDelay  = 1600 * time.Millisecond
)

// BusConfig configures the pub/sub Bus Adapter.
type BusConfig struct {
	Endpoint        string
	ClientID        string
	Username        string
	Password        string
	QoS             byte
	Keepalive       time.Duration
	ReconnectMin    time.Duration
	ReconnectMax    time.Duration
	ReconnectJitter float64
}

// StoreConfig configures the document-store connection.
type StoreConfig struct {
	URI          string
	Database     string
	TLSCAFile    string
	TLSClientCrt string
	TLSEnabled   bool
	Timeout      time.Duration
}

// FanoutConfig configures the WebSocket fanout hub.
type FanoutConfig struct {
	OutboundBuffer    int
	PingInterval      time.Duration
	PongTolerance     int
	MaxFrameBytes     int64
	IdentityIssuerURL string // external identity service, token validation only
}

// EmitterConfig configures the flow-event emitter. IngestToken is sent
// as a bearer header when the event-log API runs behind authentication.
type EmitterConfig struct {
	QueueCapacity int
	PostTimeout   time.Duration
	IngestURL     string
	IngestToken   string
}

// EventLogConfig configures the Event-Log Store.
type EventLogConfig struct {
	RetentionDays int
	PageLimitMax  int
	PageLimit     int
	ListenAddr    string
}

// PersistConfig configures the Persister's retry behavior.
type PersistConfig struct {
	RetryBudget    int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	AbandonAfter   time.Duration
}

// Config is the top-level, explicitly-injected configuration object.
// It is constructed once in cmd/core/main.go and passed to every
// component constructor; there are no hidden package-level singletons.
type Config struct {
	Bus      BusConfig
	Store    StoreConfig
	Fanout   FanoutConfig
	Emitter  EmitterConfig
	EventLog EventLogConfig
	Persist  PersistConfig

	DefaultHospitalID   string
	InFlightPerPipeline int
}

// DefaultConfig returns a Config with every default from applied.
func DefaultConfig() *Config {
	return &Config{
		Bus: BusConfig{
			QoS:             DefaultBusQoS,
			Keepalive:       DefaultBusKeepalive,
			ReconnectMin:    DefaultBusReconnectMin,
			ReconnectMax:    DefaultBusReconnectMax,
			ReconnectJitter: DefaultBusReconnectJitter,
		},
		Store: StoreConfig{
			Timeout: DefaultStoreTimeout,
		},
		Fanout: FanoutConfig{
			OutboundBuffer: DefaultFanoutOutboundBuffer,
			PingInterval:   DefaultFanoutPingInterval,
			PongTolerance:  DefaultFanoutPongTolerance,
			MaxFrameBytes:  DefaultFanoutMaxFrameBytes,
		},
		Emitter: EmitterConfig{
			QueueCapacity: DefaultEmitterQueueCapacity,
			PostTimeout:   DefaultEmitterTimeout,
		},
		EventLog: EventLogConfig{
			RetentionDays: DefaultEventLogRetentionDays,
			PageLimitMax:  DefaultEventLogPageLimitMax,
			PageLimit:     DefaultEventLogPageLimit,
		},
		Persist: PersistConfig{
			RetryBudget:    DefaultPersistRetryBudget,
			RetryBaseDelay: DefaultRetryBaseDelay,
			RetryMaxDelay:  DefaultRetryMaxDelay,
			AbandonAfter:   DefaultPersistAbandonAt,
		},
		InFlightPerPipeline: DefaultInFlightPerPipeline,
	}
}

// WithDefaults returns a copy of c with zero-valued fields replaced by
// defaults.
func (c Config) WithDefaults() Config {
	result := c
	if result.InFlightPerPipeline <= 0 {
		result.InFlightPerPipeline = DefaultInFlightPerPipeline
	}
	if result.Store.Timeout <= 0 {
		result.Store.Timeout = DefaultStoreTimeout
	}
	if result.Bus.QoS == 0 {
		result.Bus.QoS = DefaultBusQoS
	}
	if result.Bus.Keepalive <= 0 {
		result.Bus.Keepalive = DefaultBusKeepalive
	}
	if result.Bus.ReconnectMin <= 0 {
		result.Bus.ReconnectMin = DefaultBusReconnectMin
	}
	if result.Bus.ReconnectMax <= 0 {
		result.Bus.ReconnectMax = DefaultBusReconnectMax
	}
	if result.Bus.ReconnectJitter <= 0 {
		result.Bus.ReconnectJitter = DefaultBusReconnectJitter
	}
	if result.Persist.RetryBudget <= 0 {
		result.Persist.RetryBudget = DefaultPersistRetryBudget
	}
	if result.Persist.RetryBaseDelay <= 0 {
		result.Persist.RetryBaseDelay = DefaultRetryBaseDelay
	}
	if result.Persist.RetryMaxDelay <= 0 {
		result.Persist.RetryMaxDelay = DefaultRetryMaxDelay
	}
	if result.Persist.AbandonAfter <= 0 {
		result.Persist.AbandonAfter = DefaultPersistAbandonAt
	}
	if result.Fanout.OutboundBuffer <= 0 {
		result.Fanout.OutboundBuffer = DefaultFanoutOutboundBuffer
	}
	if result.Fanout.PingInterval <= 0 {
		result.Fanout.PingInterval = DefaultFanoutPingInterval
	}
	if result.Fanout.PongTolerance <= 0 {
		result.Fanout.PongTolerance = DefaultFanoutPongTolerance
	}
	if result.Fanout.MaxFrameBytes <= 0 {
		result.Fanout.MaxFrameBytes = DefaultFanoutMaxFrameBytes
	}
	if result.Emitter.QueueCapacity <= 0 {
		result.Emitter.QueueCapacity = DefaultEmitterQueueCapacity
	}
	if result.Emitter.PostTimeout <= 0 {
		result.Emitter.PostTimeout = DefaultEmitterTimeout
	}
	if result.EventLog.RetentionDays <= 0 {
		result.EventLog.RetentionDays = DefaultEventLogRetentionDays
	}
	if result.EventLog.PageLimitMax <= 0 {
		result.EventLog.PageLimitMax = DefaultEventLogPageLimitMax
	}
	if result.EventLog.PageLimit <= 0 {
		result.EventLog.PageLimit = DefaultEventLogPageLimit
	}
	if result.DefaultHospitalID == "" {
		result.DefaultHospitalID = "UNKNOWN_HOSPITAL"
	}
	return result
}
