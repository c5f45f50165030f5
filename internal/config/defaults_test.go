package config

import (
	"testing"
	"time"
)

func TestWithDefaultsBackfillsZeroValues(t *testing.T) {
	cfg := Config{}.WithDefaults()

	if cfg.InFlightPerPipeline != DefaultInFlightPerPipeline {
		t.Errorf("InFlightPerPipeline = %d", cfg.InFlightPerPipeline)
	}
	if cfg.Persist.RetryBudget != DefaultPersistRetryBudget {
		t.Errorf("RetryBudget = %d", cfg.Persist.RetryBudget)
	}
	if cfg.Store.Timeout != DefaultStoreTimeout {
		t.Errorf("Store.Timeout = %v", cfg.Store.Timeout)
	}
	if cfg.Bus.ReconnectMin != DefaultBusReconnectMin || cfg.Bus.ReconnectMax != DefaultBusReconnectMax {
		t.Errorf("Bus reconnect = %v/%v", cfg.Bus.ReconnectMin, cfg.Bus.ReconnectMax)
	}
	if cfg.Fanout.OutboundBuffer != DefaultFanoutOutboundBuffer {
		t.Errorf("OutboundBuffer = %d", cfg.Fanout.OutboundBuffer)
	}
	if cfg.EventLog.RetentionDays != DefaultEventLogRetentionDays {
		t.Errorf("RetentionDays = %d", cfg.EventLog.RetentionDays)
	}
	if cfg.DefaultHospitalID == "" {
		t.Error("DefaultHospitalID not backfilled")
	}
}

func TestWithDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := Config{
		InFlightPerPipeline: 8,
		DefaultHospitalID:   "H42",
	}
	cfg.Store.Timeout = 2 * time.Second
	cfg = cfg.WithDefaults()

	if cfg.InFlightPerPipeline != 8 {
		t.Errorf("InFlightPerPipeline = %d, want 8", cfg.InFlightPerPipeline)
	}
	if cfg.DefaultHospitalID != "H42" {
		t.Errorf("DefaultHospitalID = %s", cfg.DefaultHospitalID)
	}
	if cfg.Store.Timeout != 2*time.Second {
		t.Errorf("Store.Timeout = %v", cfg.Store.Timeout)
	}
}
