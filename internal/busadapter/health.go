package busadapter

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// Health is the adapter's self-reported state, served on the admin
// /healthz endpoint so operators can tell a broker outage apart from a
// starved host.
type Health struct {
	Connected   bool      `json:"connected"`
	Endpoint    string    `json:"endpoint"`
	QueueDepth  int       `json:"queue_depth"`
	QueueCap    int       `json:"queue_capacity"`
	CPUPercent  float64   `json:"cpu_percent"`
	MemPercent  float64   `json:"mem_percent"`
	Load1       float64   `json:"load_1m"`
	CollectedAt time.Time `json:"collected_at"`
}

// Health snapshots connection state plus host CPU/memory/load. Gauge
// collection failures leave the affected fields zero rather than failing
// the probe.
func (b *BusAdapter) Health() Health {
	h := Health{
		Connected:   b.client != nil && b.client.IsConnected(),
		Endpoint:    b.cfg.Endpoint,
		QueueDepth:  len(b.messages),
		QueueCap:    cap(b.messages),
		CollectedAt: time.Now().UTC(),
	}

	if cpuPercent, err := cpu.Percent(0, false); err == nil && len(cpuPercent) > 0 {
		h.CPUPercent = cpuPercent[0]
	}
	if memInfo, err := mem.VirtualMemory(); err == nil && memInfo != nil {
		h.MemPercent = memInfo.UsedPercent
	}
	if loadAvg, err := load.Avg(); err == nil && loadAvg != nil {
		h.Load1 = loadAvg.Load1
	}

	return h
}

// HealthHandler serves the Health snapshot as JSON. Status is 200 while
// the broker connection is up, 503 otherwise.
func (b *BusAdapter) HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := b.Health()
		w.Header().Set("Content-Type", "application/json")
		if !h.Connected {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(h)
	})
}
