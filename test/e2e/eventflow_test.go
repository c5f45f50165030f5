// Package e2e exercises cross-package flows over real HTTP: the flow
// emitter posting to the event-log store's ingest endpoint, and the
// query/stats surface operators read back.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/telehealth/core/internal/config"
	"github.com/telehealth/core/internal/eventlogstore"
	"github.com/telehealth/core/internal/flowevent"
	"github.com/telehealth/core/internal/model"
)

type queryResponse struct {
	Events     []model.EventLogRecord `json:"events"`
	Pagination struct {
		Page  int `json:"page"`
		Limit int `json:"limit"`
		Total int `json:"total"`
		Pages int `json:"pages"`
	} `json:"pagination"`
}

func startEventLog(t *testing.T) (*eventlogstore.Store, *httptest.Server) {
	t.Helper()
	logStore := eventlogstore.New(eventlogstore.Config{RetentionDays: 30})
	mux := http.NewServeMux()
	eventlogstore.NewServer(logStore, slog.New(slog.DiscardHandler)).Routes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return logStore, ts
}

func TestEmitterDeliversFlowEventsToEventLogOverHTTP(t *testing.T) {
	logStore, ts := startEventLog(t)

	emitter := flowevent.NewEmitter(config.EmitterConfig{
		QueueCapacity: 64,
		PostTimeout:   2 * time.Second,
		IngestURL:     ts.URL,
	}, config.PersistConfig{
		RetryBudget:    1,
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  time.Millisecond,
	}, "pipeline.watch", slog.New(slog.DiscardHandler))

	emitter.Start()
	for i := 0; i < 5; i++ {
		emitter.Emit(model.FlowEvent{
			Step: model.StepReceived, Status: model.FlowSuccess,
			DeviceFamily: model.FamilyWatch, Topic: "iMEDE_watch/VitalSign",
		})
	}
	emitter.Emit(model.FlowEvent{
		Step: model.StepDecoded, Status: model.FlowError,
		DeviceFamily: model.FamilyWatch, Topic: "iMEDE_watch/AP55",
		ErrorKind: "batch_count_mismatch", ErrorMessage: "num_datas does not match data length",
	})
	// Stop drains the queue before returning, so every emitted event has
	// been posted once it completes.
	emitter.Stop()

	recent := logStore.RecentFlowEvents(50)
	if len(recent) != 6 {
		t.Fatalf("stored events = %d, want 6", len(recent))
	}

	resp, err := http.Get(fmt.Sprintf("%s/api/event-log?status=error&limit=10", ts.URL))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("query status = %d", resp.StatusCode)
	}

	var page queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		t.Fatalf("decode query response: %v", err)
	}
	if page.Pagination.Total != 1 {
		t.Fatalf("error events = %d, want 1", page.Pagination.Total)
	}
	got := page.Events[0]
	if got.Source != "pipeline.watch" {
		t.Errorf("source = %q, want pipeline.watch", got.Source)
	}
	if got.ErrorKind != "batch_count_mismatch" {
		t.Errorf("error_kind = %q", got.ErrorKind)
	}
	if got.ServerTimestamp.IsZero() {
		t.Error("server_timestamp not stamped on arrival")
	}
}

func TestEventLogStatsAggregateBySourceAndStatus(t *testing.T) {
	_, ts := startEventLog(t)

	post := func(source string, status model.FlowStatus) {
		record := model.EventLogRecord{
			FlowEvent: model.FlowEvent{
				Step: model.StepPersisted, Status: status,
				DeviceFamily: model.FamilyGatewayBox, Topic: "dusun_pub",
				Timestamp: time.Now().UTC(),
			},
			Source: source,
		}
		body, _ := json.Marshal(record)
		resp, err := http.Post(ts.URL+"/api/event-log", "application/json", jsonReader(body))
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("ingest status = %d, want 202", resp.StatusCode)
		}
	}

	post("pipeline.gatewaybox", model.FlowSuccess)
	post("pipeline.gatewaybox", model.FlowSuccess)
	post("pipeline.kiosk", model.FlowError)

	resp, err := http.Get(ts.URL + "/api/event-log/stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	defer resp.Body.Close()

	var stats struct {
		Total24h int `json:"total_24h"`
		Sources  []struct {
			ID    string `json:"_id"`
			Count int    `json:"count"`
		} `json:"sources"`
		Statuses []struct {
			ID    string `json:"_id"`
			Count int    `json:"count"`
		} `json:"statuses"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Total24h != 3 {
		t.Errorf("total_24h = %d, want 3", stats.Total24h)
	}

	counts := map[string]int{}
	for _, s := range stats.Sources {
		counts[s.ID] = s.Count
	}
	if counts["pipeline.gatewaybox"] != 2 || counts["pipeline.kiosk"] != 1 {
		t.Errorf("source counts = %v", counts)
	}
}

func TestMalformedIngestRejectedWith400(t *testing.T) {
	_, ts := startEventLog(t)

	resp, err := http.Post(ts.URL+"/api/event-log", "application/json", jsonReader([]byte(`{"step":`)))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func jsonReader(b []byte) *bytes.Reader {
	return bytes.NewReader(b)
}
