package eventlogstore

import (
	"testing"
	"time"

	"github.com/telehealth/core/internal/model"
)

func record(step model.FlowStep, status model.FlowStatus, family model.DeviceFamily, ts time.Time) *model.EventLogRecord {
	return &model.EventLogRecord{
		FlowEvent: model.FlowEvent{
			Step:         step,
			Status:       status,
			DeviceFamily: family,
			Timestamp:    ts,
		},
		Source:          "gateway-pipeline",
		ServerTimestamp: ts,
	}
}

func TestStoreInsertAssignsID(t *testing.T) {
	s := New(Config{})
	r := record(model.StepReceived, model.FlowSuccess, model.FamilyGatewayBox, time.Now())
	s.Insert(r)

	if r.ID == "" {
		t.Fatal("expected Insert to assign an ID")
	}
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}
}

func TestStoreQueryFiltersAndPaginates(t *testing.T) {
	s := New(Config{PageLimit: 2})
	now := time.Now().UTC()

	s.Insert(record(model.StepReceived, model.FlowSuccess, model.FamilyGatewayBox, now.Add(-3*time.Minute)))
	s.Insert(record(model.StepDecoded, model.FlowError, model.FamilyGatewayBox, now.Add(-2*time.Minute)))
	s.Insert(record(model.StepPersisted, model.FlowSuccess, model.FamilyWatch, now.Add(-1*time.Minute)))

	page := s.Query(Filters{DeviceFamily: model.FamilyGatewayBox})
	if page.Total != 2 {
		t.Fatalf("Total = %d, want 2", page.Total)
	}
	if len(page.Events) != 2 {
		t.Fatalf("len(Events) = %d, want 2 (page limit)", len(page.Events))
	}
	// newest first
	if page.Events[0].Step != model.StepDecoded {
		t.Fatalf("Events[0].Step = %s, want %s (newest first)", page.Events[0].Step, model.StepDecoded)
	}

	errPage := s.Query(Filters{Status: model.FlowError})
	if errPage.Total != 1 {
		t.Fatalf("error-filtered Total = %d, want 1", errPage.Total)
	}
}

func TestStoreQueryPaginationSecondPage(t *testing.T) {
	s := New(Config{PageLimit: 1})
	now := time.Now().UTC()
	s.Insert(record(model.StepReceived, model.FlowSuccess, model.FamilyWatch, now.Add(-2*time.Minute)))
	s.Insert(record(model.StepDecoded, model.FlowSuccess, model.FamilyWatch, now.Add(-1*time.Minute)))

	page := s.Query(Filters{Page: 2, Limit: 1})
	if len(page.Events) != 1 {
		t.Fatalf("len(Events) = %d, want 1", len(page.Events))
	}
	if page.TotalPages != 2 {
		t.Fatalf("TotalPages = %d, want 2", page.TotalPages)
	}
	if page.Events[0].Step != model.StepReceived {
		t.Fatalf("second page event = %s, want the oldest record", page.Events[0].Step)
	}
}

func TestStoreAggregatesLast24h(t *testing.T) {
	s := New(Config{})
	now := time.Now().UTC()

	s.Insert(record(model.StepReceived, model.FlowSuccess, model.FamilyGatewayBox, now.Add(-1*time.Hour)))
	s.Insert(record(model.StepReceived, model.FlowError, model.FamilyWatch, now.Add(-25*time.Hour)))

	stats := s.Aggregates()
	if stats.Total24h != 1 {
		t.Fatalf("Total24h = %d, want 1", stats.Total24h)
	}
}

func TestStoreAggregateStatsImplementsFlowEventSource(t *testing.T) {
	s := New(Config{})
	now := time.Now().UTC()
	s.Insert(record(model.StepReceived, model.FlowSuccess, model.FamilyGatewayBox, now))
	s.Insert(record(model.StepReceived, model.FlowError, model.FamilyWatch, now.Add(-48*time.Hour)))

	stats := s.AggregateStats(time.Hour)
	if stats.CountsByFamily[model.FamilyGatewayBox] != 1 {
		t.Fatalf("CountsByFamily[gateway] = %d, want 1", stats.CountsByFamily[model.FamilyGatewayBox])
	}
	if _, ok := stats.CountsByFamily[model.FamilyWatch]; ok {
		t.Fatal("expected stale watch record to fall outside the 1h window")
	}
}

func TestStoreRecentFlowEventsNewestFirst(t *testing.T) {
	s := New(Config{})
	now := time.Now().UTC()
	s.Insert(record(model.StepReceived, model.FlowSuccess, model.FamilyGatewayBox, now.Add(-2*time.Minute)))
	s.Insert(record(model.StepPersisted, model.FlowSuccess, model.FamilyGatewayBox, now.Add(-1*time.Minute)))

	events := s.RecentFlowEvents(1)
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	if events[0].Step != model.StepPersisted {
		t.Fatalf("events[0].Step = %s, want most recent", events[0].Step)
	}
}

func TestStoreSweepRemovesExpiredRecords(t *testing.T) {
	s := New(Config{RetentionDays: 30})
	now := time.Now().UTC()

	s.Insert(record(model.StepReceived, model.FlowSuccess, model.FamilyGatewayBox, now.AddDate(0, 0, -40)))
	s.Insert(record(model.StepReceived, model.FlowSuccess, model.FamilyGatewayBox, now.AddDate(0, 0, -1)))

	removed := s.Sweep(now)
	if removed != 1 {
		t.Fatalf("Sweep removed %d, want 1", removed)
	}
	if s.Len() != 1 {
		t.Fatalf("Len() after sweep = %d, want 1", s.Len())
	}
}
