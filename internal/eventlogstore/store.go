// Package eventlogstore implements the event-log store: a local HTTP
// ingestion endpoint that receives FlowEvents from every pipeline's flow
// emitter, retains them for a bounded window, and serves
// paginated/filtered queries and 24h aggregates to the fanout hub's
// initial_data message and to operator tooling.
//
// The Store is an RWMutex-guarded in-memory slice with insertion-order
// eviction once a size ceiling is hit, not a document-store collection;
// the ingestion endpoint is process-local and the retention window is
// short enough that nothing here needs to survive a restart.
package eventlogstore

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/telehealth/core/internal/fanout"
	"github.com/telehealth/core/internal/model"
)

// maxRecords bounds memory use independent of the time-based retention
// sweep: retention is wall-clock only, but an unbounded ingest burst
// should not grow memory without limit.
const maxRecords = 500_000

// Config configures retention and pagination limits.
type Config struct {
	RetentionDays int
	PageLimitMax  int
	PageLimit     int
}

// Store holds EventLogRecords in arrival order behind a single RWMutex,
// the same coarse-lock discipline the fanout hub uses.
type Store struct {
	cfg Config

	mu      sync.RWMutex
	records []*model.EventLogRecord
}

// New builds an empty Store.
func New(cfg Config) *Store {
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = 50
	}
	if cfg.PageLimitMax <= 0 {
		cfg.PageLimitMax = 500
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}
	return &Store{cfg: cfg}
}

// Insert appends one EventLogRecord (POST /api/event-log),
// assigning it an ID if the caller didn't set one.
func (s *Store) Insert(record *model.EventLogRecord) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, record)
	if len(s.records) > maxRecords {
		overflow := len(s.records) - maxRecords
		s.records = s.records[overflow:]
	}
}

// Filters narrows a Query call (GET /api/event-log).
type Filters struct {
	Source       string
	Status       model.FlowStatus
	Step         model.FlowStep
	DeviceFamily model.DeviceFamily
	Query        string // substring match on error_message/patient_ref
	From         time.Time
	To           time.Time
	Page         int
	Limit        int
}

func (f Filters) matches(r *model.EventLogRecord) bool {
	if f.Source != "" && r.Source != f.Source {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.Step != "" && r.Step != f.Step {
		return false
	}
	if f.DeviceFamily != "" && r.DeviceFamily != f.DeviceFamily {
		return false
	}
	if !f.From.IsZero() && r.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && r.Timestamp.After(f.To) {
		return false
	}
	if f.Query != "" {
		needle := strings.ToLower(f.Query)
		haystack := strings.ToLower(r.ErrorMessage + " " + r.PatientRef)
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}

// Page is the paginated query result.
type Page struct {
	Events     []*model.EventLogRecord
	Page       int
	Limit      int
	Total      int
	TotalPages int
}

// Query filters and paginates, newest first.
func (s *Store) Query(f Filters) Page {
	page := f.Page
	if page < 1 {
		page = 1
	}
	limit := f.Limit
	if limit <= 0 {
		limit = s.cfg.PageLimit
	}
	if limit > s.cfg.PageLimitMax {
		limit = s.cfg.PageLimitMax
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*model.EventLogRecord, 0, len(s.records))
	for i := len(s.records) - 1; i >= 0; i-- {
		if f.matches(s.records[i]) {
			matched = append(matched, s.records[i])
		}
	}

	total := len(matched)
	totalPages := (total + limit - 1) / limit
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return Page{
		Events:     append([]*model.EventLogRecord(nil), matched[start:end]...),
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
	}
}

// Stats is the 24h-window aggregate (GET /api/event-log/stats).
type Stats struct {
	Total24h int     `json:"total_24h"`
	Sources  []Count `json:"sources"`
	Statuses []Count `json:"statuses"`
}

// Count is one {_id, count} bucket in a Stats aggregate.
type Count struct {
	ID    string `json:"_id"`
	Count int    `json:"count"`
}

// Aggregates computes the last-24h counts by source and status.
func (s *Store) Aggregates() Stats {
	since := time.Now().UTC().Add(-24 * time.Hour)

	s.mu.RLock()
	defer s.mu.RUnlock()

	bySource := map[string]int{}
	byStatus := map[string]int{}
	total := 0
	for _, r := range s.records {
		if r.Timestamp.Before(since) {
			continue
		}
		total++
		bySource[r.Source]++
		byStatus[string(r.Status)]++
	}

	return Stats{
		Total24h: total,
		Sources:  sortedCounts(bySource),
		Statuses: sortedCounts(byStatus),
	}
}

func sortedCounts(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for k, v := range m {
		out = append(out, Count{ID: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// RecentFlowEvents implements fanout.FlowEventSource: the most recent N
// FlowEvents, newest first, for the Fanout Hub's initial_data message.
func (s *Store) RecentFlowEvents(limit int) []model.FlowEvent {
	if limit <= 0 {
		limit = 50
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.FlowEvent, 0, limit)
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.records[i].FlowEvent)
	}
	return out
}

// AggregateStats implements fanout.FlowEventSource: counts by device
// family and by status over the trailing window ending now.
func (s *Store) AggregateStats(window time.Duration) fanout.AggregateStats {
	since := time.Now().UTC().Add(-window)
	countsByFamily := map[model.DeviceFamily]int{}
	countsByStatus := map[model.FlowStatus]int{}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.Timestamp.Before(since) {
			continue
		}
		countsByFamily[r.DeviceFamily]++
		countsByStatus[r.Status]++
	}
	return fanout.AggregateStats{
		Since:          since,
		CountsByFamily: countsByFamily,
		CountsByStatus: countsByStatus,
	}
}

// Sweep deletes every record older than the configured retention window.
func (s *Store) Sweep(now time.Time) int {
	cutoff := now.UTC().AddDate(0, 0, -s.cfg.RetentionDays)

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	removed := 0
	for _, r := range s.records {
		if r.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
	return removed
}

// Len reports the current record count, for tests and /metrics.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
