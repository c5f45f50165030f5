package eventlogstore

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/telehealth/core/internal/model"
)

// Server exposes the Store over HTTP: POST /api/event-log (ingest, used
// by every pipeline's flowevent.Emitter), GET /api/event-log (query),
// and GET /api/event-log/stats (aggregate). Query-param parsing
// validates each param and returns 400 with an InvalidParamError on the
// first bad one.
type Server struct {
	store  *Store
	logger *slog.Logger
}

// NewServer builds a Server backed by store.
func NewServer(store *Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{store: store, logger: logger}
}

// Routes registers the Event-Log Store's endpoints on mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/api/event-log", s.handleEventLog)
	mux.HandleFunc("/api/event-log/stats", s.handleStats)
}

func (s *Server) handleEventLog(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleIngest(w, r)
	case http.MethodGet:
		s.handleQuery(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleIngest accepts one model.EventLogRecord body, matching exactly
// what flowevent.Emitter.post() sends: 202 Accepted on success, 400 on a
// malformed body.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var record model.EventLogRecord
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "could not decode event log record: "+err.Error())
		return
	}
	if record.Step == "" || record.Status == "" {
		writeError(w, http.StatusBadRequest, "MISSING_FIELD", "step and status are required")
		return
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	if record.ServerTimestamp.IsZero() {
		record.ServerTimestamp = time.Now().UTC()
	}

	s.store.Insert(&record)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}

	page := s.store.Query(filters)
	writeJSON(w, http.StatusOK, queryResponse{
		Events: page.Events,
		Pagination: Pagination{
			Page:  page.Page,
			Limit: page.Limit,
			Total: page.Total,
			Pages: page.TotalPages,
		},
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.store.Aggregates())
}

type queryResponse struct {
	Events     []*model.EventLogRecord `json:"events"`
	Pagination `json:"pagination"`
}

// Pagination is the nested page block of a query response.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// InvalidParamError reports a malformed query-string parameter.
type InvalidParamError struct {
	Param  string
	Value  string
	Reason string
}

func (e *InvalidParamError) Error() string {
	return "invalid parameter '" + e.Param + "': " + e.Reason
}

func parseFilters(r *http.Request) (Filters, error) {
	q := r.URL.Query()

	filters := Filters{
		Source:       q.Get("source"),
		Status:       model.FlowStatus(q.Get("status")),
		Step:         model.FlowStep(q.Get("step")),
		DeviceFamily: model.DeviceFamily(q.Get("device_family")),
		Query:        q.Get("q"),
		Page:         1,
		Limit:        50,
	}

	if pageStr := q.Get("page"); pageStr != "" {
		page, err := strconv.Atoi(pageStr)
		if err != nil || page < 1 {
			return filters, &InvalidParamError{Param: "page", Value: pageStr, Reason: "must be a positive integer"}
		}
		filters.Page = page
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			return filters, &InvalidParamError{Param: "limit", Value: limitStr, Reason: "must be a positive integer"}
		}
		filters.Limit = limit
	}

	if fromStr := q.Get("from"); fromStr != "" {
		from, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			return filters, &InvalidParamError{Param: "from", Value: fromStr, Reason: "must be RFC3339"}
		}
		filters.From = from
	}

	if toStr := q.Get("to"); toStr != "" {
		to, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			return filters, &InvalidParamError{Param: "to", Value: toStr, Reason: "must be RFC3339"}
		}
		filters.To = to
	}

	return filters, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}
