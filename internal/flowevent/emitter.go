package flowevent

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/telehealth/core/internal/config"
	"github.com/telehealth/core/internal/httpretry"
	"github.com/telehealth/core/internal/model"
)

// Emitter is the non-blocking, best-effort flow emitter: every pipeline
// stage calls Emit, which enqueues onto a bounded Queue and returns
// immediately. A single background goroutine drains the queue and posts
// each FlowEvent to the event-log store's ingestion endpoint with a
// bounded timeout; posting failures are logged and otherwise swallowed;
// the rest of the pipeline never observes them.
type Emitter struct {
	queue      *Queue
	httpClient *httpretry.Client
	ingestPath string
	source     string
	observer   func(model.FlowEvent)
	logger     *slog.Logger

	stoppedCh chan struct{}
	mu        sync.Mutex
	running   bool
}

// NewEmitter builds an Emitter that posts to cfg.Emitter.IngestURL. source
// identifies which pipeline or monitor this Emitter instance belongs to
// (e.g. "pipeline.gatewaybox", "pipeline.watch", "fanout").
func NewEmitter(cfg config.EmitterConfig, retry config.PersistConfig, source string, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := &http.Client{Timeout: cfg.PostTimeout}
	client := httpretry.NewClient(context.Background(), cfg.IngestURL, httpClient, httpretry.Config{
		MaxRetries: retry.RetryBudget,
		Backoff:    retry.RetryBaseDelay,
		MaxBackoff: retry.RetryMaxDelay,
	})
	if cfg.IngestToken != "" {
		client.SetAuthToken(cfg.IngestToken)
	}
	return &Emitter{
		queue:      NewQueue(cfg.QueueCapacity),
		httpClient: client,
		ingestPath: "/api/event-log",
		source:     source,
		logger:     logger,
		stoppedCh:  make(chan struct{}),
	}
}

// Emit enqueues a FlowEvent for asynchronous posting and hands a copy to
// the observer, if set. Never blocks.
func (e *Emitter) Emit(event model.FlowEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if e.observer != nil {
		e.observer(event)
	}
	e.queue.Enqueue(event)
}

// SetObserver installs a synchronous tap on Emit, used to fan events into
// the WebSocket hub and the metrics counters. Must be called before Start
// and before any pipeline begins emitting; the observer must not block.
func (e *Emitter) SetObserver(fn func(model.FlowEvent)) {
	e.observer = fn
}

// Start launches the background drain-and-post loop.
func (e *Emitter) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return
	}
	e.running = true
	go e.run()
}

// Stop closes the queue, which both wakes the drain loop and lets it drain
// every event still queued (in order) before exiting, then waits for it to
// finish. Callers bound the flush with their own shutdown timeout; Stop
// itself does not impose one.
func (e *Emitter) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.mu.Unlock()

	e.queue.Close()
	<-e.stoppedCh
}

func (e *Emitter) run() {
	defer close(e.stoppedCh)
	for {
		event, ok := e.queue.Dequeue()
		if !ok {
			return
		}
		e.post(event)
	}
}

func (e *Emitter) post(event model.FlowEvent) {
	record := model.EventLogRecord{
		FlowEvent:       event,
		Source:          e.source,
		ServerTimestamp: time.Now().UTC(),
	}

	resp, err := e.httpClient.Post(e.ingestPath, record)
	if err != nil {
		e.logger.Warn("flow event post failed", "source", e.source, "step", event.Step, "error", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		e.logger.Warn("flow event post rejected", "source", e.source, "step", event.Step, "status", resp.StatusCode)
	}
}

// Stats exposes queue depth/drop counters for the /metrics endpoint.
func (e *Emitter) Stats() Stats {
	return e.queue.Stats()
}
