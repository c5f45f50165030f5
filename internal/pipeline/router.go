package pipeline

import (
	"log/slog"

	"github.com/telehealth/core/internal/busadapter"
)

// Router dispatches each Bus Adapter delivery to the Pipeline registered
// for its topic, blocking on Feed so a slow pipeline back-pressures the
// shared broker subscription rather than dropping messages for the other
// two families. Message order is preserved from the bus up to each
// pipeline's dispatch queue.
type Router struct {
	byTopic map[string]*Pipeline
	logger  *slog.Logger

	done chan struct{}
}

// NewRouter builds a Router over the given pipelines, indexed by every
// topic each one reports via Topics().
func NewRouter(pipelines []*Pipeline, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	byTopic := make(map[string]*Pipeline)
	for _, p := range pipelines {
		for _, topic := range p.Topics() {
			byTopic[topic] = p
		}
	}
	return &Router{byTopic: byTopic, logger: logger, done: make(chan struct{})}
}

// Run drains messages until the channel is closed (on Bus Adapter Stop).
// Intended to be run in its own goroutine; Wait blocks until it returns.
func (r *Router) Run(messages <-chan busadapter.InboundMessage) {
	defer close(r.done)
	for msg := range messages {
		p, ok := r.byTopic[msg.Topic]
		if !ok {
			r.logger.Warn("pipeline router: no pipeline registered for topic", "topic", msg.Topic)
			continue
		}
		p.Feed(msg)
	}
}

// Wait blocks until Run has returned (the messages channel closed).
func (r *Router) Wait() {
	<-r.done
}
