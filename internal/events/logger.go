// Package events provides structured JSON logging for the core daemon's
// lifecycle events: component start/stop, broker connectivity, and
// shutdown phases. Per-message processing records go through the flow
// emitter instead; this logger covers what happens around the pipelines,
// not inside them.
package events

import (
	"io"
	"log/slog"
	"os"
)

// EventLogger emits one JSON line per lifecycle event.
type EventLogger struct {
	logger *slog.Logger
}

// NewEventLogger creates an EventLogger with JSON output to stdout,
// tagged with the owning process name.
func NewEventLogger(process string) *EventLogger {
	return NewEventLoggerWithWriter(process, os.Stdout)
}

// NewEventLoggerWithWriter creates an EventLogger with JSON output to a
// custom writer. Useful for testing or redirecting output.
func NewEventLoggerWithWriter(process string, w io.Writer) *EventLogger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return &EventLogger{
		logger: slog.New(handler).With("process", process),
	}
}

// Logger exposes the underlying slog.Logger for components that take one
// directly.
func (el *EventLogger) Logger() *slog.Logger {
	return el.logger
}

// LogStartup logs process startup.
// event: "startup"
// Attributes: bus_endpoint, store_database, default_hospital_id
func (el *EventLogger) LogStartup(busEndpoint, storeDatabase, defaultHospitalID string) {
	el.logger.Info("startup",
		"bus_endpoint", busEndpoint,
		"store_database", storeDatabase,
		"default_hospital_id", defaultHospitalID,
	)
}

// LogComponentStarted logs that one component finished starting.
// event: "component_started"
func (el *EventLogger) LogComponentStarted(component string) {
	el.logger.Info("component_started", "component", component)
}

// LogComponentStopped logs that one component finished stopping.
// event: "component_stopped"
func (el *EventLogger) LogComponentStopped(component string) {
	el.logger.Info("component_stopped", "component", component)
}

// LogPipelineStarted logs one family pipeline coming up.
// event: "pipeline_started"
// Attributes: device_family, in_flight, topics
func (el *EventLogger) LogPipelineStarted(family string, inFlight int, topics []string) {
	el.logger.Info("pipeline_started",
		"device_family", family,
		"in_flight", inFlight,
		"topics", topics,
	)
}

// LogShutdownBegun logs receipt of a termination signal.
// event: "shutdown_begun"
func (el *EventLogger) LogShutdownBegun(signal string) {
	el.logger.Info("shutdown_begun", "signal", signal)
}

// LogShutdownComplete logs the end of the shutdown sequence.
// event: "shutdown_complete"
func (el *EventLogger) LogShutdownComplete(elapsedMs int64) {
	el.logger.Info("shutdown_complete", "elapsed_ms", elapsedMs)
}

// NoopEventLogger returns an event logger that discards all events.
func NoopEventLogger() *EventLogger {
	handler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return &EventLogger{logger: slog.New(handler)}
}
