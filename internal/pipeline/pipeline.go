package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/telehealth/core/internal/busadapter"
	"github.com/telehealth/core/internal/decoder"
	"github.com/telehealth/core/internal/model"
	"github.com/telehealth/core/internal/otel"
	"github.com/telehealth/core/internal/resolver"
)

// Pipeline is one family's orchestrator: a bounded worker pool draining
// its own inbound channel and running every message through the five
// processing steps. Construct via NewGatewayBoxPipeline/NewWatchPipeline/
// NewKioskPipeline; route deliveries to it with Feed.
type Pipeline struct {
	deps Deps

	inbound chan busadapter.InboundMessage
	wg      sync.WaitGroup

	mu      sync.Mutex
	running bool
}

func newPipeline(deps Deps) *Pipeline {
	if deps.InFlight <= 0 {
		deps.InFlight = 1
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Pipeline{
		deps:    deps,
		inbound: make(chan busadapter.InboundMessage, inboundQueueCapacity),
	}
}

// SetTracing installs the optional OpenTelemetry tracer and metrics.
// Call before Start; not synchronized.
func (p *Pipeline) SetTracing(tracer *otel.Tracer, metrics *otel.Metrics) {
	p.deps.Tracer = tracer
	p.deps.OTelMetrics = metrics
}

// Family reports the device family this pipeline processes.
func (p *Pipeline) Family() model.DeviceFamily { return p.deps.Family }

// Topics reports the topic set this pipeline's Feed is fed from, for the
// Router's topic→pipeline map.
func (p *Pipeline) Topics() []string { return p.deps.Topics }

// Feed hands one inbound message to this pipeline's dispatch queue,
// blocking if it's full. Callers (the Router) run this off the Bus
// Adapter's own delivery loop, so a blocked Feed ultimately back-pressures
// the broker subscription itself.
func (p *Pipeline) Feed(msg busadapter.InboundMessage) {
	p.inbound <- msg
}

// Start launches deps.InFlight worker goroutines.
func (p *Pipeline) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true

	for i := 0; i < p.deps.InFlight; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Stop closes the inbound channel, so every worker drains the messages
// already queued (they still run) and exits, then waits for the workers.
// Safe to call multiple times.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	close(p.inbound)
	p.wg.Wait()
}

func (p *Pipeline) worker() {
	defer p.wg.Done()
	for msg := range p.inbound {
		p.process(msg)
	}
}

func (p *Pipeline) process(msg busadapter.InboundMessage) {
	started := time.Now()
	ctx := context.Background()

	var span trace.Span
	if p.deps.Tracer != nil {
		ctx, span = p.deps.Tracer.StartMessageSpan(ctx, otel.MessageSpanOptions{
			Family: p.deps.Family,
			Topic:  msg.Topic,
		})
		defer span.End()
	}

	outcome := p.run(ctx, span, msg)

	if p.deps.OTelMetrics != nil {
		p.deps.OTelMetrics.RecordMessageLatency(ctx, p.deps.Family, outcome,
			float64(time.Since(started).Microseconds())/1000.0)
	}
}

// run executes steps 1-5 for one message and returns its terminal
// outcome. Every stage failure other than the resolver's
// hospital-unknown warning aborts the remaining steps for this message,
// never the pipeline.
func (p *Pipeline) run(ctx context.Context, span trace.Span, msg busadapter.InboundMessage) string {
	p.emit(model.FlowEvent{
		Step: model.StepReceived, Status: model.FlowSuccess,
		DeviceFamily: p.deps.Family, Topic: msg.Topic, Timestamp: msg.ReceivedAt,
	})

	decoded, err := decoder.Decode(msg.Topic, msg.Payload, msg.ReceivedAt)
	if err != nil {
		p.fail(ctx, span, model.StepDecoded, msg.Topic, "", "", decodeErrorKind(err), err)
		return "decode_error"
	}
	p.emit(model.FlowEvent{
		Step: model.StepDecoded, Status: model.FlowSuccess,
		DeviceFamily: p.deps.Family, Topic: msg.Topic,
	})

	result, err := p.deps.Resolve(ctx, decoded)
	if err != nil {
		p.fail(ctx, span, model.StepResolved, msg.Topic, "", "", resolveErrorKind(err), err)
		return "resolution_error"
	}
	otel.AnnotateResolution(span, result.PatientID(), result.HospitalID)
	if result.HospitalWarning {
		p.emit(model.FlowEvent{
			Step: model.StepResolved, Status: model.FlowInfo,
			DeviceFamily: p.deps.Family, Topic: msg.Topic, PatientRef: result.PatientID(),
			ErrorKind: "hospital_unknown",
		})
	} else {
		p.emit(model.FlowEvent{
			Step: model.StepResolved, Status: model.FlowSuccess,
			DeviceFamily: p.deps.Family, Topic: msg.Topic, PatientRef: result.PatientID(),
		})
	}

	// A normalization failure is a stage-4 error; the FlowStep enum has
	// no dedicated normalization value, so it shares the "4_..." step
	// with the persister's own snapshot failures.
	normalized, err := p.deps.Normalizer.Normalize(p.deps.Family, decoded, msg.Payload, toResolution(result))
	if err != nil {
		p.fail(ctx, span, model.StepSnapshotUpdated, msg.Topic, result.PatientID(), "", "normalization", err)
		return "normalization_error"
	}

	if normalized.NoObservation && len(normalized.Observations) == 0 && len(normalized.Emergencies) == 0 {
		p.emit(model.FlowEvent{
			Step: model.StepPersisted, Status: model.FlowInfo,
			DeviceFamily: p.deps.Family, Topic: msg.Topic, PatientRef: result.PatientID(),
			ErrorKind: "no_observation",
		})
		return "no_observation"
	}

	persistCtx := ctx
	var cancel context.CancelFunc
	if p.deps.AbandonAfter > 0 {
		persistCtx, cancel = context.WithTimeout(ctx, p.deps.AbandonAfter)
		defer cancel()
	}

	outcome := "persisted"
	for _, obs := range normalized.Observations {
		if persistCtx.Err() != nil {
			p.emitError(model.StepPersisted, msg.Topic, result.PatientID(), obs.ObservationID, "timeout", "abandoned after persist deadline")
			outcome = "persist_timeout"
			continue
		}
		if _, err := p.deps.Persister.PersistObservation(persistCtx, obs, msg.Topic); err != nil {
			p.deps.Logger.Warn("pipeline: persist observation failed", "family", p.deps.Family, "observation_id", obs.ObservationID, "error", err)
			otel.RecordError(span, err, model.StepPersisted)
			outcome = "persist_error"
		}
	}

	for _, emergency := range normalized.Emergencies {
		if persistCtx.Err() != nil {
			p.emitError(model.StepPersisted, msg.Topic, result.PatientID(), emergency.EventID, "timeout", "abandoned after persist deadline")
			outcome = "persist_timeout"
			continue
		}
		if err := p.deps.Persister.PersistEmergency(persistCtx, emergency, p.deps.Family, msg.Topic); err != nil {
			p.deps.Logger.Warn("pipeline: persist emergency failed", "family", p.deps.Family, "event_id", emergency.EventID, "error", err)
			otel.RecordError(span, err, model.StepPersisted)
			outcome = "persist_error"
		}
	}

	return outcome
}

func (p *Pipeline) fail(ctx context.Context, span trace.Span, step model.FlowStep, topic, patientRef, observationRef, kind string, err error) {
	otel.RecordError(span, err, step)
	if p.deps.OTelMetrics != nil {
		p.deps.OTelMetrics.RecordStageError(ctx, p.deps.Family, step)
	}
	p.emitError(step, topic, patientRef, observationRef, kind, err.Error())
}

func (p *Pipeline) emit(event model.FlowEvent) {
	if p.deps.Emitter == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	p.deps.Emitter.Emit(event)
}

func (p *Pipeline) emitError(step model.FlowStep, topic, patientRef, observationRef, kind, message string) {
	p.emit(model.FlowEvent{
		Step: step, Status: model.FlowError, DeviceFamily: p.deps.Family, Topic: topic,
		PatientRef: patientRef, ObservationRef: observationRef, ErrorKind: kind, ErrorMessage: message,
	})
}

func decodeErrorKind(err error) string {
	if de, ok := err.(*decoder.DecodeError); ok {
		return string(de.Kind)
	}
	return "decode_error"
}

func resolveErrorKind(err error) string {
	if re, ok := err.(*resolver.ResolutionError); ok {
		return string(re.Kind)
	}
	return "resolution_error"
}
