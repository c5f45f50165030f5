package persister

import (
	"context"
	"log/slog"
	"time"

	"github.com/telehealth/core/internal/config"
	"github.com/telehealth/core/internal/fhir"
	"github.com/telehealth/core/internal/flowevent"
	"github.com/telehealth/core/internal/model"
	"github.com/telehealth/core/internal/store"
)

// Outcome is the result of a single Persist call.
type Outcome string

const (
	OutcomePersisted           Outcome = "persisted"
	OutcomeDuplicateSuppressed Outcome = "duplicate_suppressed"
)

// Broadcaster is the narrow slice of the fanout hub the Persister pushes
// real-time updates through. Consumer-owned here so this package does not
// import internal/fanout; internal/fanout.Hub implements it.
type Broadcaster interface {
	BroadcastObservation(obs *model.Observation)
	BroadcastEmergency(event *model.EmergencyEvent)
}

// Metrics is the optional instrumentation hook; internal/metrics.Ingest
// implements it. A nil hook disables recording.
type Metrics interface {
	ObservePersist(family model.DeviceFamily, obsType model.ObservationType, outcome string, elapsed time.Duration)
	ObserveEmergency(kind model.EmergencyKind)
}

// Persister writes Observations/EmergencyEvents to history, snapshot, and
// FHIR shadow collections. Every dependency is a narrow interface
// supplied by the caller, the same injected-collaborator shape the
// Resolver uses.
type Persister struct {
	history    store.HistoryStore
	patients   store.PatientStore
	fhirStore  store.FHIRStore
	emergency  store.EmergencyStore
	emitter    *flowevent.Emitter
	broadcast  Broadcaster
	metrics    Metrics
	retry      config.PersistConfig
	logger     *slog.Logger
}

// New builds a Persister. broadcast and emitter may be nil (e.g. in tests
// exercising store semantics only); both are checked before use.
func New(history store.HistoryStore, patients store.PatientStore, fhirStore store.FHIRStore, emergency store.EmergencyStore, emitter *flowevent.Emitter, broadcast Broadcaster, retry config.PersistConfig, logger *slog.Logger) *Persister {
	if logger == nil {
		logger = slog.Default()
	}
	return &Persister{
		history:   history,
		patients:  patients,
		fhirStore: fhirStore,
		emergency: emergency,
		emitter:   emitter,
		broadcast: broadcast,
		retry:     retry,
		logger:    logger,
	}
}

// SetMetrics installs the instrumentation hook. Call before the pipelines
// start; not synchronized.
func (p *Persister) SetMetrics(m Metrics) {
	p.metrics = m
}

func (p *Persister) observePersist(obs *model.Observation, outcome string, started time.Time) {
	if p.metrics == nil {
		return
	}
	p.metrics.ObservePersist(obs.DeviceFamily, obs.ObservationType, outcome, time.Since(started))
}

func (p *Persister) emit(event model.FlowEvent) {
	if p.emitter == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	p.emitter.Emit(event)
}

// PersistObservation runs the four-step Persist sequence for a single
// canonical Observation. topic is carried only for the FlowEvents it
// emits; the device family comes from obs.DeviceFamily.
func (p *Persister) PersistObservation(ctx context.Context, obs *model.Observation, topic string) (Outcome, error) {
	started := time.Now()

	exists, err := p.history.Exists(ctx, obs.DuplicateKey())
	if err != nil {
		p.observePersist(obs, "error", started)
		p.emit(model.FlowEvent{
			Step: model.StepPersisted, Status: model.FlowError, DeviceFamily: obs.DeviceFamily, Topic: topic,
			PatientRef: obs.PatientID, ErrorKind: string(ErrKindHistory), ErrorMessage: "duplicate check failed: " + err.Error(),
		})
		return "", newHistoryError("duplicate check failed: " + err.Error())
	}
	if exists {
		p.emit(model.FlowEvent{
			Step: model.StepPersisted, Status: model.FlowInfo, DeviceFamily: obs.DeviceFamily, Topic: topic,
			PatientRef: obs.PatientID, ObservationRef: obs.ObservationID,
		})
		p.observePersist(obs, string(OutcomeDuplicateSuppressed), started)
		return OutcomeDuplicateSuppressed, nil
	}

	if err := withRetry(ctx, p.retry, func() error { return p.history.Insert(ctx, obs) }); err != nil {
		p.emit(model.FlowEvent{
			Step: model.StepPersisted, Status: model.FlowError, DeviceFamily: obs.DeviceFamily, Topic: topic,
			PatientRef: obs.PatientID, ErrorKind: string(ErrKindHistory), ErrorMessage: err.Error(),
		})
		p.observePersist(obs, "error", started)
		return "", newHistoryError(err.Error())
	}

	if p.broadcast != nil {
		p.broadcast.BroadcastObservation(obs)
	}

	p.updateSnapshot(ctx, obs, topic)
	p.writeFHIRShadow(ctx, obs)

	p.emit(model.FlowEvent{
		Step: model.StepPersisted, Status: model.FlowSuccess, DeviceFamily: obs.DeviceFamily, Topic: topic,
		PatientRef: obs.PatientID, ObservationRef: obs.ObservationID,
	})
	p.observePersist(obs, string(OutcomePersisted), started)
	return OutcomePersisted, nil
}

// updateSnapshot is step 3. Failures are warnings: history already holds
// the authoritative record.
func (p *Persister) updateSnapshot(ctx context.Context, obs *model.Observation, topic string) {
	snapshot, ok := buildSnapshot(obs)
	if !ok {
		return
	}
	applied, err := p.patients.UpdateSnapshotIfNewer(ctx, obs.PatientID, obs.ObservationType, obs.MeasuredAt, snapshot)
	if err != nil {
		p.logger.Warn("snapshot update failed", "patient_id", obs.PatientID, "observation_type", obs.ObservationType, "error", err)
		p.emit(model.FlowEvent{
			Step: model.StepSnapshotUpdated, Status: model.FlowError, DeviceFamily: obs.DeviceFamily, Topic: topic,
			PatientRef: obs.PatientID, ObservationRef: obs.ObservationID, ErrorMessage: err.Error(),
		})
		return
	}
	status := model.FlowSuccess
	if !applied {
		status = model.FlowInfo
	}
	p.emit(model.FlowEvent{
		Step: model.StepSnapshotUpdated, Status: status, DeviceFamily: obs.DeviceFamily, Topic: topic,
		PatientRef: obs.PatientID, ObservationRef: obs.ObservationID,
	})
}

// writeFHIRShadow is step 4. Errors are logged and never propagate; the
// history record is authoritative.
func (p *Persister) writeFHIRShadow(ctx context.Context, obs *model.Observation) {
	if p.fhirStore == nil || obs.ObservationType == model.ObservationSleep {
		return
	}
	resource, err := fhir.BuildObservation(obs)
	if err != nil {
		p.logger.Warn("fhir shaping failed", "observation_id", obs.ObservationID, "error", err)
		return
	}
	if err := p.fhirStore.UpsertObservation(ctx, obs.ObservationID, resource); err != nil {
		p.logger.Warn("fhir shadow write failed", "observation_id", obs.ObservationID, "error", err)
	}
}

// PersistEmergency writes an EmergencyEvent to the emergency collection,
// shadows its location as a FHIR Location when present, and always
// broadcasts. Emergencies never touch the patient snapshot.
func (p *Persister) PersistEmergency(ctx context.Context, event *model.EmergencyEvent, deviceFamily model.DeviceFamily, topic string) error {
	if err := withRetry(ctx, p.retry, func() error { return p.emergency.InsertEmergency(ctx, event) }); err != nil {
		p.emit(model.FlowEvent{
			Step: model.StepPersisted, Status: model.FlowError, DeviceFamily: deviceFamily, Topic: topic,
			PatientRef: event.PatientID, ErrorKind: string(ErrKindEmergency), ErrorMessage: err.Error(),
		})
		return newEmergencyError(err.Error())
	}

	if p.fhirStore != nil && event.Location != nil {
		resource := fhir.BuildLocation(event.EventID, event.Location, event.HospitalID)
		if err := p.fhirStore.UpsertLocation(ctx, event.EventID, resource); err != nil {
			p.logger.Warn("fhir location shadow write failed", "event_id", event.EventID, "error", err)
		}
	}

	if p.metrics != nil {
		p.metrics.ObserveEmergency(event.Kind)
	}

	if p.broadcast != nil {
		p.broadcast.BroadcastEmergency(event)
	}

	p.emit(model.FlowEvent{
		Step: model.StepPersisted, Status: model.FlowSuccess, DeviceFamily: deviceFamily, Topic: topic,
		PatientRef: event.PatientID,
	})
	return nil
}

// PersistHospitalShadow upserts a FHIR Organization shadow for hospital.
// It implements resolver.OrganizationShadow: the resolver calls it each
// time a hospital lookup returns a full record, not per-observation.
// Failures are warnings, matching the rest of the FHIR shadow
// collection's non-fatal semantics.
func (p *Persister) PersistHospitalShadow(ctx context.Context, hospital *model.Hospital) {
	if p.fhirStore == nil || hospital == nil {
		return
	}
	resource := fhir.BuildOrganization(hospital)
	if err := p.fhirStore.UpsertOrganization(ctx, hospital.HospitalID, resource); err != nil {
		p.logger.Warn("fhir organization shadow write failed", "hospital_id", hospital.HospitalID, "error", err)
	}
}
