package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/telehealth/core/internal/busadapter"
	"github.com/telehealth/core/internal/config"
	"github.com/telehealth/core/internal/flowevent"
	"github.com/telehealth/core/internal/model"
	"github.com/telehealth/core/internal/normalizer"
	"github.com/telehealth/core/internal/persister"
	"github.com/telehealth/core/internal/resolver"
	"github.com/telehealth/core/internal/store"
)

// memStore is an in-memory implementation of every store interface the
// resolver and persister consume, with the same conditional-snapshot
// semantics as the mongo implementation.
type memStore struct {
	mu sync.Mutex

	subDevices    map[string]*store.SubDeviceRegistryEntry
	watches       map[string]*store.WatchRegistryEntry
	gatewayAssocs map[string]*store.GatewayHospitalAssociation
	patients      map[string]*model.Patient

	history     []*model.Observation
	histKeys    map[model.DuplicateKey]bool
	snapshots   map[string]snapshotEntry
	fhirUpserts int
	emergencies []*model.EmergencyEvent

	nextPatientSeq int
}

type snapshotEntry struct {
	measuredAt time.Time
	snapshot   any
}

func newMemStore() *memStore {
	return &memStore{
		subDevices:    map[string]*store.SubDeviceRegistryEntry{},
		watches:       map[string]*store.WatchRegistryEntry{},
		gatewayAssocs: map[string]*store.GatewayHospitalAssociation{},
		patients:      map[string]*model.Patient{},
		histKeys:      map[model.DuplicateKey]bool{},
		snapshots:     map[string]snapshotEntry{},
	}
}

func (m *memStore) FindSubDeviceByBLEAddr(ctx context.Context, bleAddr string) (*store.SubDeviceRegistryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subDevices[bleAddr], nil
}

func (m *memStore) FindWatchByIMEI(ctx context.Context, imei string) (*store.WatchRegistryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.watches[imei], nil
}

func (m *memStore) FindGatewayHospitalAssociation(ctx context.Context, mac string) (*store.GatewayHospitalAssociation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gatewayAssocs[mac], nil
}

func (m *memStore) FindByID(ctx context.Context, patientID string) (*model.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.patients[patientID], nil
}

func (m *memStore) FindByCitizenID(ctx context.Context, citizenID string) (*model.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.patients {
		if p.CitizenID == citizenID {
			return p, nil
		}
	}
	return nil, nil
}

func (m *memStore) CreateUnregistered(ctx context.Context, patient *model.Patient) (*model.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// citizen_id uniqueness: a concurrent create reuses the winner.
	for _, p := range m.patients {
		if p.CitizenID == patient.CitizenID {
			return p, nil
		}
	}
	m.nextPatientSeq++
	created := *patient
	created.PatientID = fmt.Sprintf("UNREG_%d", m.nextPatientSeq)
	m.patients[created.PatientID] = &created
	return &created, nil
}

func (m *memStore) FindBySubDeviceMAC(ctx context.Context, mac string) (*model.Patient, error) {
	return nil, nil
}

func (m *memStore) FindByGatewayMAC(ctx context.Context, mac string) (*model.Patient, error) {
	return nil, nil
}

func (m *memStore) FindByWatchMAC(ctx context.Context, imei string) (*model.Patient, error) {
	return nil, nil
}

func (m *memStore) UpdateSnapshotIfNewer(ctx context.Context, patientID string, observationType model.ObservationType, measuredAt time.Time, snapshot any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := patientID + "/" + string(observationType)
	existing, ok := m.snapshots[key]
	if ok && measuredAt.Before(existing.measuredAt) {
		return false, nil
	}
	m.snapshots[key] = snapshotEntry{measuredAt: measuredAt, snapshot: snapshot}
	return true, nil
}

func (m *memStore) FindHospitalByID(ctx context.Context, hospitalID string) (*model.Hospital, error) {
	return nil, nil
}

// hospitalView adapts *memStore to store.HospitalStore: memStore's
// FindByGatewayMAC already satisfies store.PatientStore's method of the
// same name, so a distinct type is needed for the hospital-returning one.
type hospitalView struct {
	*memStore
}

func (h hospitalView) FindByGatewayMAC(ctx context.Context, macAddress string) (*model.Hospital, error) {
	return nil, nil
}

func (m *memStore) Exists(ctx context.Context, key model.DuplicateKey) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.histKeys[key], nil
}

func (m *memStore) Insert(ctx context.Context, obs *model.Observation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, obs)
	m.histKeys[obs.DuplicateKey()] = true
	return nil
}

func (m *memStore) UpsertObservation(ctx context.Context, id string, resource any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fhirUpserts++
	return nil
}

func (m *memStore) UpsertOrganization(ctx context.Context, id string, resource any) error {
	return nil
}

func (m *memStore) UpsertLocation(ctx context.Context, id string, resource any) error {
	return nil
}

func (m *memStore) InsertEmergency(ctx context.Context, event *model.EmergencyEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emergencies = append(m.emergencies, event)
	return nil
}

func (m *memStore) ListActive(ctx context.Context) ([]*model.EmergencyEvent, error) {
	return nil, nil
}

func (m *memStore) historyByType(t model.ObservationType) []*model.Observation {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Observation
	for _, obs := range m.history {
		if obs.ObservationType == t {
			out = append(out, obs)
		}
	}
	return out
}

// eventRecorder captures every FlowEvent through the emitter's observer
// tap.
type eventRecorder struct {
	mu     sync.Mutex
	events []model.FlowEvent
}

func (r *eventRecorder) add(event model.FlowEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) byStep(step model.FlowStep) []model.FlowEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.FlowEvent
	for _, e := range r.events {
		if e.Step == step {
			out = append(out, e)
		}
	}
	return out
}

type broadcastRecorder struct {
	mu           sync.Mutex
	observations []*model.Observation
	emergencies  []*model.EmergencyEvent
}

func (b *broadcastRecorder) BroadcastObservation(obs *model.Observation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observations = append(b.observations, obs)
}

func (b *broadcastRecorder) BroadcastEmergency(event *model.EmergencyEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.emergencies = append(b.emergencies, event)
}

type harness struct {
	store     *memStore
	recorder  *eventRecorder
	broadcast *broadcastRecorder

	gateway func() *Pipeline
	watch   func() *Pipeline
	kiosk   func() *Pipeline
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db := newMemStore()
	recorder := &eventRecorder{}
	broadcast := &broadcastRecorder{}
	logger := slog.New(slog.DiscardHandler)

	emitter := flowevent.NewEmitter(config.EmitterConfig{
		QueueCapacity: 4096,
		PostTimeout:   time.Second,
		IngestURL:     "http://127.0.0.1:0",
	}, config.PersistConfig{}, "test", logger)
	emitter.SetObserver(recorder.add)

	persistCfg := config.PersistConfig{
		RetryBudget:    1,
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  time.Millisecond,
	}
	pers := persister.New(db, db, db, db, emitter, broadcast, persistCfg, logger)
	res := resolver.New(db, hospitalView{memStore: db}, db, "H_DEFAULT")
	norm := normalizer.New()

	return &harness{
		store:     db,
		recorder:  recorder,
		broadcast: broadcast,
		gateway: func() *Pipeline {
			return NewGatewayBoxPipeline(res, norm, pers, emitter, 1, 0, logger)
		},
		watch: func() *Pipeline {
			return NewWatchPipeline(res, norm, pers, emitter, 1, 0, logger)
		},
		kiosk: func() *Pipeline {
			return NewKioskPipeline(res, norm, pers, emitter, 1, 0, logger)
		},
	}
}

// feed runs messages through a fresh pipeline synchronously: the
// pipeline starts, the messages are queued, and Stop drains them before
// returning. State lives in the shared stores/emitter, so consecutive
// feed calls see each other's effects.
func (h *harness) feed(build func() *Pipeline, messages ...busadapter.InboundMessage) {
	p := build()
	p.Start()
	for _, msg := range messages {
		p.Feed(msg)
	}
	p.Stop()
}

const gatewayBPPayload = `{"from":"BLE","to":"CLOUD","time":1836942771,"deviceCode":"AA:BB:CC:DD:EE:FF",
 "mac":"AA:BB:CC:DD:EE:FF","type":"reportAttribute","device":"WBP BIOLIGHT",
 "data":{"attribute":"BP_BIOLIGTH","mac":"AA:BB:CC:DD:EE:FF",
         "value":{"device_list":[{"scan_time":1836942771,"ble_addr":"d616f9641622",
                                  "bp_high":137,"bp_low":95,"PR":74}]}}}`

func asInt(t *testing.T, v any) int {
	t.Helper()
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		t.Fatalf("unexpected numeric type %T", v)
		return 0
	}
}

func TestGatewayBoxBloodPressureViaSubDeviceMAC(t *testing.T) {
	h := newHarness(t)
	h.store.subDevices["d616f9641622"] = &store.SubDeviceRegistryEntry{
		BLEAddr: "d616f9641622", PatientID: "P1", HospitalID: "H1",
	}
	h.store.patients["P1"] = &model.Patient{PatientID: "P1"}

	h.feed(h.gateway, busadapter.InboundMessage{
		Topic: "dusun_pub", Payload: []byte(gatewayBPPayload), ReceivedAt: time.Now().UTC(),
	})

	rows := h.store.historyByType(model.ObservationBloodPressure)
	if len(rows) != 1 {
		t.Fatalf("history rows = %d, want 1", len(rows))
	}
	obs := rows[0]
	if obs.PatientID != "P1" || obs.HospitalID != "H1" || obs.SourceDeviceID != "d616f9641622" {
		t.Errorf("observation routing = %s/%s/%s", obs.PatientID, obs.HospitalID, obs.SourceDeviceID)
	}
	if got := asInt(t, obs.Values["systolic"]); got != 137 {
		t.Errorf("systolic = %d, want 137", got)
	}
	if got := asInt(t, obs.Values["diastolic"]); got != 95 {
		t.Errorf("diastolic = %d, want 95", got)
	}
	if got := asInt(t, obs.Values["pulse"]); got != 74 {
		t.Errorf("pulse = %d, want 74", got)
	}

	wantMeasured := time.Unix(1836942771, 0).UTC()
	if !obs.MeasuredAt.Equal(wantMeasured) {
		t.Errorf("measured_at = %v, want %v", obs.MeasuredAt, wantMeasured)
	}

	snap, ok := h.store.snapshots["P1/blood_pressure"]
	if !ok {
		t.Fatal("snapshot not updated")
	}
	if !snap.measuredAt.Equal(wantMeasured) {
		t.Errorf("snapshot measured_at = %v, want %v", snap.measuredAt, wantMeasured)
	}

	for _, step := range []model.FlowStep{model.StepReceived, model.StepDecoded, model.StepResolved, model.StepPersisted} {
		events := h.recorder.byStep(step)
		if len(events) != 1 || events[0].Status != model.FlowSuccess {
			t.Errorf("step %s events = %+v, want one success", step, events)
		}
	}
	if events := h.recorder.byStep(model.StepSnapshotUpdated); len(events) != 1 || events[0].Status != model.FlowSuccess {
		t.Errorf("snapshot step events = %+v, want one success", events)
	}
}

func TestWatchBatchOfThreeProducesTwelveObservations(t *testing.T) {
	h := newHarness(t)
	h.store.watches["861265061482607"] = &store.WatchRegistryEntry{
		IMEI: "861265061482607", PatientID: "P2", HospitalID: "H2",
	}
	h.store.patients["P2"] = &model.Patient{PatientID: "P2"}

	base := time.Date(2028, 3, 14, 6, 0, 0, 0, time.UTC)
	samples := make([]map[string]any, 0, 3)
	for i, hr := range []int{70, 72, 75} {
		samples = append(samples, map[string]any{
			"heartRate":       hr,
			"bloodPressure":   map[string]any{"bp_sys": 120 + i, "bp_dia": 80},
			"spO2":            97,
			"bodyTemperature": 36.6,
			"timestamp":       base.Add(time.Duration(i) * time.Minute).Unix(),
		})
	}
	payload, _ := json.Marshal(map[string]any{
		"IMEI": "861265061482607", "num_datas": 3, "data": samples,
	})

	h.feed(h.watch, busadapter.InboundMessage{
		Topic: "iMEDE_watch/AP55", Payload: payload, ReceivedAt: time.Now().UTC(),
	})

	h.store.mu.Lock()
	total := len(h.store.history)
	h.store.mu.Unlock()
	if total != 12 {
		t.Fatalf("history rows = %d, want 12 (4 types x 3 samples)", total)
	}

	for _, obsType := range []model.ObservationType{
		model.ObservationHeartRate, model.ObservationBloodPressure,
		model.ObservationSpO2, model.ObservationTemperature,
	} {
		rows := h.store.historyByType(obsType)
		if len(rows) != 3 {
			t.Errorf("%s rows = %d, want 3", obsType, len(rows))
			continue
		}
		for i, obs := range rows {
			want := base.Add(time.Duration(i) * time.Minute)
			if !obs.MeasuredAt.Equal(want) {
				t.Errorf("%s sample %d measured_at = %v, want %v", obsType, i, obs.MeasuredAt, want)
			}
		}

		snap := h.store.snapshots["P2/"+string(obsType)]
		latest := base.Add(2 * time.Minute)
		if !snap.measuredAt.Equal(latest) {
			t.Errorf("%s snapshot = %v, want latest sample %v", obsType, snap.measuredAt, latest)
		}
	}
}

func TestWatchSOSPersistsEmergencyAndBroadcasts(t *testing.T) {
	h := newHarness(t)
	h.store.watches["861265061482607"] = &store.WatchRegistryEntry{
		IMEI: "861265061482607", PatientID: "P3", HospitalID: "H3",
	}
	h.store.patients["P3"] = &model.Patient{PatientID: "P3"}

	payload := []byte(`{"IMEI":"861265061482607","time":1836942000,
		"location":{"gps":{"lat":13.75,"lng":100.5,"speed":1.2}}}`)

	h.feed(h.watch, busadapter.InboundMessage{
		Topic: "iMEDE_watch/SOS", Payload: payload, ReceivedAt: time.Now().UTC(),
	})

	h.store.mu.Lock()
	emergencies := h.store.emergencies
	historyCount := len(h.store.history)
	h.store.mu.Unlock()

	if historyCount != 0 {
		t.Errorf("history rows = %d, want 0 (SOS carries no vitals)", historyCount)
	}
	if len(emergencies) != 1 {
		t.Fatalf("emergencies = %d, want 1", len(emergencies))
	}
	ev := emergencies[0]
	if ev.Kind != model.EmergencyPanic || ev.Severity != model.SeverityEventCritical {
		t.Errorf("kind/severity = %s/%s, want panic/critical", ev.Kind, ev.Severity)
	}
	if ev.PatientID != "P3" || ev.Status != model.EmergencyActive {
		t.Errorf("patient/status = %s/%s", ev.PatientID, ev.Status)
	}
	if ev.Location == nil || ev.Location.Source != model.LocationGPS {
		t.Errorf("location = %+v, want gps fix", ev.Location)
	}

	h.broadcast.mu.Lock()
	broadcasts := len(h.broadcast.emergencies)
	h.broadcast.mu.Unlock()
	if broadcasts != 1 {
		t.Errorf("emergency broadcasts = %d, want 1", broadcasts)
	}
}

func TestKioskUnknownCitizenAutoCreatesPatient(t *testing.T) {
	h := newHarness(t)
	h.store.gatewayAssocs["11:22:33:44:55:66"] = &store.GatewayHospitalAssociation{
		MACAddress: "11:22:33:44:55:66", HospitalID: "H9",
	}

	payload := []byte(`{"mac":"11:22:33:44:55:66","time":1836942771,
		"data":{"attribute":"CONTOUR","citizen_id":"C9","value":{"glucose":142}}}`)

	h.feed(h.kiosk, busadapter.InboundMessage{
		Topic: "CM4_BLE_GW_TX", Payload: payload, ReceivedAt: time.Now().UTC(),
	})

	created, err := h.store.FindByCitizenID(context.Background(), "C9")
	if err != nil || created == nil {
		t.Fatalf("expected auto-created patient for C9, got %v/%v", created, err)
	}
	if created.Name.Marker != "UNREGISTERED" || created.HospitalID != "H9" || created.CreatedBy != "kiosk" {
		t.Errorf("scaffold = %+v", created)
	}

	rows := h.store.historyByType(model.ObservationBloodGlucose)
	if len(rows) != 1 {
		t.Fatalf("glucose rows = %d, want 1", len(rows))
	}
	if rows[0].PatientID != created.PatientID {
		t.Errorf("observation patient = %s, want %s", rows[0].PatientID, created.PatientID)
	}
	if got := asInt(t, rows[0].Values["mg_per_dL"]); got != 142 {
		t.Errorf("glucose = %d, want 142", got)
	}
	if marker, _ := rows[0].Values["marker"].(string); marker != string(model.GlucoseMarkerUnspecified) {
		t.Errorf("marker = %v, want unspecified", rows[0].Values["marker"])
	}

	// The same citizen ID reuses the scaffold rather than creating another.
	h.feed(h.kiosk, busadapter.InboundMessage{
		Topic: "CM4_BLE_GW_TX", Payload: payload, ReceivedAt: time.Now().UTC(),
	})
	h.store.mu.Lock()
	patientCount := len(h.store.patients)
	h.store.mu.Unlock()
	if patientCount != 1 {
		t.Errorf("patients = %d, want 1 after replay", patientCount)
	}
}

func TestDuplicateReplaySuppressed(t *testing.T) {
	h := newHarness(t)
	h.store.subDevices["d616f9641622"] = &store.SubDeviceRegistryEntry{
		BLEAddr: "d616f9641622", PatientID: "P1", HospitalID: "H1",
	}
	h.store.patients["P1"] = &model.Patient{PatientID: "P1"}

	msg := busadapter.InboundMessage{
		Topic: "dusun_pub", Payload: []byte(gatewayBPPayload), ReceivedAt: time.Now().UTC(),
	}
	h.feed(h.gateway, msg)

	h.store.mu.Lock()
	rowsBefore, fhirBefore := len(h.store.history), h.store.fhirUpserts
	snapBefore := h.store.snapshots["P1/blood_pressure"]
	h.store.mu.Unlock()

	h.feed(h.gateway, msg)

	h.store.mu.Lock()
	rowsAfter, fhirAfter := len(h.store.history), h.store.fhirUpserts
	snapAfter := h.store.snapshots["P1/blood_pressure"]
	h.store.mu.Unlock()

	if rowsAfter != rowsBefore {
		t.Errorf("history rows = %d, want unchanged %d", rowsAfter, rowsBefore)
	}
	if fhirAfter != fhirBefore {
		t.Errorf("fhir upserts = %d, want unchanged %d", fhirAfter, fhirBefore)
	}
	if !snapAfter.measuredAt.Equal(snapBefore.measuredAt) {
		t.Errorf("snapshot changed on replay")
	}

	persisted := h.recorder.byStep(model.StepPersisted)
	if len(persisted) != 2 {
		t.Fatalf("step-5 events = %d, want 2", len(persisted))
	}
	if persisted[0].Status != model.FlowSuccess {
		t.Errorf("first persist status = %s, want success", persisted[0].Status)
	}
	if persisted[1].Status != model.FlowInfo {
		t.Errorf("replay persist status = %s, want info (duplicate suppressed)", persisted[1].Status)
	}
}

func TestOutOfOrderArrivalKeepsNewestSnapshot(t *testing.T) {
	h := newHarness(t)
	h.store.watches["861265061482607"] = &store.WatchRegistryEntry{
		IMEI: "861265061482607", PatientID: "P4", HospitalID: "H4",
	}
	h.store.patients["P4"] = &model.Patient{PatientID: "P4"}

	late := time.Date(2028, 3, 14, 10, 0, 0, 0, time.UTC)
	early := late.Add(-10 * time.Second)

	vitals := func(hr int, at time.Time) busadapter.InboundMessage {
		payload, _ := json.Marshal(map[string]any{
			"IMEI": "861265061482607", "heartRate": hr, "time": at.Unix(),
		})
		return busadapter.InboundMessage{Topic: "iMEDE_watch/VitalSign", Payload: payload, ReceivedAt: time.Now().UTC()}
	}

	// The newer sample arrives first, the stale one second.
	h.feed(h.watch, vitals(88, late), vitals(71, early))

	rows := h.store.historyByType(model.ObservationHeartRate)
	if len(rows) != 2 {
		t.Fatalf("history rows = %d, want both samples kept", len(rows))
	}

	snap := h.store.snapshots["P4/heart_rate"]
	if !snap.measuredAt.Equal(late) {
		t.Errorf("snapshot = %v, want the newer sample %v", snap.measuredAt, late)
	}
}

func TestWatchHeartbeatWithoutStepEmitsNoObservation(t *testing.T) {
	h := newHarness(t)
	h.store.watches["861265061482607"] = &store.WatchRegistryEntry{
		IMEI: "861265061482607", PatientID: "P5", HospitalID: "H5",
	}
	h.store.patients["P5"] = &model.Patient{PatientID: "P5"}

	h.feed(h.watch, busadapter.InboundMessage{
		Topic: "iMEDE_watch/hb", Payload: []byte(`{"IMEI":"861265061482607","battery":80}`), ReceivedAt: time.Now().UTC(),
	})

	h.store.mu.Lock()
	total := len(h.store.history)
	h.store.mu.Unlock()
	if total != 0 {
		t.Errorf("history rows = %d, want 0", total)
	}

	persisted := h.recorder.byStep(model.StepPersisted)
	if len(persisted) != 1 || persisted[0].Status != model.FlowInfo || persisted[0].ErrorKind != "no_observation" {
		t.Fatalf("step-5 events = %+v, want one no_observation info", persisted)
	}
}

func TestDecodeFailureEmitsStepTwoErrorAndStopsThere(t *testing.T) {
	h := newHarness(t)

	h.feed(h.gateway, busadapter.InboundMessage{
		Topic: "dusun_pub", Payload: []byte(`{"data":{"attribute"`), ReceivedAt: time.Now().UTC(),
	})

	if events := h.recorder.byStep(model.StepReceived); len(events) != 1 {
		t.Errorf("step-1 events = %d, want 1 (always emitted)", len(events))
	}
	decodeEvents := h.recorder.byStep(model.StepDecoded)
	if len(decodeEvents) != 1 || decodeEvents[0].Status != model.FlowError {
		t.Fatalf("step-2 events = %+v, want one error", decodeEvents)
	}
	if events := h.recorder.byStep(model.StepPersisted); len(events) != 0 {
		t.Errorf("step-5 events = %d, want 0 after decode failure", len(events))
	}
}

func TestBatchCountMismatchRejectedAtDecode(t *testing.T) {
	h := newHarness(t)
	h.store.watches["861265061482607"] = &store.WatchRegistryEntry{
		IMEI: "861265061482607", PatientID: "P2", HospitalID: "H2",
	}
	h.store.patients["P2"] = &model.Patient{PatientID: "P2"}

	payload := []byte(`{"IMEI":"861265061482607","num_datas":3,"data":[{"heartRate":70}]}`)
	h.feed(h.watch, busadapter.InboundMessage{
		Topic: "iMEDE_watch/AP55", Payload: payload, ReceivedAt: time.Now().UTC(),
	})

	decodeEvents := h.recorder.byStep(model.StepDecoded)
	if len(decodeEvents) != 1 || decodeEvents[0].Status != model.FlowError {
		t.Fatalf("step-2 events = %+v, want one error for num_datas mismatch", decodeEvents)
	}
	h.store.mu.Lock()
	total := len(h.store.history)
	h.store.mu.Unlock()
	if total != 0 {
		t.Errorf("history rows = %d, want 0", total)
	}
}
