package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/telehealth/core/internal/decoder"
	"github.com/telehealth/core/internal/model"
	"github.com/telehealth/core/internal/store"
)

type mockPatients struct {
	byID        map[string]*model.Patient
	byCitizenID map[string]*model.Patient
	bySubDevice map[string]*model.Patient
	byGatewayID map[string]*model.Patient
	byWatchMAC  map[string]*model.Patient
	created     *model.Patient
}

func (m *mockPatients) FindByID(ctx context.Context, id string) (*model.Patient, error) {
	return m.byID[id], nil
}
func (m *mockPatients) FindByCitizenID(ctx context.Context, citizenID string) (*model.Patient, error) {
	return m.byCitizenID[citizenID], nil
}
func (m *mockPatients) FindBySubDeviceMAC(ctx context.Context, mac string) (*model.Patient, error) {
	return m.bySubDevice[mac], nil
}
func (m *mockPatients) FindByGatewayMAC(ctx context.Context, mac string) (*model.Patient, error) {
	return m.byGatewayID[mac], nil
}
func (m *mockPatients) FindByWatchMAC(ctx context.Context, imei string) (*model.Patient, error) {
	return m.byWatchMAC[imei], nil
}
func (m *mockPatients) CreateUnregistered(ctx context.Context, patient *model.Patient) (*model.Patient, error) {
	m.created = patient
	return patient, nil
}
func (m *mockPatients) UpdateSnapshotIfNewer(ctx context.Context, patientID string, observationType model.ObservationType, measuredAt time.Time, snapshot any) (bool, error) {
	return false, nil
}

type mockHospitals struct {
	byGatewayMAC map[string]*model.Hospital
}

func (m *mockHospitals) FindHospitalByID(ctx context.Context, id string) (*model.Hospital, error) {
	return nil, nil
}
func (m *mockHospitals) FindByGatewayMAC(ctx context.Context, mac string) (*model.Hospital, error) {
	return m.byGatewayMAC[mac], nil
}

type mockRegistry struct {
	subDevices map[string]*store.SubDeviceRegistryEntry
	watches    map[string]*store.WatchRegistryEntry
	gatewayAssoc map[string]*store.GatewayHospitalAssociation
}

func (m *mockRegistry) FindSubDeviceByBLEAddr(ctx context.Context, bleAddr string) (*store.SubDeviceRegistryEntry, error) {
	return m.subDevices[bleAddr], nil
}
func (m *mockRegistry) FindWatchByIMEI(ctx context.Context, imei string) (*store.WatchRegistryEntry, error) {
	return m.watches[imei], nil
}
func (m *mockRegistry) FindGatewayHospitalAssociation(ctx context.Context, mac string) (*store.GatewayHospitalAssociation, error) {
	return m.gatewayAssoc[mac], nil
}

func TestResolveGatewayBoxBySubDeviceRegistry(t *testing.T) {
	patients := &mockPatients{byID: map[string]*model.Patient{
		"P1": {PatientID: "P1"},
	}}
	registry := &mockRegistry{subDevices: map[string]*store.SubDeviceRegistryEntry{
		"d616f9641622": {BLEAddr: "d616f9641622", PatientID: "P1", HospitalID: "H1"},
	}}
	r := New(patients, &mockHospitals{}, registry, "DEFAULT")

	decoded := &decoder.Decoded{
		MedicalDeviceList: []decoder.DeviceListEntry{{BLEAddr: "d616f9641622"}},
	}

	result, err := r.ResolveGatewayBox(context.Background(), decoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.PatientID() != "P1" {
		t.Errorf("expected patient P1, got %s", result.PatientID())
	}
	if result.HospitalID != "H1" {
		t.Errorf("expected hospital H1, got %s", result.HospitalID)
	}
	if result.HospitalWarning {
		t.Error("did not expect a hospital warning")
	}
}

func TestResolveGatewayBoxFallsBackToDefaultHospital(t *testing.T) {
	patients := &mockPatients{byGatewayID: map[string]*model.Patient{
		"AA:BB": {PatientID: "P2"},
	}}
	r := New(patients, &mockHospitals{}, &mockRegistry{}, "DEFAULT_HOSP")

	decoded := &decoder.Decoded{MedicalGatewayMAC: "AA:BB"}

	result, err := r.ResolveGatewayBox(context.Background(), decoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.PatientID() != "P2" {
		t.Errorf("expected patient P2, got %s", result.PatientID())
	}
	if result.HospitalID != "DEFAULT_HOSP" || !result.HospitalWarning {
		t.Errorf("expected default hospital with warning, got %q warning=%v", result.HospitalID, result.HospitalWarning)
	}
}

func TestResolveGatewayBoxUnknownPatient(t *testing.T) {
	r := New(&mockPatients{}, &mockHospitals{}, &mockRegistry{}, "DEFAULT")
	decoded := &decoder.Decoded{MedicalGatewayMAC: "UNKNOWN"}

	_, err := r.ResolveGatewayBox(context.Background(), decoded)
	resErr, ok := err.(*ResolutionError)
	if !ok || resErr.Kind != ErrKindPatientUnknown {
		t.Fatalf("expected ResolutionError{PatientUnknown}, got %v", err)
	}
}

func TestResolveKioskAutoCreatesUnregisteredPatient(t *testing.T) {
	patients := &mockPatients{byCitizenID: map[string]*model.Patient{}}
	hospitals := &mockHospitals{byGatewayMAC: map[string]*model.Hospital{
		"KIOSK-MAC": {HospitalID: "H9"},
	}}
	r := New(patients, hospitals, &mockRegistry{}, "DEFAULT")

	decoded := &decoder.Decoded{KioskCitizenID: "C9", KioskKioskMAC: "KIOSK-MAC"}

	result, err := r.ResolveKiosk(context.Background(), decoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Patient.IsUnregistered() {
		t.Error("expected an UNREGISTERED patient scaffold")
	}
	if result.Patient.CitizenID != "C9" {
		t.Errorf("expected citizen_id C9, got %s", result.Patient.CitizenID)
	}
	if result.HospitalID != "H9" {
		t.Errorf("expected hospital H9, got %s", result.HospitalID)
	}
	if patients.created == nil {
		t.Error("expected CreateUnregistered to have been called")
	}
}

func TestResolveKioskReusesExistingPatient(t *testing.T) {
	patients := &mockPatients{byCitizenID: map[string]*model.Patient{
		"C9": {PatientID: "P9", CitizenID: "C9"},
	}}
	r := New(patients, &mockHospitals{}, &mockRegistry{}, "DEFAULT")

	decoded := &decoder.Decoded{KioskCitizenID: "C9"}
	result, err := r.ResolveKiosk(context.Background(), decoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.PatientID() != "P9" {
		t.Errorf("expected existing patient P9, got %s", result.PatientID())
	}
	if patients.created != nil {
		t.Error("did not expect CreateUnregistered to be called for a known citizen_id")
	}
}

type mockOrganizationShadow struct {
	hospitals []*model.Hospital
}

func (m *mockOrganizationShadow) PersistHospitalShadow(ctx context.Context, hospital *model.Hospital) {
	m.hospitals = append(m.hospitals, hospital)
}

func TestResolveKioskShadowsHospitalOnLookupHit(t *testing.T) {
	patients := &mockPatients{byCitizenID: map[string]*model.Patient{
		"C9": {PatientID: "P9", CitizenID: "C9"},
	}}
	hospitals := &mockHospitals{byGatewayMAC: map[string]*model.Hospital{
		"KIOSK-MAC": {HospitalID: "H9"},
	}}
	shadow := &mockOrganizationShadow{}
	r := New(patients, hospitals, &mockRegistry{}, "DEFAULT")
	r.SetOrganizationShadow(shadow)

	decoded := &decoder.Decoded{KioskCitizenID: "C9", KioskKioskMAC: "KIOSK-MAC"}
	if _, err := r.ResolveKiosk(context.Background(), decoded); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(shadow.hospitals) != 1 || shadow.hospitals[0].HospitalID != "H9" {
		t.Fatalf("expected H9 mirrored to the organization shadow, got %+v", shadow.hospitals)
	}
}

func TestResolveGatewayBoxShadowsHospitalOnMACLookupHit(t *testing.T) {
	patients := &mockPatients{byGatewayID: map[string]*model.Patient{
		"AA:BB": {PatientID: "P2"}, // no hospital_id on the patient
	}}
	hospitals := &mockHospitals{byGatewayMAC: map[string]*model.Hospital{
		"AA:BB": {HospitalID: "H2"},
	}}
	shadow := &mockOrganizationShadow{}
	r := New(patients, hospitals, &mockRegistry{}, "DEFAULT")
	r.SetOrganizationShadow(shadow)

	decoded := &decoder.Decoded{MedicalGatewayMAC: "AA:BB"}
	result, err := r.ResolveGatewayBox(context.Background(), decoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.HospitalID != "H2" || result.HospitalWarning {
		t.Errorf("expected H2 without warning, got %q warning=%v", result.HospitalID, result.HospitalWarning)
	}
	if len(shadow.hospitals) != 1 || shadow.hospitals[0].HospitalID != "H2" {
		t.Fatalf("expected H2 mirrored to the organization shadow, got %+v", shadow.hospitals)
	}
}
