package resolver

import (
	"context"

	"github.com/telehealth/core/internal/decoder"
	"github.com/telehealth/core/internal/model"
	"github.com/telehealth/core/internal/store"
)

// OrganizationShadow mirrors resolved hospital records into the FHIR
// organization shadow collection. Consumer-owned so this package does
// not import internal/persister; persister.Persister implements it.
// Implementations must treat failures as warnings — the resolver never
// sees them.
type OrganizationShadow interface {
	PersistHospitalShadow(ctx context.Context, hospital *model.Hospital)
}

// Resolver holds the narrow store interfaces it needs and the configured
// default hospital, all injected explicitly (no hidden globals).
type Resolver struct {
	Patients          store.PatientStore
	Hospitals         store.HospitalStore
	Registry          store.DeviceRegistry
	DefaultHospitalID string

	shadow OrganizationShadow
}

// New builds a Resolver over the given store collaborators.
func New(patients store.PatientStore, hospitals store.HospitalStore, registry store.DeviceRegistry, defaultHospitalID string) *Resolver {
	return &Resolver{
		Patients:          patients,
		Hospitals:         hospitals,
		Registry:          registry,
		DefaultHospitalID: defaultHospitalID,
	}
}

// SetOrganizationShadow installs the FHIR organization mirror, invoked
// each time a hospital lookup returns a full record. Call before the
// pipelines start; not synchronized.
func (r *Resolver) SetOrganizationShadow(shadow OrganizationShadow) {
	r.shadow = shadow
}

// ResolveGatewayBox applies the GatewayBox fallback chain:
// sub_device_mac registry lookup, then the patient's own per-device MAC
// fields, then gateway_mac, in strict order with first-hit-wins.
func (r *Resolver) ResolveGatewayBox(ctx context.Context, decoded *decoder.Decoded) (*Result, error) {
	subDeviceMAC := ""
	if len(decoded.MedicalDeviceList) > 0 {
		subDeviceMAC = decoded.MedicalDeviceList[0].BLEAddr
	}
	gatewayMAC := decoded.MedicalGatewayMAC

	var patient *model.Patient
	registryHospitalID := ""

	if subDeviceMAC != "" {
		entry, err := r.Registry.FindSubDeviceByBLEAddr(ctx, subDeviceMAC)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			p, err := r.Patients.FindByID(ctx, entry.PatientID)
			if err != nil {
				return nil, err
			}
			if p != nil {
				patient = p
				registryHospitalID = entry.HospitalID
			}
		}
	}

	if patient == nil && subDeviceMAC != "" {
		p, err := r.Patients.FindBySubDeviceMAC(ctx, subDeviceMAC)
		if err != nil {
			return nil, err
		}
		patient = p
	}

	if patient == nil && gatewayMAC != "" {
		p, err := r.Patients.FindByGatewayMAC(ctx, gatewayMAC)
		if err != nil {
			return nil, err
		}
		patient = p
	}

	if patient == nil {
		return nil, newPatientUnknown("no gatewaybox lookup method matched sub_device_mac=" + subDeviceMAC + " gateway_mac=" + gatewayMAC)
	}

	if registryHospitalID != "" {
		return &Result{Patient: patient, HospitalID: registryHospitalID}, nil
	}

	hospitalID, warning, err := r.resolveGatewayHospital(ctx, patient, gatewayMAC)
	if err != nil {
		return nil, err
	}
	return &Result{Patient: patient, HospitalID: hospitalID, HospitalWarning: warning}, nil
}

// resolveGatewayHospital implements GatewayBox hospital lookup
// step 4: patient.hospital_id → hospitals.mac_hv01_box == gateway_mac →
// mfc_hv01_boxes.mac_address == gateway_mac → default.
func (r *Resolver) resolveGatewayHospital(ctx context.Context, patient *model.Patient, gatewayMAC string) (string, bool, error) {
	if patient.HospitalID != "" {
		return patient.HospitalID, false, nil
	}
	if gatewayMAC != "" {
		hospital, err := r.Hospitals.FindByGatewayMAC(ctx, gatewayMAC)
		if err != nil {
			return "", false, err
		}
		if hospital != nil {
			if r.shadow != nil {
				r.shadow.PersistHospitalShadow(ctx, hospital)
			}
			return hospital.HospitalID, false, nil
		}

		assoc, err := r.Registry.FindGatewayHospitalAssociation(ctx, gatewayMAC)
		if err != nil {
			return "", false, err
		}
		if assoc != nil {
			return assoc.HospitalID, false, nil
		}
	}
	return r.DefaultHospitalID, true, nil
}

// ResolveWatch applies the Watch fallback chain: the watch
// registry keyed by imei, then the patient's own watch_mac_address field.
func (r *Resolver) ResolveWatch(ctx context.Context, decoded *decoder.Decoded) (*Result, error) {
	imei := decoded.WatchIMEI

	var patient *model.Patient
	registryHospitalID := ""

	entry, err := r.Registry.FindWatchByIMEI(ctx, imei)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		p, err := r.Patients.FindByID(ctx, entry.PatientID)
		if err != nil {
			return nil, err
		}
		if p != nil {
			patient = p
			registryHospitalID = entry.HospitalID
		}
	}

	if patient == nil {
		p, err := r.Patients.FindByWatchMAC(ctx, imei)
		if err != nil {
			return nil, err
		}
		patient = p
	}

	if patient == nil {
		return nil, newPatientUnknown("no watch lookup method matched imei=" + imei)
	}

	if patient.HospitalID != "" {
		return &Result{Patient: patient, HospitalID: patient.HospitalID}, nil
	}
	if registryHospitalID != "" {
		return &Result{Patient: patient, HospitalID: registryHospitalID}, nil
	}
	return &Result{Patient: patient, HospitalID: r.DefaultHospitalID, HospitalWarning: true}, nil
}

// ResolveKiosk applies the Kiosk resolution rule: a
// citizen_id match on an existing patient, or an auto-created unregistered
// scaffold when none is found. Kiosk resolution never fails patient
// resolution — only GatewayBox and Watch can.
func (r *Resolver) ResolveKiosk(ctx context.Context, decoded *decoder.Decoded) (*Result, error) {
	hospitalID, warning, err := r.resolveKioskHospital(ctx, decoded.KioskKioskMAC)
	if err != nil {
		return nil, err
	}

	patient, err := r.Patients.FindByCitizenID(ctx, decoded.KioskCitizenID)
	if err != nil {
		return nil, err
	}

	if patient == nil {
		scaffold := &model.Patient{
			CitizenID:  decoded.KioskCitizenID,
			HospitalID: hospitalID,
			Name:       model.PatientName{Marker: "UNREGISTERED"},
			CreatedBy:  "kiosk",
		}
		created, err := r.Patients.CreateUnregistered(ctx, scaffold)
		if err != nil {
			return nil, err
		}
		patient = created
	}

	return &Result{Patient: patient, HospitalID: hospitalID, HospitalWarning: warning}, nil
}

// resolveKioskHospital implements Kiosk hospital lookup:
// kiosk mac → hospitals.mac_hv01_box → mfc_hv01_boxes.mac_address → default.
func (r *Resolver) resolveKioskHospital(ctx context.Context, kioskMAC string) (string, bool, error) {
	if kioskMAC != "" {
		hospital, err := r.Hospitals.FindByGatewayMAC(ctx, kioskMAC)
		if err != nil {
			return "", false, err
		}
		if hospital != nil {
			if r.shadow != nil {
				r.shadow.PersistHospitalShadow(ctx, hospital)
			}
			return hospital.HospitalID, false, nil
		}

		assoc, err := r.Registry.FindGatewayHospitalAssociation(ctx, kioskMAC)
		if err != nil {
			return "", false, err
		}
		if assoc != nil {
			return assoc.HospitalID, false, nil
		}
	}
	return r.DefaultHospitalID, true, nil
}
