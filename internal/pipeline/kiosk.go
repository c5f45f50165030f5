package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/telehealth/core/internal/decoder"
	"github.com/telehealth/core/internal/flowevent"
	"github.com/telehealth/core/internal/model"
	"github.com/telehealth/core/internal/normalizer"
	"github.com/telehealth/core/internal/persister"
	"github.com/telehealth/core/internal/resolver"
)

// kioskTopics is the HospitalKiosk family's topic set.
var kioskTopics = []string{"CM4_BLE_GW_TX"}

// NewKioskPipeline builds the HospitalKiosk orchestrator. Unlike the
// other two families, ResolveKiosk never returns a patient-unknown
// error: an unmatched citizen_id auto-creates an unregistered patient
// scaffold instead of aborting the message.
func NewKioskPipeline(res *resolver.Resolver, norm *normalizer.Normalizer, pers *persister.Persister, emitter *flowevent.Emitter, inFlight int, abandonAfter time.Duration, logger *slog.Logger) *Pipeline {
	return newPipeline(Deps{
		Family: model.FamilyHospitalKiosk,
		Topics: kioskTopics,
		Resolve: func(ctx context.Context, decoded *decoder.Decoded) (*resolver.Result, error) {
			return res.ResolveKiosk(ctx, decoded)
		},
		Normalizer:   norm,
		Persister:    pers,
		Emitter:      emitter,
		InFlight:     inFlight,
		AbandonAfter: abandonAfter,
		Logger:       logger,
	})
}
