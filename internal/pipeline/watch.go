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

// watchTopics is the Watch family's topic set: vitals,
// AP55 batches, heartbeats, location, sleep data, and the three
// emergency aliases.
var watchTopics = []string{
	"iMEDE_watch/VitalSign",
	"iMEDE_watch/AP55",
	"iMEDE_watch/hb",
	"iMEDE_watch/location",
	"iMEDE_watch/sleepdata",
	"iMEDE_watch/SOS",
	"iMEDE_watch/sos",
	"iMEDE_watch/fallDown",
	"iMEDE_watch/onlineTrigger",
}

// NewWatchPipeline builds the Watch orchestrator.
func NewWatchPipeline(res *resolver.Resolver, norm *normalizer.Normalizer, pers *persister.Persister, emitter *flowevent.Emitter, inFlight int, abandonAfter time.Duration, logger *slog.Logger) *Pipeline {
	return newPipeline(Deps{
		Family: model.FamilyWatch,
		Topics: watchTopics,
		Resolve: func(ctx context.Context, decoded *decoder.Decoded) (*resolver.Result, error) {
			return res.ResolveWatch(ctx, decoded)
		},
		Normalizer:   norm,
		Persister:    pers,
		Emitter:      emitter,
		InFlight:     inFlight,
		AbandonAfter: abandonAfter,
		Logger:       logger,
	})
}
