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

// gatewayBoxTopics is the GatewayBox family's topic set:
// device status heartbeats and per-attribute medical readings.
var gatewayBoxTopics = []string{"ESP32_BLE_GW_TX", "dusun_pub"}

// NewGatewayBoxPipeline builds the GatewayBox orchestrator.
func NewGatewayBoxPipeline(res *resolver.Resolver, norm *normalizer.Normalizer, pers *persister.Persister, emitter *flowevent.Emitter, inFlight int, abandonAfter time.Duration, logger *slog.Logger) *Pipeline {
	return newPipeline(Deps{
		Family: model.FamilyGatewayBox,
		Topics: gatewayBoxTopics,
		Resolve: func(ctx context.Context, decoded *decoder.Decoded) (*resolver.Result, error) {
			return res.ResolveGatewayBox(ctx, decoded)
		},
		Normalizer:   norm,
		Persister:    pers,
		Emitter:      emitter,
		InFlight:     inFlight,
		AbandonAfter: abandonAfter,
		Logger:       logger,
	})
}
