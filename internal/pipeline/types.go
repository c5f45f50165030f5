// Package pipeline implements the three family orchestrators: GatewayBox,
// Watch, and HospitalKiosk. Each wires the Bus Adapter's message stream
// through Decoder → Resolver → Normalizer → Persister → Flow Emitter for
// its own topic set, running a bounded number of messages concurrently
// while preserving per-message step order.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/telehealth/core/internal/decoder"
	"github.com/telehealth/core/internal/flowevent"
	"github.com/telehealth/core/internal/model"
	"github.com/telehealth/core/internal/normalizer"
	"github.com/telehealth/core/internal/otel"
	"github.com/telehealth/core/internal/persister"
	"github.com/telehealth/core/internal/resolver"
)

// toResolution narrows a resolver.Result to what the Normalizer needs;
// built here so this package is the only one that imports both
// internal/resolver and internal/normalizer.
func toResolution(r *resolver.Result) normalizer.Resolution {
	return normalizer.Resolution{PatientID: r.PatientID(), HospitalID: r.HospitalID}
}

// ResolveFunc is the family-specific resolution call (one of
// Resolver.ResolveGatewayBox/ResolveWatch/ResolveKiosk), injected so
// Pipeline itself stays family-agnostic.
type ResolveFunc func(ctx context.Context, decoded *decoder.Decoded) (*resolver.Result, error)

// Deps bundles the collaborators one Pipeline needs, mirroring the
// explicit-capability-injection shape used by Resolver/Persister: no
// pipeline ever reaches for a global. Tracer and OTelMetrics are
// optional; nil disables them.
type Deps struct {
	Family       model.DeviceFamily
	Topics       []string
	Resolve      ResolveFunc
	Normalizer   *normalizer.Normalizer
	Persister    *persister.Persister
	Emitter      *flowevent.Emitter
	Tracer       *otel.Tracer
	OTelMetrics  *otel.Metrics
	InFlight     int
	AbandonAfter time.Duration
	Logger       *slog.Logger
}

// inboundQueueCapacity bounds the per-pipeline dispatch channel. It acts
// purely as a short absorber in front of the worker pool; sustained
// overflow blocks the Router's send, which in turn blocks the Bus
// Adapter's own onMessage callback — the single back-pressure path from
// a slow pipeline to the broker.
const inboundQueueCapacity = 64
