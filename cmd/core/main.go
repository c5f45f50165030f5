package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/telehealth/core/internal/auth"
	"github.com/telehealth/core/internal/busadapter"
	"github.com/telehealth/core/internal/config"
	"github.com/telehealth/core/internal/eventlogstore"
	"github.com/telehealth/core/internal/events"
	"github.com/telehealth/core/internal/fanout"
	"github.com/telehealth/core/internal/flowevent"
	"github.com/telehealth/core/internal/metrics"
	"github.com/telehealth/core/internal/model"
	"github.com/telehealth/core/internal/normalizer"
	"github.com/telehealth/core/internal/otel"
	"github.com/telehealth/core/internal/persister"
	"github.com/telehealth/core/internal/pipeline"
	"github.com/telehealth/core/internal/resolver"
	"github.com/telehealth/core/internal/store/mongostore"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address (event-log API, /ws, /metrics, /healthz)")
	busEndpoint := flag.String("bus-endpoint", "tcp://127.0.0.1:1883", "MQTT broker endpoint")
	busClientID := flag.String("bus-client-id", "telehealth-core", "MQTT client ID")
	busUsername := flag.String("bus-username", "", "MQTT username")
	busPassword := flag.String("bus-password", "", "MQTT password")
	storeURI := flag.String("store-uri", "mongodb://127.0.0.1:27017", "Document store URI")
	storeDB := flag.String("store-db", "telehealth", "Document store database name")
	storeTLSCA := flag.String("store-tls-ca", "", "Document store TLS CA file (enables TLS)")
	storeTLSCert := flag.String("store-tls-cert", "", "Document store TLS client certificate file")
	defaultHospital := flag.String("default-hospital", "", "Hospital ID used when every lookup fails")
	inFlight := flag.Int("in-flight", config.DefaultInFlightPerPipeline, "Concurrent messages per pipeline")
	persistRetries := flag.Int("persist-retries", config.DefaultPersistRetryBudget, "History insert retry budget")
	retentionDays := flag.Int("eventlog-retention-days", config.DefaultEventLogRetentionDays, "Event log retention in days")
	authMode := flag.String("auth-mode", "none", "Authentication mode: none, api_key, jwt")
	apiKeys := flag.String("api-keys", "", "Comma-separated API keys (for api_key mode)")
	jwtSecret := flag.String("jwt-secret", "", "JWT secret (for jwt mode)")
	jwtIssuer := flag.String("jwt-issuer", "", "Expected JWT issuer")
	insecure := flag.Bool("insecure", false, "Allow unauthenticated mode (only safe on loopback)")
	otelExporter := flag.String("otel-exporter", "none", "OTel exporter: none, stdout, otlp-grpc, otlp-http")
	otelEndpoint := flag.String("otel-endpoint", "", "OTLP endpoint (e.g. localhost:4317)")
	otelInsecure := flag.Bool("otel-insecure", false, "Disable TLS for OTLP connections")
	devMode := flag.Bool("dev", false, "Development mode: binds to loopback, disables auth")
	flag.Parse()

	if *devMode {
		*addr = "127.0.0.1:8080"
		*insecure = true
		*authMode = "none"
		fmt.Println("")
		fmt.Println("╔════════════════════════════════════════════════════════════╗")
		fmt.Println("║  DEVELOPMENT MODE - DO NOT USE IN PRODUCTION               ║")
		fmt.Println("║  Auth disabled, bound to loopback only (127.0.0.1:8080)    ║")
		fmt.Println("╚════════════════════════════════════════════════════════════╝")
		fmt.Println("")
	}

	if strings.EqualFold(*authMode, string(auth.AuthModeNone)) && !*insecure {
		fmt.Fprintln(os.Stderr, "Refusing to start with auth disabled without --insecure")
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	eventLog := events.NewEventLogger("telehealth-core")

	cfg := config.Config{
		Bus: config.BusConfig{
			Endpoint: *busEndpoint,
			ClientID: *busClientID,
			Username: *busUsername,
			Password: *busPassword,
			QoS:      config.DefaultBusQoS,
		},
		Store: config.StoreConfig{
			URI:          *storeURI,
			Database:     *storeDB,
			TLSCAFile:    *storeTLSCA,
			TLSClientCrt: *storeTLSCert,
			TLSEnabled:   *storeTLSCA != "",
		},
		Emitter: config.EmitterConfig{
			IngestURL: ingestBaseURL(*addr),
		},
		EventLog: config.EventLogConfig{
			RetentionDays: *retentionDays,
			ListenAddr:    *addr,
		},
		Persist: config.PersistConfig{
			RetryBudget: *persistRetries,
		},
		DefaultHospitalID:   *defaultHospital,
		InFlightPerPipeline: *inFlight,
	}
	cfg = cfg.WithDefaults()

	eventLog.LogStartup(cfg.Bus.Endpoint, cfg.Store.Database, cfg.DefaultHospitalID)

	ctx := context.Background()

	db, err := mongostore.Connect(ctx, cfg.Store)
	if err != nil {
		logger.Error("document store connection failed", "uri", cfg.Store.URI, "error", err)
		os.Exit(1)
	}

	tracer, err := otel.NewTracer(ctx, &otel.Config{
		Enabled:      *otelExporter != "none",
		ServiceName:  "telehealth-core",
		ExporterType: otel.ExporterType(*otelExporter),
		OTLPEndpoint: *otelEndpoint,
		OTLPInsecure: *otelInsecure,
		SampleRate:   1.0,
	})
	if err != nil {
		logger.Error("tracer init failed", "error", err)
		os.Exit(1)
	}
	otelMetrics, err := otel.NewMetrics(ctx, &otel.MetricsConfig{
		Enabled:      *otelExporter != "none",
		ServiceName:  "telehealth-core",
		ExporterType: otel.ExporterType(*otelExporter),
		OTLPEndpoint: *otelEndpoint,
		OTLPInsecure: *otelInsecure,
	})
	if err != nil {
		logger.Error("otel metrics init failed", "error", err)
		os.Exit(1)
	}
	promMetrics := metrics.NewIngest()

	logStore := eventlogstore.New(eventlogstore.Config{
		RetentionDays: cfg.EventLog.RetentionDays,
		PageLimitMax:  cfg.EventLog.PageLimitMax,
		PageLimit:     cfg.EventLog.PageLimit,
	})
	logServer := eventlogstore.NewServer(logStore, logger)
	sweeper := eventlogstore.NewSweeper(logStore, 24*time.Hour, logger)

	hub := fanout.NewHub(cfg.Fanout, db, logStore, logger)
	hub.SetConnectionHooks(
		func() { otelMetrics.IncrementConnections(ctx) },
		func() { otelMetrics.DecrementConnections(ctx) },
	)
	promMetrics.RegisterFanoutGauges(hub.ConnectionCount, hub.DegradedCount)

	authConfig := &auth.Config{
		Mode:      auth.AuthMode(*authMode),
		JWTIssuer: *jwtIssuer,
		SkipPaths: []string{"/healthz", "/readyz", "/metrics"},
	}
	if *apiKeys != "" {
		authConfig.APIKeys = strings.Split(*apiKeys, ",")
	}
	if *jwtSecret != "" {
		authConfig.JWTSecret = []byte(*jwtSecret)
	}
	var authenticator auth.Authenticator
	switch authConfig.Mode {
	case auth.AuthModeAPIKey:
		authenticator = auth.NewAPIKeyAuthenticator(authConfig)
		// The local flow emitters must pass the same edge.
		if len(authConfig.APIKeys) > 0 {
			cfg.Emitter.IngestToken = authConfig.APIKeys[0]
		}
	case auth.AuthModeJWT:
		authenticator = auth.NewJWTAuthenticator(authConfig)
	}

	res := resolver.New(db, mongostore.HospitalView{Store: db}, db, cfg.DefaultHospitalID)
	norm := normalizer.New()

	observe := func(event model.FlowEvent) {
		promMetrics.ObserveFlowEvent(event)
		hub.BroadcastFlowEvent(event)
	}

	newEmitter := func(source string) *flowevent.Emitter {
		em := flowevent.NewEmitter(cfg.Emitter, cfg.Persist, source, logger)
		em.SetObserver(observe)
		promMetrics.RegisterEmitterGauges(source,
			func() int64 { return int64(em.Stats().Depth) },
			func() int64 { return em.Stats().Dropped },
		)
		return em
	}

	newPersister := func(em *flowevent.Emitter) *persister.Persister {
		p := persister.New(db, db, db, db, em, hub, cfg.Persist, logger)
		p.SetMetrics(promMetrics)
		return p
	}

	gwEmitter := newEmitter("pipeline.gatewaybox")
	watchEmitter := newEmitter("pipeline.watch")
	kioskEmitter := newEmitter("pipeline.kiosk")

	gwPersister := newPersister(gwEmitter)
	watchPersister := newPersister(watchEmitter)
	kioskPersister := newPersister(kioskEmitter)

	// The resolver mirrors every hospital it fully loads into the FHIR
	// organization shadow; any persister serves, they share the store.
	res.SetOrganizationShadow(gwPersister)

	pipelines := []*pipeline.Pipeline{
		pipeline.NewGatewayBoxPipeline(res, norm, gwPersister, gwEmitter, cfg.InFlightPerPipeline, cfg.Persist.AbandonAfter, logger),
		pipeline.NewWatchPipeline(res, norm, watchPersister, watchEmitter, cfg.InFlightPerPipeline, cfg.Persist.AbandonAfter, logger),
		pipeline.NewKioskPipeline(res, norm, kioskPersister, kioskEmitter, cfg.InFlightPerPipeline, cfg.Persist.AbandonAfter, logger),
	}
	for _, p := range pipelines {
		p.SetTracing(tracer, otelMetrics)
	}
	router := pipeline.NewRouter(pipelines, logger)

	bus := busadapter.New(cfg.Bus, logger)
	bus.SetOnReconnect(func() { otelMetrics.RecordBusReconnect(ctx) })

	mux := http.NewServeMux()
	logServer.Routes(mux)
	mux.Handle("/ws", fanout.NewServer(hub, authenticator, logger))
	mux.Handle("/metrics", promMetrics.Handler())
	mux.Handle("/healthz", bus.HealthHandler())
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	var handler http.Handler = mux
	if authConfig.Mode != auth.AuthModeNone {
		handler = auth.NewMiddleware(authConfig, authenticator).Handler(handler)
	}
	handler = otel.Middleware(tracer)(handler)

	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", "addr", *addr, "error", err)
			os.Exit(1)
		}
	}()
	eventLog.LogComponentStarted("http_server")

	sweeper.Start()
	eventLog.LogComponentStarted("retention_sweeper")

	gwEmitter.Start()
	watchEmitter.Start()
	kioskEmitter.Start()
	eventLog.LogComponentStarted("flow_emitters")

	for _, p := range pipelines {
		p.Start()
		eventLog.LogPipelineStarted(string(p.Family()), cfg.InFlightPerPipeline, p.Topics())
	}

	go router.Run(bus.Messages())
	bus.Start()
	eventLog.LogComponentStarted("bus_adapter")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	eventLog.LogShutdownBegun(sig.String())
	shutdownStart := time.Now()

	// Stop new bus reads first, then let in-flight persistence finish,
	// then flush the emitters, then tear down the edges.
	bus.Stop()
	router.Wait()

	drained := make(chan struct{})
	go func() {
		for _, p := range pipelines {
			p.Stop()
		}
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(config.DefaultShutdownDrain):
		logger.Warn("pipeline drain exceeded budget, abandoning in-flight messages")
	}
	eventLog.LogComponentStopped("pipelines")

	flushed := make(chan struct{})
	go func() {
		gwEmitter.Stop()
		watchEmitter.Stop()
		kioskEmitter.Stop()
		close(flushed)
	}()
	select {
	case <-flushed:
	case <-time.After(config.DefaultShutdownFlush):
		logger.Warn("emitter flush exceeded budget, dropping queued flow events")
	}
	eventLog.LogComponentStopped("flow_emitters")

	hub.Shutdown()
	eventLog.LogComponentStopped("fanout_hub")

	sweeper.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown", "error", err)
	}
	if err := tracer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("tracer shutdown", "error", err)
	}
	if err := otelMetrics.Shutdown(shutdownCtx); err != nil {
		logger.Warn("otel metrics shutdown", "error", err)
	}
	if err := db.Disconnect(shutdownCtx); err != nil {
		logger.Warn("document store disconnect", "error", err)
	}

	eventLog.LogShutdownComplete(time.Since(shutdownStart).Milliseconds())
}

// ingestBaseURL turns the HTTP listen address into the loopback base URL
// the flow emitters post to.
func ingestBaseURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "http://127.0.0.1" + addr
	}
	return "http://" + addr
}
