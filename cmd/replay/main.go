// Command replay feeds a captured bus payload file through the three
// ingestion pipelines against a live document store, for local testing
// and backfill. The capture format is one JSON object per line:
//
//	{"topic":"dusun_pub","payload":{...},"received_at":"2028-03-14T06:32:51Z"}
//
// payload may be any JSON value (it is re-serialized to raw bytes);
// received_at is optional and defaults to the current time.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/telehealth/core/internal/busadapter"
	"github.com/telehealth/core/internal/config"
	"github.com/telehealth/core/internal/normalizer"
	"github.com/telehealth/core/internal/persister"
	"github.com/telehealth/core/internal/pipeline"
	"github.com/telehealth/core/internal/resolver"
	"github.com/telehealth/core/internal/store/mongostore"
)

type captureLine struct {
	Topic      string          `json:"topic"`
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt time.Time       `json:"received_at"`
}

func main() {
	file := flag.String("file", "", "Capture file to replay (required)")
	storeURI := flag.String("store-uri", "mongodb://127.0.0.1:27017", "Document store URI")
	storeDB := flag.String("store-db", "telehealth", "Document store database name")
	defaultHospital := flag.String("default-hospital", "", "Hospital ID used when every lookup fails")
	inFlight := flag.Int("in-flight", 1, "Concurrent messages per pipeline (1 preserves capture order)")
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "Usage: replay -file capture.jsonl [-store-uri ...]")
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg := config.Config{
		Store: config.StoreConfig{
			URI:      *storeURI,
			Database: *storeDB,
		},
		DefaultHospitalID:   *defaultHospital,
		InFlightPerPipeline: *inFlight,
	}
	cfg = cfg.WithDefaults()

	ctx := context.Background()
	db, err := mongostore.Connect(ctx, cfg.Store)
	if err != nil {
		logger.Error("document store connection failed", "uri", cfg.Store.URI, "error", err)
		os.Exit(1)
	}
	defer db.Disconnect(ctx)

	res := resolver.New(db, mongostore.HospitalView{Store: db}, db, cfg.DefaultHospitalID)
	norm := normalizer.New()
	// No emitter and no fanout hub: a replay writes history, snapshots,
	// and the FHIR shadow, but does not produce live dashboard traffic.
	pers := persister.New(db, db, db, db, nil, nil, cfg.Persist, logger)
	res.SetOrganizationShadow(pers)

	pipelines := []*pipeline.Pipeline{
		pipeline.NewGatewayBoxPipeline(res, norm, pers, nil, cfg.InFlightPerPipeline, cfg.Persist.AbandonAfter, logger),
		pipeline.NewWatchPipeline(res, norm, pers, nil, cfg.InFlightPerPipeline, cfg.Persist.AbandonAfter, logger),
		pipeline.NewKioskPipeline(res, norm, pers, nil, cfg.InFlightPerPipeline, cfg.Persist.AbandonAfter, logger),
	}
	router := pipeline.NewRouter(pipelines, logger)
	for _, p := range pipelines {
		p.Start()
	}

	messages := make(chan busadapter.InboundMessage)
	done := make(chan struct{})
	go func() {
		router.Run(messages)
		close(done)
	}()

	f, err := os.Open(*file)
	if err != nil {
		logger.Error("open capture file", "file", *file, "error", err)
		os.Exit(1)
	}
	defer f.Close()

	var fed, skipped int
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var capture captureLine
		if err := json.Unmarshal(line, &capture); err != nil {
			logger.Warn("skipping malformed capture line", "error", err)
			skipped++
			continue
		}
		receivedAt := capture.ReceivedAt
		if receivedAt.IsZero() {
			receivedAt = time.Now().UTC()
		}
		messages <- busadapter.InboundMessage{
			Topic:      capture.Topic,
			Payload:    capture.Payload,
			ReceivedAt: receivedAt,
		}
		fed++
	}
	if err := scanner.Err(); err != nil {
		logger.Error("reading capture file", "error", err)
	}

	close(messages)
	<-done
	for _, p := range pipelines {
		p.Stop()
	}

	fmt.Printf("replayed %d messages (%d skipped)\n", fed, skipped)
}
