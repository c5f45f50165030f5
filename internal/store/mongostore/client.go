// Package mongostore is the sole concrete implementation of the
// internal/store narrow interfaces, backed by go.mongodb.org/mongo-driver.
package mongostore

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/telehealth/core/internal/config"
)

// Collection names.
const (
	collPatients       = "patients"
	collHospitals      = "hospitals"
	collGatewayBoxes   = "mfc_hv01_boxes"
	collSubDeviceRegis = "sub_device_registry"
	collWatchRegistry  = "watch_registry"
	collEmergencyAlarm = "emergency_alarm"
	collFHIRObs        = "fhir_observations"
	collFHIROrgs       = "fhir_organizations"
	collFHIRLocations  = "fhir_locations"
	collEventLogs      = "event_logs"
)

// Store is the single mongo-backed type satisfying every narrow interface
// in internal/store. One concrete implementation over several
// consumer-owned interfaces gives each collaborator the interface it
// needs, not a monolithic repository type exposed wholesale.
type Store struct {
	client   *mongo.Client
	database *mongo.Database
	timeout  time.Duration
}

// Connect dials the document store per cfg and verifies connectivity with
// a ping bounded by cfg.Timeout.
func Connect(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	clientOpts := options.Client().ApplyURI(cfg.URI)

	if cfg.TLSEnabled {
		tlsConfig, err := buildTLSConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("mongostore: building tls config: %w", err)
		}
		clientOpts.SetTLSConfig(tlsConfig)
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongostore: connect: %w", err)
	}

	pingCtx, cancelPing := context.WithTimeout(ctx, cfg.Timeout)
	defer cancelPing()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, fmt.Errorf("mongostore: ping: %w", err)
	}

	return &Store{
		client:   client,
		database: client.Database(cfg.Database),
		timeout:  cfg.Timeout,
	}, nil
}

func buildTLSConfig(cfg config.StoreConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{}

	if cfg.TLSCAFile != "" {
		caCert, err := os.ReadFile(cfg.TLSCAFile)
		if err != nil {
			return nil, fmt.Errorf("reading ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("no certificates parsed from %s", cfg.TLSCAFile)
		}
		tlsConfig.RootCAs = pool
	}

	if cfg.TLSClientCrt != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLSClientCrt, cfg.TLSClientCrt)
		if err != nil {
			return nil, fmt.Errorf("loading client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

// Disconnect closes the underlying client connection.
func (s *Store) Disconnect(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}
