package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Run modes selecting the adapter set behind the relay ports.
const (
	ModeMemory = "memory"
	ModeLedger = "ledger"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"baton"`
	HTTPPort    string `env:"HTTP_PORT"    envDefault:"8080"`

	// Mode picks the wiring: "memory" runs entirely on in-process fakes,
	// "ledger" connects the EVM nodes, postgres journal and bundler gateway.
	Mode string `env:"RELAY_MODE" envDefault:"memory"`

	PostgresDSN  string   `env:"POSTGRES_DSN"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`

	CatalogRPCURL string `env:"CATALOG_RPC_URL"`
	AccessRPCURL  string `env:"ACCESS_RPC_URL"`

	// RelayerKey is the hex-encoded private key of the account paying gas on
	// both ledgers.
	RelayerKey string `env:"RELAYER_PRIVATE_KEY"`

	CatalogNoncesAddr    string `env:"CATALOG_NONCES_ADDR"`
	CatalogRegistryAddr  string `env:"CATALOG_REGISTRY_ADDR"`
	CatalogNamesAddr     string `env:"CATALOG_NAMES_ADDR"`
	CatalogProfilesAddr  string `env:"CATALOG_PROFILES_ADDR"`
	CatalogPlaylistsAddr string `env:"CATALOG_PLAYLISTS_ADDR"`
	CatalogPostsAddr     string `env:"CATALOG_POSTS_ADDR"`
	AccessNoncesAddr     string `env:"ACCESS_NONCES_ADDR"`
	AccessRegistryAddr   string `env:"ACCESS_REGISTRY_ADDR"`

	BundlerURL   string `env:"BUNDLER_URL"`
	BundlerToken string `env:"BUNDLER_TOKEN"`

	ClassifierURL    string `env:"CLASSIFIER_URL"`
	ClassifierAPIKey string `env:"CLASSIFIER_API_KEY"`

	ScreeningMaxMediaBytes int64 `env:"SCREENING_MAX_MEDIA_BYTES" envDefault:"10485760"`

	ReceiptPollInterval time.Duration `env:"RECEIPT_POLL_INTERVAL" envDefault:"1250ms"`
	ReceiptTimeout      time.Duration `env:"RECEIPT_TIMEOUT"       envDefault:"45s"`

	RegistrarMaxParallelChecks int `env:"REGISTRAR_MAX_PARALLEL_CHECKS" envDefault:"8"`

	ReconcileInterval    time.Duration `env:"RECONCILE_INTERVAL"     envDefault:"30s"`
	ReconcileRetryDelay  time.Duration `env:"RECONCILE_RETRY_DELAY"  envDefault:"2m"`
	ReconcileMaxAttempts int           `env:"RECONCILE_MAX_ATTEMPTS" envDefault:"5"`
	ReconcileBatchSize   int           `env:"RECONCILE_BATCH_SIZE"   envDefault:"20"`

	OutboxInterval  time.Duration `env:"OUTBOX_INTERVAL"   envDefault:"5s"`
	OutboxBatchSize int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`
	OutboxTopic     string        `env:"OUTBOX_TOPIC"      envDefault:"relay.outcomes"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Mode != ModeMemory && cfg.Mode != ModeLedger {
		return Config{}, fmt.Errorf("unknown RELAY_MODE %q", cfg.Mode)
	}
	return cfg, nil
}

// ValidateLedgerMode reports the first missing value ledger mode cannot run
// without. Memory mode needs nothing beyond defaults.
func (c Config) ValidateLedgerMode() error {
	required := []struct {
		name  string
		value string
	}{
		{"POSTGRES_DSN", c.PostgresDSN},
		{"CATALOG_RPC_URL", c.CatalogRPCURL},
		{"ACCESS_RPC_URL", c.AccessRPCURL},
		{"RELAYER_PRIVATE_KEY", c.RelayerKey},
		{"CATALOG_NONCES_ADDR", c.CatalogNoncesAddr},
		{"CATALOG_REGISTRY_ADDR", c.CatalogRegistryAddr},
		{"CATALOG_NAMES_ADDR", c.CatalogNamesAddr},
		{"CATALOG_PROFILES_ADDR", c.CatalogProfilesAddr},
		{"CATALOG_PLAYLISTS_ADDR", c.CatalogPlaylistsAddr},
		{"CATALOG_POSTS_ADDR", c.CatalogPostsAddr},
		{"ACCESS_NONCES_ADDR", c.AccessNoncesAddr},
		{"ACCESS_REGISTRY_ADDR", c.AccessRegistryAddr},
		{"BUNDLER_URL", c.BundlerURL},
	}
	for _, item := range required {
		if item.value == "" {
			return fmt.Errorf("ledger mode requires %s", item.name)
		}
	}
	return nil
}
