package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	screeningservice "baton/contexts/media-safety/screening-service"
	"baton/contexts/media-safety/screening-service/adapters/classifier"
	screeningmemory "baton/contexts/media-safety/screening-service/adapters/memory"
	relayservice "baton/contexts/relay-core/relay-service"
	"baton/contexts/relay-core/relay-service/adapters/arbundle"
	"baton/contexts/relay-core/relay-service/adapters/evm"
	postgresadapter "baton/contexts/relay-core/relay-service/adapters/postgres"
	relayworkers "baton/contexts/relay-core/relay-service/application/workers"
	"baton/contexts/relay-core/relay-service/domain/entities"
	"baton/internal/platform/config"
	"baton/internal/platform/db"
	"baton/internal/platform/httpserver"
	"baton/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	nodes    []*evm.Node
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres *db.Postgres
	nodes    []*evm.Node

	reconciler        relayworkers.MirrorReconciler
	outboxRelay       relayworkers.OutboxRelay
	reconcileInterval time.Duration
	outboxInterval    time.Duration

	logger *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")

	screening := buildScreening(cfg, logger)

	if cfg.Mode == config.ModeMemory {
		relay := relayservice.NewInMemoryModule(logger)
		logger.Info("api wired on in-memory adapters",
			"event", "bootstrap_memory_mode",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
		return &APIApp{
			server: httpserver.New(relay, screening, logger, normalizeAddr(cfg.HTTPPort)),
			logger: logger,
		}, nil
	}

	stack, err := buildLedgerStack(context.Background(), cfg, logger, screening)
	if err != nil {
		return nil, err
	}
	return &APIApp{
		server:   httpserver.New(stack.relay, screening, logger, normalizeAddr(cfg.HTTPPort)),
		postgres: stack.postgres,
		nodes:    stack.nodes,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")

	if cfg.Mode == config.ModeMemory {
		// The memory journal lives inside the api process; a separate worker
		// would reconcile an empty store forever.
		return nil, errors.New("RELAY_MODE=memory runs without a worker process")
	}

	screening := buildScreening(cfg, logger)
	stack, err := buildLedgerStack(context.Background(), cfg, logger, screening)
	if err != nil {
		return nil, err
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		return nil, err
	}

	return &WorkerApp{
		postgres:   stack.postgres,
		nodes:      stack.nodes,
		reconciler: stack.relay.Reconciler,
		outboxRelay: relayworkers.OutboxRelay{
			Outbox:    stack.repo,
			Publisher: kafka,
			Clock:     postgresadapter.SystemClock{},
			Topic:     cfg.OutboxTopic,
			BatchSize: cfg.OutboxBatchSize,
			Logger:    logger,
		},
		reconcileInterval: cfg.ReconcileInterval,
		outboxInterval:    cfg.OutboxInterval,
		logger:            logger,
	}, nil
}

// ledgerStack bundles everything ledger mode dials so both processes share one
// wiring path.
type ledgerStack struct {
	relay    relayservice.Module
	repo     *postgresadapter.Repository
	postgres *db.Postgres
	nodes    []*evm.Node
}

func buildLedgerStack(
	ctx context.Context,
	cfg config.Config,
	logger *slog.Logger,
	screening screeningservice.Module,
) (*ledgerStack, error) {
	if err := cfg.ValidateLedgerMode(); err != nil {
		return nil, err
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	if err := pg.AutoMigrate(postgresadapter.Models()...); err != nil {
		return nil, err
	}
	repo := postgresadapter.NewRepository(pg.DB, logger)

	catalogNode, err := evm.Dial(ctx, entities.LedgerCatalog, cfg.CatalogRPCURL, cfg.CatalogNoncesAddr, cfg.CatalogRegistryAddr)
	if err != nil {
		return nil, err
	}
	catalog, err := evm.NewCatalogNode(catalogNode, cfg.CatalogNamesAddr, cfg.CatalogProfilesAddr)
	if err != nil {
		return nil, err
	}
	accessNode, err := evm.Dial(ctx, entities.LedgerAccess, cfg.AccessRPCURL, cfg.AccessNoncesAddr, cfg.AccessRegistryAddr)
	if err != nil {
		return nil, err
	}

	catalogCodec, err := evm.NewCatalogCodec(evm.CatalogAddresses{
		Nonces:    cfg.CatalogNoncesAddr,
		Registry:  cfg.CatalogRegistryAddr,
		Names:     cfg.CatalogNamesAddr,
		Profiles:  cfg.CatalogProfilesAddr,
		Playlists: cfg.CatalogPlaylistsAddr,
		Posts:     cfg.CatalogPostsAddr,
	})
	if err != nil {
		return nil, err
	}
	accessCodec, err := evm.NewAccessCodec(evm.AccessAddresses{
		Nonces:   cfg.AccessNoncesAddr,
		Registry: cfg.AccessRegistryAddr,
	})
	if err != nil {
		return nil, err
	}

	signer, err := evm.NewSigner(cfg.RelayerKey)
	if err != nil {
		return nil, err
	}

	relay := relayservice.NewModule(relayservice.Dependencies{
		Journal: repo,

		Access:           accessNode,
		AccessSubmitter:  accessNode,
		AccessCodec:      accessCodec,
		Catalog:          catalog,
		CatalogSubmitter: catalogNode,
		CatalogCodec:     catalogCodec,

		Signer: signer,
		Store: arbundle.Store{
			BaseURL: cfg.BundlerURL,
			Token:   cfg.BundlerToken,
			Logger:  logger,
		},
		Screener: screeningGate{service: screening.Service},

		Clock:       postgresadapter.SystemClock{},
		IDGenerator: postgresadapter.UUIDGenerator{},

		PollInterval:      cfg.ReceiptPollInterval,
		ReceiptTimeout:    cfg.ReceiptTimeout,
		MaxParallelChecks: cfg.RegistrarMaxParallelChecks,

		ReconcileRetryDelay:  cfg.ReconcileRetryDelay,
		ReconcileMaxAttempts: cfg.ReconcileMaxAttempts,
		ReconcileBatchSize:   cfg.ReconcileBatchSize,

		Logger: logger,
	})

	return &ledgerStack{
		relay:    relay,
		repo:     repo,
		postgres: pg,
		nodes:    []*evm.Node{catalogNode, accessNode},
	}, nil
}

// buildScreening picks the classifier backend. Without a configured endpoint
// the permissive memory store serves, which is only acceptable outside
// production.
func buildScreening(cfg config.Config, logger *slog.Logger) screeningservice.Module {
	deps := screeningservice.Dependencies{
		MaxMediaBytes: cfg.ScreeningMaxMediaBytes,
		Logger:        logger,
	}
	if strings.TrimSpace(cfg.ClassifierURL) == "" {
		logger.Warn("classifier endpoint not configured, screening runs permissive",
			"event", "bootstrap_classifier_missing",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
		deps.Classifier = screeningmemory.NewStore()
		return screeningservice.NewModule(deps)
	}
	deps.Classifier = classifier.HTTPClassifier{
		BaseURL: strings.TrimRight(cfg.ClassifierURL, "/"),
		APIKey:  cfg.ClassifierAPIKey,
		Logger:  logger,
	}
	return screeningservice.NewModule(deps)
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	for _, node := range a.nodes {
		node.Close()
	}
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	reconcile := time.NewTicker(w.reconcileInterval)
	defer reconcile.Stop()
	outbox := time.NewTicker(w.outboxInterval)
	defer outbox.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"reconcile_interval", w.reconcileInterval.String(),
		"outbox_interval", w.outboxInterval.String(),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-reconcile.C:
			if err := w.reconciler.RunOnce(ctx); err != nil {
				return err
			}
		case <-outbox.C:
			if err := w.outboxRelay.RunOnce(ctx); err != nil {
				return err
			}
		}
	}
}

func (w *WorkerApp) Close() error {
	for _, node := range w.nodes {
		node.Close()
	}
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
