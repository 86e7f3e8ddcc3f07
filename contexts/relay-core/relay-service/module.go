package relayservice

import (
	"log/slog"
	"time"

	httpadapter "baton/contexts/relay-core/relay-service/adapters/http"
	"baton/contexts/relay-core/relay-service/adapters/memory"
	application "baton/contexts/relay-core/relay-service/application"
	"baton/contexts/relay-core/relay-service/application/commands"
	"baton/contexts/relay-core/relay-service/application/queries"
	"baton/contexts/relay-core/relay-service/application/workers"
	"baton/contexts/relay-core/relay-service/domain/entities"
	"baton/contexts/relay-core/relay-service/ports"
)

// Module is the composition surface for the relay service. Runtime wiring
// consumes Handler and the workers; Fakes is populated only by the in-memory
// constructor for tests and local development.
type Module struct {
	Handler httpadapter.Handler

	RegisterName    commands.RegisterNameUseCase
	UpdateProfile   commands.UpdateProfileUseCase
	RegisterContent commands.RegisterContentUseCase
	SubmitPlaylist  commands.SubmitPlaylistUseCase
	CreatePost      commands.CreatePostUseCase
	JobStatus       queries.JobStatusUseCase

	Engine     *application.Engine
	Registrar  application.Registrar
	Recorder   application.OutcomeRecorder
	Reconciler workers.MirrorReconciler

	Fakes *Fakes
}

// Fakes exposes the in-memory adapters behind an in-memory module.
type Fakes struct {
	AccessLedger  *memory.Ledger
	CatalogLedger *memory.Ledger
	Journal       *memory.Journal
	Store         *memory.ObjectStore
	Screener      *memory.Screener
	Transform     *memory.Transform
	Clock         *memory.Clock
	IDs           *memory.IDGenerator
}

type Dependencies struct {
	Journal ports.JournalRepository

	Access           ports.LedgerReader
	AccessSubmitter  ports.LedgerSubmitter
	AccessCodec      ports.AccessCodec
	Catalog          ports.CatalogReader
	CatalogSubmitter ports.LedgerSubmitter
	CatalogCodec     ports.CatalogCodec

	Signer    ports.TxSigner
	Store     ports.ObjectStore
	Screener  ports.ContentScreener
	Transform ports.TransformHook

	Clock       ports.Clock
	IDGenerator ports.IDGenerator

	PollInterval      time.Duration
	ReceiptTimeout    time.Duration
	MaxParallelChecks int

	ReconcileRetryDelay  time.Duration
	ReconcileMaxAttempts int
	ReconcileBatchSize   int

	Logger *slog.Logger
}

// NewModule wires the relay use-cases against explicit ports.
func NewModule(deps Dependencies) Module {
	engine := &application.Engine{
		Submitters: map[entities.LedgerName]ports.LedgerSubmitter{
			entities.LedgerAccess:  deps.AccessSubmitter,
			entities.LedgerCatalog: deps.CatalogSubmitter,
		},
		Signer:         deps.Signer,
		Coordinator:    application.NewCoordinator(),
		PollInterval:   deps.PollInterval,
		ReceiptTimeout: deps.ReceiptTimeout,
		Logger:         deps.Logger,
	}
	verifier := application.Verifier{Clock: deps.Clock}
	recorder := application.OutcomeRecorder{
		Journal: deps.Journal,
		IDs:     deps.IDGenerator,
		Clock:   deps.Clock,
		Logger:  deps.Logger,
	}
	registrar := application.Registrar{
		Catalog:           deps.Catalog,
		Codec:             deps.CatalogCodec,
		MaxParallelChecks: deps.MaxParallelChecks,
		Logger:            deps.Logger,
	}

	registerName := commands.RegisterNameUseCase{
		Verifier: verifier,
		Recorder: recorder,
		Engine:   engine,
		Catalog:  deps.Catalog,
		Codec:    deps.CatalogCodec,
		Logger:   deps.Logger,
	}
	updateProfile := commands.UpdateProfileUseCase{
		Verifier: verifier,
		Recorder: recorder,
		Engine:   engine,
		Catalog:  deps.Catalog,
		Codec:    deps.CatalogCodec,
		Logger:   deps.Logger,
	}
	registerContent := commands.RegisterContentUseCase{
		Verifier:    verifier,
		Recorder:    recorder,
		Registrar:   registrar,
		Engine:      engine,
		Access:      deps.Access,
		AccessCodec: deps.AccessCodec,
		Catalog:     deps.Catalog,
		Codec:       deps.CatalogCodec,
		Screener:    deps.Screener,
		Store:       deps.Store,
		Logger:      deps.Logger,
	}
	submitPlaylist := commands.SubmitPlaylistUseCase{
		Verifier:  verifier,
		Recorder:  recorder,
		Registrar: registrar,
		Engine:    engine,
		Catalog:   deps.Catalog,
		Codec:     deps.CatalogCodec,
		Screener:  deps.Screener,
		Store:     deps.Store,
		Logger:    deps.Logger,
	}
	createPost := commands.CreatePostUseCase{
		Verifier:  verifier,
		Recorder:  recorder,
		Registrar: registrar,
		Engine:    engine,
		Catalog:   deps.Catalog,
		Codec:     deps.CatalogCodec,
		Screener:  deps.Screener,
		Transform: deps.Transform,
		Store:     deps.Store,
		Clock:     deps.Clock,
		Logger:    deps.Logger,
	}
	jobStatus := queries.JobStatusUseCase{Journal: deps.Journal}

	handler := httpadapter.Handler{
		RegisterName:    registerName,
		UpdateProfile:   updateProfile,
		RegisterContent: registerContent,
		SubmitPlaylist:  submitPlaylist,
		CreatePost:      createPost,
		JobStatus:       jobStatus,
		Logger:          deps.Logger,
	}

	reconciler := workers.MirrorReconciler{
		Journal:     deps.Journal,
		Registrar:   registrar,
		Engine:      engine,
		IDs:         deps.IDGenerator,
		Clock:       deps.Clock,
		RetryDelay:  deps.ReconcileRetryDelay,
		MaxAttempts: deps.ReconcileMaxAttempts,
		BatchSize:   deps.ReconcileBatchSize,
		Logger:      deps.Logger,
	}

	return Module{
		Handler:         handler,
		RegisterName:    registerName,
		UpdateProfile:   updateProfile,
		RegisterContent: registerContent,
		SubmitPlaylist:  submitPlaylist,
		CreatePost:      createPost,
		JobStatus:       jobStatus,
		Engine:          engine,
		Registrar:       registrar,
		Recorder:        recorder,
		Reconciler:      reconciler,
	}
}

// Memory ledgers run anvil-style chain ids so fixtures read naturally.
const (
	memoryCatalogChainID = 31337
	memoryAccessChainID  = 31338
)

// NewInMemoryModule wires the relay use cases against in-memory adapters.
// Receipt polling is tightened so tests never sleep on the defaults.
func NewInMemoryModule(logger *slog.Logger) Module {
	access := memory.NewLedger(entities.LedgerAccess, memoryAccessChainID)
	catalog := memory.NewLedger(entities.LedgerCatalog, memoryCatalogChainID)
	journal := memory.NewJournal()
	store := memory.NewObjectStore()
	screener := memory.NewScreener()
	transform := memory.NewTransform()
	clock := memory.NewClock()
	ids := memory.NewIDGenerator("job")

	module := NewModule(Dependencies{
		Journal:          journal,
		Access:           access,
		AccessSubmitter:  access,
		AccessCodec:      memory.AccessCodec{},
		Catalog:          catalog,
		CatalogSubmitter: catalog,
		CatalogCodec:     memory.CatalogCodec{},
		Signer:           memory.Signer{},
		Store:            store,
		Screener:         screener,
		Transform:        transform,
		Clock:            clock,
		IDGenerator:      ids,
		PollInterval:     time.Millisecond,
		ReceiptTimeout:   250 * time.Millisecond,
		Logger:           logger,
	})
	module.Fakes = &Fakes{
		AccessLedger:  access,
		CatalogLedger: catalog,
		Journal:       journal,
		Store:         store,
		Screener:      screener,
		Transform:     transform,
		Clock:         clock,
		IDs:           ids,
	}
	return module
}
