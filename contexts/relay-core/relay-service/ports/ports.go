package ports

import (
	"context"
	"math/big"
	"time"

	"baton/contexts/relay-core/relay-service/domain/entities"
	contractsv1 "baton/contracts/gen/events/v1"
	"baton/internal/shared/outbox"
)

// GasFees are the fee caps for one dynamic-fee transaction.
type GasFees struct {
	TipCap *big.Int
	FeeCap *big.Int
}

// Call is one packed contract invocation. GasLimit zero means the engine
// estimates; a non-zero value pins the limit.
type Call struct {
	To       string
	Data     []byte
	GasLimit uint64
}

// UnsignedTx is a ledger transaction awaiting the relayer signature.
type UnsignedTx struct {
	ChainID  *big.Int
	Nonce    uint64
	To       string
	Data     []byte
	GasLimit uint64
	Fees     GasFees
}

// LedgerReader is the read-only RPC surface shared by both target ledgers.
// Reads are side-effect free and safe to repeat or run concurrently.
type LedgerReader interface {
	LedgerName() entities.LedgerName
	EntityExists(ctx context.Context, id [32]byte) (bool, error)
	IntentNonce(ctx context.Context, actor string) (*big.Int, error)
}

// CatalogReader adds the catalog-only read surface.
type CatalogReader interface {
	LedgerReader
	NameAvailable(ctx context.Context, label string) (bool, error)
	ProfileText(ctx context.Context, actor string, key string) (string, error)
	CoverOf(ctx context.Context, id [32]byte) (string, error)
}

// LedgerSubmitter is the write RPC surface of one ledger.
type LedgerSubmitter interface {
	LedgerName() entities.LedgerName
	ChainID() *big.Int
	PendingNonce(ctx context.Context, account string) (uint64, error)
	SuggestFees(ctx context.Context) (GasFees, error)
	EstimateGas(ctx context.Context, from string, call Call) (uint64, error)
	Broadcast(ctx context.Context, rawTx []byte) (string, error)
	// Receipt reports (receipt, found). Absence is not an error; the engine
	// polls until the confirmation window closes.
	Receipt(ctx context.Context, txHash string) (entities.Receipt, bool, error)
}

// TxSigner signs relay transactions with the relayer key. The relayer pays;
// user keys never touch this surface.
type TxSigner interface {
	Address() string
	SignTx(ctx context.Context, tx UnsignedTx) (raw []byte, txHash string, err error)
}

// AccessCodec packs calls for the access (gating) ledger contracts.
type AccessCodec interface {
	ConsumeNonce(actor string, nonce *big.Int) (Call, error)
	RegisterContent(actor string, contentID [32]byte, pieceRef string, algo uint8) (Call, error)
}

// CatalogCodec packs calls for the catalog (primary) ledger contracts.
type CatalogCodec interface {
	ConsumeNonce(actor string, nonce *big.Int) (Call, error)
	RegisterBatch(entries []entities.RegistrationEntry) (Call, error)
	SetCover(id [32]byte, ref string) (Call, error)
	ClaimName(actor string, label string) (Call, error)
	SetProfileRecords(actor string, keys []string, values []string) (Call, error)
	SubmitPlaylist(actor string, playlistID [32]byte, trackIDs [][32]byte, coverRef string) (Call, error)
	PublishPost(actor string, contentRef string) (Call, error)
}

// ObjectStore persists opaque bytes and returns a stable identifier.
type ObjectStore interface {
	Put(ctx context.Context, data []byte, contentType string, name string) (string, error)
}

// MediaCheck is a pre-fetched binary payload awaiting safety screening.
type MediaCheck struct {
	Data        []byte
	ContentType string
}

// ScreenVerdict is the opaque classifier decision plus auxiliary flags.
type ScreenVerdict struct {
	Safe   bool
	Reason string
	Flags  []string
}

// ContentScreener gates content-bearing operations before any paid work.
type ContentScreener interface {
	Screen(ctx context.Context, media *MediaCheck, text string) (ScreenVerdict, error)
}

// TransformHook applies a classifier-suggested transform (e.g. translation).
// Best-effort only; a failure becomes a warning, never a propagated error.
type TransformHook interface {
	Apply(ctx context.Context, flag string, text string) (string, error)
}

// OutcomeEvent is the outbound integration payload persisted to outbox
// together with its journal row.
type OutcomeEvent struct {
	EventID      string
	EventType    string
	JobID        string
	Operation    string
	Actor        string
	Status       string
	PartitionKey string
	OccurredAt   time.Time
	Outcome      entities.Outcome
}

// JournalRepository owns relay journal persistence. The journal is
// observational: verification never consults it, the ledger stays the source
// of truth.
type JournalRepository interface {
	// Insert files a new in-flight row; a duplicate intent digest returns
	// ErrIntentInFlight.
	Insert(ctx context.Context, entry entities.JournalEntry) error
	// RecordOutcomeWithOutbox must atomically persist the outcome and its event.
	RecordOutcomeWithOutbox(ctx context.Context, entry entities.JournalEntry, event OutcomeEvent) error
	Get(ctx context.Context, jobID string) (entities.JournalEntry, error)
	ListStalePartials(ctx context.Context, before time.Time, limit int) ([]entities.JournalEntry, error)
	BumpAttempt(ctx context.Context, jobID string, lastError string, stuck bool, now time.Time) error
}

// OutboxMessage reuses the shared outbox row shape.
type OutboxMessage = outbox.Message

// OutboxRepository models worker-side outbox polling/acknowledgement.
type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxSent(ctx context.Context, outboxID string, sentAt time.Time) error
}

// Clock allows deterministic testing of freshness and retry rules.
type Clock interface {
	Now() time.Time
}

// IDGenerator abstracts job/event identifier generation.
type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// EventEnvelope reuses the canonical cross-runtime envelope contract.
type EventEnvelope = contractsv1.Envelope

// EventPublisher publishes canonical envelopes to a topic.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

// EventSubscriber registers a topic consumer callback.
type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, EventEnvelope) error,
	) error
}
