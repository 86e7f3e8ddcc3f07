package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"baton/contexts/relay-core/relay-service/domain/entities"
	"baton/contexts/relay-core/relay-service/ports"
)

// RegisteredEntry is a catalog row held by the in-memory ledger.
type RegisteredEntry struct {
	Kind   uint8
	Title  string
	Artist string
	Album  string
}

// PieceRow is an access-ledger registration.
type PieceRow struct {
	Actor    string
	PieceRef string
	Algo     uint8
}

// PlaylistRow is a submitted playlist.
type PlaylistRow struct {
	Actor    string
	TrackIDs [][32]byte
	CoverRef string
}

// PostRow is a published post reference.
type PostRow struct {
	Actor      string
	ContentRef string
}

// Ledger is a deterministic in-memory chain for tests and local runs. It
// implements the reader and submitter ports for one ledger and executes the
// pseudo-calldata emitted by the memory codecs, enforcing the same rules the
// deployed contracts do: sequential relayer sequence numbers, intent counter
// equality, claim-once names, set-once covers.
type Ledger struct {
	mu sync.Mutex

	name    entities.LedgerName
	chainID *big.Int

	intentNonces map[string]*big.Int
	registered   map[[32]byte]RegisteredEntry
	pieces       map[[32]byte]PieceRow
	names        map[string]string
	profiles     map[string]map[string]string
	covers       map[[32]byte]string
	playlists    map[[32]byte]PlaylistRow
	posts        []PostRow

	sequences map[string]uint64
	receipts  map[string]entities.Receipt
	height    uint64

	failBroadcast     error
	failBroadcastLeft int
	failEstimate      error
	failRead          error
}

func NewLedger(name entities.LedgerName, chainID int64) *Ledger {
	return &Ledger{
		name:         name,
		chainID:      big.NewInt(chainID),
		intentNonces: make(map[string]*big.Int),
		registered:   make(map[[32]byte]RegisteredEntry),
		pieces:       make(map[[32]byte]PieceRow),
		names:        make(map[string]string),
		profiles:     make(map[string]map[string]string),
		covers:       make(map[[32]byte]string),
		playlists:    make(map[[32]byte]PlaylistRow),
		receipts:     make(map[string]entities.Receipt),
	}
}

func (l *Ledger) LedgerName() entities.LedgerName {
	return l.name
}

func (l *Ledger) ChainID() *big.Int {
	return new(big.Int).Set(l.chainID)
}

func (l *Ledger) EntityExists(ctx context.Context, id [32]byte) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.consumeReadFailure(); err != nil {
		return false, err
	}
	if l.name == entities.LedgerAccess {
		_, ok := l.pieces[id]
		return ok, nil
	}
	_, ok := l.registered[id]
	return ok, nil
}

func (l *Ledger) IntentNonce(ctx context.Context, actor string) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.consumeReadFailure(); err != nil {
		return nil, err
	}
	counter, ok := l.intentNonces[strings.ToLower(actor)]
	if !ok {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(counter), nil
}

func (l *Ledger) NameAvailable(ctx context.Context, label string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.consumeReadFailure(); err != nil {
		return false, err
	}
	_, taken := l.names[strings.ToLower(label)]
	return !taken, nil
}

func (l *Ledger) ProfileText(ctx context.Context, actor, key string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.consumeReadFailure(); err != nil {
		return "", err
	}
	return l.profiles[strings.ToLower(actor)][key], nil
}

func (l *Ledger) CoverOf(ctx context.Context, id [32]byte) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.consumeReadFailure(); err != nil {
		return "", err
	}
	return l.covers[id], nil
}

func (l *Ledger) PendingNonce(ctx context.Context, account string) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.consumeReadFailure(); err != nil {
		return 0, err
	}
	return l.sequenceOf(account), nil
}

func (l *Ledger) SuggestFees(ctx context.Context) (ports.GasFees, error) {
	return ports.GasFees{TipCap: big.NewInt(1_000_000_000), FeeCap: big.NewInt(2_000_000_000)}, nil
}

func (l *Ledger) EstimateGas(ctx context.Context, from string, call ports.Call) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failEstimate != nil {
		err := l.failEstimate
		l.failEstimate = nil
		return 0, err
	}
	return 21_000 + uint64(len(call.Data))*16, nil
}

// signedTx is the raw transaction envelope produced by the memory signer.
type signedTx struct {
	From string           `json:"from"`
	Tx   ports.UnsignedTx `json:"tx"`
}

func (l *Ledger) Broadcast(ctx context.Context, raw []byte) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.failBroadcastLeft > 0 {
		l.failBroadcastLeft--
		err := l.failBroadcast
		if l.failBroadcastLeft == 0 {
			l.failBroadcast = nil
		}
		return "", err
	}

	var envelope signedTx
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return "", err
	}

	from := strings.ToLower(envelope.From)
	expected := l.sequenceOf(from)
	if envelope.Tx.Nonce != expected {
		return "", fmt.Errorf("invalid sequence: got %d, want %d", envelope.Tx.Nonce, expected)
	}
	if l.sequences == nil {
		l.sequences = make(map[string]uint64)
	}
	l.sequences[from] = expected + 1

	status := l.execute(envelope.Tx.Data)
	l.height++

	sum := sha256.Sum256(raw)
	hash := "0x" + hex.EncodeToString(sum[:])
	l.receipts[hash] = entities.Receipt{
		TxHash:      hash,
		BlockNumber: l.height,
		GasUsed:     21_000 + uint64(len(envelope.Tx.Data))*16,
		Status:      status,
	}
	return hash, nil
}

func (l *Ledger) Receipt(ctx context.Context, txHash string) (entities.Receipt, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	receipt, ok := l.receipts[txHash]
	return receipt, ok, nil
}

// execute applies one pseudo-calldata payload. A returned zero status models
// a contract revert: the sequence number stays consumed and the receipt
// carries the failure.
func (l *Ledger) execute(data []byte) uint64 {
	var p callPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return 0
	}
	actor := strings.ToLower(p.Actor)

	switch p.Op {
	case opConsumeNonce:
		counter := l.intentNonces[actor]
		if counter == nil {
			counter = big.NewInt(0)
		}
		claimed, ok := new(big.Int).SetString(p.Nonce, 10)
		if !ok || counter.Cmp(claimed) != 0 {
			return 0
		}
		l.intentNonces[actor] = new(big.Int).Add(counter, big.NewInt(1))

	case opRegisterBatch:
		if len(p.IDs) == 0 || len(p.IDs) != len(p.Kinds) || len(p.IDs) != len(p.Titles) {
			return 0
		}
		for i := range p.IDs {
			id, err := decodeID(p.IDs[i])
			if err != nil {
				return 0
			}
			if _, ok := l.registered[id]; ok {
				continue
			}
			l.registered[id] = RegisteredEntry{
				Kind:   p.Kinds[i],
				Title:  p.Titles[i],
				Artist: p.Artists[i],
				Album:  p.Albums[i],
			}
		}

	case opClaimName:
		label := strings.ToLower(p.Label)
		if _, taken := l.names[label]; taken {
			return 0
		}
		l.names[label] = actor

	case opSetProfile:
		if len(p.Keys) != len(p.Values) {
			return 0
		}
		if l.profiles[actor] == nil {
			l.profiles[actor] = make(map[string]string)
		}
		for i := range p.Keys {
			l.profiles[actor][p.Keys[i]] = p.Values[i]
		}

	case opSubmitPlaylist:
		id, err := decodeID(p.ID)
		if err != nil {
			return 0
		}
		row := PlaylistRow{Actor: actor, CoverRef: p.Ref}
		for _, encoded := range p.TrackIDs {
			trackID, err := decodeID(encoded)
			if err != nil {
				return 0
			}
			if _, ok := l.registered[trackID]; !ok {
				return 0
			}
			row.TrackIDs = append(row.TrackIDs, trackID)
		}
		l.playlists[id] = row

	case opPublishPost:
		if p.Ref == "" {
			return 0
		}
		l.posts = append(l.posts, PostRow{Actor: actor, ContentRef: p.Ref})

	case opSetCover:
		id, err := decodeID(p.ID)
		if err != nil {
			return 0
		}
		if l.covers[id] != "" {
			return 0
		}
		l.covers[id] = p.Ref

	case opRegisterAccess:
		id, err := decodeID(p.ID)
		if err != nil {
			return 0
		}
		if _, ok := l.pieces[id]; !ok {
			l.pieces[id] = PieceRow{Actor: actor, PieceRef: p.PieceRef, Algo: p.Algo}
		}

	default:
		return 0
	}
	return 1
}

func (l *Ledger) sequenceOf(account string) uint64 {
	return l.sequences[strings.ToLower(account)]
}

func (l *Ledger) consumeReadFailure() error {
	if l.failRead == nil {
		return nil
	}
	err := l.failRead
	l.failRead = nil
	return err
}

// FailNextBroadcast rejects the next broadcast with err. The engine retries a
// rejected broadcast once with bumped fees, so one injected failure is
// absorbed; use FailNextBroadcasts to defeat the retry.
func (l *Ledger) FailNextBroadcast(err error) {
	l.FailNextBroadcasts(err, 1)
}

// FailNextBroadcasts rejects the next n broadcasts with err.
func (l *Ledger) FailNextBroadcasts(err error, n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failBroadcast = err
	l.failBroadcastLeft = n
}

// FailNextEstimate fails the next gas estimate with err.
func (l *Ledger) FailNextEstimate(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failEstimate = err
}

// FailNextRead fails the next read-port call with err.
func (l *Ledger) FailNextRead(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failRead = err
}

// SetIntentNonce seeds the actor's intent counter.
func (l *Ledger) SetIntentNonce(actor string, value int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.intentNonces[strings.ToLower(actor)] = big.NewInt(value)
}

// SeedRegistered marks a canonical id as already present in the catalog.
func (l *Ledger) SeedRegistered(id [32]byte, entry RegisteredEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.registered[id] = entry
}

// TakeName seeds a claimed name.
func (l *Ledger) TakeName(label, owner string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.names[strings.ToLower(label)] = strings.ToLower(owner)
}

// Registered reports whether the catalog holds the id.
func (l *Ledger) Registered(id [32]byte) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.registered[id]
	return ok
}

// OwnerOf returns the claimed owner of a name, or empty.
func (l *Ledger) OwnerOf(label string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.names[strings.ToLower(label)]
}

// PieceOf returns the access registration for an id.
func (l *Ledger) PieceOf(id [32]byte) (PieceRow, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	row, ok := l.pieces[id]
	return row, ok
}

// PlaylistOf returns a submitted playlist.
func (l *Ledger) PlaylistOf(id [32]byte) (PlaylistRow, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	row, ok := l.playlists[id]
	if !ok {
		return PlaylistRow{}, false
	}
	copied := PlaylistRow{Actor: row.Actor, CoverRef: row.CoverRef}
	copied.TrackIDs = append(copied.TrackIDs, row.TrackIDs...)
	return copied, true
}

// Posts returns all published posts in order.
func (l *Ledger) Posts() []PostRow {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]PostRow, len(l.posts))
	copy(out, l.posts)
	return out
}

var _ ports.CatalogReader = (*Ledger)(nil)
var _ ports.LedgerSubmitter = (*Ledger)(nil)
