package relayservice

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"math/big"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	"baton/contexts/relay-core/relay-service/adapters/memory"
	"baton/contexts/relay-core/relay-service/application/commands"
	"baton/contexts/relay-core/relay-service/application/queries"
	"baton/contexts/relay-core/relay-service/domain/entities"
	domainerrors "baton/contexts/relay-core/relay-service/domain/errors"
	"baton/contexts/relay-core/relay-service/domain/services"
	"baton/contexts/relay-core/relay-service/ports"
)

type testActor struct {
	key     *ecdsa.PrivateKey
	address string
}

func newTestActor(t *testing.T) testActor {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return testActor{key: key, address: crypto.PubkeyToAddress(key.PublicKey).Hex()}
}

// sign produces the wallet signature for one canonical intent payload.
func (a testActor) sign(t *testing.T, operation, payload string, timestamp int64, nonce string) []byte {
	t.Helper()
	intent := entities.Intent{
		Actor:       a.address,
		Operation:   operation,
		PayloadHash: services.PayloadHash(payload),
		Timestamp:   timestamp,
		Nonce:       nonce,
	}
	sig, err := crypto.Sign(accounts.TextHash([]byte(services.IntentMessage(intent))), a.key)
	if err != nil {
		t.Fatalf("sign intent: %v", err)
	}
	return sig
}

func pinnedModule(t *testing.T) (Module, time.Time) {
	t.Helper()
	module := NewInMemoryModule(nil)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	module.Fakes.Clock.Set(now)
	return module, now
}

func testPieceRef(t *testing.T, seed string) string {
	t.Helper()
	mh, err := multihash.Sum([]byte(seed), multihash.SHA2_256, -1)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	return cid.NewCidV1(cid.Raw, mh).String()
}

func trackDescriptor(title string) entities.Descriptor {
	return entities.Descriptor{
		Kind:   entities.KindFreeform,
		Title:  title,
		Artist: "Daft Punk",
		Album:  "Discovery",
	}
}

func mustDeriveID(t *testing.T, descriptor entities.Descriptor) entities.CanonicalID {
	t.Helper()
	id, err := services.DeriveID(descriptor)
	if err != nil {
		t.Fatalf("derive id: %v", err)
	}
	return id
}

func contentPayload(trackID entities.CanonicalID, pieceRef string, algo uint8, cover []byte) string {
	coverDigest := "-"
	if cover != nil {
		coverDigest = services.DigestHex(cover)
	}
	return strings.Join([]string{trackID.Hex(), pieceRef, strconv.Itoa(int(algo)), coverDigest}, "\n")
}

func playlistPayload(playlistID entities.CanonicalID, trackIDs ...entities.CanonicalID) string {
	lines := []string{playlistID.Hex()}
	for _, id := range trackIDs {
		lines = append(lines, id.Hex())
	}
	return strings.Join(lines, "\n")
}

func postPayload(text string, media []byte, trackHex string) string {
	mediaDigest := "-"
	if media != nil {
		mediaDigest = services.DigestHex(media)
	}
	track := trackHex
	if track == "" {
		track = "-"
	}
	return strings.Join([]string{services.DigestHex([]byte(text)), mediaDigest, track}, "\n")
}

func profilePayload(records map[string]string) string {
	keys := make([]string, 0, len(records))
	for key := range records {
		keys = append(keys, key)
	}
	for i := range keys {
		for j := i + 1; j < len(keys); j++ {
			if keys[j] < keys[i] {
				keys[i], keys[j] = keys[j], keys[i]
			}
		}
	}
	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		lines = append(lines, key+"="+records[key])
	}
	return strings.Join(lines, "\n")
}

func assertIntentNonce(t *testing.T, ledger *memory.Ledger, actor string, want int64) {
	t.Helper()
	counter, err := ledger.IntentNonce(context.Background(), actor)
	if err != nil {
		t.Fatalf("intent nonce: %v", err)
	}
	if counter.Cmp(big.NewInt(want)) != 0 {
		t.Fatalf("expected intent nonce %d on %s, got %s", want, ledger.LedgerName(), counter)
	}
}

func TestRegisterNameClaimsOnCatalog(t *testing.T) {
	module, now := pinnedModule(t)
	actor := newTestActor(t)

	result, err := module.RegisterName.Execute(context.Background(), commands.RegisterNameCommand{
		Actor:     actor.address,
		Name:      "Alice",
		Timestamp: now.UnixMilli(),
		Nonce:     "0",
		Signature: actor.sign(t, entities.OpRegisterName, "alice", now.UnixMilli(), "0"),
	})
	if err != nil {
		t.Fatalf("register name: %v", err)
	}
	if !result.Outcome.Succeeded() {
		t.Fatalf("expected success, got %s (%s)", result.Outcome.Status, result.Outcome.Error)
	}
	if result.Name != "alice" {
		t.Fatalf("expected normalized label alice, got %q", result.Name)
	}
	if result.TxHash == "" {
		t.Fatalf("claim tx hash missing")
	}
	if owner := module.Fakes.CatalogLedger.OwnerOf("alice"); owner != strings.ToLower(actor.address) {
		t.Fatalf("name owned by %q, expected %q", owner, strings.ToLower(actor.address))
	}
	assertIntentNonce(t, module.Fakes.CatalogLedger, actor.address, 1)

	status, err := module.JobStatus.Execute(context.Background(), queries.JobStatusQuery{JobID: result.JobID})
	if err != nil {
		t.Fatalf("job status: %v", err)
	}
	if status.Entry.Status != entities.JobSucceeded {
		t.Fatalf("journal row is %s, expected succeeded", status.Entry.Status)
	}
}

func TestRegisterNameSameIntentCannotRunTwice(t *testing.T) {
	module, now := pinnedModule(t)
	actor := newTestActor(t)
	cmd := commands.RegisterNameCommand{
		Actor:     actor.address,
		Name:      "alice",
		Timestamp: now.UnixMilli(),
		Nonce:     "0",
		Signature: actor.sign(t, entities.OpRegisterName, "alice", now.UnixMilli(), "0"),
	}

	// Both broadcast attempts rejected: the outcome is failed but the nonce was
	// never consumed, so only the journaled digest blocks a verbatim replay.
	module.Fakes.CatalogLedger.FailNextBroadcasts(errors.New("mempool full"), 2)
	first, err := module.RegisterName.Execute(context.Background(), cmd)
	if err != nil {
		t.Fatalf("first execute: %v", err)
	}
	if first.Outcome.Status != entities.OutcomeFailed {
		t.Fatalf("expected failed outcome, got %s", first.Outcome.Status)
	}
	assertIntentNonce(t, module.Fakes.CatalogLedger, actor.address, 0)

	_, err = module.RegisterName.Execute(context.Background(), cmd)
	if !errors.Is(err, domainerrors.ErrIntentInFlight) {
		t.Fatalf("expected ErrIntentInFlight, got %v", err)
	}
}

func TestRegisterNameTakenNameCostsNothing(t *testing.T) {
	module, now := pinnedModule(t)
	actor := newTestActor(t)
	module.Fakes.CatalogLedger.TakeName("alice", "0x00000000000000000000000000000000000000ff")

	_, err := module.RegisterName.Execute(context.Background(), commands.RegisterNameCommand{
		Actor:     actor.address,
		Name:      "alice",
		Timestamp: now.UnixMilli(),
		Nonce:     "0",
		Signature: actor.sign(t, entities.OpRegisterName, "alice", now.UnixMilli(), "0"),
	})
	if !errors.Is(err, domainerrors.ErrNameUnavailable) {
		t.Fatalf("expected ErrNameUnavailable, got %v", err)
	}

	next, err := module.Fakes.CatalogLedger.PendingNonce(context.Background(), memory.Signer{}.Address())
	if err != nil {
		t.Fatalf("pending nonce: %v", err)
	}
	if next != 0 {
		t.Fatalf("taken name must not broadcast, %d sequences spent", next)
	}
	assertIntentNonce(t, module.Fakes.CatalogLedger, actor.address, 0)
}

func TestRegisterNameRejectsForeignSignature(t *testing.T) {
	module, now := pinnedModule(t)
	actor := newTestActor(t)
	mallory := newTestActor(t)

	_, err := module.RegisterName.Execute(context.Background(), commands.RegisterNameCommand{
		Actor:     actor.address,
		Name:      "alice",
		Timestamp: now.UnixMilli(),
		Nonce:     "0",
		Signature: mallory.sign(t, entities.OpRegisterName, "alice", now.UnixMilli(), "0"),
	})
	if !errors.Is(err, domainerrors.ErrSignatureMismatch) {
		t.Fatalf("expected ErrSignatureMismatch, got %v", err)
	}
}

func TestRegisterNameValidatesShape(t *testing.T) {
	module, now := pinnedModule(t)
	actor := newTestActor(t)

	_, err := module.RegisterName.Execute(context.Background(), commands.RegisterNameCommand{
		Actor:     "not-an-address",
		Name:      "alice",
		Timestamp: now.UnixMilli(),
		Nonce:     "0",
	})
	if !errors.Is(err, domainerrors.ErrMalformedRequest) {
		t.Fatalf("bad actor: expected ErrMalformedRequest, got %v", err)
	}

	_, err = module.RegisterName.Execute(context.Background(), commands.RegisterNameCommand{
		Actor:     actor.address,
		Name:      "Al!",
		Timestamp: now.UnixMilli(),
		Nonce:     "0",
	})
	if !errors.Is(err, domainerrors.ErrMalformedRequest) {
		t.Fatalf("bad label: expected ErrMalformedRequest, got %v", err)
	}
}

func TestUpdateProfileWritesOnlyChangedKeys(t *testing.T) {
	module, now := pinnedModule(t)
	actor := newTestActor(t)
	records := map[string]string{"display": "Alice", "bio": "making noise"}

	result, err := module.UpdateProfile.Execute(context.Background(), commands.UpdateProfileCommand{
		Actor:     actor.address,
		Records:   records,
		Timestamp: now.UnixMilli(),
		Nonce:     "0",
		Signature: actor.sign(t, entities.OpUpdateProfile, profilePayload(records), now.UnixMilli(), "0"),
	})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if !result.Outcome.Succeeded() {
		t.Fatalf("expected success, got %s (%s)", result.Outcome.Status, result.Outcome.Error)
	}
	if len(result.UpdatedKeys) != 2 {
		t.Fatalf("expected 2 updated keys, got %v", result.UpdatedKeys)
	}
	if got, _ := module.Fakes.CatalogLedger.ProfileText(context.Background(), actor.address, "bio"); got != "making noise" {
		t.Fatalf("bio not written, got %q", got)
	}
	assertIntentNonce(t, module.Fakes.CatalogLedger, actor.address, 1)

	// Resubmitting identical records succeeds without a transaction and leaves
	// the intent nonce unconsumed.
	noop, err := module.UpdateProfile.Execute(context.Background(), commands.UpdateProfileCommand{
		Actor:     actor.address,
		Records:   records,
		Timestamp: now.UnixMilli(),
		Nonce:     "1",
		Signature: actor.sign(t, entities.OpUpdateProfile, profilePayload(records), now.UnixMilli(), "1"),
	})
	if err != nil {
		t.Fatalf("no-op update: %v", err)
	}
	if !noop.Outcome.Succeeded() {
		t.Fatalf("expected no-op success, got %s", noop.Outcome.Status)
	}
	if len(noop.UpdatedKeys) != 0 {
		t.Fatalf("no-op must update nothing, got %v", noop.UpdatedKeys)
	}
	if noop.TxHash != "" {
		t.Fatalf("no-op must not broadcast, got tx %s", noop.TxHash)
	}
	assertIntentNonce(t, module.Fakes.CatalogLedger, actor.address, 1)
}

func TestUpdateProfileRejectsUnknownKey(t *testing.T) {
	module, now := pinnedModule(t)
	actor := newTestActor(t)

	_, err := module.UpdateProfile.Execute(context.Background(), commands.UpdateProfileCommand{
		Actor:     actor.address,
		Records:   map[string]string{"hometown": "Paris"},
		Timestamp: now.UnixMilli(),
		Nonce:     "0",
	})
	if !errors.Is(err, domainerrors.ErrMalformedRequest) {
		t.Fatalf("expected ErrMalformedRequest, got %v", err)
	}
}

func TestRegisterContentWritesBothLedgers(t *testing.T) {
	module, now := pinnedModule(t)
	actor := newTestActor(t)
	descriptor := trackDescriptor("One More Time")
	trackID := mustDeriveID(t, descriptor)
	pieceRef := testPieceRef(t, "sealed-audio")
	cover := &ports.MediaCheck{Data: []byte("cover-art"), ContentType: "image/png"}
	payload := contentPayload(trackID, pieceRef, 1, cover.Data)

	result, err := module.RegisterContent.Execute(context.Background(), commands.RegisterContentCommand{
		Actor:      actor.address,
		Descriptor: descriptor,
		PieceRef:   pieceRef,
		Cover:      cover,
		Timestamp:  now.UnixMilli(),
		Nonce:      "0",
		Signature:  actor.sign(t, entities.OpRegisterContent, payload, now.UnixMilli(), "0"),
	})
	if err != nil {
		t.Fatalf("register content: %v", err)
	}
	if !result.Outcome.Succeeded() {
		t.Fatalf("expected success, got %s (%s)", result.Outcome.Status, result.Outcome.Error)
	}
	if result.TrackID != trackID.Hex() {
		t.Fatalf("expected track id %s, got %s", trackID.Hex(), result.TrackID)
	}
	if result.AccessTxHash == "" || result.MirrorTxHash == "" {
		t.Fatalf("missing tx hashes: access=%q mirror=%q", result.AccessTxHash, result.MirrorTxHash)
	}

	piece, ok := module.Fakes.AccessLedger.PieceOf(trackID.ID)
	if !ok {
		t.Fatalf("access ledger has no piece row")
	}
	if piece.PieceRef != pieceRef || piece.Algo != 1 {
		t.Fatalf("piece row mismatch: %+v", piece)
	}
	if !module.Fakes.CatalogLedger.Registered(trackID.ID) {
		t.Fatalf("catalog mirror missing")
	}

	// Nonce is consumed on the gating ledger only.
	assertIntentNonce(t, module.Fakes.AccessLedger, actor.address, 1)
	assertIntentNonce(t, module.Fakes.CatalogLedger, actor.address, 0)

	if result.CoverRef == "" {
		t.Fatalf("cover not pinned")
	}
	pinned, err := module.Fakes.CatalogLedger.CoverOf(context.Background(), trackID.ID)
	if err != nil {
		t.Fatalf("cover of: %v", err)
	}
	if pinned != result.CoverRef {
		t.Fatalf("ledger cover %q, result cover %q", pinned, result.CoverRef)
	}
	object, ok := module.Fakes.Store.Object(result.CoverRef)
	if !ok {
		t.Fatalf("cover object not stored")
	}
	if object.ContentType != "image/png" {
		t.Fatalf("cover stored as %q", object.ContentType)
	}
}

func TestRegisterContentPartialMirrorIsJournaledAndHeals(t *testing.T) {
	module, now := pinnedModule(t)
	actor := newTestActor(t)
	descriptor := trackDescriptor("Aerodynamic")
	trackID := mustDeriveID(t, descriptor)
	pieceRef := testPieceRef(t, "sealed-aero")
	payload := contentPayload(trackID, pieceRef, 1, nil)

	module.Fakes.CatalogLedger.FailNextBroadcasts(errors.New("catalog rpc down"), 2)
	result, err := module.RegisterContent.Execute(context.Background(), commands.RegisterContentCommand{
		Actor:      actor.address,
		Descriptor: descriptor,
		PieceRef:   pieceRef,
		Timestamp:  now.UnixMilli(),
		Nonce:      "0",
		Signature:  actor.sign(t, entities.OpRegisterContent, payload, now.UnixMilli(), "0"),
	})
	if err != nil {
		t.Fatalf("register content: %v", err)
	}
	if result.Outcome.Status != entities.OutcomePartial {
		t.Fatalf("expected partial, got %s (%s)", result.Outcome.Status, result.Outcome.Error)
	}
	if result.PendingStep != entities.StepMirrorCatalog {
		t.Fatalf("expected pending mirror step, got %q", result.PendingStep)
	}

	// The gating write is committed and must never roll back.
	if _, ok := module.Fakes.AccessLedger.PieceOf(trackID.ID); !ok {
		t.Fatalf("access write missing on partial outcome")
	}
	if module.Fakes.CatalogLedger.Registered(trackID.ID) {
		t.Fatalf("catalog mirror unexpectedly present")
	}

	status, err := module.JobStatus.Execute(context.Background(), queries.JobStatusQuery{JobID: result.JobID})
	if err != nil {
		t.Fatalf("job status: %v", err)
	}
	if status.Entry.Status != entities.JobPartial {
		t.Fatalf("journal row is %s, expected partial", status.Entry.Status)
	}
	if len(status.Entry.MirrorEntries) != 1 || status.Entry.MirrorEntries[0].ID != trackID.Hex() {
		t.Fatalf("mirror entries not journaled: %+v", status.Entry.MirrorEntries)
	}

	// Past the retry delay the reconciler replays the catalog leg.
	module.Fakes.Clock.Advance(3 * time.Minute)
	if err := module.Reconciler.RunOnce(context.Background()); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !module.Fakes.CatalogLedger.Registered(trackID.ID) {
		t.Fatalf("mirror not replayed")
	}
	healed, err := module.JobStatus.Execute(context.Background(), queries.JobStatusQuery{JobID: result.JobID})
	if err != nil {
		t.Fatalf("job status after heal: %v", err)
	}
	if healed.Entry.Status != entities.JobReconciled {
		t.Fatalf("journal row is %s, expected reconciled", healed.Entry.Status)
	}
	if len(healed.Entry.MirrorEntries) != 0 {
		t.Fatalf("reconciled row still carries mirrors")
	}
	if healed.Entry.Outcome.PendingStep != "" {
		t.Fatalf("reconciled outcome still pending %q", healed.Entry.Outcome.PendingStep)
	}
}

func TestRegisterContentSkipsMirrorWhenCatalogKnowsTrack(t *testing.T) {
	module, now := pinnedModule(t)
	actor := newTestActor(t)
	descriptor := trackDescriptor("Digital Love")
	trackID := mustDeriveID(t, descriptor)
	module.Fakes.CatalogLedger.SeedRegistered(trackID.ID, memory.RegisteredEntry{Title: descriptor.Title})
	pieceRef := testPieceRef(t, "sealed-digital")
	payload := contentPayload(trackID, pieceRef, 1, nil)

	result, err := module.RegisterContent.Execute(context.Background(), commands.RegisterContentCommand{
		Actor:      actor.address,
		Descriptor: descriptor,
		PieceRef:   pieceRef,
		Timestamp:  now.UnixMilli(),
		Nonce:      "0",
		Signature:  actor.sign(t, entities.OpRegisterContent, payload, now.UnixMilli(), "0"),
	})
	if err != nil {
		t.Fatalf("register content: %v", err)
	}
	if !result.Outcome.Succeeded() {
		t.Fatalf("expected success, got %s (%s)", result.Outcome.Status, result.Outcome.Error)
	}
	if result.MirrorTxHash != "" {
		t.Fatalf("known track must not mirror, got tx %s", result.MirrorTxHash)
	}

	next, err := module.Fakes.CatalogLedger.PendingNonce(context.Background(), memory.Signer{}.Address())
	if err != nil {
		t.Fatalf("pending nonce: %v", err)
	}
	if next != 0 {
		t.Fatalf("catalog must stay untouched, %d sequences spent", next)
	}
}

func TestRegisterContentScreensCoverBeforePaidWork(t *testing.T) {
	module, now := pinnedModule(t)
	actor := newTestActor(t)
	descriptor := trackDescriptor("Veridis Quo")
	trackID := mustDeriveID(t, descriptor)
	pieceRef := testPieceRef(t, "sealed-veridis")
	cover := &ports.MediaCheck{Data: []byte("rejected-art"), ContentType: "image/png"}
	payload := contentPayload(trackID, pieceRef, 1, cover.Data)

	rejection := errors.New("classifier says no")
	module.Fakes.Screener.RejectWith(rejection)

	_, err := module.RegisterContent.Execute(context.Background(), commands.RegisterContentCommand{
		Actor:      actor.address,
		Descriptor: descriptor,
		PieceRef:   pieceRef,
		Cover:      cover,
		Timestamp:  now.UnixMilli(),
		Nonce:      "0",
		Signature:  actor.sign(t, entities.OpRegisterContent, payload, now.UnixMilli(), "0"),
	})
	if !errors.Is(err, rejection) {
		t.Fatalf("expected screener rejection to propagate, got %v", err)
	}

	next, err := module.Fakes.AccessLedger.PendingNonce(context.Background(), memory.Signer{}.Address())
	if err != nil {
		t.Fatalf("pending nonce: %v", err)
	}
	if next != 0 {
		t.Fatalf("rejected content must not broadcast, %d sequences spent", next)
	}
	assertIntentNonce(t, module.Fakes.AccessLedger, actor.address, 0)
	if module.Fakes.Store.Len() != 0 {
		t.Fatalf("rejected cover must not be pinned")
	}
}

func TestSubmitPlaylistRegistersMissingTracksInOneSession(t *testing.T) {
	module, now := pinnedModule(t)
	actor := newTestActor(t)
	known := trackDescriptor("Harder Better Faster Stronger")
	unknown := trackDescriptor("Crescendolls")
	knownID := mustDeriveID(t, known)
	unknownID := mustDeriveID(t, unknown)
	module.Fakes.CatalogLedger.SeedRegistered(knownID.ID, memory.RegisteredEntry{Title: known.Title})

	playlist := entities.Descriptor{Kind: entities.KindFreeform, Title: "Robot Rock", Artist: "alice"}
	playlistID := mustDeriveID(t, playlist)
	payload := playlistPayload(playlistID, knownID, unknownID)

	result, err := module.SubmitPlaylist.Execute(context.Background(), commands.SubmitPlaylistCommand{
		Actor:     actor.address,
		Playlist:  playlist,
		Tracks:    []entities.Descriptor{known, unknown},
		Timestamp: now.UnixMilli(),
		Nonce:     "0",
		Signature: actor.sign(t, entities.OpSubmitPlaylist, payload, now.UnixMilli(), "0"),
	})
	if err != nil {
		t.Fatalf("submit playlist: %v", err)
	}
	if !result.Outcome.Succeeded() {
		t.Fatalf("expected success, got %s (%s)", result.Outcome.Status, result.Outcome.Error)
	}
	if result.RegisteredCount != 1 {
		t.Fatalf("expected 1 track registered, got %d", result.RegisteredCount)
	}
	if result.TxHash == "" {
		t.Fatalf("playlist tx hash missing")
	}

	row, ok := module.Fakes.CatalogLedger.PlaylistOf(playlistID.ID)
	if !ok {
		t.Fatalf("playlist not stored")
	}
	if len(row.TrackIDs) != 2 || row.TrackIDs[0] != knownID.ID || row.TrackIDs[1] != unknownID.ID {
		t.Fatalf("track order lost: %+v", row.TrackIDs)
	}
	if !module.Fakes.CatalogLedger.Registered(unknownID.ID) {
		t.Fatalf("missing track not registered")
	}
	assertIntentNonce(t, module.Fakes.CatalogLedger, actor.address, 1)
}

func TestSubmitPlaylistCoverUploadFailureIsWarning(t *testing.T) {
	module, now := pinnedModule(t)
	actor := newTestActor(t)
	track := trackDescriptor("Voyager")
	trackID := mustDeriveID(t, track)
	playlist := entities.Descriptor{Kind: entities.KindFreeform, Title: "Late Night", Artist: "alice"}
	playlistID := mustDeriveID(t, playlist)
	payload := playlistPayload(playlistID, trackID)

	module.Fakes.Store.FailNextPut(errors.New("bundler 503"))
	cover := &ports.MediaCheck{Data: []byte("cover"), ContentType: "image/jpeg"}

	result, err := module.SubmitPlaylist.Execute(context.Background(), commands.SubmitPlaylistCommand{
		Actor:     actor.address,
		Playlist:  playlist,
		Tracks:    []entities.Descriptor{track},
		Cover:     cover,
		Timestamp: now.UnixMilli(),
		Nonce:     "0",
		Signature: actor.sign(t, entities.OpSubmitPlaylist, payload, now.UnixMilli(), "0"),
	})
	if err != nil {
		t.Fatalf("submit playlist: %v", err)
	}
	if !result.Outcome.Succeeded() {
		t.Fatalf("expected success, got %s (%s)", result.Outcome.Status, result.Outcome.Error)
	}
	if result.CoverRef != "" {
		t.Fatalf("cover ref set despite failed upload: %q", result.CoverRef)
	}
	if len(result.Outcome.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", result.Outcome.Warnings)
	}
	row, ok := module.Fakes.CatalogLedger.PlaylistOf(playlistID.ID)
	if !ok {
		t.Fatalf("playlist not stored")
	}
	if row.CoverRef != "" {
		t.Fatalf("playlist stored with cover %q", row.CoverRef)
	}
}

func TestCreatePostPublishesPinnedDocument(t *testing.T) {
	module, now := pinnedModule(t)
	actor := newTestActor(t)
	track := trackDescriptor("Something About Us")
	trackID := mustDeriveID(t, track)
	text := "first listen, instant classic"
	payload := postPayload(text, nil, trackID.Hex())

	result, err := module.CreatePost.Execute(context.Background(), commands.CreatePostCommand{
		Actor:     actor.address,
		Text:      text,
		Track:     &track,
		Timestamp: now.UnixMilli(),
		Nonce:     "0",
		Signature: actor.sign(t, entities.OpCreatePost, payload, now.UnixMilli(), "0"),
	})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	if !result.Outcome.Succeeded() {
		t.Fatalf("expected success, got %s (%s)", result.Outcome.Status, result.Outcome.Error)
	}
	if result.TrackID != trackID.Hex() {
		t.Fatalf("expected track id %s, got %s", trackID.Hex(), result.TrackID)
	}

	posts := module.Fakes.CatalogLedger.Posts()
	if len(posts) != 1 {
		t.Fatalf("expected 1 post on ledger, got %d", len(posts))
	}
	if posts[0].ContentRef != result.PostRef {
		t.Fatalf("ledger points at %q, document pinned as %q", posts[0].ContentRef, result.PostRef)
	}
	if !module.Fakes.CatalogLedger.Registered(trackID.ID) {
		t.Fatalf("referenced track not registered")
	}

	object, ok := module.Fakes.Store.Object(result.PostRef)
	if !ok {
		t.Fatalf("post document not pinned")
	}
	if object.ContentType != "application/json" {
		t.Fatalf("document stored as %q", object.ContentType)
	}
	var document struct {
		Actor     string    `json:"actor"`
		Text      string    `json:"text"`
		TrackID   string    `json:"track_id"`
		CreatedAt time.Time `json:"created_at"`
	}
	if err := json.Unmarshal(object.Data, &document); err != nil {
		t.Fatalf("decode document: %v", err)
	}
	if document.Text != text || document.TrackID != trackID.Hex() {
		t.Fatalf("document mismatch: %+v", document)
	}
	if !document.CreatedAt.Equal(now) {
		t.Fatalf("document timestamp %s, clock pinned to %s", document.CreatedAt, now)
	}
}

func TestCreatePostScreeningRejectionStopsBeforePaidWork(t *testing.T) {
	module, now := pinnedModule(t)
	actor := newTestActor(t)
	text := "totally fine text"
	rejection := errors.New("screening rejected")
	module.Fakes.Screener.RejectWith(rejection)

	_, err := module.CreatePost.Execute(context.Background(), commands.CreatePostCommand{
		Actor:     actor.address,
		Text:      text,
		Timestamp: now.UnixMilli(),
		Nonce:     "0",
		Signature: actor.sign(t, entities.OpCreatePost, postPayload(text, nil, ""), now.UnixMilli(), "0"),
	})
	if !errors.Is(err, rejection) {
		t.Fatalf("expected screening rejection to propagate, got %v", err)
	}

	if got := len(module.Fakes.CatalogLedger.Posts()); got != 0 {
		t.Fatalf("expected no posts, got %d", got)
	}
	if module.Fakes.Store.Len() != 0 {
		t.Fatalf("rejected post must pin nothing")
	}
	assertIntentNonce(t, module.Fakes.CatalogLedger, actor.address, 0)
}

func TestCreatePostTransformFlagEnrichesDocument(t *testing.T) {
	module, now := pinnedModule(t)
	actor := newTestActor(t)
	text := "buenos dias a todos"
	module.Fakes.Screener.FlagNext("translate")
	module.Fakes.Transform.Return("good morning everyone")

	result, err := module.CreatePost.Execute(context.Background(), commands.CreatePostCommand{
		Actor:     actor.address,
		Text:      text,
		Timestamp: now.UnixMilli(),
		Nonce:     "0",
		Signature: actor.sign(t, entities.OpCreatePost, postPayload(text, nil, ""), now.UnixMilli(), "0"),
	})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	if !result.Outcome.Succeeded() {
		t.Fatalf("expected success, got %s", result.Outcome.Status)
	}

	object, ok := module.Fakes.Store.Object(result.PostRef)
	if !ok {
		t.Fatalf("post document not pinned")
	}
	var document struct {
		Text           string `json:"text"`
		TranslatedText string `json:"translated_text"`
	}
	if err := json.Unmarshal(object.Data, &document); err != nil {
		t.Fatalf("decode document: %v", err)
	}
	if document.Text != text {
		t.Fatalf("original text lost: %q", document.Text)
	}
	if document.TranslatedText != "good morning everyone" {
		t.Fatalf("translation missing, got %q", document.TranslatedText)
	}
}

func TestCreatePostTransformFailureIsWarning(t *testing.T) {
	module, now := pinnedModule(t)
	actor := newTestActor(t)
	text := "hello relay"
	module.Fakes.Screener.FlagNext("translate")
	module.Fakes.Transform.Fail(errors.New("mt backend down"))

	result, err := module.CreatePost.Execute(context.Background(), commands.CreatePostCommand{
		Actor:     actor.address,
		Text:      text,
		Timestamp: now.UnixMilli(),
		Nonce:     "0",
		Signature: actor.sign(t, entities.OpCreatePost, postPayload(text, nil, ""), now.UnixMilli(), "0"),
	})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	if !result.Outcome.Succeeded() {
		t.Fatalf("expected success, got %s", result.Outcome.Status)
	}
	if len(result.Outcome.Warnings) != 1 {
		t.Fatalf("expected 1 transform warning, got %v", result.Outcome.Warnings)
	}
}

func TestJobStatusUnknownJob(t *testing.T) {
	module, _ := pinnedModule(t)

	_, err := module.JobStatus.Execute(context.Background(), queries.JobStatusQuery{JobID: "job-999999"})
	if !errors.Is(err, domainerrors.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}

	_, err = module.JobStatus.Execute(context.Background(), queries.JobStatusQuery{})
	if !errors.Is(err, domainerrors.ErrMalformedRequest) {
		t.Fatalf("expected ErrMalformedRequest, got %v", err)
	}
}
