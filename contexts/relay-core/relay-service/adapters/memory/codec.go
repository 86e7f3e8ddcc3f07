package memory

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"baton/contexts/relay-core/relay-service/domain/entities"
	"baton/contexts/relay-core/relay-service/ports"
)

// Pseudo-calldata operation tags executed by the in-memory ledger.
const (
	opConsumeNonce   = "consume_nonce"
	opRegisterBatch  = "register_batch"
	opClaimName      = "claim_name"
	opSetProfile     = "set_profile"
	opSubmitPlaylist = "submit_playlist"
	opPublishPost    = "publish_post"
	opSetCover       = "set_cover"
	opRegisterAccess = "register_access"
)

// callPayload is the JSON stand-in for ABI calldata. The EVM adapter packs
// real calldata; the in-memory pair keeps the identical byte-oriented boundary
// so the engine and commands are exercised unchanged.
type callPayload struct {
	Op       string   `json:"op"`
	Actor    string   `json:"actor,omitempty"`
	Nonce    string   `json:"nonce,omitempty"`
	Kinds    []uint8  `json:"kinds,omitempty"`
	Payloads []string `json:"payloads,omitempty"`
	IDs      []string `json:"ids,omitempty"`
	Titles   []string `json:"titles,omitempty"`
	Artists  []string `json:"artists,omitempty"`
	Albums   []string `json:"albums,omitempty"`
	Label    string   `json:"label,omitempty"`
	Keys     []string `json:"keys,omitempty"`
	Values   []string `json:"values,omitempty"`
	ID       string   `json:"id,omitempty"`
	PieceRef string   `json:"piece_ref,omitempty"`
	Algo     uint8    `json:"algo,omitempty"`
	TrackIDs []string `json:"track_ids,omitempty"`
	Ref      string   `json:"ref,omitempty"`
}

func packCall(to string, payload callPayload) (ports.Call, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return ports.Call{}, fmt.Errorf("pack %s: %w", payload.Op, err)
	}
	return ports.Call{To: to, Data: data}, nil
}

func nonceString(nonce *big.Int) string {
	if nonce == nil {
		return "0"
	}
	return nonce.String()
}

func encodeID(id [32]byte) string {
	return "0x" + hex.EncodeToString(id[:])
}

func decodeID(s string) ([32]byte, error) {
	var id [32]byte
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(s), "0x"))
	if err != nil {
		return id, fmt.Errorf("decode id %q: %w", s, err)
	}
	if len(raw) != 32 {
		return id, fmt.Errorf("decode id %q: need 32 bytes, got %d", s, len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

// CatalogCodec builds pseudo-calldata for the in-memory catalog ledger.
type CatalogCodec struct{}

func (CatalogCodec) ConsumeNonce(actor string, nonce *big.Int) (ports.Call, error) {
	return packCall("nonces", callPayload{Op: opConsumeNonce, Actor: actor, Nonce: nonceString(nonce)})
}

func (CatalogCodec) RegisterBatch(entries []entities.RegistrationEntry) (ports.Call, error) {
	payload := callPayload{Op: opRegisterBatch}
	for _, entry := range entries {
		payload.Kinds = append(payload.Kinds, uint8(entry.Identity.Kind))
		payload.Payloads = append(payload.Payloads, encodeID(entry.Identity.Payload))
		payload.IDs = append(payload.IDs, encodeID(entry.Identity.ID))
		payload.Titles = append(payload.Titles, entry.Title)
		payload.Artists = append(payload.Artists, entry.Artist)
		payload.Albums = append(payload.Albums, entry.Album)
	}
	return packCall("catalog", payload)
}

func (CatalogCodec) SetCover(id [32]byte, ref string) (ports.Call, error) {
	return packCall("catalog", callPayload{Op: opSetCover, ID: encodeID(id), Ref: ref})
}

func (CatalogCodec) ClaimName(actor, label string) (ports.Call, error) {
	return packCall("names", callPayload{Op: opClaimName, Actor: actor, Label: label})
}

func (CatalogCodec) SetProfileRecords(actor string, keys, values []string) (ports.Call, error) {
	if len(keys) != len(values) {
		return ports.Call{}, fmt.Errorf("pack %s: %d keys, %d values", opSetProfile, len(keys), len(values))
	}
	return packCall("profiles", callPayload{Op: opSetProfile, Actor: actor, Keys: keys, Values: values})
}

func (CatalogCodec) SubmitPlaylist(actor string, playlistID [32]byte, trackIDs [][32]byte, coverRef string) (ports.Call, error) {
	payload := callPayload{Op: opSubmitPlaylist, Actor: actor, ID: encodeID(playlistID), Ref: coverRef}
	for _, trackID := range trackIDs {
		payload.TrackIDs = append(payload.TrackIDs, encodeID(trackID))
	}
	return packCall("playlists", payload)
}

func (CatalogCodec) PublishPost(actor, contentRef string) (ports.Call, error) {
	return packCall("posts", callPayload{Op: opPublishPost, Actor: actor, Ref: contentRef})
}

// AccessCodec builds pseudo-calldata for the in-memory access ledger.
type AccessCodec struct{}

func (AccessCodec) ConsumeNonce(actor string, nonce *big.Int) (ports.Call, error) {
	return packCall("nonces", callPayload{Op: opConsumeNonce, Actor: actor, Nonce: nonceString(nonce)})
}

func (AccessCodec) RegisterContent(actor string, contentID [32]byte, pieceRef string, algo uint8) (ports.Call, error) {
	return packCall("access", callPayload{
		Op:       opRegisterAccess,
		Actor:    actor,
		ID:       encodeID(contentID),
		PieceRef: pieceRef,
		Algo:     algo,
	})
}

var _ ports.CatalogCodec = CatalogCodec{}
var _ ports.AccessCodec = AccessCodec{}
