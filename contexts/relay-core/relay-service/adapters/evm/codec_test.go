package evm

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"baton/contexts/relay-core/relay-service/domain/entities"
	"baton/contexts/relay-core/relay-service/domain/services"
	"baton/contexts/relay-core/relay-service/ports"
)

const codecActor = "0x3333333333333333333333333333333333333333"

func testCatalogCodec(t *testing.T) (*CatalogCodec, CatalogAddresses) {
	t.Helper()
	addresses := CatalogAddresses{
		Nonces:    "0x0000000000000000000000000000000000000001",
		Registry:  "0x0000000000000000000000000000000000000002",
		Names:     "0x0000000000000000000000000000000000000003",
		Profiles:  "0x0000000000000000000000000000000000000004",
		Playlists: "0x0000000000000000000000000000000000000005",
		Posts:     "0x0000000000000000000000000000000000000006",
	}
	codec, err := NewCatalogCodec(addresses)
	if err != nil {
		t.Fatalf("new catalog codec: %v", err)
	}
	return codec, addresses
}

func selector(signature string) []byte {
	return crypto.Keccak256([]byte(signature))[:4]
}

func assertCall(t *testing.T, call ports.Call, to, signature string) {
	t.Helper()
	if call.To != common.HexToAddress(to).Hex() {
		t.Fatalf("call routed to %s, expected %s", call.To, to)
	}
	if len(call.Data) < 4 {
		t.Fatalf("calldata too short: %d bytes", len(call.Data))
	}
	if !bytes.Equal(call.Data[:4], selector(signature)) {
		t.Fatalf("selector %x does not match %s", call.Data[:4], signature)
	}
}

func TestCatalogCodecRoutesEachMethodToItsContract(t *testing.T) {
	codec, addresses := testCatalogCodec(t)

	nonceCall, err := codec.ConsumeNonce(codecActor, big.NewInt(7))
	if err != nil {
		t.Fatalf("consume nonce: %v", err)
	}
	assertCall(t, nonceCall, addresses.Nonces, "consumeFor(address,uint256)")

	nameCall, err := codec.ClaimName(codecActor, "alice")
	if err != nil {
		t.Fatalf("claim name: %v", err)
	}
	assertCall(t, nameCall, addresses.Names, "claimFor(address,string)")

	profileCall, err := codec.SetProfileRecords(codecActor, []string{"bio"}, []string{"touring"})
	if err != nil {
		t.Fatalf("set profile records: %v", err)
	}
	assertCall(t, profileCall, addresses.Profiles, "setTextBatchFor(address,string[],string[])")

	playlistCall, err := codec.SubmitPlaylist(codecActor, [32]byte{1}, [][32]byte{{2}}, "ar://cover")
	if err != nil {
		t.Fatalf("submit playlist: %v", err)
	}
	assertCall(t, playlistCall, addresses.Playlists, "submitFor(address,bytes32,bytes32[],string)")

	postCall, err := codec.PublishPost(codecActor, "ar://post")
	if err != nil {
		t.Fatalf("publish post: %v", err)
	}
	assertCall(t, postCall, addresses.Posts, "publishFor(address,string)")

	coverCall, err := codec.SetCover([32]byte{9}, "ar://cover")
	if err != nil {
		t.Fatalf("set cover: %v", err)
	}
	assertCall(t, coverCall, addresses.Registry, "setCoverFor(bytes32,string)")
}

func TestCatalogCodecPacksRegisterBatchArguments(t *testing.T) {
	codec, addresses := testCatalogCodec(t)

	id, err := services.DeriveID(entities.Descriptor{
		Kind:   entities.KindFreeform,
		Title:  "Around the World",
		Artist: "Daft Punk",
		Album:  "Homework",
	})
	if err != nil {
		t.Fatalf("derive id: %v", err)
	}
	entries := []entities.RegistrationEntry{{
		Identity: id,
		Title:    "Around the World",
		Artist:   "Daft Punk",
		Album:    "Homework",
	}}

	call, err := codec.RegisterBatch(entries)
	if err != nil {
		t.Fatalf("register batch: %v", err)
	}
	assertCall(t, call, addresses.Registry,
		"registerBatch(uint8[],bytes32[],bytes32[],string[],string[],string[])")

	unpacked, err := catalogABI.Methods["registerBatch"].Inputs.Unpack(call.Data[4:])
	if err != nil {
		t.Fatalf("unpack register batch: %v", err)
	}
	kinds := unpacked[0].([]uint8)
	ids := unpacked[2].([][32]byte)
	titles := unpacked[3].([]string)
	if len(kinds) != 1 || kinds[0] != uint8(entities.KindFreeform) {
		t.Fatalf("expected freeform kind, got %v", kinds)
	}
	if ids[0] != id.ID {
		t.Fatalf("expected id %x, got %x", id.ID, ids[0])
	}
	if titles[0] != "Around the World" {
		t.Fatalf("expected title to survive packing, got %q", titles[0])
	}
}

func TestCatalogCodecRejectsMismatchedProfileBatch(t *testing.T) {
	codec, _ := testCatalogCodec(t)

	if _, err := codec.SetProfileRecords(codecActor, []string{"bio", "url"}, []string{"touring"}); err == nil {
		t.Fatal("expected mismatched key/value lengths to fail")
	}
}

func TestCatalogCodecConsumeNonceDefaultsNilToZero(t *testing.T) {
	codec, _ := testCatalogCodec(t)

	call, err := codec.ConsumeNonce(codecActor, nil)
	if err != nil {
		t.Fatalf("consume nonce: %v", err)
	}
	unpacked, err := noncesABI.Methods["consumeFor"].Inputs.Unpack(call.Data[4:])
	if err != nil {
		t.Fatalf("unpack consume: %v", err)
	}
	if value := unpacked[1].(*big.Int); value.Sign() != 0 {
		t.Fatalf("expected zero nonce, got %s", value)
	}
}

func TestNewCatalogCodecRejectsMalformedAddress(t *testing.T) {
	_, err := NewCatalogCodec(CatalogAddresses{
		Nonces:    "not-an-address",
		Registry:  "0x0000000000000000000000000000000000000002",
		Names:     "0x0000000000000000000000000000000000000003",
		Profiles:  "0x0000000000000000000000000000000000000004",
		Playlists: "0x0000000000000000000000000000000000000005",
		Posts:     "0x0000000000000000000000000000000000000006",
	})
	if err == nil {
		t.Fatal("expected malformed contract address to fail")
	}
}

func TestAccessCodecPacksRegisterContent(t *testing.T) {
	codec, err := NewAccessCodec(AccessAddresses{
		Nonces:   "0x0000000000000000000000000000000000000011",
		Registry: "0x0000000000000000000000000000000000000012",
	})
	if err != nil {
		t.Fatalf("new access codec: %v", err)
	}

	call, err := codec.RegisterContent(codecActor, [32]byte{7}, "bafy-piece", 1)
	if err != nil {
		t.Fatalf("register content: %v", err)
	}
	assertCall(t, call, "0x0000000000000000000000000000000000000012",
		"registerFor(address,bytes32,string,uint8)")

	unpacked, err := accessABI.Methods["registerFor"].Inputs.Unpack(call.Data[4:])
	if err != nil {
		t.Fatalf("unpack register: %v", err)
	}
	if actor := unpacked[0].(common.Address); actor != common.HexToAddress(codecActor) {
		t.Fatalf("expected actor %s, got %s", codecActor, actor)
	}
	if ref := unpacked[2].(string); ref != "bafy-piece" {
		t.Fatalf("expected piece ref to survive packing, got %q", ref)
	}
	if algo := unpacked[3].(uint8); algo != 1 {
		t.Fatalf("expected sealing algo 1, got %d", algo)
	}
}
