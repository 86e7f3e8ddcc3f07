package services

import (
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"baton/contexts/relay-core/relay-service/domain/entities"
	domainerrors "baton/contexts/relay-core/relay-service/domain/errors"
)

var (
	typeUint8, _   = abi.NewType("uint8", "", nil)
	typeBytes32, _ = abi.NewType("bytes32", "", nil)
	typeString, _  = abi.NewType("string", "", nil)

	idArguments   = abi.Arguments{{Type: typeUint8}, {Type: typeBytes32}}
	metaArguments = abi.Arguments{{Type: typeString}, {Type: typeString}, {Type: typeString}}
)

// markStripper decomposes accented runes and drops the combining marks, so
// "Café" and "cafe" fold to the same canonical form.
var markStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize folds a freeform metadata field to its canonical comparable form:
// accents stripped, lowercased, trimmed, internal whitespace collapsed.
func Normalize(s string) string {
	folded, _, err := transform.String(markStripper, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// DeriveID maps a descriptor to its canonical 32-byte identifier. The kind tag
// is hashed alongside the payload, so identical payload bytes under different
// kinds never collide. Pure and deterministic: the derived id is a forever
// commitment, any change here would orphan every registered entity.
func DeriveID(d entities.Descriptor) (entities.CanonicalID, error) {
	var payload [32]byte

	switch d.Kind {
	case entities.KindExternalCatalog:
		compact := strings.ReplaceAll(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d.CatalogID)), "0x"), "-", "")
		raw, err := hex.DecodeString(compact)
		if err != nil || len(raw) != 16 {
			return entities.CanonicalID{}, fmt.Errorf("%w: external catalog id must be 16 bytes of hex", domainerrors.ErrMalformedDescriptor)
		}
		copy(payload[:16], raw)

	case entities.KindAssetAddress:
		addr := strings.TrimSpace(d.AssetAddress)
		if !common.IsHexAddress(addr) {
			return entities.CanonicalID{}, fmt.Errorf("%w: asset address must be 20 bytes of hex", domainerrors.ErrMalformedDescriptor)
		}
		copy(payload[12:], common.HexToAddress(addr).Bytes())

	case entities.KindFreeform:
		title := Normalize(d.Title)
		artist := Normalize(d.Artist)
		if title == "" || artist == "" {
			return entities.CanonicalID{}, fmt.Errorf("%w: freeform descriptor requires title and artist", domainerrors.ErrMalformedDescriptor)
		}
		packed, err := metaArguments.Pack(title, artist, Normalize(d.Album))
		if err != nil {
			return entities.CanonicalID{}, fmt.Errorf("pack freeform metadata: %w", err)
		}
		copy(payload[:], crypto.Keccak256(packed))

	default:
		return entities.CanonicalID{}, fmt.Errorf("%w: unknown descriptor kind %d", domainerrors.ErrMalformedDescriptor, d.Kind)
	}

	packed, err := idArguments.Pack(uint8(d.Kind), payload)
	if err != nil {
		return entities.CanonicalID{}, fmt.Errorf("pack canonical id: %w", err)
	}

	var id [32]byte
	copy(id[:], crypto.Keccak256(packed))
	return entities.CanonicalID{Kind: d.Kind, Payload: payload, ID: id}, nil
}
