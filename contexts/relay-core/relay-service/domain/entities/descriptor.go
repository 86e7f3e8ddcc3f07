package entities

import "encoding/hex"

// DescriptorKind tags the closed set of entity descriptor variants.
type DescriptorKind uint8

const (
	KindExternalCatalog DescriptorKind = 1
	KindAssetAddress    DescriptorKind = 2
	KindFreeform        DescriptorKind = 3
)

func (k DescriptorKind) String() string {
	switch k {
	case KindExternalCatalog:
		return "external_catalog_id"
	case KindAssetAddress:
		return "asset_address"
	case KindFreeform:
		return "freeform_metadata"
	default:
		return "unknown"
	}
}

// Descriptor identifies one domain entity (track, playlist) by exactly one of
// its kind-specific fields. Title/Artist/Album double as display metadata for
// every kind and as identifying fields for the freeform kind.
type Descriptor struct {
	Kind         DescriptorKind
	CatalogID    string // 16-byte external catalog UUID, hex, dashes optional
	AssetAddress string // 20-byte ledger address, 0x-hex
	Title        string
	Artist       string
	Album        string
}

// CanonicalID is the fixed-width identity derived from a descriptor. The same
// logical entity always collapses to the same ID; distinct kinds never collide.
type CanonicalID struct {
	Kind    DescriptorKind
	Payload [32]byte
	ID      [32]byte
}

func (c CanonicalID) Hex() string {
	return "0x" + hex.EncodeToString(c.ID[:])
}

// RegistrationEntry pairs a canonical identity with the display metadata the
// catalog registry stores alongside it.
type RegistrationEntry struct {
	Identity CanonicalID
	Title    string
	Artist   string
	Album    string
}
