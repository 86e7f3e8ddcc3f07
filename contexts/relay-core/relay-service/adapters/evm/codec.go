package evm

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"baton/contexts/relay-core/relay-service/domain/entities"
	"baton/contexts/relay-core/relay-service/ports"
)

// Contract ABI fragments for the deployed ledger surface. Only the methods the
// relayer reads or calls are declared.
const (
	noncesABIJSON = `[
		{"type":"function","name":"nonces","stateMutability":"view","inputs":[{"name":"actor","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
		{"type":"function","name":"consumeFor","inputs":[{"name":"actor","type":"address"},{"name":"value","type":"uint256"}],"outputs":[]}
	]`

	catalogABIJSON = `[
		{"type":"function","name":"isRegistered","stateMutability":"view","inputs":[{"name":"id","type":"bytes32"}],"outputs":[{"name":"","type":"bool"}]},
		{"type":"function","name":"registerBatch","inputs":[{"name":"kinds","type":"uint8[]"},{"name":"payloads","type":"bytes32[]"},{"name":"ids","type":"bytes32[]"},{"name":"titles","type":"string[]"},{"name":"artists","type":"string[]"},{"name":"albums","type":"string[]"}],"outputs":[]},
		{"type":"function","name":"coverOf","stateMutability":"view","inputs":[{"name":"id","type":"bytes32"}],"outputs":[{"name":"","type":"string"}]},
		{"type":"function","name":"setCoverFor","inputs":[{"name":"id","type":"bytes32"},{"name":"ref","type":"string"}],"outputs":[]}
	]`

	namesABIJSON = `[
		{"type":"function","name":"available","stateMutability":"view","inputs":[{"name":"label","type":"string"}],"outputs":[{"name":"","type":"bool"}]},
		{"type":"function","name":"claimFor","inputs":[{"name":"actor","type":"address"},{"name":"label","type":"string"}],"outputs":[]}
	]`

	profilesABIJSON = `[
		{"type":"function","name":"textOf","stateMutability":"view","inputs":[{"name":"actor","type":"address"},{"name":"key","type":"string"}],"outputs":[{"name":"","type":"string"}]},
		{"type":"function","name":"setTextBatchFor","inputs":[{"name":"actor","type":"address"},{"name":"keys","type":"string[]"},{"name":"values","type":"string[]"}],"outputs":[]}
	]`

	playlistsABIJSON = `[
		{"type":"function","name":"submitFor","inputs":[{"name":"actor","type":"address"},{"name":"playlistId","type":"bytes32"},{"name":"trackIds","type":"bytes32[]"},{"name":"coverRef","type":"string"}],"outputs":[]}
	]`

	postsABIJSON = `[
		{"type":"function","name":"publishFor","inputs":[{"name":"actor","type":"address"},{"name":"contentRef","type":"string"}],"outputs":[]}
	]`

	accessABIJSON = `[
		{"type":"function","name":"isRegistered","stateMutability":"view","inputs":[{"name":"id","type":"bytes32"}],"outputs":[{"name":"","type":"bool"}]},
		{"type":"function","name":"registerFor","inputs":[{"name":"actor","type":"address"},{"name":"id","type":"bytes32"},{"name":"pieceRef","type":"string"},{"name":"algo","type":"uint8"}],"outputs":[]}
	]`
)

var (
	noncesABI    = mustABI(noncesABIJSON)
	catalogABI   = mustABI(catalogABIJSON)
	namesABI     = mustABI(namesABIJSON)
	profilesABI  = mustABI(profilesABIJSON)
	playlistsABI = mustABI(playlistsABIJSON)
	postsABI     = mustABI(postsABIJSON)
	accessABI    = mustABI(accessABIJSON)
)

func mustABI(definition string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		panic(err)
	}
	return parsed
}

func parseAddress(value, label string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%s contract address %q is not a hex address", label, value)
	}
	return common.HexToAddress(value), nil
}

func nonceOrZero(nonce *big.Int) *big.Int {
	if nonce == nil {
		return big.NewInt(0)
	}
	return nonce
}

func packCall(to common.Address, parsed abi.ABI, method string, args ...any) (ports.Call, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return ports.Call{}, fmt.Errorf("pack %s: %w", method, err)
	}
	return ports.Call{To: to.Hex(), Data: data}, nil
}

// CatalogAddresses names the contracts deployed on the catalog ledger.
type CatalogAddresses struct {
	Nonces    string
	Registry  string
	Names     string
	Profiles  string
	Playlists string
	Posts     string
}

// CatalogCodec packs calldata for the catalog ledger contracts.
type CatalogCodec struct {
	nonces    common.Address
	registry  common.Address
	names     common.Address
	profiles  common.Address
	playlists common.Address
	posts     common.Address
}

func NewCatalogCodec(addresses CatalogAddresses) (*CatalogCodec, error) {
	codec := &CatalogCodec{}
	for _, bind := range []struct {
		target *common.Address
		value  string
		label  string
	}{
		{&codec.nonces, addresses.Nonces, "intent nonces"},
		{&codec.registry, addresses.Registry, "catalog registry"},
		{&codec.names, addresses.Names, "name registry"},
		{&codec.profiles, addresses.Profiles, "profile records"},
		{&codec.playlists, addresses.Playlists, "playlist registry"},
		{&codec.posts, addresses.Posts, "post journal"},
	} {
		parsed, err := parseAddress(bind.value, bind.label)
		if err != nil {
			return nil, err
		}
		*bind.target = parsed
	}
	return codec, nil
}

func (c *CatalogCodec) ConsumeNonce(actor string, nonce *big.Int) (ports.Call, error) {
	return packCall(c.nonces, noncesABI, "consumeFor", common.HexToAddress(actor), nonceOrZero(nonce))
}

func (c *CatalogCodec) RegisterBatch(entries []entities.RegistrationEntry) (ports.Call, error) {
	kinds := make([]uint8, 0, len(entries))
	payloads := make([][32]byte, 0, len(entries))
	ids := make([][32]byte, 0, len(entries))
	titles := make([]string, 0, len(entries))
	artists := make([]string, 0, len(entries))
	albums := make([]string, 0, len(entries))
	for _, entry := range entries {
		kinds = append(kinds, uint8(entry.Identity.Kind))
		payloads = append(payloads, entry.Identity.Payload)
		ids = append(ids, entry.Identity.ID)
		titles = append(titles, entry.Title)
		artists = append(artists, entry.Artist)
		albums = append(albums, entry.Album)
	}
	return packCall(c.registry, catalogABI, "registerBatch", kinds, payloads, ids, titles, artists, albums)
}

func (c *CatalogCodec) SetCover(id [32]byte, ref string) (ports.Call, error) {
	return packCall(c.registry, catalogABI, "setCoverFor", id, ref)
}

func (c *CatalogCodec) ClaimName(actor, label string) (ports.Call, error) {
	return packCall(c.names, namesABI, "claimFor", common.HexToAddress(actor), label)
}

func (c *CatalogCodec) SetProfileRecords(actor string, keys, values []string) (ports.Call, error) {
	if len(keys) != len(values) {
		return ports.Call{}, fmt.Errorf("pack setTextBatchFor: %d keys, %d values", len(keys), len(values))
	}
	return packCall(c.profiles, profilesABI, "setTextBatchFor", common.HexToAddress(actor), keys, values)
}

func (c *CatalogCodec) SubmitPlaylist(actor string, playlistID [32]byte, trackIDs [][32]byte, coverRef string) (ports.Call, error) {
	return packCall(c.playlists, playlistsABI, "submitFor", common.HexToAddress(actor), playlistID, trackIDs, coverRef)
}

func (c *CatalogCodec) PublishPost(actor, contentRef string) (ports.Call, error) {
	return packCall(c.posts, postsABI, "publishFor", common.HexToAddress(actor), contentRef)
}

// AccessAddresses names the contracts deployed on the access ledger.
type AccessAddresses struct {
	Nonces   string
	Registry string
}

// AccessCodec packs calldata for the access ledger contracts.
type AccessCodec struct {
	nonces   common.Address
	registry common.Address
}

func NewAccessCodec(addresses AccessAddresses) (*AccessCodec, error) {
	nonces, err := parseAddress(addresses.Nonces, "intent nonces")
	if err != nil {
		return nil, err
	}
	registry, err := parseAddress(addresses.Registry, "access registry")
	if err != nil {
		return nil, err
	}
	return &AccessCodec{nonces: nonces, registry: registry}, nil
}

func (c *AccessCodec) ConsumeNonce(actor string, nonce *big.Int) (ports.Call, error) {
	return packCall(c.nonces, noncesABI, "consumeFor", common.HexToAddress(actor), nonceOrZero(nonce))
}

func (c *AccessCodec) RegisterContent(actor string, contentID [32]byte, pieceRef string, algo uint8) (ports.Call, error) {
	return packCall(c.registry, accessABI, "registerFor", common.HexToAddress(actor), contentID, pieceRef, algo)
}

var _ ports.CatalogCodec = (*CatalogCodec)(nil)
var _ ports.AccessCodec = (*AccessCodec)(nil)
