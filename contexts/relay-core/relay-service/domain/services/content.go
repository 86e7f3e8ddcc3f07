package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	domainerrors "baton/contexts/relay-core/relay-service/domain/errors"
)

// ParsePieceRef validates a content-addressed piece reference. The string is
// returned as signed by the user, trimmed but otherwise untouched, because it
// is carried verbatim into calldata.
func ParsePieceRef(ref string) (string, error) {
	trimmed := strings.TrimSpace(ref)
	parsed, err := cid.Decode(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: piece ref: %v", domainerrors.ErrMalformedRequest, err)
	}
	decoded, err := multihash.Decode(parsed.Hash())
	if err != nil {
		return "", fmt.Errorf("%w: piece ref multihash: %v", domainerrors.ErrMalformedRequest, err)
	}
	if decoded.Code != multihash.SHA2_256 {
		return "", fmt.Errorf("%w: piece ref must use sha2-256, got %s",
			domainerrors.ErrMalformedRequest, decoded.Name)
	}
	return trimmed, nil
}

// DigestHex is the lowercase hex sha-256 of raw bytes. Signed payloads bind
// uploaded media through it.
func DigestHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
