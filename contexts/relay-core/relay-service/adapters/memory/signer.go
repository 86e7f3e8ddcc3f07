package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"baton/contexts/relay-core/relay-service/ports"
)

const defaultSignerAddress = "0x00000000000000000000000000000000000000aa"

// Signer is a deterministic stand-in for the relayer key. The raw transaction
// it emits is a JSON envelope the memory ledger knows how to decode.
type Signer struct {
	Account string
}

func (s Signer) Address() string {
	if s.Account != "" {
		return s.Account
	}
	return defaultSignerAddress
}

func (s Signer) SignTx(ctx context.Context, unsigned ports.UnsignedTx) ([]byte, string, error) {
	raw, err := json.Marshal(signedTx{From: s.Address(), Tx: unsigned})
	if err != nil {
		return nil, "", fmt.Errorf("sign transaction: %w", err)
	}
	sum := sha256.Sum256(raw)
	return raw, "0x" + hex.EncodeToString(sum[:]), nil
}

var _ ports.TxSigner = Signer{}
