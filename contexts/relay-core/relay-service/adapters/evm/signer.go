package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"baton/contexts/relay-core/relay-service/ports"
)

// Signer holds the relayer's local key and signs EIP-1559 transactions.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func NewSigner(hexKey string) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse relayer key: %w", err)
	}
	return &Signer{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

func (s *Signer) Address() string {
	return s.address.Hex()
}

func (s *Signer) SignTx(ctx context.Context, unsigned ports.UnsignedTx) ([]byte, string, error) {
	to := common.HexToAddress(unsigned.To)
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   unsigned.ChainID,
		Nonce:     unsigned.Nonce,
		GasTipCap: unsigned.Fees.TipCap,
		GasFeeCap: unsigned.Fees.FeeCap,
		Gas:       unsigned.GasLimit,
		To:        &to,
		Data:      unsigned.Data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(unsigned.ChainID), s.key)
	if err != nil {
		return nil, "", fmt.Errorf("sign transaction: %w", err)
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, "", fmt.Errorf("encode transaction: %w", err)
	}
	return raw, signed.Hash().Hex(), nil
}

var _ ports.TxSigner = (*Signer)(nil)
