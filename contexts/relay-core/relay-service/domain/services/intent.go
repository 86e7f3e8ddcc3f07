package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"baton/contexts/relay-core/relay-service/domain/entities"
	domainerrors "baton/contexts/relay-core/relay-service/domain/errors"
)

const (
	intentApp     = "baton"
	intentVersion = "v1"

	// FreshnessWindow bounds |now - signed timestamp| for intent acceptance.
	FreshnessWindow = 5 * time.Minute
)

// ValidActor reports whether the actor is a well-formed hex address.
func ValidActor(actor string) bool {
	return common.IsHexAddress(actor)
}

// PayloadHash hashes an operation's canonical payload string for the intent
// message. Clients must build the identical string to produce a valid signature.
func PayloadHash(canonicalPayload string) string {
	return hexutil.Encode(crypto.Keccak256([]byte(canonicalPayload)))
}

// IntentMessage rebuilds the canonical message the user signed.
func IntentMessage(i entities.Intent) string {
	return strings.Join([]string{
		intentApp,
		intentVersion,
		i.Operation,
		i.PayloadHash,
		strconv.FormatInt(i.Timestamp, 10),
		i.Nonce,
	}, ":")
}

// IntentDigest identifies one signed intent; journal rows dedupe on it.
func IntentDigest(i entities.Intent) string {
	return hexutil.Encode(crypto.Keccak256([]byte(IntentMessage(i))))
}

// CheckFreshness rejects intents signed outside the acceptance window, in
// either direction so a skewed client clock cannot mint far-future intents.
func CheckFreshness(i entities.Intent, now time.Time) error {
	drift := now.Sub(time.UnixMilli(i.Timestamp))
	if drift < 0 {
		drift = -drift
	}
	if drift > FreshnessWindow {
		return fmt.Errorf("%w: signed %s from now", domainerrors.ErrExpired, drift.Truncate(time.Second))
	}
	return nil
}

// RecoverSigner returns the address that produced the intent signature over
// the personal-message digest of the canonical message.
func RecoverSigner(i entities.Intent) (string, error) {
	if len(i.Signature) != 65 {
		return "", fmt.Errorf("%w: signature must be 65 bytes", domainerrors.ErrSignatureMismatch)
	}
	sig := make([]byte, 65)
	copy(sig, i.Signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] > 1 {
		return "", fmt.Errorf("%w: invalid recovery id", domainerrors.ErrSignatureMismatch)
	}

	digest := accounts.TextHash([]byte(IntentMessage(i)))
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domainerrors.ErrSignatureMismatch, err)
	}
	return crypto.PubkeyToAddress(*pub).Hex(), nil
}

// VerifySigner checks that the intent was signed by its claimed actor.
func VerifySigner(i entities.Intent) error {
	recovered, err := RecoverSigner(i)
	if err != nil {
		return err
	}
	if !strings.EqualFold(recovered, i.Actor) {
		return domainerrors.ErrSignatureMismatch
	}
	return nil
}
