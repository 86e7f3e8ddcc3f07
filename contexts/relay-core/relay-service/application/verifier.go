package application

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"baton/contexts/relay-core/relay-service/domain/entities"
	domainerrors "baton/contexts/relay-core/relay-service/domain/errors"
	"baton/contexts/relay-core/relay-service/domain/services"
	"baton/contexts/relay-core/relay-service/ports"
)

// Verifier gates every relay operation before any transaction is built. It
// checks intent freshness, recovers and matches the signer, and compares the
// signed nonce against the counter the ledger currently holds for the actor.
type Verifier struct {
	Clock ports.Clock
}

func (v Verifier) Verify(ctx context.Context, reader ports.LedgerReader, intent entities.Intent) error {
	now := time.Now().UTC()
	if v.Clock != nil {
		now = v.Clock.Now().UTC()
	}

	if err := services.CheckFreshness(intent, now); err != nil {
		return err
	}
	if err := services.VerifySigner(intent); err != nil {
		return err
	}

	claimed, ok := new(big.Int).SetString(strings.TrimSpace(intent.Nonce), 10)
	if !ok || claimed.Sign() < 0 {
		return fmt.Errorf("%w: nonce must be a non-negative base-10 integer", domainerrors.ErrMalformedRequest)
	}

	counter, err := reader.IntentNonce(ctx, intent.Actor)
	if err != nil {
		return fmt.Errorf("read intent counter on %s: %w", reader.LedgerName(), err)
	}
	if counter.Cmp(claimed) != 0 {
		return fmt.Errorf("%w: ledger holds %s, intent signed with %s",
			domainerrors.ErrNonceMismatch, counter, claimed)
	}
	return nil
}
