package application

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"baton/contexts/relay-core/relay-service/domain/entities"
	domainerrors "baton/contexts/relay-core/relay-service/domain/errors"
	"baton/contexts/relay-core/relay-service/ports"
)

const (
	defaultReceiptPollInterval = 1250 * time.Millisecond
	defaultReceiptTimeout      = 45 * time.Second
)

// Gas and fee headroom applied over node estimates, in tenths.
const (
	headroomNum = 12
	headroomDen = 10
)

// Job is one contract call queued for broadcast. A zero GasLimit on the call
// asks the engine to estimate.
type Job struct {
	Label string
	Call  ports.Call
}

// SequencedLeg groups the jobs that must land on one ledger before the next
// leg starts.
type SequencedLeg struct {
	Ledger entities.LedgerName
	Jobs   []Job
}

// Engine signs and broadcasts relayer transactions. All sequence-number
// handling lives here: a session snapshots the relayer account's pending
// sequence once and advances a local counter per accepted broadcast, so jobs
// inside one request never race each other or re-query the node.
type Engine struct {
	Submitters     map[entities.LedgerName]ports.LedgerSubmitter
	Signer         ports.TxSigner
	Coordinator    *Coordinator
	PollInterval   time.Duration
	ReceiptTimeout time.Duration
	Logger         *slog.Logger
}

// Session is exclusive use of one ledger's relayer account until Close.
type Session struct {
	Ledger entities.LedgerName

	submitter ports.LedgerSubmitter
	chainID   *big.Int
	next      uint64
	release   func()
	closed    bool
}

func (s *Session) Close() {
	if s == nil || s.closed {
		return
	}
	s.closed = true
	if s.release != nil {
		s.release()
	}
}

// NewSession acquires the ledger slot and seeds the local sequence counter
// from the node's pending count.
func (e *Engine) NewSession(ctx context.Context, ledger entities.LedgerName) (*Session, error) {
	submitter, ok := e.Submitters[ledger]
	if !ok {
		return nil, fmt.Errorf("no submitter configured for %s ledger", ledger)
	}

	release, err := e.Coordinator.Acquire(ctx, ledger)
	if err != nil {
		return nil, err
	}

	next, err := submitter.PendingNonce(ctx, e.Signer.Address())
	if err != nil {
		release()
		return nil, fmt.Errorf("seed relayer sequence on %s: %w", ledger, err)
	}

	return &Session{
		Ledger:    ledger,
		submitter: submitter,
		chainID:   submitter.ChainID(),
		next:      next,
		release:   release,
	}, nil
}

// Submit signs one job with the session's next sequence number, broadcasts it
// and waits for the receipt. A rejected broadcast is retried once with bumped
// fees on the same sequence number before giving up.
func (e *Engine) Submit(ctx context.Context, session *Session, job Job) (entities.Receipt, error) {
	logger := ResolveLogger(e.Logger)

	call := job.Call
	gasLimit := call.GasLimit
	if gasLimit == 0 {
		estimated, err := session.submitter.EstimateGas(ctx, e.Signer.Address(), call)
		if err != nil {
			return entities.Receipt{}, fmt.Errorf("%w: estimate gas for %s on %s: %v",
				domainerrors.ErrBroadcastFailed, job.Label, session.Ledger, err)
		}
		gasLimit = estimated * headroomNum / headroomDen
	}

	fees, err := session.submitter.SuggestFees(ctx)
	if err != nil {
		return entities.Receipt{}, fmt.Errorf("%w: price %s on %s: %v",
			domainerrors.ErrBroadcastFailed, job.Label, session.Ledger, err)
	}

	unsigned := ports.UnsignedTx{
		ChainID:  session.chainID,
		Nonce:    session.next,
		To:       call.To,
		Data:     call.Data,
		GasLimit: gasLimit,
		Fees:     fees,
	}

	raw, txHash, err := e.Signer.SignTx(ctx, unsigned)
	if err != nil {
		return entities.Receipt{}, fmt.Errorf("%w: sign %s: %v", domainerrors.ErrBroadcastFailed, job.Label, err)
	}

	hash, err := session.submitter.Broadcast(ctx, raw)
	if err != nil {
		logger.Warn("broadcast rejected, retrying once with bumped fees",
			"event", "relay_broadcast_retry",
			"module", "relay-core/relay-service",
			"layer", "application",
			"ledger", session.Ledger,
			"step", job.Label,
			"error", err)

		unsigned.Fees = bumpFees(fees)
		raw, txHash, err = e.Signer.SignTx(ctx, unsigned)
		if err != nil {
			return entities.Receipt{}, fmt.Errorf("%w: re-sign %s: %v", domainerrors.ErrBroadcastFailed, job.Label, err)
		}
		hash, err = session.submitter.Broadcast(ctx, raw)
		if err != nil {
			return entities.Receipt{}, fmt.Errorf("%w: %s on %s: %v",
				domainerrors.ErrBroadcastFailed, job.Label, session.Ledger, err)
		}
	}
	if hash == "" {
		hash = txHash
	}

	// The node accepted the transaction, so the sequence number is spent even
	// if execution later reverts.
	session.next++

	receipt, err := e.awaitReceipt(ctx, session, job.Label, hash)
	if err != nil {
		return receipt, err
	}

	logger.Info("relay transaction confirmed",
		"event", "relay_tx_confirmed",
		"module", "relay-core/relay-service",
		"layer", "application",
		"ledger", session.Ledger,
		"step", job.Label,
		"tx_hash", hash,
		"block_number", receipt.BlockNumber,
		"gas_used", receipt.GasUsed)

	return receipt, nil
}

func (e *Engine) awaitReceipt(ctx context.Context, session *Session, label, txHash string) (entities.Receipt, error) {
	deadline := time.NewTimer(e.receiptTimeout())
	defer deadline.Stop()
	ticker := time.NewTicker(e.pollInterval())
	defer ticker.Stop()

	for {
		receipt, found, err := session.submitter.Receipt(ctx, txHash)
		if err == nil && found {
			if !receipt.Succeeded() {
				return receipt, fmt.Errorf("%w: %s tx %s on %s",
					domainerrors.ErrTransactionReverted, label, txHash, session.Ledger)
			}
			return receipt, nil
		}
		if err != nil {
			// Node blips during polling are not fatal while the deadline holds.
			ResolveLogger(e.Logger).Warn("receipt poll failed",
				"event", "relay_receipt_poll_failed",
				"module", "relay-core/relay-service",
				"layer", "application",
				"ledger", session.Ledger,
				"tx_hash", txHash,
				"error", err)
		}

		select {
		case <-ctx.Done():
			return entities.Receipt{}, fmt.Errorf("%w: %s tx %s: %v",
				domainerrors.ErrReceiptTimeout, label, txHash, ctx.Err())
		case <-deadline.C:
			return entities.Receipt{}, fmt.Errorf("%w: %s tx %s unconfirmed after %s",
				domainerrors.ErrReceiptTimeout, label, txHash, e.receiptTimeout())
		case <-ticker.C:
		}
	}
}

// RunLeg submits jobs in order on an open session and stops at the first
// failure. The failing step is returned with its error attached.
func (e *Engine) RunLeg(ctx context.Context, session *Session, jobs []Job) []entities.StepResult {
	steps := make([]entities.StepResult, 0, len(jobs))
	for _, job := range jobs {
		receipt, err := e.Submit(ctx, session, job)
		if err != nil {
			steps = append(steps, entities.StepResult{Name: job.Label, Ledger: session.Ledger, Err: err})
			return steps
		}
		confirmed := receipt
		steps = append(steps, entities.StepResult{Name: job.Label, Ledger: session.Ledger, Receipt: &confirmed})
	}
	return steps
}

// RunJobs opens a session for one ledger, runs the jobs and releases the slot.
func (e *Engine) RunJobs(ctx context.Context, ledger entities.LedgerName, jobs []Job) []entities.StepResult {
	if len(jobs) == 0 {
		return nil
	}
	session, err := e.NewSession(ctx, ledger)
	if err != nil {
		return []entities.StepResult{{Name: jobs[0].Label, Ledger: ledger, Err: err}}
	}
	defer session.Close()
	return e.RunLeg(ctx, session, jobs)
}

// SubmitSequenced runs legs strictly in order and stops after the first leg
// that fails, leaving later legs untouched.
func (e *Engine) SubmitSequenced(ctx context.Context, legs []SequencedLeg) []entities.StepResult {
	var steps []entities.StepResult
	for _, leg := range legs {
		if len(leg.Jobs) == 0 {
			continue
		}
		legSteps := e.RunJobs(ctx, leg.Ledger, leg.Jobs)
		steps = append(steps, legSteps...)
		if len(legSteps) > 0 && legSteps[len(legSteps)-1].Err != nil {
			return steps
		}
	}
	return steps
}

func (e *Engine) pollInterval() time.Duration {
	if e.PollInterval > 0 {
		return e.PollInterval
	}
	return defaultReceiptPollInterval
}

func (e *Engine) receiptTimeout() time.Duration {
	if e.ReceiptTimeout > 0 {
		return e.ReceiptTimeout
	}
	return defaultReceiptTimeout
}

func bumpFees(fees ports.GasFees) ports.GasFees {
	return ports.GasFees{TipCap: bumpWei(fees.TipCap), FeeCap: bumpWei(fees.FeeCap)}
}

func bumpWei(value *big.Int) *big.Int {
	if value == nil {
		return nil
	}
	bumped := new(big.Int).Mul(value, big.NewInt(headroomNum))
	return bumped.Div(bumped, big.NewInt(headroomDen))
}
