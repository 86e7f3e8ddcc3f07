package entities

// OutcomeStatus classifies the terminal state of one relay operation.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	// OutcomePartial means a multi-ledger operation committed on the gating
	// ledger but not on the other; only the pending step may be retried.
	OutcomePartial OutcomeStatus = "partial"
	OutcomeFailed  OutcomeStatus = "failed"
)

// StepResult is the raw result of one pipeline step, before aggregation.
// Steps that touch no ledger leave Ledger empty.
type StepResult struct {
	Name    string
	Ledger  LedgerName
	Receipt *Receipt
	Err     error
}

// StepRecord is the serializable trace of one completed step.
type StepRecord struct {
	Name        string     `json:"name"`
	Ledger      LedgerName `json:"ledger,omitempty"`
	TxHash      string     `json:"tx_hash,omitempty"`
	BlockNumber uint64     `json:"block_number,omitempty"`
}

// Outcome is the structured result every operation resolves to. Callers never
// see raw provider faults; failures are folded in here as strings.
type Outcome struct {
	Status      OutcomeStatus `json:"status"`
	Completed   []StepRecord  `json:"completed"`
	PendingStep string        `json:"pending_step,omitempty"`
	Error       string        `json:"error,omitempty"`
	Warnings    []string      `json:"warnings,omitempty"`
}

func (o Outcome) Succeeded() bool {
	return o.Status == OutcomeSuccess
}

// TxHashOf returns the transaction hash recorded for a named step, if any.
func (o Outcome) TxHashOf(step string) string {
	for _, record := range o.Completed {
		if record.Name == step {
			return record.TxHash
		}
	}
	return ""
}
