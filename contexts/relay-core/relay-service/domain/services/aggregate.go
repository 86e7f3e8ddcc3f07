package services

import "baton/contexts/relay-core/relay-service/domain/entities"

// Aggregate folds pipeline step results into one serializable outcome. Every
// failure from verification, registration, or broadcast ends up here; callers
// never see raw provider faults.
//
// An operation is partial, not failed, when the failing step targets a
// different ledger than an already-committed write: the committed leg is
// irreversible on a public ledger and only the pending step may be retried.
func Aggregate(steps []entities.StepResult, warnings []string) entities.Outcome {
	outcome := entities.Outcome{
		Status:    entities.OutcomeSuccess,
		Completed: make([]entities.StepRecord, 0, len(steps)),
		Warnings:  warnings,
	}

	var committedLedgers []entities.LedgerName
	for _, step := range steps {
		if step.Err == nil {
			record := entities.StepRecord{Name: step.Name, Ledger: step.Ledger}
			if step.Receipt != nil {
				record.TxHash = step.Receipt.TxHash
				record.BlockNumber = step.Receipt.BlockNumber
			}
			outcome.Completed = append(outcome.Completed, record)
			if step.Ledger != "" && step.Receipt != nil {
				committedLedgers = append(committedLedgers, step.Ledger)
			}
			continue
		}

		outcome.Status = entities.OutcomeFailed
		outcome.Error = step.Err.Error()
		if step.Ledger != "" && committedOnOtherLedger(committedLedgers, step.Ledger) {
			outcome.Status = entities.OutcomePartial
			outcome.PendingStep = step.Name
		}
		break
	}

	return outcome
}

func committedOnOtherLedger(committed []entities.LedgerName, failing entities.LedgerName) bool {
	for _, ledger := range committed {
		if ledger != failing {
			return true
		}
	}
	return false
}
