package errors

import "errors"

var (
	ErrExpired             = errors.New("intent timestamp outside freshness window")
	ErrSignatureMismatch   = errors.New("recovered signer does not match actor")
	ErrNonceMismatch       = errors.New("intent nonce does not match ledger counter")
	ErrMalformedDescriptor = errors.New("malformed entity descriptor")
	ErrMalformedRequest    = errors.New("malformed relay request")
	ErrNameUnavailable     = errors.New("name is already claimed")
	ErrIntentInFlight      = errors.New("identical intent is already executing")
	ErrBroadcastFailed     = errors.New("transaction broadcast failed")
	ErrReceiptTimeout      = errors.New("confirmation not observed before timeout, outcome unknown")
	ErrTransactionReverted = errors.New("transaction reverted on ledger")
	ErrPartialMirror       = errors.New("gating ledger committed, mirror leg pending")
	ErrJobNotFound         = errors.New("relay job not found")
)
