// Package commands holds the relay write operations. Every use case follows
// the same shape: validate the request, verify the signed intent, journal it,
// run the ledger jobs through the engine and journal the aggregated outcome.
package commands

import (
	"fmt"
	"math/big"
	"strings"

	"baton/contexts/relay-core/relay-service/domain/entities"
	domainerrors "baton/contexts/relay-core/relay-service/domain/errors"
	"baton/contexts/relay-core/relay-service/domain/services"
)

// absentField marks optional fields in canonical payload strings.
const absentField = "-"

func parseNonce(nonce string) *big.Int {
	value, ok := new(big.Int).SetString(strings.TrimSpace(nonce), 10)
	if !ok {
		return big.NewInt(0)
	}
	return value
}

func validateActor(actor string) (string, error) {
	trimmed := strings.TrimSpace(actor)
	if !services.ValidActor(trimmed) {
		return "", fmt.Errorf("%w: actor must be a hex ledger address", domainerrors.ErrMalformedRequest)
	}
	return trimmed, nil
}

func entryFor(descriptor entities.Descriptor) (entities.RegistrationEntry, error) {
	identity, err := services.DeriveID(descriptor)
	if err != nil {
		return entities.RegistrationEntry{}, err
	}
	return entities.RegistrationEntry{
		Identity: identity,
		Title:    descriptor.Title,
		Artist:   descriptor.Artist,
		Album:    descriptor.Album,
	}, nil
}
