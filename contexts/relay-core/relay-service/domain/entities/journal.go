package entities

import (
	"encoding/hex"
	"strings"
	"time"

	domainerrors "baton/contexts/relay-core/relay-service/domain/errors"
)

// JobStatus tracks a journal row through its lifecycle.
type JobStatus string

const (
	JobInFlight   JobStatus = "in_flight"
	JobSucceeded  JobStatus = "succeeded"
	JobFailed     JobStatus = "failed"
	JobPartial    JobStatus = "partial"
	JobReconciled JobStatus = "reconciled"
	JobStuck      JobStatus = "stuck"
)

// JournalEntry is the observational record of one relay operation. The ledger
// stays the source of truth; the journal exists for outcome polling and for
// reconciling partial multi-ledger operations.
type JournalEntry struct {
	JobID         string
	Operation     string
	Actor         string
	IntentDigest  string
	Status        JobStatus
	Outcome       Outcome
	MirrorEntries []MirrorEntry
	Attempts      int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewJournalEntry(jobID, operation, actor, intentDigest string, createdAt time.Time) (JournalEntry, error) {
	if strings.TrimSpace(jobID) == "" ||
		strings.TrimSpace(operation) == "" ||
		strings.TrimSpace(actor) == "" ||
		strings.TrimSpace(intentDigest) == "" {
		return JournalEntry{}, domainerrors.ErrMalformedRequest
	}
	return JournalEntry{
		JobID:        jobID,
		Operation:    operation,
		Actor:        actor,
		IntentDigest: strings.ToLower(intentDigest),
		Status:       JobInFlight,
		CreatedAt:    createdAt.UTC(),
		UpdatedAt:    createdAt.UTC(),
	}, nil
}

// MirrorEntry is the serializable form of one catalog registration still owed
// after a partial content registration.
type MirrorEntry struct {
	Kind    uint8  `json:"kind"`
	Payload string `json:"payload"`
	ID      string `json:"id"`
	Title   string `json:"title,omitempty"`
	Artist  string `json:"artist,omitempty"`
	Album   string `json:"album,omitempty"`
}

// ToMirrorEntry flattens a registration entry for journal storage.
func (e RegistrationEntry) ToMirrorEntry() MirrorEntry {
	return MirrorEntry{
		Kind:    uint8(e.Identity.Kind),
		Payload: "0x" + hex.EncodeToString(e.Identity.Payload[:]),
		ID:      e.Identity.Hex(),
		Title:   e.Title,
		Artist:  e.Artist,
		Album:   e.Album,
	}
}

// ToRegistrationEntry restores the registration entry a mirror row encodes.
func (m MirrorEntry) ToRegistrationEntry() (RegistrationEntry, error) {
	payload, err := decodeHex32(m.Payload)
	if err != nil {
		return RegistrationEntry{}, err
	}
	id, err := decodeHex32(m.ID)
	if err != nil {
		return RegistrationEntry{}, err
	}
	return RegistrationEntry{
		Identity: CanonicalID{Kind: DescriptorKind(m.Kind), Payload: payload, ID: id},
		Title:    m.Title,
		Artist:   m.Artist,
		Album:    m.Album,
	}, nil
}

func decodeHex32(s string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x"))
	if err != nil || len(raw) != 32 {
		return out, domainerrors.ErrMalformedRequest
	}
	copy(out[:], raw)
	return out, nil
}
