package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"baton/contexts/media-safety/screening-service/ports"
)

// Store is an in-memory classifier for local runtime and tests. Everything is
// safe unless a rejection or flag was registered first.
type Store struct {
	mu           sync.RWMutex
	unsafeTexts  map[string]string
	unsafeMedia  map[string]string
	flagsByText  map[string][]string
	failNextWith error
}

func NewStore() *Store {
	return &Store{
		unsafeTexts: make(map[string]string),
		unsafeMedia: make(map[string]string),
		flagsByText: make(map[string][]string),
	}
}

// RejectText marks a text as unsafe with the given reason.
func (s *Store) RejectText(text, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsafeTexts[text] = reason
}

// RejectMedia marks a media payload as unsafe with the given reason.
func (s *Store) RejectMedia(data []byte, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsafeMedia[digest(data)] = reason
}

// FlagText attaches auxiliary flags to a safe text verdict.
func (s *Store) FlagText(text string, flags ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flagsByText[text] = flags
}

// FailNext makes the next Classify call fail with err.
func (s *Store) FailNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNextWith = err
}

func (s *Store) Classify(_ context.Context, media *ports.Media, text string) (ports.Verdict, error) {
	s.mu.Lock()
	if s.failNextWith != nil {
		err := s.failNextWith
		s.failNextWith = nil
		s.mu.Unlock()
		return ports.Verdict{}, err
	}
	s.mu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if reason, ok := s.unsafeTexts[text]; ok && text != "" {
		return ports.Verdict{Safe: false, Reason: reason}, nil
	}
	if media != nil {
		if reason, ok := s.unsafeMedia[digest(media.Data)]; ok {
			return ports.Verdict{Safe: false, Reason: reason}, nil
		}
	}
	return ports.Verdict{Safe: true, Flags: s.flagsByText[text]}, nil
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
