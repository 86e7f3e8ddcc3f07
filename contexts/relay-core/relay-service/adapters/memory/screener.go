package memory

import (
	"context"
	"sync"

	"baton/contexts/relay-core/relay-service/ports"
)

// Screener is a canned content gate. By default everything passes with the
// configured flags; RejectWith makes the next check fail the way the real
// screening module would.
type Screener struct {
	mu       sync.Mutex
	flags    []string
	failWith error
}

func NewScreener() *Screener {
	return &Screener{}
}

func (s *Screener) Screen(ctx context.Context, media *ports.MediaCheck, text string) (ports.ScreenVerdict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWith != nil {
		err := s.failWith
		s.failWith = nil
		return ports.ScreenVerdict{Safe: false, Reason: err.Error()}, err
	}
	return ports.ScreenVerdict{Safe: true, Flags: append([]string(nil), s.flags...)}, nil
}

// RejectWith fails the next check with err.
func (s *Screener) RejectWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

// FlagNext attaches classifier flags to every following verdict.
func (s *Screener) FlagNext(flags ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags = flags
}

// Transform is a canned transform hook.
type Transform struct {
	mu     sync.Mutex
	result string
	err    error
}

func NewTransform() *Transform {
	return &Transform{}
}

func (t *Transform) Apply(ctx context.Context, flag, text string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.err != nil {
		return "", t.err
	}
	if t.result != "" {
		return t.result, nil
	}
	return text, nil
}

// Return makes every Apply return the given text.
func (t *Transform) Return(result string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.result = result
}

// Fail makes every Apply return err.
func (t *Transform) Fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.err = err
}

var _ ports.ContentScreener = (*Screener)(nil)
var _ ports.TransformHook = (*Transform)(nil)
