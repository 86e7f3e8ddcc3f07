package memory

import (
	"context"
	"fmt"
	"sync"

	"baton/contexts/relay-core/relay-service/ports"
)

// StoredObject is one pinned object with its metadata.
type StoredObject struct {
	Name        string
	ContentType string
	Data        []byte
}

// ObjectStore pins objects in memory and hands back ar:// style identifiers.
type ObjectStore struct {
	mu      sync.Mutex
	objects map[string]StoredObject
	seq     int
	failPut error
}

func NewObjectStore() *ObjectStore {
	return &ObjectStore{objects: make(map[string]StoredObject)}
}

func (s *ObjectStore) Put(ctx context.Context, data []byte, contentType, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failPut != nil {
		err := s.failPut
		s.failPut = nil
		return "", err
	}

	s.seq++
	ref := fmt.Sprintf("ar://mem-%06d", s.seq)
	copied := make([]byte, len(data))
	copy(copied, data)
	s.objects[ref] = StoredObject{Name: name, ContentType: contentType, Data: copied}
	return ref, nil
}

// Object returns a pinned object by identifier.
func (s *ObjectStore) Object(ref string) (StoredObject, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	object, ok := s.objects[ref]
	return object, ok
}

// Len reports how many objects are pinned.
func (s *ObjectStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// FailNextPut makes the next Put return err.
func (s *ObjectStore) FailNextPut(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPut = err
}

// IDGenerator hands out sequential ids for deterministic tests.
type IDGenerator struct {
	mu     sync.Mutex
	prefix string
	seq    int
}

func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "relay"
	}
	return &IDGenerator{prefix: prefix}
}

func (g *IDGenerator) NewID(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("%s-%06d", g.prefix, g.seq), nil
}

var _ ports.ObjectStore = (*ObjectStore)(nil)
var _ ports.IDGenerator = (*IDGenerator)(nil)
