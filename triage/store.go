package triage

import (
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultStoreSize is how many messages a MemoryStore keeps by default
const DefaultStoreSize = 10000

// Store is a key-value lookup of messages by ID
type Store interface {
	Get(id string) (Message, bool)
	Put(msgs ...Message)
	List() []Message
}

// MemoryStore is a Store held in process memory. It keeps the most recently
// used messages up to its size and evicts the rest.
type MemoryStore struct {
	messages *lru.Cache[string, Message]
}

// NewMemoryStore creates a store seeded with msgs, large enough to hold all
// of them and at least DefaultStoreSize
func NewMemoryStore(msgs ...Message) *MemoryStore {
	s := NewBoundedStore(max(DefaultStoreSize, len(msgs)))
	s.Put(msgs...)
	return s
}

// NewBoundedStore creates an empty store holding at most size messages.
// A size below 1 uses DefaultStoreSize.
func NewBoundedStore(size int) *MemoryStore {
	if size < 1 {
		size = DefaultStoreSize
	}
	// lru.New only fails for sizes below 1
	c, _ := lru.New[string, Message](size)
	return &MemoryStore{messages: c}
}

// Get implements Store
func (s *MemoryStore) Get(id string) (Message, bool) {
	return s.messages.Get(id)
}

// Put implements Store. Messages without an ID are skipped.
func (s *MemoryStore) Put(msgs ...Message) {
	for _, m := range msgs {
		if m.ID == "" {
			continue
		}
		s.messages.Add(m.ID, m)
	}
}

// List implements Store, ordered by ID
func (s *MemoryStore) List() []Message {
	out := s.messages.Values()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len is the number of stored messages
func (s *MemoryStore) Len() int {
	return s.messages.Len()
}
