package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/finsight/fpagent/llm"
)

// janitorInterval is how often the in-memory store sweeps expired
// conversations.
const janitorInterval = time.Hour

type memoryEntry struct {
	turns     []llm.Message
	updatedAt time.Time
}

// MemoryStore is the fallback Store used when NATS is not configured.
// Expiry matches the KV bucket behavior: a conversation idle past the
// TTL is gone.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	clock   func() time.Time
	stop    chan struct{}
	once    sync.Once
}

// NewMemoryStore creates an in-memory store and starts its janitor.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		clock:   time.Now,
		stop:    make(chan struct{}),
	}
	go s.janitor()
	return s
}

func (s *MemoryStore) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *MemoryStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	for key, entry := range s.entries {
		if now.Sub(entry.updatedAt) > s.ttl {
			delete(s.entries, key)
		}
	}
}

// Close stops the janitor.
func (s *MemoryStore) Close() {
	s.once.Do(func() { close(s.stop) })
}

// Get returns the stored turns for a key.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]llm.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || s.clock().Sub(entry.updatedAt) > s.ttl {
		delete(s.entries, key)
		return nil, ErrNotFound
	}
	return append([]llm.Message(nil), entry.turns...), nil
}

// Save stores the turns, trimmed to the retention window.
func (s *MemoryStore) Save(ctx context.Context, key string, turns []llm.Message) error {
	trimmed := Trim(turns)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{
		turns:     append([]llm.Message(nil), trimmed...),
		updatedAt: s.clock(),
	}
	return nil
}

// Delete removes a conversation.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
