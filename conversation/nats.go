package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/finsight/fpagent/llm"
)

// BucketConversations is the KV bucket holding conversation histories.
const BucketConversations = "FPAGENT_CONVERSATIONS"

// NATSStore persists conversations in a JetStream KV bucket whose TTL
// provides the retention window: idle conversations expire server-side.
type NATSStore struct {
	kv jetstream.KeyValue
}

// NewNATSStore creates the conversations bucket if needed.
func NewNATSStore(ctx context.Context, js jetstream.JetStream, ttl time.Duration) (*NATSStore, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	kv, err := getOrCreateBucket(ctx, js, BucketConversations, ttl)
	if err != nil {
		return nil, fmt.Errorf("create conversations bucket: %w", err)
	}
	return &NATSStore{kv: kv}, nil
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string, ttl time.Duration) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: "fpagent conversation history",
		TTL:         ttl,
	})
}

// Get returns the stored turns for a key.
func (s *NATSStore) Get(ctx context.Context, key string) ([]llm.Message, error) {
	entry, err := s.kv.Get(ctx, encodeKey(key))
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}

	var turns []llm.Message
	if err := json.Unmarshal(entry.Value(), &turns); err != nil {
		return nil, fmt.Errorf("unmarshal conversation: %w", err)
	}
	return turns, nil
}

// Save stores the turns, trimmed to the retention window. Each write
// restarts the key's TTL clock.
func (s *NATSStore) Save(ctx context.Context, key string, turns []llm.Message) error {
	data, err := json.Marshal(Trim(turns))
	if err != nil {
		return fmt.Errorf("marshal conversation: %w", err)
	}
	if _, err := s.kv.Put(ctx, encodeKey(key), data); err != nil {
		return fmt.Errorf("store conversation: %w", err)
	}
	return nil
}

// Delete removes a conversation.
func (s *NATSStore) Delete(ctx context.Context, key string) error {
	if err := s.kv.Delete(ctx, encodeKey(key)); err != nil && !isNotFound(err) {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}

// encodeKey maps arbitrary conversation keys (channel:thread identifiers
// with punctuation) onto the KV key charset.
func encodeKey(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, key)
}

// isNotFound checks whether an error indicates a missing key.
func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "key not found")
}
