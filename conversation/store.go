// Package conversation persists chat history per conversation key with a
// bounded retention window.
package conversation

import (
	"context"
	"errors"
	"time"

	"github.com/finsight/fpagent/llm"
)

// MaxTurns is the retention window: Save keeps only the most recent
// turns so histories cannot grow without bound.
const MaxTurns = 20

// DefaultTTL is how long an idle conversation is kept.
const DefaultTTL = 24 * time.Hour

// ErrNotFound is returned when a conversation key has no stored history.
var ErrNotFound = errors.New("conversation not found")

// Store persists conversation turns. Get returns ErrNotFound for an
// unknown or expired key.
type Store interface {
	Get(ctx context.Context, key string) ([]llm.Message, error)
	Save(ctx context.Context, key string, turns []llm.Message) error
	Delete(ctx context.Context, key string) error
}

// Trim returns the most recent MaxTurns turns.
func Trim(turns []llm.Message) []llm.Message {
	if len(turns) <= MaxTurns {
		return turns
	}
	return turns[len(turns)-MaxTurns:]
}
