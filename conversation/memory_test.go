package conversation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/fpagent/llm"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	defer store.Close()
	ctx := context.Background()

	_, err := store.Get(ctx, "C123:T456")
	require.ErrorIs(t, err, ErrNotFound)

	turns := []llm.Message{
		llm.TextMessage(llm.RoleUser, "How is revenue tracking?"),
		llm.TextMessage(llm.RoleAssistant, "Ahead of budget."),
	}
	require.NoError(t, store.Save(ctx, "C123:T456", turns))

	got, err := store.Get(ctx, "C123:T456")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "How is revenue tracking?", got[0].Text())

	// Mutating the returned slice must not affect the stored copy.
	got[0] = llm.TextMessage(llm.RoleUser, "changed")
	again, err := store.Get(ctx, "C123:T456")
	require.NoError(t, err)
	assert.Equal(t, "How is revenue tracking?", again[0].Text())
}

func TestMemoryStoreTrimsHistory(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	defer store.Close()
	ctx := context.Background()

	var turns []llm.Message
	for i := 0; i < MaxTurns+7; i++ {
		turns = append(turns, llm.TextMessage(llm.RoleUser, fmt.Sprintf("message %d", i)))
	}
	require.NoError(t, store.Save(ctx, "key", turns))

	got, err := store.Get(ctx, "key")
	require.NoError(t, err)
	require.Len(t, got, MaxTurns)
	assert.Equal(t, "message 7", got[0].Text())
	assert.Equal(t, fmt.Sprintf("message %d", MaxTurns+6), got[len(got)-1].Text())
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	defer store.Close()
	ctx := context.Background()

	now := time.Now()
	store.clock = func() time.Time { return now }
	require.NoError(t, store.Save(ctx, "key", []llm.Message{llm.TextMessage(llm.RoleUser, "hi")}))

	// Still there just inside the window.
	store.clock = func() time.Time { return now.Add(59 * time.Minute) }
	_, err := store.Get(ctx, "key")
	require.NoError(t, err)

	store.clock = func() time.Time { return now.Add(61 * time.Minute) }
	_, err = store.Get(ctx, "key")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreSweep(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	defer store.Close()
	ctx := context.Background()

	now := time.Now()
	store.clock = func() time.Time { return now }
	require.NoError(t, store.Save(ctx, "old", nil))
	require.NoError(t, store.Save(ctx, "fresh", nil))

	store.clock = func() time.Time { return now.Add(2 * time.Hour) }
	store.entries["fresh"] = memoryEntry{updatedAt: now.Add(2 * time.Hour)}
	store.sweep()

	assert.NotContains(t, store.entries, "old")
	assert.Contains(t, store.entries, "fresh")
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "key", []llm.Message{llm.TextMessage(llm.RoleUser, "hi")}))
	require.NoError(t, store.Delete(ctx, "key"))
	_, err := store.Get(ctx, "key")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTrim(t *testing.T) {
	short := []llm.Message{llm.TextMessage(llm.RoleUser, "a")}
	assert.Len(t, Trim(short), 1)

	var long []llm.Message
	for i := 0; i < 50; i++ {
		long = append(long, llm.TextMessage(llm.RoleUser, fmt.Sprintf("%d", i)))
	}
	trimmed := Trim(long)
	require.Len(t, trimmed, MaxTurns)
	assert.Equal(t, "30", trimmed[0].Text())
}

func TestEncodeKey(t *testing.T) {
	assert.Equal(t, "C123_T456.78", encodeKey("C123:T456.78"))
	assert.Equal(t, "plain-key_9", encodeKey("plain-key_9"))
}
