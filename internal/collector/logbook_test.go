package collector

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogBookKeepsNewestFirst(t *testing.T) {
	book := NewLogBook(0)
	for i := 0; i < 250; i++ {
		book.Append(NewLogEntry(LevelInfo, fmt.Sprintf("line %d", i)))
	}

	entries := book.Entries()
	require.Len(t, entries, MaxLogEntries)
	assert.Equal(t, "line 249", entries[0].Message)
	assert.Equal(t, "line 150", entries[MaxLogEntries-1].Message)

	ids := make(map[string]bool)
	for _, e := range entries {
		assert.NotEmpty(t, e.ID)
		ids[e.ID] = true
	}
	assert.Len(t, ids, MaxLogEntries)
}

func TestLogBookPartialAndClear(t *testing.T) {
	book := NewLogBook(5)
	book.Append(NewLogEntry(LevelWarn, "a"))
	book.Append(NewLogEntry(LevelError, "b"))

	entries := book.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].Message)
	assert.Equal(t, LevelError, entries[0].Level)

	book.Clear()
	assert.Equal(t, 0, book.Len())
	assert.Empty(t, book.Entries())

	for _, m := range []string{"1", "2", "3", "4", "5", "6", "7"} {
		book.Append(NewLogEntry(LevelInfo, m))
	}
	entries = book.Entries()
	require.Len(t, entries, 5)
	assert.Equal(t, []string{"7", "6", "5", "4", "3"}, messagesOf(entries))
}

func messagesOf(entries []LogEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out
}
