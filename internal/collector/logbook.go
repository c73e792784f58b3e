package collector

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// MaxLogEntries is how many log lines the operation console keeps.
const MaxLogEntries = 100

type Level string

const (
	LevelInfo    Level = "info"
	LevelWarn    Level = "warn"
	LevelError   Level = "error"
	LevelSuccess Level = "success"
)

type LogEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
}

func NewLogEntry(level Level, message string) LogEntry {
	return LogEntry{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Level:     level,
		Message:   message,
	}
}

// LogBook keeps the most recent log entries, dropping the oldest once full.
type LogBook struct {
	mu       sync.Mutex
	capacity int
	entries  []LogEntry // ring buffer, oldest at head
	head     int
}

func NewLogBook(capacity int) *LogBook {
	if capacity <= 0 {
		capacity = MaxLogEntries
	}
	return &LogBook{
		capacity: capacity,
		entries:  make([]LogEntry, 0, capacity),
	}
}

func (b *LogBook) Append(e LogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.entries) < b.capacity {
		b.entries = append(b.entries, e)
		return
	}
	b.entries[b.head] = e
	b.head = (b.head + 1) % b.capacity
}

// Entries returns the kept entries, newest first.
func (b *LogBook) Entries() []LogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.entries)
	out := make([]LogEntry, n)
	for i := 0; i < n; i++ {
		// newest is just before head
		out[i] = b.entries[(b.head-1-i+2*n)%n]
	}
	return out
}

func (b *LogBook) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

func (b *LogBook) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = b.entries[:0]
	b.head = 0
}
