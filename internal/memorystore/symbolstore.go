package memorystore

import (
	"sort"
	"strings"
	"sync"
)

// MemorySymbolStore is the catalogue of tradable symbols offered to the
// configuration surface.
type MemorySymbolStore struct {
	mu      sync.RWMutex
	symbols map[string]struct{}
}

func NewSymbolStore(initial ...string) *MemorySymbolStore {
	s := &MemorySymbolStore{
		symbols: make(map[string]struct{}, len(initial)),
	}
	for _, sym := range initial {
		s.Add(sym)
	}
	return s
}

func (s *MemorySymbolStore) Add(symbol string) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.symbols[symbol] = struct{}{}
}

// StartWorker drains ch into the store until ch is closed.
// The returned channel is closed once every symbol has been added.
func (s *MemorySymbolStore) StartWorker(ch <-chan string) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for symbol := range ch {
			s.Add(symbol)
		}
	}()
	return done
}

func (s *MemorySymbolStore) Contains(symbol string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.symbols[strings.ToUpper(strings.TrimSpace(symbol))]
	return ok
}

// GetAll returns the symbols in lexical order.
func (s *MemorySymbolStore) GetAll() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.symbols))
	for sym := range s.symbols {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

func (s *MemorySymbolStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.symbols)
}
