package memorystore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSymbolStoreWorker(t *testing.T) {
	store := NewSymbolStore("btcusdt")

	ch := make(chan string, 3)
	ch <- "ETHUSDT"
	ch <- " solusdt "
	ch <- ""
	close(ch)
	<-store.StartWorker(ch)

	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}, store.GetAll())
	assert.True(t, store.Contains("solUSDT"))
	assert.False(t, store.Contains("DOGEUSDT"))
	assert.Equal(t, 3, store.Len())
}
