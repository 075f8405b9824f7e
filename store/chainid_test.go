package store_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seonyeopkim/asyncaction/store"
)

func TestSequentialChainIDs(t *testing.T) {
	gen := store.NewSequentialChainIDs("")

	assert.Equal(t, "chain-1", gen.NewChainID())
	assert.Equal(t, "chain-2", gen.NewChainID())

	custom := store.NewSequentialChainIDs("flow")
	assert.Equal(t, "flow-1", custom.NewChainID())
}

func TestSequentialChainIDs_ThreadSafe(t *testing.T) {
	gen := store.NewSequentialChainIDs("c")

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := gen.NewChainID()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 1000)
}

func TestUUIDv7ChainIDs(t *testing.T) {
	id, err := uuid.Parse(store.UUIDv7ChainIDs{}.NewChainID())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())

	_, ok := store.ChainIDFromContext(context.Background())
	assert.False(t, ok)
}
