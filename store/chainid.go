package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ChainIDGenerator creates correlation IDs for dispatch chains.
//
// One ID is generated per Send or Run call and inherited by every reduction
// and task descending from it, so a chain can be followed across the main
// loop and task goroutines in logs and journals.
type ChainIDGenerator interface {
	NewChainID() string
}

// UUIDv7ChainIDs generates time-sortable UUIDv7 chain IDs.
// Stateless and safe for concurrent use.
type UUIDv7ChainIDs struct{}

// NewChainID returns a new UUIDv7 as a hyphenated string.
// Panics if the system random source fails.
func (UUIDv7ChainIDs) NewChainID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// SequentialChainIDs hands out predictable chain IDs ("chain-1", "chain-2",
// ...) so recorded traces are stable across runs. Safe for concurrent use.
type SequentialChainIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialChainIDs creates a generator using prefix. An empty prefix
// defaults to "chain".
func NewSequentialChainIDs(prefix string) *SequentialChainIDs {
	if prefix == "" {
		prefix = "chain"
	}
	return &SequentialChainIDs{prefix: prefix}
}

// NewChainID returns the next ID in sequence.
func (g *SequentialChainIDs) NewChainID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

type chainIDKey struct{}

type priorityKey struct{}

// ChainIDFromContext returns the chain ID of the task running Reducer.Run.
func ChainIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(chainIDKey{}).(string)
	return id, ok
}

// PriorityFromContext returns the priority of the task running Reducer.Run.
func PriorityFromContext(ctx context.Context) (Priority, bool) {
	p, ok := ctx.Value(priorityKey{}).(Priority)
	return p, ok
}

func taskContext(parent context.Context, chainID string, p Priority) context.Context {
	ctx := context.WithValue(parent, chainIDKey{}, chainID)
	return context.WithValue(ctx, priorityKey{}, p)
}
