package fifo

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_PushTryPop(t *testing.T) {
	q := New[string]()

	require.True(t, q.Push("a"), "push should succeed")

	got, ok := q.TryPop()
	require.True(t, ok, "pop should succeed")
	assert.Equal(t, "a", got)
}

func TestQueue_FIFO(t *testing.T) {
	q := New[int]()

	for i := 1; i <= 3; i++ {
		q.Push(i)
	}

	for want := 1; want <= 3; want++ {
		got, ok := q.TryPop()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
}

func TestQueue_TryPop_Empty(t *testing.T) {
	q := New[int]()

	_, ok := q.TryPop()
	assert.False(t, ok, "pop from empty queue should return false")
}

func TestQueue_Pop_BlocksUntilAvailable(t *testing.T) {
	q := New[string]()
	done := make(chan string)

	go func() {
		v, ok := q.Pop(context.Background())
		if ok {
			done <- v
		}
	}()

	// Give goroutine time to block
	time.Sleep(10 * time.Millisecond)
	q.Push("late")

	select {
	case v := <-done:
		assert.Equal(t, "late", v)
	case <-time.After(time.Second):
		t.Fatal("pop did not unblock")
	}
}

func TestQueue_Pop_ContextCancelled(t *testing.T) {
	q := New[int]()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool)

	go func() {
		_, ok := q.Pop(ctx)
		done <- ok
	}()

	cancel()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("pop did not observe cancellation")
	}
}

func TestQueue_Close_DrainsThenStops(t *testing.T) {
	q := New[int]()
	q.Push(1)
	q.Close()

	assert.False(t, q.Push(2), "push after close should return false")
	assert.True(t, q.Closed())

	v, ok := q.Pop(context.Background())
	require.True(t, ok, "queued items survive close")
	assert.Equal(t, 1, v)

	_, ok = q.Pop(context.Background())
	assert.False(t, ok, "closed and drained queue returns false")
}

func TestQueue_ConcurrentProducers(t *testing.T) {
	q := New[int]()
	const producers = 20
	const perProducer = 50

	var wg sync.WaitGroup
	wg.Add(producers)
	for i := 0; i < producers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				q.Push(j)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, producers*perProducer, q.Len())
}
