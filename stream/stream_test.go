package stream_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/seonyeopkim/asyncaction/stream"
)

func flush(t *testing.T, sub *stream.Subscription) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sub.Flush(ctx))
}

func TestSubject_ReplaysCurrentValue(t *testing.T) {
	subject := stream.NewSubject(7)
	subject.Publish(8)

	var got stream.Collector[int]
	sub := subject.Stream().Sink(got.Add)
	defer sub.Cancel()

	subject.Publish(9)
	flush(t, sub)

	assert.Equal(t, []int{8, 9}, got.Values(), "subscriber starts from the value current at subscription")
	assert.Equal(t, 9, subject.Value())
}

func TestSubject_DeliversInOrderToEverySubscriber(t *testing.T) {
	subject := stream.NewSubject(0)

	var a, b stream.Collector[int]
	subA := subject.Stream().Sink(a.Add)
	subB := subject.Stream().Sink(b.Add)
	defer subA.Cancel()
	defer subB.Cancel()

	for i := 1; i <= 100; i++ {
		subject.Publish(i)
	}
	flush(t, subA)
	flush(t, subB)

	require.Equal(t, 101, a.Len())
	assert.Equal(t, a.Values(), b.Values())
	assert.Equal(t, 100, a.Values()[100])
}

func TestDistinct_SuppressesConsecutiveDuplicates(t *testing.T) {
	subject := stream.NewSubject(0)

	var got stream.Collector[int]
	sub := stream.Distinct(subject.Stream()).Sink(got.Add)
	defer sub.Cancel()

	for _, v := range []int{0, 0, 1, 1, 2, 1} {
		subject.Publish(v)
	}
	flush(t, sub)

	assert.Equal(t, []int{0, 1, 2, 1}, got.Values())
}

func TestDistinct_StatePerSubscription(t *testing.T) {
	subject := stream.NewSubject("x")
	distinct := stream.Distinct(subject.Stream())

	var first stream.Collector[string]
	sub1 := distinct.Sink(first.Add)
	defer sub1.Cancel()
	subject.Publish("x")
	flush(t, sub1)

	var second stream.Collector[string]
	sub2 := distinct.Sink(second.Add)
	defer sub2.Cancel()
	flush(t, sub2)

	assert.Equal(t, []string{"x"}, first.Values())
	assert.Equal(t, []string{"x"}, second.Values(), "late subscriber still gets the current value")
}

func TestDistinctBy_KeyedSuppression(t *testing.T) {
	type versioned struct {
		value   string
		version uint64
	}
	subject := stream.NewSubject(versioned{value: "", version: 0})

	var got stream.Collector[string]
	values := stream.Map(
		stream.DistinctBy(subject.Stream(), func(v versioned) uint64 { return v.version }),
		func(v versioned) string { return v.value },
	)
	sub := values.Sink(got.Add)
	defer sub.Cancel()

	subject.Publish(versioned{value: "0", version: 1})
	subject.Publish(versioned{value: "0", version: 1})
	subject.Publish(versioned{value: "0", version: 2})
	flush(t, sub)

	assert.Equal(t, []string{"", "0", "0"}, got.Values(), "equal values with new versions still emit")
}

func TestFilter(t *testing.T) {
	subject := stream.NewSubject(1)

	var got stream.Collector[int]
	sub := stream.Filter(subject.Stream(), func(v int) bool { return v%2 == 0 }).Sink(got.Add)
	defer sub.Cancel()

	for i := 2; i <= 6; i++ {
		subject.Publish(i)
	}
	flush(t, sub)

	assert.Equal(t, []int{2, 4, 6}, got.Values())
}

func TestSubscription_CancelStopsDelivery(t *testing.T) {
	subject := stream.NewSubject(0)

	var got stream.Collector[int]
	sub := subject.Stream().Sink(got.Add)
	flush(t, sub)
	sub.Cancel()
	sub.Cancel()

	subject.Publish(1)
	<-sub.Done()

	assert.Equal(t, []int{0}, got.Values())
	assert.Equal(t, 0, subject.Subscribers())
	flush(t, sub)
}

func TestSubject_CloseCompletesSubscriptions(t *testing.T) {
	subject := stream.NewSubject(1)
	ch := subject.Stream().Chan(context.Background())

	assert.Equal(t, 1, <-ch)
	subject.Close()
	subject.Publish(2)

	_, open := <-ch
	assert.False(t, open, "channel closes when the subject closes")

	late := subject.Stream().Chan(context.Background())
	assert.Equal(t, 1, <-late, "late subscribers see the final value")
	_, open = <-late
	assert.False(t, open)
}

func TestStream_AllIterator(t *testing.T) {
	defer goleak.VerifyNone(t)

	subject := stream.NewSubject(0)
	go func() {
		for i := 1; i <= 5; i++ {
			subject.Publish(i)
		}
	}()

	var got []int
	for v := range stream.Distinct(subject.Stream()).All(context.Background()) {
		got = append(got, v)
		if v == 5 {
			break
		}
	}

	require.NotEmpty(t, got)
	assert.Equal(t, 5, got[len(got)-1])
	assert.Eventually(t, func() bool { return subject.Subscribers() == 0 }, time.Second, time.Millisecond)
	subject.Close()
}

func TestStream_ChanStopsOnContext(t *testing.T) {
	subject := stream.NewSubject("a")
	ctx, cancel := context.WithCancel(context.Background())
	ch := subject.Stream().Chan(ctx)

	assert.Equal(t, "a", <-ch)
	cancel()

	assert.Eventually(t, func() bool {
		select {
		case _, open := <-ch:
			return !open
		default:
			return false
		}
	}, time.Second, time.Millisecond)
}

func TestCollector_WaitLen(t *testing.T) {
	var c stream.Collector[string]

	go func() {
		c.Add("a")
		c.Add("b")
	}()

	assert.True(t, c.WaitLen(2, time.Second))
	assert.Equal(t, []string{"a", "b"}, c.Values())
	assert.False(t, c.WaitLen(3, 10*time.Millisecond))
}
