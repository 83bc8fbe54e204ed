package events

import (
	"sync"
	"testing"
	"time"

	"github.com/jonathan/ats-analyzer/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, sub *Subscription, n int) []Event {
	t.Helper()
	var got []Event
	timeout := time.After(2 * time.Second)
	for len(got) < n {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return got
			}
			got = append(got, ev)
		case <-timeout:
			t.Fatalf("received %d of %d events", len(got), n)
		}
	}
	return got
}

func phases(evs []Event) []string {
	out := make([]string, len(evs))
	for i, ev := range evs {
		out[i] = ev.Phase
	}
	return out
}

func TestBus_FanOut(t *testing.T) {
	bus := NewBus()
	a := bus.Subscribe()
	b := bus.Subscribe()
	defer a.Close()
	defer b.Close()

	bus.Publish(Event{Phase: Started, SessionID: "s"})
	bus.Publish(Event{Phase: "skills", SessionID: "s"})

	want := []string{Started, "skills"}
	assert.Equal(t, want, phases(collect(t, a, 2)))
	assert.Equal(t, want, phases(collect(t, b, 2)))
}

func TestBus_PublishNeverBlocks(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			bus.Publish(Event{Phase: "tick"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
	assert.Len(t, collect(t, sub, 1000), 1000)
}

func TestBus_SetsTime(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()
	defer sub.Close()

	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	bus.Publish(Event{Phase: "a"})
	bus.Publish(Event{Phase: "b", Time: fixed})

	got := collect(t, sub, 2)
	assert.False(t, got[0].Time.IsZero())
	assert.Equal(t, fixed, got[1].Time)
}

func TestBus_LateSubscriberSeesOnlyNewEvents(t *testing.T) {
	bus := NewBus()
	early := bus.Subscribe()
	defer early.Close()
	bus.Publish(Event{Phase: "first"})

	late := bus.Subscribe()
	defer late.Close()
	bus.Publish(Event{Phase: "second"})

	assert.Equal(t, []string{"first", "second"}, phases(collect(t, early, 2)))
	assert.Equal(t, []string{"second"}, phases(collect(t, late, 1)))
}

func TestSubscription_Close(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()
	require.Equal(t, 1, bus.Len())

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, bus.Len())

	bus.Publish(Event{Phase: "ignored"})
	_, ok := <-sub.Events()
	assert.False(t, ok)
}

func TestBus_CloseDrainsQueues(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()

	bus.Publish(Event{Phase: "a"})
	bus.Publish(Event{Phase: Completed, State: types.StateCompleted})
	bus.Close()
	bus.Publish(Event{Phase: "after close"})

	got := collect(t, sub, 3)
	assert.Equal(t, []string{"a", Completed}, phases(got))
	assert.True(t, got[1].Terminal())

	closed := bus.Subscribe()
	_, ok := <-closed.Events()
	assert.False(t, ok)
}

func TestBus_ConcurrentPublishers(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()
	defer sub.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				bus.Publish(Event{Phase: "p"})
			}
		}()
	}
	wg.Wait()
	assert.Len(t, collect(t, sub, 500), 500)
}
