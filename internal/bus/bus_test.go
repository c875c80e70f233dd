package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribeFIFO(t *testing.T) {
	b := New(8)

	var mu sync.Mutex
	var order []int

	done := make(chan struct{})
	count := 0
	b.Subscribe(KindMessageIncoming, func(ev Event) {
		mu.Lock()
		payload := ev.Payload.(int)
		order = append(order, payload)
		count++
		if count == 5 {
			close(done)
		}
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Start(ctx)
	defer b.Stop()

	for i := 0; i < 5; i++ {
		b.Publish(KindMessageIncoming, i)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for events")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestPublishDropsWhenQueueFull(t *testing.T) {
	b := New(1)

	block := make(chan struct{})
	received := make(chan Event, 4)
	b.Subscribe(KindWebhookReceived, func(ev Event) {
		<-block // hold the worker so the queue backs up
		received <- ev
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Start(ctx)
	defer b.Stop()

	b.Publish(KindWebhookReceived, "first")  // dequeued immediately, blocks in handler
	time.Sleep(20 * time.Millisecond)
	b.Publish(KindWebhookReceived, "second") // fills the 1-slot queue
	b.Publish(KindWebhookReceived, "third")  // dropped: queue full

	close(block)

	got := []any{}
	for i := 0; i < 2; i++ {
		select {
		case ev := <-received:
			got = append(got, ev.Payload)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for handler invocations")
		}
	}
	assert.ElementsMatch(t, []any{"first", "second"}, got)
}

func TestHandlerPanicDoesNotStopWorker(t *testing.T) {
	b := New(4)

	var mu sync.Mutex
	var seen []int
	done := make(chan struct{})

	b.Subscribe(KindMessageIncoming, func(ev Event) {
		n := ev.Payload.(int)
		if n == 1 {
			panic("boom")
		}
		mu.Lock()
		seen = append(seen, n)
		if n == 2 {
			close(done)
		}
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Start(ctx)
	defer b.Stop()

	b.Publish(KindMessageIncoming, 1)
	b.Publish(KindMessageIncoming, 2)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not recover from panic")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []int{2}, seen)
}

func TestMultipleSubscribersEachGetOwnCopy(t *testing.T) {
	b := New(4)

	var a, c int
	var mu sync.Mutex
	doneA := make(chan struct{})
	doneC := make(chan struct{})

	b.Subscribe(KindMessageIncoming, func(ev Event) {
		mu.Lock()
		a++
		mu.Unlock()
		close(doneA)
	})
	b.Subscribe(KindMessageIncoming, func(ev Event) {
		mu.Lock()
		c++
		mu.Unlock()
		close(doneC)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Start(ctx)
	defer b.Stop()

	b.Publish(KindMessageIncoming, "x")

	<-doneA
	<-doneC

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, a)
	assert.Equal(t, 1, c)
}
