package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/okian/tierboard/internal/domain/model"
)

func msg(id string) model.Message {
	return model.Message{ID: id, From: "Alice", Body: "T2 run"}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	if !q.Enqueue(ctx, msg("m1")) {
		t.Error("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	m := <-q.Dequeue(ctx)
	if m.ID != "m1" || m.Body != "T2 run" {
		t.Errorf("unexpected message %+v", m)
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2), WithBufferSize(1))
	ctx := context.Background()

	if !q.Enqueue(ctx, msg("m1")) || !q.Enqueue(ctx, msg("m2")) {
		t.Fatal("expected enqueue to succeed up to capacity")
	}
	if q.Enqueue(ctx, msg("m3")) {
		t.Error("expected enqueue to fail when full")
	}
	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(100))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	const producers, perProducer = 10, 100

	done := make(chan bool, producers)
	for i := 0; i < producers; i++ {
		go func(id int) {
			for j := 0; j < perProducer; j++ {
				for !q.Enqueue(ctx, msg(fmt.Sprintf("m%d_%d", id, j))) {
					time.Sleep(time.Millisecond)
				}
			}
			done <- true
		}(i)
	}

	consumed := make(chan string, producers*perProducer)
	for i := 0; i < producers; i++ {
		go func() {
			for m := range q.Dequeue(ctx) {
				consumed <- m.ID
			}
		}()
	}

	for i := 0; i < producers; i++ {
		<-done
	}

	deadline := time.After(2 * time.Second)
	seen := make(map[string]bool, producers*perProducer)
	for len(seen) < producers*perProducer {
		select {
		case id := <-consumed:
			if seen[id] {
				t.Fatalf("message %s delivered twice", id)
			}
			seen[id] = true
		case <-deadline:
			t.Fatalf("consumed %d of %d messages", len(seen), producers*perProducer)
		}
	}
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	if !q.Enqueue(ctx, msg("m1")) || !q.Enqueue(ctx, msg("m2")) {
		t.Fatal("expected enqueue to succeed")
	}
	if q.IsClosed() {
		t.Error("expected queue to be open initially")
	}

	if err := q.Close(); err != nil {
		t.Errorf("expected close to succeed, got error: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed after Close()")
	}
	if q.Enqueue(ctx, msg("m3")) {
		t.Error("expected enqueue to fail after closing")
	}

	// Queued messages drain before the channel closes.
	var got []string
	timeout := time.After(time.Second)
	ch := q.Dequeue(ctx)
	for {
		select {
		case m, ok := <-ch:
			if !ok {
				if len(got) != 2 || got[0] != "m1" || got[1] != "m2" {
					t.Errorf("expected m1, m2 drained, got %v", got)
				}
				if err := q.Close(); err != nil {
					t.Errorf("expected second close to succeed, got error: %v", err)
				}
				return
			}
			got = append(got, m.ID)
		case <-timeout:
			t.Fatal("expected dequeue channel to be closed within timeout")
		}
	}
}
