package queue_test

import (
	"bytes"
	"testing"

	"github.com/bigbass1997/veritas/internal/queue"
)

func frame(b0, b1 byte) []byte { return []byte{b0, b1} }

func TestEnqueueDequeueOrder(t *testing.T) {
	q := queue.New(4, 2)

	frames := [][]byte{frame(1, 2), frame(3, 4), frame(5, 6)}
	for _, f := range frames {
		if !q.Enqueue(f) {
			t.Fatalf("enqueue of %v failed unexpectedly", f)
		}
	}

	for _, want := range frames {
		got, ok := q.Dequeue()
		if !ok {
			t.Fatal("expected a frame")
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("got %v, want %v", got, want)
		}
	}

	if _, ok := q.Dequeue(); ok {
		t.Fatal("expected queue to be empty")
	}
}

func TestEnqueueRejectsWrongWidth(t *testing.T) {
	q := queue.New(4, 2)
	if q.Enqueue([]byte{1, 2, 3}) {
		t.Fatal("expected mis-sized frame to be rejected")
	}
}

func TestFullQueueRejectsWithoutBlocking(t *testing.T) {
	q := queue.New(2, 2)
	if !q.Enqueue(frame(1, 1)) {
		t.Fatal("expected first enqueue to succeed")
	}
	if !q.Enqueue(frame(2, 2)) {
		t.Fatal("expected second enqueue to succeed")
	}
	if q.Enqueue(frame(3, 3)) {
		t.Fatal("expected enqueue into full queue to fail")
	}
	if !q.IsFull() {
		t.Fatal("expected queue to report full")
	}
}

func TestDequeueOrNeutralOnEmpty(t *testing.T) {
	q := queue.New(2, 2)
	got := q.DequeueOrNeutral()
	want := []byte{queue.NeutralByte, queue.NeutralByte}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestClear(t *testing.T) {
	q := queue.New(4, 2)
	q.Enqueue(frame(1, 1))
	q.Enqueue(frame(2, 2))
	q.Clear()
	if !q.IsEmpty() {
		t.Fatal("expected queue to be empty after Clear")
	}
}

func TestCapacityAndLen(t *testing.T) {
	q := queue.New(3, 2)
	if q.Capacity() != 3 {
		t.Fatalf("got capacity %d", q.Capacity())
	}
	q.Enqueue(frame(1, 1))
	if q.Len() != 1 {
		t.Fatalf("got len %d", q.Len())
	}
}
