package ring

import (
	"errors"
	"testing"
)

func TestBuffer_DropNewest(t *testing.T) {
	b := New[int](3, DropNewest)
	for i := 1; i <= 5; i++ {
		b.Push(i)
	}

	if b.Len() != 3 {
		t.Errorf("Expected len 3, got %d", b.Len())
	}
	items := b.Items()
	if items[0] != 1 || items[2] != 3 {
		t.Errorf("Expected [1 2 3], got %v", items)
	}
	if b.Dropped() != 2 {
		t.Errorf("Expected 2 dropped, got %d", b.Dropped())
	}
}

func TestBuffer_DropOldest(t *testing.T) {
	b := New[int](3, DropOldest)
	for i := 1; i <= 5; i++ {
		if ok, err := b.Push(i); !ok || err != nil {
			t.Fatalf("push %d must succeed", i)
		}
	}

	items := b.Items()
	if items[0] != 3 || items[1] != 4 || items[2] != 5 {
		t.Errorf("Expected [3 4 5], got %v", items)
	}
	if last, _ := b.Last(); last != 5 {
		t.Errorf("Expected last 5, got %d", last)
	}
}

func TestBuffer_Reject(t *testing.T) {
	b := New[string](1, Reject)
	if _, err := b.Push("a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ok, err := b.Push("b")
	if ok || !errors.Is(err, ErrFull) {
		t.Errorf("Expected ErrFull, got ok=%v err=%v", ok, err)
	}
	if !b.Full() {
		t.Errorf("Expected buffer to be full")
	}
}

func TestBuffer_Reset(t *testing.T) {
	b := New[int](2, DropOldest)
	b.Push(1)
	b.Push(2)
	b.Push(3)
	b.Reset()

	if b.Len() != 0 || b.Dropped() != 0 {
		t.Errorf("Expected empty buffer after reset")
	}
	if _, ok := b.Last(); ok {
		t.Errorf("Last on empty buffer must report false")
	}
	if b.Cap() != 2 {
		t.Errorf("capacity must survive reset")
	}
}

func BenchmarkBufferPush(b *testing.B) {
	buf := New[int](4096, DropOldest)
	for i := 0; i < b.N; i++ {
		buf.Push(i)
	}
}
