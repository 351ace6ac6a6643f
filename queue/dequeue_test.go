package queue

import "testing"

func TestDeQueueFIFOOrder(t *testing.T) {
	d := NewDeQueue[int](FIFO, 0)
	d.Put(1)
	d.Put(2)
	d.Put(3)
	for _, want := range []int{1, 2, 3} {
		got, ok := d.Get()
		if !ok || got != want {
			t.Fatalf("Get() = %d, %v; want %d, true", got, ok, want)
		}
	}
	if _, ok := d.Get(); ok {
		t.Fatalf("Get() on empty queue should report ok=false")
	}
}

func TestDeQueueLIFOOrder(t *testing.T) {
	d := NewDeQueue[int](LIFO, 0)
	d.Put(1)
	d.Put(2)
	d.Put(3)
	for _, want := range []int{3, 2, 1} {
		got, ok := d.Get()
		if !ok || got != want {
			t.Fatalf("Get() = %d, %v; want %d, true", got, ok, want)
		}
	}
}

func TestDeQueuePeekDoesNotRemove(t *testing.T) {
	d := NewDeQueue[string](FIFO, 0)
	d.Put("a")
	d.Put("b")
	peeked, ok := d.Peek()
	if !ok || peeked != "a" {
		t.Fatalf("Peek() = %q, %v; want a, true", peeked, ok)
	}
	if got, _ := d.Peek(); got != "a" {
		t.Fatalf("second Peek() = %q; want a (peek must not remove)", got)
	}
	got, _ := d.Get()
	if got != "a" {
		t.Fatalf("Get() after Peek() = %q; want a", got)
	}
	if got, _ := d.Get(); got != "b" {
		t.Fatalf("Get() = %q; want b", got)
	}
}

func TestDeQueuePushPopAlwaysActOnHead(t *testing.T) {
	d := NewDeQueue[int](FIFO, 0)
	d.Put(1) // tail: [1]
	d.Push(0) // head: [0, 1]
	got, ok := d.Pop()
	if !ok || got != 0 {
		t.Fatalf("Pop() = %d, %v; want 0, true", got, ok)
	}
	got, ok = d.Pop()
	if !ok || got != 1 {
		t.Fatalf("Pop() = %d, %v; want 1, true", got, ok)
	}
}

func TestDeQueueBoundedCapacityRejectsPastLimit(t *testing.T) {
	d := NewDeQueue[int](FIFO, 2)
	if !d.Put(1) {
		t.Fatalf("Put() should succeed under capacity")
	}
	if !d.Put(2) {
		t.Fatalf("Put() should succeed at capacity boundary")
	}
	if d.Put(3) {
		t.Fatalf("Put() should reject once at capacity")
	}
	if d.Size() != 2 {
		t.Fatalf("Size() = %d; want 2", d.Size())
	}
}

func TestDeQueuePutIfAbsent(t *testing.T) {
	type pair struct{ k, v int }
	equal := func(a, b pair) bool { return a.k == b.k }
	d := NewDeQueue[pair](FIFO, 0)
	if !d.PutIfAbsent(pair{1, 10}, equal) {
		t.Fatalf("PutIfAbsent should add a fresh key")
	}
	if d.PutIfAbsent(pair{1, 99}, equal) {
		t.Fatalf("PutIfAbsent should refuse a duplicate key")
	}
	if d.Size() != 1 {
		t.Fatalf("Size() = %d; want 1", d.Size())
	}
	got, _ := d.Peek()
	if got.v != 10 {
		t.Fatalf("PutIfAbsent must not overwrite the existing element; got v=%d", got.v)
	}
}

func TestDeQueueCloneIsIndependent(t *testing.T) {
	d := NewDeQueue[int](FIFO, 0)
	d.Put(1)
	d.Put(2)
	clone := d.Clone()
	clone.Put(3)
	if d.Size() != 2 {
		t.Fatalf("mutating the clone must leave the source unchanged; source size = %d", d.Size())
	}
	if clone.Size() != 3 {
		t.Fatalf("clone.Size() = %d; want 3", clone.Size())
	}
}

func TestDeQueueClearEmptiesContainer(t *testing.T) {
	d := NewDeQueue[int](FIFO, 0)
	d.Put(1)
	d.Put(2)
	d.Clear()
	if !d.Empty() {
		t.Fatalf("Clear() should leave the queue empty")
	}
	if _, ok := d.Get(); ok {
		t.Fatalf("Get() after Clear() should report ok=false")
	}
}
