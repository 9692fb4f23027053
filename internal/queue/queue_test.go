package queue

import (
	"sync"
	"testing"
)

func TestQueue_FIFOOrder(t *testing.T) {
	q := New[int]()
	q.Push(1)
	q.Push(2, 3)

	if q.Len() != 3 {
		t.Fatalf("expected length 3, got %d", q.Len())
	}
	for want := 1; want <= 3; want++ {
		got, ok := q.Pop()
		if !ok || got != want {
			t.Errorf("Pop = %d, %v; want %d, true", got, ok, want)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Error("expected Pop on empty queue to report false")
	}
}

func TestQueue_Drain(t *testing.T) {
	q := New[string]()
	q.Push("a", "b", "c")

	got := q.Drain()
	if len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Errorf("Drain = %v, want [a b c]", got)
	}
	if q.Len() != 0 {
		t.Errorf("expected empty queue after Drain, got %d entries", q.Len())
	}

	// A drain of an empty queue is a nil slice, not a panic.
	if got := q.Drain(); len(got) != 0 {
		t.Errorf("second Drain = %v, want empty", got)
	}
}

func TestQueue_BoundedEvictsOldest(t *testing.T) {
	q := Bounded[int](3)
	q.Push(1, 2, 3, 4, 5)

	if q.Len() != 3 {
		t.Fatalf("expected length 3, got %d", q.Len())
	}
	if got := q.Drain(); got[0] != 3 || got[2] != 5 {
		t.Errorf("Drain = %v, want [3 4 5]", got)
	}
	if q.Dropped() != 2 {
		t.Errorf("Dropped = %d, want 2", q.Dropped())
	}
}

func TestQueue_ConcurrentPushDrain(t *testing.T) {
	q := New[int]()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			q.Push(n)
		}(i)
	}
	wg.Wait()

	results := make(chan []int, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- q.Drain()
		}()
	}
	wg.Wait()
	close(results)

	total := 0
	for r := range results {
		total += len(r)
	}
	if total != 100 {
		t.Errorf("expected 100 entries across drains, got %d", total)
	}
}
