package archive

import (
	"sync"
	"testing"
)

func TestBuffer_PushDrain(t *testing.T) {
	buf := NewBuffer[int](10)

	for i := 0; i < 5; i++ {
		if !buf.Push(i) {
			t.Fatalf("Push(%d) returned false", i)
		}
	}

	if buf.Len() != 5 {
		t.Errorf("Len() = %d, want 5", buf.Len())
	}

	items := buf.Drain(3)
	if len(items) != 3 {
		t.Fatalf("Drain(3) returned %d items, want 3", len(items))
	}
	for i, val := range items {
		if val != i {
			t.Errorf("items[%d] = %d, want %d", i, val, i)
		}
	}

	items = buf.Drain(0)
	if len(items) != 2 || items[0] != 3 || items[1] != 4 {
		t.Errorf("Drain(0) = %v, want [3 4]", items)
	}

	if got := buf.Drain(0); got != nil {
		t.Errorf("Drain() on empty buffer = %v, want nil", got)
	}
}

func TestBuffer_GrowAt70Percent(t *testing.T) {
	buf := NewBuffer[int](10)

	for i := 0; i < 7; i++ {
		buf.Push(i)
	}

	stats := buf.Stats()
	if stats.Capacity <= 10 {
		t.Errorf("Capacity = %d, expected growth after 70%% fill", stats.Capacity)
	}
	if stats.Resizes != 1 {
		t.Errorf("Resizes = %d, want 1", stats.Resizes)
	}
}

func TestBuffer_GrowPreservesOrderAcrossWrap(t *testing.T) {
	buf := NewBuffer[int](10)

	// Advance head and tail so the next items wrap around the end.
	for i := 0; i < 6; i++ {
		buf.Push(-1)
	}
	buf.Drain(6)

	for i := 0; i < 6; i++ {
		buf.Push(i)
	}
	if buf.Stats().Resizes != 0 {
		t.Fatalf("Resizes = %d before growth, want 0", buf.Stats().Resizes)
	}

	// Seventh pending item crosses the threshold with wrapped storage.
	buf.Push(6)
	if buf.Stats().Resizes != 1 {
		t.Fatalf("Resizes = %d, want 1", buf.Stats().Resizes)
	}

	items := buf.Drain(0)
	for i, val := range items {
		if val != i {
			t.Errorf("items[%d] = %d, want %d", i, val, i)
		}
	}
	if len(items) != 7 {
		t.Errorf("Drain(0) returned %d items, want 7", len(items))
	}
}

func TestBuffer_Close(t *testing.T) {
	buf := NewBuffer[int](10)
	buf.Push(1)
	buf.Close()

	if buf.Push(2) {
		t.Error("Push should return false after Close")
	}

	items := buf.Drain(0)
	if len(items) != 1 || items[0] != 1 {
		t.Errorf("Drain() after Close = %v, want [1]", items)
	}
}

func TestBuffer_ConcurrentPush(t *testing.T) {
	buf := NewBuffer[int](4)
	const workers, perWorker = 8, 250

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				buf.Push(i)
			}
		}()
	}

	var drained int
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		drained += len(buf.Drain(50))
		select {
		case <-done:
			drained += len(buf.Drain(0))
			if drained != workers*perWorker {
				t.Errorf("drained %d items, want %d", drained, workers*perWorker)
			}
			stats := buf.Stats()
			if stats.Pushed != workers*perWorker || stats.Popped != workers*perWorker {
				t.Errorf("Stats() = %+v", stats)
			}
			return
		default:
		}
	}
}

func TestNewBuffer_MinCapacity(t *testing.T) {
	for _, c := range []int{0, -5} {
		if got := NewBuffer[int](c).Stats().Capacity; got != 1 {
			t.Errorf("NewBuffer(%d) capacity = %d, want 1", c, got)
		}
	}
}
