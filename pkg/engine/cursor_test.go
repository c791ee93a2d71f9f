package engine

import (
	"sync"
	"testing"
)

func TestCursor_Sequential(t *testing.T) {
	var c Cursor
	for want := 0; want < 5; want++ {
		if got := c.Next(); got != want {
			t.Fatalf("Next() = %d, want %d", got, want)
		}
	}

	c.Reset()
	if got := c.Next(); got != 0 {
		t.Errorf("Next() after Reset = %d, want 0", got)
	}
}

func TestCursor_UniqueUnderConcurrency(t *testing.T) {
	const (
		goroutines = 16
		perG       = 500
	)

	var (
		c    Cursor
		mu   sync.Mutex
		seen = make(map[int]int, goroutines*perG)
		wg   sync.WaitGroup
	)

	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]int, 0, perG)
			last := -1
			for i := 0; i < perG; i++ {
				v := c.Next()
				if v <= last {
					t.Errorf("Next() not increasing within goroutine: %d after %d", v, last)
				}
				last = v
				local = append(local, v)
			}
			mu.Lock()
			for _, v := range local {
				seen[v]++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != goroutines*perG {
		t.Fatalf("distinct values = %d, want %d", len(seen), goroutines*perG)
	}
	for v := 0; v < goroutines*perG; v++ {
		if seen[v] != 1 {
			t.Errorf("value %d claimed %d times", v, seen[v])
		}
	}
}
