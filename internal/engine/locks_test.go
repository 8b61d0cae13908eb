package engine

import (
	"sync"
	"testing"
)

func TestKeyedLocks_SerializesSameKey(t *testing.T) {
	k := newKeyedLocks()

	var counter, max int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := k.acquire("A1", "TCS")
			defer release()

			mu.Lock()
			counter++
			if counter > max {
				max = counter
			}
			mu.Unlock()

			mu.Lock()
			counter--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if max > 1 {
		t.Errorf("lock admitted %d holders for one key, want 1", max)
	}
}

func TestKeyedLocks_IndependentKeysDoNotBlock(t *testing.T) {
	k := newKeyedLocks()

	release1 := k.acquire("A1", "TCS")
	defer release1()

	done := make(chan struct{})
	go func() {
		release2 := k.acquire("A1", "INFY")
		release2()
		close(done)
	}()

	// Must complete without release1 being called.
	<-done
}

func TestKeyedLocks_EntriesReleased(t *testing.T) {
	k := newKeyedLocks()

	release := k.acquire("A1", "TCS")
	release()

	k.mu.Lock()
	defer k.mu.Unlock()
	if len(k.locks) != 0 {
		t.Errorf("lock table holds %d entries after release, want 0", len(k.locks))
	}
}
