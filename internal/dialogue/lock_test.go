package dialogue

import (
	"sync"
	"testing"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := newKeyedMutex()

	const goroutines = 100
	counter := 0

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			unlock := km.lock("same-session")
			defer unlock()
			counter++ // not atomic on purpose; the lock must serialize this
		}()
	}
	wg.Wait()

	if counter != goroutines {
		t.Fatalf("counter=%d, want %d", counter, goroutines)
	}
}

func TestKeyedMutex_IndependentKeys(t *testing.T) {
	km := newKeyedMutex()

	unlockA := km.lock("session-a")
	done := make(chan struct{})
	go func() {
		unlockB := km.lock("session-b")
		unlockB()
		close(done)
	}()
	// session-b must not wait on session-a's lock
	<-done
	unlockA()
}
