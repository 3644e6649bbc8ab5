package keylock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mise/internal/core/id"
)

func TestLock_SingleKey(t *testing.T) {
	k := New()
	key := id.New()

	unlock := k.Lock(key)

	blocked := make(chan struct{})
	go func() {
		u := k.Lock(key)
		u()
		close(blocked)
	}()

	select {
	case <-blocked:
		t.Fatal("second Lock acquired while first still held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()

	select {
	case <-blocked:
	case <-time.After(time.Second):
		t.Fatal("second Lock never acquired after unlock")
	}
}

func TestLock_DuplicateKeys(t *testing.T) {
	k := New()
	key := id.New()

	// Duplicates must be locked once or this deadlocks.
	unlock := k.Lock(key, key, key)
	unlock()
}

func TestLock_OverlappingSetsNoDeadlock(t *testing.T) {
	k := New()
	a, b, c := id.New(), id.New(), id.New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unlock := k.Lock(a, b)
			time.Sleep(time.Microsecond)
			unlock()
		}()
		go func() {
			defer wg.Done()
			// Reverse order on an overlapping set.
			unlock := k.Lock(c, b, a)
			time.Sleep(time.Microsecond)
			unlock()
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("deadlock between overlapping lock sets")
	}
}

func TestLock_SerializesCounter(t *testing.T) {
	k := New()
	key := id.New()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock(key)
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
}

func TestDedupeSorted(t *testing.T) {
	a, b := id.New(), id.New()

	out := dedupeSorted([]id.ID{b, a, b, a, a})
	require.Len(t, out, 2)
	assert.True(t, less(out[0], out[1]))
}
