package conversation

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLockRegistry_SerializesSameID(t *testing.T) {
	r := NewLockRegistry()

	unlock := r.Lock("conv-1")

	acquired := make(chan struct{})
	go func() {
		u := r.Lock("conv-1")
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("second Lock on the same id returned before the first was unlocked")
	case <-time.After(20 * time.Millisecond):
	}

	unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second Lock never acquired after unlock")
	}
}

func TestLockRegistry_IndependentIDsDoNotBlock(t *testing.T) {
	r := NewLockRegistry()

	unlockA := r.Lock("conv-a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		u := r.Lock("conv-b")
		u()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Lock on a different id blocked unexpectedly")
	}
}

func TestLockRegistry_ConcurrentUseIsRaceFree(t *testing.T) {
	r := NewLockRegistry()
	var wg sync.WaitGroup
	counter := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := r.Lock("shared")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
}
