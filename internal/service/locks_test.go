package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutex_SameKeyExcludes(t *testing.T) {
	k := newKeyedMutex()

	unlock := k.Lock("a")
	acquired := make(chan struct{})
	go func() {
		release := k.Lock("a")
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatal("second Lock on the same key must wait")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter was not released")
	}
}

func TestKeyedMutex_DifferentKeysDoNotBlock(t *testing.T) {
	k := newKeyedMutex()

	unlockA := k.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		k.Lock("b")()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on another key blocked")
	}
}

func TestKeyedMutex_EntriesAreReleased(t *testing.T) {
	k := newKeyedMutex()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := "k"
			if i%2 == 0 {
				key = "j"
			}
			k.Lock(key)()
		}()
	}
	wg.Wait()

	assert.Zero(t, k.size())
}
