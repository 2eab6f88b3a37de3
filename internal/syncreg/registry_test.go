package syncreg

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const objectHandle Handle = 1<<32 | 7

func TestRegistry_Register(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(StoreHandle))
	assert.ErrorIs(t, r.Register(StoreHandle), ErrAlreadyRegistered)
	assert.Equal(t, 1, r.Len())

	assert.True(t, r.Unregister(StoreHandle))
	assert.False(t, r.Unregister(StoreHandle))
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_UnregisteredHandleIsNoop(t *testing.T) {
	r := New()
	assert.False(t, r.Lock(objectHandle))
	assert.False(t, r.RLock(objectHandle))
	assert.NoError(t, r.Unlock(objectHandle))
	assert.NoError(t, r.RUnlock(objectHandle))
}

func TestRegistry_UnlockNotHeld(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(objectHandle))
	assert.ErrorIs(t, r.Unlock(objectHandle), ErrNotHeld)
	assert.ErrorIs(t, r.RUnlock(objectHandle), ErrNotHeld)

	require.True(t, r.Lock(objectHandle))
	assert.NoError(t, r.Unlock(objectHandle))
	assert.ErrorIs(t, r.Unlock(objectHandle), ErrNotHeld)
}

func TestRegistry_SharedReaders(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(objectHandle))
	require.True(t, r.RLock(objectHandle))
	require.True(t, r.RLock(objectHandle))

	acquired := make(chan bool)
	go func() { acquired <- r.Lock(objectHandle) }()
	select {
	case <-acquired:
		t.Fatal("writer acquired while readers held the lock")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, r.RUnlock(objectHandle))
	select {
	case <-acquired:
		t.Fatal("writer acquired while a reader still held the lock")
	case <-time.After(20 * time.Millisecond):
	}
	require.NoError(t, r.RUnlock(objectHandle))
	assert.True(t, <-acquired)
}

func TestRegistry_WriterBlocksReader(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(objectHandle))
	require.True(t, r.Lock(objectHandle))

	acquired := make(chan bool)
	go func() { acquired <- r.RLock(objectHandle) }()

	select {
	case <-acquired:
		t.Fatal("reader acquired while writer held the lock")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, r.Unlock(objectHandle))
	assert.True(t, <-acquired)
}

func TestRegistry_UnregisterWakesWaiters(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(objectHandle))
	require.True(t, r.Lock(objectHandle))

	acquired := make(chan bool)
	go func() { acquired <- r.Lock(objectHandle) }()
	time.Sleep(20 * time.Millisecond)

	r.Unregister(objectHandle)
	select {
	case ok := <-acquired:
		assert.False(t, ok, "waiter on a retired handle must not acquire it")
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken by Unregister")
	}
	assert.NoError(t, r.Unlock(objectHandle), "release after unregister is a no-op")
}

func TestRegistry_ExclusiveCounter(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(objectHandle))

	const goroutines = 50
	counter := 0
	var wg sync.WaitGroup
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				r.Lock(objectHandle)
				counter++
				_ = r.Unlock(objectHandle)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, goroutines*100, counter)
}
