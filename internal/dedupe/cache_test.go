// ABOUTME: Tests for the provider-message-id dedupe cache
// ABOUTME: Covers TTL expiry, size-capped eviction, atomicity, and concurrency

package dedupe

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache_Seen_UnknownID(t *testing.T) {
	cache := New(5*time.Minute, 100)
	defer cache.Close()

	assert.False(t, cache.Seen("wamid.never"))
}

func TestCache_Seen_MarkedID(t *testing.T) {
	cache := New(5*time.Minute, 100)
	defer cache.Close()

	cache.Mark("wamid.abc")
	assert.True(t, cache.Seen("wamid.abc"))
}

func TestCache_Seen_Expired(t *testing.T) {
	cache := New(10*time.Millisecond, 100)
	defer cache.Close()

	cache.Mark("wamid.exp")
	assert.True(t, cache.Seen("wamid.exp"))

	time.Sleep(20 * time.Millisecond)
	assert.False(t, cache.Seen("wamid.exp"))
}

func TestCache_Mark_RefreshesStamp(t *testing.T) {
	cache := New(50*time.Millisecond, 100)
	defer cache.Close()

	cache.Mark("wamid.refresh")
	time.Sleep(30 * time.Millisecond)
	cache.Mark("wamid.refresh")
	time.Sleep(30 * time.Millisecond)

	// past the original TTL but inside the refreshed one
	assert.True(t, cache.Seen("wamid.refresh"))
}

func TestCache_SeenOrMark_NewThenDuplicate(t *testing.T) {
	cache := New(5*time.Minute, 100)
	defer cache.Close()

	assert.False(t, cache.SeenOrMark("wamid.one"), "first delivery is new")
	assert.True(t, cache.SeenOrMark("wamid.one"), "retry is a duplicate")
}

func TestCache_Forget_MakesIDNewAgain(t *testing.T) {
	cache := New(5*time.Minute, 100)
	defer cache.Close()

	assert.False(t, cache.SeenOrMark("wamid.drop"))
	cache.Forget("wamid.drop")

	assert.False(t, cache.Seen("wamid.drop"))
	assert.False(t, cache.SeenOrMark("wamid.drop"), "forgotten id is accepted again")
}

func TestCache_Forget_UnknownIDIsNoop(t *testing.T) {
	cache := New(5*time.Minute, 100)
	defer cache.Close()

	cache.Forget("wamid.never")
	assert.False(t, cache.Seen("wamid.never"))
}

func TestCache_SeenOrMark_ExpiredIDIsNewAgain(t *testing.T) {
	cache := New(10*time.Millisecond, 100)
	defer cache.Close()

	assert.False(t, cache.SeenOrMark("wamid.exp"))
	time.Sleep(20 * time.Millisecond)
	assert.False(t, cache.SeenOrMark("wamid.exp"))
}

func TestCache_SeenOrMark_ExactlyOneWinner(t *testing.T) {
	cache := New(5*time.Minute, 100)
	defer cache.Close()

	const goroutines = 100
	var winners int32
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			if !cache.SeenOrMark("wamid.contested") {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners)
}

func TestCache_EvictionDropsOldestFirst(t *testing.T) {
	cache := New(5*time.Minute, 3)
	defer cache.Close()

	cache.Mark("wamid.1")
	cache.Mark("wamid.2")
	cache.Mark("wamid.3")
	cache.Mark("wamid.4")

	assert.False(t, cache.Seen("wamid.1"), "oldest id should be evicted")
	assert.True(t, cache.Seen("wamid.2"))
	assert.True(t, cache.Seen("wamid.3"))
	assert.True(t, cache.Seen("wamid.4"))

	cache.Mark("wamid.5")
	assert.False(t, cache.Seen("wamid.2"))
	assert.True(t, cache.Seen("wamid.5"))
}

func TestCache_SweepRemovesExpiredEntries(t *testing.T) {
	cache := New(10*time.Millisecond, 100)
	defer cache.Close()

	cache.Mark("wamid.a")
	cache.Mark("wamid.b")
	time.Sleep(20 * time.Millisecond)

	cache.sweepOnce()

	cache.mu.RLock()
	remaining := len(cache.entries)
	cache.mu.RUnlock()
	assert.Equal(t, 0, remaining)
}

func TestCache_ConcurrentMarkAndSeen(t *testing.T) {
	cache := New(5*time.Minute, 1000)
	defer cache.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := fmt.Sprintf("wamid.%d.%d", n, j%10)
				cache.Mark(id)
				cache.Seen(id)
			}
		}(i)
	}
	wg.Wait()

	cache.Mark("wamid.final")
	assert.True(t, cache.Seen("wamid.final"))
}

func TestCache_Close_Idempotent(t *testing.T) {
	cache := New(5*time.Minute, 100)
	cache.Mark("wamid.x")

	cache.Close()
	cache.Close()
}
