package vulkan

import (
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
)

func TestSafeCallSerializesGroup(t *testing.T) {
	pool := NewVulkanLockPool()
	var (
		wg      sync.WaitGroup
		counter int
	)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pool.SafeCall(BufferManagement, func() error {
				counter++
				return nil
			})
		}()
	}
	wg.Wait()
	if counter != 64 {
		t.Fatalf("counter %d, want 64", counter)
	}
}

func TestSafeCallReturnsError(t *testing.T) {
	pool := NewVulkanLockPool()
	want := errors.New("boom")
	if err := pool.SafeCall(MemoryManagement, func() error { return want }); !errors.Is(err, want) {
		t.Fatalf("got %v", err)
	}
	// The group is unlocked again after an error.
	if err := pool.SafeCall(MemoryManagement, func() error { return nil }); err != nil {
		t.Fatal(err)
	}
}

func TestQueueLockDoesNotBlockGroups(t *testing.T) {
	pool := NewVulkanLockPool()
	pool.LockQueue(0)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = pool.SafeCall(SynchronizationManagement, func() error { return nil })
		_ = pool.SafeQueueCall(1, func() error { return nil })
	}()
	<-done

	released := make(chan struct{})
	go func() {
		defer close(released)
		_ = pool.SafeQueueCall(0, func() error { return nil })
	}()
	pool.UnlockQueue(0)
	<-released
}
