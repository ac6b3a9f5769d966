package monitor

import (
	"sync"
	"testing"
	"time"
)

func TestShutdownControllerIdempotentConcurrent(t *testing.T) {
	ctrl := NewShutdownController()
	if ctrl.IsShuttingDown() {
		t.Fatalf("fresh controller must not be shutting down")
	}

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctrl.RequestShutdown()
		}()
	}
	wg.Wait()

	if !ctrl.IsShuttingDown() {
		t.Fatalf("controller must report shutdown")
	}
	select {
	case <-ctrl.Done():
	case <-time.After(time.Second):
		t.Fatalf("Done channel must be closed")
	}

	// 再调一次仍是空操作
	ctrl.RequestShutdown()
	if !ctrl.IsShuttingDown() {
		t.Fatalf("state must stay terminal")
	}
}
