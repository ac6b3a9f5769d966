package exchange

import (
	"testing"
	"time"
)

func TestTokenBucketBurstThenThrottle(t *testing.T) {
	b := NewTokenBucket(10, 2) // 10/s，突发 2

	start := time.Now()
	b.Wait()
	b.Wait()
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("burst tokens should not block, took %v", elapsed)
	}

	start = time.Now()
	b.Wait() // 桶空，需要等令牌补充
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Fatalf("empty bucket should block ~100ms, took %v", elapsed)
	}
}

func TestTokenBucketDefaults(t *testing.T) {
	b := NewTokenBucket(0, 0)
	if b.rate != 1 || b.burst != 1 {
		t.Fatalf("defaults not applied: rate=%v burst=%v", b.rate, b.burst)
	}
}
