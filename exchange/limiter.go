package exchange

import (
	"sync"
	"time"
)

// RateLimiter 控制对交易所的请求速率，避免触发限流封禁。
// 每个连接器持有自己的限流器，轮询编排层不共享它。
type RateLimiter interface {
	Wait()
}

// TokenBucket 是一个简单的令牌桶限流器。
type TokenBucket struct {
	rate   float64 // 每秒补充令牌数
	burst  int
	tokens float64
	last   time.Time
	mu     sync.Mutex
}

func NewTokenBucket(rate float64, burst int) *TokenBucket {
	if rate <= 0 {
		rate = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucket{
		rate:   rate,
		burst:  burst,
		tokens: float64(burst),
		last:   time.Now(),
	}
}

// Wait 阻塞到可以消耗一个令牌为止。
func (b *TokenBucket) Wait() {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	b.tokens += now.Sub(b.last).Seconds() * b.rate
	b.last = now
	if b.tokens > float64(b.burst) {
		b.tokens = float64(b.burst)
	}
	if b.tokens < 1 {
		sleep := time.Duration((1-b.tokens)/b.rate*float64(time.Second)) + time.Millisecond
		b.mu.Unlock()
		time.Sleep(sleep)
		b.mu.Lock()
		b.tokens = 0
		return
	}
	b.tokens--
}
