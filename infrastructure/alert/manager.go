package alert

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"orderbook-monitor-go/detector"
)

// Channel 通知通道接口。每个通道自行负责把事件渲染成自己的格式。
type Channel interface {
	Send(ev detector.Event) error
	Name() string
}

// Manager 把检测事件分发到所有通道，并按 (symbol, buy, sell) 限流，
// 避免同一个长期存在的价差每轮都刷屏。
type Manager struct {
	channels []Channel
	throttle *Throttler
	log      *zap.Logger
	mu       sync.RWMutex
}

// NewManager 创建告警管理器。
func NewManager(channels []Channel, throttleInterval time.Duration, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		channels: channels,
		throttle: NewThrottler(throttleInterval),
		log:      log,
	}
}

// AddChannel 追加一个通道。
func (m *Manager) AddChannel(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = append(m.channels, ch)
}

// Notify 实现 monitor.EventSink。单个通道失败不影响其余通道；
// 全部失败时返回错误，由监控循环记日志，不重试。
func (m *Manager) Notify(ev detector.Event) error {
	key := fmt.Sprintf("%s|%s|%s", ev.Symbol, ev.BuyExchange, ev.SellExchange)
	if !m.throttle.Allow(key) {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var lastErr error
	delivered := 0
	for _, ch := range m.channels {
		if err := ch.Send(ev); err != nil {
			lastErr = fmt.Errorf("channel %s: %w", ch.Name(), err)
			m.log.Warn("alert channel failed",
				zap.String("channel", ch.Name()), zap.Error(err))
			continue
		}
		delivered++
	}
	if delivered == 0 && lastErr != nil {
		return lastErr
	}
	return nil
}

// Throttler 按 key 限制发送频率。
type Throttler struct {
	lastSent map[string]time.Time
	interval time.Duration
	mu       sync.Mutex
}

// NewThrottler 创建限流器；interval <= 0 表示不限流。
func NewThrottler(interval time.Duration) *Throttler {
	return &Throttler{
		lastSent: make(map[string]time.Time),
		interval: interval,
	}
}

// Allow 检查该 key 当前是否允许发送。
func (t *Throttler) Allow(key string) bool {
	if t.interval <= 0 {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	if last, ok := t.lastSent[key]; ok && now.Sub(last) < t.interval {
		return false
	}
	t.lastSent[key] = now
	return true
}

// Reset 清掉某个 key 的限流记录。
func (t *Throttler) Reset(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.lastSent, key)
}
