package monitor

import "sync"

// ShutdownController 持有唯一的 kill-switch 标志。
// RequestShutdown 只生效一次，后续调用是空操作；
// 循环在每个周期边界检查标志，不打断进行中的抓取。
type ShutdownController struct {
	once sync.Once
	done chan struct{}
}

func NewShutdownController() *ShutdownController {
	return &ShutdownController{done: make(chan struct{})}
}

// RequestShutdown 幂等地竖起 kill-switch，可与读取方并发调用。
func (s *ShutdownController) RequestShutdown() {
	s.once.Do(func() { close(s.done) })
}

// IsShuttingDown 报告是否已请求停机。
func (s *ShutdownController) IsShuttingDown() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Done 返回停机时关闭的通道，用于 select 等待。
func (s *ShutdownController) Done() <-chan struct{} {
	return s.done
}
