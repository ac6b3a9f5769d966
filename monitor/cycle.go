package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"orderbook-monitor-go/detector"
	"orderbook-monitor-go/exchange"
	"orderbook-monitor-go/market"
	"orderbook-monitor-go/metrics"
)

// EventSink 消费检测事件。投递失败只记日志，不回传进监控循环。
type EventSink interface {
	Notify(ev detector.Event) error
}

// Settings 是监控循环每轮读取的运行参数。
// 热更新在周期边界生效，进行中的一轮始终用开始时的参数。
type Settings struct {
	TradingPairs      []string
	RefreshInterval   time.Duration
	FetchTimeout      time.Duration
	ThresholdPercent  float64
	TargetVolume      float64
	TopOfBookFallback bool
}

// Monitor 驱动 Idle→Fetching→Detecting 循环：并发抓取所有
// (交易所, 交易对) 组合，全部返回后做检测，事件交给 sink，
// 然后睡到距本轮开始满一个刷新间隔为止。
type Monitor struct {
	connectors []exchange.Connector
	sink       EventSink
	log        *zap.Logger
	collector  *metrics.Collector
	ctrl       *ShutdownController

	mu       sync.RWMutex
	settings Settings

	// 每个 (exchange, symbol) 的未上架告警只打一次
	loggedUnsupported map[string]struct{}
	iteration         uint64
}

func New(connectors []exchange.Connector, sink EventSink, ctrl *ShutdownController,
	log *zap.Logger, collector *metrics.Collector, settings Settings) *Monitor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Monitor{
		connectors:        connectors,
		sink:              sink,
		log:               log,
		collector:         collector,
		ctrl:              ctrl,
		settings:          settings,
		loggedUnsupported: make(map[string]struct{}),
	}
}

// ApplySettings 替换运行参数，下一轮生效。
func (m *Monitor) ApplySettings(s Settings) {
	m.mu.Lock()
	m.settings = s
	m.mu.Unlock()
	m.log.Info("settings applied",
		zap.Duration("refresh_interval", s.RefreshInterval),
		zap.Float64("threshold_percent", s.ThresholdPercent),
		zap.Float64("target_volume", s.TargetVolume))
}

func (m *Monitor) currentSettings() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings
}

// Run 执行监控循环直到 kill-switch 竖起或 ctx 取消，
// 退出前关闭所有连接器。单所单对的失败只影响它自己。
func (m *Monitor) Run(ctx context.Context) error {
	defer m.closeConnectors()
	for {
		if m.ctrl.IsShuttingDown() || ctx.Err() != nil {
			m.log.Info("monitor stopping", zap.Uint64("iterations", m.iteration))
			return nil
		}
		start := time.Now()
		m.iteration++
		s := m.currentSettings()
		m.log.Debug("cycle start", zap.Uint64("iteration", m.iteration))

		snaps := m.fetchAll(ctx, s)
		m.detect(s, snaps)

		elapsed := time.Since(start)
		m.collector.ObserveCycle(elapsed)

		// 间隔从本轮开始算：超时的轮次直接进入下一轮，不叠加漂移。
		if wait := s.RefreshInterval - elapsed; wait > 0 {
			select {
			case <-time.After(wait):
			case <-m.ctrl.Done():
			case <-ctx.Done():
			}
		}
	}
}

type fetchResult struct {
	connectorIdx int
	symbol       string
	snap         *market.Snapshot
	err          error
	elapsed      time.Duration
}

// fetchAll 为每个 (连接器, 交易对) 启一个抓取任务并等全部结束。
// 每个任务独立受 FetchTimeout 约束，失败在这里被吸收，绝不中断同轮其他任务。
func (m *Monitor) fetchAll(ctx context.Context, s Settings) map[string][]*market.Snapshot {
	total := len(m.connectors) * len(s.TradingPairs)
	results := make(chan fetchResult, total)

	var wg sync.WaitGroup
	for idx, conn := range m.connectors {
		for _, pair := range s.TradingPairs {
			wg.Add(1)
			go func(idx int, conn exchange.Connector, pair string) {
				defer wg.Done()
				fctx, cancel := context.WithTimeout(ctx, s.FetchTimeout)
				defer cancel()
				t0 := time.Now()
				snap, err := conn.FetchOrderBook(fctx, pair)
				results <- fetchResult{
					connectorIdx: idx,
					symbol:       pair,
					snap:         snap,
					err:          err,
					elapsed:      time.Since(t0),
				}
			}(idx, conn, pair)
		}
	}
	wg.Wait()
	close(results)

	// 按连接器顺序归位，保证检测时交易所对的枚举顺序稳定。
	byConnector := make([]map[string]*market.Snapshot, len(m.connectors))
	for i := range byConnector {
		byConnector[i] = make(map[string]*market.Snapshot)
	}
	for res := range results {
		name := m.connectors[res.connectorIdx].Name()
		if res.err != nil {
			m.collector.ObserveFetch(name, res.elapsed, errorReason(res.err))
			m.logFetchError(name, res.symbol, res.err)
			continue
		}
		if res.snap.Crossed() {
			m.collector.ObserveFetch(name, res.elapsed, "malformed")
			m.log.Warn("crossed book discarded",
				zap.String("exchange", name), zap.String("symbol", res.symbol))
			continue
		}
		m.collector.ObserveFetch(name, res.elapsed, "")
		byConnector[res.connectorIdx][res.symbol] = res.snap
	}

	grouped := make(map[string][]*market.Snapshot, len(s.TradingPairs))
	for _, pair := range s.TradingPairs {
		var list []*market.Snapshot
		for idx := range m.connectors {
			if snap, ok := byConnector[idx][pair]; ok {
				list = append(list, snap)
			}
		}
		grouped[pair] = list
	}
	return grouped
}

func (m *Monitor) detect(s Settings, grouped map[string][]*market.Snapshot) {
	det := detector.New(s.ThresholdPercent, s.TargetVolume, s.TopOfBookFallback)
	for _, pair := range s.TradingPairs {
		snaps := grouped[pair]
		m.collector.ObserveSnapshots(pair, len(snaps))
		if len(snaps) < 2 {
			continue
		}
		for _, ev := range det.Detect(pair, snaps) {
			m.collector.ObserveOpportunity(ev.Symbol, ev.SpreadPercent)
			m.log.Info("arbitrage opportunity",
				zap.String("symbol", ev.Symbol),
				zap.String("buy_exchange", ev.BuyExchange),
				zap.String("sell_exchange", ev.SellExchange),
				zap.Float64("buy_price", ev.BuyPrice),
				zap.Float64("sell_price", ev.SellPrice),
				zap.Float64("spread_percent", ev.SpreadPercent),
				zap.Bool("top_of_book", ev.TopOfBook))
			if m.sink == nil {
				continue
			}
			if err := m.sink.Notify(ev); err != nil {
				// sink 故障不能影响循环
				m.log.Error("sink delivery failed",
					zap.String("symbol", ev.Symbol), zap.Error(err))
			}
		}
	}
}

func (m *Monitor) logFetchError(exchangeName, symbol string, err error) {
	fields := []zap.Field{
		zap.String("exchange", exchangeName),
		zap.String("symbol", symbol),
		zap.Error(err),
	}
	switch {
	case errors.Is(err, exchange.ErrUnsupportedSymbol):
		key := exchangeName + "|" + symbol
		if _, seen := m.loggedUnsupported[key]; seen {
			return
		}
		m.loggedUnsupported[key] = struct{}{}
		m.log.Info("symbol not listed, skipping permanently", fields...)
	case errors.Is(err, exchange.ErrNetwork):
		m.log.Warn("fetch failed, will retry next cycle", fields...)
	default:
		m.log.Warn("exchange rejected fetch", fields...)
	}
}

func (m *Monitor) closeConnectors() {
	for _, conn := range m.connectors {
		if err := conn.Close(); err != nil {
			m.log.Error("connector close failed",
				zap.String("exchange", conn.Name()), zap.Error(err))
			continue
		}
		m.log.Info("connector closed", zap.String("exchange", conn.Name()))
	}
}

// errorReason 把错误映射到指标 label。
func errorReason(err error) string {
	switch {
	case errors.Is(err, exchange.ErrUnsupportedSymbol):
		return "unsupported_symbol"
	case errors.Is(err, exchange.ErrNetwork):
		return "network"
	case errors.Is(err, exchange.ErrMalformed):
		return "malformed"
	case errors.Is(err, exchange.ErrRejected):
		return "rejected"
	default:
		return "other"
	}
}
