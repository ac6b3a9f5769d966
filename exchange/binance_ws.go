package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"orderbook-monitor-go/market"
)

const binanceWSEndpoint = "wss://stream.binance.com:9443"

// BinanceStream 订阅 <sym>@depth20@100ms 合并流，在内存里维护每个交易对
// 最近一次的订单簿快照；FetchOrderBook 直接返回流上的最新状态而不发 REST 请求。
// 连接断开后带退避自动重连，期间 FetchOrderBook 以 ErrNetwork 报告数据过期。
type BinanceStream struct {
	Endpoint         string
	Dialer           *websocket.Dialer
	Resolver         *Resolver
	Depth            int
	StaleAfter       time.Duration // 快照超过该时长视为断流，默认 10s
	ReconnectBackoff time.Duration // 重连起始退避，默认 1s，指数增长至 30s

	mu      sync.RWMutex
	books   map[string]*market.Snapshot // canonical -> latest
	streams map[string]string           // stream name -> canonical

	conn      *websocket.Conn
	connMu    sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

func NewBinanceStream(resolver *Resolver, depth int) *BinanceStream {
	return &BinanceStream{
		Endpoint:         binanceWSEndpoint,
		Dialer:           websocket.DefaultDialer,
		Resolver:         resolver,
		Depth:            depth,
		StaleAfter:       10 * time.Second,
		ReconnectBackoff: time.Second,
		books:            make(map[string]*market.Snapshot),
		streams:          make(map[string]string),
		done:             make(chan struct{}),
	}
}

func (s *BinanceStream) Name() string { return "binance" }

// Start 解析所有交易对并建立合并流连接；一个映射都解析不到时报错。
// 读循环在后台运行，Close 之前持续重连。
func (s *BinanceStream) Start(ctx context.Context, canonicalSymbols []string) error {
	for _, canonical := range canonicalSymbols {
		native, ok := s.Resolver.Resolve(s.Name(), canonical)
		if !ok {
			continue
		}
		stream := strings.ToLower(native) + "@depth20@100ms"
		s.streams[stream] = canonical
	}
	if len(s.streams) == 0 {
		return fmt.Errorf("binance stream: no resolvable symbols")
	}
	if err := s.dial(ctx); err != nil {
		return err
	}
	go s.readLoop(ctx)
	return nil
}

func (s *BinanceStream) dial(ctx context.Context) error {
	names := make([]string, 0, len(s.streams))
	for name := range s.streams {
		names = append(names, name)
	}
	u, err := url.Parse(s.Endpoint)
	if err != nil {
		return err
	}
	u.Path = "/stream"
	q := u.Query()
	q.Set("streams", strings.Join(names, "/"))
	u.RawQuery = q.Encode()

	conn, _, err := s.Dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", ErrNetwork, u.Host, err)
	}
	s.connMu.Lock()
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.conn = conn
	s.connMu.Unlock()
	return nil
}

// closeConn 收掉当前连接。死连接不关会泄漏 fd，CLOSE_WAIT 挂到进程退出。
func (s *BinanceStream) closeConn() {
	s.connMu.Lock()
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()
}

type binanceStreamMsg struct {
	Stream string `json:"stream"`
	Data   struct {
		LastUpdateID int64      `json:"lastUpdateId"`
		Bids         [][]string `json:"bids"`
		Asks         [][]string `json:"asks"`
	} `json:"data"`
}

func (s *BinanceStream) readLoop(ctx context.Context) {
	backoff := s.ReconnectBackoff
	if backoff <= 0 {
		backoff = time.Second
	}
	for {
		err := s.readUntilError()
		s.closeConn()
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		default:
		}
		_ = err // 断流原因不影响处理方式，统一重连
		select {
		case <-time.After(backoff):
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
		if err := s.dial(ctx); err != nil {
			continue
		}
		// Close 可能落在重连窗口里，新连接由这里收掉，不能留给没人管的状态
		select {
		case <-s.done:
			s.closeConn()
			return
		case <-ctx.Done():
			s.closeConn()
			return
		default:
		}
		backoff = s.ReconnectBackoff
		if backoff <= 0 {
			backoff = time.Second
		}
	}
}

func (s *BinanceStream) readUntilError() error {
	s.connMu.Lock()
	conn := s.conn
	s.connMu.Unlock()
	if conn == nil {
		return fmt.Errorf("no connection")
	}
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var msg binanceStreamMsg
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue // 跳过无法解析的帧
		}
		canonical, ok := s.streams[msg.Stream]
		if !ok {
			continue
		}
		bids, err := parseStringLevels(msg.Data.Bids)
		if err != nil {
			continue
		}
		asks, err := parseStringLevels(msg.Data.Asks)
		if err != nil {
			continue
		}
		snap := &market.Snapshot{
			Exchange:  s.Name(),
			Symbol:    canonical,
			Bids:      market.TruncateLevels(bids, s.Depth),
			Asks:      market.TruncateLevels(asks, s.Depth),
			FetchedAt: time.Now(),
			Depth:     s.Depth,
		}
		s.mu.Lock()
		s.books[canonical] = snap
		s.mu.Unlock()
	}
}

// FetchOrderBook 返回流上最近的快照；没有数据或数据过期按网络故障处理，
// 下一轮自然重试。
func (s *BinanceStream) FetchOrderBook(_ context.Context, canonical string) (*market.Snapshot, error) {
	if _, ok := s.Resolver.Resolve(s.Name(), canonical); !ok {
		return nil, newFetchError(s.Name(), canonical, ErrUnsupportedSymbol, nil)
	}
	s.mu.RLock()
	snap := s.books[canonical]
	s.mu.RUnlock()
	if snap == nil {
		return nil, newFetchError(s.Name(), canonical, ErrNetwork,
			fmt.Errorf("no stream data yet"))
	}
	stale := s.StaleAfter
	if stale <= 0 {
		stale = 10 * time.Second
	}
	if time.Since(snap.FetchedAt) > stale {
		return nil, newFetchError(s.Name(), canonical, ErrNetwork,
			fmt.Errorf("stream data stale since %s", snap.FetchedAt.Format(time.RFC3339)))
	}
	return snap, nil
}

func (s *BinanceStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.closeConn()
	})
	return nil
}
