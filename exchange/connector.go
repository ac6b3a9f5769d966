package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"orderbook-monitor-go/market"
)

// Connector 是每个交易所实现的最小能力集。
// FetchOrderBook 返回规范化快照；Close 幂等，从未成功抓取过也可安全调用。
// 实现除自身的 HTTP 会话与限流器外不持有跨调用状态。
type Connector interface {
	Name() string
	FetchOrderBook(ctx context.Context, canonicalSymbol string) (*market.Snapshot, error)
	Close() error
}

// Options 是 REST 连接器的公共依赖。
type Options struct {
	BaseURL    string       // 留空用各交易所默认地址
	HTTPClient *http.Client // 可注入 httptest
	Limiter    RateLimiter
	Resolver   *Resolver
	Depth      int // 每侧保留档位数
}

func (o *Options) client() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return NewDefaultHTTPClient()
}

func (o *Options) wait() {
	if o.Limiter != nil {
		o.Limiter.Wait()
	}
}

// NewDefaultHTTPClient 提供一个带超时的 http.Client。
func NewDefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

// getJSON 发起 GET 并解析响应体。传输层错误归为 ErrNetwork，
// 非 2xx 归为 ErrRejected，解析失败归为 ErrMalformed。
func getJSON(ctx context.Context, client *http.Client, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}
	req.Header.Set("User-Agent", "orderbook-monitor/1.0")
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// parseStringLevels 解析 [["price","qty"], ...] 形式的档位，
// 量为 0 的档位丢弃（部分交易所用 0 表示删除档）。
func parseStringLevels(raw [][]string) ([]market.Level, error) {
	levels := make([]market.Level, 0, len(raw))
	for _, entry := range raw {
		if len(entry) < 2 {
			return nil, fmt.Errorf("level needs price and volume, got %v", entry)
		}
		price, err := strconv.ParseFloat(entry[0], 64)
		if err != nil {
			return nil, fmt.Errorf("bad price %q: %v", entry[0], err)
		}
		volume, err := strconv.ParseFloat(entry[1], 64)
		if err != nil {
			return nil, fmt.Errorf("bad volume %q: %v", entry[1], err)
		}
		if volume <= 0 {
			continue
		}
		levels = append(levels, market.Level{Price: price, Volume: volume})
	}
	return levels, nil
}
