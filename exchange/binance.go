package exchange

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"orderbook-monitor-go/market"
)

const binanceBaseURL = "https://api.binance.com"

// Binance 通过 REST /api/v3/depth 拉取现货订单簿。
type Binance struct {
	opts      Options
	closeOnce sync.Once
}

func NewBinance(opts Options) *Binance {
	if opts.BaseURL == "" {
		opts.BaseURL = binanceBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = NewDefaultHTTPClient()
	}
	return &Binance{opts: opts}
}

func (b *Binance) Name() string { return "binance" }

type binanceDepthResp struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

func (b *Binance) FetchOrderBook(ctx context.Context, canonical string) (*market.Snapshot, error) {
	native, ok := b.opts.Resolver.Resolve(b.Name(), canonical)
	if !ok {
		return nil, newFetchError(b.Name(), canonical, ErrUnsupportedSymbol, nil)
	}
	b.opts.wait()

	// depth 接口只接受固定档位数，向上取最近一档。
	q := url.Values{}
	q.Set("symbol", native)
	q.Set("limit", strconv.Itoa(binanceDepthLimit(b.opts.Depth)))
	endpoint := b.opts.BaseURL + "/api/v3/depth?" + q.Encode()

	var resp binanceDepthResp
	if err := getJSON(ctx, b.opts.client(), endpoint, &resp); err != nil {
		return nil, wrapFetch(b.Name(), canonical, err)
	}
	bids, err := parseStringLevels(resp.Bids)
	if err != nil {
		return nil, newFetchError(b.Name(), canonical, ErrMalformed, err)
	}
	asks, err := parseStringLevels(resp.Asks)
	if err != nil {
		return nil, newFetchError(b.Name(), canonical, ErrMalformed, err)
	}
	return &market.Snapshot{
		Exchange:  b.Name(),
		Symbol:    canonical,
		Bids:      market.TruncateLevels(bids, b.opts.Depth),
		Asks:      market.TruncateLevels(asks, b.opts.Depth),
		FetchedAt: time.Now(),
		Depth:     b.opts.Depth,
	}, nil
}

// Close 释放空闲连接；可重复调用。
func (b *Binance) Close() error {
	b.closeOnce.Do(func() {
		if b.opts.HTTPClient != nil {
			b.opts.HTTPClient.CloseIdleConnections()
		}
	})
	return nil
}

// binanceDepthLimit 把配置深度映射到接口允许的档位数。
func binanceDepthLimit(depth int) int {
	for _, allowed := range []int{5, 10, 20, 50, 100, 500, 1000} {
		if depth <= allowed {
			return allowed
		}
	}
	return 1000
}

// wrapFetch 把 getJSON 已分类的错误补上交易所与交易对标识。
func wrapFetch(exchange, symbol string, err error) error {
	return fmt.Errorf("%s %s: %w", exchange, symbol, err)
}
