package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"orderbook-monitor-go/market"
)

const coinbaseBaseURL = "https://api.exchange.coinbase.com"

// Coinbase 通过 Exchange REST /products/<id>/book?level=2 拉取聚合订单簿。
type Coinbase struct {
	opts      Options
	closeOnce sync.Once
}

func NewCoinbase(opts Options) *Coinbase {
	if opts.BaseURL == "" {
		opts.BaseURL = coinbaseBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = NewDefaultHTTPClient()
	}
	return &Coinbase{opts: opts}
}

func (c *Coinbase) Name() string { return "coinbase" }

// level=2 的档位是 ["price","size",num_orders]，末位是数字不是字符串，
// 先按 RawMessage 接住再逐项解析。
type coinbaseBookResp struct {
	Sequence json.Number         `json:"sequence"`
	Bids     [][]json.RawMessage `json:"bids"`
	Asks     [][]json.RawMessage `json:"asks"`
}

func (c *Coinbase) FetchOrderBook(ctx context.Context, canonical string) (*market.Snapshot, error) {
	native, ok := c.opts.Resolver.Resolve(c.Name(), canonical)
	if !ok {
		return nil, newFetchError(c.Name(), canonical, ErrUnsupportedSymbol, nil)
	}
	c.opts.wait()

	endpoint := c.opts.BaseURL + "/products/" + native + "/book?level=2"

	var resp coinbaseBookResp
	if err := getJSON(ctx, c.opts.client(), endpoint, &resp); err != nil {
		return nil, wrapFetch(c.Name(), canonical, err)
	}
	bids, err := parseCoinbaseLevels(resp.Bids)
	if err != nil {
		return nil, newFetchError(c.Name(), canonical, ErrMalformed, err)
	}
	asks, err := parseCoinbaseLevels(resp.Asks)
	if err != nil {
		return nil, newFetchError(c.Name(), canonical, ErrMalformed, err)
	}
	return &market.Snapshot{
		Exchange:  c.Name(),
		Symbol:    canonical,
		Bids:      market.TruncateLevels(bids, c.opts.Depth),
		Asks:      market.TruncateLevels(asks, c.opts.Depth),
		FetchedAt: time.Now(),
		Depth:     c.opts.Depth,
	}, nil
}

func (c *Coinbase) Close() error {
	c.closeOnce.Do(func() {
		if c.opts.HTTPClient != nil {
			c.opts.HTTPClient.CloseIdleConnections()
		}
	})
	return nil
}

func parseCoinbaseLevels(raw [][]json.RawMessage) ([]market.Level, error) {
	levels := make([]market.Level, 0, len(raw))
	for _, entry := range raw {
		if len(entry) < 2 {
			return nil, fmt.Errorf("level needs price and size, got %d fields", len(entry))
		}
		price, err := parseQuotedFloat(entry[0])
		if err != nil {
			return nil, fmt.Errorf("bad price: %v", err)
		}
		volume, err := parseQuotedFloat(entry[1])
		if err != nil {
			return nil, fmt.Errorf("bad size: %v", err)
		}
		if volume <= 0 {
			continue
		}
		levels = append(levels, market.Level{Price: price, Volume: volume})
	}
	return levels, nil
}

func parseQuotedFloat(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		// 有些网关把价格下发成裸数字。
		var f float64
		if err2 := json.Unmarshal(raw, &f); err2 == nil {
			return f, nil
		}
		return 0, err
	}
	return strconv.ParseFloat(s, 64)
}
