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

const okxBaseURL = "https://www.okx.com"

// OKX 通过 REST /api/v5/market/books 拉取现货订单簿。
type OKX struct {
	opts      Options
	closeOnce sync.Once
}

func NewOKX(opts Options) *OKX {
	if opts.BaseURL == "" {
		opts.BaseURL = okxBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = NewDefaultHTTPClient()
	}
	return &OKX{opts: opts}
}

func (o *OKX) Name() string { return "okx" }

// OKX 的档位是 ["px","sz","liqSz","ordCount"]，只取前两项。
type okxBooksResp struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []struct {
		Bids [][]string `json:"bids"`
		Asks [][]string `json:"asks"`
		TS   string     `json:"ts"`
	} `json:"data"`
}

func (o *OKX) FetchOrderBook(ctx context.Context, canonical string) (*market.Snapshot, error) {
	native, ok := o.opts.Resolver.Resolve(o.Name(), canonical)
	if !ok {
		return nil, newFetchError(o.Name(), canonical, ErrUnsupportedSymbol, nil)
	}
	o.opts.wait()

	q := url.Values{}
	q.Set("instId", native)
	q.Set("sz", strconv.Itoa(o.opts.Depth))
	endpoint := o.opts.BaseURL + "/api/v5/market/books?" + q.Encode()

	var resp okxBooksResp
	if err := getJSON(ctx, o.opts.client(), endpoint, &resp); err != nil {
		return nil, wrapFetch(o.Name(), canonical, err)
	}
	// 业务错误走 HTTP 200 + code 字段。
	if resp.Code != "0" {
		return nil, newFetchError(o.Name(), canonical, ErrRejected,
			fmt.Errorf("code %s: %s", resp.Code, resp.Msg))
	}
	if len(resp.Data) == 0 {
		return nil, newFetchError(o.Name(), canonical, ErrMalformed,
			fmt.Errorf("empty data array"))
	}
	book := resp.Data[0]
	bids, err := parseStringLevels(book.Bids)
	if err != nil {
		return nil, newFetchError(o.Name(), canonical, ErrMalformed, err)
	}
	asks, err := parseStringLevels(book.Asks)
	if err != nil {
		return nil, newFetchError(o.Name(), canonical, ErrMalformed, err)
	}
	return &market.Snapshot{
		Exchange:  o.Name(),
		Symbol:    canonical,
		Bids:      market.TruncateLevels(bids, o.opts.Depth),
		Asks:      market.TruncateLevels(asks, o.opts.Depth),
		FetchedAt: time.Now(),
		Depth:     o.opts.Depth,
	}, nil
}

func (o *OKX) Close() error {
	o.closeOnce.Do(func() {
		if o.opts.HTTPClient != nil {
			o.opts.HTTPClient.CloseIdleConnections()
		}
	})
	return nil
}
