package exchange

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestBinanceFetchOrderBook(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("symbol"); got != "SOLUSDT" {
			t.Fatalf("unexpected symbol %q", got)
		}
		io.WriteString(w, `{
			"lastUpdateId": 1,
			"bids": [["100.10","2.5"],["100.00","1.0"],["99.90","0"]],
			"asks": [["100.20","1.5"],["100.30","3.0"]]
		}`)
	}))
	defer ts.Close()

	c := NewBinance(Options{
		BaseURL:    ts.URL,
		HTTPClient: ts.Client(),
		Resolver:   NewResolver(),
		Depth:      50,
	})
	snap, err := c.FetchOrderBook(context.Background(), "SOL/USDT")
	if err != nil {
		t.Fatalf("fetch err: %v", err)
	}
	if snap.Exchange != "binance" || snap.Symbol != "SOL/USDT" {
		t.Fatalf("bad identity: %+v", snap)
	}
	// 量为 0 的档位必须被丢弃
	if len(snap.Bids) != 2 || len(snap.Asks) != 2 {
		t.Fatalf("levels: bids=%d asks=%d", len(snap.Bids), len(snap.Asks))
	}
	if snap.Bids[0].Price != 100.10 || snap.Asks[0].Price != 100.20 {
		t.Fatalf("best levels wrong: %+v / %+v", snap.Bids[0], snap.Asks[0])
	}
	if snap.FetchedAt.IsZero() {
		t.Fatalf("FetchedAt not set")
	}
}

func TestBinanceTruncatesToDepth(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{
			"bids": [["100","1"],["99","1"],["98","1"],["97","1"]],
			"asks": [["101","1"],["102","1"],["103","1"],["104","1"]]
		}`)
	}))
	defer ts.Close()

	c := NewBinance(Options{BaseURL: ts.URL, HTTPClient: ts.Client(), Resolver: NewResolver(), Depth: 2})
	snap, err := c.FetchOrderBook(context.Background(), "SOL/USDT")
	if err != nil {
		t.Fatalf("fetch err: %v", err)
	}
	if len(snap.Bids) != 2 || len(snap.Asks) != 2 {
		t.Fatalf("depth not enforced: bids=%d asks=%d", len(snap.Bids), len(snap.Asks))
	}
}

func TestBinanceErrorTaxonomy(t *testing.T) {
	t.Run("未上架的交易对", func(t *testing.T) {
		r := NewResolver()
		r.Exclude("binance", "WIF/USDT")
		c := NewBinance(Options{BaseURL: "http://unused", HTTPClient: http.DefaultClient, Resolver: r})
		_, err := c.FetchOrderBook(context.Background(), "WIF/USDT")
		if !errors.Is(err, ErrUnsupportedSymbol) {
			t.Fatalf("want ErrUnsupportedSymbol, got %v", err)
		}
		var fe *FetchError
		if !errors.As(err, &fe) || fe.Exchange != "binance" || fe.Symbol != "WIF/USDT" {
			t.Fatalf("FetchError fields: %+v", fe)
		}
	})

	t.Run("非2xx归为拒绝", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest)
		}))
		defer ts.Close()
		c := NewBinance(Options{BaseURL: ts.URL, HTTPClient: ts.Client(), Resolver: NewResolver()})
		_, err := c.FetchOrderBook(context.Background(), "SOL/USDT")
		if !errors.Is(err, ErrRejected) {
			t.Fatalf("want ErrRejected, got %v", err)
		}
	})

	t.Run("坏JSON归为坏数据", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"bids": "nope"`)
		}))
		defer ts.Close()
		c := NewBinance(Options{BaseURL: ts.URL, HTTPClient: ts.Client(), Resolver: NewResolver()})
		_, err := c.FetchOrderBook(context.Background(), "SOL/USDT")
		if !errors.Is(err, ErrMalformed) {
			t.Fatalf("want ErrMalformed, got %v", err)
		}
	})

	t.Run("超时归为网络故障", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer ts.Close()
		c := NewBinance(Options{BaseURL: ts.URL, HTTPClient: ts.Client(), Resolver: NewResolver()})
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := c.FetchOrderBook(ctx, "SOL/USDT")
		if !errors.Is(err, ErrNetwork) {
			t.Fatalf("want ErrNetwork, got %v", err)
		}
	})
}

func TestBinanceCloseIdempotent(t *testing.T) {
	c := NewBinance(Options{Resolver: NewResolver()})
	// 从未抓取过也能关，且可以关多次
	if err := c.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestBinanceDepthLimitMapping(t *testing.T) {
	cases := map[int]int{1: 5, 5: 5, 6: 10, 50: 50, 51: 100, 999: 1000, 5000: 1000}
	for depth, want := range cases {
		if got := binanceDepthLimit(depth); got != want {
			t.Fatalf("depth %d: got %d want %d", depth, got, want)
		}
	}
}
