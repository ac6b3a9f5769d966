package exchange

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOKXFetchOrderBook(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("instId"); got != "SOL-USDT" {
			t.Fatalf("unexpected instId %q", got)
		}
		io.WriteString(w, `{
			"code": "0", "msg": "",
			"data": [{
				"bids": [["100.1","2.5","0","3"],["100.0","1.0","0","1"]],
				"asks": [["100.2","1.5","0","2"]],
				"ts": "1700000000000"
			}]
		}`)
	}))
	defer ts.Close()

	c := NewOKX(Options{BaseURL: ts.URL, HTTPClient: ts.Client(), Resolver: NewResolver(), Depth: 50})
	snap, err := c.FetchOrderBook(context.Background(), "SOL/USDT")
	if err != nil {
		t.Fatalf("fetch err: %v", err)
	}
	if snap.Exchange != "okx" || len(snap.Bids) != 2 || len(snap.Asks) != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.Bids[0].Price != 100.1 || snap.Bids[0].Volume != 2.5 {
		t.Fatalf("best bid wrong: %+v", snap.Bids[0])
	}
}

func TestOKXBusinessErrorIsRejected(t *testing.T) {
	// OKX 业务错误走 HTTP 200 + code 字段
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"code":"51001","msg":"Instrument ID does not exist","data":[]}`)
	}))
	defer ts.Close()

	c := NewOKX(Options{BaseURL: ts.URL, HTTPClient: ts.Client(), Resolver: NewResolver()})
	_, err := c.FetchOrderBook(context.Background(), "SOL/USDT")
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("want ErrRejected, got %v", err)
	}
}

func TestOKXEmptyDataIsMalformed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"code":"0","msg":"","data":[]}`)
	}))
	defer ts.Close()

	c := NewOKX(Options{BaseURL: ts.URL, HTTPClient: ts.Client(), Resolver: NewResolver()})
	_, err := c.FetchOrderBook(context.Background(), "SOL/USDT")
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("want ErrMalformed, got %v", err)
	}
}
