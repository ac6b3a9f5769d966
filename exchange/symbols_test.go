package exchange

import "testing"

func TestResolverDefaults(t *testing.T) {
	r := NewResolver()
	cases := []struct {
		exchange  string
		canonical string
		want      string
	}{
		{"binance", "WIF/USDT", "WIFUSDT"},
		{"binance", "sol/usdt", "SOLUSDT"},
		{"okx", "WIF/USDT", "WIF-USDT"},
		{"coinbase", "SOL/USDT", "SOL-USDT"},
	}
	for _, tc := range cases {
		got, ok := r.Resolve(tc.exchange, tc.canonical)
		if !ok || got != tc.want {
			t.Fatalf("%s %s: got %q ok=%v, want %q", tc.exchange, tc.canonical, got, ok, tc.want)
		}
	}
}

func TestResolverMisses(t *testing.T) {
	r := NewResolver()
	if _, ok := r.Resolve("kraken", "SOL/USDT"); ok {
		t.Fatalf("unknown exchange must not resolve")
	}
	if _, ok := r.Resolve("binance", "SOLUSDT"); ok {
		t.Fatalf("canonical form without slash must not resolve")
	}
	if _, ok := r.Resolve("binance", "/USDT"); ok {
		t.Fatalf("empty base must not resolve")
	}
}

func TestResolverOverrideAndExclude(t *testing.T) {
	r := NewResolver()
	r.Override("coinbase", "WIF/USDT", "WIF-USD")
	got, ok := r.Resolve("coinbase", "WIF/USDT")
	if !ok || got != "WIF-USD" {
		t.Fatalf("override not applied: %q ok=%v", got, ok)
	}

	// 未上架的交易对：解析必须未命中而不是报错
	r.Exclude("coinbase", "PEPE/USDT")
	if _, ok := r.Resolve("coinbase", "PEPE/USDT"); ok {
		t.Fatalf("excluded pair must not resolve")
	}
}
