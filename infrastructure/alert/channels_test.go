package alert

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestJSONLChannelAppendsOneLinePerEvent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.jsonl")
	ch := NewJSONLChannel(path)

	if err := ch.Send(event("SOL/USDT", "binance", "okx")); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := ch.Send(event("WIF/USDT", "okx", "coinbase")); err != nil {
		t.Fatalf("send: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var lines int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines++
		var rec map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("line %d not valid json: %v", lines, err)
		}
		if rec["symbol"] == "" {
			t.Fatalf("line %d missing symbol: %v", lines, rec)
		}
	}
	if lines != 2 {
		t.Fatalf("expected 2 lines, got %d", lines)
	}
}

func TestTelegramChannelSendsMessage(t *testing.T) {
	var gotPath, gotBody string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		io.WriteString(w, `{"ok":true}`)
	}))
	defer ts.Close()

	ch := NewTelegramChannel("tok123", "chat42")
	ch.BaseURL = ts.URL
	ch.HTTPClient = ts.Client()

	if err := ch.Send(event("SOL/USDT", "binance", "okx")); err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotPath != "/bottok123/sendMessage" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	for _, want := range []string{"chat_id=chat42", "SOL%2FUSDT", "binance"} {
		if !strings.Contains(gotBody, want) {
			t.Fatalf("body missing %q: %s", want, gotBody)
		}
	}
}

func TestTelegramChannelAPIFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"ok":false}`)
	}))
	defer ts.Close()

	ch := NewTelegramChannel("tok", "chat")
	ch.BaseURL = ts.URL
	ch.HTTPClient = ts.Client()
	if err := ch.Send(event("SOL/USDT", "a", "b")); err == nil {
		t.Fatalf("ok=false must be an error")
	}
}

func TestTelegramChannelUnconfigured(t *testing.T) {
	ch := NewTelegramChannel("", "")
	if err := ch.Send(event("SOL/USDT", "a", "b")); err == nil {
		t.Fatalf("missing token must be an error")
	}
}
