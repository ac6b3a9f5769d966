package alert

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"orderbook-monitor-go/detector"
)

// LogChannel 把机会写进结构化日志。
type LogChannel struct {
	log *zap.Logger
}

func NewLogChannel(log *zap.Logger) *LogChannel {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogChannel{log: log}
}

func (c *LogChannel) Send(ev detector.Event) error {
	c.log.Info("ARBITRAGE OPPORTUNITY",
		zap.String("symbol", ev.Symbol),
		zap.String("buy_exchange", ev.BuyExchange),
		zap.String("sell_exchange", ev.SellExchange),
		zap.Float64("buy_price", ev.BuyPrice),
		zap.Float64("sell_price", ev.SellPrice),
		zap.Float64("spread_percent", ev.SpreadPercent),
		zap.Float64("tradable_volume", ev.TradableVolume),
		zap.Float64("estimated_profit", ev.EstimatedProfit),
		zap.Bool("top_of_book", ev.TopOfBook),
		zap.Time("detected_at", ev.DetectedAt))
	return nil
}

func (c *LogChannel) Name() string { return "log" }

// ConsoleChannel 在终端打印带颜色的机会块。
type ConsoleChannel struct {
	mu sync.Mutex
}

func NewConsoleChannel() *ConsoleChannel { return &ConsoleChannel{} }

func (c *ConsoleChannel) Send(ev detector.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	const green, reset = "\033[32m", "\033[0m"
	fmt.Printf("%sARBITRAGE OPPORTUNITY - %s:%s\n", green, ev.Symbol, reset)
	fmt.Printf("  Buy  on %-10s at $%.4f\n", ev.BuyExchange, ev.BuyPrice)
	fmt.Printf("  Sell on %-10s at $%.4f\n", ev.SellExchange, ev.SellPrice)
	fmt.Printf("  Spread: %.2f%%  volume: %g  est. profit: $%.4f\n",
		ev.SpreadPercent, ev.TradableVolume, ev.EstimatedProfit)
	fmt.Println("--------------------------------------------------")
	return nil
}

func (c *ConsoleChannel) Name() string { return "console" }

// JSONLChannel 把事件逐行追加为 JSON，供离线分析。
type JSONLChannel struct {
	path string
	mu   sync.Mutex
}

func NewJSONLChannel(path string) *JSONLChannel {
	return &JSONLChannel{path: path}
}

func (c *JSONLChannel) Send(ev detector.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	return enc.Encode(struct {
		Symbol          string  `json:"symbol"`
		BuyExchange     string  `json:"buy_exchange"`
		SellExchange    string  `json:"sell_exchange"`
		BuyPrice        float64 `json:"buy_price"`
		SellPrice       float64 `json:"sell_price"`
		SpreadPercent   float64 `json:"spread_percent"`
		TargetVolume    float64 `json:"target_volume"`
		TradableVolume  float64 `json:"tradable_volume"`
		EstimatedProfit float64 `json:"estimated_profit"`
		TopOfBook       bool    `json:"top_of_book"`
		DetectedAt      string  `json:"detected_at"`
	}{
		Symbol:          ev.Symbol,
		BuyExchange:     ev.BuyExchange,
		SellExchange:    ev.SellExchange,
		BuyPrice:        ev.BuyPrice,
		SellPrice:       ev.SellPrice,
		SpreadPercent:   ev.SpreadPercent,
		TargetVolume:    ev.TargetVolume,
		TradableVolume:  ev.TradableVolume,
		EstimatedProfit: ev.EstimatedProfit,
		TopOfBook:       ev.TopOfBook,
		DetectedAt:      ev.DetectedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
}

func (c *JSONLChannel) Name() string { return "jsonl" }
