package alert

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"orderbook-monitor-go/detector"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramChannel 通过 Bot API sendMessage 推送机会。
// token 一般来自环境变量而不是配置文件。
type TelegramChannel struct {
	BaseURL    string
	Token      string
	ChatID     string
	HTTPClient *http.Client
}

func NewTelegramChannel(token, chatID string) *TelegramChannel {
	return &TelegramChannel{
		BaseURL:    telegramAPIBase,
		Token:      token,
		ChatID:     chatID,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *TelegramChannel) Send(ev detector.Event) error {
	if c.Token == "" || c.ChatID == "" {
		return fmt.Errorf("telegram token/chat_id not configured")
	}
	text := fmt.Sprintf(
		"Arbitrage %s\nBuy %s @ %.4f\nSell %s @ %.4f\nSpread %.2f%% | volume %g | est. profit %.4f",
		ev.Symbol, ev.BuyExchange, ev.BuyPrice, ev.SellExchange, ev.SellPrice,
		ev.SpreadPercent, ev.TradableVolume, ev.EstimatedProfit)

	form := url.Values{}
	form.Set("chat_id", c.ChatID)
	form.Set("text", text)

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", c.BaseURL, c.Token)
	resp, err := c.HTTPClient.Post(endpoint,
		"application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram status %d", resp.StatusCode)
	}
	var body struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return err
	}
	if !body.OK {
		return fmt.Errorf("telegram api returned ok=false")
	}
	return nil
}

func (c *TelegramChannel) Name() string { return "telegram" }
