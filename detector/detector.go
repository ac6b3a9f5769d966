package detector

import (
	"math"
	"time"

	"orderbook-monitor-go/market"
)

// Event 记录一次跨所套利机会：在 BuyExchange 按卖盘吃进、
// 在 SellExchange 按买盘卖出。创建后不可变，所有权交给消费方。
type Event struct {
	Symbol          string
	BuyExchange     string
	SellExchange    string
	BuyPrice        float64 // 深度加权买入均价
	SellPrice       float64 // 深度加权卖出均价
	SpreadPercent   float64
	TargetVolume    float64
	TradableVolume  float64 // 回退模式下受一档量限制
	EstimatedProfit float64
	TopOfBook       bool // true 表示由盘口回退比较产生
	DetectedAt      time.Time
}

// Detector 对同一交易对的各所快照做两两比较。
// 除缓存的阈值和目标量外无跨调用状态。
type Detector struct {
	ThresholdPercent float64
	TargetVolume     float64
	// TopOfBookFallback 开启后，深度不足以吃满目标量的交易所对
	// 退回到只比较盘口一档（原始监控器的行为）。
	TopOfBookFallback bool

	now func() time.Time
}

func New(thresholdPercent, targetVolume float64, topOfBookFallback bool) *Detector {
	return &Detector{
		ThresholdPercent:  thresholdPercent,
		TargetVolume:      targetVolume,
		TopOfBookFallback: topOfBookFallback,
		now:               time.Now,
	}
}

// Detect 按快照给定顺序枚举全部有序交易所对 (A,B)，A≠B：
// A 的卖盘算买入成本，B 的买盘算卖出所得，价差达到阈值（含）则产出事件。
// 镜像对 (B,A) 是独立机会，单独评估，不去重。
// 输入顺序相同则输出顺序必然相同。
func (d *Detector) Detect(symbol string, snaps []*market.Snapshot) []Event {
	if len(snaps) < 2 {
		return nil
	}
	var events []Event
	for i, buySide := range snaps {
		for j, sellSide := range snaps {
			if i == j {
				continue
			}
			if ev, ok := d.compare(symbol, buySide, sellSide); ok {
				events = append(events, ev)
			}
		}
	}
	return events
}

func (d *Detector) compare(symbol string, buySide, sellSide *market.Snapshot) (Event, bool) {
	buyPrice, errBuy := market.WeightedPrice(buySide.Asks, d.TargetVolume)
	sellPrice, errSell := market.WeightedPrice(sellSide.Bids, d.TargetVolume)

	// WeightedPrice 只会以 ErrNotEnoughLiquidity 失败：簿太薄。
	if errBuy != nil || errSell != nil {
		if !d.TopOfBookFallback {
			return Event{}, false
		}
		return d.compareTopOfBook(symbol, buySide, sellSide)
	}
	if buyPrice <= 0 {
		return Event{}, false
	}
	spread := (sellPrice - buyPrice) / buyPrice * 100
	if spread < d.ThresholdPercent {
		return Event{}, false
	}
	return Event{
		Symbol:          symbol,
		BuyExchange:     buySide.Exchange,
		SellExchange:    sellSide.Exchange,
		BuyPrice:        buyPrice,
		SellPrice:       sellPrice,
		SpreadPercent:   spread,
		TargetVolume:    d.TargetVolume,
		TradableVolume:  d.TargetVolume,
		EstimatedProfit: (sellPrice - buyPrice) * d.TargetVolume,
		DetectedAt:      d.timestamp(),
	}, true
}

// compareTopOfBook 按一档价比较，成交量按两侧一档量取小。
func (d *Detector) compareTopOfBook(symbol string, buySide, sellSide *market.Snapshot) (Event, bool) {
	ask, okA := buySide.BestAsk()
	bid, okB := sellSide.BestBid()
	if !okA || !okB || ask.Price <= 0 {
		return Event{}, false
	}
	spread := (bid.Price - ask.Price) / ask.Price * 100
	if spread < d.ThresholdPercent {
		return Event{}, false
	}
	tradable := math.Min(ask.Volume, bid.Volume)
	return Event{
		Symbol:          symbol,
		BuyExchange:     buySide.Exchange,
		SellExchange:    sellSide.Exchange,
		BuyPrice:        ask.Price,
		SellPrice:       bid.Price,
		SpreadPercent:   spread,
		TargetVolume:    d.TargetVolume,
		TradableVolume:  tradable,
		EstimatedProfit: (bid.Price - ask.Price) * tradable,
		TopOfBook:       true,
		DetectedAt:      d.timestamp(),
	}, true
}

func (d *Detector) timestamp() time.Time {
	if d.now != nil {
		return d.now()
	}
	return time.Now()
}
