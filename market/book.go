package market

import "time"

// Level 表示订单簿中的一个价格档位。
type Level struct {
	Price  float64
	Volume float64
}

// Snapshot 是某交易所、某交易对的一次订单簿快照。
// Bids 按价格从高到低排序，Asks 从低到高；创建后不可变，
// 下一次抓取产生新的 Snapshot 而不是原地修改。
type Snapshot struct {
	Exchange  string
	Symbol    string // canonical form, e.g. "WIF/USDT"
	Bids      []Level
	Asks      []Level
	FetchedAt time.Time
	Depth     int
}

// BestBid 返回买一档；簿为空时 ok 为 false。
func (s *Snapshot) BestBid() (Level, bool) {
	if len(s.Bids) == 0 {
		return Level{}, false
	}
	return s.Bids[0], true
}

// BestAsk 返回卖一档；簿为空时 ok 为 false。
func (s *Snapshot) BestAsk() (Level, bool) {
	if len(s.Asks) == 0 {
		return Level{}, false
	}
	return s.Asks[0], true
}

// Crossed 报告买一价是否不低于卖一价（两侧都非空时才有意义）。
// 正常快照不应出现交叉，出现则说明交易所返回的数据有问题。
func (s *Snapshot) Crossed() bool {
	bid, okB := s.BestBid()
	ask, okA := s.BestAsk()
	if !okB || !okA {
		return false
	}
	return bid.Price >= ask.Price
}

// TruncateLevels 截取前 depth 个档位；depth <= 0 或档位不足时原样返回。
func TruncateLevels(levels []Level, depth int) []Level {
	if depth <= 0 || len(levels) <= depth {
		return levels
	}
	return levels[:depth]
}
