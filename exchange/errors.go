package exchange

import (
	"errors"
	"fmt"
)

// 连接器错误分类。调用方用 errors.Is 区分处理策略：
// 网络类下一轮自动重试，拒绝/坏数据类记录后跳过本轮，
// 未上架的交易对永久跳过。
var (
	// ErrUnsupportedSymbol 交易所未上架该交易对；跳过即可，不算故障。
	ErrUnsupportedSymbol = errors.New("unsupported symbol")
	// ErrNetwork 瞬时网络故障（超时、连接重置等）。
	ErrNetwork = errors.New("network failure")
	// ErrRejected 交易所明确拒绝请求（无效参数、维护中等）。
	ErrRejected = errors.New("exchange rejected request")
	// ErrMalformed 响应缺字段或无法解析，重试语义与 ErrRejected 相同。
	ErrMalformed = errors.New("malformed response")
)

// FetchError 标记一次订单簿抓取失败，携带交易所与交易对。
// Unwrap 同时暴露分类哨兵和底层原因，errors.Is 两者都可命中。
type FetchError struct {
	Exchange string
	Symbol   string
	Kind     error
	Cause    error
}

func (e *FetchError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s %s: %v", e.Exchange, e.Symbol, e.Kind)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Exchange, e.Symbol, e.Kind, e.Cause)
}

func (e *FetchError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

func newFetchError(exchange, symbol string, kind, cause error) *FetchError {
	return &FetchError{Exchange: exchange, Symbol: symbol, Kind: kind, Cause: cause}
}
