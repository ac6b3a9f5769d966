package exchange

import "strings"

// RuleFunc 把 "BASE/QUOTE" 形式的规范交易对改写成交易所原生拼写。
type RuleFunc func(base, quote string) string

// Resolver 负责规范交易对到各交易所原生拼写的映射。
// 解析不到映射表示该交易所未上架这个交易对，属于正常情况而非错误。
type Resolver struct {
	rules     map[string]RuleFunc
	overrides map[string]map[string]string // exchange -> canonical -> native
	excluded  map[string]map[string]bool
}

// NewResolver 内置 binance/okx/coinbase 的默认拼写规则。
func NewResolver() *Resolver {
	r := &Resolver{
		rules:     make(map[string]RuleFunc),
		overrides: make(map[string]map[string]string),
		excluded:  make(map[string]map[string]bool),
	}
	r.Register("binance", func(base, quote string) string { return base + quote })
	r.Register("okx", func(base, quote string) string { return base + "-" + quote })
	r.Register("coinbase", func(base, quote string) string { return base + "-" + quote })
	return r
}

// Register 设置某交易所的默认拼写规则。
func (r *Resolver) Register(exchange string, rule RuleFunc) {
	r.rules[exchange] = rule
}

// Override 为单个交易对指定显式拼写，优先于默认规则。
func (r *Resolver) Override(exchange, canonical, native string) {
	if r.overrides[exchange] == nil {
		r.overrides[exchange] = make(map[string]string)
	}
	r.overrides[exchange][canonical] = native
}

// Exclude 标记某交易所未上架的交易对，解析时直接返回未命中。
func (r *Resolver) Exclude(exchange, canonical string) {
	if r.excluded[exchange] == nil {
		r.excluded[exchange] = make(map[string]bool)
	}
	r.excluded[exchange][canonical] = true
}

// Resolve 返回原生拼写；交易所未知、交易对被排除或格式不合法时 ok 为 false。
func (r *Resolver) Resolve(exchange, canonical string) (string, bool) {
	if r.excluded[exchange][canonical] {
		return "", false
	}
	if native, ok := r.overrides[exchange][canonical]; ok {
		return native, true
	}
	rule, ok := r.rules[exchange]
	if !ok {
		return "", false
	}
	base, quote, ok := strings.Cut(canonical, "/")
	if !ok || base == "" || quote == "" {
		return "", false
	}
	return rule(strings.ToUpper(base), strings.ToUpper(quote)), true
}
