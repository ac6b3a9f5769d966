package market

import "errors"

// ErrNotEnoughLiquidity 表示簿内累计量不足以吃进目标量。
// 这是正常结果而非故障：簿太薄时上层直接跳过该比较。
var ErrNotEnoughLiquidity = errors.New("not enough liquidity")

// WeightedPrice 计算吃进 targetVolume 所需的深度加权均价。
// levels 必须按最优价在前排序（买入走 asks 升序，卖出走 bids 降序），
// 函数按给定顺序逐档累加，跨过目标量的那一档只计入剩余所需部分。
// targetVolume <= 0、levels 为空或总量不足时返回 ErrNotEnoughLiquidity。
// 纯函数：不修改输入，相同输入必得相同输出。
func WeightedPrice(levels []Level, targetVolume float64) (float64, error) {
	if targetVolume <= 0 || len(levels) == 0 {
		return 0, ErrNotEnoughLiquidity
	}

	var filled, value float64
	for _, lv := range levels {
		if lv.Volume <= 0 {
			continue
		}
		remaining := targetVolume - filled
		if lv.Volume >= remaining {
			value += lv.Price * remaining
			return value / targetVolume, nil
		}
		filled += lv.Volume
		value += lv.Price * lv.Volume
	}
	return 0, ErrNotEnoughLiquidity
}

// SumVolume 返回档位量之和。
func SumVolume(levels []Level) float64 {
	var total float64
	for _, lv := range levels {
		total += lv.Volume
	}
	return total
}
