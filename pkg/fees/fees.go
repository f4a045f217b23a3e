// Package fees 网关手续费的净额/毛额换算
//
// 净额（NetAmount）是机构实际要收到的金额，毛额（GrossAmount）是付款人被扣的金额。
// 两者是不同的类型，不允许直接比较或相加，只能通过 Converter 互相换算，
// 避免在调用点把两种口径的金额混在一起。
package fees

import (
	"github.com/shopspring/decimal"
)

// 货币最小单位精度（两位小数）
const scale = 2

// NetAmount 净额，机构侧台账永远只记净额
type NetAmount struct {
	value decimal.Decimal
}

// GrossAmount 毛额，只在对外请求和网关通知中出现
type GrossAmount struct {
	value decimal.Decimal
}

// NewNet 构造净额，截断到两位小数
func NewNet(d decimal.Decimal) NetAmount {
	return NetAmount{value: d.Truncate(scale)}
}

// NewNetFromString 从字符串构造净额
func NewNetFromString(s string) (NetAmount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return NetAmount{}, err
	}
	return NewNet(d), nil
}

// NewGross 构造毛额，截断到两位小数
func NewGross(d decimal.Decimal) GrossAmount {
	return GrossAmount{value: d.Truncate(scale)}
}

// NewGrossFromString 从字符串构造毛额
func NewGrossFromString(s string) (GrossAmount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return GrossAmount{}, err
	}
	return NewGross(d), nil
}

// Decimal 返回净额数值
func (n NetAmount) Decimal() decimal.Decimal {
	return n.value
}

// String 两位小数定点格式，如 "1000.00"
func (n NetAmount) String() string {
	return n.value.StringFixed(scale)
}

// Equal 净额相等比较
func (n NetAmount) Equal(other NetAmount) bool {
	return n.value.Equal(other.value)
}

// IsValid 净额必须大于 0
func (n NetAmount) IsValid() bool {
	return n.value.IsPositive()
}

// Decimal 返回毛额数值
func (g GrossAmount) Decimal() decimal.Decimal {
	return g.value
}

// String 两位小数定点格式，网关签名用的就是这个格式
func (g GrossAmount) String() string {
	return g.value.StringFixed(scale)
}

// Converter 手续费换算器
// Percent 是网关按比例收取的费率（如 0.033），Fixed 是每笔固定费用（可为 0）。
type Converter struct {
	Percent decimal.Decimal
	Fixed   decimal.Decimal
}

// NewConverter 创建换算器
func NewConverter(percent, fixed decimal.Decimal) Converter {
	return Converter{Percent: percent, Fixed: fixed}
}

// NewConverterFromFloat 从配置读出的浮点值创建换算器
func NewConverterFromFloat(percent, fixed float64) Converter {
	return Converter{
		Percent: decimal.NewFromFloat(percent),
		Fixed:   decimal.NewFromFloat(fixed),
	}
}

// GrossFromNet 净额换毛额：(net + fixed) / (1 - percent)
// 截断到两位小数。注意必须截断而不是四舍五入，
// 否则回调时 NetFromGross 会多出一分钱导致金额比对失败。
func (c Converter) GrossFromNet(n NetAmount) GrossAmount {
	one := decimal.NewFromInt(1)
	gross := n.value.Add(c.Fixed).Div(one.Sub(c.Percent))
	return GrossAmount{value: gross.Truncate(scale)}
}

// NetFromGross 毛额换净额，是 GrossFromNet 的精确逆运算：
// gross * (1 - percent) - fixed，向上取整到两位小数。
// 毛额在 GrossFromNet 里被向下截断过，截断丢掉的尾数经 (1-percent)
// 缩放后严格小于一分钱，向上取整恰好把它补回来，
// 因此任何由 GrossFromNet 产生的毛额都能换回发起时的净额。
// 两个方向都截断的话每笔都会差出一分钱，回调金额比对永远不过。
func (c Converter) NetFromGross(g GrossAmount) NetAmount {
	one := decimal.NewFromInt(1)
	net := g.value.Mul(one.Sub(c.Percent)).Sub(c.Fixed)
	return NetAmount{value: net.RoundCeil(scale)}
}
