package fees

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 净额 1000.00、费率 3.3% 的标准场景：
// 付款人被扣 1034.12，回调按同一规则换回净额后必须严格等于 1000.00。
func TestConverter_StandardScenario(t *testing.T) {
	conv := NewConverterFromFloat(0.033, 0)

	net, err := NewNetFromString("1000.00")
	require.NoError(t, err)

	gross := conv.GrossFromNet(net)
	assert.Equal(t, "1034.12", gross.String())

	back := conv.NetFromGross(gross)
	assert.Equal(t, "1000.00", back.String())
	assert.True(t, back.Equal(net))
}

// 截断规则：1000/0.967 = 1034.126...，四舍五入会得到 1034.13，
// 那样回调侧换算出的净额是 1000.01，金额比对会失败。
func TestConverter_TruncatesTowardZero(t *testing.T) {
	conv := NewConverterFromFloat(0.033, 0)

	net, _ := NewNetFromString("1000.00")
	gross := conv.GrossFromNet(net)

	assert.NotEqual(t, "1034.13", gross.String())
	assert.Equal(t, "1034.12", gross.String())
}

// 往返性质：任意净额 n ≥ 0、费率 f ∈ [0, 0.5)、固定费用 c ≥ 0，
// NetFromGross(GrossFromNet(n)) 必须严格等于 n。
// 毛额截断丢掉的尾数由逆向换算的向上取整补回，不允许任何偏差。
func TestConverter_RoundTripExact(t *testing.T) {
	nets := []string{"0.01", "1.00", "19.99", "250.50", "999.99", "1000.00", "5000.00", "123456.78"}
	percents := []float64{0, 0.01, 0.029, 0.033, 0.05, 0.15, 0.29, 0.499}
	fixedFees := []float64{0, 0.30, 15, 30}

	for _, ns := range nets {
		for _, p := range percents {
			for _, fixed := range fixedFees {
				conv := NewConverterFromFloat(p, fixed)

				net, err := NewNetFromString(ns)
				require.NoError(t, err)

				back := conv.NetFromGross(conv.GrossFromNet(net))
				assert.True(t, back.Equal(net),
					"net=%s percent=%v fixed=%v roundtrip=%s", ns, p, fixed, back.String())
			}
		}
	}
}

// 比例费率与固定费用同时生效：1000 + 30 再按 3.3% 放大，
// 毛额 1065.14 截断后换回净额仍是 1000.00 整
func TestConverter_PercentWithFixedFee(t *testing.T) {
	conv := NewConverterFromFloat(0.033, 30)

	net, err := NewNetFromString("1000.00")
	require.NoError(t, err)

	gross := conv.GrossFromNet(net)
	assert.Equal(t, "1065.14", gross.String())

	back := conv.NetFromGross(gross)
	assert.True(t, back.Equal(net), "roundtrip=%s", back.String())
}

// 固定费用参与换算：(net + fixed) / (1 - percent)
func TestConverter_FixedFee(t *testing.T) {
	conv := NewConverterFromFloat(0, 30)

	net, _ := NewNetFromString("1000.00")
	gross := conv.GrossFromNet(net)
	assert.Equal(t, "1030.00", gross.String())

	back := conv.NetFromGross(gross)
	assert.Equal(t, "1000.00", back.String())
}

// 零费率时净额与毛额数值一致
func TestConverter_ZeroFee(t *testing.T) {
	conv := NewConverterFromFloat(0, 0)

	net, _ := NewNetFromString("123.45")
	gross := conv.GrossFromNet(net)
	assert.Equal(t, "123.45", gross.String())
}

func TestNewNetFromString_Invalid(t *testing.T) {
	_, err := NewNetFromString("not-a-number")
	assert.Error(t, err)
}

func TestNetAmount_IsValid(t *testing.T) {
	zero := NewNet(decimal.Zero)
	assert.False(t, zero.IsValid())

	negative := NewNet(decimal.NewFromInt(-5))
	assert.False(t, negative.IsValid())

	positive := NewNet(decimal.NewFromFloat(0.01))
	assert.True(t, positive.IsValid())
}
