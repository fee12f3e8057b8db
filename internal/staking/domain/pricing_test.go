package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestCheckAmount(t *testing.T) {
	assert.NoError(t, CheckAmount(decimal.Zero))
	assert.NoError(t, CheckAmount(dec("1")))
	// 2^96 - 1 为上界
	assert.NoError(t, CheckAmount(dec("79228162514264337593543950335")))
	assert.ErrorIs(t, CheckAmount(dec("79228162514264337593543950336")), ErrAmountOverflow)
	assert.ErrorIs(t, CheckAmount(dec("-1")), ErrAmountOverflow)
	assert.ErrorIs(t, CheckAmount(dec("1.5")), ErrAmountOverflow)
}

func TestCheckDeadline(t *testing.T) {
	assert.NoError(t, CheckDeadline(0))
	assert.NoError(t, CheckDeadline(1756425600))
	assert.ErrorIs(t, CheckDeadline(-1), ErrDeadlineOverflow)
}

func TestMulDivFloor(t *testing.T) {
	// 7*3/2 = 10.5 -> 10
	assert.True(t, MulDivFloor(dec("7"), dec("3"), dec("2")).Equal(dec("10")))
	// 整除
	assert.True(t, MulDivFloor(dec("6"), dec("3"), dec("2")).Equal(dec("9")))
	// 除数为零返回零
	assert.True(t, MulDivFloor(dec("7"), dec("3"), decimal.Zero).IsZero())
	// 大数不丢精度
	got := MulDivFloor(dec("79228162514264337593543950335"), dec("3"), dec("7"))
	assert.True(t, got.Equal(dec("33954926791827573254375978715")))
}

func TestPriceDeposit(t *testing.T) {
	// 空池首笔 1:1
	assert.True(t, PriceDeposit(dec("1000"), decimal.Zero, decimal.Zero).Equal(dec("1000")))
	// 份额已有，余额为零时按 1 处理
	assert.True(t, PriceDeposit(dec("10"), dec("5"), decimal.Zero).Equal(dec("50")))
	// 常规比价向下截断：100 * 7 / 3 = 233.33 -> 233
	assert.True(t, PriceDeposit(dec("100"), dec("7"), dec("3")).Equal(dec("233")))
	// 池增值后同额入金铸出更少份额
	assert.True(t, PriceDeposit(dec("100"), dec("100"), dec("200")).Equal(dec("50")))
}

func TestYieldCredit(t *testing.T) {
	// 最小质押额 1e16 锁 30 天 -> 3e17 凭证
	assert.True(t, YieldCredit(dec("10000000000000000"), 30).Equal(dec("300000000000000000")))
	assert.True(t, YieldCredit(dec("5"), 0).IsZero())
}

func TestPriceYield(t *testing.T) {
	// 100 凭证，池 55，总发行 300 -> floor(100*55/300) = 18
	assert.True(t, PriceYield(dec("100"), dec("55"), dec("300")).Equal(dec("18")))
	// 发行量为零返回零
	assert.True(t, PriceYield(dec("100"), dec("55"), decimal.Zero).IsZero())
}

func TestBasisPointFee(t *testing.T) {
	assert.True(t, BasisPointFee(dec("10000"), 25).Equal(dec("25")))
	// 截断偏向协议外
	assert.True(t, BasisPointFee(dec("399"), 25).IsZero())
	assert.True(t, BasisPointFee(dec("10000"), 0).IsZero())
	assert.True(t, BasisPointFee(dec("10000"), MaxBasisPoints).Equal(dec("10000")))
}

func TestFeeNeverExceedsAmount(t *testing.T) {
	for _, amount := range []string{"1", "9999", "10000000000000000"} {
		fee := BasisPointFee(dec(amount), MaxBasisPoints)
		require.True(t, fee.LessThanOrEqual(dec(amount)))
	}
}
