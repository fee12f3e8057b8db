package domain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// 字段位宽上限，兼容原有存储布局：金额 96 位，截止时间 56 位
var (
	maxUint96 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 96), big.NewInt(1))
	maxUint56 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 56), big.NewInt(1))
)

// CheckAmount 金额必须是非负整数且不超过 96 位
func CheckAmount(d decimal.Decimal) error {
	if !d.IsInteger() || d.IsNegative() {
		return ErrAmountOverflow
	}
	if d.BigInt().Cmp(maxUint96) > 0 {
		return ErrAmountOverflow
	}
	return nil
}

// CheckDeadline 截止时间必须是非负且不超过 56 位的 Unix 秒
func CheckDeadline(deadline int64) error {
	if deadline < 0 || big.NewInt(deadline).Cmp(maxUint56) > 0 {
		return ErrDeadlineOverflow
	}
	return nil
}

// MulDivFloor 计算 a*b/c，向零截断。
// 定价全部走这条路径：取整永远偏向资金池，兼容性要求不得改为四舍五入。
func MulDivFloor(a, b, c decimal.Decimal) decimal.Decimal {
	if c.IsZero() {
		return decimal.Zero
	}
	num := new(big.Int).Mul(a.BigInt(), b.BigInt())
	q := new(big.Int).Quo(num, c.BigInt())
	return decimal.NewFromBigInt(q, 0)
}

// PriceDeposit 即时比价：shareAmount = deposit * S / B。
// S 为份额币总供应量，B 为托管账户的底层资产余额，两者每次调用现读。
// 任一为零时按 1 处理，既避免除零，也让首笔质押以 1:1 起步。
func PriceDeposit(deposit, shareSupply, pooledBalance decimal.Decimal) decimal.Decimal {
	s := shareSupply
	b := pooledBalance
	if s.IsZero() {
		s = decimal.NewFromInt(1)
	}
	if b.IsZero() {
		b = decimal.NewFromInt(1)
	}
	return MulDivFloor(deposit, s, b)
}

// YieldCredit 按金额和锁定天数加权发放收益凭证
func YieldCredit(amount decimal.Decimal, lockupDays uint32) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(int64(lockupDays)))
}

// PriceYield 收益凭证兑付：paid = credit * totalYieldPool / creditSupply，向零截断
func PriceYield(credit, totalYieldPool, creditSupply decimal.Decimal) decimal.Decimal {
	return MulDivFloor(credit, totalYieldPool, creditSupply)
}

// BasisPointFee 基点费用，向零截断
func BasisPointFee(amount decimal.Decimal, rate uint32) decimal.Decimal {
	return MulDivFloor(amount, decimal.NewFromInt(int64(rate)), decimal.NewFromInt(MaxBasisPoints))
}

// MaxBasisPoints 费率上限（万分之一万 = 100%）
const MaxBasisPoints = 10000
