package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPosition(t *testing.T, deadline int64) *Position {
	t.Helper()
	p, err := NewPosition(1, "eth", "alice", dec("1000"), dec("1000"), deadline)
	require.NoError(t, err)
	return p
}

func TestNewPositionValidation(t *testing.T) {
	_, err := NewPosition(1, "eth", "alice", dec("-1"), dec("1"), 100)
	assert.ErrorIs(t, err, ErrAmountOverflow)

	_, err = NewPosition(1, "eth", "alice", dec("1"), dec("79228162514264337593543950336"), 100)
	assert.ErrorIs(t, err, ErrAmountOverflow)

	_, err = NewPosition(1, "eth", "alice", dec("1"), dec("1"), -1)
	assert.ErrorIs(t, err, ErrDeadlineOverflow)
}

func TestPositionClose(t *testing.T) {
	deadline := int64(1000 * SecondsPerDay)
	p := newTestPosition(t, deadline)

	// 未到期不能关闭
	err := p.Close(time.Unix(deadline-1, 0))
	assert.ErrorIs(t, err, ErrNotReachedDeadline)
	assert.False(t, p.Closed)

	// 到期当刻可以关闭
	require.NoError(t, p.Close(time.Unix(deadline, 0)))
	assert.True(t, p.Closed)

	// 只能关闭一次
	err = p.Close(time.Unix(deadline+1, 0))
	assert.ErrorIs(t, err, ErrPositionClosed)
}

func TestPositionExtendDeadline(t *testing.T) {
	now := time.Unix(100*SecondsPerDay, 0)
	deadline := now.Unix() + 30*SecondsPerDay
	p := newTestPosition(t, deadline)

	// 延长 30 天：剩余 60 天，区间 [7, 365] 内
	newDeadline, err := p.ExtendDeadline(now, 30, 7, 365)
	require.NoError(t, err)
	assert.Equal(t, deadline+30*SecondsPerDay, newDeadline)
	assert.Equal(t, newDeadline, p.Deadline)

	// 超出上界
	_, err = p.ExtendDeadline(now, 1000, 7, 365)
	assert.ErrorIs(t, err, ErrInvalidExtendDays)

	// 已到期的仓位不能延长
	expired := newTestPosition(t, now.Unix())
	_, err = expired.ExtendDeadline(now, 30, 7, 365)
	assert.ErrorIs(t, err, ErrReachedDeadline)

	// 已关闭的仓位不能延长
	closed := newTestPosition(t, now.Unix())
	require.NoError(t, closed.Close(now))
	_, err = closed.ExtendDeadline(now, 30, 7, 365)
	assert.ErrorIs(t, err, ErrPositionClosed)
}

func TestPoolStateInitialize(t *testing.T) {
	pool := NewPoolState("eth")
	require.NoError(t, pool.Initialize("admin", "custody:eth", "vault:eth", 7, 365))
	assert.True(t, pool.Initialized)

	// 重复初始化失败
	err := pool.Initialize("admin", "custody:eth", "vault:eth", 7, 365)
	assert.ErrorIs(t, err, ErrAlreadyInitialized)

	// 非法区间
	bad := NewPoolState("stable")
	assert.ErrorIs(t, bad.Initialize("admin", "c", "v", 0, 10), ErrInvalidLockupDays)
	assert.ErrorIs(t, bad.Initialize("admin", "c", "v", 10, 5), ErrInvalidLockupDays)
}

func TestPoolStateLockupBounds(t *testing.T) {
	pool := NewPoolState("eth")
	require.NoError(t, pool.Initialize("admin", "c", "v", 7, 365))

	assert.NoError(t, pool.ValidateLockupDays(7))
	assert.NoError(t, pool.ValidateLockupDays(365))
	assert.ErrorIs(t, pool.ValidateLockupDays(6), ErrInvalidLockupDays)
	assert.ErrorIs(t, pool.ValidateLockupDays(366), ErrInvalidLockupDays)

	require.NoError(t, pool.SetMinLockupDays(30))
	assert.ErrorIs(t, pool.SetMinLockupDays(0), ErrInvalidLockupDays)
	assert.ErrorIs(t, pool.SetMinLockupDays(400), ErrInvalidLockupDays)
	assert.ErrorIs(t, pool.SetMaxLockupDays(29), ErrInvalidLockupDays)
	require.NoError(t, pool.SetMaxLockupDays(180))
}

func TestPoolStateYieldAccounting(t *testing.T) {
	pool := NewPoolState("eth")
	require.NoError(t, pool.Initialize("admin", "c", "v", 7, 365))

	pool.CreditYield(dec("100"))
	assert.True(t, pool.TotalYieldPool.Equal(dec("100")))

	// 池余额不会被扣成负数
	assert.ErrorIs(t, pool.DebitYield(dec("101")), ErrYieldPoolUnderflow)
	require.NoError(t, pool.DebitYield(dec("100")))
	assert.True(t, pool.TotalYieldPool.IsZero())
}

func TestPoolStateAdmin(t *testing.T) {
	pool := NewPoolState("eth")
	require.NoError(t, pool.Initialize("admin", "c", "v", 7, 365))

	assert.NoError(t, pool.RequireAdmin("admin"))
	assert.ErrorIs(t, pool.RequireAdmin("mallory"), ErrPermissionDenied)
	assert.ErrorIs(t, pool.RequireAdmin(""), ErrPermissionDenied)

	assert.ErrorIs(t, pool.SetForceUnstakeFee(10001), ErrForceUnstakeFeeOverflow)
	assert.NoError(t, pool.SetForceUnstakeFee(10000))
}
