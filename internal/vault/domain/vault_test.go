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

func newInitializedVault(t *testing.T) *VaultState {
	t.Helper()
	vs := NewVaultState("eth")
	require.NoError(t, vs.Initialize("admin", "custody:eth", "manager:eth", "revenue:eth"))
	return vs
}

func TestVaultInitializeOnce(t *testing.T) {
	vs := newInitializedVault(t)
	assert.ErrorIs(t, vs.Initialize("admin", "c", "m", "r"), ErrAlreadyInitialized)
}

func TestSplitClaim(t *testing.T) {
	vs := newInitializedVault(t)
	require.NoError(t, vs.SetProtocolFeeRate(250))

	fee, net := vs.SplitClaim(dec("1000"))
	assert.True(t, fee.Equal(dec("25")))
	assert.True(t, net.Equal(dec("975")))

	// 费用向零截断：fee + net 总等于 claimed
	fee, net = vs.SplitClaim(dec("39"))
	assert.True(t, fee.IsZero())
	assert.True(t, net.Equal(dec("39")))
}

func TestFlashLoanFees(t *testing.T) {
	vs := newInitializedVault(t)
	require.NoError(t, vs.SetFlashLoanFeeRates(100, 50))

	providerFee, protocolFee := vs.FlashLoanFees(dec("1000"))
	assert.True(t, providerFee.Equal(dec("10")))
	assert.True(t, protocolFee.Equal(dec("5")))

	// 小额截断为零
	providerFee, protocolFee = vs.FlashLoanFees(dec("99"))
	assert.True(t, providerFee.IsZero())
	assert.True(t, protocolFee.IsZero())
}

func TestFeeRateBounds(t *testing.T) {
	vs := newInitializedVault(t)

	assert.ErrorIs(t, vs.SetProtocolFeeRate(10001), ErrFeeRateOverflow)
	assert.NoError(t, vs.SetProtocolFeeRate(10000))

	assert.ErrorIs(t, vs.SetFlashLoanFeeRates(10001, 0), ErrFeeRateOverflow)
	assert.ErrorIs(t, vs.SetFlashLoanFeeRates(0, 10001), ErrFeeRateOverflow)
	// 两项单独合法但相加超限
	assert.ErrorIs(t, vs.SetFlashLoanFeeRates(6000, 5000), ErrFeeRateOverflow)
	assert.NoError(t, vs.SetFlashLoanFeeRates(5000, 5000))
}

func TestRequireAdmin(t *testing.T) {
	vs := newInitializedVault(t)
	assert.NoError(t, vs.RequireAdmin("admin"))
	assert.ErrorIs(t, vs.RequireAdmin(""), ErrPermissionDenied)
	assert.ErrorIs(t, vs.RequireAdmin("mallory"), ErrPermissionDenied)
}
