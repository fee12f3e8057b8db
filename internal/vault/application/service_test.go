package application

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/stakingyield/internal/vault/domain"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// --- 内存假件 ---

type memLedger struct {
	balances map[string]decimal.Decimal
	supply   decimal.Decimal
}

func newMemLedger() *memLedger {
	return &memLedger{balances: map[string]decimal.Decimal{}, supply: decimal.Zero}
}

func (l *memLedger) balance(account string) decimal.Decimal {
	if b, ok := l.balances[account]; ok {
		return b
	}
	return decimal.Zero
}

func (l *memLedger) fund(account string, amount decimal.Decimal) {
	l.balances[account] = l.balance(account).Add(amount)
	l.supply = l.supply.Add(amount)
}

func (l *memLedger) BalanceOf(_ context.Context, account string) (decimal.Decimal, error) {
	return l.balance(account), nil
}

func (l *memLedger) TotalSupply(_ context.Context) (decimal.Decimal, error) {
	return l.supply, nil
}

func (l *memLedger) Transfer(_ context.Context, from, to string, amount decimal.Decimal) error {
	if l.balance(from).LessThan(amount) {
		return errors.New("insufficient balance")
	}
	l.balances[from] = l.balance(from).Sub(amount)
	l.balances[to] = l.balance(to).Add(amount)
	return nil
}

func (l *memLedger) TransferFrom(ctx context.Context, _, from, to string, amount decimal.Decimal) error {
	return l.Transfer(ctx, from, to, amount)
}

func (l *memLedger) Mint(_ context.Context, _, to string, amount decimal.Decimal) error {
	l.fund(to, amount)
	return nil
}

func (l *memLedger) Burn(_ context.Context, _, from string, amount decimal.Decimal) error {
	if l.balance(from).LessThan(amount) {
		return errors.New("insufficient balance")
	}
	l.balances[from] = l.balance(from).Sub(amount)
	l.supply = l.supply.Sub(amount)
	return nil
}

func (l *memLedger) snapshot() func() {
	balances := make(map[string]decimal.Decimal, len(l.balances))
	for k, v := range l.balances {
		balances[k] = v
	}
	supply := l.supply
	return func() {
		l.balances = balances
		l.supply = supply
	}
}

type memVaults struct {
	vaults map[string]*domain.VaultState
}

func (r *memVaults) Save(_ context.Context, vs *domain.VaultState) error {
	r.vaults[vs.AssetClass] = vs
	return nil
}

func (r *memVaults) Get(_ context.Context, assetClass string) (*domain.VaultState, error) {
	return r.vaults[assetClass], nil
}

func (r *memVaults) GetForUpdate(ctx context.Context, assetClass string) (*domain.VaultState, error) {
	return r.Get(ctx, assetClass)
}

type fakeSource struct {
	ledger    *memLedger
	claimable decimal.Decimal
}

func (s *fakeSource) GetClaimableAmount(_ context.Context, _ string) (decimal.Decimal, error) {
	return s.claimable, nil
}

func (s *fakeSource) Claim(_ context.Context, holder string, amount decimal.Decimal) error {
	if !s.claimable.Equal(amount) {
		return errors.New("claimable amount changed")
	}
	s.ledger.fund(holder, amount)
	s.claimable = decimal.Zero
	return nil
}

func (s *fakeSource) Accrue(_ context.Context, _, _ string, amount decimal.Decimal) error {
	s.claimable = s.claimable.Add(amount)
	return nil
}

// fakePool 模拟配对引擎：ClaimVaultYield 像引擎那样回调 PullYield
// 并把净额记入池账。
type fakePool struct {
	svc     *VaultService
	updates []decimal.Decimal
	callers []string
}

func (p *fakePool) UpdateYieldPool(_ context.Context, caller string, amount decimal.Decimal) error {
	p.callers = append(p.callers, caller)
	p.updates = append(p.updates, amount)
	return nil
}

func (p *fakePool) ClaimVaultYield(ctx context.Context) (decimal.Decimal, error) {
	net, err := p.svc.PullYield(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	if net.IsPositive() {
		p.updates = append(p.updates, net)
	}
	return net, nil
}

// rollbackTx 事务失败时把账本恢复到调用前的快照
type rollbackTx struct {
	ledger *memLedger
}

func (r rollbackTx) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	restore := r.ledger.snapshot()
	if err := fn(ctx); err != nil {
		restore()
		return err
	}
	return nil
}

type funcReceiver struct {
	fn func(ctx context.Context, initiator string, amount decimal.Decimal, data []byte) error
}

func (r *funcReceiver) OnFlashLoan(ctx context.Context, initiator string, amount decimal.Decimal, data []byte) error {
	return r.fn(ctx, initiator, amount, data)
}

// --- 测试脚手架 ---

const (
	vaultAccount = "custody:eth"
	manager      = "manager:eth"
	revenuePool  = "revenue:eth"
	vaultAdmin   = "admin"
	borrower     = "borrower"
)

type vaultFixture struct {
	svc    *VaultService
	ledger *memLedger
	source *fakeSource
	pool   *fakePool
	vaults *memVaults
}

func newBareVaultFixture(t *testing.T) *vaultFixture {
	t.Helper()
	f := &vaultFixture{
		ledger: newMemLedger(),
		vaults: &memVaults{vaults: map[string]*domain.VaultState{}},
		pool:   &fakePool{},
	}
	f.source = &fakeSource{ledger: f.ledger, claimable: decimal.Zero}
	f.svc = NewVaultService("eth", vaultAdmin, f.vaults, f.ledger, f.source, rollbackTx{ledger: f.ledger}, nil, slog.Default())
	f.svc.BindPool(f.pool)
	f.pool.svc = f.svc
	return f
}

func newVaultFixture(t *testing.T) *vaultFixture {
	t.Helper()
	f := newBareVaultFixture(t)
	require.NoError(t, f.svc.Initialize(context.Background(), InitializeCommand{
		Caller:              vaultAdmin,
		VaultAccount:        vaultAccount,
		StakeManagerAccount: manager,
		RevenuePool:         revenuePool,
	}))
	return f
}

// --- 用例 ---

func TestVaultInitializeOnce(t *testing.T) {
	f := newVaultFixture(t)
	err := f.svc.Initialize(context.Background(), InitializeCommand{
		Caller:       vaultAdmin,
		VaultAccount: vaultAccount, StakeManagerAccount: manager, RevenuePool: revenuePool,
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyInitialized)
}

func TestVaultInitializeRequiresConfiguredAdmin(t *testing.T) {
	f := newBareVaultFixture(t)
	ctx := context.Background()

	// 管理员锚定在服务配置里，抢先调用者不能自封
	err := f.svc.Initialize(ctx, InitializeCommand{
		Caller:       "mallory",
		VaultAccount: vaultAccount, StakeManagerAccount: manager, RevenuePool: revenuePool,
	})
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	require.NoError(t, f.svc.Initialize(ctx, InitializeCommand{
		Caller:       vaultAdmin,
		VaultAccount: vaultAccount, StakeManagerAccount: manager, RevenuePool: revenuePool,
	}))
	vs, err := f.vaults.Get(ctx, "eth")
	require.NoError(t, err)
	assert.Equal(t, vaultAdmin, vs.Admin)
}

func TestClaimExternalYieldZeroIsNoop(t *testing.T) {
	f := newVaultFixture(t)
	net, err := f.svc.ClaimExternalYield(context.Background())
	require.NoError(t, err)
	assert.True(t, net.IsZero())
	assert.Empty(t, f.pool.updates)
	assert.True(t, f.ledger.balance(revenuePool).IsZero())
}

func TestClaimExternalYieldSplitsFee(t *testing.T) {
	f := newVaultFixture(t)
	ctx := context.Background()

	// 2.5% 协议费
	require.NoError(t, f.svc.SetProtocolFeeRate(ctx, SetProtocolFeeRateCommand{Caller: vaultAdmin, Rate: 250}))
	f.source.claimable = dec("1000")

	net, err := f.svc.ClaimExternalYield(ctx)
	require.NoError(t, err)
	assert.True(t, net.Equal(dec("975")))
	assert.True(t, f.ledger.balance(revenuePool).Equal(dec("25")))

	// 领取委托给配对引擎执行，净额入池
	require.Len(t, f.pool.updates, 1)
	assert.True(t, f.pool.updates[0].Equal(dec("975")))

	// 重复领取幂等
	net, err = f.svc.ClaimExternalYield(ctx)
	require.NoError(t, err)
	assert.True(t, net.IsZero())
	require.Len(t, f.pool.updates, 1)
}

func TestPullYieldDoesNotTouchPool(t *testing.T) {
	f := newVaultFixture(t)
	f.source.claimable = dec("100")

	net, err := f.svc.PullYield(context.Background())
	require.NoError(t, err)
	assert.True(t, net.Equal(dec("100")))
	// 入池由引擎在自己的事务里完成
	assert.Empty(t, f.pool.updates)
	assert.True(t, f.ledger.balance(manager).Equal(dec("100")))
}

func TestFlashLoanSuccess(t *testing.T) {
	f := newVaultFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.SetFlashLoanFee(ctx, SetFlashLoanFeeCommand{
		Caller: vaultAdmin, ProviderRate: 100, ProtocolRate: 50,
	}))
	f.ledger.fund(vaultAccount, dec("1000"))
	f.ledger.fund(borrower, dec("20"))

	err := f.svc.FlashLoan(ctx, FlashLoanCommand{
		Initiator:       borrower,
		ReceiverAccount: borrower,
		Amount:          dec("1000"),
	}, &funcReceiver{fn: func(ctx context.Context, initiator string, amount decimal.Decimal, _ []byte) error {
		// 借款方在回调内归还本金加费用 10 + 5
		return f.ledger.Transfer(ctx, borrower, vaultAccount, amount.Add(dec("15")))
	}})
	require.NoError(t, err)

	assert.True(t, f.ledger.balance(vaultAccount).Equal(dec("1000")))
	assert.True(t, f.ledger.balance(manager).Equal(dec("10")))
	assert.True(t, f.ledger.balance(revenuePool).Equal(dec("5")))
	assert.True(t, f.ledger.balance(borrower).Equal(dec("5")))
	// provider 费入池
	require.Len(t, f.pool.updates, 1)
	assert.True(t, f.pool.updates[0].Equal(dec("10")))
	assert.Equal(t, vaultAccount, f.pool.callers[0])
}

func TestFlashLoanExactFeeBoundary(t *testing.T) {
	f := newVaultFixture(t)
	ctx := context.Background()

	// 1000 按 100/50 基点计费：provider 10 + protocol 5 = 15
	require.NoError(t, f.svc.SetFlashLoanFee(ctx, SetFlashLoanFeeCommand{
		Caller: vaultAdmin, ProviderRate: 100, ProtocolRate: 50,
	}))
	f.ledger.fund(vaultAccount, dec("1000"))
	f.ledger.fund(borrower, dec("15"))

	// 差一个最小单位也算未还清，整笔回滚
	err := f.svc.FlashLoan(ctx, FlashLoanCommand{
		Initiator:       borrower,
		ReceiverAccount: borrower,
		Amount:          dec("1000"),
	}, &funcReceiver{fn: func(ctx context.Context, _ string, amount decimal.Decimal, _ []byte) error {
		return f.ledger.Transfer(ctx, borrower, vaultAccount, amount.Add(dec("14")))
	}})
	assert.ErrorIs(t, err, domain.ErrFlashLoanRepayFailed)
	assert.True(t, f.ledger.balance(vaultAccount).Equal(dec("1000")))
	assert.True(t, f.ledger.balance(borrower).Equal(dec("15")))
	assert.Empty(t, f.pool.updates)

	// 刚好还到 本金+15 则成功
	err = f.svc.FlashLoan(ctx, FlashLoanCommand{
		Initiator:       borrower,
		ReceiverAccount: borrower,
		Amount:          dec("1000"),
	}, &funcReceiver{fn: func(ctx context.Context, _ string, amount decimal.Decimal, _ []byte) error {
		return f.ledger.Transfer(ctx, borrower, vaultAccount, amount.Add(dec("15")))
	}})
	require.NoError(t, err)
	assert.True(t, f.ledger.balance(vaultAccount).Equal(dec("1000")))
	assert.True(t, f.ledger.balance(manager).Equal(dec("10")))
	assert.True(t, f.ledger.balance(revenuePool).Equal(dec("5")))
}

func TestFlashLoanUnderRepayRollsBack(t *testing.T) {
	f := newVaultFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.SetFlashLoanFee(ctx, SetFlashLoanFeeCommand{
		Caller: vaultAdmin, ProviderRate: 100, ProtocolRate: 50,
	}))
	f.ledger.fund(vaultAccount, dec("1000"))

	err := f.svc.FlashLoan(ctx, FlashLoanCommand{
		Initiator:       borrower,
		ReceiverAccount: borrower,
		Amount:          dec("1000"),
	}, &funcReceiver{fn: func(ctx context.Context, _ string, amount decimal.Decimal, _ []byte) error {
		// 只还本金，不付费用
		return f.ledger.Transfer(ctx, borrower, vaultAccount, amount)
	}})
	assert.ErrorIs(t, err, domain.ErrFlashLoanRepayFailed)

	// 整笔操作回滚，转出也被撤销
	assert.True(t, f.ledger.balance(vaultAccount).Equal(dec("1000")))
	assert.True(t, f.ledger.balance(borrower).IsZero())
	assert.Empty(t, f.pool.updates)
}

func TestFlashLoanCallbackFailureRollsBack(t *testing.T) {
	f := newVaultFixture(t)
	f.ledger.fund(vaultAccount, dec("1000"))

	callbackErr := errors.New("strategy reverted")
	err := f.svc.FlashLoan(context.Background(), FlashLoanCommand{
		Initiator:       borrower,
		ReceiverAccount: borrower,
		Amount:          dec("400"),
	}, &funcReceiver{fn: func(context.Context, string, decimal.Decimal, []byte) error {
		return callbackErr
	}})
	assert.ErrorIs(t, err, callbackErr)
	assert.True(t, f.ledger.balance(vaultAccount).Equal(dec("1000")))
}

func TestFlashLoanReentrancyGuard(t *testing.T) {
	f := newVaultFixture(t)
	ctx := context.Background()
	f.ledger.fund(vaultAccount, dec("1000"))

	err := f.svc.FlashLoan(ctx, FlashLoanCommand{
		Initiator:       borrower,
		ReceiverAccount: borrower,
		Amount:          dec("100"),
	}, &funcReceiver{fn: func(ctx context.Context, _ string, amount decimal.Decimal, _ []byte) error {
		// 回调窗口内金库上的任何变更调用都被拒绝
		inner := f.svc.FlashLoan(ctx, FlashLoanCommand{
			Initiator: borrower, ReceiverAccount: borrower, Amount: dec("1"),
		}, &funcReceiver{fn: func(context.Context, string, decimal.Decimal, []byte) error { return nil }})
		assert.ErrorIs(t, inner, domain.ErrReentrantCall)

		_, inner = f.svc.ClaimExternalYield(ctx)
		assert.ErrorIs(t, inner, domain.ErrReentrantCall)

		inner = f.svc.SetProtocolFeeRate(ctx, SetProtocolFeeRateCommand{Caller: vaultAdmin, Rate: 1})
		assert.ErrorIs(t, inner, domain.ErrReentrantCall)

		return f.ledger.Transfer(ctx, borrower, vaultAccount, amount)
	}})
	require.NoError(t, err)

	// 守卫释放后恢复正常
	_, err = f.svc.ClaimExternalYield(ctx)
	assert.NoError(t, err)
}

func TestFlashLoanZeroGates(t *testing.T) {
	f := newVaultFixture(t)
	ctx := context.Background()
	recv := &funcReceiver{fn: func(context.Context, string, decimal.Decimal, []byte) error { return nil }}

	err := f.svc.FlashLoan(ctx, FlashLoanCommand{Initiator: borrower, ReceiverAccount: borrower, Amount: decimal.Zero}, recv)
	assert.ErrorIs(t, err, domain.ErrZeroInput)

	err = f.svc.FlashLoan(ctx, FlashLoanCommand{Initiator: borrower, ReceiverAccount: "", Amount: dec("1")}, recv)
	assert.ErrorIs(t, err, domain.ErrZeroInput)

	err = f.svc.FlashLoan(ctx, FlashLoanCommand{Initiator: borrower, ReceiverAccount: borrower, Amount: dec("1")}, nil)
	assert.ErrorIs(t, err, domain.ErrZeroInput)
}

func TestSetFlashLoanFeeBounds(t *testing.T) {
	f := newVaultFixture(t)
	ctx := context.Background()

	err := f.svc.SetFlashLoanFee(ctx, SetFlashLoanFeeCommand{Caller: vaultAdmin, ProviderRate: 9000, ProtocolRate: 2000})
	assert.ErrorIs(t, err, domain.ErrFeeRateOverflow)

	err = f.svc.SetFlashLoanFee(ctx, SetFlashLoanFeeCommand{Caller: "mallory", ProviderRate: 1, ProtocolRate: 1})
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	require.NoError(t, f.svc.SetFlashLoanFee(ctx, SetFlashLoanFeeCommand{Caller: vaultAdmin, ProviderRate: 5000, ProtocolRate: 5000}))
}

func TestRecordAccrualRequiresAdmin(t *testing.T) {
	f := newVaultFixture(t)
	ctx := context.Background()

	err := f.svc.RecordAccrual(ctx, RecordAccrualCommand{
		Caller: "mallory", Holder: vaultAccount, Source: "validator", Amount: dec("100"),
	})
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	assert.True(t, f.source.claimable.IsZero())

	require.NoError(t, f.svc.RecordAccrual(ctx, RecordAccrualCommand{
		Caller: vaultAdmin, Holder: vaultAccount, Source: "validator", Amount: dec("100"),
	}))
	assert.True(t, f.source.claimable.Equal(dec("100")))

	// 登记后的应计可被正常领取
	net, err := f.svc.ClaimExternalYield(ctx)
	require.NoError(t, err)
	assert.True(t, net.Equal(dec("100")))
}

func TestRecordAccrualZeroGates(t *testing.T) {
	f := newVaultFixture(t)
	ctx := context.Background()

	err := f.svc.RecordAccrual(ctx, RecordAccrualCommand{Caller: vaultAdmin, Holder: "", Amount: dec("1")})
	assert.ErrorIs(t, err, domain.ErrZeroInput)

	err = f.svc.RecordAccrual(ctx, RecordAccrualCommand{Caller: vaultAdmin, Holder: vaultAccount, Amount: decimal.Zero})
	assert.ErrorIs(t, err, domain.ErrZeroInput)
}
