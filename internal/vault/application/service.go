// Package application 收益金库应用层
package application

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/messagequeue"

	stakingdomain "github.com/wyfcoding/stakingyield/internal/staking/domain"
	"github.com/wyfcoding/stakingyield/internal/vault/domain"
)

// YieldPool 配对质押池接口，构造后绑定。
// ClaimVaultYield 由引擎先拿自己的互斥锁再回调金库拉取，
// 保证领取与兑付两条路径的加锁顺序一致。
type YieldPool interface {
	UpdateYieldPool(ctx context.Context, caller string, amount decimal.Decimal) error
	ClaimVaultYield(ctx context.Context) (decimal.Decimal, error)
}

// AccrualRecorder 可登记应计条目的收益来源
type AccrualRecorder interface {
	Accrue(ctx context.Context, holder, source string, amount decimal.Decimal) error
}

// FlashLoanReceiver 闪电贷回调。回调同步执行，返回前必须把
// 本金加费用归还到金库账户，否则整笔操作回滚。
type FlashLoanReceiver interface {
	OnFlashLoan(ctx context.Context, initiator string, amount decimal.Decimal, data []byte) error
}

// VaultService 收益金库。claim 把外部增值收益领入托管账户、
// 扣协议费后上缴配对质押池；flashLoan 以池内资金放同块贷款。
type VaultService struct {
	assetClass string
	admin      string
	vaults     domain.VaultStateRepository
	base       stakingdomain.FungibleLedger
	source     stakingdomain.YieldSource
	pool       YieldPool
	tx         stakingdomain.Transactor
	publisher  messagequeue.EventPublisher
	logger     *slog.Logger

	// 闪电贷单飞守卫：回调窗口期内拒绝金库上的任何其他变更调用
	inFlight atomic.Bool
	now      func() time.Time
}

// NewVaultService 创建金库实例
func NewVaultService(
	assetClass string,
	admin string,
	vaults domain.VaultStateRepository,
	base stakingdomain.FungibleLedger,
	source stakingdomain.YieldSource,
	tx stakingdomain.Transactor,
	publisher messagequeue.EventPublisher,
	logger *slog.Logger,
) *VaultService {
	return &VaultService{
		assetClass: assetClass,
		admin:      admin,
		vaults:     vaults,
		base:       base,
		source:     source,
		tx:         tx,
		publisher:  publisher,
		logger:     logger.With("module", "yield_vault", "asset_class", assetClass),
		now:        time.Now,
	}
}

// BindPool 绑定配对质押池
func (v *VaultService) BindPool(pool YieldPool) {
	v.pool = pool
}

// InitializeCommand 初始化命令
type InitializeCommand struct {
	Caller              string
	VaultAccount        string
	StakeManagerAccount string
	RevenuePool         string
}

// Initialize 一次性初始化，重复调用失败。
// 管理员身份锚定在服务配置里，与引擎一致，不由请求方自报。
func (v *VaultService) Initialize(ctx context.Context, cmd InitializeCommand) error {
	if v.inFlight.Load() {
		return domain.ErrReentrantCall
	}
	if cmd.Caller != v.admin {
		return domain.ErrPermissionDenied
	}
	return v.tx.Transaction(ctx, func(ctx context.Context) error {
		vs, err := v.vaults.GetForUpdate(ctx, v.assetClass)
		if err != nil {
			return err
		}
		if vs == nil {
			vs = domain.NewVaultState(v.assetClass)
		}
		if err := vs.Initialize(v.admin, cmd.VaultAccount, cmd.StakeManagerAccount, cmd.RevenuePool); err != nil {
			return err
		}
		return v.vaults.Save(ctx, vs)
	})
}

// ClaimExternalYield 领取外部增值收益并分账。没有新增收益时
// 不做任何转账，返回零，重复调用幂等。
// 实际执行委托给配对引擎：引擎先拿互斥锁再回调 PullYield 并入池，
// 金库行锁永远在引擎锁之后获取，与兑付路径的顺序一致。
func (v *VaultService) ClaimExternalYield(ctx context.Context) (decimal.Decimal, error) {
	if v.inFlight.Load() {
		return decimal.Zero, domain.ErrReentrantCall
	}

	net, err := v.pool.ClaimVaultYield(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	if net.IsPositive() {
		v.logger.InfoContext(ctx, "external yield claimed", "net", net)
	}
	return net, nil
}

// PullYield 引擎侧拉取：在引擎自己的事务与串行化之内执行分账，
// 入池记账由引擎完成，这里只返回净额。
func (v *VaultService) PullYield(ctx context.Context) (decimal.Decimal, error) {
	if v.inFlight.Load() {
		return decimal.Zero, domain.ErrReentrantCall
	}
	vs, err := v.mustVault(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	net, err := v.claimAndSplit(ctx, vs)
	if err != nil {
		return decimal.Zero, err
	}
	v.publishEvents(ctx, vs)
	return net, nil
}

// RecordAccrualCommand 登记外部应计收益命令
type RecordAccrualCommand struct {
	Caller string
	Holder string
	Source string
	Amount decimal.Decimal
}

// RecordAccrual 管理员登记一笔外部应计收益，等待后续领取。
// 只有金库管理员可以登记，收益来源必须支持应计记账。
func (v *VaultService) RecordAccrual(ctx context.Context, cmd RecordAccrualCommand) error {
	if v.inFlight.Load() {
		return domain.ErrReentrantCall
	}
	if cmd.Holder == "" || !cmd.Amount.IsPositive() {
		return domain.ErrZeroInput
	}
	if err := stakingdomain.CheckAmount(cmd.Amount); err != nil {
		return err
	}
	recorder, ok := v.source.(AccrualRecorder)
	if !ok {
		return domain.ErrAccrualUnsupported
	}
	err := v.tx.Transaction(ctx, func(ctx context.Context) error {
		vs, err := v.mustVault(ctx)
		if err != nil {
			return err
		}
		if err := vs.RequireAdmin(cmd.Caller); err != nil {
			return err
		}
		return recorder.Accrue(ctx, cmd.Holder, cmd.Source, cmd.Amount)
	})
	if err != nil {
		return fmt.Errorf("record accrual: %w", err)
	}

	v.logger.InfoContext(ctx, "yield accrual recorded", "holder", cmd.Holder, "amount", cmd.Amount)
	return nil
}

// claimAndSplit 事务内执行：查询可领取额，领入金库账户，
// 扣协议费转收入池，净额转入质押托管账户。
func (v *VaultService) claimAndSplit(ctx context.Context, vs *domain.VaultState) (decimal.Decimal, error) {
	claimable, err := v.source.GetClaimableAmount(ctx, vs.VaultAccount)
	if err != nil {
		return decimal.Zero, err
	}
	if !claimable.IsPositive() {
		return decimal.Zero, nil
	}
	if err := v.source.Claim(ctx, vs.VaultAccount, claimable); err != nil {
		return decimal.Zero, fmt.Errorf("claim external yield: %w", err)
	}

	fee, net := vs.SplitClaim(claimable)
	if fee.IsPositive() {
		if err := v.base.Transfer(ctx, vs.VaultAccount, vs.RevenuePool, fee); err != nil {
			return decimal.Zero, fmt.Errorf("transfer protocol fee: %w", err)
		}
	}
	if net.IsPositive() {
		if err := v.base.Transfer(ctx, vs.VaultAccount, vs.StakeManagerAccount, net); err != nil {
			return decimal.Zero, fmt.Errorf("forward net yield: %w", err)
		}
	}

	vs.AddEvent(&domain.YieldClaimedEvent{
		AssetClass:  v.assetClass,
		Claimed:     claimable,
		ProtocolFee: fee,
		Net:         net,
		Timestamp:   v.now(),
	})
	return net, nil
}

// FlashLoanCommand 闪电贷命令
type FlashLoanCommand struct {
	Initiator       string
	ReceiverAccount string
	Amount          decimal.Decimal
	Data            []byte
}

// FlashLoan 同块闪电贷。转出本金后同步回调借款方，回调返回时
// 金库余额必须恢复到 转出前余额+providerFee+protocolFee，
// 否则整笔操作（含先前的转出）原子回滚。
func (v *VaultService) FlashLoan(ctx context.Context, cmd FlashLoanCommand, receiver FlashLoanReceiver) error {
	if cmd.Amount.IsZero() || cmd.ReceiverAccount == "" || receiver == nil {
		return domain.ErrZeroInput
	}
	if err := stakingdomain.CheckAmount(cmd.Amount); err != nil {
		return err
	}

	if !v.inFlight.CompareAndSwap(false, true) {
		return domain.ErrReentrantCall
	}
	defer v.inFlight.Store(false)

	err := v.tx.Transaction(ctx, func(ctx context.Context) error {
		vs, err := v.mustVault(ctx)
		if err != nil {
			return err
		}

		before, err := v.base.BalanceOf(ctx, vs.VaultAccount)
		if err != nil {
			return err
		}
		if err := v.base.Transfer(ctx, vs.VaultAccount, cmd.ReceiverAccount, cmd.Amount); err != nil {
			return fmt.Errorf("lend: %w", err)
		}

		providerFee, protocolFee := vs.FlashLoanFees(cmd.Amount)

		if err := receiver.OnFlashLoan(ctx, cmd.Initiator, cmd.Amount, cmd.Data); err != nil {
			return fmt.Errorf("flash loan callback: %w", err)
		}

		after, err := v.base.BalanceOf(ctx, vs.VaultAccount)
		if err != nil {
			return err
		}
		owed := before.Add(providerFee).Add(protocolFee)
		if after.LessThan(owed) {
			return domain.ErrFlashLoanRepayFailed
		}

		if protocolFee.IsPositive() {
			if err := v.base.Transfer(ctx, vs.VaultAccount, vs.RevenuePool, protocolFee); err != nil {
				return fmt.Errorf("transfer protocol fee: %w", err)
			}
		}
		if providerFee.IsPositive() {
			if err := v.base.Transfer(ctx, vs.VaultAccount, vs.StakeManagerAccount, providerFee); err != nil {
				return fmt.Errorf("forward provider fee: %w", err)
			}
			if err := v.pool.UpdateYieldPool(ctx, vs.VaultAccount, providerFee); err != nil {
				return fmt.Errorf("update yield pool: %w", err)
			}
		}

		vs.AddEvent(&domain.FlashLoanEvent{
			AssetClass:  v.assetClass,
			Initiator:   cmd.Initiator,
			Receiver:    cmd.ReceiverAccount,
			Amount:      cmd.Amount,
			ProviderFee: providerFee,
			ProtocolFee: protocolFee,
			Timestamp:   v.now(),
		})
		v.publishEvents(ctx, vs)
		return nil
	})
	if err != nil {
		return err
	}

	v.logger.InfoContext(ctx, "flash loan completed", "receiver", cmd.ReceiverAccount, "amount", cmd.Amount)
	return nil
}

// mustVault 取出已初始化的金库状态（行锁）
func (v *VaultService) mustVault(ctx context.Context) (*domain.VaultState, error) {
	vs, err := v.vaults.GetForUpdate(ctx, v.assetClass)
	if err != nil {
		return nil, err
	}
	if vs == nil || !vs.Initialized {
		return nil, domain.ErrNotInitialized
	}
	return vs, nil
}

func (v *VaultService) publishEvents(ctx context.Context, vs *domain.VaultState) {
	if v.publisher == nil {
		vs.ClearDomainEvents()
		return
	}
	for _, event := range vs.GetDomainEvents() {
		if err := v.publisher.Publish(ctx, event.EventName(), "", event); err != nil {
			v.logger.ErrorContext(ctx, "failed to publish event", "event", event.EventName(), "error", err)
		}
	}
	vs.ClearDomainEvents()
}

// --- 管理命令 ---

// SetProtocolFeeRateCommand 收益分账协议费率
type SetProtocolFeeRateCommand struct {
	Caller string
	Rate   uint32
}

func (v *VaultService) SetProtocolFeeRate(ctx context.Context, cmd SetProtocolFeeRateCommand) error {
	return v.adminMutate(ctx, cmd.Caller, "protocol_fee_rate", strconv.Itoa(int(cmd.Rate)), func(vs *domain.VaultState) error {
		return vs.SetProtocolFeeRate(cmd.Rate)
	})
}

// SetFlashLoanFeeCommand 闪电贷费率
type SetFlashLoanFeeCommand struct {
	Caller       string
	ProviderRate uint32
	ProtocolRate uint32
}

func (v *VaultService) SetFlashLoanFee(ctx context.Context, cmd SetFlashLoanFeeCommand) error {
	value := fmt.Sprintf("%d/%d", cmd.ProviderRate, cmd.ProtocolRate)
	return v.adminMutate(ctx, cmd.Caller, "flash_loan_fee", value, func(vs *domain.VaultState) error {
		return vs.SetFlashLoanFeeRates(cmd.ProviderRate, cmd.ProtocolRate)
	})
}

// SetRevenuePoolCommand 协议费接收账户
type SetRevenuePoolCommand struct {
	Caller  string
	Account string
}

func (v *VaultService) SetRevenuePool(ctx context.Context, cmd SetRevenuePoolCommand) error {
	return v.adminMutate(ctx, cmd.Caller, "revenue_pool", cmd.Account, func(vs *domain.VaultState) error {
		vs.SetRevenuePool(cmd.Account)
		return nil
	})
}

// SetStakeManagerCommand 配对质押托管账户
type SetStakeManagerCommand struct {
	Caller  string
	Account string
}

func (v *VaultService) SetStakeManager(ctx context.Context, cmd SetStakeManagerCommand) error {
	return v.adminMutate(ctx, cmd.Caller, "stake_manager_account", cmd.Account, func(vs *domain.VaultState) error {
		vs.SetStakeManagerAccount(cmd.Account)
		return nil
	})
}

func (v *VaultService) adminMutate(ctx context.Context, caller, field, value string, mutate func(vs *domain.VaultState) error) error {
	if v.inFlight.Load() {
		return domain.ErrReentrantCall
	}
	err := v.tx.Transaction(ctx, func(ctx context.Context) error {
		vs, err := v.mustVault(ctx)
		if err != nil {
			return err
		}
		if err := vs.RequireAdmin(caller); err != nil {
			return err
		}
		if err := mutate(vs); err != nil {
			return err
		}
		if err := v.vaults.Save(ctx, vs); err != nil {
			return err
		}
		vs.AddEvent(&domain.VaultConfigChangedEvent{
			AssetClass: v.assetClass,
			Field:      field,
			Value:      value,
			Timestamp:  v.now(),
		})
		v.publishEvents(ctx, vs)
		return nil
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", field, err)
	}

	v.logger.InfoContext(ctx, "vault config changed", "field", field, "value", value)
	return nil
}
