// Package application 质押引擎应用层。
// 一个 Engine 实例对应一个资产类别，eth 与 stable 两个实例共用同一套逻辑，
// 仅常量与绑定的协作方代币不同。
package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/messagequeue"
	"github.com/wyfcoding/stakingyield/internal/staking/domain"
)

// YieldPuller 配对金库暴露给引擎的拉取接口：把新到账的外部收益
// 转入引擎托管账户并返回净额，入池记账由引擎在同一事务内完成。
type YieldPuller interface {
	PullYield(ctx context.Context) (decimal.Decimal, error)
}

// EngineConfig 单个资产类别的引擎配置
type EngineConfig struct {
	AssetClass string
	MinStake   decimal.Decimal
	Admin      string
}

// Engine 质押引擎。对外部调用逐个串行执行，单次调用的全部效果
// 要么完整落库要么整体回滚。
type Engine struct {
	cfg       EngineConfig
	pools     domain.PoolStateRepository
	positions domain.PositionRepository
	ids       domain.IDAllocator
	base      domain.FungibleLedger
	share     domain.FungibleLedger
	credit    domain.FungibleLedger
	vault     YieldPuller
	tx        domain.Transactor
	publisher messagequeue.EventPublisher
	logger    *slog.Logger

	mu  sync.Mutex
	now func() time.Time
}

// NewEngine 创建引擎实例
func NewEngine(
	cfg EngineConfig,
	pools domain.PoolStateRepository,
	positions domain.PositionRepository,
	ids domain.IDAllocator,
	base, share, credit domain.FungibleLedger,
	tx domain.Transactor,
	publisher messagequeue.EventPublisher,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		cfg:       cfg,
		pools:     pools,
		positions: positions,
		ids:       ids,
		base:      base,
		share:     share,
		credit:    credit,
		tx:        tx,
		publisher: publisher,
		logger:    logger.With("module", "staking_engine", "asset_class", cfg.AssetClass),
		now:       time.Now,
	}
}

// BindVault 绑定配对金库。金库与引擎相互引用，构造后单独绑定。
func (e *Engine) BindVault(vault YieldPuller) {
	e.vault = vault
}

// AssetClass 引擎所属资产类别
func (e *Engine) AssetClass() string { return e.cfg.AssetClass }

// InitializeCommand 初始化命令
type InitializeCommand struct {
	Caller         string
	CustodyAccount string
	OutVault       string
	MinLockupDays  uint16
	MaxLockupDays  uint16
}

// Initialize 一次性初始化，重复调用失败
func (e *Engine) Initialize(ctx context.Context, cmd InitializeCommand) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cmd.Caller != e.cfg.Admin {
		return domain.ErrPermissionDenied
	}

	return e.tx.Transaction(ctx, func(ctx context.Context) error {
		pool, err := e.pools.GetForUpdate(ctx, e.cfg.AssetClass)
		if err != nil {
			return err
		}
		if pool == nil {
			pool = domain.NewPoolState(e.cfg.AssetClass)
		}
		if err := pool.Initialize(cmd.Caller, cmd.CustodyAccount, cmd.OutVault, cmd.MinLockupDays, cmd.MaxLockupDays); err != nil {
			return err
		}
		return e.pools.Save(ctx, pool)
	})
}

// StakeCommand 质押命令
type StakeCommand struct {
	Caller        string
	Amount        decimal.Decimal
	LockupDays    uint32
	PositionOwner string
	SharesTo      string
	YieldTo       string
}

// StakeResult 质押结果：本次铸出的份额与收益凭证
type StakeResult struct {
	PositionID  uint64
	ShareAmount decimal.Decimal
	YieldCredit decimal.Decimal
	Deadline    int64
}

// Stake 质押。比价用的是入金前的托管余额，份额按即时比率截断铸出。
func (e *Engine) Stake(ctx context.Context, cmd StakeCommand) (*StakeResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := domain.CheckAmount(cmd.Amount); err != nil {
		return nil, err
	}
	if cmd.Amount.LessThan(e.cfg.MinStake) {
		return nil, domain.ErrMinStakeInsufficient
	}

	var result *StakeResult
	err := e.tx.Transaction(ctx, func(ctx context.Context) error {
		pool, err := e.mustPool(ctx)
		if err != nil {
			return err
		}
		if err := pool.ValidateLockupDays(cmd.LockupDays); err != nil {
			return err
		}

		shareSupply, err := e.share.TotalSupply(ctx)
		if err != nil {
			return err
		}
		pooledBalance, err := e.base.BalanceOf(ctx, pool.CustodyAccount)
		if err != nil {
			return err
		}
		shareAmount := domain.PriceDeposit(cmd.Amount, shareSupply, pooledBalance)
		yieldCredit := domain.YieldCredit(cmd.Amount, cmd.LockupDays)

		now := e.now()
		deadline := now.Unix() + int64(cmd.LockupDays)*domain.SecondsPerDay

		position, err := domain.NewPosition(e.ids.NextID(), e.cfg.AssetClass, cmd.PositionOwner, cmd.Amount, shareAmount, deadline)
		if err != nil {
			return err
		}
		if err := e.positions.Create(ctx, position); err != nil {
			return err
		}

		pool.AddStaked(cmd.Amount)
		if err := e.pools.Save(ctx, pool); err != nil {
			return err
		}

		if err := e.base.TransferFrom(ctx, pool.CustodyAccount, cmd.Caller, pool.CustodyAccount, cmd.Amount); err != nil {
			return fmt.Errorf("pull base asset: %w", err)
		}
		if err := e.share.Mint(ctx, pool.CustodyAccount, cmd.SharesTo, shareAmount); err != nil {
			return fmt.Errorf("mint shares: %w", err)
		}
		if err := e.credit.Mint(ctx, pool.CustodyAccount, cmd.YieldTo, yieldCredit); err != nil {
			return fmt.Errorf("mint yield credit: %w", err)
		}

		pool.AddEvent(&domain.StakedEvent{
			AssetClass:  e.cfg.AssetClass,
			PositionID:  position.PositionID,
			Owner:       cmd.PositionOwner,
			Amount:      cmd.Amount,
			ShareAmount: shareAmount,
			YieldCredit: yieldCredit,
			LockupDays:  cmd.LockupDays,
			Deadline:    deadline,
			Timestamp:   now,
		})
		e.publishEvents(ctx, pool)

		result = &StakeResult{
			PositionID:  position.PositionID,
			ShareAmount: shareAmount,
			YieldCredit: yieldCredit,
			Deadline:    deadline,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "staked",
		"position_id", result.PositionID,
		"amount", cmd.Amount,
		"shares", result.ShareAmount,
		"lockup_days", cmd.LockupDays)
	return result, nil
}

// UnstakeCommand 解押命令
type UnstakeCommand struct {
	Caller     string
	PositionID uint64
}

// Unstake 到期解押：关闭仓位、销毁记录的份额、退还本金。
// 仓位对应的收益凭证不随解押销毁，仍可独立兑付。
func (e *Engine) Unstake(ctx context.Context, cmd UnstakeCommand) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var principal decimal.Decimal
	err := e.tx.Transaction(ctx, func(ctx context.Context) error {
		pool, err := e.mustPool(ctx)
		if err != nil {
			return err
		}
		position, err := e.positions.GetForUpdate(ctx, e.cfg.AssetClass, cmd.PositionID)
		if err != nil {
			return err
		}
		if position == nil {
			return domain.ErrPositionNotFound
		}
		if position.Closed {
			return domain.ErrPositionClosed
		}
		if !position.IsOwnedBy(cmd.Caller) {
			return domain.ErrPermissionDenied
		}

		now := e.now()
		if err := position.Close(now); err != nil {
			return err
		}
		if err := e.positions.Save(ctx, position); err != nil {
			return err
		}

		pool.SubStaked(position.PrincipalAmount)
		if err := e.pools.Save(ctx, pool); err != nil {
			return err
		}

		if err := e.share.Burn(ctx, pool.CustodyAccount, cmd.Caller, position.ShareAmount); err != nil {
			return fmt.Errorf("burn shares: %w", err)
		}
		if err := e.base.Transfer(ctx, pool.CustodyAccount, cmd.Caller, position.PrincipalAmount); err != nil {
			return fmt.Errorf("return principal: %w", err)
		}

		pool.AddEvent(&domain.UnstakedEvent{
			AssetClass: e.cfg.AssetClass,
			PositionID: position.PositionID,
			Owner:      cmd.Caller,
			Principal:  position.PrincipalAmount,
			Shares:     position.ShareAmount,
			Timestamp:  now,
		})
		e.publishEvents(ctx, pool)

		principal = position.PrincipalAmount
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	e.logger.InfoContext(ctx, "unstaked", "position_id", cmd.PositionID, "principal", principal)
	return principal, nil
}

// ExtendLockTimeCommand 延长锁定期命令
type ExtendLockTimeCommand struct {
	Caller     string
	PositionID uint64
	ExtendDays uint32
}

// ExtendLockTime 延长锁定期并按 principal*extendDays 追加收益凭证。
// 不触碰 totalStaked 与份额余额。
func (e *Engine) ExtendLockTime(ctx context.Context, cmd ExtendLockTimeCommand) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var newCredit decimal.Decimal
	err := e.tx.Transaction(ctx, func(ctx context.Context) error {
		pool, err := e.mustPool(ctx)
		if err != nil {
			return err
		}
		position, err := e.positions.GetForUpdate(ctx, e.cfg.AssetClass, cmd.PositionID)
		if err != nil {
			return err
		}
		if position == nil {
			return domain.ErrPositionNotFound
		}
		if !position.IsOwnedBy(cmd.Caller) {
			return domain.ErrPermissionDenied
		}

		now := e.now()
		newDeadline, err := position.ExtendDeadline(now, cmd.ExtendDays, pool.MinLockupDays, pool.MaxLockupDays)
		if err != nil {
			return err
		}
		if err := e.positions.Save(ctx, position); err != nil {
			return err
		}

		newCredit = domain.YieldCredit(position.PrincipalAmount, cmd.ExtendDays)
		if err := e.credit.Mint(ctx, pool.CustodyAccount, cmd.Caller, newCredit); err != nil {
			return fmt.Errorf("mint yield credit: %w", err)
		}

		pool.AddEvent(&domain.LockExtendedEvent{
			AssetClass:  e.cfg.AssetClass,
			PositionID:  position.PositionID,
			Owner:       cmd.Caller,
			ExtendDays:  cmd.ExtendDays,
			NewDeadline: newDeadline,
			YieldCredit: newCredit,
			Timestamp:   now,
		})
		e.publishEvents(ctx, pool)
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	e.logger.InfoContext(ctx, "lock extended", "position_id", cmd.PositionID, "extend_days", cmd.ExtendDays)
	return newCredit, nil
}

// WithdrawYieldCommand 收益兑付命令
type WithdrawYieldCommand struct {
	Caller string
	Amount decimal.Decimal
}

// WithdrawYield 兑付收益凭证。先让配对金库把新到账的外部收益拉入池内，
// 再按最新池规模比价，所以后兑付者不会因先兑付者吃亏。
func (e *Engine) WithdrawYield(ctx context.Context, cmd WithdrawYieldCommand) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cmd.Amount.IsZero() {
		return decimal.Zero, domain.ErrZeroInput
	}
	if err := domain.CheckAmount(cmd.Amount); err != nil {
		return decimal.Zero, err
	}

	var paid decimal.Decimal
	err := e.tx.Transaction(ctx, func(ctx context.Context) error {
		pool, err := e.mustPool(ctx)
		if err != nil {
			return err
		}

		if e.vault != nil {
			net, err := e.vault.PullYield(ctx)
			if err != nil {
				return fmt.Errorf("pull vault yield: %w", err)
			}
			if net.IsPositive() {
				e.creditYield(pool, net)
			}
		}

		creditSupply, err := e.credit.TotalSupply(ctx)
		if err != nil {
			return err
		}
		paid = domain.PriceYield(cmd.Amount, pool.TotalYieldPool, creditSupply)
		if err := pool.DebitYield(paid); err != nil {
			return err
		}
		if err := e.pools.Save(ctx, pool); err != nil {
			return err
		}

		if err := e.credit.Burn(ctx, pool.CustodyAccount, cmd.Caller, cmd.Amount); err != nil {
			return fmt.Errorf("burn yield credit: %w", err)
		}
		if paid.IsPositive() {
			if err := e.base.Transfer(ctx, pool.CustodyAccount, cmd.Caller, paid); err != nil {
				return fmt.Errorf("pay yield: %w", err)
			}
		}

		pool.AddEvent(&domain.YieldWithdrawnEvent{
			AssetClass:   e.cfg.AssetClass,
			Caller:       cmd.Caller,
			CreditBurned: cmd.Amount,
			Paid:         paid,
			Timestamp:    e.now(),
		})
		e.publishEvents(ctx, pool)
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	e.logger.InfoContext(ctx, "yield withdrawn", "caller", cmd.Caller, "burned", cmd.Amount, "paid", paid)
	return paid, nil
}

// ClaimVaultYield 外部触发的收益领取：让配对金库把新到账的外部收益
// 拉入托管账户并入池，返回净额。与 WithdrawYield 一样先拿引擎互斥锁
// 再进入金库，两条路径的加锁顺序一致，不会与兑付互相等待。
func (e *Engine) ClaimVaultYield(ctx context.Context) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.vault == nil {
		return decimal.Zero, domain.ErrNotInitialized
	}

	var net decimal.Decimal
	err := e.tx.Transaction(ctx, func(ctx context.Context) error {
		pool, err := e.mustPool(ctx)
		if err != nil {
			return err
		}
		net, err = e.vault.PullYield(ctx)
		if err != nil {
			return fmt.Errorf("pull vault yield: %w", err)
		}
		if net.IsPositive() {
			e.creditYield(pool, net)
			if err := e.pools.Save(ctx, pool); err != nil {
				return err
			}
		}
		e.publishEvents(ctx, pool)
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	if net.IsPositive() {
		e.logger.InfoContext(ctx, "vault yield claimed", "net", net)
	}
	return net, nil
}

// UpdateYieldPool 收益入池，仅允许配对金库调用
func (e *Engine) UpdateYieldPool(ctx context.Context, caller string, amount decimal.Decimal) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.tx.Transaction(ctx, func(ctx context.Context) error {
		pool, err := e.mustPool(ctx)
		if err != nil {
			return err
		}
		if caller == "" || caller != pool.OutVault {
			return domain.ErrPermissionDenied
		}
		e.creditYield(pool, amount)
		if err := e.pools.Save(ctx, pool); err != nil {
			return err
		}
		e.publishEvents(ctx, pool)
		return nil
	})
}

// creditYield 入池记账，事务内调用
func (e *Engine) creditYield(pool *domain.PoolState, amount decimal.Decimal) {
	pool.CreditYield(amount)
	pool.AddEvent(&domain.YieldPoolUpdatedEvent{
		AssetClass: e.cfg.AssetClass,
		Amount:     amount,
		PoolAfter:  pool.TotalYieldPool,
		Timestamp:  e.now(),
	})
}

// mustPool 取出已初始化的池状态（行锁）
func (e *Engine) mustPool(ctx context.Context) (*domain.PoolState, error) {
	pool, err := e.pools.GetForUpdate(ctx, e.cfg.AssetClass)
	if err != nil {
		return nil, err
	}
	if pool == nil || !pool.Initialized {
		return nil, domain.ErrNotInitialized
	}
	return pool, nil
}

func (e *Engine) publishEvents(ctx context.Context, pool *domain.PoolState) {
	if e.publisher == nil {
		pool.ClearDomainEvents()
		return
	}
	for _, event := range pool.GetDomainEvents() {
		if err := e.publisher.Publish(ctx, event.EventName(), "", event); err != nil {
			e.logger.ErrorContext(ctx, "failed to publish event", "event", event.EventName(), "error", err)
		}
	}
	pool.ClearDomainEvents()
}
