package application

import (
	"context"
	"fmt"
	"strconv"

	"github.com/wyfcoding/stakingyield/internal/staking/domain"
)

// 管理命令：每个 setter 均为特权操作，校验聚合内保存的管理员身份，
// 变更成功后发布变更事件。

// SetMinLockupDaysCommand 调整锁定天数下界
type SetMinLockupDaysCommand struct {
	Caller string
	Days   uint16
}

func (e *Engine) SetMinLockupDays(ctx context.Context, cmd SetMinLockupDaysCommand) error {
	return e.adminMutate(ctx, cmd.Caller, "min_lockup_days", strconv.Itoa(int(cmd.Days)), func(pool *domain.PoolState) error {
		return pool.SetMinLockupDays(cmd.Days)
	})
}

// SetMaxLockupDaysCommand 调整锁定天数上界
type SetMaxLockupDaysCommand struct {
	Caller string
	Days   uint16
}

func (e *Engine) SetMaxLockupDays(ctx context.Context, cmd SetMaxLockupDaysCommand) error {
	return e.adminMutate(ctx, cmd.Caller, "max_lockup_days", strconv.Itoa(int(cmd.Days)), func(pool *domain.PoolState) error {
		return pool.SetMaxLockupDays(cmd.Days)
	})
}

// SetForceUnstakeFeeCommand 调整强制解押费率（基点，当前无启用路径消费）
type SetForceUnstakeFeeCommand struct {
	Caller string
	Rate   uint32
}

func (e *Engine) SetForceUnstakeFee(ctx context.Context, cmd SetForceUnstakeFeeCommand) error {
	return e.adminMutate(ctx, cmd.Caller, "force_unstake_fee", strconv.Itoa(int(cmd.Rate)), func(pool *domain.PoolState) error {
		return pool.SetForceUnstakeFee(cmd.Rate)
	})
}

// SetOutVaultCommand 更换配对金库
type SetOutVaultCommand struct {
	Caller string
	Vault  string
}

func (e *Engine) SetOutVault(ctx context.Context, cmd SetOutVaultCommand) error {
	return e.adminMutate(ctx, cmd.Caller, "out_vault", cmd.Vault, func(pool *domain.PoolState) error {
		pool.SetOutVault(cmd.Vault)
		return nil
	})
}

func (e *Engine) adminMutate(ctx context.Context, caller, field, value string, mutate func(pool *domain.PoolState) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.tx.Transaction(ctx, func(ctx context.Context) error {
		pool, err := e.mustPool(ctx)
		if err != nil {
			return err
		}
		if err := pool.RequireAdmin(caller); err != nil {
			return err
		}
		if err := mutate(pool); err != nil {
			return err
		}
		if err := e.pools.Save(ctx, pool); err != nil {
			return err
		}
		pool.AddEvent(&domain.PoolConfigChangedEvent{
			AssetClass: e.cfg.AssetClass,
			Field:      field,
			Value:      value,
			Timestamp:  e.now(),
		})
		e.publishEvents(ctx, pool)
		return nil
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", field, err)
	}

	e.logger.InfoContext(ctx, "pool config changed", "field", field, "value", value)
	return nil
}
