package domain

import "context"

// VaultStateRepository 金库状态仓储
type VaultStateRepository interface {
	Save(ctx context.Context, vault *VaultState) error
	Get(ctx context.Context, assetClass string) (*VaultState, error)
	GetForUpdate(ctx context.Context, assetClass string) (*VaultState, error)
}
