// Package domain 金库领域事件
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type DomainEvent interface {
	EventName() string
	OccurredAt() time.Time
}

// YieldClaimedEvent 外部收益领取并分账事件
type YieldClaimedEvent struct {
	AssetClass  string          `json:"asset_class"`
	Claimed     decimal.Decimal `json:"claimed"`
	ProtocolFee decimal.Decimal `json:"protocol_fee"`
	Net         decimal.Decimal `json:"net"`
	Timestamp   time.Time       `json:"timestamp"`
}

func (e *YieldClaimedEvent) EventName() string     { return "vault.yield_claimed" }
func (e *YieldClaimedEvent) OccurredAt() time.Time { return e.Timestamp }

// FlashLoanEvent 闪电贷完成事件
type FlashLoanEvent struct {
	AssetClass  string          `json:"asset_class"`
	Initiator   string          `json:"initiator"`
	Receiver    string          `json:"receiver"`
	Amount      decimal.Decimal `json:"amount"`
	ProviderFee decimal.Decimal `json:"provider_fee"`
	ProtocolFee decimal.Decimal `json:"protocol_fee"`
	Timestamp   time.Time       `json:"timestamp"`
}

func (e *FlashLoanEvent) EventName() string     { return "vault.flash_loan" }
func (e *FlashLoanEvent) OccurredAt() time.Time { return e.Timestamp }

// VaultConfigChangedEvent 管理参数变更事件
type VaultConfigChangedEvent struct {
	AssetClass string    `json:"asset_class"`
	Field      string    `json:"field"`
	Value      string    `json:"value"`
	Timestamp  time.Time `json:"timestamp"`
}

func (e *VaultConfigChangedEvent) EventName() string     { return "vault.config_changed" }
func (e *VaultConfigChangedEvent) OccurredAt() time.Time { return e.Timestamp }
