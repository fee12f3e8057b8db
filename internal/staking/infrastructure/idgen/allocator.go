// Package idgen 仓位 id 分配器，雪花算法保证严格递增且永不复用
package idgen

import (
	"github.com/wyfcoding/pkg/idgen"

	"github.com/wyfcoding/stakingyield/internal/staking/domain"
)

type SnowflakeAllocator struct{}

var _ domain.IDAllocator = (*SnowflakeAllocator)(nil)

func NewSnowflakeAllocator() *SnowflakeAllocator {
	return &SnowflakeAllocator{}
}

func (a *SnowflakeAllocator) NextID() uint64 {
	return uint64(idgen.GenID())
}
