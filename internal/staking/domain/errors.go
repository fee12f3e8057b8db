// Package domain 质押引擎领域层
package domain

import "errors"

var (
	ErrMinStakeInsufficient    = errors.New("stake amount below minimum")
	ErrInvalidLockupDays       = errors.New("lockup days out of bounds")
	ErrInvalidExtendDays       = errors.New("extended duration out of bounds")
	ErrPositionClosed          = errors.New("position already closed")
	ErrPositionNotFound        = errors.New("position not found")
	ErrPermissionDenied        = errors.New("permission denied")
	ErrNotReachedDeadline      = errors.New("position deadline not reached")
	ErrReachedDeadline         = errors.New("position deadline already reached")
	ErrZeroInput               = errors.New("zero input")
	ErrAmountOverflow          = errors.New("amount exceeds 96-bit bound")
	ErrDeadlineOverflow        = errors.New("deadline exceeds 56-bit bound")
	ErrForceUnstakeFeeOverflow = errors.New("force unstake fee exceeds 10000 basis points")
	ErrYieldPoolUnderflow      = errors.New("yield pool underflow")
	ErrAlreadyInitialized      = errors.New("pool already initialized")
	ErrNotInitialized          = errors.New("pool not initialized")
)
