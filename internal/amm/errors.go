package amm

import (
	"errors"

	"cpamm/internal/curve"
	"cpamm/internal/discount"
	"cpamm/internal/ledger"
	"cpamm/internal/model"
	"cpamm/internal/pricing"
)

var (
	ErrZeroAmount            = errors.New("amount must be greater than zero")
	ErrSlippageExceeded      = errors.New("slippage exceeded")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrSameMint              = errors.New("pool mints must differ")
	ErrUnknownMint           = errors.New("mint not registered")
	ErrUnknownFeeSchedule    = errors.New("fee schedule not found")
	ErrUnknownDiscountConfig = errors.New("discount config not found")
	ErrFeeScheduleExists     = errors.New("fee schedule already exists")
	ErrDiscountConfigExists  = errors.New("discount config already exists")
	ErrNotApproved           = errors.New("operation disabled for pool")
	ErrPersist               = errors.New("persist record")
)

// Errors surfaced from the packages the engine composes.
var (
	ErrUnknownAsset                     = model.ErrUnknownAsset
	ErrInvalidAddress                   = model.ErrInvalidAddress
	ErrInvalidFeeRate                   = model.ErrInvalidFeeRate
	ErrInvalidDiscountRate              = model.ErrInvalidDiscountRate
	ErrOverflow                         = curve.ErrOverflow
	ErrUnderflow                        = curve.ErrUnderflow
	ErrZeroLiquidity                    = curve.ErrZeroLiquidity
	ErrInitialLiquidityTooLow           = curve.ErrInitialLiquidityTooLow
	ErrInsufficientBalance              = ledger.ErrInsufficientBalance
	ErrPoolExists                       = ledger.ErrPoolExists
	ErrPoolNotFound                     = ledger.ErrPoolNotFound
	ErrNoPricePath                      = pricing.ErrNoPricePath
	ErrInsufficientDiscountTokenBalance = discount.ErrInsufficientDiscountTokenBalance
)
