package curve

import "errors"

// MinimumLiquidityLock is the number of shares burned at every seeding. They are
// counted in the share total but never redeemable.
const MinimumLiquidityLock = 100

var ErrInitialLiquidityTooLow = errors.New("initial liquidity too low")

// TotalShares is the share count used in every LP ratio.
func TotalShares(lpSupply uint64) (uint64, error) {
	return Add(lpSupply, MinimumLiquidityLock)
}

// DepositAmounts returns the assets required to mint lp shares, rounded up.
func DepositAmounts(lp, lpSupply, reserveA, reserveB uint64) (uint64, uint64, error) {
	if lpSupply == 0 {
		return 0, 0, ErrZeroLiquidity
	}
	total, err := TotalShares(lpSupply)
	if err != nil {
		return 0, 0, err
	}
	a, err := MulDivCeil(lp, reserveA, total)
	if err != nil {
		return 0, 0, err
	}
	b, err := MulDivCeil(lp, reserveB, total)
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

// WithdrawAmounts returns the assets redeemed by burning lp shares, rounded down.
func WithdrawAmounts(lp, lpSupply, reserveA, reserveB uint64) (uint64, uint64, error) {
	if lpSupply == 0 {
		return 0, 0, ErrZeroLiquidity
	}
	if lp > lpSupply {
		return 0, 0, ErrUnderflow
	}
	total, err := TotalShares(lpSupply)
	if err != nil {
		return 0, 0, err
	}
	a, err := MulDivFloor(lp, reserveA, total)
	if err != nil {
		return 0, 0, err
	}
	b, err := MulDivFloor(lp, reserveB, total)
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

// SeedShares returns the redeemable shares minted when seeding with a and b:
// floor(sqrt(a*b)) minus the locked shares.
func SeedShares(a, b uint64) (uint64, error) {
	if a == 0 || b == 0 {
		return 0, ErrInitialLiquidityTooLow
	}
	root := SqrtProduct(a, b)
	if root <= MinimumLiquidityLock {
		return 0, ErrInitialLiquidityTooLow
	}
	return root - MinimumLiquidityLock, nil
}
