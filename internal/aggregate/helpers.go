package aggregate

import (
	"math/big"
	"time"
)

const ratioScale = 18

func formatTokenAmount(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	if decimals == 0 {
		return value.String()
	}
	sign := value.Sign()
	abs := new(big.Int).Abs(value)
	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	rat := new(big.Rat).SetFrac(abs, denom)
	text := rat.FloatString(int(decimals))
	if sign < 0 {
		return "-" + text
	}
	return text
}

func computeFeeRates(feeA *big.Int, feeB *big.Int, tvlA *big.Int, tvlB *big.Int) (*string, *string) {
	var feeRateA *string
	var feeRateB *string

	if rate := computeRateFromInt(feeA, tvlA); rate != "" {
		feeRateA = &rate
	}
	if rate := computeRateFromInt(feeB, tvlB); rate != "" {
		feeRateB = &rate
	}
	return feeRateA, feeRateB
}

func computeRateFromInt(fee *big.Int, tvl *big.Int) string {
	if fee == nil || fee.Sign() == 0 || tvl == nil || tvl.Sign() == 0 {
		return ""
	}
	rat := new(big.Rat).SetFrac(fee, tvl)
	return rat.FloatString(ratioScale)
}

// computeAPR annualizes the window fee rate. With fees on both sides the
// pool-wide rate is the mean of the two side rates.
func computeAPR(feeRateA *string, feeRateB *string, windowSeconds uint64) *string {
	if windowSeconds == 0 {
		return nil
	}
	var rate *big.Rat
	switch {
	case feeRateA != nil && feeRateB == nil:
		rate = parseRat(*feeRateA)
	case feeRateB != nil && feeRateA == nil:
		rate = parseRat(*feeRateB)
	case feeRateA != nil && feeRateB != nil:
		a, b := parseRat(*feeRateA), parseRat(*feeRateB)
		if a == nil || b == nil {
			return nil
		}
		rate = new(big.Rat).Add(a, b)
		rate.Quo(rate, big.NewRat(2, 1))
	}
	if rate == nil {
		return nil
	}

	yearSeconds := big.NewRat(int64(365*24*time.Hour/time.Second), 1)
	window := big.NewRat(int64(windowSeconds), 1)
	apr := new(big.Rat).Mul(rate, yearSeconds)
	apr.Quo(apr, window)
	val := apr.FloatString(ratioScale)
	return &val
}

func parseRat(value string) *big.Rat {
	rat, ok := new(big.Rat).SetString(value)
	if !ok {
		return nil
	}
	return rat
}
