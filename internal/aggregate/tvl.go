package aggregate

import "math/big"

const (
	tvlMethodReserves = "post_event_reserves"
	tvlMethodNone     = "unavailable"
)

// windowTVL returns the vault balances left by the last event of the window.
// A window that saw no reserve-bearing event has no TVL.
func windowTVL(acc *Accumulator) (*big.Int, *big.Int, string) {
	if acc == nil || !acc.hasReserves {
		return nil, nil, tvlMethodNone
	}
	return new(big.Int).Set(acc.ReserveA), new(big.Int).Set(acc.ReserveB), tvlMethodReserves
}
