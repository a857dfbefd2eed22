package cdp

import "math/big"

// Refresh advances a rate state to now using the supplied per-second borrow
// rate and returns the updated state with the number of elapsed seconds. A
// timestamp at or before the last refresh leaves the state unchanged.
func Refresh(state *RateState, borrowRate *big.Int, now uint64) (*RateState, uint64) {
	next := state.Clone()
	if next == nil {
		next = &RateState{CumulativeRate: new(big.Int).Set(RAY), LastRefresh: now}
		return next, 0
	}
	if next.CumulativeRate == nil {
		next.CumulativeRate = new(big.Int).Set(RAY)
	}
	if now <= next.LastRefresh {
		return next, 0
	}
	elapsed := now - next.LastRefresh
	next.CumulativeRate = rayMul(next.CumulativeRate, Compound(borrowRate, elapsed))
	next.LastRefresh = now
	return next, elapsed
}
