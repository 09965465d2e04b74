// Package amm implements the two-outcome Logarithmic Market Scoring Rule
// market maker used to price every trade.
//
// All functions are pure. Quantities stay in float64 for the whole
// calculation; rounding to currency precision happens only in RoundCurrency,
// which callers apply when reporting or settling.
package amm

import (
	"errors"
	"math"
)

// Side identifies one of the two outcomes of a binary market.
type Side int

const (
	SideA Side = iota
	SideB
)

// Other returns the opposite outcome.
func (s Side) Other() Side {
	if s == SideA {
		return SideB
	}
	return SideA
}

func (s Side) String() string {
	if s == SideA {
		return "A"
	}
	return "B"
}

// ErrNoConvergence is returned when the share solver cannot bracket the
// requested spend within its doubling budget.
var ErrNoConvergence = errors.New("amm: share solver did not converge")

// Solver holds the numeric limits of the spend-to-shares root finder.
type Solver struct {
	// MaxDoublings bounds the search for an upper bracket.
	MaxDoublings int
	// MaxBisections bounds the refinement loop.
	MaxBisections int
	// Tolerance is the relative width of the final bracket.
	Tolerance float64
}

// DefaultSolver is tight enough that the residual is far below a cent for
// any realistic pool size.
var DefaultSolver = Solver{
	MaxDoublings:  64,
	MaxBisections: 200,
	Tolerance:     1e-12,
}

// Cost is the LMSR cost function C = b * ln(e^(qA/b) + e^(qB/b)).
// The log-sum-exp shift keeps large pools from overflowing math.Exp.
func Cost(poolA, poolB, b float64) float64 {
	m := math.Max(poolA, poolB)
	return m + b*math.Log(math.Exp((poolA-m)/b)+math.Exp((poolB-m)/b))
}

// Price returns the instantaneous price of side, in [0, 1].
// Price(SideA, ...) + Price(SideB, ...) == 1.
func Price(side Side, poolA, poolB, b float64) float64 {
	m := math.Max(poolA, poolB)
	ea := math.Exp((poolA - m) / b)
	eb := math.Exp((poolB - m) / b)
	if side == SideA {
		return ea / (ea + eb)
	}
	return eb / (ea + eb)
}

// Shift adds delta to the pool of side and returns both pools.
func Shift(side Side, poolA, poolB, delta float64) (float64, float64) {
	if side == SideA {
		return poolA + delta, poolB
	}
	return poolA, poolB + delta
}

// PoolOf returns the pool quantity belonging to side.
func PoolOf(side Side, poolA, poolB float64) float64 {
	if side == SideA {
		return poolA
	}
	return poolB
}

// SharesForSpend returns how many shares of side the given amount buys using
// DefaultSolver.
func SharesForSpend(side Side, poolA, poolB, b, amount float64) (float64, error) {
	return DefaultSolver.SharesForSpend(side, poolA, poolB, b, amount)
}

// SharesForSpend finds the non-negative d with
// Cost(pool_side+d, pool_other) - Cost(poolA, poolB) = amount.
//
// The upper bracket is found by doubling, then the bracket is bisected until
// its relative width is below Tolerance. The lower end of the bracket is
// returned so the buyer is never charged more than amount.
func (s Solver) SharesForSpend(side Side, poolA, poolB, b, amount float64) (float64, error) {
	if amount <= 0 || b <= 0 {
		return 0, nil
	}

	base := Cost(poolA, poolB, b)
	spend := func(d float64) float64 {
		a, o := Shift(side, poolA, poolB, d)
		return Cost(a, o, b) - base
	}

	lo, hi := 0.0, amount
	for i := 0; spend(hi) < amount; i++ {
		if i >= s.MaxDoublings || math.IsInf(hi, 0) {
			return 0, ErrNoConvergence
		}
		lo = hi
		hi *= 2
	}

	for i := 0; i < s.MaxBisections; i++ {
		if hi-lo <= s.Tolerance*hi {
			break
		}
		mid := lo + (hi-lo)/2
		if spend(mid) < amount {
			lo = mid
		} else {
			hi = mid
		}
	}

	return lo, nil
}

// AmountForSell returns the currency released by removing shares of side from
// the pool. The reduced pool is clamped at zero.
func AmountForSell(side Side, poolA, poolB, b, shares float64) float64 {
	if shares <= 0 || b <= 0 {
		return 0
	}
	if held := PoolOf(side, poolA, poolB); shares > held {
		shares = held
	}
	a, o := Shift(side, poolA, poolB, -shares)
	return Cost(poolA, poolB, b) - Cost(a, o, b)
}

// Quote describes the effect of a hypothetical buy.
type Quote struct {
	Shares       float64 `json:"shares"`
	AveragePrice float64 `json:"averagePrice"`
	PriceBefore  float64 `json:"priceBefore"`
	PriceAfter   float64 `json:"priceAfter"`
	// PotentialPayout is the gross value of the shares if side wins.
	PotentialPayout float64 `json:"potentialPayout"`
}

// QuoteBuy simulates spending amount on side without changing any state.
func QuoteBuy(side Side, poolA, poolB, b, amount float64) (Quote, error) {
	shares, err := SharesForSpend(side, poolA, poolB, b, amount)
	if err != nil {
		return Quote{}, err
	}
	a, o := Shift(side, poolA, poolB, shares)
	q := Quote{
		Shares:          shares,
		PriceBefore:     Price(side, poolA, poolB, b),
		PriceAfter:      Price(side, a, o, b),
		PotentialPayout: shares,
	}
	if shares > 0 {
		q.AveragePrice = amount / shares
	}
	return q, nil
}

// MaxLoss is the market maker's worst-case subsidy for a binary market, b*ln(2).
func MaxLoss(b float64) float64 {
	return b * math.Ln2
}
