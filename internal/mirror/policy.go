package mirror

import (
	"fmt"
	"math"

	"polymirror/internal/config"
	"polymirror/pkg/types"
)

// Tick is the CLOB price resolution. All limit prices are multiples of it.
const Tick = 0.001

// MinOrderSize is the platform's minimum order quantity in outcome tokens.
const MinOrderSize = 5.0

// SkipError reports why a fill produced no mirror order. These are expected
// outcomes (filters, dust sizes), not failures.
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string { return "skip: " + e.Reason }

func skip(format string, args ...any) error {
	return &SkipError{Reason: fmt.Sprintf(format, args...)}
}

// DeriveOrder converts a target fill into the mirror order to place, or a
// SkipError when the fill should not be copied. The function is pure:
// given the same fill and config it always produces the same result, with
// no I/O.
//
// Sizing: percentage mode scales the target's size, fixed mode uses the
// configured quantity outright. Positive sizes below the platform minimum
// are raised to exactly the minimum.
//
// Pricing emulates a market order with an aggressive limit: offset the
// observed fill price by aggressiveTicks in the crossing direction, but
// never past the slippage cap. The result is rounded half-up to the tick
// and clamped into [Tick, 1-Tick]. If rounding lands the price back on the
// non-aggressive side of the fill price, it is bumped one tick past it, so
// the order can always cross the level the target traded at.
func DeriveOrder(fill types.FillEvent, cfg config.MirrorConfig) (types.UserOrder, error) {
	if fill.Side == types.BUY && !cfg.Filters.Buy {
		return types.UserOrder{}, skip("buy mirroring disabled")
	}
	if fill.Side == types.SELL && !cfg.Filters.Sell {
		return types.UserOrder{}, skip("sell mirroring disabled")
	}

	var size float64
	if cfg.Mode == "fixed" {
		size = cfg.Value
	} else {
		size = fill.Size * cfg.Value / 100
	}
	if !(size > 0) || math.IsInf(size, 0) {
		return types.UserOrder{}, skip("non-positive size")
	}
	if size < MinOrderSize {
		size = MinOrderSize
	}

	offset := float64(cfg.AggressiveTicks) * Tick
	capFrac := cfg.MaxSlippagePct / 100

	var price float64
	switch fill.Side {
	case types.BUY:
		aggressive := fill.Price + offset
		capped := fill.Price * (1 + capFrac)
		price = math.Min(aggressive, capped)
	case types.SELL:
		aggressive := fill.Price - offset
		capped := fill.Price * (1 - capFrac)
		price = math.Max(aggressive, capped)
	}

	price = roundToTick(price)
	price = clampPrice(price)

	// Rounding can pull the price back to (or past) the fill price, which
	// would leave a passive order that never crosses. Bump one tick.
	if fill.Side == types.BUY && price <= fill.Price {
		price = clampPrice(roundToTick(fill.Price + Tick))
	}
	if fill.Side == types.SELL && price >= fill.Price {
		price = clampPrice(roundToTick(fill.Price - Tick))
	}

	return types.UserOrder{
		TokenID:   fill.TokenID,
		Side:      fill.Side,
		Price:     price,
		Size:      size,
		OrderType: types.OrderTypeGTC,
		PostOnly:  false,
	}, nil
}

// roundToTick rounds half-up at tick resolution.
func roundToTick(p float64) float64 {
	return math.Floor(p/Tick+0.5) * Tick
}

// clampPrice bounds a price inside the valid probability range, excluding
// the 0 and 1 extremes.
func clampPrice(p float64) float64 {
	if p < Tick {
		return Tick
	}
	if p > 1-Tick {
		return 1 - Tick
	}
	return p
}
