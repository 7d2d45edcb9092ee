// Package bounds converts DLMM bin ranges into price bounds, both in
// pool-native units and scaled to USD.
package bounds

import (
	"fmt"
	"log/slog"
	"math"
)

// Bounds is a lower/upper price pair. Lower < Upper always holds for a
// non-degenerate bin range.
type Bounds struct {
	Lower float64
	Upper float64
}

// PriceOfBin returns the pool-native price at a bin id. Adjacent bins differ
// by a fixed factor of (1 + binStep/10000), so price is strictly increasing
// in the bin id.
func PriceOfBin(binID int32, binStep uint16) float64 {
	return math.Pow(1+float64(binStep)/10000, float64(binID))
}

// Raw returns the pool-native price bounds for a bin range.
func Raw(minBinID, maxBinID int32, binStep uint16) (Bounds, error) {
	if minBinID > maxBinID {
		return Bounds{}, fmt.Errorf("bounds: min bin %d greater than max bin %d", minBinID, maxBinID)
	}
	if binStep == 0 {
		return Bounds{}, fmt.Errorf("bounds: bin step must be positive")
	}
	return Bounds{
		Lower: PriceOfBin(minBinID, binStep),
		Upper: PriceOfBin(maxBinID, binStep),
	}, nil
}

// Calculator computes USD-denominated bounds. It carries a logger so callers
// get a warning, not a failure, when a reference price looks implausible.
type Calculator struct {
	log *slog.Logger
}

func NewCalculator(log *slog.Logger) *Calculator {
	return &Calculator{log: log.With("component", "bounds")}
}

// USD scales the raw bounds to USD using the pool's active bin as the anchor:
// the active bin's native price corresponds to referenceUSD, and both bounds
// are scaled by the same factor.
func (c *Calculator) USD(minBinID, maxBinID, activeBinID int32, binStep uint16, referenceUSD float64) (Bounds, error) {
	raw, err := Raw(minBinID, maxBinID, binStep)
	if err != nil {
		return Bounds{}, err
	}
	if referenceUSD <= 0 {
		return Bounds{}, fmt.Errorf("bounds: reference price must be positive, got %g", referenceUSD)
	}
	c.warnImplausible(referenceUSD)

	scale := referenceUSD / PriceOfBin(activeBinID, binStep)
	return Bounds{Lower: raw.Lower * scale, Upper: raw.Upper * scale}, nil
}

// USDFallback approximates USD bounds without on-chain state. It treats the
// midpoint of the bin range as the anchor for the current USD price and walks
// the bin-step factor out to each edge. The midpoint assumption is inexact
// for asymmetric ranges; use USD when the active bin is readable.
func (c *Calculator) USDFallback(minBinID, maxBinID int32, binStep uint16, currentUSD float64) (Bounds, error) {
	if minBinID > maxBinID {
		return Bounds{}, fmt.Errorf("bounds: min bin %d greater than max bin %d", minBinID, maxBinID)
	}
	if binStep == 0 {
		return Bounds{}, fmt.Errorf("bounds: bin step must be positive")
	}
	if currentUSD <= 0 {
		return Bounds{}, fmt.Errorf("bounds: current price must be positive, got %g", currentUSD)
	}
	c.warnImplausible(currentUSD)

	mid := (minBinID + maxBinID) / 2
	step := 1 + float64(binStep)/10000
	lower := currentUSD * math.Pow(step, -float64(mid-minBinID))
	upper := currentUSD * math.Pow(step, float64(maxBinID-mid))
	return Bounds{Lower: lower, Upper: upper}, nil
}

// warnImplausible flags reference prices below 1 USD. The pools this bot
// targets trade above 1, so a sub-1 value usually means a wrong quote mint
// or a decimals mixup upstream.
func (c *Calculator) warnImplausible(price float64) {
	if price < 1 {
		c.log.Warn("reference price below 1 USD, bounds may be mis-scaled", "price", price)
	}
}
