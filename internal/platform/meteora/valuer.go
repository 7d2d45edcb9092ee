package meteora

import (
	"context"
	"fmt"
	"math"

	"github.com/alanyoungcy/dlmmbot/internal/domain"
)

// priceGetter is the slice of the price feed the valuer needs.
type priceGetter interface {
	GetPrice(ctx context.Context, poolAddress string) (float64, error)
}

// Valuer estimates a position's USD value from its bin-level token balances:
// the base leg at the pool's current price, the quote leg taken at par.
type Valuer struct {
	client *Client
	prices priceGetter
}

func NewValuer(client *Client, prices priceGetter) *Valuer {
	return &Valuer{client: client, prices: prices}
}

func (v *Valuer) PositionValueUSD(ctx context.Context, pos *domain.Position) (float64, error) {
	bins, err := v.client.GetPositionBins(ctx, pos.PoolAddress, pos.PositionAddress, pos.Owner)
	if err != nil {
		return 0, err
	}
	price, err := v.prices.GetPrice(ctx, pos.PoolAddress)
	if err != nil {
		return 0, fmt.Errorf("meteora: value position %s: %w", pos.PositionAddress, err)
	}

	var totalX, totalY uint64
	for _, b := range bins {
		totalX += b.AmountX
		totalY += b.AmountY
	}
	baseUSD := float64(totalX) / math.Pow10(pos.BaseDecimals) * price
	quoteUSD := float64(totalY) / math.Pow10(pos.QuoteDecimals)
	return baseUSD + quoteUSD, nil
}

// Compile-time interface check.
var _ domain.PositionValuer = (*Valuer)(nil)
