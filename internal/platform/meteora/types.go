package meteora

import (
	"strconv"

	"github.com/alanyoungcy/dlmmbot/internal/domain"
)

// APIPair represents a DLMM pair as returned by the pair endpoint. The USD
// price has shipped under different keys across API revisions, so every known
// spelling is captured and normalized through USDPrice.
type APIPair struct {
	Address     string `json:"address"`
	Name        string `json:"name"`
	MintX       string `json:"mint_x"`
	MintY       string `json:"mint_y"`
	BinStep     uint16 `json:"bin_step"`
	ActiveBinID int32  `json:"active_bin_id"`

	CurrentPrice *float64 `json:"current_price,omitempty"`
	Price        *float64 `json:"price,omitempty"`
	PriceUSD     *float64 `json:"price_usd,omitempty"`
	UsdPrice     *float64 `json:"usd_price,omitempty"`
}

// USDPrice normalizes the pair's price fields, checked in order of
// preference. It returns domain.ErrNoPrice when every candidate is absent or
// zero.
func (p *APIPair) USDPrice() (float64, error) {
	for _, candidate := range []*float64{p.CurrentPrice, p.PriceUSD, p.UsdPrice, p.Price} {
		if candidate != nil && *candidate != 0 {
			return *candidate, nil
		}
	}
	return 0, domain.ErrNoPrice
}

// ToActiveBin converts the pair's bin fields to the domain type.
func (p *APIPair) ToActiveBin() domain.ActiveBin {
	return domain.ActiveBin{BinID: p.ActiveBinID, BinStep: p.BinStep}
}

// APIPosition represents a position with its bin-level liquidity breakdown.
type APIPosition struct {
	Address string   `json:"address"`
	Owner   string   `json:"owner"`
	Bins    []APIBin `json:"bins"`
}

// APIBin is one bin of a position's liquidity. Amounts are smallest-unit
// integers encoded as strings, the usual Solana API convention.
type APIBin struct {
	BinID    int32   `json:"bin_id"`
	AmountX  string  `json:"amount_x"`
	AmountY  string  `json:"amount_y"`
	PriceUSD float64 `json:"price_usd"`
}

// ToDomain converts the position's bins, tolerating malformed amounts by
// treating them as zero.
func (p *APIPosition) ToDomain() []domain.PositionBin {
	bins := make([]domain.PositionBin, 0, len(p.Bins))
	for _, b := range p.Bins {
		bins = append(bins, domain.PositionBin{
			BinID:    b.BinID,
			AmountX:  parseAmount(b.AmountX),
			AmountY:  parseAmount(b.AmountY),
			PriceUSD: b.PriceUSD,
		})
	}
	return bins
}

func parseAmount(s string) uint64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// initializePositionRequest is the body for the position-initialize endpoint.
type initializePositionRequest struct {
	PoolAddress   string `json:"pool_address"`
	Owner         string `json:"owner"`
	RangeInterval int32  `json:"range_interval"`
	AmountX       string `json:"amount_x"`
	AmountY       string `json:"amount_y"`
}

// closePositionRequest is the body for the position-close endpoint.
type closePositionRequest struct {
	PoolAddress     string `json:"pool_address"`
	PositionAddress string `json:"position_address"`
	Owner           string `json:"owner"`
}

// transactionResponse carries a built, unsigned transaction back from the
// API. PositionAddress is set only for initialize responses.
type transactionResponse struct {
	Transaction     string `json:"transaction"`
	PositionAddress string `json:"position_address,omitempty"`
}
