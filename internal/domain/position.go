// Package domain defines the core entities of the DLMM hedging bot: range
// positions, hedge records, decisions, and the interfaces implemented by the
// persistence and platform layers.
package domain

import "time"

// PositionStatus tracks the lifecycle of a range position.
type PositionStatus string

const (
	PositionStatusActive PositionStatus = "active"
	PositionStatusClosed PositionStatus = "closed"
	// PositionStatusPending marks a position whose opening transaction has
	// been submitted but not yet confirmed on-chain.
	PositionStatusPending PositionStatus = "pending"
)

// MaxHedgeHistory caps the number of hedge records kept on a position.
// Older records are evicted oldest-first and may be archived externally.
const MaxHedgeHistory = 100

// Position is a range-bound liquidity position on a DLMM pool.
type Position struct {
	// PoolAddress is the DLMM pair account the liquidity sits in.
	PoolAddress string
	// PositionAddress is the on-chain position account; it is the identity
	// used for hedge scheduling, locking, and cool-downs.
	PositionAddress string
	// Owner is the wallet that holds the position.
	Owner string

	// BaseMint is the token X mint (the volatile leg being hedged).
	BaseMint string
	// QuoteMint is the token Y mint (typically a USD stable).
	QuoteMint     string
	BaseDecimals  int
	QuoteDecimals int

	// InitialPrice is the USD price at open. Immutable.
	InitialPrice float64
	// CurrentPrice is refreshed every monitoring tick.
	CurrentPrice float64
	// LowerBoundPrice and UpperBoundPrice are the USD bounds derived from
	// the bin range. Invariant: LowerBoundPrice < UpperBoundPrice.
	LowerBoundPrice float64
	UpperBoundPrice float64

	// MinBinID and MaxBinID delimit the range on the pool's price lattice.
	// Invariant: MinBinID <= MaxBinID.
	MinBinID int32
	MaxBinID int32
	// BinStep is the pool's fixed bin step in basis points.
	BinStep uint16

	Status PositionStatus

	// InitialAmountX and InitialAmountY are the funding snapshot in
	// smallest units, used to size a replacement position identically.
	InitialAmountX uint64
	InitialAmountY uint64

	OpenedAt  time.Time
	UpdatedAt time.Time

	// HedgeHistory is an append-only record of executed hedges, capped at
	// MaxHedgeHistory entries, oldest first.
	HedgeHistory []HedgeSwapRecord
}

// AppendHedge appends a hedge record, evicting the oldest entries beyond
// MaxHedgeHistory. It returns the evicted records (oldest first) so callers
// can archive them.
func (p *Position) AppendHedge(rec HedgeSwapRecord) []HedgeSwapRecord {
	p.HedgeHistory = append(p.HedgeHistory, rec)
	if len(p.HedgeHistory) <= MaxHedgeHistory {
		return nil
	}
	n := len(p.HedgeHistory) - MaxHedgeHistory
	evicted := make([]HedgeSwapRecord, n)
	copy(evicted, p.HedgeHistory[:n])
	p.HedgeHistory = append(p.HedgeHistory[:0], p.HedgeHistory[n:]...)
	return evicted
}

// RangeInterval derives the half-width of the bin range, used when sizing a
// replacement position. The result is clamped to [1, 100].
func (p *Position) RangeInterval() int32 {
	interval := (p.MaxBinID - p.MinBinID + 1) / 2
	if interval < 1 {
		interval = 1
	}
	if interval > 100 {
		interval = 100
	}
	return interval
}

// InRange reports whether price sits strictly inside the USD bounds.
func (p *Position) InRange(price float64) bool {
	return price > p.LowerBoundPrice && price < p.UpperBoundPrice
}

// HedgeDirection is the side of a hedge swap relative to the base token.
type HedgeDirection string

const (
	// HedgeBuy buys the base token back (price rose since the anchor).
	HedgeBuy HedgeDirection = "buy"
	// HedgeSell sells the base token (price fell since the anchor).
	HedgeSell HedgeDirection = "sell"
)

// HedgeSwapRecord is an immutable record of one executed hedge swap.
type HedgeSwapRecord struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Direction HedgeDirection `json:"direction"`
	// AmountUSD is the executed hedge notional in USD.
	AmountUSD float64 `json:"amount_usd"`
	// Price is the pool price at execution time.
	Price float64 `json:"price"`
	// ChangeFromInitialPct is the percent change from the position's
	// initial price at execution time.
	ChangeFromInitialPct float64 `json:"change_from_initial_pct"`
	// Signature is the confirmed transaction signature.
	Signature  string `json:"signature"`
	InputMint  string `json:"input_mint"`
	OutputMint string `json:"output_mint"`
}
