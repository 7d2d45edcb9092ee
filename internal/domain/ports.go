package domain

import (
	"context"
	"time"
)

// ActiveBin is the pool's current active bin and step size.
type ActiveBin struct {
	BinID   int32
	BinStep uint16
}

// PositionBin is one bin of a position's on-chain liquidity distribution,
// amounts in smallest units.
type PositionBin struct {
	BinID   int32
	AmountX uint64
	AmountY uint64
	// PriceUSD is the per-bin USD price when the provider reports it; zero
	// otherwise.
	PriceUSD float64
}

// PoolDataProvider reads pool and position state from the DLMM SDK/API.
// Implementations must return ErrPositionNotFound (wrapped is fine) when a
// position has been closed externally, so callers can distinguish the
// terminal condition from transient I/O failures.
type PoolDataProvider interface {
	GetActiveBin(ctx context.Context, poolAddress string) (ActiveBin, error)
	GetPositionBins(ctx context.Context, poolAddress, positionAddress, owner string) ([]PositionBin, error)
}

// LiquidityManager builds open/close instructions for range positions. The
// returned transactions are base64-encoded candidates to be signed and
// submitted through the ExecutionService.
type LiquidityManager interface {
	BuildOpenPosition(ctx context.Context, req OpenPositionRequest) (TxCandidate, error)
	BuildClosePosition(ctx context.Context, poolAddress, positionAddress, owner string) (TxCandidate, error)
}

// OpenPositionRequest describes a new range position to be opened.
type OpenPositionRequest struct {
	PoolAddress string
	Owner       string
	// RangeInterval is the half-width in bins around the active bin.
	RangeInterval int32
	AmountX       uint64
	AmountY       uint64
}

// TxCandidate is an unsigned or partially signed transaction produced by a
// collaborator, plus the metadata callers need to track it.
type TxCandidate struct {
	// Base64 is the wire transaction, base64-encoded.
	Base64 string
	// PositionAddress is set for open-position transactions: the address
	// the new position account will live at.
	PositionAddress string
}

// PriceSource returns an authoritative USD price for a pool. Implementations
// return ErrNoPrice when the response carries no usable value.
type PriceSource interface {
	GetUSDPrice(ctx context.Context, poolAddress string) (float64, error)
}

// PriceCache caches pool prices with a timestamp so callers can apply their
// own freshness window.
type PriceCache interface {
	SetPrice(ctx context.Context, poolAddress string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, poolAddress string) (float64, time.Time, error)
}

// QuoteRequest asks the swap router for a quote in smallest units.
type QuoteRequest struct {
	InputMint   string
	OutputMint  string
	Amount      uint64
	SlippageBps int
}

// SwapQuote is an opaque quote from the router. Raw is passed back verbatim
// when building the swap transaction.
type SwapQuote struct {
	InputMint  string
	OutputMint string
	InAmount   uint64
	OutAmount  uint64
	Raw        []byte
}

// SwapRouter quotes and builds hedge swaps.
type SwapRouter interface {
	GetQuote(ctx context.Context, req QuoteRequest) (SwapQuote, error)
	BuildSwapTransaction(ctx context.Context, quote SwapQuote, wallet string) (TxCandidate, error)
}

// ExecutionService signs, submits, and confirms transactions on-chain.
// Simulation or validation failures before submission are surfaced as a
// *SimulationError carrying program logs.
type ExecutionService interface {
	Submit(ctx context.Context, tx TxCandidate) (signature string, err error)
}

// BalanceReader returns smallest-unit balances for a mint/owner pair.
// A missing token account is a valid zero-balance signal, not an error.
type BalanceReader interface {
	GetBalance(ctx context.Context, owner, mint string) (uint64, error)
}

// PositionValuer estimates the current USD value of a position from its
// bin-level token balances.
type PositionValuer interface {
	PositionValueUSD(ctx context.Context, pos *Position) (float64, error)
}

// LockManager serializes work on a shared key. The in-process default is a
// plain mutex map; a Redis implementation exists for multi-instance
// deployments.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// HistoryArchiver receives hedge records evicted from a position's capped
// history so they can be persisted out of band.
type HistoryArchiver interface {
	Archive(ctx context.Context, positionAddress string, records []HedgeSwapRecord) error
}
