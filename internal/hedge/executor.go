package hedge

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/alanyoungcy/dlmmbot/internal/domain"
	"github.com/google/uuid"
)

// Executor turns a sized hedge into an executed swap: quote, build, submit.
type Executor struct {
	router    domain.SwapRouter
	submitter domain.ExecutionService
	wallet    string
	log       *slog.Logger
}

func NewExecutor(router domain.SwapRouter, submitter domain.ExecutionService, wallet string, log *slog.Logger) *Executor {
	return &Executor{
		router:    router,
		submitter: submitter,
		wallet:    wallet,
		log:       log.With("component", "hedge_executor"),
	}
}

// Execute swaps the sized notional through the router and returns the history
// record for the confirmed transaction. A sell trades base token into quote;
// a buy spends quote (assumed USD-stable) to reacquire base.
func (e *Executor) Execute(ctx context.Context, pos *domain.Position, sz Sizing, currentPrice float64, slippageBps int) (domain.HedgeSwapRecord, error) {
	var inputMint, outputMint string
	var amount uint64

	switch sz.Direction {
	case domain.HedgeSell:
		inputMint, outputMint = pos.BaseMint, pos.QuoteMint
		amount = toSmallestUnits(sz.NotionalUSD/currentPrice, pos.BaseDecimals)
	case domain.HedgeBuy:
		inputMint, outputMint = pos.QuoteMint, pos.BaseMint
		amount = toSmallestUnits(sz.NotionalUSD, pos.QuoteDecimals)
	default:
		return domain.HedgeSwapRecord{}, fmt.Errorf("hedge: unknown direction %q", sz.Direction)
	}
	if amount == 0 {
		return domain.HedgeSwapRecord{}, fmt.Errorf("hedge: notional %.4f USD rounds to zero %s units", sz.NotionalUSD, inputMint)
	}

	quote, err := e.router.GetQuote(ctx, domain.QuoteRequest{
		InputMint:   inputMint,
		OutputMint:  outputMint,
		Amount:      amount,
		SlippageBps: slippageBps,
	})
	if err != nil {
		return domain.HedgeSwapRecord{}, fmt.Errorf("hedge: quote: %w", err)
	}

	tx, err := e.router.BuildSwapTransaction(ctx, quote, e.wallet)
	if err != nil {
		return domain.HedgeSwapRecord{}, fmt.Errorf("hedge: build swap: %w", err)
	}

	sig, err := e.submitter.Submit(ctx, tx)
	if err != nil {
		return domain.HedgeSwapRecord{}, fmt.Errorf("hedge: submit swap: %w", err)
	}

	e.log.Info("hedge swap confirmed",
		"position", pos.PositionAddress,
		"direction", sz.Direction,
		"amount_usd", sz.NotionalUSD,
		"price", currentPrice,
		"signature", sig)

	changePct := 0.0
	if pos.InitialPrice > 0 {
		changePct = (currentPrice - pos.InitialPrice) / pos.InitialPrice * 100
	}
	return domain.HedgeSwapRecord{
		ID:                   uuid.New().String(),
		Timestamp:            time.Now().UTC(),
		Direction:            sz.Direction,
		AmountUSD:            sz.NotionalUSD,
		Price:                currentPrice,
		ChangeFromInitialPct: changePct,
		Signature:            sig,
		InputMint:            inputMint,
		OutputMint:           outputMint,
	}, nil
}

func toSmallestUnits(amount float64, decimals int) uint64 {
	if amount <= 0 {
		return 0
	}
	return uint64(math.Round(amount * math.Pow10(decimals)))
}
