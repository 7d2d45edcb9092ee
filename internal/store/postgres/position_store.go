package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/dlmmbot/internal/domain"
)

const positionCols = `position_address, pool_address, owner,
	base_mint, quote_mint, base_decimals, quote_decimals,
	initial_price, current_price, lower_bound_price, upper_bound_price,
	min_bin_id, max_bin_id, bin_step, status,
	initial_amount_x, initial_amount_y,
	opened_at, updated_at, hedge_history`

// PositionStore persists positions in the positions table. Hedge history is
// stored as a JSONB column alongside the row.
type PositionStore struct {
	client *Client
}

func NewPositionStore(client *Client) *PositionStore {
	return &PositionStore{client: client}
}

// Load returns every persisted position, oldest first.
func (s *PositionStore) Load(ctx context.Context) ([]domain.Position, error) {
	rows, err := s.client.Pool().Query(ctx,
		"SELECT "+positionCols+" FROM positions ORDER BY opened_at",
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: load positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: load positions: %w", err)
	}
	return positions, nil
}

// Get returns a single position by its position address.
func (s *PositionStore) Get(ctx context.Context, positionAddress string) (domain.Position, error) {
	rows, err := s.client.Pool().Query(ctx,
		"SELECT "+positionCols+" FROM positions WHERE position_address = $1",
		positionAddress,
	)
	if err != nil {
		return domain.Position{}, fmt.Errorf("postgres: get position: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return domain.Position{}, fmt.Errorf("postgres: get position: %w", err)
		}
		return domain.Position{}, fmt.Errorf("postgres: position %s: %w", positionAddress, domain.ErrNotFound)
	}
	return scanPosition(rows)
}

// Save upserts a position keyed by position_address.
func (s *PositionStore) Save(ctx context.Context, pos domain.Position) error {
	history, err := json.Marshal(pos.HedgeHistory)
	if err != nil {
		return fmt.Errorf("postgres: marshal hedge history: %w", err)
	}
	if pos.HedgeHistory == nil {
		history = []byte("[]")
	}

	const q = `
		INSERT INTO positions (` + positionCols + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		        $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (position_address) DO UPDATE SET
			pool_address      = EXCLUDED.pool_address,
			owner             = EXCLUDED.owner,
			base_mint         = EXCLUDED.base_mint,
			quote_mint        = EXCLUDED.quote_mint,
			base_decimals     = EXCLUDED.base_decimals,
			quote_decimals    = EXCLUDED.quote_decimals,
			initial_price     = EXCLUDED.initial_price,
			current_price     = EXCLUDED.current_price,
			lower_bound_price = EXCLUDED.lower_bound_price,
			upper_bound_price = EXCLUDED.upper_bound_price,
			min_bin_id        = EXCLUDED.min_bin_id,
			max_bin_id        = EXCLUDED.max_bin_id,
			bin_step          = EXCLUDED.bin_step,
			status            = EXCLUDED.status,
			initial_amount_x  = EXCLUDED.initial_amount_x,
			initial_amount_y  = EXCLUDED.initial_amount_y,
			opened_at         = EXCLUDED.opened_at,
			updated_at        = EXCLUDED.updated_at,
			hedge_history     = EXCLUDED.hedge_history`

	_, err = s.client.Pool().Exec(ctx, q,
		pos.PositionAddress, pos.PoolAddress, pos.Owner,
		pos.BaseMint, pos.QuoteMint, pos.BaseDecimals, pos.QuoteDecimals,
		pos.InitialPrice, pos.CurrentPrice, pos.LowerBoundPrice, pos.UpperBoundPrice,
		pos.MinBinID, pos.MaxBinID, int32(pos.BinStep), string(pos.Status),
		int64(pos.InitialAmountX), int64(pos.InitialAmountY),
		pos.OpenedAt, pos.UpdatedAt, history,
	)
	if err != nil {
		return fmt.Errorf("postgres: save position %s: %w", pos.PositionAddress, err)
	}
	return nil
}

// Remove deletes a position. Removing an absent position is a no-op.
func (s *PositionStore) Remove(ctx context.Context, positionAddress string) error {
	_, err := s.client.Pool().Exec(ctx,
		"DELETE FROM positions WHERE position_address = $1", positionAddress,
	)
	if err != nil {
		return fmt.Errorf("postgres: remove position %s: %w", positionAddress, err)
	}
	return nil
}

func scanPosition(row pgx.Rows) (domain.Position, error) {
	var (
		pos              domain.Position
		binStep          int32
		status           string
		amountX, amountY int64
		history          []byte
	)
	err := row.Scan(
		&pos.PositionAddress, &pos.PoolAddress, &pos.Owner,
		&pos.BaseMint, &pos.QuoteMint, &pos.BaseDecimals, &pos.QuoteDecimals,
		&pos.InitialPrice, &pos.CurrentPrice, &pos.LowerBoundPrice, &pos.UpperBoundPrice,
		&pos.MinBinID, &pos.MaxBinID, &binStep, &status,
		&amountX, &amountY,
		&pos.OpenedAt, &pos.UpdatedAt, &history,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, fmt.Errorf("postgres: scan position: %w", err)
	}
	pos.BinStep = uint16(binStep)
	pos.Status = domain.PositionStatus(status)
	pos.InitialAmountX = uint64(amountX)
	pos.InitialAmountY = uint64(amountY)
	if len(history) > 0 {
		if err := json.Unmarshal(history, &pos.HedgeHistory); err != nil {
			return domain.Position{}, fmt.Errorf("postgres: decode hedge history for %s: %w", pos.PositionAddress, err)
		}
	}
	return pos, nil
}

// Compile-time interface check.
var _ domain.PositionStore = (*PositionStore)(nil)
