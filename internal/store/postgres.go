package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tradepulse/brokerage-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) GetHolding(ctx context.Context, accountID, instrument string) (*model.Holding, error) {
	h, err := scanHolding(s.pool.QueryRow(ctx,
		`SELECT account_id, instrument, quantity,
		        average_cost::TEXT, last_trade_price::TEXT,
		        day_change_pct::TEXT, net_change_pct::TEXT
		 FROM holdings WHERE account_id = $1 AND instrument = $2`,
		accountID, instrument))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, translateErr(fmt.Errorf("get holding %s/%s: %w", accountID, instrument, err))
	}
	return h, nil
}

func (s *PostgresStore) ListHoldings(ctx context.Context, accountID string) ([]model.Holding, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT account_id, instrument, quantity,
		        average_cost::TEXT, last_trade_price::TEXT,
		        day_change_pct::TEXT, net_change_pct::TEXT
		 FROM holdings WHERE account_id = $1 ORDER BY instrument`, accountID)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var holdings []model.Holding
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, err
		}
		holdings = append(holdings, *h)
	}
	return holdings, rows.Err()
}

// ApplyExecution wraps the holding upsert (or delete) and the order append
// in a single transaction. The holding row is locked FOR UPDATE first so a
// concurrent execution on the same pair blocks rather than losing updates.
func (s *PostgresStore) ApplyExecution(ctx context.Context, order *model.Order, holding *model.Holding, removeHolding bool) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return translateErr(err)
	}
	defer tx.Rollback(ctx)

	// Take the row lock up front; ErrNoRows here just means a fresh holding.
	var existing int64
	err = tx.QueryRow(ctx,
		`SELECT quantity FROM holdings
		 WHERE account_id = $1 AND instrument = $2 FOR UPDATE`,
		holding.AccountID, holding.Instrument).Scan(&existing)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return translateErr(err)
	}

	if removeHolding {
		_, err = tx.Exec(ctx,
			`DELETE FROM holdings WHERE account_id = $1 AND instrument = $2`,
			holding.AccountID, holding.Instrument)
	} else {
		_, err = tx.Exec(ctx,
			`INSERT INTO holdings (account_id, instrument, quantity, average_cost, last_trade_price, day_change_pct, net_change_pct)
			 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC)
			 ON CONFLICT (account_id, instrument) DO UPDATE SET
			     quantity = EXCLUDED.quantity,
			     average_cost = EXCLUDED.average_cost,
			     last_trade_price = EXCLUDED.last_trade_price,
			     day_change_pct = EXCLUDED.day_change_pct,
			     net_change_pct = EXCLUDED.net_change_pct`,
			holding.AccountID, holding.Instrument, holding.Quantity,
			holding.AverageCost.String(), holding.LastTradePrice.String(),
			holding.DayChangePct.String(), holding.NetChangePct.String())
	}
	if err != nil {
		return translateErr(err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO orders (id, account_id, instrument, quantity, price, side, created_at)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6, $7)`,
		order.ID, order.AccountID, order.Instrument, order.Quantity,
		order.Price.String(), order.Side, order.CreatedAt)
	if err != nil {
		return translateErr(err)
	}

	return translateErr(tx.Commit(ctx))
}

func (s *PostgresStore) ListOrders(ctx context.Context, accountID string) ([]model.Order, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, account_id, instrument, quantity, price::TEXT, side, created_at
		 FROM orders WHERE account_id = $1 ORDER BY created_at`, accountID)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		var o model.Order
		var priceS string
		if err := rows.Scan(&o.ID, &o.AccountID, &o.Instrument, &o.Quantity,
			&priceS, &o.Side, &o.CreatedAt); err != nil {
			return nil, err
		}
		if o.Price, err = parseDecimal(priceS, "price"); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (s *PostgresStore) ListPositions(ctx context.Context, accountID string) ([]model.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT account_id, instrument, quantity,
		        average_cost::TEXT, last_trade_price::TEXT,
		        day_change_pct::TEXT, net_change_pct::TEXT
		 FROM positions WHERE account_id = $1 ORDER BY instrument`, accountID)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var positions []model.Position
	for rows.Next() {
		var p model.Position
		var avgS, lastS, dayS, netS string
		if err := rows.Scan(&p.AccountID, &p.Instrument, &p.Quantity,
			&avgS, &lastS, &dayS, &netS); err != nil {
			return nil, err
		}
		if p.AverageCost, err = parseDecimal(avgS, "average_cost"); err != nil {
			return nil, err
		}
		if p.LastTradePrice, err = parseDecimal(lastS, "last_trade_price"); err != nil {
			return nil, err
		}
		if p.DayChangePct, err = parseDecimal(dayS, "day_change_pct"); err != nil {
			return nil, err
		}
		if p.NetChangePct, err = parseDecimal(netS, "net_change_pct"); err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

func (s *PostgresStore) UpsertPosition(ctx context.Context, p *model.Position) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO positions (account_id, instrument, quantity, average_cost, last_trade_price, day_change_pct, net_change_pct)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC)
		 ON CONFLICT (account_id, instrument) DO UPDATE SET
		     quantity = EXCLUDED.quantity,
		     average_cost = EXCLUDED.average_cost,
		     last_trade_price = EXCLUDED.last_trade_price,
		     day_change_pct = EXCLUDED.day_change_pct,
		     net_change_pct = EXCLUDED.net_change_pct`,
		p.AccountID, p.Instrument, p.Quantity,
		p.AverageCost.String(), p.LastTradePrice.String(),
		p.DayChangePct.String(), p.NetChangePct.String())
	return translateErr(err)
}

// rowScanner covers both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanHolding(row rowScanner) (*model.Holding, error) {
	var h model.Holding
	var avgS, lastS, dayS, netS string

	if err := row.Scan(&h.AccountID, &h.Instrument, &h.Quantity,
		&avgS, &lastS, &dayS, &netS); err != nil {
		return nil, err
	}

	var err error
	if h.AverageCost, err = parseDecimal(avgS, "average_cost"); err != nil {
		return nil, err
	}
	if h.LastTradePrice, err = parseDecimal(lastS, "last_trade_price"); err != nil {
		return nil, err
	}
	if h.DayChangePct, err = parseDecimal(dayS, "day_change_pct"); err != nil {
		return nil, err
	}
	if h.NetChangePct, err = parseDecimal(netS, "net_change_pct"); err != nil {
		return nil, err
	}

	return &h, nil
}

// parseDecimal converts a NUMERIC::TEXT column value, naming the column in
// the error so a corrupt row is diagnosable instead of silently zeroed.
func parseDecimal(s, column string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse %s %q: %w", column, s, err)
	}
	return d, nil
}

// translateErr maps driver-level failures onto the store error taxonomy:
// serialization failures and deadlocks become ErrConflict (retryable),
// connection-level failures become ErrUnavailable.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return err
	}
	if pgconn.Timeout(err) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
