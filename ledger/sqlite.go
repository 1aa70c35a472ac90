package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/tradedesk/market"
	"github.com/rustyeddy/tradedesk/pkg/id"
)

type SQLite struct {
	db  *sql.DB
	ids id.Generator
	now func() time.Time
}

type Option func(*SQLite)

func WithIDs(g id.Generator) Option { return func(s *SQLite) { s.ids = g } }

func WithClock(now func() time.Time) Option { return func(s *SQLite) { s.now = now } }

func NewSQLite(path string, opts ...Option) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create ledger schema: %w", err)
	}

	s := &SQLite{db: db, ids: id.New, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Create stores t as an open trade, assigning an ID and open time when unset.
func (s *SQLite) Create(ctx context.Context, t Trade) (Trade, error) {
	if t.ID == "" {
		t.ID = s.ids()
	}
	if t.OpenedAt.IsZero() {
		t.OpenedAt = s.now()
	}
	t.Status = StatusOpen
	t.ClosePrice = 0
	t.ClosedAt = time.Time{}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades
		(id, client_id, broker_id, symbol, side, volume, lot, entry_price, take_profit, stop_loss, category, demo, status, opened_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ClientID, t.BrokerID, t.Symbol, t.Side.String(), t.Volume, t.Lot, t.EntryPrice,
		nullable(t.TakeProfit), nullable(t.StopLoss), string(t.Category), t.Demo, string(t.Status),
		t.OpenedAt.UnixMilli(),
	)
	if err != nil {
		return Trade{}, fmt.Errorf("create trade: %w", err)
	}
	return t, nil
}

// Update changes the editable fields of an open trade: volume, take profit,
// stop loss and broker.
func (s *SQLite) Update(ctx context.Context, t Trade) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE trades SET volume = ?, take_profit = ?, stop_loss = ?, broker_id = ?
		WHERE id = ? AND status = ?`,
		t.Volume, nullable(t.TakeProfit), nullable(t.StopLoss), t.BrokerID, t.ID, string(StatusOpen),
	)
	if err != nil {
		return fmt.Errorf("update trade %s: %w", t.ID, err)
	}
	return s.checkOpen(ctx, res, t.ID)
}

// CloseTrade records the close price and time of an open trade.
func (s *SQLite) CloseTrade(ctx context.Context, tradeID string, price float64, at time.Time) (Trade, error) {
	if at.IsZero() {
		at = s.now()
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE trades SET status = ?, close_price = ?, closed_at = ?
		WHERE id = ? AND status = ?`,
		string(StatusClosed), price, at.UnixMilli(), tradeID, string(StatusOpen),
	)
	if err != nil {
		return Trade{}, fmt.Errorf("close trade %s: %w", tradeID, err)
	}
	if err := s.checkOpen(ctx, res, tradeID); err != nil {
		return Trade{}, err
	}
	return s.Get(ctx, tradeID)
}

func (s *SQLite) checkOpen(ctx context.Context, res sql.Result, tradeID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("trade %s: %w", tradeID, err)
	}
	if n > 0 {
		return nil
	}
	if _, err := s.Get(ctx, tradeID); err != nil {
		return err
	}
	return fmt.Errorf("trade %s: %w", tradeID, ErrAlreadyClosed)
}

const columns = `id, client_id, broker_id, symbol, side, volume, lot, entry_price, close_price,
	take_profit, stop_loss, category, demo, status, opened_at, closed_at`

func (s *SQLite) Get(ctx context.Context, tradeID string) (Trade, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM trades WHERE id = ?`, tradeID)
	t, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Trade{}, fmt.Errorf("trade %s: %w", tradeID, ErrNotFound)
	}
	if err != nil {
		return Trade{}, fmt.Errorf("get trade %s: %w", tradeID, err)
	}
	return t, nil
}

// ListByClient returns the client's trades, newest first.
func (s *SQLite) ListByClient(ctx context.Context, clientID string) ([]Trade, error) {
	return s.list(ctx, `client_id = ?`, clientID)
}

// ListByBroker returns the broker's trades, newest first.
func (s *SQLite) ListByBroker(ctx context.Context, brokerID string) ([]Trade, error) {
	return s.list(ctx, `broker_id = ?`, brokerID)
}

func (s *SQLite) list(ctx context.Context, where string, arg any) ([]Trade, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+columns+` FROM trades WHERE `+where+` ORDER BY opened_at DESC, id DESC`, arg)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	defer rows.Close()

	var out []Trade
	for rows.Next() {
		t, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error { return s.db.Close() }

type scanner interface {
	Scan(dest ...any) error
}

func scan(r scanner) (Trade, error) {
	var (
		t              Trade
		side, cat      string
		status         string
		tp, sl         sql.NullFloat64
		opened, closed int64
	)
	err := r.Scan(&t.ID, &t.ClientID, &t.BrokerID, &t.Symbol, &side, &t.Volume, &t.Lot,
		&t.EntryPrice, &t.ClosePrice, &tp, &sl, &cat, &t.Demo, &status, &opened, &closed)
	if err != nil {
		return Trade{}, err
	}
	if t.Side, err = market.ParseSide(side); err != nil {
		return Trade{}, err
	}
	t.Category = market.Category(cat)
	t.Status = Status(status)
	if tp.Valid {
		t.TakeProfit = &tp.Float64
	}
	if sl.Valid {
		t.StopLoss = &sl.Float64
	}
	t.OpenedAt = time.UnixMilli(opened).UTC()
	if closed > 0 {
		t.ClosedAt = time.UnixMilli(closed).UTC()
	}
	return t, nil
}

func nullable(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
