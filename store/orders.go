package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/scriptbot/internal/id"
)

// OrderRecord is one placed order as logged by the trade placer. StopLoss
// and TakeProfit are zero when no exit order was attached.
type OrderRecord struct {
	OrderID    string
	Symbol     string
	Side       string
	Quantity   float64
	Notional   float64
	Margin     float64
	Leverage   float64
	StopLoss   float64
	TakeProfit float64
	PlacedAt   time.Time
}

// OrderLog records placed orders. *Store implements it.
type OrderLog interface {
	RecordOrder(OrderRecord) error
}

// RecordOrder logs a placed order. A missing id or timestamp is filled in.
func (s *Store) RecordOrder(rec OrderRecord) error {
	if rec.OrderID == "" {
		rec.OrderID = id.New()
	}
	if rec.PlacedAt.IsZero() {
		rec.PlacedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO orders
		(order_id, symbol, side, quantity, notional, margin, leverage, stop_loss, take_profit, placed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.OrderID, rec.Symbol, rec.Side, rec.Quantity, rec.Notional,
		rec.Margin, rec.Leverage, rec.StopLoss, rec.TakeProfit, rec.PlacedAt)
	if err != nil {
		return fmt.Errorf("record order: %w", err)
	}
	return nil
}

// Orders returns the most recent placed orders, newest first.
func (s *Store) Orders(limit int) ([]OrderRecord, error) {
	rows, err := s.db.Query(`
		SELECT order_id, symbol, side, quantity, notional, margin, leverage, stop_loss, take_profit, placed_at
		FROM orders ORDER BY placed_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("read orders: %w", err)
	}
	defer rows.Close()

	var out []OrderRecord
	for rows.Next() {
		var rec OrderRecord
		err := rows.Scan(&rec.OrderID, &rec.Symbol, &rec.Side, &rec.Quantity,
			&rec.Notional, &rec.Margin, &rec.Leverage, &rec.StopLoss, &rec.TakeProfit, &rec.PlacedAt)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
