package store

import (
	"fmt"
	"time"

	"github.com/rustyeddy/scriptbot/market"
)

// UpsertKlines inserts or replaces closed candles for a symbol/interval.
func (s *Store) UpsertKlines(symbol string, interval market.Interval, candles []market.Candle) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("upsert klines: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO klines
		(symbol, interval, open_time, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("upsert klines: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		_, err := stmt.Exec(symbol, string(interval), c.OpenTime.UnixMilli(),
			c.Open, c.High, c.Low, c.Close, c.Volume)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("upsert klines: %w", err)
		}
	}
	return tx.Commit()
}

// Klines returns up to limit most recent candles, ordered by open time
// ascending. Cached candles are closed bars by definition.
func (s *Store) Klines(symbol string, interval market.Interval, limit int) ([]market.Candle, error) {
	rows, err := s.db.Query(`
		SELECT open_time, open, high, low, close, volume
		FROM (
			SELECT open_time, open, high, low, close, volume
			FROM klines WHERE symbol = ? AND interval = ?
			ORDER BY open_time DESC LIMIT ?
		) ORDER BY open_time ASC`,
		symbol, string(interval), limit)
	if err != nil {
		return nil, fmt.Errorf("read klines: %w", err)
	}
	defer rows.Close()

	var out []market.Candle
	for rows.Next() {
		var (
			openTime int64
			c        market.Candle
		)
		if err := rows.Scan(&openTime, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan kline: %w", err)
		}
		c.OpenTime = time.UnixMilli(openTime).UTC()
		c.Closed = true
		out = append(out, c)
	}
	return out, rows.Err()
}

// LastOpenTime returns the newest cached open time, or zero when the cache
// is empty.
func (s *Store) LastOpenTime(symbol string, interval market.Interval) (time.Time, error) {
	var openTime int64
	err := s.db.QueryRow(`
		SELECT COALESCE(MAX(open_time), 0) FROM klines
		WHERE symbol = ? AND interval = ?`,
		symbol, string(interval)).Scan(&openTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("last open time: %w", err)
	}
	if openTime == 0 {
		return time.Time{}, nil
	}
	return time.UnixMilli(openTime).UTC(), nil
}

// TrimKlines drops everything but the newest maxLength candles so the cache
// stays bounded.
func (s *Store) TrimKlines(symbol string, interval market.Interval, maxLength int) error {
	_, err := s.db.Exec(`
		DELETE FROM klines
		WHERE symbol = ? AND interval = ? AND open_time NOT IN (
			SELECT open_time FROM klines
			WHERE symbol = ? AND interval = ?
			ORDER BY open_time DESC LIMIT ?
		)`,
		symbol, string(interval), symbol, string(interval), maxLength)
	if err != nil {
		return fmt.Errorf("trim klines: %w", err)
	}
	return nil
}
