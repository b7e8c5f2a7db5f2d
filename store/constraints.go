package store

import (
	"fmt"
	"time"

	"github.com/rustyeddy/scriptbot/market"
)

// SaveConstraints upserts symbol constraints with a refresh stamp.
func (s *Store) SaveConstraints(constraints map[string]market.SymbolConstraints, now time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("save constraints: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO symbol_constraints
		(symbol, min_qty, step_size, quantity_precision, min_notional, price_precision, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("save constraints: %w", err)
	}
	defer stmt.Close()

	for symbol, c := range constraints {
		_, err := stmt.Exec(symbol, c.MinQty, c.StepSize, c.QuantityPrecision,
			c.MinNotional, c.PricePrecision, now.Unix())
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("save constraints %s: %w", symbol, err)
		}
	}
	return tx.Commit()
}

// Constraints returns the cached constraints for a symbol.
func (s *Store) Constraints(symbol string) (market.SymbolConstraints, bool, error) {
	var c market.SymbolConstraints
	err := s.db.QueryRow(`
		SELECT min_qty, step_size, quantity_precision, min_notional, price_precision
		FROM symbol_constraints WHERE symbol = ?`, symbol).
		Scan(&c.MinQty, &c.StepSize, &c.QuantityPrecision, &c.MinNotional, &c.PricePrecision)
	if err != nil {
		if isNoRows(err) {
			return market.SymbolConstraints{}, false, nil
		}
		return market.SymbolConstraints{}, false, fmt.Errorf("read constraints: %w", err)
	}
	return c, true, nil
}

// ConstraintsUpdatedAt returns the oldest refresh stamp across all cached
// symbols, or zero when nothing is cached.
func (s *Store) ConstraintsUpdatedAt() (time.Time, error) {
	var stamp int64
	err := s.db.QueryRow(`SELECT COALESCE(MIN(updated_at), 0) FROM symbol_constraints`).Scan(&stamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("constraints stamp: %w", err)
	}
	if stamp == 0 {
		return time.Time{}, nil
	}
	return time.Unix(stamp, 0).UTC(), nil
}

// SaveLeverageTiers replaces the cached brackets for a symbol.
func (s *Store) SaveLeverageTiers(symbol string, tiers []market.LeverageTier, now time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("save tiers: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM leverage_tiers WHERE symbol = ?`, symbol); err != nil {
		tx.Rollback()
		return fmt.Errorf("save tiers: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO leverage_tiers
		(symbol, tier, notional_floor, max_notional, maint_amount, mmr, max_leverage, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("save tiers: %w", err)
	}
	defer stmt.Close()

	for i, t := range tiers {
		_, err := stmt.Exec(symbol, i, t.NotionalFloor, t.MaxNotional,
			t.MaintAmount, t.MMR, t.MaxLeverage, now.Unix())
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("save tier %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// LeverageTiers returns the cached brackets ordered ascending by ceiling.
func (s *Store) LeverageTiers(symbol string) ([]market.LeverageTier, error) {
	rows, err := s.db.Query(`
		SELECT notional_floor, max_notional, maint_amount, mmr, max_leverage
		FROM leverage_tiers WHERE symbol = ? ORDER BY tier ASC`, symbol)
	if err != nil {
		return nil, fmt.Errorf("read tiers: %w", err)
	}
	defer rows.Close()

	var out []market.LeverageTier
	for rows.Next() {
		var t market.LeverageTier
		if err := rows.Scan(&t.NotionalFloor, &t.MaxNotional, &t.MaintAmount, &t.MMR, &t.MaxLeverage); err != nil {
			return nil, fmt.Errorf("scan tier: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// TiersUpdatedAt returns the refresh stamp for a symbol's brackets, or zero
// when none are cached.
func (s *Store) TiersUpdatedAt(symbol string) (time.Time, error) {
	var stamp int64
	err := s.db.QueryRow(`
		SELECT COALESCE(MAX(updated_at), 0) FROM leverage_tiers WHERE symbol = ?`,
		symbol).Scan(&stamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("tiers stamp: %w", err)
	}
	if stamp == 0 {
		return time.Time{}, nil
	}
	return time.Unix(stamp, 0).UTC(), nil
}
