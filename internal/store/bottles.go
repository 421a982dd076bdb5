package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cellar/internal/services"
)

// BottleBySlot returns the bottle occupying slot. The boolean is false when the
// slot is free.
func (t *Tx) BottleBySlot(ctx context.Context, slot string) (Bottle, bool, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+bottleColumns+` FROM bottles WHERE slot = ?`, slot)
	bottle, err := scanBottle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Bottle{}, false, nil
	}
	if err != nil {
		return Bottle{}, false, fmt.Errorf("select bottle by slot: %w", err)
	}
	return bottle, true, nil
}

// InsertBottle records a bottle of wineID. An occupied slot surfaces as a
// unique violation.
func (t *Tx) InsertBottle(ctx context.Context, wineID int64, price *float64, slot *string) (Bottle, error) {
	ts := t.timestamp()
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO bottles (wine_id, purchase_price, slot, created_at) VALUES (?, ?, ?, ?)`,
		wineID, nullableFloatPtr(price), nullableStringPtr(slot), ts,
	)
	if err != nil {
		return Bottle{}, fmt.Errorf("insert bottle: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Bottle{}, fmt.Errorf("last insert id: %w", err)
	}
	row := t.tx.QueryRowContext(ctx, `SELECT `+bottleColumns+` FROM bottles WHERE id = ?`, id)
	bottle, err := scanBottle(row)
	if err != nil {
		return Bottle{}, fmt.Errorf("reload bottle: %w", err)
	}
	return bottle, nil
}

// ListBottlesForWine returns the bottles of wineID ordered by id. An unknown
// wine yields services.ErrNotFound.
func (s *Store) ListBottlesForWine(ctx context.Context, wineID int64) ([]Bottle, error) {
	ctx = ensureContext(ctx)
	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM wines WHERE id = ?`, wineID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check wine: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("wine %d: %w", wineID, services.ErrNotFound)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bottleColumns+` FROM bottles WHERE wine_id = ? ORDER BY id`, wineID)
	if err != nil {
		return nil, fmt.Errorf("list bottles: %w", err)
	}
	defer rows.Close()

	bottles := make([]Bottle, 0)
	for rows.Next() {
		bottle, err := scanBottle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bottle: %w", err)
		}
		bottles = append(bottles, bottle)
	}
	return bottles, rows.Err()
}

// DeleteBottle removes one bottle. An unknown id yields services.ErrNotFound.
func (s *Store) DeleteBottle(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM bottles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete bottle: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete bottle rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("bottle %d: %w", id, services.ErrNotFound)
	}
	return nil
}
