package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"cellar/internal/services"
)

// WineByUPC returns the wine carrying upc. The boolean is false when no such
// wine exists.
func (t *Tx) WineByUPC(ctx context.Context, upc string) (Wine, bool, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+wineColumns+` FROM wines WHERE upc = ?`, upc)
	wine, err := scanWine(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Wine{}, false, nil
	}
	if err != nil {
		return Wine{}, false, fmt.Errorf("select wine by upc: %w", err)
	}
	return wine, true, nil
}

// InsertPlaceholderWine creates a wine carrying only upc. A concurrent insert
// of the same upc surfaces as a unique violation (see IsUniqueViolation).
func (t *Tx) InsertPlaceholderWine(ctx context.Context, upc string) (int64, error) {
	ts := t.timestamp()
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO wines (upc, created_at, updated_at) VALUES (?, ?, ?)`,
		upc, ts, ts,
	)
	if err != nil {
		return 0, fmt.Errorf("insert placeholder wine: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// WineByID returns the wine with id or an error wrapping services.ErrNotFound.
func (t *Tx) WineByID(ctx context.Context, id int64) (Wine, error) {
	return wineByID(ctx, t.tx, id)
}

// UpdateWineFields applies a manual edit to the wine with id.
func (t *Tx) UpdateWineFields(ctx context.Context, id int64, patch WinePatch) error {
	return updateWineFields(ctx, t.tx, id, patch, t.timestamp())
}

func wineByID(ctx context.Context, q queryer, id int64) (Wine, error) {
	row := q.QueryRowContext(ctx, `SELECT `+wineColumns+` FROM wines WHERE id = ?`, id)
	wine, err := scanWine(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Wine{}, fmt.Errorf("wine %d: %w", id, services.ErrNotFound)
	}
	if err != nil {
		return Wine{}, fmt.Errorf("select wine: %w", err)
	}
	return wine, nil
}

func updateWineFields(ctx context.Context, q queryer, id int64, patch WinePatch, timestamp string) error {
	sets := make([]string, 0, 10)
	args := make([]any, 0, 11)
	add := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if patch.UPC != nil {
		add("upc", nullableStringPtr(patch.UPC))
	}
	if patch.Producer != nil {
		add("producer", nullableStringPtr(patch.Producer))
	}
	if patch.Label != nil {
		add("label", nullableStringPtr(patch.Label))
	}
	switch {
	case patch.ClearVintage:
		add("vintage", nil)
	case patch.Vintage != nil:
		add("vintage", *patch.Vintage)
	}
	if patch.Region != nil {
		add("region", nullableStringPtr(patch.Region))
	}
	if patch.Country != nil {
		add("country", nullableStringPtr(patch.Country))
	}
	switch {
	case patch.ClearDrinkFrom:
		add("drink_from", nil)
	case patch.DrinkFrom != nil:
		add("drink_from", nullableDate(patch.DrinkFrom))
	}
	switch {
	case patch.ClearDrinkTo:
		add("drink_to", nil)
	case patch.DrinkTo != nil:
		add("drink_to", nullableDate(patch.DrinkTo))
	}
	if patch.CriticData != nil {
		add("critic_data", nullableJSON(patch.CriticData))
	}
	if len(sets) == 0 {
		_, err := wineByID(ctx, q, id)
		return err
	}
	add("updated_at", timestamp)
	args = append(args, id)

	res, err := q.ExecContext(ctx,
		`UPDATE wines SET `+strings.Join(sets, ", ")+` WHERE id = ?`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("update wine: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update wine rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("wine %d: %w", id, services.ErrNotFound)
	}
	return nil
}

// GetWine returns a snapshot of the wine with id.
func (s *Store) GetWine(ctx context.Context, id int64) (Wine, error) {
	return wineByID(ensureContext(ctx), s.db, id)
}

// ListWines returns wines matching filter with their bottle counts, newest first.
func (s *Store) ListWines(ctx context.Context, filter WineFilter) ([]WineListing, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + prefixColumns("w", wineColumns) + `, COUNT(b.id)
        FROM wines w LEFT JOIN bottles b ON b.wine_id = w.id`
	var (
		where []string
		args  []any
	)
	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern := "%" + q + "%"
		where = append(where, `(w.upc LIKE ? OR w.producer LIKE ? OR w.label LIKE ? OR w.region LIKE ? OR w.country LIKE ?)`)
		args = append(args, pattern, pattern, pattern, pattern, pattern)
	}
	if filter.PlaceholdersOnly {
		where = append(where, `w.upc IS NOT NULL AND w.producer IS NULL AND w.label IS NULL AND w.vintage IS NULL AND w.region IS NULL AND w.country IS NULL`)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " GROUP BY w.id ORDER BY w.id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, max(filter.Offset, 0))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list wines: %w", err)
	}
	defer rows.Close()

	var listings []WineListing
	for rows.Next() {
		var count int
		wine, err := scanWine(appendScanner{rows: rows, extra: []any{&count}})
		if err != nil {
			return nil, fmt.Errorf("scan wine: %w", err)
		}
		listings = append(listings, WineListing{Wine: wine, BottleCount: count})
	}
	return listings, rows.Err()
}

// UpdateWine applies a manual edit and returns the updated snapshot. A UPC
// already used by another wine yields services.ErrConflict.
func (s *Store) UpdateWine(ctx context.Context, id int64, patch WinePatch) (Wine, error) {
	var updated Wine
	err := s.WithTx(ctx, func(tx *Tx) error {
		if err := tx.UpdateWineFields(ctx, id, patch); err != nil {
			return err
		}
		var err error
		updated, err = tx.WineByID(ctx, id)
		return err
	})
	if err != nil {
		if IsUniqueViolation(err) {
			return Wine{}, fmt.Errorf("wine %d upc already in use: %w", id, services.ErrConflict)
		}
		return Wine{}, err
	}
	return updated, nil
}

// PatchWineDescriptors merges d into the wine with id in its own transaction.
// Blank values are skipped so existing data is never replaced by nothing.
// The returned boolean reports whether any column changed.
func (s *Store) PatchWineDescriptors(ctx context.Context, id int64, d Descriptors, mode PatchMode) (Wine, bool, error) {
	var (
		result  Wine
		changed bool
	)
	err := s.WithTx(ctx, func(tx *Tx) error {
		current, err := tx.WineByID(ctx, id)
		if err != nil {
			return err
		}
		patch := descriptorPatch(current, d, mode)
		if patch.IsEmpty() {
			result, changed = current, false
			return nil
		}
		if err := tx.UpdateWineFields(ctx, id, patch); err != nil {
			return err
		}
		result, err = tx.WineByID(ctx, id)
		changed = true
		return err
	})
	if err != nil {
		return Wine{}, false, err
	}
	return result, changed, nil
}

func descriptorPatch(current Wine, d Descriptors, mode PatchMode) WinePatch {
	var patch WinePatch
	pick := func(existing *string, incoming string) *string {
		incoming = strings.TrimSpace(incoming)
		if incoming == "" {
			return nil
		}
		if existing != nil {
			if mode == PatchFillMissing || *existing == incoming {
				return nil
			}
		}
		return &incoming
	}
	patch.Producer = pick(current.Producer, d.Producer)
	patch.Label = pick(current.Label, d.Label)
	patch.Region = pick(current.Region, d.Region)
	patch.Country = pick(current.Country, d.Country)
	if d.Vintage != nil {
		switch {
		case current.Vintage == nil:
			patch.Vintage = d.Vintage
		case mode == PatchOverwrite && *current.Vintage != *d.Vintage:
			patch.Vintage = d.Vintage
		}
	}
	return patch
}

// DeleteWine removes the wine and, through the foreign key cascade, all of its
// bottles. It returns the number of bottles removed. An unknown id yields
// services.ErrNotFound and changes nothing.
func (s *Store) DeleteWine(ctx context.Context, id int64) (int, error) {
	var removed int
	err := s.WithTx(ctx, func(tx *Tx) error {
		if err := tx.tx.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM bottles WHERE wine_id = ?`, id,
		).Scan(&removed); err != nil {
			return fmt.Errorf("count bottles: %w", err)
		}
		res, err := tx.tx.ExecContext(ctx, `DELETE FROM wines WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete wine: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete wine rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("wine %d: %w", id, services.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// Stats summarizes cellar contents.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	ctx = ensureContext(ctx)
	stats := Stats{LabelTasks: make(map[TaskStatus]int, len(allTaskStatuses))}
	if err := s.db.QueryRowContext(ctx,
		`SELECT
            (SELECT COUNT(1) FROM wines),
            (SELECT COUNT(1) FROM wines WHERE upc IS NOT NULL AND producer IS NULL AND label IS NULL
                AND vintage IS NULL AND region IS NULL AND country IS NULL),
            (SELECT COUNT(1) FROM bottles)`,
	).Scan(&stats.Wines, &stats.Placeholders, &stats.Bottles); err != nil {
		return Stats{}, fmt.Errorf("cellar stats: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM label_tasks GROUP BY status`)
	if err != nil {
		return Stats{}, fmt.Errorf("label task stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, fmt.Errorf("scan label task stats: %w", err)
		}
		stats.LabelTasks[TaskStatus(status)] = count
	}
	return stats, rows.Err()
}

// appendScanner lets the shared row scanners read joined rows that carry
// extra trailing columns.
type appendScanner struct {
	rows  *sql.Rows
	extra []any
}

func (a appendScanner) Scan(dest ...any) error {
	return a.rows.Scan(append(dest, a.extra...)...)
}

func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, part := range parts {
		parts[i] = alias + "." + part
	}
	return strings.Join(parts, ", ")
}

// Fixed-width timestamps keep lexical and chronological order identical, which
// the stale-task sweep relies on.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}
