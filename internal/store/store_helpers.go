package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const (
	wineColumns      = "id, upc, producer, label, vintage, region, country, drink_from, drink_to, critic_data, created_at, updated_at"
	bottleColumns    = "id, wine_id, purchase_price, slot, created_at"
	labelTaskColumns = "id, status, payload, error_message, created_at, updated_at"

	dateLayout = "2006-01-02"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func scanWine(scanner rowScanner) (Wine, error) {
	var (
		wine       Wine
		upc        sql.NullString
		producer   sql.NullString
		label      sql.NullString
		vintage    sql.NullInt64
		region     sql.NullString
		country    sql.NullString
		drinkFrom  sql.NullString
		drinkTo    sql.NullString
		criticData sql.NullString
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(
		&wine.ID,
		&upc,
		&producer,
		&label,
		&vintage,
		&region,
		&country,
		&drinkFrom,
		&drinkTo,
		&criticData,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return Wine{}, err
	}

	wine.UPC = stringPtr(upc)
	wine.Producer = stringPtr(producer)
	wine.Label = stringPtr(label)
	wine.Region = stringPtr(region)
	wine.Country = stringPtr(country)
	if vintage.Valid {
		v := int(vintage.Int64)
		wine.Vintage = &v
	}
	wine.DrinkFrom = datePtr(drinkFrom)
	wine.DrinkTo = datePtr(drinkTo)
	if criticData.Valid && criticData.String != "" {
		wine.CriticData = json.RawMessage(criticData.String)
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		wine.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		wine.UpdatedAt = updated
	}
	return wine, nil
}

func scanBottle(scanner rowScanner) (Bottle, error) {
	var (
		bottle     Bottle
		price      sql.NullFloat64
		slot       sql.NullString
		createdRaw sql.NullString
	)
	if err := scanner.Scan(&bottle.ID, &bottle.WineID, &price, &slot, &createdRaw); err != nil {
		return Bottle{}, err
	}
	if price.Valid {
		p := price.Float64
		bottle.PurchasePrice = &p
	}
	bottle.Slot = stringPtr(slot)
	if created, err := parseTimeString(createdRaw.String); err == nil {
		bottle.CreatedAt = created
	}
	return bottle, nil
}

func scanLabelTask(scanner rowScanner) (LabelTask, error) {
	var (
		task       LabelTask
		statusStr  string
		payload    sql.NullString
		errMessage sql.NullString
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(&task.ID, &statusStr, &payload, &errMessage, &createdRaw, &updatedRaw); err != nil {
		return LabelTask{}, err
	}
	task.Status = TaskStatus(statusStr)
	if payload.Valid && payload.String != "" {
		task.Payload = json.RawMessage(payload.String)
	}
	task.Error = errMessage.String
	if created, err := parseTimeString(createdRaw.String); err == nil {
		task.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		task.UpdatedAt = updated
	}
	return task, nil
}

func stringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	v := value.String
	return &v
}

func datePtr(value sql.NullString) *time.Time {
	if !value.Valid || value.String == "" {
		return nil
	}
	parsed, err := time.Parse(dateLayout, value.String)
	if err != nil {
		return nil
	}
	return &parsed
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableStringPtr(value *string) any {
	if value == nil {
		return nil
	}
	return nullableString(strings.TrimSpace(*value))
}

func nullableFloatPtr(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableDate(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(dateLayout)
}

func nullableJSON(value json.RawMessage) any {
	if len(value) == 0 {
		return nil
	}
	return string(value)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
