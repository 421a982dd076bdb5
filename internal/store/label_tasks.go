package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cellar/internal/services"
)

// RestartedTaskReason is recorded on tasks left unfinished by a previous daemon run.
const RestartedTaskReason = "daemon restarted before completion"

// CreateLabelTask inserts a task in the queued state.
func (s *Store) CreateLabelTask(ctx context.Context) (LabelTask, error) {
	ctx = ensureContext(ctx)
	ts := formatTimestamp(time.Now())
	res, err := s.execWithRetry(ctx,
		`INSERT INTO label_tasks (status, created_at, updated_at) VALUES (?, ?, ?)`,
		TaskQueued, ts, ts,
	)
	if err != nil {
		return LabelTask{}, fmt.Errorf("insert label task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return LabelTask{}, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetLabelTask(ctx, id)
}

// GetLabelTask returns a snapshot of the task with id or an error wrapping
// services.ErrNotFound.
func (s *Store) GetLabelTask(ctx context.Context, id int64) (LabelTask, error) {
	return labelTaskByID(ensureContext(ctx), s.db, id)
}

func labelTaskByID(ctx context.Context, q queryer, id int64) (LabelTask, error) {
	row := q.QueryRowContext(ctx, `SELECT `+labelTaskColumns+` FROM label_tasks WHERE id = ?`, id)
	task, err := scanLabelTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return LabelTask{}, fmt.Errorf("label task %d: %w", id, services.ErrNotFound)
	}
	if err != nil {
		return LabelTask{}, fmt.Errorf("select label task: %w", err)
	}
	return task, nil
}

// AdvanceLabelTask moves the task to status `to` in one atomic write.
// The payload is stored only on the transition to done, in the same statement
// that sets the status; errMsg is stored only on the transition to failed.
// Terminal tasks and illegal edges yield services.ErrInvalidTransition.
func (s *Store) AdvanceLabelTask(ctx context.Context, id int64, to TaskStatus, payload json.RawMessage, errMsg string) (LabelTask, error) {
	var updated LabelTask
	err := s.WithTx(ctx, func(tx *Tx) error {
		current, err := labelTaskByID(ctx, tx.tx, id)
		if err != nil {
			return err
		}
		if current.Status.IsTerminal() || !CanTransition(current.Status, to) {
			return fmt.Errorf("label task %d %s -> %s: %w", id, current.Status, to, services.ErrInvalidTransition)
		}

		var payloadValue, errValue any
		switch to {
		case TaskDone:
			if len(payload) > 0 && !json.Valid(payload) {
				return fmt.Errorf("label task %d payload is not valid JSON: %w", id, services.ErrValidation)
			}
			payloadValue = nullableJSON(payload)
		case TaskFailed:
			errValue = nullableString(errMsg)
		}

		res, err := tx.tx.ExecContext(ctx,
			`UPDATE label_tasks SET status = ?, payload = ?, error_message = ?, updated_at = ?
             WHERE id = ? AND status = ?`,
			to, payloadValue, errValue, tx.timestamp(), id, current.Status,
		)
		if err != nil {
			return fmt.Errorf("advance label task: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("advance label task rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("label task %d changed concurrently: %w", id, services.ErrInvalidTransition)
		}
		updated, err = labelTaskByID(ctx, tx.tx, id)
		return err
	})
	if err != nil {
		return LabelTask{}, err
	}
	return updated, nil
}

// ListLabelTasks returns tasks, newest first, optionally filtered by status.
func (s *Store) ListLabelTasks(ctx context.Context, statuses ...TaskStatus) ([]LabelTask, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + labelTaskColumns + ` FROM label_tasks`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list label tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]LabelTask, 0)
	for rows.Next() {
		task, err := scanLabelTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan label task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// FailStaleProcessing marks tasks stuck in processing since before cutoff as
// failed so pollers see a terminal state.
func (s *Store) FailStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE label_tasks SET status = ?, payload = NULL, error_message = ?, updated_at = ?
         WHERE status = ? AND updated_at < ?`,
		TaskFailed, AbandonedTaskReason, formatTimestamp(time.Now()),
		TaskProcessing, formatTimestamp(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("fail stale label tasks: %w", err)
	}
	return res.RowsAffected()
}

// FailUnfinishedTasks marks every queued or processing task as failed. Image
// bytes live only in memory, so nothing from a previous run can resume.
func (s *Store) FailUnfinishedTasks(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE label_tasks SET status = ?, payload = NULL, error_message = ?, updated_at = ?
         WHERE status IN (?, ?)`,
		TaskFailed, RestartedTaskReason, formatTimestamp(time.Now()),
		TaskQueued, TaskProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("fail unfinished label tasks: %w", err)
	}
	return res.RowsAffected()
}
