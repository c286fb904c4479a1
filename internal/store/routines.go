package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/HendryAvila/routine-quest/internal/resequence"
	"github.com/HendryAvila/routine-quest/internal/routine"
)

const routineColumns = `id, user_id, title, description, icon, color, is_public, is_active, today_display,
	version, total_completions, success_rate, avg_completion_time, created_at, updated_at, last_changed_at`

// ListOptions filters and pages ListRoutines.
type ListOptions struct {
	Skip   int
	Limit  int
	Active *bool
}

// CreateRoutine creates a routine owned by userID together with its
// initial steps. Steps without an explicit position are appended in
// input order; explicit positions are inserted and clamped.
func (s *Store) CreateRoutine(ctx context.Context, userID int64, p routine.NewRoutineParams) (*routine.Routine, error) {
	if err := p.Normalize(); err != nil {
		return nil, fmt.Errorf("store: create routine: %w", err)
	}

	var created *routine.Routine
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		user, err := getUser(ctx, tx, userID)
		if err != nil {
			return err
		}

		limits := routine.LimitsFor(user.Tier)
		if limits.MaxRoutines > 0 {
			var count int
			if err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM routines WHERE user_id = ?`, userID,
			).Scan(&count); err != nil {
				return fmt.Errorf("store: count routines: %w", err)
			}
			if count >= limits.MaxRoutines {
				return fmt.Errorf("store: %s tier allows %d routine(s): %w", user.Tier, limits.MaxRoutines, ErrLimitExceeded)
			}
		}
		if limits.MaxStepsPerRoutine > 0 && len(p.Steps) > limits.MaxStepsPerRoutine {
			return fmt.Errorf("store: %s tier allows %d steps per routine: %w", user.Tier, limits.MaxStepsPerRoutine, ErrLimitExceeded)
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO routines (user_id, title, description, icon, color, is_public, is_active)
			 VALUES (?, ?, ?, ?, ?, ?, 1)`,
			userID, p.Title, p.Description, p.Icon, p.Color, p.IsPublic,
		)
		if err != nil {
			return fmt.Errorf("store: create routine: %w", err)
		}
		routineID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("store: create routine: %w", err)
		}

		for i := range p.Steps {
			if _, err := insertStep(ctx, tx, routineID, p.Steps[i]); err != nil {
				return fmt.Errorf("store: step %d: %w", i+1, err)
			}
		}

		created, err = getRoutine(ctx, tx, userID, routineID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ListRoutines returns the user's routines, each with its ordered steps.
func (s *Store) ListRoutines(ctx context.Context, userID int64, opts ListOptions) ([]routine.Routine, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + routineColumns + ` FROM routines WHERE user_id = ?`
	args := []any{userID}
	if opts.Active != nil {
		query += " AND is_active = ?"
		args = append(args, *opts.Active)
	}
	query += " ORDER BY id LIMIT ? OFFSET ?"
	args = append(args, limit, max(opts.Skip, 0))

	return s.queryRoutines(ctx, query, args...)
}

// TodayRoutines returns the active routines the user pinned to today's page.
func (s *Store) TodayRoutines(ctx context.Context, userID int64) ([]routine.Routine, error) {
	return s.queryRoutines(ctx,
		`SELECT `+routineColumns+` FROM routines
		 WHERE user_id = ? AND today_display = 1 AND is_active = 1
		 ORDER BY id`,
		userID,
	)
}

// GetRoutine retrieves a routine and its steps ordered by position.
func (s *Store) GetRoutine(ctx context.Context, userID, routineID int64) (*routine.Routine, error) {
	return getRoutine(ctx, s.db, userID, routineID)
}

// UpdateRoutine applies a partial update and bumps the routine version.
func (s *Store) UpdateRoutine(ctx context.Context, userID, routineID int64, p routine.UpdateRoutineParams) (*routine.Routine, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("store: update routine: %w", err)
	}

	var updated *routine.Routine
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		r, err := getRoutineHeader(ctx, tx, userID, routineID)
		if err != nil {
			return err
		}

		if p.Title != nil {
			r.Title = *p.Title
		}
		if p.Description != nil {
			r.Description = *p.Description
		}
		if p.Icon != nil {
			r.Icon = *p.Icon
		}
		if p.Color != nil {
			r.Color = *p.Color
		}
		if p.IsPublic != nil {
			r.IsPublic = *p.IsPublic
		}
		if p.IsActive != nil {
			r.IsActive = *p.IsActive
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE routines
			 SET title = ?, description = ?, icon = ?, color = ?, is_public = ?, is_active = ?,
			     version = version + 1,
			     updated_at = datetime('now'),
			     last_changed_at = datetime('now')
			 WHERE id = ?`,
			r.Title, r.Description, r.Icon, r.Color, r.IsPublic, r.IsActive, routineID,
		); err != nil {
			return fmt.Errorf("store: update routine: %w", err)
		}

		updated, err = getRoutine(ctx, tx, userID, routineID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteRoutine removes a routine and, by cascade, its steps.
func (s *Store) DeleteRoutine(ctx context.Context, userID, routineID int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM routines WHERE id = ? AND user_id = ?`, routineID, userID,
	)
	if err != nil {
		return fmt.Errorf("store: delete routine: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: routine %d: %w", routineID, ErrNotFound)
	}
	return nil
}

// ToggleActive flips is_active, bumps the version and returns the new value.
func (s *Store) ToggleActive(ctx context.Context, userID, routineID int64) (bool, error) {
	return s.toggle(ctx, userID, routineID,
		`UPDATE routines
		 SET is_active = NOT is_active, version = version + 1,
		     updated_at = datetime('now'), last_changed_at = datetime('now')
		 WHERE id = ?`,
		func(r *routine.Routine) bool { return r.IsActive },
	)
}

// ToggleTodayDisplay flips today_display and returns the new value. Any
// number of routines may be shown on today's page at once.
func (s *Store) ToggleTodayDisplay(ctx context.Context, userID, routineID int64) (bool, error) {
	return s.toggle(ctx, userID, routineID,
		`UPDATE routines SET today_display = NOT today_display, updated_at = datetime('now') WHERE id = ?`,
		func(r *routine.Routine) bool { return r.TodayDisplay },
	)
}

func (s *Store) toggle(ctx context.Context, userID, routineID int64, stmt string, field func(*routine.Routine) bool) (bool, error) {
	var value bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getRoutineHeader(ctx, tx, userID, routineID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, stmt, routineID); err != nil {
			return fmt.Errorf("store: toggle routine: %w", err)
		}
		r, err := getRoutineHeader(ctx, tx, userID, routineID)
		if err != nil {
			return err
		}
		value = field(r)
		return nil
	})
	return value, err
}

// RoutineStats returns the summary statistics of a routine.
func (s *Store) RoutineStats(ctx context.Context, userID, routineID int64) (*routine.Stats, error) {
	r, err := s.GetRoutine(ctx, userID, routineID)
	if err != nil {
		return nil, err
	}
	return &routine.Stats{
		RoutineID:         r.ID,
		Title:             r.Title,
		TotalCompletions:  r.TotalCompletions,
		SuccessRate:       r.SuccessRate,
		AvgCompletionTime: r.AvgCompletionTime,
		TotalSteps:        len(r.Steps),
		CreatedAt:         r.CreatedAt,
	}, nil
}

// RepairPositions renumbers a routine's steps to 1..N in their current
// order. It is a maintenance operation for collections whose positions
// were written without the resequencer, and reports how many steps moved.
func (s *Store) RepairPositions(ctx context.Context, userID, routineID int64) (int, error) {
	var moved int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getRoutineHeader(ctx, tx, userID, routineID); err != nil {
			return err
		}
		before, err := stepItems(ctx, tx, routineID)
		if err != nil {
			return err
		}
		changed := resequence.Changes(before, resequence.Normalize(before))
		if len(changed) == 0 {
			return nil
		}
		if err := applyPositions(ctx, tx, changed); err != nil {
			return err
		}
		moved = len(changed)
		return bumpVersion(ctx, tx, routineID)
	})
	return moved, err
}

// ─── Internal ────────────────────────────────────────────────────────────────

func (s *Store) queryRoutines(ctx context.Context, query string, args ...any) ([]routine.Routine, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list routines: %w", err)
	}

	var results []routine.Routine
	for rows.Next() {
		r, err := scanRoutine(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		results = append(results, *r)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	// Close before issuing the step queries: the pool holds one connection.
	_ = rows.Close()

	for i := range results {
		steps, err := listSteps(ctx, s.db, results[i].ID)
		if err != nil {
			return nil, err
		}
		results[i].Steps = steps
	}
	return results, nil
}

func getRoutine(ctx context.Context, q querier, userID, routineID int64) (*routine.Routine, error) {
	r, err := getRoutineHeader(ctx, q, userID, routineID)
	if err != nil {
		return nil, err
	}
	steps, err := listSteps(ctx, q, routineID)
	if err != nil {
		return nil, err
	}
	r.Steps = steps
	return r, nil
}

// getRoutineHeader loads the routine row without steps, scoped to its owner.
func getRoutineHeader(ctx context.Context, q querier, userID, routineID int64) (*routine.Routine, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+routineColumns+` FROM routines WHERE id = ? AND user_id = ?`,
		routineID, userID,
	)
	r, err := scanRoutine(row)
	if err != nil {
		return nil, notFound(err, "routine", routineID)
	}
	return r, nil
}

func bumpVersion(ctx context.Context, q querier, routineID int64) error {
	_, err := q.ExecContext(ctx,
		`UPDATE routines
		 SET version = version + 1, updated_at = datetime('now'), last_changed_at = datetime('now')
		 WHERE id = ?`,
		routineID,
	)
	if err != nil {
		return fmt.Errorf("store: bump routine version: %w", err)
	}
	return nil
}

func scanRoutine(row scanner) (*routine.Routine, error) {
	var r routine.Routine
	if err := row.Scan(
		&r.ID, &r.UserID, &r.Title, &r.Description, &r.Icon, &r.Color,
		&r.IsPublic, &r.IsActive, &r.TodayDisplay, &r.Version,
		&r.TotalCompletions, &r.SuccessRate, &r.AvgCompletionTime,
		&r.CreatedAt, &r.UpdatedAt, &r.LastChangedAt,
	); err != nil {
		return nil, err
	}
	r.Steps = []routine.Step{}
	return &r, nil
}
