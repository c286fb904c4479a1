package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/HendryAvila/routine-quest/internal/resequence"
	"github.com/HendryAvila/routine-quest/internal/routine"
)

const stepColumns = `id, routine_id, position, title, description, type, difficulty, t_ref_sec,
	is_optional, xp_reward, completion_count, skip_count, avg_time_spent, created_at, updated_at`

// ReorderResult describes a committed step move.
type ReorderResult struct {
	StepID      int64 `json:"step_id"`
	OldPosition int   `json:"old_order"`
	NewPosition int   `json:"new_order"`
	// Shifted counts the other steps whose position changed.
	Shifted int            `json:"shifted"`
	Version int            `json:"version"`
	Steps   []routine.Step `json:"steps"`
}

// AddStep adds a step to a routine. With no position the step is appended;
// otherwise it is inserted at the clamped position and later steps shift.
func (s *Store) AddStep(ctx context.Context, userID, routineID int64, p routine.NewStepParams) (*routine.Step, error) {
	if err := p.Normalize(); err != nil {
		return nil, fmt.Errorf("store: add step: %w", err)
	}

	var added *routine.Step
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getRoutineHeader(ctx, tx, userID, routineID); err != nil {
			return err
		}
		user, err := getUser(ctx, tx, userID)
		if err != nil {
			return err
		}

		if limit := routine.LimitsFor(user.Tier).MaxStepsPerRoutine; limit > 0 {
			var count int
			if err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM steps WHERE routine_id = ?`, routineID,
			).Scan(&count); err != nil {
				return fmt.Errorf("store: count steps: %w", err)
			}
			if count >= limit {
				return fmt.Errorf("store: %s tier allows %d steps per routine: %w", user.Tier, limit, ErrLimitExceeded)
			}
		}

		id, err := insertStep(ctx, tx, routineID, p)
		if err != nil {
			return err
		}
		if err := bumpVersion(ctx, tx, routineID); err != nil {
			return err
		}
		added, err = getStep(ctx, tx, routineID, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// UpdateStep replaces the content fields of a step. The position is left
// untouched; use ReorderStep to move a step.
func (s *Store) UpdateStep(ctx context.Context, userID, routineID, stepID int64, p routine.UpdateStepParams) (*routine.Step, error) {
	if err := p.Normalize(); err != nil {
		return nil, fmt.Errorf("store: update step: %w", err)
	}

	var updated *routine.Step
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getRoutineHeader(ctx, tx, userID, routineID); err != nil {
			return err
		}
		var err error
		updated, err = writeStep(ctx, tx, routineID, stepID, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// PatchStep changes only the fields set in p. The current step is read
// and merged in the same transaction as the write, so concurrent patches
// of different fields are all kept. When expectedVersion is positive and
// the routine's version differs, nothing is written and ErrConflict is
// returned.
func (s *Store) PatchStep(ctx context.Context, userID, routineID, stepID int64, p routine.StepPatch, expectedVersion int) (*routine.Step, error) {
	var updated *routine.Step
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		r, err := getRoutineHeader(ctx, tx, userID, routineID)
		if err != nil {
			return err
		}
		if expectedVersion > 0 && r.Version != expectedVersion {
			return fmt.Errorf("store: routine %d is at version %d, expected %d: %w",
				routineID, r.Version, expectedVersion, ErrConflict)
		}
		cur, err := getStep(ctx, tx, routineID, stepID)
		if err != nil {
			return err
		}
		merged := p.Apply(*cur)
		if err := merged.Normalize(); err != nil {
			return fmt.Errorf("store: patch step: %w", err)
		}
		updated, err = writeStep(ctx, tx, routineID, stepID, merged)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// writeStep stores normalized content fields and bumps the routine version.
func writeStep(ctx context.Context, tx *sql.Tx, routineID, stepID int64, p routine.UpdateStepParams) (*routine.Step, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE steps
		 SET title = ?, description = ?, type = ?, difficulty = ?, t_ref_sec = ?,
		     is_optional = ?, xp_reward = ?, updated_at = datetime('now')
		 WHERE id = ? AND routine_id = ?`,
		p.Title, p.Description, string(p.Type), string(p.Difficulty), *p.TRefSec,
		p.IsOptional, *p.XPReward, stepID, routineID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: update step: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("store: step %d: %w", stepID, ErrNotFound)
	}
	if err := bumpVersion(ctx, tx, routineID); err != nil {
		return nil, err
	}
	return getStep(ctx, tx, routineID, stepID)
}

// DeleteStep removes a step and closes the gap it leaves, so the
// remaining positions stay contiguous.
func (s *Store) DeleteStep(ctx context.Context, userID, routineID, stepID int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getRoutineHeader(ctx, tx, userID, routineID); err != nil {
			return err
		}
		before, err := stepItems(ctx, tx, routineID)
		if err != nil {
			return err
		}
		after, err := resequence.Remove(before, stepID)
		if err != nil {
			return mapResequenceErr(err, stepID)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM steps WHERE id = ? AND routine_id = ?`, stepID, routineID,
		); err != nil {
			return fmt.Errorf("store: delete step: %w", err)
		}
		if err := applyPositions(ctx, tx, resequence.Changes(before, after)); err != nil {
			return err
		}
		return bumpVersion(ctx, tx, routineID)
	})
}

// ReorderStep moves a step to newPosition within its routine.
//
// The collection is read, resequenced and written back inside one
// transaction; only the steps whose position changed are updated. When
// expectedVersion is positive and the routine's version differs, the
// reorder fails with ErrConflict and nothing is written.
func (s *Store) ReorderStep(ctx context.Context, userID, routineID, stepID int64, newPosition, expectedVersion int) (*ReorderResult, error) {
	var result *ReorderResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		r, err := getRoutineHeader(ctx, tx, userID, routineID)
		if err != nil {
			return err
		}
		if expectedVersion > 0 && r.Version != expectedVersion {
			return fmt.Errorf("store: routine %d is at version %d, expected %d: %w",
				routineID, r.Version, expectedVersion, ErrConflict)
		}

		before, err := stepItems(ctx, tx, routineID)
		if err != nil {
			return err
		}
		after, err := resequence.Reorder(before, stepID, newPosition)
		if err != nil {
			return mapResequenceErr(err, stepID)
		}

		changed := resequence.Changes(before, after)
		if err := applyPositions(ctx, tx, changed); err != nil {
			return err
		}

		version := r.Version
		if len(changed) > 0 {
			if err := bumpVersion(ctx, tx, routineID); err != nil {
				return err
			}
			version++
		}

		steps, err := listSteps(ctx, tx, routineID)
		if err != nil {
			return err
		}

		result = &ReorderResult{
			StepID:      stepID,
			OldPosition: positionOf(before, stepID),
			NewPosition: positionOf(after, stepID),
			Shifted:     max(len(changed)-1, 0),
			Version:     version,
			Steps:       steps,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ─── Internal ────────────────────────────────────────────────────────────────

// insertStep writes a normalized step into routineID, appending it or
// shifting later steps to make room at the requested position.
func insertStep(ctx context.Context, tx *sql.Tx, routineID int64, p routine.NewStepParams) (int64, error) {
	before, err := stepItems(ctx, tx, routineID)
	if err != nil {
		return 0, err
	}

	position := resequence.NextPosition(before)
	if p.Position != nil {
		// Row ids start at 1, so 0 stands in for the step being inserted.
		after, err := resequence.Insert(before, 0, *p.Position)
		if err != nil {
			return 0, err
		}
		position = positionOf(after, 0)
		shifted := slices.DeleteFunc(resequence.Changes(before, after), func(it resequence.Item[int64]) bool {
			return it.ID == 0
		})
		if err := applyPositions(ctx, tx, shifted); err != nil {
			return 0, err
		}
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO steps (routine_id, position, title, description, type, difficulty,
		                    t_ref_sec, is_optional, xp_reward)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		routineID, position, p.Title, p.Description, string(p.Type), string(p.Difficulty),
		*p.TRefSec, p.IsOptional, *p.XPReward,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("store: step position %d taken: %w", position, ErrConflict)
		}
		return 0, fmt.Errorf("store: insert step: %w", err)
	}
	return res.LastInsertId()
}

// applyPositions writes the given positions in two phases. Each row first
// moves to the negative of its target, which no other row holds, then to
// the target itself, so UNIQUE(routine_id, position) holds after every
// statement.
func applyPositions(ctx context.Context, q querier, changed []resequence.Item[int64]) error {
	for _, it := range changed {
		if _, err := q.ExecContext(ctx,
			`UPDATE steps SET position = ? WHERE id = ?`, -it.Position, it.ID,
		); err != nil {
			return fmt.Errorf("store: stage step %d: %w", it.ID, err)
		}
	}
	for _, it := range changed {
		if _, err := q.ExecContext(ctx,
			`UPDATE steps SET position = ?, updated_at = datetime('now') WHERE id = ?`, it.Position, it.ID,
		); err != nil {
			return fmt.Errorf("store: move step %d: %w", it.ID, err)
		}
	}
	return nil
}

// stepItems loads the resequencer view of a routine's steps.
func stepItems(ctx context.Context, q querier, routineID int64) ([]resequence.Item[int64], error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, position FROM steps WHERE routine_id = ? ORDER BY position, id`, routineID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: load positions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []resequence.Item[int64]
	for rows.Next() {
		var it resequence.Item[int64]
		if err := rows.Scan(&it.ID, &it.Position); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func listSteps(ctx context.Context, q querier, routineID int64) ([]routine.Step, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+stepColumns+` FROM steps WHERE routine_id = ? ORDER BY position, id`, routineID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list steps: %w", err)
	}
	defer func() { _ = rows.Close() }()

	steps := []routine.Step{}
	for rows.Next() {
		st, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, *st)
	}
	return steps, rows.Err()
}

func getStep(ctx context.Context, q querier, routineID, stepID int64) (*routine.Step, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+stepColumns+` FROM steps WHERE id = ? AND routine_id = ?`, stepID, routineID,
	)
	st, err := scanStep(row)
	if err != nil {
		return nil, notFound(err, "step", stepID)
	}
	return st, nil
}

func scanStep(row scanner) (*routine.Step, error) {
	var st routine.Step
	var typ, diff string
	if err := row.Scan(
		&st.ID, &st.RoutineID, &st.Position, &st.Title, &st.Description, &typ, &diff,
		&st.TRefSec, &st.IsOptional, &st.XPReward, &st.CompletionCount, &st.SkipCount,
		&st.AvgTimeSpent, &st.CreatedAt, &st.UpdatedAt,
	); err != nil {
		return nil, err
	}
	st.Type = routine.StepType(typ)
	st.Difficulty = routine.Difficulty(diff)
	return &st, nil
}

// mapResequenceErr names a missing step with the store's own sentinel
// while keeping the resequencer error in the chain.
func mapResequenceErr(err error, stepID int64) error {
	if errors.Is(err, resequence.ErrNotFound) {
		return fmt.Errorf("store: step %d: %w: %w", stepID, ErrNotFound, err)
	}
	return fmt.Errorf("store: %w", err)
}

func positionOf(items []resequence.Item[int64], id int64) int {
	for _, it := range items {
		if it.ID == id {
			return it.Position
		}
	}
	return 0
}
