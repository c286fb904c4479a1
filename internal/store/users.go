package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/HendryAvila/routine-quest/internal/routine"
)

const userColumns = `id, email, display_name, tier, timezone, streak, grace_tokens, total_xp, created_at, updated_at`

// CreateUser registers a new user. A duplicate email fails with ErrConflict.
func (s *Store) CreateUser(ctx context.Context, p routine.NewUserParams) (*routine.User, error) {
	if err := p.Normalize(); err != nil {
		return nil, fmt.Errorf("store: create user: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (email, display_name, tier) VALUES (?, ?, ?)`,
		p.Email, p.DisplayName, string(p.Tier),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("store: email %q already registered: %w", p.Email, ErrConflict)
		}
		return nil, fmt.Errorf("store: create user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("store: create user: %w", err)
	}
	return s.GetUser(ctx, id)
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, id int64) (*routine.User, error) {
	return getUser(ctx, s.db, id)
}

// GetUserByEmail retrieves a user by email, case-insensitively.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*routine.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(email)),
	)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: user %q: %w", email, ErrNotFound)
	}
	return u, err
}

// SetTier changes a user's subscription tier.
func (s *Store) SetTier(ctx context.Context, id int64, tier routine.Tier) error {
	if _, err := routine.ParseTier(string(tier)); err != nil {
		return fmt.Errorf("store: set tier: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET tier = ?, updated_at = datetime('now') WHERE id = ?`,
		string(tier), id,
	)
	if err != nil {
		return fmt.Errorf("store: set tier: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: user %d: %w", id, ErrNotFound)
	}
	return nil
}

func getUser(ctx context.Context, q querier, id int64) (*routine.User, error) {
	row := q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFound(err, "user", id)
	}
	return u, nil
}

func scanUser(row scanner) (*routine.User, error) {
	var u routine.User
	var tier string
	if err := row.Scan(
		&u.ID, &u.Email, &u.DisplayName, &tier, &u.Timezone,
		&u.Streak, &u.GraceTokens, &u.TotalXP, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	u.Tier = routine.Tier(tier)
	return &u, nil
}
