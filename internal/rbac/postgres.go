package rbac

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/trust-core/internal/domain"
)

// PostgresStore is the pgx-backed PermissionStore. Override writes use
// an upsert keyed on (user_id, permission), so concurrent writes to
// the same key resolve last-writer-wins while writes to different
// permissions never clobber each other.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore returns a Postgres-backed implementation.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) GetUserRole(ctx context.Context, userID string) (domain.Role, error) {
	const query = `SELECT role FROM users WHERE id = $1`

	var role domain.Role
	if err := s.pool.QueryRow(ctx, query, userID).Scan(&role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrUserNotFound
		}
		return "", err
	}
	return role, nil
}

func (s *PostgresStore) ListOverrides(ctx context.Context, userID string) ([]domain.PermissionOverride, error) {
	const query = `
        SELECT user_id, permission, effect, created_at
        FROM user_permission_overrides
        WHERE user_id = $1
        ORDER BY permission`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PermissionOverride
	for rows.Next() {
		var o domain.PermissionOverride
		if err := rows.Scan(&o.UserID, &o.Permission, &o.Effect, &o.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SetOverride(ctx context.Context, userID string, perm domain.Permission, effect domain.OverrideEffect) error {
	const query = `
        INSERT INTO user_permission_overrides (user_id, permission, effect)
        VALUES ($1, $2, $3)
        ON CONFLICT (user_id, permission)
        DO UPDATE SET effect = EXCLUDED.effect, created_at = NOW()`

	_, err := s.pool.Exec(ctx, query, userID, perm, effect)
	return err
}

func (s *PostgresStore) ClearOverride(ctx context.Context, userID string, perm domain.Permission) error {
	const query = `DELETE FROM user_permission_overrides WHERE user_id = $1 AND permission = $2`

	_, err := s.pool.Exec(ctx, query, userID, perm)
	return err
}
