package mfa

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/trust-core/internal/domain"
)

// PostgresStore is the pgx-backed EnrollmentStore. Backup code
// consumption relies on a single DELETE so each code is spent at most
// once regardless of concurrent attempts.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore returns a Postgres-backed implementation.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Get(ctx context.Context, userID string) (*domain.MFAEnrollment, error) {
	const query = `
        SELECT user_id, secret_encrypted, status, created_at, updated_at
        FROM mfa_enrollments WHERE user_id = $1`

	var e domain.MFAEnrollment
	err := s.pool.QueryRow(ctx, query, userID).Scan(
		&e.UserID, &e.SecretEncrypted, &e.Status, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	const codesQuery = `SELECT code_hash FROM mfa_backup_codes WHERE user_id = $1`
	rows, err := s.pool.Query(ctx, codesQuery, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, err
		}
		e.BackupCodes = append(e.BackupCodes, hash)
	}
	return &e, rows.Err()
}

func (s *PostgresStore) Upsert(ctx context.Context, enrollment *domain.MFAEnrollment) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const upsert = `
        INSERT INTO mfa_enrollments (user_id, secret_encrypted, status)
        VALUES ($1, $2, $3)
        ON CONFLICT (user_id)
        DO UPDATE SET secret_encrypted = EXCLUDED.secret_encrypted,
                      status = EXCLUDED.status,
                      updated_at = NOW()`
	if _, err := tx.Exec(ctx, upsert, enrollment.UserID, enrollment.SecretEncrypted, enrollment.Status); err != nil {
		return err
	}

	// A new pending enrollment replaces any earlier backup codes.
	if _, err := tx.Exec(ctx, `DELETE FROM mfa_backup_codes WHERE user_id = $1`, enrollment.UserID); err != nil {
		return err
	}
	var batch pgx.Batch
	for _, hash := range enrollment.BackupCodes {
		batch.Queue(`INSERT INTO mfa_backup_codes (user_id, code_hash) VALUES ($1, $2)`, enrollment.UserID, hash)
	}
	results := tx.SendBatch(ctx, &batch)
	for range enrollment.BackupCodes {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return err
		}
	}
	if err := results.Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) SetStatus(ctx context.Context, userID string, status domain.MFAStatus) error {
	const query = `UPDATE mfa_enrollments SET status = $2, updated_at = NOW() WHERE user_id = $1`
	_, err := s.pool.Exec(ctx, query, userID, status)
	return err
}

func (s *PostgresStore) ConsumeBackupCode(ctx context.Context, userID, codeHash string) (bool, error) {
	const query = `DELETE FROM mfa_backup_codes WHERE user_id = $1 AND code_hash = $2`
	cmd, err := s.pool.Exec(ctx, query, userID, codeHash)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (s *PostgresStore) Delete(ctx context.Context, userID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM mfa_backup_codes WHERE user_id = $1`, userID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM mfa_enrollments WHERE user_id = $1`, userID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
