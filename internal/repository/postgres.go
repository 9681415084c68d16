package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Bharath2805/healthassistant/internal/domain"
)

// Compile-time interface assertions.
var (
	_ UserRepository         = (*PostgresUserRepo)(nil)
	_ RefreshTokenRepository = (*PostgresRefreshTokenRepo)(nil)
)

const uniqueViolation = "23505"

// PostgresUserRepo implements UserRepository on pgx.
type PostgresUserRepo struct {
	db *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{db: pool}
}

const userColumns = `id, email, password_hash, role, auth_provider, is_verified, phone, preferred_notification, created_at, updated_at`

func (r *PostgresUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

const insertUserSQL = `INSERT INTO users (id, email, password_hash, role, auth_provider, is_verified, phone, preferred_notification)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + userColumns

func (r *PostgresUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	row := r.db.QueryRow(ctx, insertUserSQL,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.AuthProvider,
		user.IsVerified,
		user.Phone,
		user.PreferredNotification,
	)
	inserted, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.User{}, domain.ErrEmailTaken
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return inserted, nil
}

func (r *PostgresUserRepo) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return r.updateColumn(ctx, "update password",
		`UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, id, passwordHash)
}

func (r *PostgresUserRepo) MarkVerified(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET is_verified = TRUE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *PostgresUserRepo) UpdatePhone(ctx context.Context, id uuid.UUID, phone string) error {
	return r.updateColumn(ctx, "update phone",
		`UPDATE users SET phone = $2, updated_at = now() WHERE id = $1`, id, phone)
}

func (r *PostgresUserRepo) UpdateNotificationMethod(ctx context.Context, id uuid.UUID, method string) error {
	return r.updateColumn(ctx, "update notification method",
		`UPDATE users SET preferred_notification = $2, updated_at = now() WHERE id = $1`, id, method)
}

func (r *PostgresUserRepo) updateColumn(ctx context.Context, op, query string, id uuid.UUID, value string) error {
	tag, err := r.db.Exec(ctx, query, id, value)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.AuthProvider,
		&u.IsVerified,
		&u.Phone,
		&u.PreferredNotification,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

// PostgresRefreshTokenRepo implements RefreshTokenRepository on pgx.
type PostgresRefreshTokenRepo struct {
	db *pgxpool.Pool
}

func NewPostgresRefreshTokenRepo(pool *pgxpool.Pool) *PostgresRefreshTokenRepo {
	return &PostgresRefreshTokenRepo{db: pool}
}

const refreshColumns = `id, user_id, token, created_at, expires_at, revoked`

const insertRefreshSQL = `INSERT INTO refresh_tokens (id, user_id, token, expires_at)
VALUES ($1, $2, $3, $4)
RETURNING ` + refreshColumns

func (r *PostgresRefreshTokenRepo) Create(ctx context.Context, token domain.RefreshToken) (domain.RefreshToken, error) {
	row := r.db.QueryRow(ctx, insertRefreshSQL, token.ID, token.UserID, token.Token, token.ExpiresAt)
	inserted, err := scanRefreshToken(row)
	if err != nil {
		return domain.RefreshToken{}, fmt.Errorf("create refresh token: %w", err)
	}
	return inserted, nil
}

func (r *PostgresRefreshTokenRepo) GetActive(ctx context.Context, token string, now time.Time) (domain.RefreshToken, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+refreshColumns+` FROM refresh_tokens WHERE token = $1 AND revoked = FALSE AND expires_at > $2`,
		token, now)
	found, err := scanRefreshToken(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RefreshToken{}, domain.ErrTokenNotFound
		}
		return domain.RefreshToken{}, fmt.Errorf("get active refresh token: %w", err)
	}
	return found, nil
}

func (r *PostgresRefreshTokenRepo) Revoke(ctx context.Context, token string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE WHERE token = $1 AND revoked = FALSE`, token)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTokenNotFound
	}
	return nil
}

func (r *PostgresRefreshTokenRepo) RevokeAndReplace(ctx context.Context, oldToken string, replacement domain.RefreshToken) (domain.RefreshToken, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.RefreshToken{}, fmt.Errorf("begin rotate: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE WHERE token = $1 AND revoked = FALSE`, oldToken)
	if err != nil {
		return domain.RefreshToken{}, fmt.Errorf("rotate: revoke old: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.RefreshToken{}, domain.ErrTokenNotFound
	}

	row := tx.QueryRow(ctx, insertRefreshSQL,
		replacement.ID, replacement.UserID, replacement.Token, replacement.ExpiresAt)
	inserted, err := scanRefreshToken(row)
	if err != nil {
		return domain.RefreshToken{}, fmt.Errorf("rotate: insert replacement: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.RefreshToken{}, fmt.Errorf("rotate: commit: %w", err)
	}
	return inserted, nil
}

func scanRefreshToken(row pgx.Row) (domain.RefreshToken, error) {
	var t domain.RefreshToken
	err := row.Scan(&t.ID, &t.UserID, &t.Token, &t.CreatedAt, &t.ExpiresAt, &t.Revoked)
	return t, err
}
