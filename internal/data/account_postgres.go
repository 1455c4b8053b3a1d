package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"social-auth-service/internal/biz"
	"social-auth-service/internal/conf"
)

// PostgresAccountRepo is the PostgreSQL-backed account and access-token
// store, for deployments where the service shares a database with other
// services.
type PostgresAccountRepo struct {
	db *sql.DB
}

// NewPostgresAccountRepo connects with the given DSN and ensures the schema.
func NewPostgresAccountRepo(dsn string) (*PostgresAccountRepo, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			name TEXT,
			first_name TEXT,
			last_name TEXT,
			avatar TEXT,
			role TEXT,
			status TEXT,
			password TEXT,
			email_verified_at TIMESTAMPTZ,
			google_id TEXT UNIQUE,
			google_token TEXT,
			google_refresh_token TEXT,
			microsoft_id TEXT UNIQUE,
			microsoft_token TEXT,
			microsoft_refresh_token TEXT,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create users table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS access_tokens (
			id TEXT PRIMARY KEY,
			account_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			token_hash TEXT NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create access_tokens table: %w", err)
	}

	return &PostgresAccountRepo{db: db}, nil
}

func (r *PostgresAccountRepo) FindByProviderID(ctx context.Context, idAttr, externalID string) (*biz.Account, error) {
	if !conf.IsAccountColumn(idAttr) {
		return nil, fmt.Errorf("unknown provider id attribute %q", idAttr)
	}
	return r.findBy(ctx, idAttr, externalID)
}

func (r *PostgresAccountRepo) FindByEmail(ctx context.Context, email string) (*biz.Account, error) {
	return r.findBy(ctx, "email", email)
}

func (r *PostgresAccountRepo) findBy(ctx context.Context, column string, value any) (*biz.Account, error) {
	query := fmt.Sprintf(
		"SELECT id, %s, created_at, updated_at FROM users WHERE %s = $1",
		strings.Join(accountColumns, ", "), column,
	)
	row := r.db.QueryRowContext(ctx, query, value)
	return scanAccount(row)
}

func (r *PostgresAccountRepo) Create(ctx context.Context, attrs map[string]any) (*biz.Account, error) {
	keys, vals := filterAttrs(attrs)
	if len(keys) == 0 {
		return nil, fmt.Errorf("no storable attributes")
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	cols := append([]string{"id"}, keys...)
	cols = append(cols, "created_at", "updated_at")
	args := append([]any{id}, vals...)
	args = append(args, now, now)

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf(
		"INSERT INTO users (%s) VALUES (%s)",
		strings.Join(cols, ", "), strings.Join(placeholders, ", "),
	)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, fmt.Errorf("%w: %v", biz.ErrDuplicateAccount, err)
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	return r.findBy(ctx, "id", id)
}

func (r *PostgresAccountRepo) Update(ctx context.Context, id string, attrs map[string]any) (*biz.Account, error) {
	keys, vals := filterAttrs(attrs)
	if len(keys) > 0 {
		sets := make([]string, len(keys))
		for i, k := range keys {
			sets[i] = fmt.Sprintf("%s = $%d", k, i+1)
		}
		args := append(vals, time.Now().UTC(), id)
		query := fmt.Sprintf(
			"UPDATE users SET %s, updated_at = $%d WHERE id = $%d",
			strings.Join(sets, ", "), len(keys)+1, len(keys)+2,
		)
		res, err := r.db.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to update user: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, biz.ErrAccountNotFound
		}
	}
	return r.findBy(ctx, "id", id)
}

func (r *PostgresAccountRepo) CreateAccessToken(ctx context.Context, t biz.AccessToken) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO access_tokens (id, account_id, name, token_hash, created_at) VALUES ($1, $2, $3, $4, $5)",
		t.ID, t.AccountID, t.Name, t.TokenHash, t.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert access token: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *PostgresAccountRepo) Close() error {
	return r.db.Close()
}

var _ biz.AccountRepo = (*PostgresAccountRepo)(nil)
var _ biz.AccountRepo = (*SQLiteAccountRepo)(nil)
