package data

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"social-auth-service/internal/biz"
	"social-auth-service/internal/conf"
)

// accountColumns is the closed set of user attributes the SQL stores
// accept, shared with conf so Validate rejects any configuration that
// would address a column outside it. Attribute maps are still filtered
// here, so no attribute name can reach a statement unchecked.
var accountColumns = conf.AccountColumns

// filterAttrs keeps only known columns, in deterministic order.
func filterAttrs(attrs map[string]any) ([]string, []any) {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		if conf.IsAccountColumn(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	vals := make([]any, len(keys))
	for i, k := range keys {
		vals[i] = attrs[k]
	}
	return keys, vals
}

// SQLiteAccountRepo is the SQLite-backed account and access-token store.
type SQLiteAccountRepo struct {
	db *sql.DB
}

// NewSQLiteAccountRepo opens (creating if needed) the database file and
// ensures the schema.
func NewSQLiteAccountRepo(dbPath string) (*SQLiteAccountRepo, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
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
			email_verified_at DATETIME,
			google_id TEXT UNIQUE,
			google_token TEXT,
			google_refresh_token TEXT,
			microsoft_id TEXT UNIQUE,
			microsoft_token TEXT,
			microsoft_refresh_token TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create users table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS access_tokens (
			id TEXT PRIMARY KEY,
			account_id TEXT NOT NULL,
			name TEXT NOT NULL,
			token_hash TEXT NOT NULL UNIQUE,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (account_id) REFERENCES users(id) ON DELETE CASCADE
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create access_tokens table: %w", err)
	}

	db.Exec("CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_access_tokens_account_id ON access_tokens(account_id)")

	return &SQLiteAccountRepo{db: db}, nil
}

func (r *SQLiteAccountRepo) FindByProviderID(ctx context.Context, idAttr, externalID string) (*biz.Account, error) {
	if !conf.IsAccountColumn(idAttr) {
		return nil, fmt.Errorf("unknown provider id attribute %q", idAttr)
	}
	return r.findBy(ctx, idAttr, externalID)
}

func (r *SQLiteAccountRepo) FindByEmail(ctx context.Context, email string) (*biz.Account, error) {
	return r.findBy(ctx, "email", email)
}

func (r *SQLiteAccountRepo) findBy(ctx context.Context, column string, value any) (*biz.Account, error) {
	query := fmt.Sprintf(
		"SELECT id, %s, created_at, updated_at FROM users WHERE %s = ?",
		strings.Join(accountColumns, ", "), column,
	)
	row := r.db.QueryRowContext(ctx, query, value)
	return scanAccount(row)
}

func (r *SQLiteAccountRepo) Create(ctx context.Context, attrs map[string]any) (*biz.Account, error) {
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

	query := fmt.Sprintf(
		"INSERT INTO users (%s) VALUES (%s)",
		strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "),
	)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, fmt.Errorf("%w: %v", biz.ErrDuplicateAccount, err)
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	return r.findBy(ctx, "id", id)
}

func (r *SQLiteAccountRepo) Update(ctx context.Context, id string, attrs map[string]any) (*biz.Account, error) {
	keys, vals := filterAttrs(attrs)
	if len(keys) > 0 {
		sets := make([]string, len(keys))
		for i, k := range keys {
			sets[i] = k + " = ?"
		}
		args := append(vals, time.Now().UTC(), id)
		query := fmt.Sprintf("UPDATE users SET %s, updated_at = ? WHERE id = ?", strings.Join(sets, ", "))
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

func (r *SQLiteAccountRepo) CreateAccessToken(ctx context.Context, t biz.AccessToken) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO access_tokens (id, account_id, name, token_hash, created_at) VALUES (?, ?, ?, ?, ?)",
		t.ID, t.AccountID, t.Name, t.TokenHash, t.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert access token: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *SQLiteAccountRepo) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanAccount reads one users row. Column order must match findBy: id, the
// accountColumns set, created_at, updated_at.
func scanAccount(row rowScanner) (*biz.Account, error) {
	var (
		id        string
		createdAt time.Time
		updatedAt time.Time
		strCols   = make([]sql.NullString, len(accountColumns))
		verified  sql.NullTime
	)

	dest := make([]any, 0, len(accountColumns)+3)
	dest = append(dest, &id)
	for i, col := range accountColumns {
		if col == "email_verified_at" {
			dest = append(dest, &verified)
			continue
		}
		dest = append(dest, &strCols[i])
	}
	dest = append(dest, &createdAt, &updatedAt)

	if err := row.Scan(dest...); err != nil {
		if err == sql.ErrNoRows {
			return nil, biz.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	account := &biz.Account{
		ID:        id,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
		Attrs:     make(map[string]any, len(accountColumns)),
	}
	for i, col := range accountColumns {
		if col == "email_verified_at" {
			if verified.Valid {
				account.Attrs[col] = verified.Time
			}
			continue
		}
		if strCols[i].Valid {
			account.Attrs[col] = strCols[i].String
		}
	}
	account.Email, _ = account.Attrs["email"].(string)
	return account, nil
}
