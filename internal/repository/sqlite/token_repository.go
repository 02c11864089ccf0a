package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"phantom-auth/internal/domain"
	"phantom-auth/internal/repository"
)

const createTokensTable = `
CREATE TABLE IF NOT EXISTS access_tokens (
	id TEXT PRIMARY KEY,
	token_hash TEXT NOT NULL UNIQUE,
	user_id INTEGER NOT NULL,
	scope TEXT NOT NULL DEFAULT '',
	expires_at DATETIME NOT NULL,
	revoked INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	FOREIGN KEY(user_id) REFERENCES users(id)
);
CREATE INDEX IF NOT EXISTS idx_access_tokens_user_id ON access_tokens(user_id);
`

type TokenRepository struct {
	db *sql.DB
}

func NewTokenRepository(db *sql.DB) repository.TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createTokensTable); err != nil {
		return fmt.Errorf("create access_tokens table: %w", err)
	}
	return nil
}

// InsertWithCap runs inside a single transaction so concurrent logins by the
// same user cannot both observe a stale active count.
func (r *TokenRepository) InsertWithCap(ctx context.Context, token *domain.AccessToken, maxActive int, now time.Time) ([]string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // safe no-op on commit

	var revoked []string
	if maxActive > 0 {
		rows, err := tx.QueryContext(ctx, `
SELECT id FROM access_tokens
WHERE user_id = ? AND revoked = 0 AND expires_at > ?
ORDER BY expires_at ASC`,
			token.UserID, now.UTC(),
		)
		if err != nil {
			return nil, fmt.Errorf("query active tokens: %w", err)
		}
		var activeIDs []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan token id: %w", err)
			}
			activeIDs = append(activeIDs, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate active tokens: %w", err)
		}

		// keep maxActive-1 existing sessions so the new one fits under the cap
		if excess := len(activeIDs) - (maxActive - 1); excess > 0 {
			for _, id := range activeIDs[:excess] {
				if _, err := tx.ExecContext(ctx, `UPDATE access_tokens SET revoked = 1 WHERE id = ?`, id); err != nil {
					return nil, fmt.Errorf("revoke excess token: %w", err)
				}
			}
			revoked = activeIDs[:excess]
		}
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO access_tokens (id, token_hash, user_id, scope, expires_at, revoked, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		token.ID,
		token.TokenHash,
		token.UserID,
		strings.Join(token.Scope, " "),
		token.ExpiresAt.UTC(),
		token.Revoked,
		token.CreatedAt.UTC(),
	); err != nil {
		return nil, fmt.Errorf("insert token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return revoked, nil
}

func (r *TokenRepository) GetByHash(ctx context.Context, tokenHash string) (*domain.AccessToken, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, token_hash, user_id, scope, expires_at, revoked, created_at
FROM access_tokens
WHERE token_hash = ?`,
		tokenHash,
	)
	token, err := scanToken(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return token, nil
}

func (r *TokenRepository) RevokeByHash(ctx context.Context, tokenHash string) error {
	if _, err := r.db.ExecContext(ctx, `
UPDATE access_tokens SET revoked = 1 WHERE token_hash = ?`,
		tokenHash,
	); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (r *TokenRepository) ListActiveByUser(ctx context.Context, userID int64, now time.Time) ([]domain.AccessToken, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, token_hash, user_id, scope, expires_at, revoked, created_at
FROM access_tokens
WHERE user_id = ? AND revoked = 0 AND expires_at > ?
ORDER BY expires_at ASC`,
		userID, now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("query active tokens: %w", err)
	}
	defer rows.Close()

	var tokens []domain.AccessToken
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, *token)
	}
	return tokens, rows.Err()
}

func scanToken(row interface {
	Scan(dest ...any) error
}) (*domain.AccessToken, error) {
	var (
		token domain.AccessToken
		scope string
	)
	if err := row.Scan(
		&token.ID,
		&token.TokenHash,
		&token.UserID,
		&scope,
		&token.ExpiresAt,
		&token.Revoked,
		&token.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan token: %w", err)
	}
	if scope != "" {
		token.Scope = strings.Split(scope, " ")
	}
	return &token, nil
}
