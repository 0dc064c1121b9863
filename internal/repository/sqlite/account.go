package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/github-explorer/internal/apperror"
	"github.com/sakif/github-explorer/internal/model"
	"github.com/sakif/github-explorer/internal/repository"
)

// compile-time check that *DB implements repository.AccountRepository
var _ repository.AccountRepository = (*DB)(nil)

// Upsert inserts or updates an account keyed by (provider, provider_user_id).
//
// The existing internal ID is kept on update so that sessions issued before
// a profile change still resolve to the same row.
func (db *DB) Upsert(ctx context.Context, account *model.Account) error {
	var (
		existingID string
		createdAt  time.Time
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, created_at FROM accounts WHERE provider = ? AND provider_user_id = ?`,
		account.Provider, account.ProviderUserID,
	).Scan(&existingID, &createdAt)

	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("sqlite: looking up account %s/%s: %w",
			account.Provider, account.ProviderUserID, err)
	}

	now := time.Now().UTC()

	if existingID != "" {
		account.ID = existingID
		account.CreatedAt = createdAt
		account.UpdatedAt = now
		_, err = db.conn.ExecContext(ctx,
			`UPDATE accounts SET login = ?, name = ?, email = ?, avatar_url = ?, updated_at = ?
			 WHERE id = ?`,
			account.Login,
			account.Name,
			account.Email,
			account.AvatarURL,
			account.UpdatedAt,
			account.ID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating account %s: %w", account.ID, err)
		}
		return nil
	}

	account.ID = xid.New().String()
	account.CreatedAt = now
	account.UpdatedAt = now

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO accounts (id, provider, provider_user_id, login, name, email, avatar_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		account.ID,
		account.Provider,
		account.ProviderUserID,
		account.Login,
		account.Name,
		account.Email,
		account.AvatarURL,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting account %s/%s: %w",
			account.Provider, account.ProviderUserID, err)
	}

	return nil
}

// GetAccountByID retrieves an account by its internal ID.
// Returns apperror.ErrNotFound if no account exists with that ID.
func (db *DB) GetAccountByID(ctx context.Context, id string) (*model.Account, error) {
	var a model.Account

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, provider, provider_user_id, login, name, email, avatar_url, created_at, updated_at
		 FROM accounts WHERE id = ?`,
		id,
	).Scan(
		&a.ID,
		&a.Provider,
		&a.ProviderUserID,
		&a.Login,
		&a.Name,
		&a.Email,
		&a.AvatarURL,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("account", id)
		}
		return nil, fmt.Errorf("sqlite: getting account %s: %w", id, err)
	}

	return &a, nil
}
