// Package repository declares the storage interfaces the services depend on.
package repository

import (
	"context"

	"github.com/sakif/github-explorer/internal/model"
)

// AccountRepository stores identities that have signed in.
type AccountRepository interface {
	// Upsert inserts the account or refreshes the profile fields of the
	// existing row with the same (Provider, ProviderUserID). On return
	// account.ID, CreatedAt and UpdatedAt hold the stored values.
	Upsert(ctx context.Context, account *model.Account) error
	GetAccountByID(ctx context.Context, id string) (*model.Account, error)
}
