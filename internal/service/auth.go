// Package service holds the application logic that sits between the HTTP
// handlers and storage.
//
//	AuthHandler (HTTP) → AuthService → AccountRepository (SQLite)
//	                              ↘ TokenService (session JWT)
//
// Services never read requests or write cookies; that stays in the handlers.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/github-explorer/internal/apperror"
	"github.com/sakif/github-explorer/internal/auth"
	"github.com/sakif/github-explorer/internal/model"
	"github.com/sakif/github-explorer/internal/repository"
)

// AuthService turns a provider identity into a recorded account and a
// signed session.
type AuthService struct {
	accounts repository.AccountRepository
	tokens   *auth.TokenService
	logger   *slog.Logger
}

// NewAuthService wires the service.
func NewAuthService(accounts repository.AccountRepository, tokens *auth.TokenService, logger *slog.Logger) *AuthService {
	return &AuthService{
		accounts: accounts,
		tokens:   tokens,
		logger:   logger,
	}
}

// SignInResult is what the callback handler needs to finish a sign-in.
type SignInResult struct {
	Account *model.Account
	Token   string
	Session *auth.Session
}

// SignIn records identity in the account registry (creating the account on
// first sign-in, refreshing its profile fields afterwards) and issues a new
// session for it.
func (s *AuthService) SignIn(ctx context.Context, identity *auth.Identity) (*SignInResult, error) {
	if identity == nil {
		return nil, errors.New("service/auth: identity must not be nil")
	}
	if identity.Provider == "" || identity.ProviderUserID == "" {
		return nil, apperror.ValidationFailed("identity", "identity has no provider or provider user id")
	}

	account := &model.Account{
		Provider:       identity.Provider,
		ProviderUserID: identity.ProviderUserID,
		Login:          identity.Login,
		Name:           identity.Name,
		Email:          identity.Email,
		AvatarURL:      identity.AvatarURL,
	}

	if err := s.accounts.Upsert(ctx, account); err != nil {
		return nil, fmt.Errorf("service/auth: upserting account (%s/%s): %w",
			identity.Provider, identity.ProviderUserID, err)
	}

	token, sess, err := s.tokens.Issue(account.ID, identity)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing session for %s: %w", account.ID, err)
	}

	s.logger.Info("account signed in",
		slog.String("account_id", account.ID),
		slog.String("provider", account.Provider),
		slog.String("session_id", sess.ID),
	)

	return &SignInResult{
		Account: account,
		Token:   token,
		Session: sess,
	}, nil
}

// GetAccountByID returns the stored account behind a session.
func (s *AuthService) GetAccountByID(ctx context.Context, id string) (*model.Account, error) {
	if id == "" {
		return nil, apperror.ValidationFailed("id", "account ID must not be empty")
	}

	account, err := s.accounts.GetAccountByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching account %s: %w", id, err)
	}

	return account, nil
}
