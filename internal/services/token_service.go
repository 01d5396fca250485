// Package services – TokenService
//
// This file implements the TokenService, which manages the lifecycle of
// opaque API tokens used by capture devices. Creation generates a fresh
// secret, persists only its digest, and returns the plaintext exactly once;
// it is never stored, logged, or recoverable afterwards. Listing exposes
// metadata only, and revocation is an idempotent soft delete scoped to the
// owning user.
package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/jdekker/go-notes-backend/internal/auth"
	"github.com/jdekker/go-notes-backend/internal/domain"
)

// TokenRepo defines the repository contract required by TokenService.
type TokenRepo interface {
	// CreateAPIToken inserts a new token row holding the secret's digest.
	CreateAPIToken(ctx context.Context, db *gorm.DB, userID, name, tokenHash string) (*domain.APIToken, error)

	// ListAPITokens returns all tokens belonging to the user, newest first,
	// without their digests.
	ListAPITokens(ctx context.Context, db *gorm.DB, userID string) ([]domain.APIToken, error)

	// RevokeAPIToken soft-revokes a token owned by the user; repeated calls
	// and unknown ids are no-ops.
	RevokeAPIToken(ctx context.Context, db *gorm.DB, id, userID string) error
}

// CreatedToken is the result of minting a new API token. Secret carries the
// plaintext credential and is only ever populated here.
type CreatedToken struct {
	Token  *domain.APIToken
	Secret string
}

// TokenService provides API token operations: minting, listing, and
// revocation, all scoped to the owning user.
type TokenService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the token repository used by this service.
	Repo TokenRepo

	// NameMaxLen caps token names by rune length.
	NameMaxLen int
}

// NewTokenService constructs a TokenService with the default name limit.
func NewTokenService(db *gorm.DB, r TokenRepo) *TokenService {
	return &TokenService{DB: db, Repo: r, NameMaxLen: 100}
}

// Create mints a new API token for userID. The returned CreatedToken carries
// the plaintext secret; only its SHA-256 digest is persisted.
func (s *TokenService) Create(ctx context.Context, userID, name string) (*CreatedToken, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > s.NameMaxLen {
		return nil, ErrTokenNameInvalid
	}

	secret, err := auth.GenerateTokenSecret()
	if err != nil {
		return nil, err
	}
	tok, err := s.Repo.CreateAPIToken(ctx, s.DB, userID, name, auth.HashTokenSecret(secret))
	if err != nil {
		return nil, err
	}
	return &CreatedToken{Token: tok, Secret: secret}, nil
}

// List returns the user's tokens, newest first. Digests are never included.
func (s *TokenService) List(ctx context.Context, userID string) ([]domain.APIToken, error) {
	return s.Repo.ListAPITokens(ctx, s.DB, userID)
}

// Revoke marks the token as revoked. Revoking an already-revoked or unknown
// token succeeds without effect, so retries are safe.
func (s *TokenService) Revoke(ctx context.Context, userID, tokenID string) error {
	return s.Repo.RevokeAPIToken(ctx, s.DB, tokenID, userID)
}
