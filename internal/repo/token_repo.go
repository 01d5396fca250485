// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the APIToken
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a token is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jdekker/go-notes-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateAPIToken inserts a new token row owned by userID. Only the digest is
// stored; callers hold the plaintext secret and must not pass it here.
func CreateAPIToken(ctx context.Context, db *gorm.DB, userID, name, tokenHash string) (*domain.APIToken, error) {
	t := &domain.APIToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		TokenHash: tokenHash,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

// ListAPITokens returns all tokens belonging to userID, newest first. The
// digest column is selected out so it can never leak through a listing.
func ListAPITokens(ctx context.Context, db *gorm.DB, userID string) ([]domain.APIToken, error) {
	var out []domain.APIToken
	err := db.WithContext(ctx).
		Select("id", "user_id", "name", "created_at", "last_used_at", "revoked_at").
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// FindAPITokenByHash fetches a token row by its digest regardless of
// revocation state; the caller decides how to treat RevokedAt. Returns
// ErrNotFound when no digest matches.
func FindAPITokenByHash(ctx context.Context, db *gorm.DB, tokenHash string) (*domain.APIToken, error) {
	var t domain.APIToken
	err := db.WithContext(ctx).
		Where("token_hash = ?", tokenHash).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// TouchAPITokenLastUsed stamps last_used_at. Callers treat this as
// fire-and-forget; the error is returned only so it can be logged.
func TouchAPITokenLastUsed(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).
		Model(&domain.APIToken{}).
		Where("id = ?", id).
		Update("last_used_at", time.Now().UTC()).Error
}

// RevokeAPIToken soft-revokes a token identified by id and owned by userID by
// setting revoked_at. The ownership predicate prevents revoking another
// user's token. Repeated calls and unknown ids are no-ops, matching the
// idempotent revoke contract.
func RevokeAPIToken(ctx context.Context, db *gorm.DB, id, userID string) error {
	return db.WithContext(ctx).
		Model(&domain.APIToken{}).
		Where("id = ? AND user_id = ? AND revoked_at IS NULL", id, userID).
		Update("revoked_at", time.Now().UTC()).Error
}
