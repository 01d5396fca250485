// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// TranscriptChunk model, including the race-tolerant idempotent insert used
// by chunk ingestion.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jdekker/go-notes-backend/internal/domain"
)

// ErrDuplicate indicates that a chunk row already exists for the supplied
// client chunk id. Callers translate it into a deduplicated response, never
// into an error surface.
var ErrDuplicate = errors.New("duplicate")

// GetChunk fetches a chunk by (sessionID, id) or returns ErrNotFound.
func GetChunk(ctx context.Context, db *gorm.DB, sessionID, id string) (*domain.TranscriptChunk, error) {
	var c domain.TranscriptChunk
	err := db.WithContext(ctx).
		Where("session_id = ? AND id = ?", sessionID, id).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateChunk inserts a transcript chunk. When id is empty a fresh UUID is
// generated; a non-empty id is the client-supplied chunkId and may collide
// with a concurrent retry, in which case the primary-key violation is
// reported as ErrDuplicate so the caller can serve the original row.
func CreateChunk(ctx context.Context, db *gorm.DB, sessionID, id, startTime, endTime, text string, confidence *float64) (*domain.TranscriptChunk, error) {
	if id == "" {
		id = uuid.NewString()
	}
	c := &domain.TranscriptChunk{
		ID:         id,
		SessionID:  sessionID,
		StartTime:  startTime,
		EndTime:    endTime,
		Text:       text,
		Confidence: confidence,
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
		low := strings.ToLower(err.Error())
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(low, "unique constraint failed") ||
			strings.Contains(low, "constraint failed: unique") {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return c, nil
}

// ListChunks returns all chunks for a session ordered by creation time
// ascending, the order in which the transcript is assembled.
func ListChunks(ctx context.Context, db *gorm.DB, sessionID string) ([]domain.TranscriptChunk, error) {
	var out []domain.TranscriptChunk
	err := db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// CountChunks returns the number of chunks recorded for a session.
func CountChunks(ctx context.Context, db *gorm.DB, sessionID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.TranscriptChunk{}).
		Where("session_id = ?", sessionID).
		Count(&total).Error
	return total, err
}
