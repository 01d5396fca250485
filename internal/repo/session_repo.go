// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Session
// model.
//
// Every mutating operation re-asserts ownership in its filter predicate
// (id AND user_id) instead of trusting a previously loaded object; with
// multiple stateless instances this is the only reliable guard.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jdekker/go-notes-backend/internal/domain"
)

// CreateSession inserts a new Session row owned by userID. The session ID is
// a randomly generated UUID and CreatedAt is set to UTC.
func CreateSession(ctx context.Context, db *gorm.DB, userID, title string, startTime time.Time, language string) (*domain.Session, error) {
	s := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		StartTime: startTime,
		Language:  language,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// GetSession fetches a single session by its ID and owner (userID). If the
// record does not exist or belongs to someone else, it returns ErrNotFound;
// the two cases are indistinguishable on purpose.
func GetSession(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Session, error) {
	var s domain.Session
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateSession applies a partial update (title and/or end_time) to a session
// owned by userID and returns the updated row. If no rows are affected
// (session missing or not owned), it returns ErrNotFound.
func UpdateSession(ctx context.Context, db *gorm.DB, id, userID string, patch map[string]any) (*domain.Session, error) {
	res := db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(patch)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return GetSession(ctx, db, id, userID)
}

// ListSessionsPage returns a page of sessions for userID ordered by
// start_time descending (most recent recording first).
func ListSessionsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Session, error) {
	var out []domain.Session
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("start_time desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ChunkCountsBySession returns a map of session id → number of transcript
// chunks for the given sessions. Sessions without chunks are absent from the
// map.
func ChunkCountsBySession(ctx context.Context, db *gorm.DB, sessionIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(sessionIDs))
	if len(sessionIDs) == 0 {
		return counts, nil
	}
	var rows []struct {
		SessionID string
		N         int64
	}
	err := db.WithContext(ctx).
		Model(&domain.TranscriptChunk{}).
		Select("session_id, COUNT(*) AS n").
		Where("session_id IN ?", sessionIDs).
		Group("session_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		counts[r.SessionID] = r.N
	}
	return counts, nil
}

// SummarizedSessionIDs returns the subset of sessionIDs that have at least
// one summary.
func SummarizedSessionIDs(ctx context.Context, db *gorm.DB, sessionIDs []string) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(sessionIDs))
	if len(sessionIDs) == 0 {
		return out, nil
	}
	var ids []string
	err := db.WithContext(ctx).
		Model(&domain.Summary{}).
		Distinct("session_id").
		Where("session_id IN ?", sessionIDs).
		Pluck("session_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}
