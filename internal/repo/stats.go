// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (e.g., ETag generation) in the HTTP
// layer. Each function is context-aware and safe to call from services or
// handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/jdekker/go-notes-backend/internal/domain"
)

// SessionsStats returns aggregate metadata for a user's sessions: the total
// number of rows and the latest activity timestamp. The activity timestamp is
// the greater of the newest session updated_at and the newest summary
// created_at, so list validators derived from it move whenever a session is
// created or patched or a summary lands (has_summary flips).
//
// When the user has no sessions, the returned count is 0 and lastActivity is
// nil.
//
// Return values:
//   - count:        total sessions for userID
//   - lastActivity: pointer to the latest activity time, or nil if no rows
//   - err:          database error, if any
func SessionsStats(ctx context.Context, db *gorm.DB, userID string) (count int64, lastActivity *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Session{}).Where("user_id = ?", userID)

	// Count
	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	last := row.UpdatedAt

	// Fold in the newest summary: summarizing changes the listing body
	// (has_summary) without touching any session row.
	var srow struct {
		CreatedAt time.Time
	}
	res := db.WithContext(ctx).
		Model(&domain.Summary{}).
		Select("created_at").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(1).
		Scan(&srow)
	if res.Error != nil {
		return 0, nil, res.Error
	}
	if res.RowsAffected > 0 && srow.CreatedAt.After(last) {
		last = srow.CreatedAt
	}
	return count, &last, nil
}
