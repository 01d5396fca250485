// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Summary
// model and its derived projections (action items, agenda items, reminders,
// important facts).
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jdekker/go-notes-backend/internal/domain"
)

// CreateSummary inserts one summary row. The raw JSON payload must already be
// validated against the schema matching promptVersion.
func CreateSummary(ctx context.Context, db *gorm.DB, s *domain.Summary) (*domain.Summary, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// InsertActionItems bulk-inserts the action-item projection for a summary.
// An empty slice is a no-op.
func InsertActionItems(ctx context.Context, db *gorm.DB, summaryID string, items []domain.ActionItemJSON) error {
	if len(items) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]domain.ActionItem, 0, len(items))
	for _, it := range items {
		priority := it.Priority
		if priority == "" {
			priority = domain.PriorityMed
		}
		rows = append(rows, domain.ActionItem{
			ID:        uuid.NewString(),
			SummaryID: summaryID,
			Task:      it.Task,
			DueDate:   it.DueDate,
			Priority:  priority,
			Status:    domain.StatusOpen,
			Context:   it.Context,
			CreatedAt: now,
		})
	}
	return db.WithContext(ctx).Create(&rows).Error
}

// InsertAgendaItems bulk-inserts the agenda projection for a summary.
func InsertAgendaItems(ctx context.Context, db *gorm.DB, summaryID string, items []domain.AgendaItemJSON) error {
	if len(items) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]domain.AgendaItem, 0, len(items))
	for _, it := range items {
		rows = append(rows, domain.AgendaItem{
			ID:              uuid.NewString(),
			SummaryID:       summaryID,
			Title:           it.Title,
			Datetime:        it.Datetime,
			DurationMinutes: it.DurationMinutes,
			Notes:           it.Context,
			CreatedAt:       now,
		})
	}
	return db.WithContext(ctx).Create(&rows).Error
}

// InsertReminders bulk-inserts the reminder projection for a summary.
func InsertReminders(ctx context.Context, db *gorm.DB, summaryID string, items []domain.ReminderJSON) error {
	if len(items) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]domain.Reminder, 0, len(items))
	for _, it := range items {
		rows = append(rows, domain.Reminder{
			ID:              uuid.NewString(),
			SummaryID:       summaryID,
			Text:            it.Text,
			TriggerDatetime: it.TriggerDatetime,
			Status:          domain.StatusOpen,
			CreatedAt:       now,
		})
	}
	return db.WithContext(ctx).Create(&rows).Error
}

// InsertImportantFacts bulk-inserts the fact projection for a summary.
func InsertImportantFacts(ctx context.Context, db *gorm.DB, summaryID string, facts []string) error {
	if len(facts) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]domain.ImportantFact, 0, len(facts))
	for _, f := range facts {
		rows = append(rows, domain.ImportantFact{
			ID:        uuid.NewString(),
			SummaryID: summaryID,
			Fact:      f,
			CreatedAt: now,
		})
	}
	return db.WithContext(ctx).Create(&rows).Error
}

// CountSummariesBySession returns the number of summaries for a session.
// Used by tests and the list enrichment fallback.
func CountSummariesBySession(ctx context.Context, db *gorm.DB, sessionID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Summary{}).
		Where("session_id = ?", sessionID).
		Count(&total).Error
	return total, err
}
