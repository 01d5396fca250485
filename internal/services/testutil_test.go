package services

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jdekker/go-notes-backend/internal/domain"
	"github.com/jdekker/go-notes-backend/internal/repo"
)

// newServiceDB opens a throwaway SQLite database with the full schema.
func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("services_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// Shims implementing the service repo contracts over the repo free functions,
// mirroring the wiring in the router.

type testTokenRepo struct{}

func (testTokenRepo) CreateAPIToken(ctx context.Context, db *gorm.DB, userID, name, tokenHash string) (*domain.APIToken, error) {
	return repo.CreateAPIToken(ctx, db, userID, name, tokenHash)
}

func (testTokenRepo) ListAPITokens(ctx context.Context, db *gorm.DB, userID string) ([]domain.APIToken, error) {
	return repo.ListAPITokens(ctx, db, userID)
}

func (testTokenRepo) RevokeAPIToken(ctx context.Context, db *gorm.DB, id, userID string) error {
	return repo.RevokeAPIToken(ctx, db, id, userID)
}

type testSessionRepo struct{}

func (testSessionRepo) CreateSession(ctx context.Context, db *gorm.DB, userID, title string, startTime time.Time, language string) (*domain.Session, error) {
	return repo.CreateSession(ctx, db, userID, title, startTime, language)
}

func (testSessionRepo) GetSession(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Session, error) {
	return repo.GetSession(ctx, db, id, userID)
}

func (testSessionRepo) UpdateSession(ctx context.Context, db *gorm.DB, id, userID string, patch map[string]any) (*domain.Session, error) {
	return repo.UpdateSession(ctx, db, id, userID, patch)
}

func (testSessionRepo) ListSessionsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Session, error) {
	return repo.ListSessionsPage(ctx, db, userID, offset, limit)
}

func (testSessionRepo) ChunkCountsBySession(ctx context.Context, db *gorm.DB, sessionIDs []string) (map[string]int64, error) {
	return repo.ChunkCountsBySession(ctx, db, sessionIDs)
}

func (testSessionRepo) SummarizedSessionIDs(ctx context.Context, db *gorm.DB, sessionIDs []string) (map[string]struct{}, error) {
	return repo.SummarizedSessionIDs(ctx, db, sessionIDs)
}

func (testSessionRepo) SessionsStats(ctx context.Context, db *gorm.DB, userID string) (int64, *time.Time, error) {
	return repo.SessionsStats(ctx, db, userID)
}

type testChunkRepo struct{}

func (testChunkRepo) GetChunk(ctx context.Context, db *gorm.DB, sessionID, id string) (*domain.TranscriptChunk, error) {
	return repo.GetChunk(ctx, db, sessionID, id)
}

func (testChunkRepo) CreateChunk(ctx context.Context, db *gorm.DB, sessionID, id, startTime, endTime, text string, confidence *float64) (*domain.TranscriptChunk, error) {
	return repo.CreateChunk(ctx, db, sessionID, id, startTime, endTime, text, confidence)
}

func (testChunkRepo) ListChunks(ctx context.Context, db *gorm.DB, sessionID string) ([]domain.TranscriptChunk, error) {
	return repo.ListChunks(ctx, db, sessionID)
}

type testEventRepo struct{}

func (testEventRepo) CreateIngestEvent(ctx context.Context, db *gorm.DB, userID, eventType string, payload map[string]any) error {
	return repo.CreateIngestEvent(ctx, db, userID, eventType, payload)
}

type testSummaryRepo struct{}

func (testSummaryRepo) CreateSummary(ctx context.Context, db *gorm.DB, s *domain.Summary) (*domain.Summary, error) {
	return repo.CreateSummary(ctx, db, s)
}

func (testSummaryRepo) InsertActionItems(ctx context.Context, db *gorm.DB, summaryID string, items []domain.ActionItemJSON) error {
	return repo.InsertActionItems(ctx, db, summaryID, items)
}

func (testSummaryRepo) InsertAgendaItems(ctx context.Context, db *gorm.DB, summaryID string, items []domain.AgendaItemJSON) error {
	return repo.InsertAgendaItems(ctx, db, summaryID, items)
}

func (testSummaryRepo) InsertReminders(ctx context.Context, db *gorm.DB, summaryID string, items []domain.ReminderJSON) error {
	return repo.InsertReminders(ctx, db, summaryID, items)
}

func (testSummaryRepo) InsertImportantFacts(ctx context.Context, db *gorm.DB, summaryID string, facts []string) error {
	return repo.InsertImportantFacts(ctx, db, summaryID, facts)
}
