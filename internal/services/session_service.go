// Package services – SessionService
//
// This file implements the SessionService, which manages capture sessions
// and their transcript chunks. It validates and normalizes inputs, enforces
// ownership rules, coordinates repository operations, and records ingest
// events as a best-effort audit trail. Chunk insertion honors the client
// deduplication contract: a retried chunkId returns the original row instead
// of creating a duplicate, even when two retries race.
package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/jdekker/go-notes-backend/internal/domain"
	"github.com/jdekker/go-notes-backend/internal/repo"
)

// SessionRepo defines the repository contract required by SessionService.
type SessionRepo interface {
	// CreateSession inserts a new session row for the given user.
	CreateSession(ctx context.Context, db *gorm.DB, userID, title string, startTime time.Time, language string) (*domain.Session, error)

	// GetSession fetches a session by ID ensuring it belongs to the user.
	GetSession(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Session, error)

	// UpdateSession applies a partial update to an owned session and returns
	// the fresh row.
	UpdateSession(ctx context.Context, db *gorm.DB, id, userID string, patch map[string]any) (*domain.Session, error)

	// ListSessionsPage returns a page of the user's sessions, newest first.
	ListSessionsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Session, error)

	// ChunkCountsBySession returns chunk counts keyed by session id.
	ChunkCountsBySession(ctx context.Context, db *gorm.DB, sessionIDs []string) (map[string]int64, error)

	// SummarizedSessionIDs returns the subset of sessionIDs that have at
	// least one summary.
	SummarizedSessionIDs(ctx context.Context, db *gorm.DB, sessionIDs []string) (map[string]struct{}, error)

	// SessionsStats returns the session count and latest activity time for
	// the user, used to derive cache validators.
	SessionsStats(ctx context.Context, db *gorm.DB, userID string) (int64, *time.Time, error)
}

// ChunkRepo defines the chunk persistence contract required by SessionService.
type ChunkRepo interface {
	// GetChunk fetches a chunk by id within a session.
	GetChunk(ctx context.Context, db *gorm.DB, sessionID, id string) (*domain.TranscriptChunk, error)

	// CreateChunk inserts a chunk, generating an id when none is supplied.
	// A uniqueness violation on a client-supplied id surfaces as
	// repo.ErrDuplicate.
	CreateChunk(ctx context.Context, db *gorm.DB, sessionID, id, startTime, endTime, text string, confidence *float64) (*domain.TranscriptChunk, error)
}

// EventRepo records append-only ingest events.
type EventRepo interface {
	CreateIngestEvent(ctx context.Context, db *gorm.DB, userID, eventType string, payload map[string]any) error
}

// SessionView is a Session enriched with derived ingestion state for list
// responses.
type SessionView struct {
	domain.Session
	ChunkCount int64 `json:"chunk_count"`
	HasSummary bool  `json:"has_summary"`
}

// ChunkInput carries the fields of an addChunk request after binding.
type ChunkInput struct {
	// ID is the optional client-supplied chunkId enabling idempotent retries.
	ID         string
	StartTime  string
	EndTime    string
	Text       string
	Confidence *float64
}

// SessionService provides session-level operations: creation, partial
// updates, enriched listing, and idempotent chunk ingestion.
type SessionService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the session repository used by this service.
	Repo SessionRepo
	// Chunks is the transcript chunk repository.
	Chunks ChunkRepo
	// Events receives best-effort ingest events.
	Events EventRepo

	// TitleMaxLen caps session titles by rune length.
	TitleMaxLen int
	// TextMaxLen caps chunk text by rune length.
	TextMaxLen int
	// DefaultLanguage is applied when a create request omits language.
	DefaultLanguage string
	// EventTimeout bounds the detached ingest-event writes.
	EventTimeout time.Duration
}

// NewSessionService constructs a SessionService with the default limits.
func NewSessionService(db *gorm.DB, r SessionRepo, c ChunkRepo, e EventRepo, defaultLanguage string) *SessionService {
	if defaultLanguage == "" {
		defaultLanguage = "en-US"
	}
	return &SessionService{
		DB:              db,
		Repo:            r,
		Chunks:          c,
		Events:          e,
		TitleMaxLen:     500,
		TextMaxLen:      10000,
		DefaultLanguage: defaultLanguage,
		EventTimeout:    5 * time.Second,
	}
}

// Create inserts a new session owned by userID. A zero startTime defaults to
// now and a blank language to the configured default. Emits a
// session_created ingest event without blocking the response.
func (s *SessionService) Create(ctx context.Context, userID, title string, startTime time.Time, language string) (*domain.Session, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	if utf8.RuneCountInString(title) > s.TitleMaxLen {
		return nil, ErrTitleTooLong
	}
	if startTime.IsZero() {
		startTime = time.Now().UTC()
	}
	if strings.TrimSpace(language) == "" {
		language = s.DefaultLanguage
	}

	sess, err := s.Repo.CreateSession(ctx, s.DB, userID, title, startTime, language)
	if err != nil {
		return nil, err
	}
	s.recordEvent(userID, repo.EventSessionCreated, map[string]any{
		"session_id": sess.ID,
		"title":      sess.Title,
	})
	return sess, nil
}

// SessionPatch carries the updatable fields of a session. Nil pointers mean
// "leave unchanged"; at least one field must be set.
type SessionPatch struct {
	Title   *string
	EndTime *time.Time
}

// Update applies a partial update to an owned session and returns the fresh
// row. Only title and end_time are updatable.
func (s *SessionService) Update(ctx context.Context, userID, id string, p SessionPatch) (*domain.Session, error) {
	patch := map[string]any{}
	if p.Title != nil {
		t := strings.TrimSpace(*p.Title)
		if t == "" {
			return nil, ErrEmptyTitle
		}
		if utf8.RuneCountInString(t) > s.TitleMaxLen {
			return nil, ErrTitleTooLong
		}
		patch["title"] = t
	}
	if p.EndTime != nil {
		patch["end_time"] = p.EndTime.UTC()
	}
	if len(patch) == 0 {
		return nil, ErrEmptyPatch
	}

	sess, err := s.Repo.UpdateSession(ctx, s.DB, id, userID, patch)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return sess, nil
}

// List returns a window of the user's sessions, newest first, each enriched
// with its chunk count and whether a summary exists. Limit defaults to 20 and
// is capped at 100; negative offsets are coerced to 0.
func (s *SessionService) List(ctx context.Context, userID string, limit, offset int) ([]SessionView, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	total, _, err := s.Repo.SessionsStats(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []SessionView{}, 0, nil
	}

	items, err := s.Repo.ListSessionsPage(ctx, s.DB, userID, offset, limit)
	if err != nil {
		return nil, 0, err
	}

	ids := make([]string, 0, len(items))
	for i := range items {
		ids = append(ids, items[i].ID)
	}
	counts, err := s.Repo.ChunkCountsBySession(ctx, s.DB, ids)
	if err != nil {
		return nil, 0, err
	}
	summarized, err := s.Repo.SummarizedSessionIDs(ctx, s.DB, ids)
	if err != nil {
		return nil, 0, err
	}

	views := make([]SessionView, 0, len(items))
	for i := range items {
		_, has := summarized[items[i].ID]
		views = append(views, SessionView{
			Session:    items[i],
			ChunkCount: counts[items[i].ID],
			HasSummary: has,
		})
	}
	return views, total, nil
}

// Stats returns the user's session count and latest activity timestamp
// (newest session update or summary), used by handlers to derive weak ETags
// for list responses.
func (s *SessionService) Stats(ctx context.Context, userID string) (int64, *time.Time, error) {
	return s.Repo.SessionsStats(ctx, s.DB, userID)
}

// AddChunk appends a transcript chunk to an owned session.
//
// When in.ID is supplied the call is idempotent: if a chunk with that id
// already exists under the session, the original row is returned with
// deduplicated=true, including when the duplicate is only detected as a
// uniqueness violation during a concurrent insert race. A successful new
// insert emits a chunk_ingested ingest event.
func (s *SessionService) AddChunk(ctx context.Context, userID, sessionID string, in ChunkInput) (chunk *domain.TranscriptChunk, deduplicated bool, err error) {
	if _, err = s.Repo.GetSession(ctx, s.DB, sessionID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, ErrSessionNotFound
		}
		return nil, false, err
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, false, ErrEmptyText
	}
	if utf8.RuneCountInString(text) > s.TextMaxLen {
		return nil, false, ErrTextTooLong
	}
	if strings.TrimSpace(in.StartTime) == "" || strings.TrimSpace(in.EndTime) == "" {
		return nil, false, ErrMissingTimestamps
	}

	// Fast path: a retried chunkId short-circuits before touching the insert.
	if in.ID != "" {
		if existing, err := s.Chunks.GetChunk(ctx, s.DB, sessionID, in.ID); err == nil {
			return existing, true, nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, err
		}
	}

	created, err := s.Chunks.CreateChunk(ctx, s.DB, sessionID, in.ID, in.StartTime, in.EndTime, text, in.Confidence)
	if err != nil {
		// Two concurrent retries can both miss the fast path; the loser of
		// the insert race still gets the deduplicated response.
		if errors.Is(err, repo.ErrDuplicate) && in.ID != "" {
			existing, gerr := s.Chunks.GetChunk(ctx, s.DB, sessionID, in.ID)
			if gerr != nil {
				return nil, false, gerr
			}
			return existing, true, nil
		}
		return nil, false, err
	}

	s.recordEvent(userID, repo.EventChunkIngested, map[string]any{
		"session_id": sessionID,
		"chunk_id":   created.ID,
	})
	return created, false, nil
}

// recordEvent writes an ingest event on a detached context so the caller's
// response never waits on, or fails because of, the audit trail.
func (s *SessionService) recordEvent(userID, eventType string, payload map[string]any) {
	if s.Events == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.EventTimeout)
		defer cancel()
		if err := s.Events.CreateIngestEvent(ctx, s.DB, userID, eventType, payload); err != nil {
			log.Warn().Err(err).Str("event_type", eventType).Msg("ingest event write failed")
		}
	}()
}
