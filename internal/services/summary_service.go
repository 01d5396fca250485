// Package services – SummaryService
//
// This file implements the summarization orchestrator. It gathers a
// session's transcript in chronological order, composes a timestamped
// prompt, invokes the model gateway under a forced structured-output schema,
// validates the result against the versioned summary schema, and persists
// the summary plus its derived rows (action items, agenda suggestions,
// reminders, important facts).
//
// The summary row is the source of truth: derived rows are inserted
// concurrently after it and a partial fan-out failure surfaces an error
// without rolling the summary back, since raw_json already contains the full
// payload and the derived tables can be rebuilt from it.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/jdekker/go-notes-backend/internal/ai"
	"github.com/jdekker/go-notes-backend/internal/domain"
)

// TranscriptRepo provides chronological access to a session's chunks.
type TranscriptRepo interface {
	ListChunks(ctx context.Context, db *gorm.DB, sessionID string) ([]domain.TranscriptChunk, error)
}

// SummaryRepo persists summaries and their derived rows.
type SummaryRepo interface {
	CreateSummary(ctx context.Context, db *gorm.DB, s *domain.Summary) (*domain.Summary, error)
	InsertActionItems(ctx context.Context, db *gorm.DB, summaryID string, items []domain.ActionItemJSON) error
	InsertAgendaItems(ctx context.Context, db *gorm.DB, summaryID string, items []domain.AgendaItemJSON) error
	InsertReminders(ctx context.Context, db *gorm.DB, summaryID string, items []domain.ReminderJSON) error
	InsertImportantFacts(ctx context.Context, db *gorm.DB, summaryID string, facts []string) error
}

// SummaryResult is the outcome of a successful summarization run.
type SummaryResult struct {
	SummaryID string
	RawJSON   json.RawMessage
	Parsed    *domain.SummaryJSON
}

// SummaryService orchestrates transcript summarization end to end.
type SummaryService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Sessions resolves session ownership and metadata.
	Sessions SessionRepo
	// Chunks lists the transcript to summarize.
	Chunks TranscriptRepo
	// Summaries persists the summary and its derived rows.
	Summaries SummaryRepo
	// AI is the model gateway client.
	AI ai.Summarizer

	// ModelName is recorded on each summary row for provenance.
	ModelName string
	// DefaultLanguage selects the prompt pair when a session has no language.
	DefaultLanguage string
}

// NewSummaryService constructs a SummaryService.
func NewSummaryService(db *gorm.DB, sessions SessionRepo, chunks TranscriptRepo, summaries SummaryRepo, client ai.Summarizer, modelName, defaultLanguage string) *SummaryService {
	if defaultLanguage == "" {
		defaultLanguage = "en-US"
	}
	return &SummaryService{
		DB:              db,
		Sessions:        sessions,
		Chunks:          chunks,
		Summaries:       summaries,
		AI:              client,
		ModelName:       modelName,
		DefaultLanguage: defaultLanguage,
	}
}

// Summarize runs the full pipeline for an owned session.
//
// Error mapping for handlers: ErrSessionNotFound (404), ErrNoTranscript
// (400), ErrUpstreamRateLimited (429), ErrUpstreamPayment (402),
// ErrBadModelOutput and anything else (500). When the returned error stems
// from the derived-row fan-out, the summary row has already been persisted.
func (s *SummaryService) Summarize(ctx context.Context, userID, sessionID string) (*SummaryResult, error) {
	sess, err := s.Sessions.GetSession(ctx, s.DB, sessionID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	chunks, err := s.Chunks.ListChunks(ctx, s.DB, sessionID)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, ErrNoTranscript
	}

	lang := sess.Language
	if strings.TrimSpace(lang) == "" {
		lang = s.DefaultLanguage
	}
	system, user := summaryPrompts(lang, sess.Title, composeTranscript(chunks))

	raw, err := s.AI.Summarize(ctx, system, user)
	if err != nil {
		switch {
		case errors.Is(err, ai.ErrRateLimited):
			return nil, ErrUpstreamRateLimited
		case errors.Is(err, ai.ErrPaymentRequired):
			return nil, ErrUpstreamPayment
		case errors.Is(err, ai.ErrUnexpectedFormat):
			return nil, ErrBadModelOutput
		default:
			return nil, err
		}
	}

	parsed, err := domain.ParseSummaryJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadModelOutput, err)
	}

	endTime := time.Now().UTC()
	if sess.EndTime != nil {
		endTime = *sess.EndTime
	}
	row, err := s.Summaries.CreateSummary(ctx, s.DB, &domain.Summary{
		SessionID:     &sess.ID,
		UserID:        userID,
		Scope:         domain.ScopeSession,
		StartTime:     sess.StartTime,
		EndTime:       endTime,
		Model:         s.ModelName,
		PromptVersion: domain.PromptVersionV1,
		RawJSON:       string(raw),
	})
	if err != nil {
		return nil, err
	}

	if err := s.fanOut(ctx, row.ID, parsed); err != nil {
		// The summary row stays; raw_json is authoritative and the derived
		// tables can be rebuilt from it.
		return &SummaryResult{SummaryID: row.ID, RawJSON: raw, Parsed: parsed}, err
	}
	return &SummaryResult{SummaryID: row.ID, RawJSON: raw, Parsed: parsed}, nil
}

// fanOut inserts the derived rows concurrently and returns the first insert
// error, if any.
func (s *SummaryService) fanOut(ctx context.Context, summaryID string, p *domain.SummaryJSON) error {
	inserts := []func() error{
		func() error { return s.Summaries.InsertActionItems(ctx, s.DB, summaryID, p.ActionItems) },
		func() error { return s.Summaries.InsertAgendaItems(ctx, s.DB, summaryID, p.AgendaSuggestions) },
		func() error { return s.Summaries.InsertReminders(ctx, s.DB, summaryID, p.Reminders) },
		func() error { return s.Summaries.InsertImportantFacts(ctx, s.DB, summaryID, p.ImportantFactsToRemember) },
	}

	var wg sync.WaitGroup
	errs := make([]error, len(inserts))
	for i, fn := range inserts {
		wg.Add(1)
		go func(i int, fn func() error) {
			defer wg.Done()
			errs[i] = fn()
		}(i, fn)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return fmt.Errorf("persist derived rows: %w", err)
		}
	}
	return nil
}

// composeTranscript renders chunks as timestamped blocks separated by blank
// lines, preserving chronological order.
func composeTranscript(chunks []domain.TranscriptChunk) string {
	var b strings.Builder
	for i := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%s] %s", chunks[i].StartTime, chunks[i].Text)
	}
	return b.String()
}
