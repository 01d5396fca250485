package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/jdekker/go-notes-backend/internal/domain"
	"github.com/jdekker/go-notes-backend/internal/repo"
)

func newSessionService(t *testing.T) *SessionService {
	t.Helper()
	return NewSessionService(newServiceDB(t), testSessionRepo{}, testChunkRepo{}, testEventRepo{}, "")
}

func validChunk(id string) ChunkInput {
	return ChunkInput{
		ID:        id,
		StartTime: "2026-03-01T10:00:00Z",
		EndTime:   "2026-03-01T10:00:30Z",
		Text:      "we agreed to ship on Friday",
	}
}

// waitForEvents polls for the ingest-event count since event writes are
// detached from the request path.
func waitForEvents(t *testing.T, db *gorm.DB, want int64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var n int64
		if err := db.Model(&domain.IngestEvent{}).Count(&n).Error; err != nil {
			t.Fatalf("count events: %v", err)
		}
		if n >= want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("ingest event count never reached %d", want)
}

func TestSessionServiceCreateDefaults(t *testing.T) {
	svc := newSessionService(t)
	ctx := context.Background()

	sess, err := svc.Create(ctx, "u1", "  Standup  ", time.Time{}, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sess.Title != "Standup" {
		t.Fatalf("title not trimmed: %q", sess.Title)
	}
	if sess.Language != "en-US" {
		t.Fatalf("language default = %q, want en-US", sess.Language)
	}
	if sess.StartTime.IsZero() {
		t.Fatalf("zero start time was not defaulted")
	}
	waitForEvents(t, svc.DB, 1)
}

func TestSessionServiceCreateValidation(t *testing.T) {
	svc := newSessionService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "u1", "   ", time.Now(), ""); !errors.Is(err, ErrEmptyTitle) {
		t.Fatalf("blank title: got %v, want ErrEmptyTitle", err)
	}
	if _, err := svc.Create(ctx, "u1", strings.Repeat("t", 501), time.Now(), ""); !errors.Is(err, ErrTitleTooLong) {
		t.Fatalf("long title: got %v, want ErrTitleTooLong", err)
	}
}

func TestSessionServiceUpdate(t *testing.T) {
	svc := newSessionService(t)
	ctx := context.Background()

	sess, err := svc.Create(ctx, "u1", "Planning", time.Now().UTC(), "nl-NL")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.Update(ctx, "u1", sess.ID, SessionPatch{}); !errors.Is(err, ErrEmptyPatch) {
		t.Fatalf("empty patch: got %v, want ErrEmptyPatch", err)
	}

	title := "Q2 planning"
	end := time.Now().UTC().Add(time.Hour)
	updated, err := svc.Update(ctx, "u1", sess.ID, SessionPatch{Title: &title, EndTime: &end})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != "Q2 planning" || updated.EndTime == nil {
		t.Fatalf("patch not applied: %+v", updated)
	}

	if _, err := svc.Update(ctx, "intruder", sess.ID, SessionPatch{Title: &title}); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("cross-user update: got %v, want ErrSessionNotFound", err)
	}
	if _, err := svc.Update(ctx, "u1", "nope", SessionPatch{Title: &title}); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("unknown id: got %v, want ErrSessionNotFound", err)
	}
}

func TestSessionServiceListEnrichment(t *testing.T) {
	svc := newSessionService(t)
	ctx := context.Background()

	older, err := svc.Create(ctx, "u1", "Older", time.Now().UTC().Add(-time.Hour), "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	newer, err := svc.Create(ctx, "u1", "Newer", time.Now().UTC(), "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, _, err := svc.AddChunk(ctx, "u1", newer.ID, validChunk("")); err != nil {
		t.Fatalf("AddChunk: %v", err)
	}
	if _, _, err := svc.AddChunk(ctx, "u1", newer.ID, validChunk("")); err != nil {
		t.Fatalf("AddChunk: %v", err)
	}
	if _, err := repo.CreateSummary(ctx, svc.DB, &domain.Summary{
		SessionID: &older.ID,
		UserID:    "u1",
		Scope:     domain.ScopeSession,
		StartTime: older.StartTime,
		EndTime:   time.Now().UTC(),
		Model:     "m",
		RawJSON:   "{}",
	}); err != nil {
		t.Fatalf("seed summary: %v", err)
	}

	views, total, err := svc.List(ctx, "u1", 0, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 2 || len(views) != 2 {
		t.Fatalf("got %d views (total %d), want 2", len(views), total)
	}
	if views[0].ID != newer.ID {
		t.Fatalf("list not newest-first: %q first", views[0].Title)
	}
	if views[0].ChunkCount != 2 || views[0].HasSummary {
		t.Fatalf("newer view = chunks %d summary %v, want 2/false", views[0].ChunkCount, views[0].HasSummary)
	}
	if views[1].ChunkCount != 0 || !views[1].HasSummary {
		t.Fatalf("older view = chunks %d summary %v, want 0/true", views[1].ChunkCount, views[1].HasSummary)
	}

	// Windowing.
	page, total, err := svc.List(ctx, "u1", 1, 1)
	if err != nil {
		t.Fatalf("List window: %v", err)
	}
	if total != 2 || len(page) != 1 || page[0].ID != older.ID {
		t.Fatalf("offset window wrong: %+v", page)
	}

	empty, total, err := svc.List(ctx, "nobody", 0, 0)
	if err != nil {
		t.Fatalf("List empty: %v", err)
	}
	if total != 0 || len(empty) != 0 {
		t.Fatalf("expected empty listing, got %d/%d", len(empty), total)
	}
}

func TestSessionServiceAddChunkValidation(t *testing.T) {
	svc := newSessionService(t)
	ctx := context.Background()

	sess, err := svc.Create(ctx, "u1", "Capture", time.Now().UTC(), "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, _, err := svc.AddChunk(ctx, "u1", "missing", validChunk("")); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("unknown session: got %v, want ErrSessionNotFound", err)
	}
	if _, _, err := svc.AddChunk(ctx, "intruder", sess.ID, validChunk("")); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("foreign session: got %v, want ErrSessionNotFound", err)
	}

	in := validChunk("")
	in.Text = "   "
	if _, _, err := svc.AddChunk(ctx, "u1", sess.ID, in); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("blank text: got %v, want ErrEmptyText", err)
	}

	in = validChunk("")
	in.Text = strings.Repeat("a", 10001)
	if _, _, err := svc.AddChunk(ctx, "u1", sess.ID, in); !errors.Is(err, ErrTextTooLong) {
		t.Fatalf("long text: got %v, want ErrTextTooLong", err)
	}

	in = validChunk("")
	in.EndTime = ""
	if _, _, err := svc.AddChunk(ctx, "u1", sess.ID, in); !errors.Is(err, ErrMissingTimestamps) {
		t.Fatalf("missing endTime: got %v, want ErrMissingTimestamps", err)
	}
}

func TestSessionServiceAddChunkDedup(t *testing.T) {
	svc := newSessionService(t)
	ctx := context.Background()

	sess, err := svc.Create(ctx, "u1", "Capture", time.Now().UTC(), "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	first, dedup, err := svc.AddChunk(ctx, "u1", sess.ID, validChunk("chunk-1"))
	if err != nil {
		t.Fatalf("AddChunk: %v", err)
	}
	if dedup {
		t.Fatalf("first insert flagged as deduplicated")
	}

	second, dedup, err := svc.AddChunk(ctx, "u1", sess.ID, validChunk("chunk-1"))
	if err != nil {
		t.Fatalf("retried AddChunk: %v", err)
	}
	if !dedup || second.ID != first.ID {
		t.Fatalf("retry not deduplicated: dedup=%v id=%q", dedup, second.ID)
	}

	var n int64
	if err := svc.DB.Model(&domain.TranscriptChunk{}).Where("session_id = ?", sess.ID).Count(&n).Error; err != nil {
		t.Fatalf("count chunks: %v", err)
	}
	if n != 1 {
		t.Fatalf("chunk rows = %d, want 1", n)
	}
}

func TestSessionServiceAddChunkSameIDAcrossSessions(t *testing.T) {
	svc := newSessionService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, "u1", "Morning standup", time.Now().UTC(), "")
	if err != nil {
		t.Fatalf("Create a: %v", err)
	}
	b, err := svc.Create(ctx, "u1", "Afternoon review", time.Now().UTC(), "")
	if err != nil {
		t.Fatalf("Create b: %v", err)
	}

	// Chunk ids are scoped per session; a recorder restarting its counter in
	// another session is a fresh insert, not a dedup hit and not an error.
	if _, dedup, err := svc.AddChunk(ctx, "u1", a.ID, validChunk("chunk-1")); err != nil || dedup {
		t.Fatalf("first session insert: dedup=%v err=%v", dedup, err)
	}
	if _, dedup, err := svc.AddChunk(ctx, "u1", b.ID, validChunk("chunk-1")); err != nil || dedup {
		t.Fatalf("second session insert: dedup=%v err=%v", dedup, err)
	}

	var n int64
	if err := svc.DB.Model(&domain.TranscriptChunk{}).Where("id = ?", "chunk-1").Count(&n).Error; err != nil {
		t.Fatalf("count chunks: %v", err)
	}
	if n != 2 {
		t.Fatalf("chunk rows = %d, want 2", n)
	}
}

// racingChunkRepo simulates losing an insert race: the fast-path lookup
// misses, the insert lands as a uniqueness violation, and the fallback lookup
// finds the winner's row.
type racingChunkRepo struct {
	inner  testChunkRepo
	misses int
}

func (r *racingChunkRepo) GetChunk(ctx context.Context, db *gorm.DB, sessionID, id string) (*domain.TranscriptChunk, error) {
	if r.misses > 0 {
		r.misses--
		return nil, gorm.ErrRecordNotFound
	}
	return r.inner.GetChunk(ctx, db, sessionID, id)
}

func (r *racingChunkRepo) CreateChunk(ctx context.Context, db *gorm.DB, sessionID, id, startTime, endTime, text string, confidence *float64) (*domain.TranscriptChunk, error) {
	if _, err := r.inner.CreateChunk(ctx, db, sessionID, id, startTime, endTime, text, confidence); err != nil {
		return nil, err
	}
	return nil, repo.ErrDuplicate
}

func TestSessionServiceAddChunkDedupInsertRace(t *testing.T) {
	svc := newSessionService(t)
	svc.Chunks = &racingChunkRepo{misses: 1}
	ctx := context.Background()

	sess, err := svc.Create(ctx, "u1", "Capture", time.Now().UTC(), "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	chunk, dedup, err := svc.AddChunk(ctx, "u1", sess.ID, validChunk("chunk-1"))
	if err != nil {
		t.Fatalf("AddChunk: %v", err)
	}
	if !dedup {
		t.Fatalf("insert-race loser not flagged as deduplicated")
	}
	if chunk == nil || chunk.ID != "chunk-1" {
		t.Fatalf("fallback lookup did not return the winner's row: %+v", chunk)
	}
}
