package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jdekker/go-notes-backend/internal/domain"
	"github.com/jdekker/go-notes-backend/internal/services"
)

type stubSessionService struct {
	session   *domain.Session
	createErr error
	updateErr error

	views   []services.SessionView
	listErr error

	statsCount int64
	statsMaxTS *time.Time
	statsErr   error

	chunk       *domain.TranscriptChunk
	dedup       bool
	addChunkErr error

	gotStart    time.Time
	gotLanguage string
	gotPatch    services.SessionPatch
	gotChunk    services.ChunkInput
}

func (s *stubSessionService) Create(ctx context.Context, userID, title string, startTime time.Time, language string) (*domain.Session, error) {
	s.gotStart, s.gotLanguage = startTime, language
	return s.session, s.createErr
}

func (s *stubSessionService) Update(ctx context.Context, userID, id string, p services.SessionPatch) (*domain.Session, error) {
	s.gotPatch = p
	return s.session, s.updateErr
}

func (s *stubSessionService) List(ctx context.Context, userID string, limit, offset int) ([]services.SessionView, int64, error) {
	return s.views, int64(len(s.views)), s.listErr
}

func (s *stubSessionService) Stats(ctx context.Context, userID string) (int64, *time.Time, error) {
	return s.statsCount, s.statsMaxTS, s.statsErr
}

func (s *stubSessionService) AddChunk(ctx context.Context, userID, sessionID string, in services.ChunkInput) (*domain.TranscriptChunk, bool, error) {
	s.gotChunk = in
	return s.chunk, s.dedup, s.addChunkErr
}

func TestCreateSessionHandler(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	stub := &stubSessionService{session: &domain.Session{ID: "s1", UserID: "u1", Title: "Standup"}}
	r := newTestRouter(New(nil, stub, nil))

	w := perform(r, http.MethodPost, "/sessions", gin.H{
		"title":      "Standup",
		"start_time": start,
		"language":   "nl-NL",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d body %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	sess, ok := body["session"].(map[string]any)
	if !ok || sess["id"] != "s1" {
		t.Fatalf("body = %v, want session envelope", body)
	}
	if !stub.gotStart.Equal(start) || stub.gotLanguage != "nl-NL" {
		t.Fatalf("service got start=%v lang=%q", stub.gotStart, stub.gotLanguage)
	}
}

func TestCreateSessionHandlerErrors(t *testing.T) {
	cases := []struct {
		label      string
		body       any
		svcErr     error
		wantStatus int
	}{
		{"missing title", gin.H{}, nil, http.StatusBadRequest},
		{"blank title", gin.H{"title": " "}, services.ErrEmptyTitle, http.StatusBadRequest},
		{"long title", gin.H{"title": "x"}, services.ErrTitleTooLong, http.StatusBadRequest},
		{"storage failure", gin.H{"title": "x"}, errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		r := newTestRouter(New(nil, &stubSessionService{createErr: tc.svcErr}, nil))
		if w := perform(r, http.MethodPost, "/sessions", tc.body, nil); w.Code != tc.wantStatus {
			t.Errorf("%s: status %d, want %d", tc.label, w.Code, tc.wantStatus)
		}
	}
}

func TestUpdateSessionHandler(t *testing.T) {
	stub := &stubSessionService{session: &domain.Session{ID: "s1", Title: "Renamed"}}
	r := newTestRouter(New(nil, stub, nil))

	w := perform(r, http.MethodPatch, "/sessions/s1", gin.H{"title": "Renamed"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d body %s", w.Code, w.Body.String())
	}
	if stub.gotPatch.Title == nil || *stub.gotPatch.Title != "Renamed" {
		t.Fatalf("patch not forwarded: %+v", stub.gotPatch)
	}

	cases := []struct {
		label      string
		svcErr     error
		wantStatus int
		wantMsg    string
	}{
		{"empty patch", services.ErrEmptyPatch, http.StatusBadRequest, "no valid fields to update"},
		{"not found", services.ErrSessionNotFound, http.StatusNotFound, "session not found"},
		{"storage failure", errors.New("boom"), http.StatusInternalServerError, "failed to update session"},
	}
	for _, tc := range cases {
		r := newTestRouter(New(nil, &stubSessionService{updateErr: tc.svcErr}, nil))
		w := perform(r, http.MethodPatch, "/sessions/s1", gin.H{}, nil)
		if w.Code != tc.wantStatus {
			t.Errorf("%s: status %d, want %d", tc.label, w.Code, tc.wantStatus)
			continue
		}
		if body := decodeBody(t, w); body["error"] != tc.wantMsg {
			t.Errorf("%s: error %v, want %q", tc.label, body["error"], tc.wantMsg)
		}
	}
}

func TestListSessionsHandlerETag(t *testing.T) {
	ts := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	stub := &stubSessionService{
		views: []services.SessionView{
			{Session: domain.Session{ID: "s1", UserID: "u1", Title: "A"}, ChunkCount: 3, HasSummary: true},
		},
		statsCount: 1,
		statsMaxTS: &ts,
	}
	r := newTestRouter(New(nil, stub, nil))

	w := perform(r, http.MethodGet, "/sessions", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("200 response missing ETag")
	}
	body := decodeBody(t, w)
	sessions, ok := body["sessions"].([]any)
	if !ok || len(sessions) != 1 {
		t.Fatalf("sessions = %v", body["sessions"])
	}
	first := sessions[0].(map[string]any)
	if first["chunk_count"] != float64(3) || first["has_summary"] != true {
		t.Fatalf("enrichment missing: %v", first)
	}

	// Replaying the validator yields 304 with no body.
	w = perform(r, http.MethodGet, "/sessions", nil, map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusNotModified {
		t.Fatalf("conditional GET: status %d, want 304", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Fatalf("304 carried a body: %q", w.Body.String())
	}

	// A stale validator still gets the full listing.
	w = perform(r, http.MethodGet, "/sessions", nil, map[string]string{"If-None-Match": `W/"sessions:u1:0:0"`})
	if w.Code != http.StatusOK {
		t.Fatalf("stale validator: status %d, want 200", w.Code)
	}
}

func TestAddChunkHandler(t *testing.T) {
	stub := &stubSessionService{
		chunk: &domain.TranscriptChunk{ID: "c1", SessionID: "s1", Text: "hello"},
		dedup: true,
	}
	r := newTestRouter(New(nil, stub, nil))

	w := perform(r, http.MethodPost, "/sessions/s1/chunks", gin.H{
		"chunkId":    "c1",
		"start_time": "09:00",
		"end_time":   "09:05",
		"text":       "hello",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d body %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["deduplicated"] != true {
		t.Fatalf("deduplicated flag not passed through: %v", body)
	}
	chunk, ok := body["chunk"].(map[string]any)
	if !ok || chunk["id"] != "c1" {
		t.Fatalf("chunk envelope wrong: %v", body)
	}
	if stub.gotChunk.ID != "c1" || stub.gotChunk.Text != "hello" {
		t.Fatalf("input not forwarded: %+v", stub.gotChunk)
	}
}

func TestAddChunkHandlerErrors(t *testing.T) {
	valid := gin.H{"start_time": "09:00", "end_time": "09:05", "text": "hello"}
	cases := []struct {
		label      string
		body       any
		svcErr     error
		wantStatus int
	}{
		{"missing fields", gin.H{"text": "x"}, nil, http.StatusBadRequest},
		{"unknown session", valid, services.ErrSessionNotFound, http.StatusNotFound},
		{"blank text", valid, services.ErrEmptyText, http.StatusBadRequest},
		{"long text", valid, services.ErrTextTooLong, http.StatusBadRequest},
		{"storage failure", valid, errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		r := newTestRouter(New(nil, &stubSessionService{addChunkErr: tc.svcErr}, nil))
		if w := perform(r, http.MethodPost, "/sessions/s1/chunks", tc.body, nil); w.Code != tc.wantStatus {
			t.Errorf("%s: status %d, want %d", tc.label, w.Code, tc.wantStatus)
		}
	}
}
