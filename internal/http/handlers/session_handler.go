// Session HTTP handlers.
//
// This file exposes REST endpoints for capture sessions and their transcript
// chunks:
//   - GET   /sessions              (list, enriched, ETag support)
//   - POST  /sessions              (create)
//   - PATCH /sessions/{id}         (partial update: title, end_time)
//   - POST  /sessions/{id}/chunks  (idempotent chunk ingestion)
//
// All four require the API token scheme. Handlers are transport-thin: they
// validate input, call application services, and translate results into HTTP
// responses (including conditional responses).
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jdekker/go-notes-backend/internal/domain"
	"github.com/jdekker/go-notes-backend/internal/services"
	"github.com/jdekker/go-notes-backend/internal/utils"
)

// SessionService defines session and chunk operations consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type SessionService interface {
	// Create starts a new session for userID.
	Create(ctx context.Context, userID, title string, startTime time.Time, language string) (*domain.Session, error)
	// Update applies a partial update to an owned session.
	Update(ctx context.Context, userID, id string, p services.SessionPatch) (*domain.Session, error)
	// List returns a window of the user's sessions plus the total count.
	List(ctx context.Context, userID string, limit, offset int) ([]services.SessionView, int64, error)
	// Stats returns the session count and latest activity time (newest
	// session update or summary) for cache validators.
	Stats(ctx context.Context, userID string) (int64, *time.Time, error)
	// AddChunk appends a transcript chunk, honoring the chunkId dedup contract.
	AddChunk(ctx context.Context, userID, sessionID string, in services.ChunkInput) (*domain.TranscriptChunk, bool, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for tokens, sessions, and summaries.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	tokenSvc TokenService
	sessSvc  SessionService
	sumSvc   SummaryService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(tokenSvc TokenService, sessSvc SessionService, sumSvc SummaryService) *Handlers {
	return &Handlers{tokenSvc: tokenSvc, sessSvc: sessSvc, sumSvc: sumSvc}
}

//
// DTOs
//

// CreateSessionRequest is the JSON payload for creating a session.
type CreateSessionRequest struct {
	// Title names the session (1–500 chars).
	Title string `json:"title" binding:"required" example:"Standup"`
	// StartTime defaults to the current time when omitted.
	StartTime *time.Time `json:"start_time"`
	// Language is a BCP 47 tag; defaults to the server's configured locale.
	Language string `json:"language" example:"nl-NL"`
}

// UpdateSessionRequest is the JSON payload for a partial session update.
// At least one field must be present.
type UpdateSessionRequest struct {
	Title   *string    `json:"title"`
	EndTime *time.Time `json:"end_time"`
}

// SessionResponse wraps a single session resource.
type SessionResponse struct {
	Session *domain.Session `json:"session"`
}

// ListSessionsResponse wraps a window of enriched sessions.
type ListSessionsResponse struct {
	Sessions []services.SessionView `json:"sessions"`
}

// AddChunkRequest is the JSON payload for ingesting a transcript chunk.
type AddChunkRequest struct {
	// ChunkID optionally identifies the chunk for idempotent retries.
	ChunkID    string   `json:"chunkId" example:"c1"`
	StartTime  string   `json:"start_time" binding:"required" example:"09:00"`
	EndTime    string   `json:"end_time" binding:"required" example:"09:05"`
	Text       string   `json:"text" binding:"required"`
	Confidence *float64 `json:"confidence"`
}

// AddChunkResponse returns the stored chunk and whether the request was a
// deduplicated retry.
type AddChunkResponse struct {
	Chunk        *domain.TranscriptChunk `json:"chunk"`
	Deduplicated bool                    `json:"deduplicated"`
}

//
// Helpers
//

// clampWindow parses and bounds limit and offset query params.
func clampWindow(c *gin.Context) (limit, offset int) {
	const (
		defaultLimit = 20
		maxLimit     = 100
	)
	limit = utils.AtoiDefault(c.Query("limit"), defaultLimit)
	if limit < 1 {
		limit = 1
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset = utils.AtoiDefault(c.Query("offset"), 0)
	if offset < 0 {
		offset = 0
	}
	return
}

//
// Handlers
//

// ListSessions godoc
// @ID          listSessions
// @Summary     List sessions
// @Description Returns recent sessions with chunk counts and summary flags. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Sessions
// @Produce     json
// @Security    BearerAuth
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       limit          query   int     false "Max sessions to return"  minimum(1) maximum(100) default(20)
// @Param       offset         query   int     false "Window offset"           minimum(0) default(0)
//
// @Success     200  {object} handlers.ListSessionsResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /sessions [get]
func (h *Handlers) ListSessions(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	limit, offset := clampWindow(c)

	// ETag pre-check (best effort).
	if count, maxTS, err := h.sessSvc.Stats(ctx, uid); err == nil {
		var ts int64
		if maxTS != nil {
			// Nanosecond resolution: two writes within the same second must
			// still produce distinct validators.
			ts = maxTS.UnixNano()
		}
		etag := fmt.Sprintf(`W/"sessions:%s:%d:%d"`, uid, count, ts)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, _, err := h.sessSvc.List(ctx, uid, limit, offset)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to fetch sessions")
		return
	}
	ok(c, http.StatusOK, ListSessionsResponse{Sessions: items})
}

// CreateSession godoc
// @ID          createSession
// @Summary     Create a new session
// @Description Creates a capture session for the current user and returns the session resource.
// @Tags        Sessions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       body  body  handlers.CreateSessionRequest  true  "Create session payload"
//
// @Success     200  {object}  handlers.SessionResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid title"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /sessions [post]
func (h *Handlers) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "title is required (max 500 chars)")
		return
	}

	var start time.Time
	if req.StartTime != nil {
		start = *req.StartTime
	}
	sess, err := h.sessSvc.Create(c.Request.Context(), userID(c), req.Title, start, req.Language)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyTitle), errors.Is(err, services.ErrTitleTooLong):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "title is required (max 500 chars)")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to create session")
		}
		return
	}
	ok(c, http.StatusOK, SessionResponse{Session: sess})
}

// UpdateSession godoc
// @ID          updateSession
// @Summary     Update a session
// @Description Applies a partial update (title and/or end_time) to a session owned by the current user.
// @Tags        Sessions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id    path  string  true  "Session ID (UUID)"  format(uuid)
// @Param       body  body  handlers.UpdateSessionRequest  true  "Fields to update"
//
// @Success     200  {object}  handlers.SessionResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Empty patch"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "Session not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /sessions/{id} [patch]
func (h *Handlers) UpdateSession(c *gin.Context) {
	var req UpdateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	sess, err := h.sessSvc.Update(c.Request.Context(), userID(c), c.Param("id"), services.SessionPatch{
		Title:   req.Title,
		EndTime: req.EndTime,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyPatch), errors.Is(err, services.ErrEmptyTitle), errors.Is(err, services.ErrTitleTooLong):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "no valid fields to update")
		case errors.Is(err, services.ErrSessionNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "session not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to update session")
		}
		return
	}
	ok(c, http.StatusOK, SessionResponse{Session: sess})
}

// AddChunk godoc
// @ID          addChunk
// @Summary     Ingest a transcript chunk
// @Description Appends a transcript chunk to an owned session. A retried chunkId returns the original row with deduplicated=true.
// @Tags        Sessions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id    path  string  true  "Session ID (UUID)"  format(uuid)
// @Param       body  body  handlers.AddChunkRequest  true  "Chunk payload"
//
// @Success     200  {object}  handlers.AddChunkResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid chunk"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "Session not found"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /sessions/{id}/chunks [post]
func (h *Handlers) AddChunk(c *gin.Context) {
	var req AddChunkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text, start_time and end_time are required")
		return
	}

	chunk, deduplicated, err := h.sessSvc.AddChunk(c.Request.Context(), userID(c), c.Param("id"), services.ChunkInput{
		ID:         req.ChunkID,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		Text:       req.Text,
		Confidence: req.Confidence,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSessionNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "session not found")
		case errors.Is(err, services.ErrEmptyText):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text is required")
		case errors.Is(err, services.ErrTextTooLong):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text too long (max 10000 chars)")
		case errors.Is(err, services.ErrMissingTimestamps):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "start_time and end_time are required")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to insert chunk")
		}
		return
	}
	ok(c, http.StatusOK, AddChunkResponse{Chunk: chunk, Deduplicated: deduplicated})
}
