// Summarization HTTP handlers.
//
// This file exposes the two entry points that trigger model summarization:
//   - POST /sessions/{id}/summarize  (API token scheme; used by devices)
//   - POST /summarize                (session scheme; used by the dashboard)
//
// Both run the same pipeline and return the same body. Upstream gateway
// conditions map onto dedicated statuses (429 rate limit, 402 billing) so
// clients can distinguish "retry later" from "add credits".
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jdekker/go-notes-backend/internal/services"
)

// SummaryService defines the summarization operation consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type SummaryService interface {
	// Summarize runs the full pipeline for an owned session.
	Summarize(ctx context.Context, userID, sessionID string) (*services.SummaryResult, error)
}

// SummarizeBodyRequest is the JSON payload for the session-scheme variant,
// which carries the target session in the body instead of the path.
type SummarizeBodyRequest struct {
	SessionID string `json:"session_id" binding:"required" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
}

// SummarizeResponse returns the persisted summary id and the raw structured
// model output.
type SummarizeResponse struct {
	Success   bool            `json:"success" example:"true"`
	SummaryID string          `json:"summary_id"`
	RawJSON   json.RawMessage `json:"raw_json"`
}

// SummarizeSession godoc
// @ID          summarizeSession
// @Summary     Summarize a session
// @Description Assembles the session transcript, invokes the model under a forced structured-output schema, and persists the summary with its derived rows.
// @Tags        Summaries
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Session ID (UUID)"  format(uuid)
//
// @Success     200  {object}  handlers.SummarizeResponse
// @Failure     400  {object}  handlers.ErrorResponse  "No transcript"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     402  {object}  handlers.ErrorResponse  "Credits exhausted"
// @Failure     404  {object}  handlers.ErrorResponse  "Session not found"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     500  {object}  handlers.ErrorResponse  "Summarization failed"
// @Router      /sessions/{id}/summarize [post]
func (h *Handlers) SummarizeSession(c *gin.Context) {
	h.summarize(c, c.Param("id"))
}

// SummarizeByBody godoc
// @ID          summarizeByBody
// @Summary     Summarize a session (dashboard variant)
// @Description Same pipeline as the path variant; the target session id is carried in the request body.
// @Tags        Summaries
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       body  body  handlers.SummarizeBodyRequest  true  "Target session"
//
// @Success     200  {object}  handlers.SummarizeResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Missing session_id or no transcript"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     402  {object}  handlers.ErrorResponse  "Credits exhausted"
// @Failure     404  {object}  handlers.ErrorResponse  "Session not found"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     500  {object}  handlers.ErrorResponse  "Summarization failed"
// @Router      /summarize [post]
func (h *Handlers) SummarizeByBody(c *gin.Context) {
	var req SummarizeBodyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "session_id is required")
		return
	}
	h.summarize(c, req.SessionID)
}

// summarize runs the pipeline and maps service errors to HTTP statuses.
func (h *Handlers) summarize(c *gin.Context, sessionID string) {
	res, err := h.sumSvc.Summarize(c.Request.Context(), userID(c), sessionID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSessionNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "session not found")
		case errors.Is(err, services.ErrNoTranscript):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "no transcript chunks found")
		case errors.Is(err, services.ErrUpstreamRateLimited):
			fail(c, http.StatusTooManyRequests, ErrCodeRateLimited, "rate limit exceeded, please try again in a moment")
		case errors.Is(err, services.ErrUpstreamPayment):
			fail(c, http.StatusPaymentRequired, ErrCodePaymentRequired, "credits exhausted, please add credits in workspace settings")
		case errors.Is(err, services.ErrBadModelOutput):
			fail(c, http.StatusInternalServerError, ErrCodeUpstreamError, "model returned unexpected format")
		default:
			// A fan-out failure lands here: the summary row is already
			// persisted and raw_json is authoritative.
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "summarization failed")
		}
		return
	}
	ok(c, http.StatusOK, SummarizeResponse{Success: true, SummaryID: res.SummaryID, RawJSON: res.RawJSON})
}
