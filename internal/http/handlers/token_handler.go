// API token HTTP handlers.
//
// This file exposes REST endpoints for API token management:
//   - POST   /tokens        (mint; plaintext returned exactly once)
//   - GET    /tokens        (list metadata)
//   - DELETE /tokens/{id}   (revoke)
//
// All three require the session scheme: tokens are managed by a logged-in
// human, never by another token. Handlers are transport-thin: they validate
// input, call application services, and translate results into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jdekker/go-notes-backend/internal/domain"
	"github.com/jdekker/go-notes-backend/internal/http/middleware"
	"github.com/jdekker/go-notes-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// TokenService defines API token lifecycle operations consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type TokenService interface {
	// Create mints a token for userID; the result carries the plaintext
	// secret exactly once.
	Create(ctx context.Context, userID, name string) (*services.CreatedToken, error)
	// List returns the user's tokens, newest first, without digests.
	List(ctx context.Context, userID string) ([]domain.APIToken, error)
	// Revoke soft-deletes a token owned by userID; idempotent.
	Revoke(ctx context.Context, userID, tokenID string) error
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to the "X-User-ID" header so handler
// tests can exercise endpoints without the full auth stack.
func userID(c *gin.Context) string {
	if s, ok := middleware.UserID(c); ok {
		return s
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return ""
}

//
// DTOs
//

// CreateTokenRequest is the JSON payload for minting an API token.
type CreateTokenRequest struct {
	// Name labels the token (1–100 chars), e.g. the device it lives on.
	Name string `json:"name" binding:"required" example:"Pixel 9 recorder"`
}

// CreateTokenResponse returns the plaintext secret together with token
// metadata. The secret is not retrievable after this response.
type CreateTokenResponse struct {
	Token     string `json:"token" example:"dnk_3f1d..."`
	TokenID   string `json:"tokenId"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

// ListTokensResponse wraps the user's token metadata.
type ListTokensResponse struct {
	Tokens []domain.APIToken `json:"tokens"`
}

// RevokeTokenResponse acknowledges a revocation.
type RevokeTokenResponse struct {
	Success bool `json:"success" example:"true"`
}

//
// Handlers
//

// CreateToken godoc
// @ID          createToken
// @Summary     Mint a new API token
// @Description Creates an API token for the current user and returns the plaintext secret exactly once.
// @Tags        Tokens
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       body  body  handlers.CreateTokenRequest  true  "Token name"
//
// @Success     200  {object}  handlers.CreateTokenResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid name"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /tokens [post]
func (h *Handlers) CreateToken(c *gin.Context) {
	var req CreateTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name is required (max 100 chars)")
		return
	}

	created, err := h.tokenSvc.Create(c.Request.Context(), userID(c), req.Name)
	if err != nil {
		if errors.Is(err, services.ErrTokenNameInvalid) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name is required (max 100 chars)")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to create token")
		return
	}

	ok(c, http.StatusOK, CreateTokenResponse{
		Token:     created.Secret,
		TokenID:   created.Token.ID,
		Name:      created.Token.Name,
		CreatedAt: created.Token.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
}

// ListTokens godoc
// @ID          listTokens
// @Summary     List API tokens
// @Description Returns the user's tokens, newest first. Digests and plaintext secrets are never included.
// @Tags        Tokens
// @Produce     json
// @Security    BearerAuth
//
// @Success     200  {object}  handlers.ListTokensResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /tokens [get]
func (h *Handlers) ListTokens(c *gin.Context) {
	tokens, err := h.tokenSvc.List(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to fetch tokens")
		return
	}
	if tokens == nil {
		tokens = []domain.APIToken{}
	}
	ok(c, http.StatusOK, ListTokensResponse{Tokens: tokens})
}

// RevokeToken godoc
// @ID          revokeToken
// @Summary     Revoke an API token
// @Description Soft-deletes a token owned by the current user. Revoking an unknown or already-revoked token still succeeds.
// @Tags        Tokens
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Token ID (UUID)"  format(uuid)
//
// @Success     200  {object}  handlers.RevokeTokenResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /tokens/{id} [delete]
func (h *Handlers) RevokeToken(c *gin.Context) {
	if err := h.tokenSvc.Revoke(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to revoke token")
		return
	}
	ok(c, http.StatusOK, RevokeTokenResponse{Success: true})
}
