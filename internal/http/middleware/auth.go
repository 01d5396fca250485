// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements the authentication middleware for the two credential
// schemes. Each route declares the scheme it accepts by installing the
// matching middleware: token-management endpoints require a logged-in human
// (session scheme), ingestion and summarization endpoints require a device
// credential (API token scheme). Handlers never parse Authorization headers
// themselves; they read the resolved identity from the Gin context.
package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jdekker/go-notes-backend/internal/auth"
)

// Context keys under which the resolved identity is stored.
const (
	ctxKeyUserID  = "userID"
	ctxKeyTokenID = "tokenID"
)

// UserID returns the authenticated user id set by RequireAPIToken or
// RequireSession. The second return is false on unauthenticated requests.
func UserID(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyUserID)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// TokenID returns the authenticated API token id (API token scheme only).
func TokenID(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyTokenID)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// RequireAPIToken returns a middleware enforcing the API token scheme. On
// success the owning user id and token id are stored in the context; on
// failure the request is aborted with 401 before any handler runs.
func RequireAPIToken(v *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		cred, ok := auth.BearerCredential(c.GetHeader("Authorization"))
		if !ok {
			abortUnauthorized(c, "Invalid API token format")
			return
		}
		id, err := v.VerifyAPIToken(c.Request.Context(), cred)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrInvalidFormat):
				abortUnauthorized(c, "Invalid API token format")
			case errors.Is(err, auth.ErrRevoked):
				abortUnauthorized(c, "Token has been revoked")
			default:
				abortUnauthorized(c, "Invalid API token")
			}
			return
		}
		c.Set(ctxKeyUserID, id.UserID)
		c.Set(ctxKeyTokenID, id.TokenID)
		c.Next()
	}
}

// RequireSession returns a middleware enforcing the session scheme (signed
// end-user credential). On success the user id is stored in the context.
func RequireSession(v *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		cred, ok := auth.BearerCredential(c.GetHeader("Authorization"))
		if !ok {
			abortUnauthorized(c, "Missing authorization")
			return
		}
		id, err := v.VerifySession(cred)
		if err != nil {
			abortUnauthorized(c, "Unauthorized")
			return
		}
		c.Set(ctxKeyUserID, id.UserID)
		c.Next()
	}
}

// abortUnauthorized writes the standard error envelope with a 401 status.
func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": c.Writer.Header().Get("X-Request-ID"),
		"code":       "unauthorized",
		"error":      msg,
	})
}
