// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, authentication, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggofiles "github.com/swaggo/files"
	ginswagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/jdekker/go-notes-backend/docs"
	"github.com/jdekker/go-notes-backend/internal/ai"
	"github.com/jdekker/go-notes-backend/internal/auth"
	"github.com/jdekker/go-notes-backend/internal/config"
	"github.com/jdekker/go-notes-backend/internal/domain"
	"github.com/jdekker/go-notes-backend/internal/http/handlers"
	"github.com/jdekker/go-notes-backend/internal/http/middleware"
	"github.com/jdekker/go-notes-backend/internal/repo"
	"github.com/jdekker/go-notes-backend/internal/services"
)

// tokenRepoShim adapts the repository free functions to the
// services.TokenRepo interface expected by the TokenService. This keeps
// services decoupled from the concrete repo package while reusing existing
// functions.
type tokenRepoShim struct{}

// CreateAPIToken proxies repo.CreateAPIToken.
func (tokenRepoShim) CreateAPIToken(ctx context.Context, db *gorm.DB, userID, name, tokenHash string) (*domain.APIToken, error) {
	return repo.CreateAPIToken(ctx, db, userID, name, tokenHash)
}

// ListAPITokens proxies repo.ListAPITokens.
func (tokenRepoShim) ListAPITokens(ctx context.Context, db *gorm.DB, userID string) ([]domain.APIToken, error) {
	return repo.ListAPITokens(ctx, db, userID)
}

// RevokeAPIToken proxies repo.RevokeAPIToken.
func (tokenRepoShim) RevokeAPIToken(ctx context.Context, db *gorm.DB, id, userID string) error {
	return repo.RevokeAPIToken(ctx, db, id, userID)
}

// sessionRepoShim adapts the repository free functions to the
// services.SessionRepo interface.
type sessionRepoShim struct{}

// CreateSession proxies repo.CreateSession.
func (sessionRepoShim) CreateSession(ctx context.Context, db *gorm.DB, userID, title string, startTime time.Time, language string) (*domain.Session, error) {
	return repo.CreateSession(ctx, db, userID, title, startTime, language)
}

// GetSession proxies repo.GetSession.
func (sessionRepoShim) GetSession(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Session, error) {
	return repo.GetSession(ctx, db, id, userID)
}

// UpdateSession proxies repo.UpdateSession.
func (sessionRepoShim) UpdateSession(ctx context.Context, db *gorm.DB, id, userID string, patch map[string]any) (*domain.Session, error) {
	return repo.UpdateSession(ctx, db, id, userID, patch)
}

// ListSessionsPage proxies repo.ListSessionsPage.
func (sessionRepoShim) ListSessionsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Session, error) {
	return repo.ListSessionsPage(ctx, db, userID, offset, limit)
}

// ChunkCountsBySession proxies repo.ChunkCountsBySession.
func (sessionRepoShim) ChunkCountsBySession(ctx context.Context, db *gorm.DB, sessionIDs []string) (map[string]int64, error) {
	return repo.ChunkCountsBySession(ctx, db, sessionIDs)
}

// SummarizedSessionIDs proxies repo.SummarizedSessionIDs.
func (sessionRepoShim) SummarizedSessionIDs(ctx context.Context, db *gorm.DB, sessionIDs []string) (map[string]struct{}, error) {
	return repo.SummarizedSessionIDs(ctx, db, sessionIDs)
}

// SessionsStats proxies repo.SessionsStats (ETag support).
func (sessionRepoShim) SessionsStats(ctx context.Context, db *gorm.DB, userID string) (int64, *time.Time, error) {
	return repo.SessionsStats(ctx, db, userID)
}

// chunkRepoShim adapts the chunk repository functions to services.ChunkRepo
// and services.TranscriptRepo.
type chunkRepoShim struct{}

// GetChunk proxies repo.GetChunk.
func (chunkRepoShim) GetChunk(ctx context.Context, db *gorm.DB, sessionID, id string) (*domain.TranscriptChunk, error) {
	return repo.GetChunk(ctx, db, sessionID, id)
}

// CreateChunk proxies repo.CreateChunk.
func (chunkRepoShim) CreateChunk(ctx context.Context, db *gorm.DB, sessionID, id, startTime, endTime, text string, confidence *float64) (*domain.TranscriptChunk, error) {
	return repo.CreateChunk(ctx, db, sessionID, id, startTime, endTime, text, confidence)
}

// ListChunks proxies repo.ListChunks.
func (chunkRepoShim) ListChunks(ctx context.Context, db *gorm.DB, sessionID string) ([]domain.TranscriptChunk, error) {
	return repo.ListChunks(ctx, db, sessionID)
}

// eventRepoShim adapts repo.CreateIngestEvent to services.EventRepo.
type eventRepoShim struct{}

// CreateIngestEvent proxies repo.CreateIngestEvent.
func (eventRepoShim) CreateIngestEvent(ctx context.Context, db *gorm.DB, userID, eventType string, payload map[string]any) error {
	return repo.CreateIngestEvent(ctx, db, userID, eventType, payload)
}

// summaryRepoShim adapts the summary repository functions to
// services.SummaryRepo.
type summaryRepoShim struct{}

// CreateSummary proxies repo.CreateSummary.
func (summaryRepoShim) CreateSummary(ctx context.Context, db *gorm.DB, s *domain.Summary) (*domain.Summary, error) {
	return repo.CreateSummary(ctx, db, s)
}

// InsertActionItems proxies repo.InsertActionItems.
func (summaryRepoShim) InsertActionItems(ctx context.Context, db *gorm.DB, summaryID string, items []domain.ActionItemJSON) error {
	return repo.InsertActionItems(ctx, db, summaryID, items)
}

// InsertAgendaItems proxies repo.InsertAgendaItems.
func (summaryRepoShim) InsertAgendaItems(ctx context.Context, db *gorm.DB, summaryID string, items []domain.AgendaItemJSON) error {
	return repo.InsertAgendaItems(ctx, db, summaryID, items)
}

// InsertReminders proxies repo.InsertReminders.
func (summaryRepoShim) InsertReminders(ctx context.Context, db *gorm.DB, summaryID string, items []domain.ReminderJSON) error {
	return repo.InsertReminders(ctx, db, summaryID, items)
}

// InsertImportantFacts proxies repo.InsertImportantFacts.
func (summaryRepoShim) InsertImportantFacts(ctx context.Context, db *gorm.DB, summaryID string, facts []string) error {
	return repo.InsertImportantFacts(ctx, db, summaryID, facts)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), authentication and
// rate limiting, CORS and security headers, health and metrics endpoints, and
// then mounts the public API.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with credential scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Response compression
//  7. Metrics
//  8. Rate limiter (per user/IP edge bucket)
//  9. CORS and Security headers
//
// Per-route middleware then layers the credential scheme and the
// per-operation fixed-window budget on top.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, client ai.Summarizer, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"Authorization", // bearer credentials must never reach the logs
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Compress responses (transcript-heavy list payloads benefit most)
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.Rate.RPS, cfg.Rate.Burst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 9) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks. An OPTIONS request without an Origin header never reaches
	// the CORS preflight handler, so both fallbacks answer it here.
	r.NoRoute(func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Swagger UI (opt-in)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginswagger.WrapHandler(swaggofiles.Handler))
	}

	// Dependency injection: services ← repo/db/gateway
	tokenSvc := services.NewTokenService(db, tokenRepoShim{})
	sessSvc := services.NewSessionService(db, sessionRepoShim{}, chunkRepoShim{}, eventRepoShim{}, cfg.DefaultLanguage)
	sumSvc := services.NewSummaryService(db, sessionRepoShim{}, chunkRepoShim{}, summaryRepoShim{}, client, cfg.AI.Model, cfg.DefaultLanguage)
	h := handlers.New(tokenSvc, sessSvc, sumSvc)

	verifier := auth.NewVerifier(db, []byte(cfg.SessionJWTKey))
	requireSession := middleware.RequireSession(verifier)
	requireToken := middleware.RequireAPIToken(verifier)

	// Per-operation fixed-window budgets (one-minute windows)
	fw := middleware.NewFixedWindow(time.Minute)

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Token management (human session required)
		api.POST("/tokens", requireSession, fw.PerUserBudget("tokens", cfg.Rate.TokenCreatePerMin), h.CreateToken)
		api.GET("/tokens", requireSession, h.ListTokens)
		api.DELETE("/tokens/:id", requireSession, h.RevokeToken)

		// Ingestion (device API token required)
		api.GET("/sessions", requireToken, h.ListSessions)
		api.POST("/sessions", requireToken, fw.PerUserBudget("sessions", cfg.Rate.SessionCreatePerMin), h.CreateSession)
		api.PATCH("/sessions/:id", requireToken, h.UpdateSession)
		api.POST("/sessions/:id/chunks", requireToken, fw.PerTokenAndUserBudget("chunks", cfg.Rate.ChunkPerTokenPerMin, cfg.Rate.ChunkPerUserPerMin), h.AddChunk)

		// Summarization (both schemes, same budget class)
		api.POST("/sessions/:id/summarize", requireToken, fw.PerUserBudget("summarize", cfg.Rate.SummarizePerMin), h.SummarizeSession)
		api.POST("/summarize", requireSession, fw.PerUserBudget("summarize", cfg.Rate.SummarizePerMin), h.SummarizeByBody)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
