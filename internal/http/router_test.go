package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/jdekker/go-notes-backend/internal/config"
	"github.com/jdekker/go-notes-backend/internal/domain"
	"github.com/jdekker/go-notes-backend/internal/repo"
)

const testJWTKey = "router-test-key"

const testModelPayload = `{
	"summaryBullets": ["we met"],
	"actionItems": [{"task": "send invoice", "priority": "high"}],
	"agendaSuggestions": [],
	"reminders": [{"text": "call back"}],
	"importantFactsToRemember": ["budget is 40k"],
	"openQuestions": []
}`

// fakeSummarizer stands in for the model gateway.
type fakeSummarizer struct{}

func (fakeSummarizer) Summarize(ctx context.Context, systemPrompt, userPrompt string) (json.RawMessage, error) {
	return json.RawMessage(testModelPayload), nil
}

func testConfig() config.Config {
	return config.Config{
		SessionJWTKey:   testJWTKey,
		DefaultLanguage: "en-US",
		APIBasePath:     "/",
		Rate: config.RateConfig{
			RPS:                 1000,
			Burst:               1000,
			TokenCreatePerMin:   100,
			SessionCreatePerMin: 100,
			ChunkPerTokenPerMin: 100,
			ChunkPerUserPerMin:  100,
			SummarizePerMin:     100,
		},
		AI: config.AIConfig{Model: "test-model"},
		OTEL: config.OTELConfig{
			ServiceName: "go-notes-backend-test",
		},
	}
}

func newAPI(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("router_test_%d.db", time.Now().UnixNano()))
	db, err := repo.OpenSQLite(dsn)
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

	r := gin.New()
	RegisterRoutes(r, db, fakeSummarizer{}, testConfig())
	return r, db
}

func sessionBearer(t *testing.T, userID string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(testJWTKey))
	if err != nil {
		t.Fatalf("sign jwt: %v", err)
	}
	return "Bearer " + s
}

func request(r *gin.Engine, method, path, authorization string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func jsonBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return m
}

func TestHealthAndCORS(t *testing.T) {
	r, _ := newAPI(t)

	w := request(r, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health: status %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("ACAO = %q, want *", got)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing X-Request-ID header")
	}

	// Preflight.
	req := httptest.NewRequest(http.MethodOptions, "/sessions", nil)
	req.Header.Set("Origin", "https://dash.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent && w.Code != http.StatusOK {
		t.Fatalf("preflight: status %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("preflight ACAO = %q, want *", got)
	}
}

func TestRouteFallbacks(t *testing.T) {
	r, _ := newAPI(t)

	w := request(r, http.MethodGet, "/nope", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown route: status %d", w.Code)
	}
	if body := jsonBody(t, w); body["code"] != "not_found" {
		t.Fatalf("unknown route envelope: %v", body)
	}

	w = request(r, http.MethodDelete, "/health", "", nil)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("wrong method: status %d", w.Code)
	}
	if body := jsonBody(t, w); body["code"] != "method_not_allowed" {
		t.Fatalf("wrong method envelope: %v", body)
	}
}

func TestBareOptionsAnswered(t *testing.T) {
	r, _ := newAPI(t)

	// Some HTTP clients send OPTIONS without an Origin header; those never
	// reach the CORS preflight path and must still get a friendly answer.
	for _, path := range []string{"/sessions", "/nope"} {
		w := request(r, http.MethodOptions, path, "", nil)
		if w.Code != http.StatusNoContent {
			t.Fatalf("OPTIONS %s: status %d, want 204", path, w.Code)
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Fatalf("OPTIONS %s: ACAO = %q, want *", path, got)
		}
	}
}

func TestAuthSchemesEnforced(t *testing.T) {
	r, _ := newAPI(t)

	// Ingestion endpoints reject missing credentials.
	if w := request(r, http.MethodGet, "/sessions", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("no credential: status %d, want 401", w.Code)
	}
	// A session JWT is not an API token.
	if w := request(r, http.MethodGet, "/sessions", sessionBearer(t, "u1"), nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("session JWT on token route: status %d, want 401", w.Code)
	}
	// Token management rejects missing credentials too.
	if w := request(r, http.MethodPost, "/tokens", "", gin.H{"name": "x"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("no credential on /tokens: status %d, want 401", w.Code)
	}
}

func TestListSessionsETagMovesWithActivity(t *testing.T) {
	r, _ := newAPI(t)
	session := sessionBearer(t, "u1")

	w := request(r, http.MethodPost, "/tokens", session, gin.H{"name": "recorder"})
	if w.Code != http.StatusOK {
		t.Fatalf("mint token: status %d body %s", w.Code, w.Body.String())
	}
	device := "Bearer " + jsonBody(t, w)["token"].(string)

	w = request(r, http.MethodPost, "/sessions", device, gin.H{"title": "Standup"})
	if w.Code != http.StatusOK {
		t.Fatalf("create session: status %d", w.Code)
	}
	sessID := jsonBody(t, w)["session"].(map[string]any)["id"].(string)

	chunk := gin.H{"start_time": "09:00", "end_time": "09:05", "text": "we agreed to ship"}
	if w = request(r, http.MethodPost, "/sessions/"+sessID+"/chunks", device, chunk); w.Code != http.StatusOK {
		t.Fatalf("add chunk: status %d", w.Code)
	}

	w = request(r, http.MethodGet, "/sessions", device, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: status %d", w.Code)
	}
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("list response missing ETag")
	}
	if view := jsonBody(t, w)["sessions"].([]any)[0].(map[string]any); view["has_summary"] != false {
		t.Fatalf("fresh session already summarized: %v", view)
	}

	// Summarizing changes the listing body without adding or removing
	// sessions; the old validator must no longer produce a 304.
	if w = request(r, http.MethodPost, "/sessions/"+sessID+"/summarize", device, nil); w.Code != http.StatusOK {
		t.Fatalf("summarize: status %d body %s", w.Code, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	req.Header.Set("Authorization", device)
	req.Header.Set("If-None-Match", etag)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("conditional GET after summarize: status %d, want 200", w.Code)
	}
	if view := jsonBody(t, w)["sessions"].([]any)[0].(map[string]any); view["has_summary"] != true {
		t.Fatalf("listing not refreshed: %v", view)
	}
	fresh := w.Header().Get("ETag")
	if fresh == "" || fresh == etag {
		t.Fatalf("validator did not move: %q -> %q", etag, fresh)
	}

	// Patching the title moves it again.
	if w = request(r, http.MethodPatch, "/sessions/"+sessID, device, gin.H{"title": "Renamed"}); w.Code != http.StatusOK {
		t.Fatalf("patch: status %d", w.Code)
	}
	req = httptest.NewRequest(http.MethodGet, "/sessions", nil)
	req.Header.Set("Authorization", device)
	req.Header.Set("If-None-Match", fresh)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("conditional GET after patch: status %d, want 200", w.Code)
	}
}

func TestIngestAndSummarizeFlow(t *testing.T) {
	r, db := newAPI(t)
	session := sessionBearer(t, "u1")

	// Mint a device token with the dashboard session.
	w := request(r, http.MethodPost, "/tokens", session, gin.H{"name": "Pixel recorder"})
	if w.Code != http.StatusOK {
		t.Fatalf("mint token: status %d body %s", w.Code, w.Body.String())
	}
	minted := jsonBody(t, w)
	secret, _ := minted["token"].(string)
	if secret == "" {
		t.Fatalf("no plaintext token in mint response: %v", minted)
	}
	device := "Bearer " + secret

	// Fresh user has no sessions.
	w = request(r, http.MethodGet, "/sessions", device, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list sessions: status %d body %s", w.Code, w.Body.String())
	}
	if body := jsonBody(t, w); len(body["sessions"].([]any)) != 0 {
		t.Fatalf("expected empty session list: %v", body)
	}

	// Create a session.
	w = request(r, http.MethodPost, "/sessions", device, gin.H{"title": "Standup"})
	if w.Code != http.StatusOK {
		t.Fatalf("create session: status %d body %s", w.Code, w.Body.String())
	}
	sessID := jsonBody(t, w)["session"].(map[string]any)["id"].(string)

	// First chunk lands, the retry is deduplicated.
	chunk := gin.H{"chunkId": "c1", "start_time": "09:00", "end_time": "09:05", "text": "we agreed to ship"}
	w = request(r, http.MethodPost, "/sessions/"+sessID+"/chunks", device, chunk)
	if w.Code != http.StatusOK {
		t.Fatalf("add chunk: status %d body %s", w.Code, w.Body.String())
	}
	if body := jsonBody(t, w); body["deduplicated"] != false {
		t.Fatalf("first insert flagged deduplicated: %v", body)
	}
	w = request(r, http.MethodPost, "/sessions/"+sessID+"/chunks", device, chunk)
	if w.Code != http.StatusOK {
		t.Fatalf("retry chunk: status %d", w.Code)
	}
	if body := jsonBody(t, w); body["deduplicated"] != true {
		t.Fatalf("retry not deduplicated: %v", body)
	}

	// Device-triggered summarization.
	w = request(r, http.MethodPost, "/sessions/"+sessID+"/summarize", device, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("summarize: status %d body %s", w.Code, w.Body.String())
	}
	res := jsonBody(t, w)
	if res["success"] != true {
		t.Fatalf("summarize body: %v", res)
	}
	summaryID, _ := res["summary_id"].(string)

	var summary domain.Summary
	if err := db.First(&summary, "id = ?", summaryID).Error; err != nil {
		t.Fatalf("summary row not persisted: %v", err)
	}
	if summary.Model != "test-model" || summary.SessionID == nil || *summary.SessionID != sessID {
		t.Fatalf("summary provenance wrong: %+v", summary)
	}
	var actions int64
	if err := db.Model(&domain.ActionItem{}).Where("summary_id = ?", summaryID).Count(&actions).Error; err != nil {
		t.Fatalf("count action items: %v", err)
	}
	if actions != 1 {
		t.Fatalf("action item rows = %d, want 1", actions)
	}

	// Dashboard-triggered variant over the same session.
	w = request(r, http.MethodPost, "/summarize", session, gin.H{"session_id": sessID})
	if w.Code != http.StatusOK {
		t.Fatalf("dashboard summarize: status %d body %s", w.Code, w.Body.String())
	}

	// Listing now reflects ingestion state.
	w = request(r, http.MethodGet, "/sessions", device, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list sessions: status %d", w.Code)
	}
	views := jsonBody(t, w)["sessions"].([]any)
	if len(views) != 1 {
		t.Fatalf("session list = %v", views)
	}
	view := views[0].(map[string]any)
	if view["chunk_count"] != float64(1) || view["has_summary"] != true {
		t.Fatalf("enrichment wrong: %v", view)
	}
	if w.Header().Get("ETag") == "" {
		t.Fatalf("list response missing ETag")
	}

	// Revoking the device token cuts off ingestion.
	tokenID, _ := minted["tokenId"].(string)
	w = request(r, http.MethodDelete, "/tokens/"+tokenID, session, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("revoke token: status %d", w.Code)
	}
	if w := request(r, http.MethodGet, "/sessions", device, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("revoked token still accepted: status %d", w.Code)
	}
}
