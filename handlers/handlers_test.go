package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"trend-spotting-system/middleware"
	"trend-spotting-system/models"
	"trend-spotting-system/services"
	"trend-spotting-system/utils"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.SpotterProfile{},
		&models.TrendSubmission{},
		&models.EarningsLedger{},
		&models.ScrollSession{},
		&models.AchievementType{},
		&models.SpotterAchievement{},
	))
	return db
}

type stubBackend struct {
	state   services.RateLimitState
	voteErr error
}

func (b *stubBackend) CastTrendVote(context.Context, string, string, services.VoteType) error {
	return b.voteErr
}

func (b *stubBackend) CheckRateLimit(context.Context, string, string) (services.RateLimitState, error) {
	return b.state, nil
}

type testEnv struct {
	app      *fiber.App
	db       *gorm.DB
	backend  *stubBackend
	spotters *services.SpotterService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := setupTestDB(t)
	log := zerolog.Nop()
	reg := prometheus.NewRegistry()
	metrics := services.NewMetrics(reg)

	calc := services.NewPaymentCalculator(0.10, 0.05, 3.00)
	spotters := services.NewSpotterService(db, log)
	awards := services.NewAchievementService(db, log)
	require.NoError(t, awards.SeedAchievementTypes())
	sessions := services.NewSessionRegistry(db, services.StreakConfig{}, calc, spotters, awards, metrics, log)
	policy, err := services.NewQualityPolicy("")
	require.NoError(t, err)
	submissions := services.NewSubmissionService(db, policy, calc, sessions, awards, metrics, log)
	backend := &stubBackend{state: services.RateLimitState{
		CanValidate:               true,
		ValidationsRemainingToday: 10,
		ValidationsRemainingHour:  10,
		ResetTime:                 time.Now().Add(time.Hour),
	}}
	validations := services.NewValidationService(db, backend, services.NewRateLimiterCache(), calc, awards, metrics, log)
	earnings := services.NewEarningsService(db, log)
	store, err := utils.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	app := fiber.New()
	SetupSystemRoutes(app, db, reg, services.NewEnterpriseService(db, log), log)
	secured := app.Group("/s", middleware.UserContextMiddleware(log))
	SetupTrendRoutes(secured, submissions, store, log)
	SetupValidationRoutes(secured, validations, log)
	SetupSessionRoutes(secured, sessions, log)
	SetupEarningsRoutes(secured, earnings, log)
	SetupSpotterRoutes(secured, spotters, awards, log)
	admin := secured.Group("/admin", middleware.RequireRole("admin"))
	SetupAdminEarningsRoutes(admin, earnings, log)

	return &testEnv{app: app, db: db, backend: backend, spotters: spotters}
}

func (e *testEnv) send(t *testing.T, req *http.Request, user string, roles ...string) (int, map[string]interface{}) {
	t.Helper()
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	if len(roles) > 0 {
		req.Header.Set("X-User-Roles", strings.Join(roles, ","))
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]interface{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	}
	return resp.StatusCode, body
}

func (e *testEnv) doJSON(t *testing.T, method, path, user string, payload interface{}, roles ...string) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	return e.send(t, req, user, roles...)
}

func trendPayload(url string) fiber.Map {
	return fiber.Map{
		"post_url":    url,
		"title":       "Whisper covers",
		"description": "Creators re-recording pop hits as whispered covers",
		"category":    "Audio & Music",
		"views_count": 1000,
		"likes_count": 40,
		"posted_at":   time.Now().Add(-time.Hour).UTC().Format(time.RFC3339),
	}
}

func TestSubmitTrendRoute(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.doJSON(t, "POST", "/s/trends", "spotter-1", trendPayload("https://tiktok.com/@a/video/1"))
	require.Equal(t, fiber.StatusCreated, status, body)
	trend := body["trend"].(map[string]interface{})
	assert.Equal(t, "audio_music", trend["category"])
	assert.NotEmpty(t, body["earning_id"])
	estimate := body["estimate"].(map[string]interface{})
	assert.True(t, strings.HasPrefix(estimate["display_amount"].(string), "$"))

	status, body = env.doJSON(t, "POST", "/s/trends", "spotter-2", trendPayload("https://TIKTOK.com/@a/video/1?x=1"))
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "conflict", body["kind"])
}

func TestSubmitTrendRouteValidation(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.doJSON(t, "POST", "/s/trends", "spotter-1", fiber.Map{"title": "no url"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "validation", body["kind"])
	assert.Contains(t, body["fields"], "post_url (required)")

	status, body = env.doJSON(t, "POST", "/s/trends", "spotter-1", fiber.Map{"post_url": "not-a-url"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "validation", body["kind"])

	status, _ = env.doJSON(t, "POST", "/s/trends", "", trendPayload("https://tiktok.com/@a/video/1"))
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestSubmitTrendRouteDailyLimit(t *testing.T) {
	env := newTestEnv(t)
	prof, err := env.spotters.EnsureProfile("spotter-r")
	require.NoError(t, err)
	require.NoError(t, env.db.Model(prof).Update("tier", "restricted").Error)

	for i := 0; i < 3; i++ {
		status, body := env.doJSON(t, "POST", "/s/trends", "spotter-r", trendPayload(fmt.Sprintf("https://reddit.com/r/x/%d", i)))
		require.Equal(t, fiber.StatusCreated, status, body)
	}
	status, body := env.doJSON(t, "POST", "/s/trends", "spotter-r", trendPayload("https://reddit.com/r/x/last"))
	assert.Equal(t, fiber.StatusTooManyRequests, status)
	assert.Equal(t, "quota", body["kind"])
}

func TestSubmitTrendRouteWithScreenshot(t *testing.T) {
	env := newTestEnv(t)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("post_url", "https://instagram.com/reel/abc"))
	require.NoError(t, w.WriteField("category", "visual_style"))
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="screenshot"; filename="shot.png"`)
	h.Set("Content-Type", "image/png")
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG fake image bytes"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/s/trends", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	status, body := env.send(t, req, "spotter-1")
	require.Equal(t, fiber.StatusCreated, status, body)

	trend := body["trend"].(map[string]interface{})
	assert.True(t, strings.HasPrefix(trend["screenshot_url"].(string), "/uploads/screenshots/spotter-1/"))
	assert.Equal(t, true, trend["has_screenshot"])
}

func TestPreviewRoute(t *testing.T) {
	env := newTestEnv(t)
	status, body := env.doJSON(t, "POST", "/s/trends/preview", "spotter-1", trendPayload("https://tiktok.com/@a/video/9"))
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "🎵 Audio/Music", body["category_label"])

	status, body = env.doJSON(t, "GET", "/s/trends/mine", "spotter-1", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 0, body["total"])
}

func TestVoteRoute(t *testing.T) {
	env := newTestEnv(t)
	status, body := env.doJSON(t, "POST", "/s/trends", "spotter-1", trendPayload("https://tiktok.com/@a/video/1"))
	require.Equal(t, fiber.StatusCreated, status)
	trendID := body["trend"].(map[string]interface{})["id"].(string)

	status, body = env.doJSON(t, "POST", "/s/trends/"+trendID+"/vote", "validator-1", fiber.Map{"vote": "maybe"})
	assert.Equal(t, fiber.StatusBadRequest, status, body)

	status, body = env.doJSON(t, "POST", "/s/trends/"+trendID+"/vote", "validator-1", fiber.Map{"vote": "verify", "confidence": 0.95})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "verify", body["vote"])

	status, body = env.doJSON(t, "POST", "/s/trends/missing/vote", "validator-1", fiber.Map{"vote": "reject"})
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "not_found", body["kind"])

	env.backend.voteErr = services.ErrDuplicateVote
	status, body = env.doJSON(t, "POST", "/s/trends/"+trendID+"/vote", "validator-1", fiber.Map{"vote": "verify"})
	assert.Equal(t, fiber.StatusConflict, status)

	env.backend.voteErr = fmt.Errorf("cast_trend_vote: %w", services.ErrBackendUnavailable)
	status, body = env.doJSON(t, "POST", "/s/trends/"+trendID+"/vote", "validator-2", fiber.Map{"vote": "verify"})
	assert.Equal(t, fiber.StatusBadGateway, status)
	assert.Equal(t, "backend", body["kind"])
	assert.NotContains(t, body["error"], "cast_trend_vote")

	status, body = env.doJSON(t, "GET", "/s/validation/limit", "validator-1", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["can_validate"])
}

func TestSessionRoutes(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.doJSON(t, "POST", "/s/session/log", "u", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body := env.doJSON(t, "POST", "/s/session/start", "u", nil)
	require.Equal(t, fiber.StatusCreated, status, body)

	status, body = env.doJSON(t, "POST", "/s/session/log", "u", nil)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.NotEmpty(t, body["earning_id"])

	status, body = env.doJSON(t, "GET", "/s/session", "u", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 1, body["trends_logged"])

	status, body = env.doJSON(t, "POST", "/s/session/end", "u", nil)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.EqualValues(t, 1, body["trends_logged"])
}

func TestEarningsRoutes(t *testing.T) {
	env := newTestEnv(t)
	status, body := env.doJSON(t, "POST", "/s/trends", "spotter-1", trendPayload("https://tiktok.com/@a/video/1"))
	require.Equal(t, fiber.StatusCreated, status)
	earningID := body["earning_id"].(string)

	status, body = env.doJSON(t, "GET", "/s/earnings", "spotter-1", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["recent"], 1)

	status, _ = env.doJSON(t, "PATCH", "/s/admin/earnings/"+earningID, "spotter-1", fiber.Map{"status": "confirmed"})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body = env.doJSON(t, "PATCH", "/s/admin/earnings/"+earningID, "ops", fiber.Map{"status": "confirmed"}, "admin")
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "confirmed", body["status"])

	status, body = env.doJSON(t, "PATCH", "/s/admin/earnings/"+earningID, "ops", fiber.Map{"status": "rejected"}, "admin")
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "conflict", body["kind"])

	status, body = env.doJSON(t, "GET", "/s/earnings/history?page=1&size=5", "spotter-1", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 1, body["total"])
}

func TestSpotterRoutes(t *testing.T) {
	env := newTestEnv(t)
	status, _ := env.doJSON(t, "POST", "/s/trends", "spotter-1", trendPayload("https://tiktok.com/@a/video/1"))
	require.Equal(t, fiber.StatusCreated, status)

	status, body := env.doJSON(t, "GET", "/s/spotter", "spotter-1", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "learning", body["tier"])
	assert.EqualValues(t, 1, body["submitted_today"])
	assert.EqualValues(t, 49, body["remaining_today"])

	status, body = env.doJSON(t, "GET", "/s/spotter/achievements", "spotter-1", nil)
	require.Equal(t, fiber.StatusOK, status)
	list := body["achievements"].([]interface{})
	require.Len(t, list, 1)
	assert.Equal(t, "FIRST_TREND", list[0].(map[string]interface{})["code"])
}

func TestSystemRoutes(t *testing.T) {
	env := newTestEnv(t)
	status, _ := env.doJSON(t, "POST", "/s/trends", "spotter-1", trendPayload("https://tiktok.com/@a/video/1"))
	require.Equal(t, fiber.StatusCreated, status)

	status, body := env.doJSON(t, "GET", "/health", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	status, body = env.doJSON(t, "GET", "/enterprise/dashboard", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 1, body["total_trends"])
	assert.Equal(t, "audio_music", body["top_category"])

	resp, err := env.app.Test(httptest.NewRequest("GET", "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), `trends_submissions_total{outcome="accepted"} 1`)
}
