package services

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"trend-spotting-system/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
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

// testClock is a settable clock for the registry and services.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock(t time.Time) *testClock { return &testClock{t: t} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	db          *gorm.DB
	log         zerolog.Logger
	metrics     *Metrics
	calc        *PaymentCalculator
	spotters    *SpotterService
	awards      *AchievementService
	earnings    *EarningsService
	sessions    *SessionRegistry
	submissions *SubmissionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := setupTestDB(t)
	log := zerolog.Nop()
	metrics := NewMetrics(prometheus.NewRegistry())
	calc := NewPaymentCalculator(0.10, 0.05, 3.00)
	spotters := NewSpotterService(db, log)
	awards := NewAchievementService(db, log)
	require.NoError(t, awards.SeedAchievementTypes())
	sessions := NewSessionRegistry(db, StreakConfig{}, calc, spotters, awards, metrics, log)
	policy, err := NewQualityPolicy(PolicyWeighted)
	require.NoError(t, err)

	return &fixture{
		db:          db,
		log:         log,
		metrics:     metrics,
		calc:        calc,
		spotters:    spotters,
		awards:      awards,
		earnings:    NewEarningsService(db, log),
		sessions:    sessions,
		submissions: NewSubmissionService(db, policy, calc, sessions, awards, metrics, log),
	}
}

func (f *fixture) setTier(t *testing.T, userID string, tier SpotterTier) {
	t.Helper()
	prof, err := f.spotters.EnsureProfile(userID)
	require.NoError(t, err)
	require.NoError(t, f.db.Model(prof).Update("tier", string(tier)).Error)
}

func trendInput(userID, url string) SubmitTrendInput {
	return SubmitTrendInput{
		UserID:        userID,
		PostURL:       url,
		Title:         "Tiny desk covers",
		Description:   "Creators re-recording pop hits as whispered tiny desk covers",
		Category:      "audio_music",
		ScreenshotURL: "https://cdn.example.com/shot.png",
		Views:         1000,
		Likes:         50,
	}
}

func (f *fixture) submit(t *testing.T, userID, url string) *SubmissionResult {
	t.Helper()
	res, err := f.submissions.SubmitTrend(testContext(t), trendInput(userID, url))
	require.NoError(t, err)
	return res
}
