package workers

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"trend-spotting-system/models"
	"trend-spotting-system/services"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.SpotterProfile{}))
	return db
}

type stubProfiles struct {
	batches [][]services.RemoteProfile
	since   []time.Time
	err     error
}

func (s *stubProfiles) FetchProfiles(_ context.Context, since time.Time) ([]services.RemoteProfile, error) {
	s.since = append(s.since, since)
	if s.err != nil {
		return nil, s.err
	}
	if len(s.batches) == 0 {
		return nil, nil
	}
	next := s.batches[0]
	s.batches = s.batches[1:]
	return next, nil
}

func TestSyncOnceUpsertsProfiles(t *testing.T) {
	db := setupTestDB(t)
	rate := 0.75
	updated := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	source := &stubProfiles{batches: [][]services.RemoteProfile{
		{
			{ID: "u1", Username: "first", SpotterTier: "verified", ApprovalRate: &rate, UpdatedAt: updated},
			{ID: "u2", Username: "second", UpdatedAt: updated},
		},
		{
			{ID: "u1", Username: "renamed", SpotterTier: "galaxy-brain", UpdatedAt: updated.Add(time.Minute)},
		},
	}}
	w := NewSpotterProfileSyncWorker(db, source, time.Minute, zerolog.Nop())

	n, err := w.SyncOnce(testContext(t), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var u1 models.SpotterProfile
	require.NoError(t, db.First(&u1, "external_user_id = ?", "u1").Error)
	assert.Equal(t, "first", u1.Username)
	assert.Equal(t, "verified", u1.Tier)
	assert.Equal(t, 0.75, u1.ApprovalRate)

	var u2 models.SpotterProfile
	require.NoError(t, db.First(&u2, "external_user_id = ?", "u2").Error)
	assert.Equal(t, "learning", u2.Tier)

	assert.True(t, w.lastSyncTime().Equal(updated))

	_, err = w.SyncOnce(testContext(t), w.lastSyncTime())
	require.NoError(t, err)
	require.NoError(t, db.First(&u1, "external_user_id = ?", "u1").Error)
	assert.Equal(t, "renamed", u1.Username)
	assert.Equal(t, "restricted", u1.Tier, "unknown tiers fail closed")
	assert.Equal(t, 0.75, u1.ApprovalRate, "absent approval rate is left alone")

	var count int64
	require.NoError(t, db.Model(&models.SpotterProfile{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestSyncOnceSurfacesSourceErrors(t *testing.T) {
	db := setupTestDB(t)
	w := NewSpotterProfileSyncWorker(db, &stubProfiles{err: errors.New("backend down")}, 0, zerolog.Nop())

	_, err := w.SyncOnce(testContext(t), time.Time{})
	assert.Error(t, err)
	assert.True(t, w.lastSyncTime().Equal(time.Unix(0, 0)))
}

type countingRefresher struct {
	calls atomic.Int32
}

func (r *countingRefresher) Refresh(context.Context) (*services.DashboardSnapshot, error) {
	r.calls.Add(1)
	return &services.DashboardSnapshot{}, nil
}

func TestPollEnterpriseDashboardStopsOnCancel(t *testing.T) {
	refresher := &countingRefresher{}
	ctx, cancel := context.WithCancel(testContext(t))

	done := make(chan struct{})
	go func() {
		PollEnterpriseDashboard(ctx, refresher, 10*time.Millisecond, zerolog.Nop())
		close(done)
	}()

	assert.Eventually(t, func() bool { return refresher.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}
