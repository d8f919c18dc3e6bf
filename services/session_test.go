package services

import (
	"testing"
	"time"

	"trend-spotting-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStartIsIdempotent(t *testing.T) {
	f := newFixture(t)

	first, err := f.sessions.Start("u")
	require.NoError(t, err)
	again, err := f.sessions.Start("u")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	_, err = f.sessions.Start("")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestLogTrendPaysCurrentMultiplier(t *testing.T) {
	f := newFixture(t)
	clock := newTestClock(t0)
	f.sessions.now = clock.Now

	_, err := f.sessions.LogTrend(testContext(t), "u")
	require.ErrorIs(t, err, ErrSessionInactive)

	_, err = f.sessions.Start("u")
	require.NoError(t, err)

	var results []*ScrollLogResult
	for i := 0; i < 4; i++ {
		res, err := f.sessions.LogTrend(testContext(t), "u")
		require.NoError(t, err)
		results = append(results, res)
		clock.Advance(5 * time.Second)
	}

	assertDecimal(t, "0.10", results[0].Payment.TotalAmount)
	assertDecimal(t, "0.10", results[2].Payment.TotalAmount)
	assert.True(t, results[2].StreakAdvance)
	assertDecimal(t, "0.15", results[3].Payment.TotalAmount)

	snap := results[3].Session
	assert.Equal(t, 4, snap.TrendsLogged)
	assert.Equal(t, 1, snap.BestStreak)
	assertDecimal(t, "0.45", snap.Earned)

	var entries []models.EarningsLedger
	require.NoError(t, f.db.Where("user_id = ? AND type = ?", "u", models.EarningTypeScrollSession).Find(&entries).Error)
	require.Len(t, entries, 4)
	for _, e := range entries {
		require.NotNil(t, e.SessionID)
		assert.Equal(t, snap.ID, *e.SessionID)
		assert.Equal(t, models.EarningStatusPending, e.Status)
	}
}

func TestSessionEndPersistsSummary(t *testing.T) {
	f := newFixture(t)
	_, err := f.spotters.EnsureProfile("u")
	require.NoError(t, err)

	start, err := f.sessions.Start("u")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := f.sessions.LogTrend(testContext(t), "u")
		require.NoError(t, err)
	}

	record, err := f.sessions.End("u")
	require.NoError(t, err)
	assert.Equal(t, start.ID, record.ID)
	assert.Equal(t, 3, record.TrendsLogged)
	assert.Equal(t, 1, record.BestStreak)

	var stored models.ScrollSession
	require.NoError(t, f.db.First(&stored, "id = ?", record.ID).Error)
	assert.NotNil(t, stored.EndedAt)

	prof, err := f.spotters.EnsureProfile("u")
	require.NoError(t, err)
	assert.Equal(t, 1, prof.BestStreak)

	_, ok := f.sessions.Get("u")
	assert.False(t, ok)
	_, err = f.sessions.End("u")
	assert.ErrorIs(t, err, ErrSessionInactive)
}

func TestTickAllExpiresStreaks(t *testing.T) {
	f := newFixture(t)
	clock := newTestClock(t0)
	f.sessions.now = clock.Now

	_, err := f.sessions.Start("u")
	require.NoError(t, err)
	updates, cancel := f.sessions.Subscribe("u")
	defer cancel()

	for i := 0; i < 3; i++ {
		f.sessions.RecordSubmission("u")
	}
	snap, _ := f.sessions.Get("u")
	require.Equal(t, 1.5, snap.Streak.Multiplier)

	clock.Advance(30 * time.Second)
	f.sessions.TickAll()
	snap, _ = f.sessions.Get("u")
	assert.Equal(t, 30, snap.Streak.Countdown)

	clock.Advance(31 * time.Second)
	f.sessions.TickAll()
	snap, _ = f.sessions.Get("u")
	assert.Equal(t, 1.0, snap.Streak.Multiplier)
	assert.Nil(t, snap.Streak.LastEventTime)

	var last StreakState
	for drained := false; !drained; {
		select {
		case st := <-updates:
			last = st
		default:
			drained = true
		}
	}
	assert.Equal(t, 0, last.StreakCount, "subscribers see the reset")
}

func TestTickAllLeavesUnstartedStreakWindowAlone(t *testing.T) {
	f := newFixture(t)
	clock := newTestClock(t0)
	f.sessions.now = clock.Now

	_, err := f.sessions.Start("u")
	require.NoError(t, err)

	_, err = f.sessions.LogTrend(testContext(t), "u")
	require.NoError(t, err)
	clock.Advance(10 * time.Second)
	_, err = f.sessions.LogTrend(testContext(t), "u")
	require.NoError(t, err)

	// a pause longer than the countdown but inside the 180s window
	for i := 0; i < 70; i++ {
		clock.Advance(time.Second)
		f.sessions.TickAll()
	}
	snap, _ := f.sessions.Get("u")
	assert.Len(t, snap.Streak.WindowEvents, 2, "window survives ticks while no streak is held")
	assert.Equal(t, 0, snap.Streak.StreakCount)

	res, err := f.sessions.LogTrend(testContext(t), "u")
	require.NoError(t, err)
	assert.True(t, res.StreakAdvance)
	assert.Equal(t, 1, res.Session.Streak.StreakCount)
	assert.Equal(t, 1.5, res.Session.Streak.Multiplier)
}
