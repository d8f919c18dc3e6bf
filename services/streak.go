package services

import (
	"time"
)

const (
	DefaultStreakWindow    = 3 * time.Minute
	DefaultStreakTimeout   = 60 * time.Second
	DefaultTrendsForStreak = 3
)

// StreakState is the snapshot handed out to callers. WindowEvents is a copy.
type StreakState struct {
	StreakCount   int         `json:"streak_count"`
	Multiplier    float64     `json:"multiplier"`
	WindowEvents  []time.Time `json:"window_events"`
	LastEventTime *time.Time  `json:"last_event_time,omitempty"`
	Countdown     int         `json:"countdown"`
}

// StreakTracker turns submission timestamps into a streak count and payout
// multiplier. It owns no timer: whoever holds it calls Tick.
type StreakTracker struct {
	Window          time.Duration
	Timeout         time.Duration
	TrendsForStreak int

	streakCount int
	multiplier  float64
	window      []time.Time
	lastEvent   *time.Time
	countdown   int
}

func NewStreakTracker(window, timeout time.Duration, trendsForStreak int) *StreakTracker {
	if window <= 0 {
		window = DefaultStreakWindow
	}
	if timeout <= 0 {
		timeout = DefaultStreakTimeout
	}
	if trendsForStreak <= 0 {
		trendsForStreak = DefaultTrendsForStreak
	}
	return &StreakTracker{
		Window:          window,
		Timeout:         timeout,
		TrendsForStreak: trendsForStreak,
		multiplier:      1,
	}
}

// StreakMultiplier is the step function from streak count to payout multiplier.
func StreakMultiplier(streakCount int) float64 {
	switch {
	case streakCount <= 0:
		return 1
	case streakCount < 3:
		return 1.5
	case streakCount < 5:
		return 2
	case streakCount < 10:
		return 3
	default:
		return 5
	}
}

// RecordSubmission logs one trend at now. It reports whether the streak count
// went up.
func (t *StreakTracker) RecordSubmission(now time.Time) bool {
	events := append(t.window, now)
	kept := events[:0]
	for _, ev := range events {
		if now.Sub(ev) < t.Window {
			kept = append(kept, ev)
		}
	}
	t.window = kept

	advanced := false
	if len(t.window) >= t.TrendsForStreak {
		t.streakCount++
		t.multiplier = StreakMultiplier(t.streakCount)
		t.window = nil
		advanced = true
	}

	last := now
	t.lastEvent = &last
	t.countdown = int(t.Timeout / time.Second)
	return advanced
}

// Tick advances the countdown. Once Timeout has passed since the last event the
// tracker resets and Tick returns false; the caller stops ticking it.
func (t *StreakTracker) Tick(now time.Time) bool {
	if t.lastEvent == nil {
		return false
	}

	remaining := t.Timeout - now.Sub(*t.lastEvent)
	if remaining <= 0 {
		t.Reset()
		return false
	}

	t.countdown = int(remaining / time.Second)
	return true
}

// Reset clears everything, including the last event time.
func (t *StreakTracker) Reset() {
	t.streakCount = 0
	t.multiplier = 1
	t.window = nil
	t.lastEvent = nil
	t.countdown = 0
}

// Ticking reports whether the countdown should run. Events gathering toward
// the first streak are not on a clock; only the rolling window ages them out.
func (t *StreakTracker) Ticking() bool {
	return t.streakCount > 0 && t.lastEvent != nil
}

func (t *StreakTracker) Active() bool {
	return t.streakCount > 0 || len(t.window) > 0
}

func (t *StreakTracker) Multiplier() float64 {
	return t.multiplier
}

func (t *StreakTracker) State() StreakState {
	st := StreakState{
		StreakCount: t.streakCount,
		Multiplier:  t.multiplier,
		Countdown:   t.countdown,
	}
	if len(t.window) > 0 {
		st.WindowEvents = append([]time.Time(nil), t.window...)
	}
	if t.lastEvent != nil {
		last := *t.lastEvent
		st.LastEventTime = &last
	}
	return st
}
