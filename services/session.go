package services

import (
	"context"
	"sync"
	"time"

	"trend-spotting-system/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type StreakConfig struct {
	Window          time.Duration
	Timeout         time.Duration
	TrendsForStreak int
}

type scrollSession struct {
	id           string
	startedAt    time.Time
	tracker      *StreakTracker
	trendsLogged int
	bestStreak   int
	earned       decimal.Decimal
}

type SessionSnapshot struct {
	ID           string          `json:"id"`
	StartedAt    time.Time       `json:"started_at"`
	TrendsLogged int             `json:"trends_logged"`
	BestStreak   int             `json:"best_streak"`
	Earned       decimal.Decimal `json:"earned"`
	Streak       StreakState     `json:"streak"`
}

type ScrollLogResult struct {
	Session       SessionSnapshot  `json:"session"`
	Payment       PaymentBreakdown `json:"payment"`
	StreakAdvance bool             `json:"streak_advanced"`
	EarningID     string           `json:"earning_id"`
}

// SessionRegistry holds one scroll session and streak tracker per spotter.
// Trackers are only touched under mu.
type SessionRegistry struct {
	DB       *gorm.DB
	calc     *PaymentCalculator
	spotters *SpotterService
	awards   *AchievementService
	metrics  *Metrics
	log      zerolog.Logger
	cfg      StreakConfig
	now      func() time.Time

	mu          sync.Mutex
	sessions    map[string]*scrollSession
	subscribers map[string]map[chan StreakState]struct{}
}

func NewSessionRegistry(db *gorm.DB, cfg StreakConfig, calc *PaymentCalculator, spotters *SpotterService,
	awards *AchievementService, metrics *Metrics, log zerolog.Logger) *SessionRegistry {
	return &SessionRegistry{
		DB:          db,
		calc:        calc,
		spotters:    spotters,
		awards:      awards,
		metrics:     metrics,
		log:         log,
		cfg:         cfg,
		now:         time.Now,
		sessions:    make(map[string]*scrollSession),
		subscribers: make(map[string]map[chan StreakState]struct{}),
	}
}

// Start opens a session. Starting twice returns the running one.
func (r *SessionRegistry) Start(userID string) (SessionSnapshot, error) {
	if userID == "" {
		return SessionSnapshot{}, ErrUnauthenticated
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[userID]; ok {
		return s.snapshot(), nil
	}
	s := &scrollSession{
		id:        uuid.NewString(),
		startedAt: r.now(),
		tracker:   NewStreakTracker(r.cfg.Window, r.cfg.Timeout, r.cfg.TrendsForStreak),
		earned:    decimal.Zero,
	}
	r.sessions[userID] = s
	r.log.Info().Str("user_id", userID).Str("session_id", s.id).Msg("▶️ [SESSION] started")
	return s.snapshot(), nil
}

func (r *SessionRegistry) Get(userID string) (SessionSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	if !ok {
		return SessionSnapshot{}, false
	}
	return s.snapshot(), true
}

// End closes the session, resets its streak and stores a summary row.
func (r *SessionRegistry) End(userID string) (*models.ScrollSession, error) {
	r.mu.Lock()
	s, ok := r.sessions[userID]
	if ok {
		delete(r.sessions, userID)
		s.tracker.Reset()
	}
	r.mu.Unlock()
	if !ok {
		return nil, ErrSessionInactive
	}
	r.publish(userID, s.tracker.State())

	ended := r.now()
	record := &models.ScrollSession{
		ID:           s.id,
		UserID:       userID,
		StartedAt:    s.startedAt,
		EndedAt:      &ended,
		TrendsLogged: s.trendsLogged,
		BestStreak:   s.bestStreak,
		Earned:       s.earned,
	}
	if err := r.DB.Create(record).Error; err != nil {
		return nil, err
	}
	if s.bestStreak > 0 {
		if err := r.spotters.RecordStreak(userID, s.bestStreak); err != nil {
			r.log.Error().Err(err).Str("user_id", userID).Msg("[SESSION] failed to record best streak")
		}
		if _, err := r.awards.AutoAward(userID); err != nil {
			r.log.Error().Err(err).Str("user_id", userID).Msg("[SESSION] achievement check failed")
		}
	}
	r.log.Info().Str("user_id", userID).Str("session_id", s.id).Int("trends", s.trendsLogged).
		Str("earned", s.earned.String()).Msg("⏹️ [SESSION] ended")
	return record, nil
}

// LogTrend books the scroll reward (base rate times the multiplier earned so
// far) as a pending earning, then counts the trend towards the streak.
func (r *SessionRegistry) LogTrend(ctx context.Context, userID string) (*ScrollLogResult, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}

	r.mu.Lock()
	s, ok := r.sessions[userID]
	if !ok {
		r.mu.Unlock()
		return nil, ErrSessionInactive
	}
	payment := r.calc.ScrollReward(s.tracker.Multiplier())
	advanced := s.tracker.RecordSubmission(r.now())
	s.trendsLogged++
	s.earned = s.earned.Add(payment.TotalAmount)
	if st := s.tracker.State().StreakCount; st > s.bestStreak {
		s.bestStreak = st
	}
	snap := s.snapshot()
	r.mu.Unlock()

	r.publish(userID, snap.Streak)

	sessionID := snap.ID
	entry := pendingEntry(userID, models.EarningTypeScrollSession, payment, "Scroll session trend")
	entry.SessionID = &sessionID
	if err := r.DB.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, err
	}

	if r.metrics != nil {
		r.metrics.ScrollRewards.Inc()
	}
	if advanced {
		r.log.Info().Str("user_id", userID).Int("streak", snap.Streak.StreakCount).
			Float64("multiplier", snap.Streak.Multiplier).Msg("🔥 [STREAK] streak advanced")
	}

	return &ScrollLogResult{
		Session:       snap,
		Payment:       payment,
		StreakAdvance: advanced,
		EarningID:     entry.ID,
	}, nil
}

// RecordSubmission feeds a full trend submission into the spotter's running
// session. ok is false without an active session.
func (r *SessionRegistry) RecordSubmission(userID string) (multiplier float64, ok bool) {
	r.mu.Lock()
	s, ok := r.sessions[userID]
	if !ok {
		r.mu.Unlock()
		return 1, false
	}
	s.tracker.RecordSubmission(r.now())
	if st := s.tracker.State().StreakCount; st > s.bestStreak {
		s.bestStreak = st
	}
	state := s.tracker.State()
	r.mu.Unlock()

	r.publish(userID, state)
	return state.Multiplier, true
}

// TickAll advances every live countdown. Only sessions holding a streak are
// ticked; expired streaks reset and drop out until the next streak is earned.
func (r *SessionRegistry) TickAll() {
	now := r.now()
	type update struct {
		userID string
		state  StreakState
	}
	var updates []update
	active := 0

	r.mu.Lock()
	for userID, s := range r.sessions {
		if !s.tracker.Ticking() {
			continue
		}
		if s.tracker.Tick(now) {
			active++
		} else {
			r.log.Info().Str("user_id", userID).Msg("⌛ [STREAK] streak expired")
		}
		updates = append(updates, update{userID: userID, state: s.tracker.State()})
	}
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.ActiveStreaks.Set(float64(active))
	}
	for _, u := range updates {
		r.publish(u.userID, u.state)
	}
}

// Subscribe streams streak snapshots for one spotter until cancel is called.
func (r *SessionRegistry) Subscribe(userID string) (<-chan StreakState, func()) {
	ch := make(chan StreakState, 8)
	r.mu.Lock()
	if r.subscribers[userID] == nil {
		r.subscribers[userID] = make(map[chan StreakState]struct{})
	}
	r.subscribers[userID][ch] = struct{}{}
	r.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subscribers[userID], ch)
			if len(r.subscribers[userID]) == 0 {
				delete(r.subscribers, userID)
			}
			r.mu.Unlock()
		})
	}
}

func (r *SessionRegistry) publish(userID string, state StreakState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ch := range r.subscribers[userID] {
		select {
		case ch <- state:
		default:
			// slow reader, drop this frame
		}
	}
}

func (s *scrollSession) snapshot() SessionSnapshot {
	return SessionSnapshot{
		ID:           s.id,
		StartedAt:    s.startedAt,
		TrendsLogged: s.trendsLogged,
		BestStreak:   s.bestStreak,
		Earned:       s.earned,
		Streak:       s.tracker.State(),
	}
}
