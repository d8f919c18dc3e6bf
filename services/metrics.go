package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are built per registry so tests can use a throwaway one.
type Metrics struct {
	Submissions      *prometheus.CounterVec
	SubmissionPayout prometheus.Histogram
	Votes            *prometheus.CounterVec
	BackendCalls     *prometheus.CounterVec
	ActiveStreaks    prometheus.Gauge
	ScrollRewards    prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trends",
			Name:      "submissions_total",
			Help:      "Trend submission attempts by outcome.",
		}, []string{"outcome"}),
		SubmissionPayout: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "trends",
			Name:      "submission_payout_dollars",
			Help:      "Estimated payout per accepted submission.",
			Buckets:   []float64{0.02, 0.05, 0.08, 0.1, 0.15, 0.2, 0.5, 1, 3},
		}),
		Votes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trends",
			Name:      "votes_total",
			Help:      "Validation votes by outcome.",
		}, []string{"outcome"}),
		BackendCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trends",
			Name:      "backend_calls_total",
			Help:      "Backend RPC calls by procedure and result.",
		}, []string{"rpc", "result"}),
		ActiveStreaks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "trends",
			Name:      "active_streaks",
			Help:      "Scroll sessions currently counting down a streak.",
		}),
		ScrollRewards: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trends",
			Name:      "scroll_rewards_total",
			Help:      "Trends logged during scroll sessions.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Submissions, m.SubmissionPayout, m.Votes, m.BackendCalls, m.ActiveStreaks, m.ScrollRewards)
	}
	return m
}
