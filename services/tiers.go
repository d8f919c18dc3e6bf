package services

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type SpotterTier string

const (
	TierElite      SpotterTier = "elite"
	TierVerified   SpotterTier = "verified"
	TierLearning   SpotterTier = "learning"
	TierRestricted SpotterTier = "restricted"
)

// UnlimitedTrends marks a tier without a daily submission cap.
const UnlimitedTrends = -1

type PaymentRange struct {
	Min decimal.Decimal `json:"min"`
	Max decimal.Decimal `json:"max"`
}

type TierBenefits struct {
	DailyTrendLimit  int          `json:"daily_trend_limit"`
	BasePaymentRange PaymentRange `json:"base_payment_range"`
}

var tierBenefits = map[SpotterTier]TierBenefits{
	TierElite: {
		DailyTrendLimit:  UnlimitedTrends,
		BasePaymentRange: PaymentRange{Min: decimal.RequireFromString("0.12"), Max: decimal.RequireFromString("0.20")},
	},
	TierVerified: {
		DailyTrendLimit:  100,
		BasePaymentRange: PaymentRange{Min: decimal.RequireFromString("0.08"), Max: decimal.RequireFromString("0.15")},
	},
	TierLearning: {
		DailyTrendLimit:  50,
		BasePaymentRange: PaymentRange{Min: decimal.RequireFromString("0.05"), Max: decimal.RequireFromString("0.10")},
	},
	TierRestricted: {
		DailyTrendLimit:  3,
		BasePaymentRange: PaymentRange{Min: decimal.RequireFromString("0.02"), Max: decimal.RequireFromString("0.05")},
	},
}

// LookupTier resolves a tier name. Unknown names fall back to the restricted tier,
// never to something more generous.
func LookupTier(name string) (SpotterTier, TierBenefits) {
	tier := SpotterTier(strings.ToLower(strings.TrimSpace(name)))
	if b, ok := tierBenefits[tier]; ok {
		return tier, b
	}
	return TierRestricted, tierBenefits[TierRestricted]
}

// Allows reports whether one more trend fits in today's quota.
func (b TierBenefits) Allows(submittedToday int64) bool {
	if b.DailyTrendLimit == UnlimitedTrends {
		return true
	}
	return submittedToday < int64(b.DailyTrendLimit)
}

// DetermineTier buckets a spotter by approval rate and 30 day submission volume.
// New spotters (fewer than 10 trends) always start in learning.
func DetermineTier(approvalRate float64, submissions30d int64) SpotterTier {
	switch {
	case approvalRate >= 0.8 && submissions30d >= 50:
		return TierElite
	case approvalRate >= 0.5 && submissions30d >= 20:
		return TierVerified
	case approvalRate >= 0.3 || submissions30d < 10:
		return TierLearning
	default:
		return TierRestricted
	}
}

type TierRequirement struct {
	Tier           SpotterTier `json:"tier"`
	ApprovalRate   float64     `json:"approval_rate"`
	Submissions30d int64       `json:"submissions_30d"`
}

// NextTier returns what it takes to move up one tier. ok is false for elite.
func NextTier(current SpotterTier) (TierRequirement, bool) {
	switch current {
	case TierRestricted:
		return TierRequirement{Tier: TierLearning, ApprovalRate: 0.3}, true
	case TierLearning:
		return TierRequirement{Tier: TierVerified, ApprovalRate: 0.5, Submissions30d: 20}, true
	case TierVerified:
		return TierRequirement{Tier: TierElite, ApprovalRate: 0.8, Submissions30d: 50}, true
	default:
		return TierRequirement{}, false
	}
}

func (t SpotterTier) Label() string {
	return cases.Title(language.English).String(string(t))
}
