package services

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

var (
	difficultyRate  = decimal.RequireFromString("0.03")
	confidenceBonus = decimal.RequireFromString("0.01")
)

// LineItem is one applied term of a payout.
type LineItem struct {
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

// PaymentBreakdown carries the exact total and the terms that produced it, in
// the order they were applied. TotalAmount is always the sum of Items.
type PaymentBreakdown struct {
	Tier        SpotterTier     `json:"tier,omitempty"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []LineItem      `json:"items"`
	Breakdown   []string        `json:"breakdown"`
}

// Display is the only place the total gets rounded.
func (p PaymentBreakdown) Display() string {
	return "$" + p.TotalAmount.StringFixed(2)
}

// PaymentBonuses are optional additive terms. Nil pointers and multipliers
// at or below 1 are skipped.
type PaymentBonuses struct {
	Difficulty       *float64
	Confidence       *float64
	StreakMultiplier float64
}

type PaymentCalculator struct {
	ScrollBaseRate     decimal.Decimal
	ValidationBaseRate decimal.Decimal
	// Zero disables the cap.
	MaxSubmission decimal.Decimal
}

func NewPaymentCalculator(scrollBaseRate, validationBaseRate, maxSubmission float64) *PaymentCalculator {
	return &PaymentCalculator{
		ScrollBaseRate:     decimal.NewFromFloat(scrollBaseRate),
		ValidationBaseRate: decimal.NewFromFloat(validationBaseRate),
		MaxSubmission:      decimal.NewFromFloat(maxSubmission),
	}
}

// Estimate prices a trend submission: base = min + (max - min) * quality, with
// quality clamped to [0,1] and rounded to four places, then the bonuses.
func (c *PaymentCalculator) Estimate(tierName string, quality float64, bonuses PaymentBonuses) PaymentBreakdown {
	tier, benefits := LookupTier(tierName)
	q := decimal.NewFromFloat(clampUnit(quality)).Round(4)

	span := benefits.BasePaymentRange.Max.Sub(benefits.BasePaymentRange.Min)
	base := benefits.BasePaymentRange.Min.Add(span.Mul(q))

	b := &breakdownBuilder{}
	b.add(fmt.Sprintf("Base pay (%s tier, quality %s%%)", tier, q.Shift(2).String()), base)

	if bonuses.Difficulty != nil && *bonuses.Difficulty > 0 && !math.IsNaN(*bonuses.Difficulty) {
		d := decimal.NewFromFloat(*bonuses.Difficulty).Round(4)
		b.add(fmt.Sprintf("Difficulty bonus (%s)", d.String()), d.Mul(difficultyRate))
	}
	if bonuses.Confidence != nil && confidenceIsExtreme(*bonuses.Confidence) {
		b.add("Confidence bonus", confidenceBonus)
	}
	if bonuses.StreakMultiplier > 1 {
		m := decimal.NewFromFloat(bonuses.StreakMultiplier)
		b.add(fmt.Sprintf("Streak bonus (%sx)", m.String()), base.Mul(m.Sub(decimal.NewFromInt(1))))
	}

	if c.MaxSubmission.IsPositive() && b.total.GreaterThan(c.MaxSubmission) {
		b.add(fmt.Sprintf("Per-submission cap (%s)", c.MaxSubmission.StringFixed(2)), c.MaxSubmission.Sub(b.total))
	}

	out := b.result()
	out.Tier = tier
	return out
}

// ScrollReward prices one logged trend in a scroll session: BaseRate * multiplier,
// itemised as the base rate plus the streak uplift.
func (c *PaymentCalculator) ScrollReward(multiplier float64) PaymentBreakdown {
	b := &breakdownBuilder{}
	b.add("Scroll base rate", c.ScrollBaseRate)
	if multiplier > 1 {
		m := decimal.NewFromFloat(multiplier)
		b.add(fmt.Sprintf("Streak bonus (%sx)", m.String()), c.ScrollBaseRate.Mul(m.Sub(decimal.NewFromInt(1))))
	}
	return b.result()
}

// ValidationReward prices one accepted vote.
func (c *PaymentCalculator) ValidationReward(difficulty, confidence float64) PaymentBreakdown {
	b := &breakdownBuilder{}
	b.add("Validation base", c.ValidationBaseRate)
	if difficulty > 0 && !math.IsNaN(difficulty) {
		d := decimal.NewFromFloat(difficulty).Round(4)
		b.add(fmt.Sprintf("Difficulty bonus (%s)", d.String()), d.Mul(difficultyRate))
	}
	if confidenceIsExtreme(confidence) {
		b.add("Confidence bonus", confidenceBonus)
	}
	return b.result()
}

func confidenceIsExtreme(c float64) bool {
	if math.IsNaN(c) {
		return false
	}
	return c >= 0.9 || c <= 0.1
}

type breakdownBuilder struct {
	items []LineItem
	total decimal.Decimal
}

func (b *breakdownBuilder) add(label string, amount decimal.Decimal) {
	b.items = append(b.items, LineItem{Label: label, Amount: amount})
	b.total = b.total.Add(amount)
}

func (b *breakdownBuilder) result() PaymentBreakdown {
	lines := make([]string, 0, len(b.items))
	for _, it := range b.items {
		lines = append(lines, fmt.Sprintf("%s: %s", it.Label, formatAmount(it.Amount)))
	}
	return PaymentBreakdown{
		TotalAmount: b.total,
		Items:       b.items,
		Breakdown:   lines,
	}
}

// formatAmount prints the exact amount, e.g. "$0.1395" or "-$0.25".
func formatAmount(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-$" + d.Neg().String()
	}
	return "$" + d.String()
}
