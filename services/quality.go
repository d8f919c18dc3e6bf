package services

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"trend-spotting-system/models"
)

const (
	PolicyWeighted  = "weighted"
	PolicyChecklist = "checklist"

	recencyWindow = 48 * time.Hour
)

type QualityInput struct {
	Title              string
	Description        string
	RawCategory        string
	CategoryRecognized bool
	HasScreenshot      bool
	HasThumbnail       bool
	HasVideo           bool
	PostedAt           *time.Time
	Views              int64
	Likes              int64
	Comments           int64
	Shares             int64
	Metadata           models.TrendMetadata
}

func (in QualityInput) hasVisual() bool {
	return in.HasScreenshot || in.HasThumbnail
}

func (in QualityInput) recent(now time.Time) bool {
	if in.PostedAt == nil {
		return false
	}
	age := now.Sub(*in.PostedAt)
	return age >= 0 && age <= recencyWindow
}

// EngagementScore is the 0..100 virality signal: weighted interactions per view,
// scaled and capped.
func (in QualityInput) EngagementScore() float64 {
	if in.Views <= 0 {
		return 0
	}
	weighted := float64(in.Likes + 2*in.Comments + 3*in.Shares)
	return math.Min(weighted/float64(in.Views)*100*10, 100)
}

type ChecklistItem struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Met   bool   `json:"met"`
}

type QualityMetrics struct {
	Policy               string          `json:"policy"`
	HasScreenshot        bool            `json:"has_screenshot"`
	HasVideo             bool            `json:"has_video"`
	MetadataCompleteness float64         `json:"metadata_completeness"`
	OverallQuality       float64         `json:"overall_quality"`
	Percentage           int             `json:"percentage"`
	Checklist            []ChecklistItem `json:"checklist,omitempty"`
}

// QualityPolicy scores a submission. Implementations are pure.
type QualityPolicy interface {
	Name() string
	Evaluate(in QualityInput, now time.Time) QualityMetrics
}

func NewQualityPolicy(name string) (QualityPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PolicyWeighted:
		return WeightedPolicy{}, nil
	case PolicyChecklist:
		return ChecklistPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown quality policy %q", name)
	}
}

// WeightedPolicy weights: visual .15, video .10, description .15, metadata .25,
// authenticity .10, recency .10, virality .15.
type WeightedPolicy struct{}

func (WeightedPolicy) Name() string { return PolicyWeighted }

func (WeightedPolicy) Evaluate(in QualityInput, now time.Time) QualityMetrics {
	completeness := in.Metadata.Completeness()

	score := 0.0
	if in.hasVisual() {
		score += 0.15
	}
	if in.HasVideo {
		score += 0.10
	}
	descLen := float64(utf8.RuneCountInString(strings.TrimSpace(in.Description)))
	score += math.Min(descLen/200, 1) * 0.15
	score += completeness * 0.25
	// No authenticity signal exists yet; every submission gets the credit.
	score += 0.10
	if in.recent(now) {
		score += 0.10
	}
	score += in.EngagementScore() / 100 * 0.15

	score = clampUnit(roundTo(score, 4))
	return QualityMetrics{
		Policy:               PolicyWeighted,
		HasScreenshot:        in.hasVisual(),
		HasVideo:             in.HasVideo,
		MetadataCompleteness: roundTo(completeness, 4),
		OverallQuality:       score,
		Percentage:           int(math.Round(score * 100)),
	}
}

// ChecklistPolicy counts met criteria out of a fixed ordered list.
type ChecklistPolicy struct{}

func (ChecklistPolicy) Name() string { return PolicyChecklist }

func (ChecklistPolicy) Evaluate(in QualityInput, now time.Time) QualityMetrics {
	items := []ChecklistItem{
		{Key: "has_visual", Label: "Clear screenshot or thumbnail", Met: in.hasVisual() || in.HasVideo},
		{Key: "has_description", Label: "Description longer than 10 characters", Met: utf8.RuneCountInString(strings.TrimSpace(in.Description)) > 10},
		{Key: "proper_category", Label: "Specific category selected", Met: strings.TrimSpace(in.RawCategory) != "" && in.CategoryRecognized},
		{Key: "has_engagement", Label: "Shows engagement", Met: in.Likes+in.Comments+in.Shares > 0},
		{Key: "recent", Label: "Posted within 48 hours", Met: in.recent(now)},
		// placeholder until duplicate/spam scoring exists
		{Key: "not_spam", Label: "Not spam or duplicate", Met: true},
	}

	met := 0
	for _, it := range items {
		if it.Met {
			met++
		}
	}
	ratio := float64(met) / float64(len(items))

	return QualityMetrics{
		Policy:               PolicyChecklist,
		HasScreenshot:        in.hasVisual(),
		HasVideo:             in.HasVideo,
		MetadataCompleteness: roundTo(in.Metadata.Completeness(), 4),
		OverallQuality:       roundTo(ratio, 4),
		Percentage:           int(math.Round(ratio * 100)),
		Checklist:            items,
	}
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
