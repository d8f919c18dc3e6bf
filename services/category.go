package services

import (
	"strings"

	"github.com/gosimple/slug"
	"github.com/gosimple/unidecode"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Category is the closed set of trend categories the store accepts.
type Category string

const (
	CategoryVisualStyle      Category = "visual_style"
	CategoryAudioMusic       Category = "audio_music"
	CategoryCreatorTechnique Category = "creator_technique"
	CategoryMemeFormat       Category = "meme_format"
	CategoryProductBrand     Category = "product_brand"
	CategoryBehaviorPattern  Category = "behavior_pattern"

	// FallbackCategory is used for anything that does not map.
	FallbackCategory = CategoryMemeFormat
)

var Categories = []Category{
	CategoryVisualStyle,
	CategoryAudioMusic,
	CategoryCreatorTechnique,
	CategoryMemeFormat,
	CategoryProductBrand,
	CategoryBehaviorPattern,
}

var categoryEmoji = map[Category]string{
	CategoryVisualStyle:      "🎨",
	CategoryAudioMusic:       "🎵",
	CategoryCreatorTechnique: "🎬",
	CategoryMemeFormat:       "😂",
	CategoryProductBrand:     "🛍️",
	CategoryBehaviorPattern:  "📊",
}

// keys are slugs with '-' folded to '_' and "and" dropped, so
// "Fashion & Beauty" looks up fashion_beauty
var categoryAliases = map[string]Category{
	"visual":                 CategoryVisualStyle,
	"aesthetic":              CategoryVisualStyle,
	"fashion":                CategoryVisualStyle,
	"fashion_beauty":         CategoryVisualStyle,
	"beauty":                 CategoryVisualStyle,
	"art_creativity":         CategoryVisualStyle,
	"audio":                  CategoryAudioMusic,
	"music":                  CategoryAudioMusic,
	"sound":                  CategoryAudioMusic,
	"music_dance":            CategoryAudioMusic,
	"creator":                CategoryCreatorTechnique,
	"technique":              CategoryCreatorTechnique,
	"editing":                CategoryCreatorTechnique,
	"education_science":      CategoryCreatorTechnique,
	"meme":                   CategoryMemeFormat,
	"memes":                  CategoryMemeFormat,
	"humor":                  CategoryMemeFormat,
	"humor_memes":            CategoryMemeFormat,
	"meme_coin":              CategoryMemeFormat,
	"meme_stock":             CategoryMemeFormat,
	"product":                CategoryProductBrand,
	"brand":                  CategoryProductBrand,
	"products":               CategoryProductBrand,
	"tech":                   CategoryProductBrand,
	"tech_gaming":            CategoryProductBrand,
	"food_drink":             CategoryProductBrand,
	"luxury":                 CategoryProductBrand,
	"behavior":               CategoryBehaviorPattern,
	"behaviour":              CategoryBehaviorPattern,
	"lifestyle":              CategoryBehaviorPattern,
	"dance":                  CategoryBehaviorPattern,
	"sports_fitness":         CategoryBehaviorPattern,
	"politics_social_issues": CategoryBehaviorPattern,
	"celebrity":              CategoryBehaviorPattern,
}

// NormalizeCategory maps an enum value, a display label ("🎨 Visual Style"),
// a slug or a known alias onto a Category. Anything else returns the fallback
// with recognized == false.
func NormalizeCategory(raw string) (cat Category, recognized bool) {
	key := categoryKey(raw)
	if key == "" {
		return FallbackCategory, false
	}
	for _, c := range Categories {
		if string(c) == key {
			return c, true
		}
	}
	if c, ok := categoryAliases[key]; ok {
		return c, true
	}
	return FallbackCategory, false
}

func categoryKey(raw string) string {
	ascii := unidecode.Unidecode(strings.TrimSpace(raw))
	ascii = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '-', r == '_', r == '/', r == '&':
			return r
		default:
			return -1
		}
	}, ascii)
	// slug spells '&' as "and"
	words := strings.Split(slug.Make(ascii), "-")
	kept := words[:0]
	for _, w := range words {
		if w != "and" && w != "" {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, "_")
}

func (c Category) Valid() bool {
	_, ok := categoryEmoji[c]
	return ok
}

// Label renders the dashboard label, e.g. "🎵 Audio/Music".
func (c Category) Label() string {
	words := strings.Split(string(c), "_")
	sep := " "
	if c == CategoryAudioMusic || c == CategoryProductBrand {
		sep = "/"
	}
	title := cases.Title(language.English).String(strings.Join(words, sep))
	if emoji, ok := categoryEmoji[c]; ok {
		return emoji + " " + title
	}
	return title
}

// ValidationDifficulty rates how hard a category is to judge. It feeds the
// validator's difficulty bonus.
func (c Category) ValidationDifficulty() float64 {
	switch c {
	case CategoryCreatorTechnique, CategoryVisualStyle:
		return 2
	case CategoryProductBrand:
		return 1.5
	default:
		return 1
	}
}
