package classifier

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"gauntlet-service/internal/domain"
	"gauntlet-service/internal/textutil"
)

const (
	defaultArchetype   = "The Practical Operator"
	defaultDescription = "Execution-focused and reality-driven."
	defaultContext     = "This profile performs well in high-ambiguity environments."
	defaultRisk        = "Medium"

	defaultGrowthFocus = 50
	defaultDataDriven  = 7
	defaultSimilarity  = 25

	maxArchetypeLen   = 120
	maxDescriptionLen = 280
	maxTraitLen       = 120
	maxContextLen     = 1000
	traitCount        = 3
)

var defaultTraits = []string{"Pragmatic", "Execution-minded", "Outcome-oriented"}

var riskLevels = map[string]struct{}{"Low": {}, "Medium": {}, "High": {}}

var fencePattern = regexp.MustCompile("(?i)```(json)?")

// ParseResult strips incidental markdown fencing from model output, parses it
// and normalizes it. Empty or unparseable output is an error: there is no safe
// default narrative for an archetype.
func ParseResult(text string) (domain.ClassificationResult, error) {
	cleaned := strings.TrimSpace(fencePattern.ReplaceAllString(text, ""))
	if cleaned == "" {
		return domain.ClassificationResult{}, domain.ErrEmptyClassification
	}
	var raw any
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return domain.ClassificationResult{}, fmt.Errorf("parse classifier output: %w", err)
	}
	if _, ok := raw.(map[string]any); !ok {
		return domain.ClassificationResult{}, fmt.Errorf("parse classifier output: expected an object, got %T", raw)
	}
	return Normalize(raw), nil
}

// Normalize coerces an untrusted value into a structurally valid result.
// It never fails, and normalizing its own output is a no-op.
func Normalize(raw any) domain.ClassificationResult {
	switch t := raw.(type) {
	case domain.ClassificationResult:
		raw = resultMap(t)
	case *domain.ClassificationResult:
		if t != nil {
			raw = resultMap(*t)
		}
	}
	m, _ := raw.(map[string]any)
	stats, _ := m["stats"].(map[string]any)

	risk, _ := stats["riskTolerance"].(string)
	if _, ok := riskLevels[risk]; !ok {
		risk = defaultRisk
	}

	return domain.ClassificationResult{
		Archetype:           cleanOr(m["archetype"], maxArchetypeLen, defaultArchetype),
		Description:         cleanOr(m["description"], maxDescriptionLen, defaultDescription),
		Traits:              normalizeTraits(m["traits"]),
		ContextWhyItMatters: cleanOr(m["contextWhyItMatters"], maxContextLen, defaultContext),
		Stats: domain.Stats{
			GrowthFocus:     clampOr(stats["growthFocus"], 0, 100, defaultGrowthFocus),
			RiskTolerance:   risk,
			DataDrivenScore: clampOr(stats["dataDrivenScore"], 1, 10, defaultDataDriven),
		},
		SimilarityPercentage: clampOr(m["similarityPercentage"], 10, 40, defaultSimilarity),
	}
}

// resultMap lifts a typed result into the untrusted shape so it takes the
// same clamping path as provider output.
func resultMap(r domain.ClassificationResult) map[string]any {
	traits := make([]any, 0, len(r.Traits))
	for _, trait := range r.Traits {
		traits = append(traits, trait)
	}
	return map[string]any{
		"archetype":           r.Archetype,
		"description":         r.Description,
		"traits":              traits,
		"contextWhyItMatters": r.ContextWhyItMatters,
		"stats": map[string]any{
			"growthFocus":     r.Stats.GrowthFocus,
			"riskTolerance":   r.Stats.RiskTolerance,
			"dataDrivenScore": r.Stats.DataDrivenScore,
		},
		"similarityPercentage": r.SimilarityPercentage,
	}
}

func normalizeTraits(v any) []string {
	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case []string:
		for _, s := range t {
			items = append(items, s)
		}
	}
	traits := make([]string, 0, traitCount)
	for _, item := range items {
		if len(traits) == traitCount {
			break
		}
		if s := textutil.Clean(stringify(item), maxTraitLen); s != "" {
			traits = append(traits, s)
		}
	}
	if len(traits) != traitCount {
		return append([]string(nil), defaultTraits...)
	}
	return traits
}

func cleanOr(v any, max int, fallback string) string {
	if s := textutil.Clean(stringify(v), max); s != "" {
		return s
	}
	return fallback
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

func clampOr(v any, lo, hi, fallback float64) float64 {
	n, ok := toNumber(v)
	if !ok {
		return fallback
	}
	return math.Max(lo, math.Min(hi, n))
}

func toNumber(v any) (float64, bool) {
	var n float64
	switch t := v.(type) {
	case float64:
		n = t
	case int:
		n = float64(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		n = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		n = f
	default:
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}
