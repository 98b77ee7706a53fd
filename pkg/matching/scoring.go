// Package matching scores contact similarity and assigns incoming contacts to stored ones
package matching

import (
	"math"
	"unicode/utf8"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
)

// FieldWeight declares how one contact field contributes to the composite score
type FieldWeight struct {
	Field      string
	Weight     float64
	Normalizer string
	value      func(models.MatchFields) string
}

// DefaultWeights are the composite score weights for name, email, phone and company
func DefaultWeights() []FieldWeight {
	return []FieldWeight{
		{Field: "name", Weight: 0.4, Normalizer: "lowercase", value: func(f models.MatchFields) string { return f.Name }},
		{Field: "email", Weight: 0.3, Normalizer: "nemail", value: func(f models.MatchFields) string { return f.Email }},
		{Field: "phone", Weight: 0.2, Normalizer: "nphone", value: func(f models.MatchFields) string { return f.Phone }},
		{Field: "company", Weight: 0.1, Normalizer: "lowercase", value: func(f models.MatchFields) string { return f.Company }},
	}
}

// Scorer computes string and contact similarity on a single Dice scale
type Scorer struct {
	metric  strutil.StringMetric
	weights []FieldWeight
}

// NewScorer creates a Scorer using bigram Sørensen–Dice similarity
func NewScorer() *Scorer {
	return &Scorer{
		metric: &metrics.SorensenDice{
			CaseSensitive: false,
			NgramSize:     2,
		},
		weights: DefaultWeights(),
	}
}

// Similarity returns the bigram Dice coefficient of two strings in [0,1].
// Case and whitespace are ignored; identical inputs score 1 and
// inputs too short to form a bigram score 0.
func (s *Scorer) Similarity(a, b string) float64 {
	a = normalizers.ApplyChain(a, "trim", "lowercase", "remove_whitespace")
	b = normalizers.ApplyChain(b, "trim", "lowercase", "remove_whitespace")
	if a == b {
		return 1.0
	}
	if utf8.RuneCountInString(a) < 2 || utf8.RuneCountInString(b) < 2 {
		return 0.0
	}
	return roundScore(strutil.Similarity(a, b, s.metric))
}

// Score returns the weighted similarity of two contacts in [0,1].
//
// Equal normalized emails or phones are a definitive match. Otherwise each
// field present on both sides contributes its similarity times its weight,
// divided by the sum of weights actually used.
func (s *Scorer) Score(a, b models.MatchFields) float64 {
	if ea, eb := normalizers.NormalizeEmail(a.Email), normalizers.NormalizeEmail(b.Email); ea != "" && ea == eb {
		return 1.0
	}
	if pa, pb := normalizers.NormalizePhone(a.Phone), normalizers.NormalizePhone(b.Phone); pa != "" && pa == pb {
		return 1.0
	}

	var weightedSum, totalWeight float64
	for _, w := range s.weights {
		va := normalizers.ApplyChain(w.value(a), "trim", w.Normalizer)
		vb := normalizers.ApplyChain(w.value(b), "trim", w.Normalizer)
		if va == "" || vb == "" {
			continue
		}
		weightedSum += s.Similarity(va, vb) * w.Weight
		totalWeight += w.Weight
	}

	if totalWeight == 0 {
		return 0.0
	}
	return roundScore(weightedSum / totalWeight)
}

// scorePrecision drops the rounding noise of the weighted average so a
// similarity sitting exactly on a threshold compares as equal to it
const scorePrecision = 1e12

func roundScore(score float64) float64 {
	return math.Round(score*scorePrecision) / scorePrecision
}

// FieldScores breaks a composite score down per field, for logging match decisions
func (s *Scorer) FieldScores(a, b models.MatchFields) map[string]float64 {
	scores := make(map[string]float64, len(s.weights))
	for _, w := range s.weights {
		va := normalizers.ApplyChain(w.value(a), "trim", w.Normalizer)
		vb := normalizers.ApplyChain(w.value(b), "trim", w.Normalizer)
		if va == "" || vb == "" {
			continue
		}
		scores[w.Field] = s.Similarity(va, vb)
	}
	return scores
}
