package domain

import (
	"fmt"
	"math"
)

// CountScale is the PLN personality parameter k relating confidence to
// evidence count: c = n / (n + k).
const CountScale = 800.0

// TruthValue is a probabilistic belief: a strength in [0,1] and a confidence
// in [0,1]. The zero value is the undefined truth value.
type TruthValue struct {
	Strength   float64 `json:"strength"`
	Confidence float64 `json:"confidence"`
}

// NullTruthValue is carried by atoms that have never been given a belief.
var NullTruthValue = TruthValue{}

func NewTruthValue(strength, confidence float64) TruthValue {
	return TruthValue{Strength: clampUnit(strength), Confidence: clampUnit(confidence)}
}

// NewTruthValueFromCount builds a truth value from an evidence count.
func NewTruthValueFromCount(strength, count float64) TruthValue {
	if count <= 0 {
		return TruthValue{Strength: clampUnit(strength)}
	}
	return NewTruthValue(strength, count/(count+CountScale))
}

// Defined reports whether the value carries any belief at all.
func (tv TruthValue) Defined() bool {
	return tv.Confidence > 0 && !math.IsNaN(tv.Strength) && !math.IsNaN(tv.Confidence)
}

// Count is the evidence count implied by the confidence.
func (tv TruthValue) Count() float64 {
	if tv.Confidence >= 1 {
		return math.Inf(1)
	}
	return CountScale * tv.Confidence / (1 - tv.Confidence)
}

// Vector returns the components in format order.
func (tv TruthValue) Vector() []float64 {
	return []float64{tv.Strength, tv.Confidence}
}

func (tv TruthValue) String() string {
	return fmt.Sprintf("(stv %.4g %.4g)", tv.Strength, tv.Confidence)
}

// Revise merges two beliefs about the same atom. Strength is the
// confidence-weighted mean and confidence is the larger of the two, so
// revising a value with itself returns it unchanged. An undefined side yields
// the other side.
func Revise(old, next TruthValue) TruthValue {
	switch {
	case !next.Defined():
		return old
	case !old.Defined():
		return next
	case old == next:
		return old
	}
	w := old.Confidence + next.Confidence
	s := (old.Strength*old.Confidence + next.Strength*next.Confidence) / w
	return NewTruthValue(s, math.Max(old.Confidence, next.Confidence))
}

func clampUnit(x float64) float64 {
	if math.IsNaN(x) {
		return x
	}
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
