package domain

import (
	"math"
	"testing"
)

func TestReviseIsIdempotent(t *testing.T) {
	tv := NewTruthValue(0.7, 0.6)
	if got := Revise(tv, tv); got != tv {
		t.Errorf("Revise(tv, tv) = %v, want %v", got, tv)
	}
}

func TestRevise(t *testing.T) {
	tests := []struct {
		name string
		old  TruthValue
		next TruthValue
		want TruthValue
	}{
		{"undefined old", NullTruthValue, NewTruthValue(0.4, 0.5), NewTruthValue(0.4, 0.5)},
		{"undefined next", NewTruthValue(0.4, 0.5), NullTruthValue, NewTruthValue(0.4, 0.5)},
		{"weighted", NewTruthValue(1, 0.5), NewTruthValue(0, 0.5), NewTruthValue(0.5, 0.5)},
		{"confidence max", NewTruthValue(0.9, 0.2), NewTruthValue(0.9, 0.8), NewTruthValue(0.9, 0.8)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Revise(tt.old, tt.next)
			if math.Abs(got.Strength-tt.want.Strength) > 1e-9 || math.Abs(got.Confidence-tt.want.Confidence) > 1e-9 {
				t.Errorf("Revise(%v, %v) = %v, want %v", tt.old, tt.next, got, tt.want)
			}
		})
	}
}

func TestTruthValueCount(t *testing.T) {
	tv := NewTruthValueFromCount(0.8, 800)
	if math.Abs(tv.Confidence-0.5) > 1e-9 {
		t.Errorf("confidence = %v, want 0.5", tv.Confidence)
	}
	if math.Abs(tv.Count()-800) > 1e-6 {
		t.Errorf("count = %v, want 800", tv.Count())
	}
	if NullTruthValue.Defined() {
		t.Error("null truth value should be undefined")
	}
	if !NewTruthValue(1.5, 0.5).Defined() || NewTruthValue(1.5, 0.5).Strength != 1 {
		t.Error("strength should be clamped to 1")
	}
}
