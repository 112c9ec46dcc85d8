package compare

import (
	"math"
	"testing"
)

func TestGrade(t *testing.T) {
	tests := []struct {
		score  float64
		letter string
		label  string
	}{
		{100, "A", "A (Excellent)"},
		{90, "A", "A (Excellent)"},
		{89.99, "B", "B (Very Good)"},
		{80, "B", "B (Very Good)"},
		{70, "C", "C (Good)"},
		{60, "D", "D (Fair)"},
		{59.99, "F", "F (Needs Improvement)"},
		{0, "F", "F (Needs Improvement)"},
	}

	for _, tt := range tests {
		letter, label := Grade(tt.score)
		if letter != tt.letter || label != tt.label {
			t.Errorf("Grade(%v) = %q, %q, want %q, %q", tt.score, letter, label, tt.letter, tt.label)
		}
	}
}

func TestOverallScoreWeights(t *testing.T) {
	s := OverallScore(50, 75, 20)
	// 0.4*50 + 0.4*75 + 0.2*20 = 54
	if s.Overall != 54 {
		t.Errorf("Overall = %v, want 54", s.Overall)
	}
	if s.Grade != "F" {
		t.Errorf("Grade = %q, want F", s.Grade)
	}
	if s.NoteSimilarity != 50 || s.NoteMatching != 75 || s.TimingAccuracy != 20 {
		t.Errorf("components = %+v", s)
	}

	if NoteSimilarityWeight+MatchWeight+TimingWeight != 1 {
		t.Error("score weights must sum to 1")
	}

	s = OverallScore(91.234, 91.234, 91.234)
	if s.Overall != 91.23 || s.Grade != "A" {
		t.Errorf("OverallScore(91.234...) = %v (%s), want 91.23 (A)", s.Overall, s.Grade)
	}
}

func TestTimingStatistics(t *testing.T) {
	matches := []MatchRecord{
		{TimeDifference: 0.1},
		{TimeDifference: 0.2},
		{TimeDifference: 0.3},
	}

	ta := TimingStatistics(matches, 0.5)
	if ta.AverageTimeDifference != 0.2 {
		t.Errorf("AverageTimeDifference = %v, want 0.2", ta.AverageTimeDifference)
	}
	if ta.MinTimeDifference != 0.1 || ta.MaxTimeDifference != 0.3 {
		t.Errorf("min/max = %v/%v, want 0.1/0.3", ta.MinTimeDifference, ta.MaxTimeDifference)
	}
	// population standard deviation of {0.1, 0.2, 0.3}
	if want := round(math.Sqrt(0.02/3), 3); ta.StdTimeDifference != want {
		t.Errorf("StdTimeDifference = %v, want %v", ta.StdTimeDifference, want)
	}
	if ta.TimingAccuracy != 60 {
		t.Errorf("TimingAccuracy = %v, want 60", ta.TimingAccuracy)
	}
}

func TestTimingStatisticsEdges(t *testing.T) {
	if ta := TimingStatistics(nil, 0.5); ta != (TimingAnalysis{}) {
		t.Errorf("TimingStatistics(nil) = %+v, want zero", ta)
	}

	ta := TimingStatistics([]MatchRecord{{TimeDifference: 0.9}}, 0.5)
	if ta.TimingAccuracy != 0 {
		t.Errorf("TimingAccuracy = %v, want clamped 0", ta.TimingAccuracy)
	}
}

func TestGradeThresholds(t *testing.T) {
	th := GradeThresholds()
	if len(th) != 5 || th[0]["grade"] != "A" || th[4]["grade"] != "F" {
		t.Errorf("GradeThresholds() = %v", th)
	}
}
