package compare

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Overall score weights. Changing them changes every published score.
const (
	NoteSimilarityWeight = 0.4
	MatchWeight          = 0.4
	TimingWeight         = 0.2
)

// grade is a lower score bound with its letter and label.
type grade struct {
	min    float64
	letter string
	label  string
}

var grades = []grade{
	{90, "A", "A (Excellent)"},
	{80, "B", "B (Very Good)"},
	{70, "C", "C (Good)"},
	{60, "D", "D (Fair)"},
	{0, "F", "F (Needs Improvement)"},
}

// Grade maps a 0-100 score to a letter and a descriptive label.
func Grade(score float64) (string, string) {
	for _, g := range grades[:len(grades)-1] {
		if score >= g.min {
			return g.letter, g.label
		}
	}
	last := grades[len(grades)-1]
	return last.letter, last.label
}

// GradeThresholds returns the grade bounds, best first.
func GradeThresholds() []map[string]any {
	out := make([]map[string]any, len(grades))
	for i, g := range grades {
		out[i] = map[string]any{"min_score": g.min, "grade": g.letter, "label": g.label}
	}
	return out
}

// TimingStatistics summarizes matched time differences. Timing accuracy is
// (1 - mean/tolerance) as a percentage clamped to [0, 100]. With no matches
// every value is 0.
func TimingStatistics(matches []MatchRecord, tolerance float64) TimingAnalysis {
	if len(matches) == 0 {
		return TimingAnalysis{}
	}

	diffs := make([]float64, len(matches))
	for i, m := range matches {
		diffs[i] = m.TimeDifference
	}
	mean, std := stat.PopMeanStdDev(diffs, nil)

	accuracy := 0.0
	if tolerance > 0 {
		accuracy = clamp((1-mean/tolerance)*100, 0, 100)
	}

	return TimingAnalysis{
		AverageTimeDifference: round(mean, 3),
		MaxTimeDifference:     round(floats.Max(diffs), 3),
		MinTimeDifference:     round(floats.Min(diffs), 3),
		StdTimeDifference:     round(std, 3),
		TimingAccuracy:        round(accuracy, 2),
	}
}

// OverallScore combines the three component scores (each 0-100) with the
// 0.4/0.4/0.2 weights and grades the result.
func OverallScore(noteSimilarity, matchPercentage, timingAccuracy float64) Score {
	overall := noteSimilarity*NoteSimilarityWeight +
		matchPercentage*MatchWeight +
		timingAccuracy*TimingWeight
	overall = clamp(overall, 0, 100)

	letter, label := Grade(overall)
	return Score{
		Overall:        round(overall, 2),
		NoteSimilarity: round(noteSimilarity, 2),
		NoteMatching:   round(matchPercentage, 2),
		TimingAccuracy: round(timingAccuracy, 2),
		Grade:          letter,
		GradeLabel:     label,
	}
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
