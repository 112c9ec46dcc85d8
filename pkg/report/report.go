// Package report renders comparison results as plain text.
package report

import (
	"fmt"
	"strings"

	"github.com/james-see/notecompare/pkg/compare"
)

// Sample sizes for the listed sections.
const (
	CommonNotesShown = 20
	SamplesShown     = 10
)

var rule = strings.Repeat("=", 80)

// Format renders a comparison result. The output depends only on res.
func Format(res *compare.Result) string {
	var b strings.Builder
	section := func(title string) {
		b.WriteString(rule + "\n" + title + "\n" + rule + "\n")
	}
	line := func(format string, a ...any) {
		fmt.Fprintf(&b, format+"\n", a...)
	}

	section("SONG COMPARISON REPORT")
	line("")
	line("Original Song: %s", res.OriginalFile)
	line("Your Song: %s", res.ComparisonFile)
	line("Time Tolerance: %ss", num(res.TimeTolerance))
	line("")

	score := res.OverallScore
	section("OVERALL SCORE")
	line("Overall Similarity: %s%%", num(score.Overall))
	line("Grade: %s", score.GradeLabel)
	line("")
	line("  • Note Similarity: %s%%", num(score.NoteSimilarity))
	line("  • Note Matching: %s%%", num(score.NoteMatching))
	line("  • Timing Accuracy: %s%%", num(score.TimingAccuracy))
	line("")

	dist := res.NoteDistribution
	section("NOTE DISTRIBUTION ANALYSIS")
	line("Original Song Total Notes: %d", dist.TotalNotesOriginal)
	line("Your Song Total Notes: %d", dist.TotalNotesComparison)
	line("Common Notes: %d notes", dist.CommonNotesCount)
	common := dist.CommonNotes
	more := ""
	if len(common) > CommonNotesShown {
		common = common[:CommonNotesShown]
		more = "..."
	}
	line("  %s%s", strings.Join(common, ", "), more)
	line("")

	if n := len(dist.NotesOnlyInOriginal); n > 0 {
		line("Notes in Original but NOT in Your Song (%d):", n)
		line("  %s", strings.Join(dist.NotesOnlyInOriginal, ", "))
		line("")
	}
	if n := len(dist.NotesOnlyInComparison); n > 0 {
		line("Extra Notes in Your Song (%d):", n)
		line("  %s", strings.Join(dist.NotesOnlyInComparison, ", "))
		line("")
	}

	m := res.NoteMatching
	section("NOTE MATCHING ANALYSIS")
	line("Matched Notes: %d / %d (%s%%)", m.MatchCount, dist.TotalNotesOriginal, num(m.MatchPercentage))
	line("Unmatched in Original: %d", m.UnmatchedOriginalCount)
	line("Unmatched in Your Song: %d", m.UnmatchedComparisonCount)
	line("")

	ta := res.TimingAnalysis
	section("TIMING ANALYSIS")
	line("Average Timing Difference: %ss", num(ta.AverageTimeDifference))
	line("Timing Accuracy: %s%%", num(ta.TimingAccuracy))
	line("Max Time Difference: %ss", num(ta.MaxTimeDifference))
	line("Min Time Difference: %ss", num(ta.MinTimeDifference))
	line("Std Time Difference: %ss", num(ta.StdTimeDifference))
	line("")

	if len(m.Matches) > 0 {
		section(sampleTitle("SAMPLE MATCHING NOTES", len(m.Matches)))
		for i, mr := range first(m.Matches, SamplesShown) {
			line("%d. %s @ %.2fs -> %.2fs (Δ %ss, Δ %sHz)", i+1, mr.Note,
				mr.OriginalTime, mr.ComparisonTime, num(mr.TimeDifference), num(mr.FrequencyDifference))
		}
		line("")
	}

	if len(m.UnmatchedOriginal) > 0 {
		section(sampleTitle("SAMPLE MISSING NOTES", len(m.UnmatchedOriginal)))
		for i, u := range first(m.UnmatchedOriginal, SamplesShown) {
			line("%d. %s @ %.2fs (MISSING in your song)", i+1, u.Note, u.Time)
		}
		line("")
	}

	if len(m.UnmatchedComparison) > 0 {
		section(sampleTitle("SAMPLE EXTRA NOTES", len(m.UnmatchedComparison)))
		for i, u := range first(m.UnmatchedComparison, SamplesShown) {
			line("%d. %s @ %.2fs (EXTRA in your song)", i+1, u.Note, u.Time)
		}
		line("")
	}

	b.WriteString(rule)
	return b.String()
}

// Summary is a one-line digest used by batch output and the TUI.
func Summary(res *compare.Result) string {
	return fmt.Sprintf("%s vs %s: %s%% (%s), %d/%d matched",
		res.OriginalFile, res.ComparisonFile, num(res.OverallScore.Overall), res.OverallScore.Grade,
		res.NoteMatching.MatchCount, res.NoteDistribution.TotalNotesOriginal)
}

func sampleTitle(title string, total int) string {
	shown := total
	if shown > SamplesShown {
		shown = SamplesShown
	}
	return fmt.Sprintf("%s (First %d of %d)", title, shown, total)
}

func first[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}

// num prints a float with the fewest digits that round-trip, always keeping
// one decimal place, e.g. 100 -> "100.0", 0.3 -> "0.3".
func num(x float64) string {
	s := fmt.Sprintf("%g", x)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
