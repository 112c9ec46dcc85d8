// Package compare aligns two note sequences and scores how closely a
// performance follows a reference.
package compare

import "github.com/james-see/notecompare/pkg/notes"

// Song is a named note sequence taking part in a comparison.
type Song struct {
	Name  string
	Notes []notes.NoteEvent
}

// Distribution compares which notes two songs use, ignoring timing.
type Distribution struct {
	SimilarityPercentage   float64        `json:"similarity_percentage"`
	TotalNotesOriginal     int            `json:"total_notes_original"`
	TotalNotesComparison   int            `json:"total_notes_comparison"`
	CommonNotes            []string       `json:"common_notes"`
	CommonNotesCount       int            `json:"common_notes_count"`
	NotesOnlyInOriginal    []string       `json:"notes_only_in_original"`
	NotesOnlyInComparison  []string       `json:"notes_only_in_comparison"`
	DistributionOriginal   map[string]int `json:"note_distribution_original"`
	DistributionComparison map[string]int `json:"note_distribution_comparison"`
}

// MatchRecord pairs one original note with the comparison note it matched.
type MatchRecord struct {
	Note                string  `json:"note"`
	OriginalTime        float64 `json:"original_time"`
	ComparisonTime      float64 `json:"comparison_time"`
	TimeDifference      float64 `json:"time_difference"`
	OriginalFrequency   float64 `json:"original_frequency"`
	ComparisonFrequency float64 `json:"comparison_frequency"`
	FrequencyDifference float64 `json:"frequency_difference_hz"`
	OriginalIndex       int     `json:"original_index"`
	ComparisonIndex     int     `json:"comparison_index"`
}

// UnmatchedNote is a note left without a partner on either side.
type UnmatchedNote struct {
	Note      string  `json:"note"`
	Time      float64 `json:"time"`
	Frequency float64 `json:"frequency"`
	Index     int     `json:"index"`
}

// Matching is the outcome of temporal note matching.
type Matching struct {
	Matches                  []MatchRecord   `json:"matching_notes"`
	MatchCount               int             `json:"matching_notes_count"`
	MatchPercentage          float64         `json:"match_percentage"`
	UnmatchedOriginal        []UnmatchedNote `json:"unmatched_in_original"`
	UnmatchedComparison      []UnmatchedNote `json:"unmatched_in_comparison"`
	UnmatchedOriginalCount   int             `json:"unmatched_original_count"`
	UnmatchedComparisonCount int             `json:"unmatched_comparison_count"`
}

// TimingAnalysis summarizes the time differences of matched notes.
type TimingAnalysis struct {
	AverageTimeDifference float64 `json:"average_time_difference"`
	MaxTimeDifference     float64 `json:"max_time_difference"`
	MinTimeDifference     float64 `json:"min_time_difference"`
	StdTimeDifference     float64 `json:"std_time_difference"`
	TimingAccuracy        float64 `json:"timing_accuracy_percentage"`
}

// Score is the weighted overall similarity with its grade.
type Score struct {
	Overall        float64 `json:"overall_similarity_score"`
	NoteSimilarity float64 `json:"note_similarity_score"`
	NoteMatching   float64 `json:"note_matching_score"`
	TimingAccuracy float64 `json:"timing_accuracy_score"`
	Grade          string  `json:"grade"`
	GradeLabel     string  `json:"grade_label"`
}

// Result is the complete comparison of two songs.
type Result struct {
	ID               string         `json:"id,omitempty"`
	OriginalFile     string         `json:"original_file"`
	ComparisonFile   string         `json:"comparison_file"`
	TimeTolerance    float64        `json:"time_tolerance"`
	NoteDistribution Distribution   `json:"note_distribution"`
	NoteMatching     Matching       `json:"note_matching"`
	TimingAnalysis   TimingAnalysis `json:"timing_analysis"`
	OverallScore     Score          `json:"overall_score"`
}
