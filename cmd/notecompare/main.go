// Package main is the entry point for notecompare CLI
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/james-see/notecompare/internal/logger"
	"github.com/james-see/notecompare/pkg/api"
	"github.com/james-see/notecompare/pkg/batch"
	"github.com/james-see/notecompare/pkg/compare"
	"github.com/james-see/notecompare/pkg/midi"
	"github.com/james-see/notecompare/pkg/notes"
	"github.com/james-see/notecompare/pkg/report"
	"github.com/james-see/notecompare/pkg/song"
	"github.com/james-see/notecompare/pkg/track"
	"github.com/james-see/notecompare/pkg/tui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	// global flags
	a4          float64
	minDuration float64
	confidence  float64
	logLevel    string
	logDev      bool

	outputFile string
	jsonFile   string
	midiFile   string
	tolerance  float64
	resolution float64
	tempo      float64
	fromEvents bool
	workers    int
	serverPort int

	log = zap.NewNop()
)

func main() {
	defer func() { _ = log.Sync() }()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "notecompare",
	Short: "Detect notes in pitch tracks and score performances against an original",
	Long: `notecompare turns pitch tracks (time, frequency, confidence) into musical
notes and segments, and scores how closely a performance follows an original
by note content, note-by-note matching and timing.

Inputs can be pitch tracks (.json, .csv), saved analyses (.json) or MIDI files.

Examples:
  notecompare analyze take.csv -o take_analysis.json
  notecompare compare original.json my_song.json -t 1.0 -o report.txt
  notecompare batch manifest.json -w 4 -o results.json
  notecompare pianoroll take.csv -r 0.05
  notecompare midi take_analysis.json -o take.mid
  notecompare scale A minor
  notecompare tui
  notecompare serve --port 8080`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logger.New(logLevel, logDev)
		if err != nil {
			return err
		}
		log = l
		return nil
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <input>",
	Short: "Detect notes in a pitch track or MIDI file and save the analysis",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

var compareCmd = &cobra.Command{
	Use:   "compare <original> <comparison>",
	Short: "Compare a performance against an original",
	Args:  cobra.ExactArgs(2),
	RunE:  runCompare,
}

var batchCmd = &cobra.Command{
	Use:   "batch <manifest.json>",
	Short: "Run every comparison listed in a manifest",
	Args:  cobra.ExactArgs(1),
	RunE:  runBatch,
}

var pianorollCmd = &cobra.Command{
	Use:   "pianoroll <track>",
	Short: "Build a piano-roll matrix from a pitch track",
	Args:  cobra.ExactArgs(1),
	RunE:  runPianoRoll,
}

var midiCmd = &cobra.Command{
	Use:   "midi <input>",
	Short: "Export detected notes to a MIDI file",
	Args:  cobra.ExactArgs(1),
	RunE:  runMIDI,
}

var scaleCmd = &cobra.Command{
	Use:   "scale <root> [major|minor|chromatic]",
	Short: "List the notes of a scale with their frequencies in octave 4",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runScale,
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch interactive terminal UI",
	RunE:  runTUI,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE:  runServe,
}

func init() {
	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.Float64Var(&a4, "a4", notes.DefaultA4, "Reference pitch of A4 in Hz")
	pf.Float64Var(&minDuration, "min-duration", notes.DefaultMinDuration, "Shortest note segment kept, in seconds")
	pf.Float64Var(&confidence, "confidence", track.DefaultConfidenceThreshold, "Pitch frames below this confidence are unvoiced")
	pf.StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	pf.BoolVar(&logDev, "log-dev", false, "Human-readable log output")

	// analyze command
	analyzeCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output analysis path (default <input>_analysis.json)")
	analyzeCmd.Flags().StringVar(&midiFile, "midi", "", "Also export segments to this MIDI file")

	// compare command
	compareCmd.Flags().Float64VarP(&tolerance, "tolerance", "t", compare.DefaultTimeTolerance, "Time tolerance in seconds for matching notes")
	compareCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Save text report to file")
	compareCmd.Flags().StringVarP(&jsonFile, "json", "j", "", "Save JSON results to file")

	// batch command
	batchCmd.Flags().IntVarP(&workers, "workers", "w", 0, "Concurrent comparisons (default CPUs-1)")
	batchCmd.Flags().Float64VarP(&tolerance, "tolerance", "t", compare.DefaultTimeTolerance, "Time tolerance unless the manifest sets one")
	batchCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Save JSON outcomes to file")

	// pianoroll command
	pianorollCmd.Flags().Float64VarP(&resolution, "resolution", "r", notes.DefaultPianoRollStep, "Column width in seconds")
	pianorollCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output JSON path (default <input>_pianoroll.json)")

	// midi command
	midiCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output .mid file path")
	midiCmd.Flags().Float64Var(&tempo, "tempo", midi.DefaultTempo, "Tempo in BPM")
	midiCmd.Flags().BoolVar(&fromEvents, "events", false, "Export every detected note instead of segments")

	// serve command
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "Server port")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(pianorollCmd)
	rootCmd.AddCommand(midiCmd)
	rootCmd.AddCommand(scaleCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(serveCmd)
}

func newBuilder() *notes.Builder {
	return notes.NewBuilder(
		notes.WithA4(a4),
		notes.WithMinDuration(minDuration),
		notes.WithLogger(log),
	)
}

func newMIDIConverter() *midi.Converter {
	return midi.NewConverter(
		midi.WithA4(a4),
		midi.WithTempo(tempo),
		midi.WithMinDuration(minDuration),
		midi.WithLogger(log),
	)
}

func newAnalyzer() *song.Analyzer {
	return song.NewAnalyzer(
		song.WithBuilder(newBuilder()),
		song.WithMIDIConverter(newMIDIConverter()),
		song.WithConfidenceThreshold(confidence),
		song.WithLogger(log),
	)
}

func newComparator(tol float64) (*compare.Comparator, error) {
	return compare.New(
		compare.WithTolerance(tol),
		compare.WithRequireBothSides(true),
		compare.WithLogger(log),
	)
}

func getOutputPath(input, suffix string) string {
	if outputFile != "" {
		return outputFile
	}
	base := strings.TrimSuffix(input, filepath.Ext(input))
	return base + suffix
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	input := args[0]
	output := getOutputPath(input, "_analysis.json")

	doc, err := newAnalyzer().Open(input)
	if err != nil {
		return err
	}
	if err := doc.Save(output); err != nil {
		return err
	}

	st := doc.Statistics
	fmt.Printf("Analyzed %s: %d notes (%d unique), %d segments\n",
		input, st.TotalNotes, st.UniqueNotes, len(doc.Segments))
	if doc.Key != nil && doc.Key.Key != "" {
		fmt.Printf("Most likely key: %s\n", doc.Key.Key)
	}
	fmt.Printf("Saved analysis -> %s\n", output)

	if midiFile != "" {
		if err := newMIDIConverter().WriteSegmentsFile(doc.Segments, midiFile); err != nil {
			return err
		}
		fmt.Printf("Saved MIDI -> %s\n", midiFile)
	}
	return nil
}

func runCompare(cmd *cobra.Command, args []string) error {
	originalPath, comparisonPath := args[0], args[1]

	comparator, err := newComparator(tolerance)
	if err != nil {
		return err
	}

	fmt.Println("Starting song comparison...")
	fmt.Printf("   Original: %s\n", originalPath)
	fmt.Printf("   Your song: %s\n", comparisonPath)
	fmt.Printf("   Time tolerance: %gs\n\n", comparator.Tolerance())

	analyzer := newAnalyzer()
	original, err := analyzer.Open(originalPath)
	if err != nil {
		return err
	}
	comparison, err := analyzer.Open(comparisonPath)
	if err != nil {
		return err
	}

	res, err := comparator.Compare(original.Song(originalPath), comparison.Song(comparisonPath))
	if err != nil {
		return fmt.Errorf("error during comparison: %w", err)
	}

	text := report.Format(res)
	fmt.Print(text)

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(text), 0644); err != nil {
			return err
		}
		fmt.Printf("\nText report saved to: %s\n", outputFile)
	}
	if jsonFile != "" {
		if err := writeJSON(jsonFile, res); err != nil {
			return err
		}
		fmt.Printf("JSON results saved to: %s\n", jsonFile)
	}
	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	manifest, err := batch.LoadManifest(args[0])
	if err != nil {
		return err
	}
	tol := tolerance
	if manifest.Tolerance > 0 && !cmd.Flags().Changed("tolerance") {
		tol = manifest.Tolerance
	}
	comparator, err := newComparator(tol)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	runner := batch.NewRunner(newAnalyzer(), comparator,
		batch.WithWorkers(workers),
		batch.WithProgress(os.Stderr),
		batch.WithLogger(log),
	)
	outcomes, err := runner.Run(ctx, manifest.Pairs)
	if err != nil {
		return err
	}

	fmt.Print(batch.Summary(outcomes))
	if outputFile != "" {
		if err := writeJSON(outputFile, outcomes); err != nil {
			return err
		}
		fmt.Printf("JSON outcomes saved to: %s\n", outputFile)
	}
	return nil
}

func runPianoRoll(cmd *cobra.Command, args []string) error {
	input := args[0]
	output := getOutputPath(input, "_pianoroll.json")

	tr, err := track.Load(input)
	if err != nil {
		return err
	}
	gated := tr.Gate(confidence)
	roll, err := newBuilder().PianoRoll(gated.Times, gated.Frequencies, resolution)
	if err != nil {
		return err
	}
	if err := writeJSON(output, roll); err != nil {
		return err
	}

	fmt.Printf("Piano roll %d notes x %d steps -> %s\n", len(roll.Notes), len(roll.Times), output)
	return nil
}

func runMIDI(cmd *cobra.Command, args []string) error {
	input := args[0]
	output := getOutputPath(input, ".mid")
	if output == input {
		return fmt.Errorf("refusing to overwrite %s", input)
	}

	doc, err := newAnalyzer().Open(input)
	if err != nil {
		return err
	}

	conv := newMIDIConverter()
	if fromEvents {
		err = conv.WriteEventsFile(doc.Notes, output)
	} else {
		err = conv.WriteSegmentsFile(doc.Segments, output)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Converted %s -> %s\n", input, output)
	return nil
}

func runScale(cmd *cobra.Command, args []string) error {
	kind := "major"
	if len(args) == 2 {
		kind = strings.ToLower(args[1])
	}
	names, err := notes.ScaleNotes(args[0], kind)
	if err != nil {
		return err
	}

	mapper := notes.NewMapper(a4)
	fmt.Printf("%s %s:\n", args[0], kind)
	for _, name := range names {
		freq, err := mapper.NoteToFrequency(name, 4)
		if err != nil {
			return err
		}
		fmt.Printf("  %-3s %8.2f Hz\n", name, freq)
	}
	return nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	comparator, err := newComparator(compare.DefaultTimeTolerance)
	if err != nil {
		return err
	}
	return tui.Run(tui.Config{
		Analyzer:   newAnalyzer(),
		Comparator: comparator,
		MIDI:       newMIDIConverter(),
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	fmt.Printf("Starting API server on port %d...\n", serverPort)
	s := api.NewServer(api.Defaults{
		A4:                  a4,
		MinDuration:         minDuration,
		ConfidenceThreshold: confidence,
		TimeTolerance:       compare.DefaultTimeTolerance,
	}, log)
	return api.StartServer(serverPort, s)
}
