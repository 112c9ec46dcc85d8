package track

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Format represents an input file format.
type Format string

const (
	FormatJSON    Format = "json"
	FormatCSV     Format = "csv"
	FormatMIDI    Format = "midi"
	FormatUnknown Format = "unknown"
)

// ErrUnsupportedFormat is returned when a file is not a pitch track.
var ErrUnsupportedFormat = errors.New("unsupported pitch track format")

// DetectFormat detects the format of a file based on extension.
func DetectFormat(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		return FormatJSON
	case ".csv", ".f0":
		return FormatCSV
	case ".mid", ".midi":
		return FormatMIDI
	default:
		return FormatUnknown
	}
}

// DetectFormatFromContent detects format from file content.
func DetectFormatFromContent(data []byte) Format {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return FormatUnknown
	}
	if len(trimmed) >= 4 && string(trimmed[:4]) == "MThd" {
		return FormatMIDI
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return FormatJSON
	}
	if bytes.ContainsRune(trimmed, ',') {
		return FormatCSV
	}
	return FormatUnknown
}

// Load reads a pitch track from a JSON or CSV file.
func Load(path string) (*Track, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pitch track: %w", err)
	}
	format := DetectFormat(path)
	if format == FormatUnknown {
		format = DetectFormatFromContent(data)
	}
	t, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return t, nil
}

// Parse decodes and validates a pitch track.
func Parse(data []byte, format Format) (*Track, error) {
	var (
		t   *Track
		err error
	)
	switch format {
	case FormatJSON:
		t, err = ParseJSON(data)
	case FormatCSV:
		t, err = ParseCSV(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// ParseJSON decodes {"times": [...], "frequencies": [...], "confidences": [...]}.
func ParseJSON(data []byte) (*Track, error) {
	var t Track
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse pitch track JSON: %w", err)
	}
	return &t, nil
}

// ParseCSV decodes time,frequency[,confidence] rows as written by CREPE. A
// header row is optional; when present its column names select the fields.
func ParseCSV(r io.Reader) (*Track, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse pitch track CSV: %w", err)
	}

	cols := map[string]int{"time": 0, "frequency": 1, "confidence": 2}
	if len(records) > 0 && !isNumeric(records[0][0]) {
		cols = headerColumns(records[0])
		records = records[1:]
		if _, ok := cols["time"]; !ok {
			return nil, errors.New("pitch track CSV header has no time column")
		}
		if _, ok := cols["frequency"]; !ok {
			return nil, errors.New("pitch track CSV header has no frequency column")
		}
	}

	t := &Track{}
	confIdx, hasConf := cols["confidence"]
	for line, rec := range records {
		tm, err := field(rec, cols["time"])
		if err != nil {
			return nil, fmt.Errorf("row %d: time: %w", line+1, err)
		}
		freq, err := field(rec, cols["frequency"])
		if err != nil {
			return nil, fmt.Errorf("row %d: frequency: %w", line+1, err)
		}
		t.Times = append(t.Times, tm)
		t.Frequencies = append(t.Frequencies, freq)

		if hasConf && confIdx < len(rec) {
			conf, err := field(rec, confIdx)
			if err != nil {
				return nil, fmt.Errorf("row %d: confidence: %w", line+1, err)
			}
			t.Confidences = append(t.Confidences, conf)
		}
	}
	if len(t.Confidences) != 0 && len(t.Confidences) != len(t.Frequencies) {
		return nil, ErrConfidenceLength
	}
	return t, nil
}

func headerColumns(header []string) map[string]int {
	cols := make(map[string]int)
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "time", "times", "t":
			cols["time"] = i
		case "frequency", "frequencies", "freq", "f0", "hz":
			cols["frequency"] = i
		case "confidence", "confidences", "conf":
			cols["confidence"] = i
		}
	}
	return cols
}

func field(rec []string, idx int) (float64, error) {
	if idx >= len(rec) {
		return 0, errors.New("missing column")
	}
	s := strings.TrimSpace(rec[idx])
	if s == "" {
		return 0, errors.New("empty value")
	}
	return strconv.ParseFloat(s, 64)
}

func isNumeric(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}
