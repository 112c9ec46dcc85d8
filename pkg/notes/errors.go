package notes

import "errors"

var (
	// ErrLengthMismatch is returned when times and frequencies differ in length.
	ErrLengthMismatch = errors.New("times and frequencies must have equal length")
	// ErrNonMonotonicTime is returned when a timestamp decreases.
	ErrNonMonotonicTime = errors.New("times must be non-decreasing")
	// ErrUnknownPitchClass is returned for a note name outside NoteNames.
	ErrUnknownPitchClass = errors.New("unknown pitch class")
	// ErrInvalidResolution is returned for a non-positive or infinite piano-roll
	// resolution, or one too fine for the track length.
	ErrInvalidResolution = errors.New("invalid time resolution")
	// ErrUnknownScale is returned for an unsupported scale type.
	ErrUnknownScale = errors.New("unknown scale type")
)
