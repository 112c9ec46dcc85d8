package compare

import "errors"

var (
	// ErrNoNotes is returned when a comparison has nothing to compare.
	ErrNoNotes = errors.New("both songs must have notes")
	// ErrInvalidNote is returned for an event whose identity fields are missing or inconsistent.
	ErrInvalidNote = errors.New("invalid note event")
	// ErrInvalidTolerance is returned for a time tolerance that is not a positive finite number.
	ErrInvalidTolerance = errors.New("time tolerance must be positive and finite")
)
