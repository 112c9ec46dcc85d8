package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		expected zapcore.Level
		wantErr  bool
	}{
		{"", zapcore.InfoLevel, false},
		{"info", zapcore.InfoLevel, false},
		{"DEBUG", zapcore.DebugLevel, false},
		{"warning", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{" Warn ", zapcore.WarnLevel, false},
		{"dpanic", zapcore.DPanicLevel, false},
		{"loud", zapcore.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lvl, err := ParseLevel(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if lvl != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.name, lvl, tt.expected)
			}
		})
	}
}

func TestNew(t *testing.T) {
	l, err := New("debug", true)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if !l.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug logger should have debug enabled")
	}

	if _, err := New("nope", false); err == nil {
		t.Error("New() with bad level should fail")
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("OrNop(nil) returned nil")
	}
}
