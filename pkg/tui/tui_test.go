package tui

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/james-see/notecompare/pkg/notes"
	"github.com/james-see/notecompare/pkg/song"
)

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func send(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("Update() returned %T", next)
	}
	return model, cmd
}

func writeAnalysis(t *testing.T, dir, name string, fulls ...string) string {
	t.Helper()
	doc := &song.Document{}
	for i, full := range fulls {
		pc, octave, err := notes.ParseFullNote(full)
		if err != nil {
			t.Fatal(err)
		}
		doc.Notes = append(doc.Notes, notes.NoteEvent{Time: float64(i), Note: pc, Octave: octave, FullNote: full})
		doc.Segments = append(doc.Segments, notes.NoteSegment{
			StartTime: float64(i), EndTime: float64(i) + 0.5, Duration: 0.5,
			Note: pc, Octave: octave, FullNote: full,
		})
	}
	path := filepath.Join(dir, name)
	if err := doc.Save(path); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestMenuNavigation(t *testing.T) {
	m := New(Config{})

	m, _ = send(t, m, key("up"))
	if m.menuIndex != 0 {
		t.Errorf("menuIndex = %d, want 0", m.menuIndex)
	}
	m, _ = send(t, m, key("down"))
	m, _ = send(t, m, key("j"))
	if m.menuIndex != 2 {
		t.Errorf("menuIndex = %d, want 2", m.menuIndex)
	}
	for i := 0; i < 5; i++ {
		m, _ = send(t, m, key("down"))
	}
	if m.menuIndex != len(menuItems)-1 {
		t.Errorf("menuIndex = %d, want %d", m.menuIndex, len(menuItems)-1)
	}

	_, cmd := send(t, m, key("enter"))
	if cmd == nil {
		t.Fatal("Exit should return a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("Exit should quit")
	}
}

func TestCompareFlow(t *testing.T) {
	dir := t.TempDir()
	original := writeAnalysis(t, dir, "original.json", "C4", "E4", "G4")
	performance := writeAnalysis(t, dir, "performance.json", "C4", "E4", "A4")

	m := New(Config{})
	m, _ = send(t, m, key("enter"))
	if m.state != StateFilePicker || m.item.Action != ActionCompare {
		t.Fatalf("state = %v action = %v, want file picker for compare", m.state, m.item.Action)
	}
	if !strings.Contains(m.View(), "SELECT ORIGINAL") {
		t.Error("picker should ask for the original first")
	}

	next, _ := m.selectFile(original)
	m = next.(Model)
	if m.state != StateFilePicker || !strings.Contains(m.View(), "SELECT PERFORMANCE") {
		t.Fatalf("after one file state = %v, want picker for the performance", m.state)
	}

	next, cmd := m.selectFile(performance)
	m = next.(Model)
	if m.state != StateWorking || cmd == nil {
		t.Fatalf("after two files state = %v, want working", m.state)
	}

	done := m.runAction()()
	m, _ = send(t, m, done)
	if m.state != StateResult || m.err != nil {
		t.Fatalf("state = %v err = %v, want result", m.state, m.err)
	}
	if view := m.View(); !strings.Contains(view, "Compare songs complete") {
		t.Errorf("View() = %q", view)
	}
	if !strings.Contains(m.viewport.View(), "SONG COMPARISON REPORT") {
		t.Errorf("report missing from viewport: %q", m.viewport.View())
	}

	m, _ = send(t, m, key("enter"))
	if m.state != StateMenu || m.files != nil {
		t.Errorf("enter should return to the menu, state = %v files = %v", m.state, m.files)
	}
}

func TestAnalyzeAndExport(t *testing.T) {
	dir := t.TempDir()
	trackPath := filepath.Join(dir, "take.csv")
	if err := os.WriteFile(trackPath, []byte("time,frequency\n0,440\n0.1,440\n0.2,440\n0.3,440\n"), 0644); err != nil {
		t.Fatal(err)
	}

	m := New(Config{})
	m, _ = send(t, m, key("down"))
	m, _ = send(t, m, key("enter"))
	next, _ := m.selectFile(trackPath)
	m = next.(Model)
	m, _ = send(t, m, m.runAction()())
	if m.err != nil {
		t.Fatalf("analyze failed: %v", m.err)
	}
	if want := filepath.Join(dir, "take_analysis.json"); m.output != want {
		t.Errorf("output = %q, want %q", m.output, want)
	}
	if _, err := os.Stat(m.output); err != nil {
		t.Errorf("analysis not written: %v", err)
	}

	m, _ = send(t, m, key("esc"))
	m, _ = send(t, m, key("down"))
	m, _ = send(t, m, key("enter"))
	if m.item.Action != ActionExportMIDI {
		t.Fatalf("action = %v, want export", m.item.Action)
	}
	next, _ = m.selectFile(trackPath)
	m = next.(Model)
	m, _ = send(t, m, m.runAction()())
	if m.err != nil {
		t.Fatalf("export failed: %v", m.err)
	}
	if filepath.Ext(m.output) != ".mid" {
		t.Errorf("output = %q, want a .mid file", m.output)
	}
}

func TestActionError(t *testing.T) {
	m := New(Config{})
	m, _ = send(t, m, key("enter"))
	m, _ = send(t, m, key("esc"))
	if m.state != StateMenu {
		t.Fatalf("esc should return to the menu, state = %v", m.state)
	}

	m, _ = send(t, m, actionDoneMsg{err: errors.New("boom")})
	if m.state != StateResult || !strings.Contains(m.View(), "boom") {
		t.Errorf("error result not shown: %q", m.View())
	}
}
