// Package tui provides a terminal user interface for notecompare
package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/james-see/notecompare/pkg/compare"
	"github.com/james-see/notecompare/pkg/midi"
	"github.com/james-see/notecompare/pkg/report"
	"github.com/james-see/notecompare/pkg/song"
)

// Staff-paper color scheme
var (
	inkBlue   = lipgloss.Color("#5FAFFF")
	brass     = lipgloss.Color("#FFD75F")
	paperGray = lipgloss.Color("#C0C0C0")
	darkGray  = lipgloss.Color("#333333")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(inkBlue).
			Background(darkGray).
			Padding(0, 2).
			MarginBottom(1)

	menuStyle = lipgloss.NewStyle().
			Foreground(paperGray).
			PaddingLeft(2)

	selectedStyle = lipgloss.NewStyle().
			Foreground(inkBlue).
			Bold(true).
			PaddingLeft(2)

	statusStyle = lipgloss.NewStyle().
			Foreground(brass).
			PaddingTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(inkBlue).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			MarginTop(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(inkBlue).
			Padding(1, 2)
)

var inputTypes = []string{".json", ".csv", ".f0", ".mid", ".midi"}

// State represents the current TUI state
type State int

const (
	StateMenu State = iota
	StateFilePicker
	StateWorking
	StateResult
)

// Action is what a menu entry does with the picked files.
type Action int

const (
	ActionCompare Action = iota
	ActionAnalyze
	ActionExportMIDI
	ActionExit
)

// MenuItem represents a menu option
type MenuItem struct {
	Title       string
	Description string
	Action      Action
}

var menuItems = []MenuItem{
	{Title: "Compare songs", Description: "Score a performance against an original", Action: ActionCompare},
	{Title: "Analyze pitch track", Description: "Detect notes and save a song analysis", Action: ActionAnalyze},
	{Title: "Export MIDI", Description: "Write detected note segments to a MIDI file", Action: ActionExportMIDI},
	{Title: "Exit", Description: "Exit the application", Action: ActionExit},
}

// Config carries the components the TUI drives.
type Config struct {
	Analyzer   *song.Analyzer
	Comparator *compare.Comparator
	MIDI       *midi.Converter
}

// Model represents the TUI model
type Model struct {
	cfg        Config
	state      State
	menuIndex  int
	filePicker filepicker.Model
	spinner    spinner.Model
	viewport   viewport.Model
	item       MenuItem
	files      []string
	output     string
	err        error
	width      int
	height     int
}

// actionDoneMsg signals completion of the selected action
type actionDoneMsg struct {
	output string
	report string
	err    error
}

// Init initializes the TUI model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick)
}

// New creates a new TUI model. Nil components get defaults.
func New(cfg Config) Model {
	if cfg.Analyzer == nil {
		cfg.Analyzer = song.NewAnalyzer()
	}
	if cfg.Comparator == nil {
		cfg.Comparator, _ = compare.New(compare.WithRequireBothSides(true))
	}
	if cfg.MIDI == nil {
		cfg.MIDI = midi.NewConverter()
	}

	fp := filepicker.New()
	fp.AllowedTypes = inputTypes
	fp.CurrentDirectory, _ = os.Getwd()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(inkBlue)

	return Model{
		cfg:        cfg,
		state:      StateMenu,
		filePicker: fp,
		spinner:    s,
		viewport:   viewport.New(80, 20),
	}
}

// filesNeeded returns how many files the current action picks.
func (m Model) filesNeeded() int {
	if m.item.Action == ActionCompare {
		return 2
	}
	return 1
}

// Update handles TUI updates
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// The file picker needs to receive all messages while it is open
	if m.state == StateFilePicker {
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			switch keyMsg.String() {
			case "esc":
				m.state = StateMenu
				m.files = nil
				return m, nil
			case "q", "ctrl+c":
				return m, tea.Quit
			}
		}

		var cmd tea.Cmd
		m.filePicker, cmd = m.filePicker.Update(msg)

		if didSelect, path := m.filePicker.DidSelectFile(msg); didSelect {
			return m.selectFile(path)
		}
		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.filePicker.SetHeight(msg.Height - 10)
		m.viewport.Width = max(msg.Width-8, 20)
		m.viewport.Height = max(msg.Height-14, 5)
		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case StateMenu:
			return m.updateMenu(msg)
		case StateResult:
			return m.updateResult(msg)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case actionDoneMsg:
		m.state = StateResult
		m.output = msg.output
		m.err = msg.err
		m.viewport.SetContent(msg.report)
		m.viewport.GotoTop()
		return m, nil
	}

	return m, nil
}

// selectFile records a picked file and starts the action once every file
// it needs has been chosen.
func (m Model) selectFile(path string) (tea.Model, tea.Cmd) {
	m.files = append(m.files, path)
	if len(m.files) < m.filesNeeded() {
		return m, m.filePicker.Init()
	}
	m.state = StateWorking
	return m, tea.Batch(m.spinner.Tick, m.runAction())
}

func (m Model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.menuIndex > 0 {
			m.menuIndex--
		}
	case "down", "j":
		if m.menuIndex < len(menuItems)-1 {
			m.menuIndex++
		}
	case "enter":
		m.item = menuItems[m.menuIndex]
		if m.item.Action == ActionExit {
			return m, tea.Quit
		}
		m.state = StateFilePicker
		m.files = nil
		return m, m.filePicker.Init()
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) updateResult(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.state = StateMenu
		m.err = nil
		m.files = nil
		m.output = ""
		m.viewport.SetContent("")
		return m, nil
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) runAction() tea.Cmd {
	cfg, item, files := m.cfg, m.item, append([]string(nil), m.files...)
	return func() tea.Msg {
		switch item.Action {
		case ActionCompare:
			return compareFiles(cfg, files[0], files[1])
		case ActionAnalyze:
			return analyzeFile(cfg, files[0])
		case ActionExportMIDI:
			return exportMIDI(cfg, files[0])
		}
		return actionDoneMsg{err: fmt.Errorf("unknown action %d", item.Action)}
	}
}

func compareFiles(cfg Config, originalPath, comparisonPath string) actionDoneMsg {
	original, err := cfg.Analyzer.Open(originalPath)
	if err != nil {
		return actionDoneMsg{err: err}
	}
	comparison, err := cfg.Analyzer.Open(comparisonPath)
	if err != nil {
		return actionDoneMsg{err: err}
	}
	res, err := cfg.Comparator.Compare(
		original.Song(filepath.Base(originalPath)),
		comparison.Song(filepath.Base(comparisonPath)),
	)
	if err != nil {
		return actionDoneMsg{err: err}
	}
	return actionDoneMsg{report: report.Format(res)}
}

func analyzeFile(cfg Config, path string) actionDoneMsg {
	doc, err := cfg.Analyzer.Open(path)
	if err != nil {
		return actionDoneMsg{err: err}
	}
	output := song.OutputName(path)
	if err := doc.Save(output); err != nil {
		return actionDoneMsg{err: err}
	}
	return actionDoneMsg{output: output, report: describe(doc)}
}

func exportMIDI(cfg Config, path string) actionDoneMsg {
	doc, err := cfg.Analyzer.Open(path)
	if err != nil {
		return actionDoneMsg{err: err}
	}
	output := strings.TrimSuffix(path, filepath.Ext(path)) + ".mid"
	if doc.Metadata.SourceType == song.SourceMIDI {
		output = strings.TrimSuffix(path, filepath.Ext(path)) + "_segments.mid"
	}
	if err := cfg.MIDI.WriteSegmentsFile(doc.Segments, output); err != nil {
		return actionDoneMsg{err: err}
	}
	return actionDoneMsg{output: output, report: describe(doc)}
}

// describe summarizes a document for the result view.
func describe(doc *song.Document) string {
	var s strings.Builder
	st := doc.Statistics
	fmt.Fprintf(&s, "Notes:    %d (%d unique)\n", st.TotalNotes, st.UniqueNotes)
	fmt.Fprintf(&s, "Segments: %d\n", len(doc.Segments))
	if st.OctaveRange != nil {
		fmt.Fprintf(&s, "Octaves:  %d to %d\n", st.OctaveRange.Min, st.OctaveRange.Max)
	}
	if doc.Key != nil && doc.Key.Key != "" {
		fmt.Fprintf(&s, "Key:      %s\n", doc.Key.Key)
	}
	if len(st.MostCommon) > 0 {
		s.WriteString("\nMost common:\n")
		for _, nc := range st.MostCommon {
			fmt.Fprintf(&s, "  %-4s %d\n", nc.Note, nc.Count)
		}
	}
	return s.String()
}

// View renders the TUI
func (m Model) View() string {
	var s strings.Builder

	s.WriteString(logo())
	s.WriteString("\n")

	switch m.state {
	case StateMenu:
		s.WriteString(m.viewMenu())
	case StateFilePicker:
		s.WriteString(m.viewFilePicker())
	case StateWorking:
		s.WriteString(m.viewWorking())
	case StateResult:
		s.WriteString(m.viewResult())
	}

	s.WriteString("\n")
	s.WriteString(helpStyle.Render("↑/↓: navigate • enter: select • q: quit"))

	return s.String()
}

func (m Model) viewMenu() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" SELECT ACTION "))
	s.WriteString("\n\n")

	for i, item := range menuItems {
		if i == m.menuIndex {
			s.WriteString(selectedStyle.Render(fmt.Sprintf("▸ %s", item.Title)))
			s.WriteString("\n")
			s.WriteString(lipgloss.NewStyle().Foreground(brass).PaddingLeft(4).Render(item.Description))
		} else {
			s.WriteString(menuStyle.Render(fmt.Sprintf("  %s", item.Title)))
		}
		s.WriteString("\n")
	}

	return boxStyle.Render(s.String())
}

func (m Model) viewFilePicker() string {
	var s strings.Builder

	title := " SELECT INPUT FILE "
	if m.item.Action == ActionCompare {
		title = " SELECT ORIGINAL "
		if len(m.files) == 1 {
			title = " SELECT PERFORMANCE "
		}
	}
	s.WriteString(titleStyle.Render(title))
	s.WriteString("\n\n")
	if len(m.files) > 0 {
		s.WriteString(statusStyle.Render(fmt.Sprintf("Original: %s", filepath.Base(m.files[0]))))
		s.WriteString("\n")
	}
	s.WriteString(m.filePicker.View())
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("esc: back to menu"))

	return s.String()
}

func (m Model) viewWorking() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" WORKING "))
	s.WriteString("\n\n")
	names := make([]string, len(m.files))
	for i, f := range m.files {
		names[i] = filepath.Base(f)
	}
	fmt.Fprintf(&s, "%s %s...\n", m.spinner.View(), m.item.Title)
	s.WriteString(statusStyle.Render("  " + strings.Join(names, " vs ")))

	return boxStyle.Render(s.String())
}

func (m Model) viewResult() string {
	var s strings.Builder

	if m.err != nil {
		s.WriteString(titleStyle.Render(" ERROR "))
		s.WriteString("\n\n")
		s.WriteString(errorStyle.Render(fmt.Sprintf("✗ %s failed: %s", m.item.Title, m.err.Error())))
	} else {
		s.WriteString(titleStyle.Render(" DONE "))
		s.WriteString("\n\n")
		s.WriteString(successStyle.Render(fmt.Sprintf("✓ %s complete!", m.item.Title)))
		if m.output != "" {
			s.WriteString("\n")
			fmt.Fprintf(&s, "Output: %s", filepath.Base(m.output))
		}
		s.WriteString("\n\n")
		s.WriteString(m.viewport.View())
	}

	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render("↑/↓: scroll • enter: continue"))

	return boxStyle.Render(s.String())
}

func logo() string {
	return lipgloss.NewStyle().Foreground(inkBlue).Bold(true).Render("\n  ♪ notecompare\n")
}

// Run starts the TUI application
func Run(cfg Config) error {
	p := tea.NewProgram(New(cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
