package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const tickInterval = 150 * time.Millisecond

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// tickMsg drives the spinner animation.
type tickMsg time.Time

// stageRow is one pipeline stage in the display.
type stageRow struct {
	Stage  string
	Label  string
	Status string
	Detail string
}

// StageModel is a bubbletea model rendering pipeline stages as they run.
type StageModel struct {
	title    string
	rows     []stageRow
	rowIndex map[string]int
	done     bool
	err      error

	tick int
}

// NewStageModel creates a model with the given title and ordered stage
// names. Labels default to the stage names themselves.
func NewStageModel(title string, stages []string) StageModel {
	rows := make([]stageRow, len(stages))
	rowIndex := make(map[string]int, len(stages))
	for i, stage := range stages {
		rows[i] = stageRow{Stage: stage, Label: stage, Status: StatusPending}
		rowIndex[stage] = i
	}
	return StageModel{
		title:    title,
		rows:     rows,
		rowIndex: rowIndex,
	}
}

func scheduleTick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init satisfies the tea.Model interface.
func (m StageModel) Init() tea.Cmd {
	return scheduleTick()
}

// Update satisfies the tea.Model interface.
func (m StageModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.tick++
		if m.done {
			return m, nil
		}
		return m, scheduleTick()

	case StageUpdateMsg:
		if i, ok := m.rowIndex[msg.Stage]; ok {
			m.rows[i].Status = msg.Status
			m.rows[i].Detail = msg.Detail
		}
		return m, nil

	case WorkDoneMsg:
		m.done = true
		return m, tea.Quit

	case ErrorMsg:
		m.err = msg.Err
		m.done = true
		return m, tea.Quit

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.done = true
			return m, tea.Quit
		}
	}
	return m, nil
}

// View satisfies the tea.Model interface.
func (m StageModel) View() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render(m.title))
	b.WriteString("\n")

	for _, row := range m.rows {
		marker := " "
		switch row.Status {
		case StatusRunning, StatusRetrying:
			marker = spinnerFrames[m.tick%len(spinnerFrames)]
		case StatusDone:
			marker = "✓"
		case StatusFailed:
			marker = "✗"
		case StatusSkipped:
			marker = "-"
		}

		line := fmt.Sprintf("%s %-20s %s", marker, row.Label, StatusStyle(row.Status).Render(row.Status))
		if row.Detail != "" {
			line += "  " + row.Detail
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if m.err != nil {
		b.WriteString(StatusStyle(StatusFailed).Render(fmt.Sprintf("error: %v", m.err)))
		b.WriteString("\n")
	}
	return b.String()
}

// Err reports the fatal error the model quit with, if any.
func (m StageModel) Err() error {
	return m.err
}
