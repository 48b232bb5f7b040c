package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"clipforge/internal/retry"
)

// StageReporter adapts bubbletea message sending to the pipeline's progress
// reporter interface.
type StageReporter struct {
	send func(tea.Msg)
}

// NewStageReporter constructs a reporter around a send function.
func NewStageReporter(send func(tea.Msg)) *StageReporter {
	return &StageReporter{send: send}
}

// StageStart implements pipeline.ProgressReporter.
func (r *StageReporter) StageStart(stage string) {
	r.send(StageUpdateMsg{Stage: stage, Status: StatusRunning})
}

// StageComplete implements pipeline.ProgressReporter.
func (r *StageReporter) StageComplete(stage string, err error) {
	if err != nil {
		r.send(StageUpdateMsg{Stage: stage, Status: StatusFailed, Detail: err.Error()})
		return
	}
	r.send(StageUpdateMsg{Stage: stage, Status: StatusDone})
}

// StageSkipped implements pipeline.ProgressReporter.
func (r *StageReporter) StageSkipped(stage string) {
	r.send(StageUpdateMsg{Stage: stage, Status: StatusSkipped})
}

// RetryScheduled implements pipeline.ProgressReporter.
func (r *StageReporter) RetryScheduled(ev retry.Event) {
	r.send(StageUpdateMsg{
		Stage:  ev.Label,
		Status: StatusRetrying,
		Detail: fmt.Sprintf("attempt %d/%d failed: %s", ev.Attempt, ev.TotalAttempts, ev.Error),
	})
}
