package tui

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"clipforge/internal/retry"
)

func stages() []string {
	return []string{"render-setup", "segment-render", "segment-concat"}
}

func TestStageModelUpdates(t *testing.T) {
	m := NewStageModel("rendering proj-1", stages())

	updated, _ := m.Update(StageUpdateMsg{Stage: "render-setup", Status: StatusRunning})
	m = updated.(StageModel)
	updated, _ = m.Update(StageUpdateMsg{Stage: "render-setup", Status: StatusDone})
	m = updated.(StageModel)

	view := m.View()
	if !strings.Contains(view, "rendering proj-1") {
		t.Errorf("view missing title:\n%s", view)
	}
	if !strings.Contains(view, "render-setup") || !strings.Contains(view, StatusDone) {
		t.Errorf("view missing stage state:\n%s", view)
	}
	if !strings.Contains(view, StatusPending) {
		t.Errorf("untouched stages should stay pending:\n%s", view)
	}
}

func TestStageModelUnknownStageIgnored(t *testing.T) {
	m := NewStageModel("t", stages())
	updated, _ := m.Update(StageUpdateMsg{Stage: "bogus", Status: StatusDone})
	m = updated.(StageModel)
	if strings.Contains(m.View(), "bogus") {
		t.Error("unknown stage leaked into view")
	}
}

func TestStageModelQuitsOnDoneAndError(t *testing.T) {
	m := NewStageModel("t", stages())

	_, cmd := m.Update(WorkDoneMsg{})
	if cmd == nil {
		t.Error("WorkDoneMsg should produce a quit command")
	}

	updated, cmd := m.Update(ErrorMsg{Err: errors.New("boom")})
	if cmd == nil {
		t.Error("ErrorMsg should produce a quit command")
	}
	if updated.(StageModel).Err() == nil {
		t.Error("error not retained")
	}
}

func TestStageReporter(t *testing.T) {
	var msgs []tea.Msg
	r := NewStageReporter(func(msg tea.Msg) { msgs = append(msgs, msg) })

	r.StageStart("segment-render")
	r.RetryScheduled(retry.Event{Label: "segment-render", Attempt: 1, TotalAttempts: 3, Error: "exit status 1"})
	r.StageComplete("segment-render", nil)
	r.StageSkipped("template-render")
	r.StageComplete("segment-concat", errors.New("boom"))

	want := []StageUpdateMsg{
		{Stage: "segment-render", Status: StatusRunning},
		{Stage: "segment-render", Status: StatusRetrying, Detail: "attempt 1/3 failed: exit status 1"},
		{Stage: "segment-render", Status: StatusDone},
		{Stage: "template-render", Status: StatusSkipped},
		{Stage: "segment-concat", Status: StatusFailed, Detail: "boom"},
	}
	if len(msgs) != len(want) {
		t.Fatalf("got %d messages", len(msgs))
	}
	for i, w := range want {
		got, ok := msgs[i].(StageUpdateMsg)
		if !ok || got != w {
			t.Errorf("msg %d = %+v, want %+v", i, msgs[i], w)
		}
	}
}

func TestDetectMode(t *testing.T) {
	var buf bytes.Buffer

	if got := DetectMode(&buf, false, true); got != ModeJSON {
		t.Errorf("json flag: got %v", got)
	}
	if got := DetectMode(&buf, true, false); got != ModePlain {
		t.Errorf("no-progress flag: got %v", got)
	}
	// A plain buffer is not a terminal.
	if got := DetectMode(&buf, false, false); got != ModePlain {
		t.Errorf("non-file writer: got %v", got)
	}
}
