package tui

// StageUpdateMsg moves one pipeline stage to a new display status.
type StageUpdateMsg struct {
	Stage  string
	Status string
	Detail string
}

// WorkDoneMsg signals that the render finished.
type WorkDoneMsg struct{}

// ErrorMsg signals a fatal error; the TUI should quit.
type ErrorMsg struct {
	Err error
}
