package encoder

import (
	"bytes"
	"context"
	"os/exec"
)

// RunResult carries the captured output of a subprocess.
type RunResult struct {
	Stdout []byte
	Stderr []byte
}

// Runner abstracts subprocess execution so tests can fake the external
// encoder and renderer. Output is always captured; callers that care about
// stderr read it from the result.
type Runner interface {
	Run(ctx context.Context, command string, args []string) (RunResult, error)
}

// CmdRunner executes commands with os/exec.
type CmdRunner struct{}

func (CmdRunner) Run(ctx context.Context, command string, args []string) (RunResult, error) {
	cmd := exec.CommandContext(ctx, command, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return RunResult{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}, err
}

var _ Runner = CmdRunner{}
