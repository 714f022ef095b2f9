package repo

import (
	"bytes"
	"os/exec"
	"strings"

	"github.com/bartekus/leafsync/internal/syncerr"
)

// CommandExecutor runs external commands for a Tree.
type CommandExecutor interface {
	// ExecuteWithOutput runs cmd and returns its stdout.
	ExecuteWithOutput(cmd *exec.Cmd) (string, error)
}

// ExecExecutor is the default implementation of CommandExecutor
// that delegates to the os/exec package
type ExecExecutor struct{}

// NewExecExecutor creates a new ExecExecutor
func NewExecExecutor() *ExecExecutor {
	return &ExecExecutor{}
}

// ExecuteWithOutput implements CommandExecutor. Failures come back as a
// KindTool error carrying the command's stderr.
func (e *ExecExecutor) ExecuteWithOutput(cmd *exec.Cmd) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.String(), syncerr.Tool(operation(cmd), strings.TrimSpace(stderr.String()), err)
	}
	return stdout.String(), nil
}

// operation names a command by executable and subcommand, e.g. "git push".
func operation(cmd *exec.Cmd) string {
	switch len(cmd.Args) {
	case 0:
		return cmd.Path
	case 1:
		return cmd.Args[0]
	default:
		return cmd.Args[0] + " " + cmd.Args[1]
	}
}
