package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"go.uber.org/zap"
)

// ExitError is returned when the bootstrap script exits with a non zero code.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("bootstrap script failed with return code %d", e.Code)
}

// ScriptExecutor runs the downloaded bootstrap script. The script carries its own shebang.
type ScriptExecutor struct {
	stdout io.Writer
	stderr io.Writer
}

func NewScriptExecutor(stdout, stderr io.Writer) *ScriptExecutor {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	return &ScriptExecutor{stdout: stdout, stderr: stderr}
}

func (s *ScriptExecutor) Execute(ctx context.Context, path string, env map[string]string) error {
	cmd := exec.CommandContext(ctx, path)
	cmd.Stdout = s.stdout
	cmd.Stderr = s.stderr

	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	zap.S().Infow("executing bootstrap script", "path", path)

	err := cmd.Run()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.As(err, &exitErr):
		return &ExitError{Code: exitErr.ExitCode()}
	default:
		return fmt.Errorf("cannot execute bootstrap script '%w'", err)
	}
}
