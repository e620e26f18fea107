// Package cli runs commands in the device shell.
package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

const (
	FastCliBinary = "/usr/bin/FastCli"

	// delimiter used to log a command list on a single line
	delimiter = " \\n "
)

var (
	ErrBinaryNotFound = errors.New("cli binary not found")
	ErrCommandFailed  = errors.New("cli command failed")
)

//go:generate mockgen -package=cli -destination=mock_runner.go --build_flags=--mod=mod . Runner
type Runner interface {
	// Run pipes the commands into the device CLI and returns its output.
	Run(ctx context.Context, cmds []string) (string, error)

	// Exec runs a program and returns its exit code. A non zero exit code is not an error.
	Exec(ctx context.Context, name string, args ...string) (int, string, error)
}

type FastCli struct {
	binary string
}

func New(binary string) (*FastCli, error) {
	if binary == "" {
		binary = FastCliBinary
	}

	info, err := os.Stat(binary)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("%w: '%s'", ErrBinaryNotFound, binary)
	}

	return &FastCli{binary: binary}, nil
}

func (f *FastCli) Run(ctx context.Context, cmds []string) (string, error) {
	cmdStr := strings.Join(cmds, delimiter)
	zap.S().Infof("Executing the commands: [%s]", cmdStr)

	cmd := exec.CommandContext(ctx, f.binary)
	cmd.Stdin = strings.NewReader(strings.Join(cmds, "\n") + "\n")

	output, err := cmd.CombinedOutput()
	if err != nil {
		zap.S().Errorw("error running commands", "commands", cmdStr, "output", string(output), "error", err)
		return string(output), fmt.Errorf("%w: [%s]: %s '%s'", ErrCommandFailed, cmdStr, err, strings.TrimSpace(string(output)))
	}

	if err := CheckOutput(string(output)); err != nil {
		zap.S().Errorw("error running commands", "commands", cmdStr, "output", string(output))
		return string(output), fmt.Errorf("[%s]: %w", cmdStr, err)
	}

	return string(output), nil
}

func (f *FastCli) Exec(ctx context.Context, name string, args ...string) (int, string, error) {
	var out bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return 0, out.String(), nil
	case errors.As(err, &exitErr) && ctx.Err() == nil:
		return exitErr.ExitCode(), out.String(), nil
	default:
		return -1, out.String(), fmt.Errorf("cannot run '%s' '%w'", name, err)
	}
}

// CheckOutput returns an error if the cli reported one. The cli exits with zero even when
// a command fails; failures are the output lines starting with '%'.
func CheckOutput(output string) error {
	for _, line := range strings.Split(output, "\n") {
		if strings.HasPrefix(line, "%") {
			return fmt.Errorf("%w: %s", ErrCommandFailed, strings.TrimSpace(line))
		}
	}

	return nil
}
