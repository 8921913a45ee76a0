// Copyright (c) 2026 Quartermaster Team
// Quartermaster - declarative server provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// LocalRunner executes commands on the local machine through the shell.
type LocalRunner struct {
	// Shell is the shell binary used to interpret commands. Defaults to
	// /bin/sh when empty.
	Shell string
}

// NewLocalRunner returns a LocalRunner using /bin/sh.
func NewLocalRunner() *LocalRunner {
	return &LocalRunner{Shell: "/bin/sh"}
}

// Run executes the command via `sh -c` with the given context. The command's
// exit status is returned in Result; error is reserved for failures to start
// the process or a cancelled context.
func (r *LocalRunner) Run(ctx context.Context, command string) (Result, error) {
	shell := r.Shell
	if shell == "" {
		shell = "/bin/sh"
	}

	cmd := exec.CommandContext(ctx, shell, "-c", command)
	out, err := cmd.CombinedOutput()
	res := Result{Output: string(out)}

	if err != nil {
		// A cancelled or expired context kills the process; report that as
		// the error rather than a synthetic exit status.
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, fmt.Errorf("could not run command: %w", err)
	}
	return res, nil
}

// Upload copies a local file to another local path.
func (r *LocalRunner) Upload(localPath, remotePath string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("could not open %s: %w", localPath, err)
	}
	defer func() { _ = src.Close() }()

	dst, err := os.Create(remotePath)
	if err != nil {
		return fmt.Errorf("could not create %s: %w", remotePath, err)
	}
	defer func() { _ = dst.Close() }()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("could not copy %s to %s: %w", localPath, remotePath, err)
	}
	return nil
}

// Target identifies the local machine.
func (r *LocalRunner) Target() string { return "local" }

// Close is a no-op for local execution.
func (r *LocalRunner) Close() error { return nil }
