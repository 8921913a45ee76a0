// Copyright (c) 2026 Quartermaster Team
// Quartermaster - declarative server provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

// package runner abstracts where provisioning commands execute. The engine
// only speaks to the Runner interface; LocalRunner runs commands on this
// machine and SSHRunner runs them on a remote host.
package runner

import "context"

// Result is the outcome of one executed command.
type Result struct {
	// Output is the combined stdout and stderr of the command.
	Output string
	// ExitCode is the command's exit status. Zero means success.
	ExitCode int
}

// Runner executes shell commands on a provisioning target.
type Runner interface {
	// Run executes the command through the target's shell and returns its
	// combined output and exit status. A non-zero exit status is reported
	// via Result, not via error; error means the command could not be run
	// at all (transport failure, context cancelled).
	Run(ctx context.Context, command string) (Result, error)

	// Upload copies a local file to the target. Local runners may simply
	// copy; remote runners transfer the file.
	Upload(localPath, remotePath string) error

	// Target describes the runner's destination for journaling ("local" or
	// user@host).
	Target() string

	// Close releases any transport resources.
	Close() error
}
