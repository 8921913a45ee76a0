// Copyright (c) 2026 Quartermaster Team
// Quartermaster - declarative server provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package runner

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("local runner tests require a POSIX shell")
	}
}

func TestLocalRunnerRun(t *testing.T) {
	skipWithoutShell(t)
	r := NewLocalRunner()

	res, err := r.Run(context.Background(), "echo hello")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
	if !strings.Contains(res.Output, "hello") {
		t.Errorf("Output = %q, want to contain hello", res.Output)
	}
}

func TestLocalRunnerNonZeroExit(t *testing.T) {
	skipWithoutShell(t)
	r := NewLocalRunner()

	// A non-zero exit is a result, not a transport error.
	res, err := r.Run(context.Background(), "exit 3")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
}

func TestLocalRunnerCapturesStderr(t *testing.T) {
	skipWithoutShell(t)
	r := NewLocalRunner()

	res, err := r.Run(context.Background(), "echo oops 1>&2")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !strings.Contains(res.Output, "oops") {
		t.Errorf("Output = %q, want stderr captured", res.Output)
	}
}

func TestLocalRunnerContextTimeout(t *testing.T) {
	skipWithoutShell(t)
	r := NewLocalRunner()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := r.Run(ctx, "sleep 5")
	if err == nil {
		t.Fatal("Run() expected error when the context deadline passes")
	}
}

func TestLocalRunnerUpload(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "sub", "dst.txt")
	if err := os.WriteFile(src, []byte("payload"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		t.Fatal(err)
	}

	r := NewLocalRunner()
	if err := r.Upload(src, dst); err != nil {
		t.Fatalf("Upload() error: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "payload" {
		t.Errorf("uploaded content = %q, want payload", data)
	}
}

func TestLocalRunnerTarget(t *testing.T) {
	r := NewLocalRunner()
	if r.Target() != "local" {
		t.Errorf("Target() = %q, want local", r.Target())
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}

func TestCanonicalizeHostPort(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"example.com", "example.com:22"},
		{"example.com:2222", "example.com:2222"},
	}
	for _, tt := range tests {
		if got := CanonicalizeHostPort(tt.in); got != tt.want {
			t.Errorf("CanonicalizeHostPort(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
