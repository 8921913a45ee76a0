// Copyright (c) 2026 Quartermaster Team
// Quartermaster - declarative server provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package logging

import (
	"testing"

	clog "github.com/charmbracelet/log"
)

func TestPackageLoggerIsUsable(t *testing.T) {
	if L == nil {
		t.Fatal("package logger must be constructed at init")
	}
	// Exercise a helper so a broken logger construction fails loudly here.
	Debugf("logger smoke test %d", 1)
}

func TestSetDebugTogglesLevel(t *testing.T) {
	SetDebug(true)
	if L.GetLevel() != clog.DebugLevel {
		t.Errorf("level = %v, want debug", L.GetLevel())
	}
	SetDebug(false)
	if L.GetLevel() != clog.InfoLevel {
		t.Errorf("level = %v, want info", L.GetLevel())
	}
}
