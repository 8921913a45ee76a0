// Copyright (c) 2026 Quartermaster Team
// Quartermaster - declarative server provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package model

import "testing"

func TestStepString(t *testing.T) {
	tests := []struct {
		name string
		step Step
		want string
	}{
		{"with phase", Step{Name: "install-proxy-client", Phase: "proxy"}, "proxy/install-proxy-client"},
		{"without phase", Step{Name: "update-package-index"}, "update-package-index"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.step.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPlanStepByName(t *testing.T) {
	p := &Plan{
		Name: "test",
		Steps: []Step{
			{Name: "first"},
			{Name: "second", Phase: "mid"},
		},
	}

	if got := p.StepByName("second"); got == nil || got.Phase != "mid" {
		t.Errorf("StepByName(second) = %+v, want step with phase 'mid'", got)
	}
	if got := p.StepByName("missing"); got != nil {
		t.Errorf("StepByName(missing) = %+v, want nil", got)
	}

	// Returned pointer must alias the plan so callers can mutate in place.
	p.StepByName("first").Phase = "changed"
	if p.Steps[0].Phase != "changed" {
		t.Error("StepByName should return a pointer into the plan's steps")
	}
}
