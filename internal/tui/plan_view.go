// Copyright (c) 2026 Quartermaster Team
// Quartermaster - declarative server provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package tui

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/opsforge/quartermaster/internal/db"
	"github.com/opsforge/quartermaster/internal/i18n"
	"github.com/opsforge/quartermaster/internal/model"
	"github.com/opsforge/quartermaster/internal/provision"
)

// planStepsLoadedMsg carries the latest run's step outcomes into the plan view.
type planStepsLoadedMsg struct {
	statuses map[string]model.StepStatus
	err      error
}

// clipboardCopiedMsg confirms that a rendered command landed on the clipboard.
type clipboardCopiedMsg struct {
	stepName string
	err      error
}

// planViewModel shows the active plan's steps, annotated with the outcomes
// of the most recent run. Selecting a step previews its rendered command and
// 'c' copies it to the clipboard.
type planViewModel struct {
	plan     *model.Plan
	cursor   int
	statuses map[string]model.StepStatus
	status   string
	width    int
	height   int
	err      error
}

func newPlanViewModel(p *model.Plan) *planViewModel {
	return &planViewModel{plan: p, statuses: map[string]model.StepStatus{}}
}

func (m *planViewModel) Init() tea.Cmd {
	return loadPlanStepsCmd()
}

// loadPlanStepsCmd fetches the latest run's step results so each plan step
// can show its last-known outcome.
func loadPlanStepsCmd() tea.Cmd {
	return func() tea.Msg {
		st := db.Default()
		if st == nil {
			return planStepsLoadedMsg{statuses: map[string]model.StepStatus{}}
		}
		run, err := st.GetLatestRun()
		if err != nil {
			return planStepsLoadedMsg{err: err}
		}
		statuses := map[string]model.StepStatus{}
		if run != nil {
			results, err := st.GetStepResults(run.ID)
			if err != nil {
				return planStepsLoadedMsg{err: err}
			}
			for _, res := range results {
				statuses[res.StepName] = res.Status
			}
		}
		return planStepsLoadedMsg{statuses: statuses}
	}
}

func (m *planViewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case planStepsLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.statuses = msg.statuses

	case clipboardCopiedMsg:
		if msg.err != nil {
			m.status = errorStyle.Render(i18n.T("plan_view.copy_failed", msg.err))
		} else {
			m.status = statusMessageStyle.Render(i18n.T("plan_view.copied", msg.stepName))
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc":
			return m, func() tea.Msg { return backToMenuMsg{} }
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
			m.status = ""
		case "down", "j":
			if m.cursor < len(m.plan.Steps)-1 {
				m.cursor++
			}
			m.status = ""
		case "c":
			step := m.plan.Steps[m.cursor]
			command, err := provision.RenderCommand(m.plan, step)
			if err == nil {
				err = clipboard.WriteAll(command)
			}
			name := step.Name
			return m, func() tea.Msg { return clipboardCopiedMsg{stepName: name, err: err} }
		}
	}

	return m, nil
}

func (m *planViewModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error loading plan view: %v", m.err))
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("📋 "+i18n.T("plan_view.title", m.plan.Name)) + "\n\n")

	var rows []string
	currentPhase := ""
	for i, step := range m.plan.Steps {
		if step.Phase != currentPhase {
			currentPhase = step.Phase
			if i > 0 {
				rows = append(rows, "")
			}
			rows = append(rows, lipgloss.NewStyle().Bold(true).Render(currentPhase))
		}

		status := string(model.StatusPending)
		if s, ok := m.statuses[step.Name]; ok {
			status = string(s)
		}
		line := fmt.Sprintf("%-34s %s", step.Name, stepStatusStyle(status).Render(status))
		if m.cursor == i {
			rows = append(rows, selectedItemStyle.Render("▸ "+line))
		} else {
			rows = append(rows, itemStyle.Render("  "+line))
		}
	}
	b.WriteString(paneStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...)))

	// Preview of the selected step's rendered command.
	if m.cursor < len(m.plan.Steps) {
		command, err := provision.RenderCommand(m.plan, m.plan.Steps[m.cursor])
		if err != nil {
			command = err.Error()
		}
		b.WriteString("\n" + helpStyle.Render(i18n.T("plan_view.preview")) + "\n")
		b.WriteString(paneStyle.Render(command))
	}

	if m.status != "" {
		b.WriteString("\n" + m.status)
	}
	b.WriteString("\n" + helpStyle.Render(i18n.T("plan_view.help")))
	return b.String()
}
