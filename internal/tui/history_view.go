// Copyright (c) 2026 Quartermaster Team
// Quartermaster - declarative server provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/opsforge/quartermaster/internal/db"
	"github.com/opsforge/quartermaster/internal/i18n"
	"github.com/opsforge/quartermaster/internal/model"
)

// historyViewModel lists all recorded runs. Selecting one drills into its
// step results.
type historyViewModel struct {
	table   table.Model
	runs    []model.RunRecord
	detail  *model.RunRecord
	results []model.StepResult
	showing bool
	err     error
}

func newHistoryViewModel() *historyViewModel {
	m := &historyViewModel{}
	runs, err := db.Default().GetAllRuns()
	if err != nil {
		m.err = err
		return m
	}
	m.runs = runs

	columns := []table.Column{
		{Title: i18n.T("history.header.started"), Width: 20},
		{Title: i18n.T("history.header.plan"), Width: 18},
		{Title: i18n.T("history.header.target"), Width: 20},
		{Title: i18n.T("history.header.status"), Width: 12},
		{Title: i18n.T("history.header.mode"), Width: 8},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(colorSubtle).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(colorWhite).
		Background(colorHighlight).
		Bold(false)
	t.SetStyles(s)

	var rows []table.Row
	for _, run := range runs {
		mode := ""
		if run.DryRun {
			mode = "dry run"
		}
		rows = append(rows, table.Row{
			run.StartedAt.Format("2006-01-02 15:04:05"),
			run.PlanName,
			run.Target,
			stepStatusStyle(string(run.Status)).Render(string(run.Status)),
			mode,
		})
	}
	t.SetRows(rows)

	m.table = t
	return m
}

func (m *historyViewModel) Init() tea.Cmd {
	return nil
}

func (m *historyViewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.table.SetHeight(msg.Height - 6)
		m.table.SetWidth(msg.Width - 4)

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc":
			if m.showing {
				// Back out of the detail view first.
				m.showing = false
				m.detail = nil
				m.results = nil
				return m, nil
			}
			return m, func() tea.Msg { return backToMenuMsg{} }
		case "enter":
			if !m.showing && m.table.Cursor() < len(m.runs) {
				run := m.runs[m.table.Cursor()]
				results, err := db.Default().GetStepResults(run.ID)
				if err != nil {
					m.err = err
					return m, nil
				}
				m.detail = &run
				m.results = results
				m.showing = true
				return m, nil
			}
		}
	}

	if !m.showing {
		m.table, cmd = m.table.Update(msg)
	}
	return m, cmd
}

func (m *historyViewModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error loading run history: %v", m.err))
	}

	if m.showing && m.detail != nil {
		return m.detailView()
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("🕘 "+i18n.T("history.title")) + "\n\n")
	if len(m.runs) == 0 {
		b.WriteString(helpStyle.Render(i18n.T("history.empty")))
		return b.String()
	}
	b.WriteString(m.table.View())
	b.WriteString("\n" + helpStyle.Render(i18n.T("history.help")))
	return b.String()
}

// detailView renders the step results of the selected run.
func (m *historyViewModel) detailView() string {
	run := m.detail

	var b strings.Builder
	b.WriteString(titleStyle.Render("🕘 "+i18n.T("history.detail_title", run.PlanName)) + "\n\n")

	finished := "-"
	if run.FinishedAt != nil {
		finished = run.FinishedAt.Format(time.RFC3339)
	}
	b.WriteString(fmt.Sprintf("%s  %s\n%s → %s\n\n",
		run.ID, stepStatusStyle(string(run.Status)).Render(string(run.Status)),
		run.StartedAt.Format(time.RFC3339), finished))

	var rows []string
	for _, res := range m.results {
		line := fmt.Sprintf("%-34s %-10s %s",
			res.StepName,
			stepStatusStyle(string(res.Status)).Render(string(res.Status)),
			res.Duration.Round(time.Millisecond))
		rows = append(rows, line)
		if res.Error != "" {
			rows = append(rows, errorStyle.Render("    "+res.Error))
		}
	}
	if len(rows) == 0 {
		rows = append(rows, helpStyle.Render(i18n.T("history.no_steps")))
	}
	b.WriteString(paneStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...)))
	b.WriteString("\n" + helpStyle.Render(i18n.T("history.detail_help")))
	return b.String()
}
