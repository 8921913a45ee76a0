// Copyright (c) 2026 Quartermaster Team
// Quartermaster - declarative server provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

// package tui provides the terminal user interface for Quartermaster.
// This file, tui.go, is the main entry point for the TUI, containing the
// top-level model that acts as a router to all other sub-views.
package tui // import "github.com/opsforge/quartermaster/internal/tui"

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/viper"

	"github.com/opsforge/quartermaster/internal/db"
	"github.com/opsforge/quartermaster/internal/i18n"
	"github.com/opsforge/quartermaster/internal/logging"
	"github.com/opsforge/quartermaster/internal/model"
)

// viewState represents which part of the UI is currently active.
type viewState int

const (
	// menuView is the main dashboard and navigation menu.
	menuView viewState = iota
	planView
	historyView
	auditLogView
	languageView
)

// dashboardDataMsg is a message containing the data for the main menu dashboard.
type dashboardDataMsg struct {
	data dashboardData
}

// languageChangedMsg is a message to signal that the language has changed and the UI should be re-initialized.
type languageChangedMsg struct{}

// dashboardData holds the summary information for the main menu view.
type dashboardData struct {
	latestRun      *model.RunRecord
	stepsOK        int
	stepsSkipped   int
	stepsFailed    int
	runCount       int
	knownHostCount int
	recentLogs     []model.AuditLogEntry
	err            error
}

// mainModel is the top-level model for the TUI. It acts as a state machine
// and router, delegating updates and view rendering to the currently active sub-model.
type mainModel struct {
	state     viewState
	plan      *model.Plan
	menu      menuModel
	planV     *planViewModel
	history   *historyViewModel
	auditLog  *auditLogModel
	language  languageModel
	dashboard dashboardData
	width     int
	height    int
	err       error
}

// menuModel holds the state for the main menu.
type menuModel struct {
	choices []string // The menu items to show.
	cursor  int      // Which menu item our cursor is pointing at.
}

// languageModel holds the state for the language selection menu.
type languageModel struct {
	choices     map[string]string // map of lang code to display name
	orderedKeys []string          // for stable iteration
	cursor      int
}

// initialModel creates the starting state of the TUI, beginning at the main menu.
func initialModel(p *model.Plan) mainModel {
	return mainModel{
		state: menuView,
		plan:  p,
		menu: menuModel{
			choices: []string{
				i18n.T("menu.view_plan"),
				i18n.T("menu.run_history"),
				i18n.T("menu.view_audit_log"),
				i18n.T("menu.language"),
			},
		},
	}
}

// Init is the first function that will be called by the Bubble Tea runtime.
// It kicks off the initial command to load data for the dashboard.
func (m mainModel) Init() tea.Cmd {
	return refreshDashboardCmd()
}

// Update is the main message loop. It handles all events (like key presses and
// window size changes) and delegates them to the active sub-model.
func (m mainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Global keybindings that work everywhere.
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case dashboardDataMsg:
		m.dashboard = msg.data
		if msg.data.err != nil {
			m.err = msg.data.err
		}
		return m, nil

	case languageChangedMsg:
		// The language has changed. Re-initialize the entire model to apply new translations everywhere.
		newModel := initialModel(m.plan)
		// Preserve the current window dimensions so the layout remains correct.
		newModel.width = m.width
		newModel.height = m.height
		return newModel, newModel.Init()
	}

	// Delegate updates to the currently active view.
	switch m.state {
	case planView:
		if _, ok := msg.(backToMenuMsg); ok {
			m.state = menuView
			return m, refreshDashboardCmd()
		}
		var newPlanModel tea.Model
		newPlanModel, cmd = m.planV.Update(msg)
		m.planV = newPlanModel.(*planViewModel)

	case historyView:
		if _, ok := msg.(backToMenuMsg); ok {
			m.state = menuView
			return m, refreshDashboardCmd()
		}
		var newHistoryModel tea.Model
		newHistoryModel, cmd = m.history.Update(msg)
		m.history = newHistoryModel.(*historyViewModel)

	case auditLogView:
		if _, ok := msg.(backToMenuMsg); ok {
			m.state = menuView
			return m, refreshDashboardCmd()
		}
		var newAuditLogModel tea.Model
		newAuditLogModel, cmd = m.auditLog.Update(msg)
		m.auditLog = newAuditLogModel.(*auditLogModel)

	case languageView:
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			switch keyMsg.String() {
			case "q", "esc":
				m.state = menuView
				return m, refreshDashboardCmd()
			case "up", "k":
				if m.language.cursor > 0 {
					m.language.cursor--
				}
			case "down", "j":
				if m.language.cursor < len(m.language.orderedKeys)-1 {
					m.language.cursor++
				}
			case "enter":
				langCode := m.language.orderedKeys[m.language.cursor]
				i18n.SetLang(langCode)
				viper.Set("language", langCode)
				if err := configSaver.Save(); err != nil {
					m.err = fmt.Errorf("failed to save config: %w", err)
				}

				// Signal that the language has changed so the entire UI can be re-initialized.
				return m, func() tea.Msg { return languageChangedMsg{} }
			}
		}

	default: // menuView
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			switch keyMsg.String() {
			case "q":
				return m, tea.Quit
			case "up", "k":
				if m.menu.cursor > 0 {
					m.menu.cursor--
				}
			case "down", "j":
				if m.menu.cursor < len(m.menu.choices)-1 {
					m.menu.cursor++
				}
			case "enter":
				switch m.menu.cursor {
				case 0: // View Plan
					m.state = planView
					m.planV = newPlanViewModel(m.plan)
					var updatedModel tea.Model
					updatedModel, cmd = m.planV.Update(tea.WindowSizeMsg{Width: m.width, Height: m.height})
					m.planV = updatedModel.(*planViewModel)
					return m, tea.Batch(cmd, m.planV.Init())
				case 1: // Run History
					m.state = historyView
					m.history = newHistoryViewModel()
					var updatedModel tea.Model
					updatedModel, cmd = m.history.Update(tea.WindowSizeMsg{Width: m.width, Height: m.height})
					m.history = updatedModel.(*historyViewModel)
					return m, tea.Batch(cmd, m.history.Init())
				case 2: // View Audit Log
					m.state = auditLogView
					m.auditLog = newAuditLogModel()
					var updatedModel tea.Model
					updatedModel, cmd = m.auditLog.Update(tea.WindowSizeMsg{Width: m.width, Height: m.height})
					m.auditLog = updatedModel.(*auditLogModel)
					return m, tea.Batch(cmd, m.auditLog.Init())
				case 3: // Language
					m.state = languageView
					m.language = newLanguageModel()
					return m, nil
				}
			case "L":
				// "L" opens the language menu from anywhere on the dashboard
				m.state = languageView
				m.language = newLanguageModel()
				return m, nil
			}
		}
	}

	return m, cmd
}

// View renders the TUI. It's called after every Update and delegates rendering
// to the currently active sub-model.
func (m mainModel) View() string {
	if m.err != nil {
		// A simple error view
		errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(1, 2)
		return errStyle.Render(fmt.Sprintf("An error occurred: %v", m.err))
	}

	// Delegate rendering to the currently active view.
	switch m.state {
	case planView:
		return m.planV.View()
	case historyView:
		return m.history.View()
	case auditLogView:
		return m.auditLog.View()
	case languageView:
		return m.language.View()
	default: // menuView
		return m.menu.View(m.dashboard, m.width, m.height)
	}
}

// formatLabelPadding formats a label/value pair with the value column aligned.
func formatLabelPadding(label, value string, labelWidth int) string {
	if labelWidth <= 0 || len(label) >= labelWidth {
		return label + " " + value
	}
	return label + strings.Repeat(" ", labelWidth-len(label)) + " " + value
}

// View renders the main menu and dashboard.
func (m menuModel) View(data dashboardData, width, height int) string {
	// Title (i18n)
	title := mainTitleStyle.Render("⚓ " + i18n.T("dashboard.title"))
	subTitle := helpStyle.Render(i18n.T("dashboard.subtitle"))
	header := lipgloss.JoinVertical(lipgloss.Left, title, subTitle)

	paneTitleStyle := lipgloss.NewStyle().Bold(true)

	// Menu List (Left Pane)
	var menuItems []string
	menuItems = append(menuItems, paneTitleStyle.Render(i18n.T("menu.navigation")), "")
	for i, choice := range m.choices {
		if m.cursor == i {
			menuItems = append(menuItems, selectedItemStyle.Render("▸ "+choice))
		} else {
			menuItems = append(menuItems, itemStyle.Render("  "+choice))
		}
	}
	menuContent := lipgloss.JoinVertical(lipgloss.Left, menuItems...)

	// Dashboard (Right Pane)
	var dashboardItems []string
	dashboardItems = append(dashboardItems, paneTitleStyle.Render(i18n.T("dashboard.latest_run")), "")

	if data.latestRun == nil {
		dashboardItems = append(dashboardItems, helpStyle.Render(i18n.T("dashboard.no_runs")))
	} else {
		run := data.latestRun
		statusLine := stepStatusStyle(string(run.Status)).Render(string(run.Status))
		statusItems := []struct {
			label string
			value string
		}{
			{i18n.T("dashboard.run_plan"), run.PlanName},
			{i18n.T("dashboard.run_target"), run.Target},
			{i18n.T("dashboard.run_status"), statusLine},
			{i18n.T("dashboard.run_started"), run.StartedAt.Format(time.RFC3339)},
			{i18n.T("dashboard.run_steps"), fmt.Sprintf("%d ok, %d skipped, %d failed", data.stepsOK, data.stepsSkipped, data.stepsFailed)},
		}

		maxLabelLen := 0
		for _, item := range statusItems {
			if len(item.label) > maxLabelLen {
				maxLabelLen = len(item.label)
			}
		}
		for _, item := range statusItems {
			dashboardItems = append(dashboardItems, formatLabelPadding(item.label, item.value, maxLabelLen))
		}
	}

	// Journal summary
	dashboardItems = append(dashboardItems, "", "", paneTitleStyle.Render(i18n.T("dashboard.journal")), "")
	dashboardItems = append(dashboardItems,
		i18n.T("dashboard.run_count", data.runCount),
		i18n.T("dashboard.known_hosts", data.knownHostCount),
	)

	// Recent Activity
	dashboardItems = append(dashboardItems, "", "", paneTitleStyle.Render(i18n.T("dashboard.recent_activity")), "")

	headerHeight := lipgloss.Height(header)
	footerHeight := 1
	paneHeight := height - headerHeight - footerHeight - 2

	menuWidth := 34
	dashboardWidth := width - 4 - menuWidth - 2

	if len(data.recentLogs) == 0 {
		dashboardItems = append(dashboardItems, helpStyle.Render(i18n.T("dashboard.no_recent_activity")))
	} else {
		for _, entry := range data.recentLogs {
			ts := entry.Timestamp
			if len(ts) >= 16 {
				ts = ts[5:16] // MM-DD HH:MM
			}
			details := entry.Details
			detailsWidth := dashboardWidth - 6 - len(ts) - len(entry.Action) - 2
			if detailsWidth < 10 {
				detailsWidth = 10
			}
			if len(details) > detailsWidth {
				details = details[:detailsWidth-3] + "..."
			}
			logLine := lipgloss.JoinHorizontal(lipgloss.Left,
				helpStyle.Render(ts), " ", auditActionStyle(entry.Action).Render(entry.Action), " ", helpStyle.Render(details))
			dashboardItems = append(dashboardItems, logLine)
		}
	}
	dashboardContent := lipgloss.JoinVertical(lipgloss.Left, dashboardItems...)

	leftPane := paneStyle.Width(menuWidth).Height(paneHeight).Render(menuContent)
	rightPane := paneStyle.Width(dashboardWidth).Height(paneHeight).MarginLeft(2).Render(dashboardContent)

	mainArea := lipgloss.JoinHorizontal(lipgloss.Top, leftPane, rightPane)

	footer := footerStyle.Render(alignFooter(i18n.T("dashboard.footer"), "", width))

	return lipgloss.JoinVertical(lipgloss.Top, header, mainArea, footer)
}

// alignFooter lays out a left and right token across the given width.
func alignFooter(left, right string, width int) string {
	pad := width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if pad < 1 {
		return left + " " + right
	}
	return left + strings.Repeat(" ", pad) + right
}

// newLanguageModel creates a new model for the language selection view.
func newLanguageModel() languageModel {
	// Get the dynamically discovered locales from the i18n package.
	choices := i18n.GetAvailableLocales()

	// Create a sorted list of keys for stable iteration and display order.
	keys := make([]string, 0, len(choices))
	for k := range choices {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return languageModel{
		choices:     choices,
		orderedKeys: keys,
		cursor:      0,
	}
}

// Init for languageModel.
func (m languageModel) Init() tea.Cmd { return nil }

// Update for languageModel.
func (m languageModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) { return m, nil }

// View for languageModel.
func (m languageModel) View() string {
	title := mainTitleStyle.Render("🌐 " + i18n.T("menu.language"))

	var listItems []string
	listItems = append(listItems, titleStyle.Render(i18n.T("language.select")), "")

	for i, langCode := range m.orderedKeys {
		displayName := m.choices[langCode]
		if m.cursor == i {
			listItems = append(listItems, selectedItemStyle.Render("▸ "+displayName))
		} else {
			listItems = append(listItems, itemStyle.Render("  "+displayName))
		}
	}

	listPane := paneStyle.Width(60).Render(lipgloss.JoinVertical(lipgloss.Left, listItems...))
	helpLine := footerStyle.Render(alignFooter(i18n.T("language.help"), "", 60))

	return lipgloss.JoinVertical(lipgloss.Left, title, "", listPane, "", helpLine)
}

// configSaver abstracts persisting the active viper configuration so tests
// can swap in a no-op.
type configPersister interface {
	Save() error
}

type viperConfigSaver struct{}

func (viperConfigSaver) Save() error { return viper.WriteConfig() }

var configSaver configPersister = viperConfigSaver{}

// Run is the main entrypoint for the TUI. It initializes and runs the Bubble
// Tea program with the active plan.
func Run(p *model.Plan) {
	if _, err := tea.NewProgram(initialModel(p), tea.WithAltScreen()).Run(); err != nil {
		logging.Errorf("TUI run error: %v", err)
		os.Exit(1)
	}
}

// refreshDashboardCmd is a tea.Cmd that fetches summary data for the main menu.
func refreshDashboardCmd() tea.Cmd {
	return func() tea.Msg {
		var data dashboardData
		st := db.Default()
		if st == nil {
			return dashboardDataMsg{data: data}
		}

		run, err := st.GetLatestRun()
		if err != nil {
			return dashboardDataMsg{data: dashboardData{err: err}}
		}
		data.latestRun = run

		if run != nil {
			results, err := st.GetStepResults(run.ID)
			if err != nil {
				return dashboardDataMsg{data: dashboardData{err: err}}
			}
			for _, res := range results {
				switch res.Status {
				case model.StatusOK:
					data.stepsOK++
				case model.StatusSkipped:
					data.stepsSkipped++
				case model.StatusFailed:
					data.stepsFailed++
				}
			}
		}

		runs, err := st.GetAllRuns()
		if err == nil {
			data.runCount = len(runs)
		}
		hosts, err := st.GetAllKnownHosts()
		if err == nil {
			data.knownHostCount = len(hosts)
		}

		entries, err := st.GetAllAuditLogEntries()
		if err == nil {
			// Entries come back newest first; cap for the dashboard pane.
			if len(entries) > 5 {
				entries = entries[:5]
			}
			data.recentLogs = entries
		}

		return dashboardDataMsg{data: data}
	}
}
