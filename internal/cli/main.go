// Copyright (c) 2026 Quartermaster Team
// Quartermaster - declarative server provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

// main.go sets up the command-line interface (CLI) for the Quartermaster
// application using the Cobra library. It defines the root command,
// subcommands (like apply, status, trust-host), flags, and the main entry
// point for execution.

package cli

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"runtime/debug"
	"strings"
	"time"

	log "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/ssh"
	"golang.org/x/term"

	"github.com/opsforge/quartermaster/internal/config"
	"github.com/opsforge/quartermaster/internal/db"
	"github.com/opsforge/quartermaster/internal/i18n"
	"github.com/opsforge/quartermaster/internal/logging"
	"github.com/opsforge/quartermaster/internal/model"
	"github.com/opsforge/quartermaster/internal/plan"
	"github.com/opsforge/quartermaster/internal/provision"
	"github.com/opsforge/quartermaster/internal/runner"
	"github.com/opsforge/quartermaster/internal/state"
	"github.com/opsforge/quartermaster/internal/tui"
)

var version = "dev"   // this will be set by the linker
var gitCommit = "dev" // set at build time with the short commit SHA
var buildDate = ""    // set at build time (RFC3339)

var cfgFile string
var verbose bool
var showVersionFlag bool

var dryRun bool
var fromStep string
var dbPassword string
var identityFile string
var fullRestore bool

var appConfig config.Config

// setupDefaultServices loads configuration, initializes i18n, and opens the
// journal database. It runs as PreRunE for every command that needs services.
func setupDefaultServices(cmd *cobra.Command, args []string) error {
	optionalConfigPath, err := getConfigPathFromCli(cmd)
	if err != nil {
		return err
	}

	defaults := map[string]any{
		"database.type":          "sqlite",
		"database.dsn":           "./quartermaster.db",
		"language":               "en",
		"provision.target":       "local",
		"provision.proxy_client": "warp-cli",
		"provision.database_dsn": "postgres://postgres@localhost:5432/postgres",
	}

	appConfig, err = config.LoadConfig[config.Config](cmd, defaults, optionalConfigPath)
	// A "file not found" error is expected on first run; create a default
	// config so subsequent runs have a persisted file to inspect.
	if errors.As(err, &viper.ConfigFileNotFoundError{}) {
		if writeErr := config.WriteConfigFile(&appConfig, false); writeErr != nil {
			log.Warnf("Warning: could not write default config file: %v", writeErr)
		}
	} else if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	// Post-process config to ensure critical values are not empty, falling
	// back to defaults. This handles config files with empty values.
	if appConfig.Database.Type == "" {
		appConfig.Database.Type = defaults["database.type"].(string)
	}
	if appConfig.Database.Dsn == "" {
		appConfig.Database.Dsn = defaults["database.dsn"].(string)
	}
	if appConfig.Language == "" {
		appConfig.Language = defaults["language"].(string)
	}
	if appConfig.Provision.Target == "" {
		appConfig.Provision.Target = defaults["provision.target"].(string)
	}
	if appConfig.Provision.ProxyClient == "" {
		appConfig.Provision.ProxyClient = defaults["provision.proxy_client"].(string)
	}
	if appConfig.Provision.DatabaseDSN == "" {
		appConfig.Provision.DatabaseDSN = defaults["provision.database_dsn"].(string)
	}

	i18n.Init(appConfig.Language)

	if !db.IsInitialized() {
		if _, err := db.New(appConfig.Database.Type, appConfig.Database.Dsn); err != nil {
			return errors.New(i18n.T("config.error_init_db", err))
		}
	}

	return nil
}

// Execute runs the CLI entrypoint. The main package should call this
// function and handle process exit.
func Execute() error {
	rootCmd := NewRootCmd()
	return rootCmd.Execute()
}

func getConfigPathFromCli(cmd *cobra.Command) (*string, error) {
	// Only proceed if the user has explicitly set the --config flag.
	if cmd.Flags().Changed("config") {
		path, err := cmd.Flags().GetString("config")
		if err != nil {
			return nil, fmt.Errorf("could not read --config flag: %w", err)
		}
		if path == "" {
			return nil, nil
		}
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file specified via --config flag not found or is not accessible: %w", err)
		}
		return &path, nil
	}
	return nil, nil
}

// applyDefaultFlags registers the shared database flags on a command unless
// they already exist. pflag panics on duplicate definitions, so check first.
func applyDefaultFlags(cmd *cobra.Command) {
	if cmd.Flags().Lookup("database.type") == nil {
		cmd.Flags().String("database.type", "sqlite", "Journal database type (e.g., sqlite, postgres)")
	}
	if cmd.Flags().Lookup("database.dsn") == nil {
		cmd.Flags().String("database.dsn", "./quartermaster.db", "Journal database connection string (DSN)")
	}
}

// NewRootCmd creates and configures a new root cobra command. This function
// is used to create the main application command as well as fresh instances
// for isolated testing.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quartermaster",
		Short: "Quartermaster is a declarative, idempotent server provisioning tool.",
		Long: `Quartermaster turns a hand-typed server bootstrap into a repeatable plan.
A plan describes the whole sequence - package index refresh, proxying VPN
client setup, cache and database servers, database bootstrap, interpreter
and virtual environment, native libraries, the dependency manifest, and the
final launch inside a persistent terminal session. Each step carries an
idempotency probe, every run is journaled, and a run can resume from any
step.

Running without a subcommand will launch the interactive TUI.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if showVersionFlag {
				fmt.Printf("%s\n", compositeVersion())
				os.Exit(0)
			}
			if verbose {
				db.SetDebug(true)
				logging.SetDebug(true)
			}
			return setupDefaultServices(cmd, args)
		},
		Run: func(cmd *cobra.Command, args []string) {
			// The journal database and i18n are already initialized by
			// PersistentPreRunE, so we can just run the TUI.
			tui.Run(activePlan())
		},
	}

	cmd.Version = compositeVersion()

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output (sets -v for DB logs)")
	cmd.PersistentFlags().BoolVarP(&showVersionFlag, "version", "V", false, "Print version and exit")
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file")
	cmd.PersistentFlags().String("language", "en", `UI language ("en", "de")`)
	applyDefaultFlags(cmd)

	applyDefaultFlags(applyCmd)
	if applyCmd.Flags().Lookup("dry-run") == nil {
		applyCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Render steps without executing anything")
		applyCmd.Flags().StringVar(&fromStep, "from-step", "", "Resume the plan from the named step")
		applyCmd.Flags().StringVarP(&dbPassword, "db-password", "p", "", "Superuser password for the provisioned database")
		applyCmd.Flags().StringVarP(&identityFile, "identity", "i", "", "Private key file for SSH targets")
		applyCmd.Flags().String("plan", "", "Path of a YAML plan file (defaults to the built-in plan)")
		applyCmd.Flags().String("target", "", `Provisioning target: "local" or user@host`)
	}

	applyDefaultFlags(planCmd)
	applyDefaultFlags(statusCmd)
	applyDefaultFlags(historyCmd)
	applyDefaultFlags(auditLogCmd)
	applyDefaultFlags(trustHostCmd)
	applyDefaultFlags(dbMaintainCmd)
	if dbMaintainCmd.Flags().Lookup("timeout") == nil {
		dbMaintainCmd.Flags().Int("timeout", 0, "Timeout in seconds for maintenance (0 means no timeout)")
	}
	applyDefaultFlags(backupCmd)
	applyDefaultFlags(restoreCmd)
	if restoreCmd.Flags().Lookup("full") == nil {
		restoreCmd.Flags().BoolVar(&fullRestore, "full", false, "Perform a full, destructive restore (wipes all existing data first)")
	}
	applyDefaultFlags(migrateCmd)

	planCmd.AddCommand(planRenderCmd, planValidateCmd)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			v, c, d := resolveBuildVersion(nil)
			fmt.Printf("version: %s\n", v)
			fmt.Printf("commit: %s\n", c)
			if d != "" {
				fmt.Printf("built: %s\n", d)
			}
		},
	}

	cmd.AddCommand(
		applyCmd,
		planCmd,
		statusCmd,
		historyCmd,
		auditLogCmd,
		trustHostCmd,
		dbMaintainCmd,
		backupCmd,
		restoreCmd,
		migrateCmd,
		versionCmd,
	)

	return cmd
}

// compositeVersion renders version, commit, and build date as one string.
func compositeVersion() string {
	v, c, d := resolveBuildVersion(nil)
	out := v
	if c != "" && c != "dev" {
		out = out + " (" + c + ")"
	}
	if d != "" {
		out = out + " built: " + d
	}
	return out
}

// resolveBuildVersion computes the best-available version, commit and build
// date for the running binary. If `info` is nil, it reads build info from
// the runtime. This helper is separated to make unit testing straightforward.
func resolveBuildVersion(info *debug.BuildInfo) (versionOut, commitOut, dateOut string) {
	resolvedVersion := version
	resolvedCommit := gitCommit
	resolvedDate := buildDate

	var ok bool
	if info == nil {
		if infoLocal, found := debug.ReadBuildInfo(); found {
			info = infoLocal
			ok = true
		}
	} else {
		ok = true
	}

	if ok && info != nil {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			resolvedVersion = info.Main.Version
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if s.Value != "" {
					resolvedCommit = s.Value
				}
			case "vcs.time":
				if s.Value != "" {
					resolvedDate = s.Value
				}
			}
		}
	}

	if resolvedVersion == "dev" && gitCommit != "dev" && gitCommit != "" {
		resolvedVersion = gitCommit
	}

	return resolvedVersion, resolvedCommit, resolvedDate
}

// activePlan resolves the plan for this invocation: an explicit YAML plan
// file when configured, otherwise the built-in bootstrap plan parameterized
// from config.
func activePlan() *model.Plan {
	if appConfig.Provision.Plan != "" {
		p, err := plan.Load(appConfig.Provision.Plan)
		if err != nil {
			log.Fatalf("%s", i18n.T("plan.error_load", err))
		}
		return p
	}
	return plan.Default(plan.DefaultOptions{
		ProxyClient: appConfig.Provision.ProxyClient,
	})
}

// buildRunner constructs the runner for the configured target.
func buildRunner(target string) (runner.Runner, error) {
	if target == "" || target == "local" {
		return runner.NewLocalRunner(), nil
	}
	parts := strings.SplitN(target, "@", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid target %q: expected \"local\" or user@host", target)
	}

	var privateKey string
	if identityFile != "" {
		data, err := os.ReadFile(identityFile)
		if err != nil {
			return nil, fmt.Errorf("could not read identity file: %w", err)
		}
		privateKey = string(data)
	}
	return runner.NewSSHRunner(parts[1], parts[0], privateKey)
}

// planNeedsPassword reports whether any database step references the
// password placeholder.
func planNeedsPassword(p *model.Plan) bool {
	for _, s := range p.Steps {
		if s.Kind == model.KindDatabase && strings.Contains(s.Command, "{{password}}") {
			return true
		}
	}
	return false
}

// applyCmd represents the 'apply' command. It executes the active plan
// against the configured target, journaling every step.
var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply the provisioning plan to the target",
	Long: `Walks the active plan step by step. Steps with an idempotency probe are
skipped when their effect is already present; everything else is applied in
order. The run halts on the first failed step (best-effort steps excepted)
and every outcome is recorded in the journal.

Use --dry-run to see the rendered commands without executing anything, and
--from-step to resume a halted run.`,
	PreRunE: setupDefaultServices,
	Run: func(cmd *cobra.Command, args []string) {
		p := activePlan()
		if planPath, _ := cmd.Flags().GetString("plan"); planPath != "" {
			loaded, err := plan.Load(planPath)
			if err != nil {
				log.Fatalf("%s", i18n.T("plan.error_load", err))
			}
			p = loaded
		}

		target := appConfig.Provision.Target
		if t, _ := cmd.Flags().GetString("target"); t != "" {
			target = t
		}

		// Collect the database superuser password before any step runs:
		// from the flag if given, otherwise from a non-echoed prompt.
		if !dryRun && planNeedsPassword(p) {
			passphrase := dbPassword
			if passphrase == "" && term.IsTerminal(int(os.Stdin.Fd())) {
				fmt.Print(i18n.T("apply.password_prompt"))
				bytePassword, err := term.ReadPassword(int(os.Stdin.Fd()))
				if err != nil {
					log.Fatalf("%s", i18n.T("apply.error_read_password", err))
				}
				passphrase = string(bytePassword)
				fmt.Println()
			}
			state.PasswordCache.Set([]byte(passphrase))
			defer state.PasswordCache.Clear()
		}

		r, err := buildRunner(target)
		if err != nil {
			log.Fatalf("%v", err)
		}
		defer func() { _ = r.Close() }()

		fmt.Println(i18n.T("apply.starting", p.Name, r.Target()))

		eng := provision.New(r, db.Default())
		results, err := eng.Apply(cmd.Context(), p, provision.Options{
			DryRun:      dryRun,
			FromStep:    fromStep,
			DatabaseDSN: appConfig.Provision.DatabaseDSN,
		})

		var applied, skipped, failed int
		for _, res := range results {
			switch res.Status {
			case model.StatusOK:
				applied++
				fmt.Printf("%s\n", i18n.T("apply.step_ok", res.StepName, res.Duration.Round(time.Millisecond)))
			case model.StatusSkipped:
				skipped++
				if dryRun {
					fmt.Printf("%s\n", i18n.T("apply.step_would_run", res.StepName, res.Output))
				} else {
					fmt.Printf("%s\n", i18n.T("apply.step_skipped", res.StepName))
				}
			case model.StatusFailed:
				failed++
				fmt.Printf("%s\n", i18n.T("apply.step_failed", res.StepName, res.Error))
			}
		}

		if dryRun {
			fmt.Println(i18n.T("apply.dry_run_notice"))
			return
		}
		if err != nil {
			log.Fatalf("%s", i18n.T("apply.run_failed", err))
		}
		fmt.Println(i18n.T("apply.run_success", applied, skipped, failed))
	},
}

// planCmd groups the plan inspection subcommands.
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Inspect the active provisioning plan",
}

// planRenderCmd prints the active plan as YAML.
var planRenderCmd = &cobra.Command{
	Use:     "render",
	Short:   "Print the active plan as YAML",
	PreRunE: setupDefaultServices,
	Run: func(cmd *cobra.Command, args []string) {
		out, err := plan.Render(activePlan())
		if err != nil {
			log.Fatalf("%s", i18n.T("plan.error_render", err))
		}
		fmt.Print(out)
	},
}

// planValidateCmd validates the active plan.
var planValidateCmd = &cobra.Command{
	Use:     "validate",
	Short:   "Validate the active plan",
	PreRunE: setupDefaultServices,
	Run: func(cmd *cobra.Command, args []string) {
		p := activePlan()
		if err := plan.Validate(p); err != nil {
			log.Fatalf("%v", err)
		}
		fmt.Println(i18n.T("plan.valid", p.Name, len(p.Steps)))
	},
}

// statusCmd shows the most recent run and its step outcomes.
var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show the latest run and its step outcomes",
	PreRunE: setupDefaultServices,
	Run: func(cmd *cobra.Command, args []string) {
		st := db.Default()
		run, err := st.GetLatestRun()
		if err != nil {
			log.Fatalf("%s", i18n.T("status.error_query", err))
		}
		if run == nil {
			fmt.Println(i18n.T("status.no_runs"))
			return
		}
		printRun(*run)
		results, err := st.GetStepResults(run.ID)
		if err != nil {
			log.Fatalf("%s", i18n.T("status.error_query", err))
		}
		for _, res := range results {
			marker := " "
			switch res.Status {
			case model.StatusOK:
				marker = "✓"
			case model.StatusSkipped:
				marker = "-"
			case model.StatusFailed:
				marker = "✗"
			}
			fmt.Printf("  %s %-28s %-8s %s\n", marker, res.StepName, res.Status, res.Duration.Round(time.Millisecond))
			if res.Error != "" {
				fmt.Printf("      %s\n", res.Error)
			}
		}
	},
}

// historyCmd lists all recorded runs.
var historyCmd = &cobra.Command{
	Use:     "history",
	Short:   "List recorded provisioning runs",
	PreRunE: setupDefaultServices,
	Run: func(cmd *cobra.Command, args []string) {
		runs, err := db.Default().GetAllRuns()
		if err != nil {
			log.Fatalf("%s", i18n.T("status.error_query", err))
		}
		if len(runs) == 0 {
			fmt.Println(i18n.T("status.no_runs"))
			return
		}
		for _, run := range runs {
			printRun(run)
		}
	},
}

// auditLogCmd prints the journal's audit log.
var auditLogCmd = &cobra.Command{
	Use:     "audit-log",
	Short:   "Show the journal audit log",
	PreRunE: setupDefaultServices,
	Run: func(cmd *cobra.Command, args []string) {
		entries, err := db.Default().GetAllAuditLogEntries()
		if err != nil {
			log.Fatalf("%s", i18n.T("status.error_query", err))
		}
		for _, e := range entries {
			fmt.Printf("%s  %-16s %s\n", e.Timestamp, e.Action, e.Details)
		}
	},
}

func printRun(run model.RunRecord) {
	finished := "-"
	if run.FinishedAt != nil {
		finished = run.FinishedAt.Format(time.RFC3339)
	}
	mode := ""
	if run.DryRun {
		mode = " (dry run)"
	}
	fmt.Printf("%s  %-10s %-12s %s → %s%s\n",
		run.ID, run.Status, run.Target, run.StartedAt.Format(time.RFC3339), finished, mode)
}

// trustHostCmd represents the 'trust-host' command. It facilitates the
// initial trust of a new host by fetching its public SSH key, displaying its
// fingerprint, and prompting the user to save it to the journal as a known
// host.
var trustHostCmd = &cobra.Command{
	Use:   "trust-host <user@host>",
	Short: "Adds a host's public key to the list of known hosts",
	Long: `Connects to a host for the first time, retrieves its public key,
and prompts the user to save it to the journal. This is a required step
before Quartermaster can provision a remote host over SSH.`,
	Args:    cobra.ExactArgs(1),
	PreRunE: setupDefaultServices,
	Run: func(cmd *cobra.Command, args []string) {
		target := args[0]
		hostname := target
		if strings.Contains(target, "@") {
			hostname = strings.SplitN(target, "@", 2)[1]
		}
		canonicalHost := runner.CanonicalizeHostPort(hostname)

		fmt.Printf("%s\n", i18n.T("trust_host.retrieving", canonicalHost))
		pubKey, err := runner.GetRemoteHostKey(canonicalHost)
		if err != nil {
			log.Fatalf("%s", i18n.T("trust_host.error_get_key", err))
		}

		fmt.Printf("%s\n", i18n.T("trust_host.unestablished", canonicalHost))
		fmt.Printf("%s\n", i18n.T("trust_host.fingerprint", ssh.FingerprintSHA256(pubKey)))

		ans := promptForConfirmation(i18n.T("trust_host.confirm_prompt"))
		if ans != "yes" && ans != "y" {
			fmt.Println(i18n.T("trust_host.cancelled"))
			return
		}

		host, _, err := net.SplitHostPort(canonicalHost)
		if err != nil {
			host = canonicalHost
		}
		if err := db.AddKnownHostKey(host, string(ssh.MarshalAuthorizedKey(pubKey))); err != nil {
			log.Fatalf("%s", i18n.T("trust_host.error_save", err))
		}
		fmt.Printf("%s\n", i18n.T("trust_host.added", host))
	},
}

// dbMaintainCmd runs journal database maintenance tasks.
var dbMaintainCmd = &cobra.Command{
	Use:     "db-maintain",
	Short:   "Run journal database maintenance (VACUUM/OPTIMIZE)",
	Long:    `Runs engine-specific maintenance tasks (VACUUM, OPTIMIZE TABLE, PRAGMA optimize).`,
	PreRunE: setupDefaultServices,
	Run: func(cmd *cobra.Command, args []string) {
		timeoutSec, _ := cmd.Flags().GetInt("timeout")
		dsn := appConfig.Database.Dsn
		dbType := appConfig.Database.Type
		if timeoutSec > 0 {
			done := make(chan error, 1)
			go func() { done <- db.RunDBMaintenance(dbType, dsn) }()
			select {
			case err := <-done:
				if err != nil {
					fmt.Printf("%s\n", i18n.T("maintenance.failed", err))
					os.Exit(1)
				}
				fmt.Println(i18n.T("maintenance.success"))
			case <-time.After(time.Duration(timeoutSec) * time.Second):
				fmt.Println(i18n.T("maintenance.timeout"))
				os.Exit(2)
			}
			return
		}
		if err := db.RunDBMaintenance(dbType, dsn); err != nil {
			fmt.Printf("%s\n", i18n.T("maintenance.failed", err))
			os.Exit(1)
		}
		fmt.Println(i18n.T("maintenance.success"))
	},
}

// promptForConfirmation displays a prompt and reads a line from stdin.
func promptForConfirmation(prompt string) string {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, _ := reader.ReadString('\n')
	return strings.TrimSpace(strings.ToLower(answer))
}
