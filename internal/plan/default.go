// Copyright (c) 2026 Quartermaster Team
// Quartermaster - declarative server provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package plan

import (
	"fmt"

	"github.com/opsforge/quartermaster/internal/model"
)

// DefaultOptions tunes the built-in plan. Zero values fall back to the
// defaults below.
type DefaultOptions struct {
	Session       string // terminal session name
	VenvPath      string // virtual environment location
	PythonVersion string // interpreter package suffix, e.g. "3.11"
	ProxyPort     int    // local proxy port for the VPN client
	ProxyClient   string // VPN/proxy client binary
	DatabaseName  string // database created for the application
	AppDir        string // directory holding the application checkout
	Entrypoint    string // application entrypoint run inside the session
	ForkURL       string // pip VCS requirement replacing a registry package
}

func (o *DefaultOptions) fill() {
	if o.Session == "" {
		o.Session = "app"
	}
	if o.VenvPath == "" {
		o.VenvPath = "venv"
	}
	if o.PythonVersion == "" {
		o.PythonVersion = "3.11"
	}
	if o.ProxyPort == 0 {
		o.ProxyPort = 40000
	}
	if o.ProxyClient == "" {
		o.ProxyClient = "warp-cli"
	}
	if o.DatabaseName == "" {
		o.DatabaseName = "app"
	}
	if o.AppDir == "" {
		o.AppDir = "."
	}
	if o.Entrypoint == "" {
		o.Entrypoint = "launcher.py"
	}
	if o.ForkURL == "" {
		o.ForkURL = "git+https://github.com/dolfies/discord.py-self.git"
	}
}

// Default builds the built-in provisioning plan: the full single-server
// bootstrap from a bare package index to the application running inside a
// persistent terminal session.
func Default(opts DefaultOptions) *model.Plan {
	opts.fill()

	py := "python" + opts.PythonVersion
	pip := opts.VenvPath + "/bin/pip"
	venvPy := opts.VenvPath + "/bin/python"

	p := &model.Plan{
		Name:          "bootstrap",
		Session:       opts.Session,
		VenvPath:      opts.VenvPath,
		PythonVersion: opts.PythonVersion,
		ProxyPort:     opts.ProxyPort,
		DatabaseName:  opts.DatabaseName,
		Steps: []model.Step{
			{
				Name:    "update-package-index",
				Phase:   "system",
				Kind:    model.KindCommand,
				Command: "apt-get update -y",
			},

			// Proxying VPN client: install, register an identity, switch to
			// local proxy mode on a fixed port, connect.
			{
				Name:     "install-proxy-client",
				Phase:    "proxy",
				Kind:     model.KindPackage,
				Packages: []string{"cloudflare-warp"},
				Check:    fmt.Sprintf("command -v %s", opts.ProxyClient),
			},
			{
				Name:    "register-proxy-identity",
				Phase:   "proxy",
				Kind:    model.KindCommand,
				Command: fmt.Sprintf("%s --accept-tos registration new", opts.ProxyClient),
				// Re-registering an existing identity fails; that is fine.
				BestEffort: true,
			},
			{
				Name:    "set-proxy-mode",
				Phase:   "proxy",
				Kind:    model.KindCommand,
				Command: fmt.Sprintf("%s mode proxy", opts.ProxyClient),
			},
			{
				Name:    "set-proxy-port",
				Phase:   "proxy",
				Kind:    model.KindCommand,
				Command: fmt.Sprintf("%s proxy port %d", opts.ProxyClient, opts.ProxyPort),
			},
			{
				Name:    "connect-proxy",
				Phase:   "proxy",
				Kind:    model.KindCommand,
				Command: fmt.Sprintf("%s connect", opts.ProxyClient),
				Check:   fmt.Sprintf("%s status | grep -q Connected", opts.ProxyClient),
			},

			// Cache server and relational database.
			{
				Name:     "install-cache-server",
				Phase:    "services",
				Kind:     model.KindPackage,
				Packages: []string{"redis-server"},
			},
			{
				Name:    "start-cache-server",
				Phase:   "services",
				Kind:    model.KindService,
				Service: "redis-server",
			},
			{
				Name:     "install-database-server",
				Phase:    "services",
				Kind:     model.KindPackage,
				Packages: []string{"postgresql", "postgresql-contrib"},
			},
			{
				Name:    "start-database-server",
				Phase:   "services",
				Kind:    model.KindService,
				Service: "postgresql",
			},

			// Database bootstrap, issued natively instead of through an
			// interactive SQL shell.
			{
				Name:    "set-superuser-password",
				Phase:   "database",
				Kind:    model.KindDatabase,
				Command: "ALTER ROLE postgres WITH PASSWORD {{password}}",
			},
			{
				Name:    "create-database",
				Phase:   "database",
				Kind:    model.KindDatabase,
				Command: "CREATE DATABASE {{database}}",
			},

			// Interpreter and environment tooling.
			{
				Name:     "install-interpreter",
				Phase:    "runtime",
				Kind:     model.KindPackage,
				Packages: []string{py, py + "-venv", py + "-dev"},
				Check:    fmt.Sprintf("command -v %s", py),
			},

			// Persistent terminal session and the environment inside it.
			{
				Name:    "create-session",
				Phase:   "session",
				Kind:    model.KindCommand,
				Command: fmt.Sprintf("tmux new-session -d -s %s", opts.Session),
				Check:   fmt.Sprintf("tmux has-session -t %s", opts.Session),
			},
			{
				Name:    "create-venv",
				Phase:   "session",
				Kind:    model.KindSession,
				Command: fmt.Sprintf("%s -m venv %s", py, opts.VenvPath),
				Check:   fmt.Sprintf("test -x %s", venvPy),
			},

			// Native image/graphics libraries required by downstream wheels.
			{
				Name:  "install-native-libraries",
				Phase: "libraries",
				Kind:  model.KindPackage,
				Packages: []string{
					"libjpeg-dev", "zlib1g-dev", "libwebp-dev",
					"libffi-dev", "libcairo2-dev",
				},
			},

			// Application dependencies: manifest, browser automation and its
			// OS-level dependencies, then the forked library swap.
			{
				Name:    "install-dependency-manifest",
				Phase:   "dependencies",
				Kind:    model.KindSession,
				Command: fmt.Sprintf("%s install -r %s/requirements.txt", pip, opts.AppDir),
			},
			{
				Name:    "install-browser-automation",
				Phase:   "dependencies",
				Kind:    model.KindSession,
				Command: fmt.Sprintf("%s install playwright && %s -m playwright install --with-deps chromium", pip, venvPy),
			},
			{
				Name:  "swap-forked-library",
				Phase: "dependencies",
				Kind:  model.KindSession,
				Command: fmt.Sprintf("%s install --upgrade --force-reinstall %s",
					pip, opts.ForkURL),
			},

			// Launch the application inside the session.
			{
				Name:    "launch-application",
				Phase:   "launch",
				Kind:    model.KindSession,
				Command: fmt.Sprintf("cd %s && %s %s", opts.AppDir, venvPy, opts.Entrypoint),
				Check:   fmt.Sprintf("pgrep -f %s", opts.Entrypoint),
			},
		},
	}
	return p
}
