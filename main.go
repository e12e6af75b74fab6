package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lotas/tabrefresh/internal/applog"
	"github.com/lotas/tabrefresh/internal/config"
	"github.com/lotas/tabrefresh/internal/lock"
	"github.com/lotas/tabrefresh/internal/refresh"
	"github.com/lotas/tabrefresh/internal/server"
	"github.com/lotas/tabrefresh/internal/storage"
	"github.com/lotas/tabrefresh/internal/targets"
	"github.com/lotas/tabrefresh/internal/theme"
	"github.com/lotas/tabrefresh/internal/tui"
	"github.com/lotas/tabrefresh/internal/types"
	"github.com/lotas/tabrefresh/internal/viewport"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	if len(os.Args) > 1 {
		var err error
		switch os.Args[1] {
		case "run":
			err = runHeadless(os.Args[2:])
		case "list":
			err = runList()
		case "add":
			err = runAdd(os.Args[2:])
		case "remove":
			err = runRemove(os.Args[2:])
		case "select":
			err = runSelect(os.Args[2:])
		case "theme":
			err = runTheme(os.Args[2:])
		case "import":
			err = runImport(os.Args[2:])
		case "export":
			err = runExport(os.Args[2:])
		case "help", "--help", "-h":
			printHelp()
			return
		default:
			if !strings.HasPrefix(os.Args[1], "-") {
				fmt.Fprintf(os.Stderr, "Unknown command %q. Run 'tabrefresh help'.\n", os.Args[1])
				os.Exit(2)
			}
			runTUI(os.Args[1:])
			return
		}
		if err != nil {
			exitErr(err)
		}
		return
	}
	runTUI(nil)
}

func runTUI(args []string) {
	fs := flag.NewFlagSet("tabrefresh", flag.ExitOnError)
	backend := fs.String("backend", "", "Viewport backend: bridge or playwright")
	port := fs.Int("port", 0, "WebSocket port for the bridge backend")
	autostart := fs.Bool("autostart", false, "Start refreshing immediately")
	fs.Parse(args)

	cfg, err := loadConfig(*backend, *port)
	if err != nil {
		exitErr(err)
	}
	// The TUI asks for confirmation itself before calling Remove.
	a, err := openApp(cfg, nil, types.Hooks{})
	if err != nil {
		exitErr(err)
	}
	defer a.Close()

	if err := a.lockInstance(); err != nil {
		exitErr(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	be := startBackend(ctx, cfg)
	defer be.Close()

	ctrl := a.newController(be.opener)
	defer ctrl.Stop()

	model := tui.NewModel(tui.Options{
		Store:     a.store,
		Ctrl:      ctrl,
		Themes:    a.themes,
		Server:    be.srv,
		Backend:   cfg.GetBackend(),
		Autostart: *autostart,
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Print(`tabrefresh: keep a browser tab refreshing a chosen URL

Usage:
  tabrefresh                                   Start the TUI (default)
    --backend <name>       bridge (browser extension) or playwright
    --port <n>             WebSocket port for the bridge (default: 19292)
    --autostart            Start refreshing immediately

  tabrefresh run [--backend] [--port] [--url U]  Refresh without a UI until Ctrl-C
  tabrefresh list                              List saved targets
  tabrefresh add <url> <name...>               Add a target and select it
  tabrefresh remove <url> [--yes]              Remove a target
  tabrefresh select <url>                      Select the target to refresh
  tabrefresh theme [toggle]                    Show or toggle the UI theme
  tabrefresh import [--profile X]              Add http(s) tabs from a Firefox session
  tabrefresh export [--json] [--out FILE]      Export saved targets as markdown or JSON

Configuration:
  ~/.config/tabrefresh/config.toml             backend, port, interval, grace,
                                               request_timeout, headless, data_dir,
                                               default_url, default_name

Environment:
  TABREFRESH_CONFIG      Config file path
  TABREFRESH_BACKEND     Backend (overridden by --backend)
  TABREFRESH_PORT        Bridge port (overridden by --port)
  TABREFRESH_DATA_DIR    Data directory (default: ~/.local/share/tabrefresh)
  TABREFRESH_PROFILE     Firefox profile for import (overridden by --profile)
`)
}

func exitErr(err error) {
	// Store and controller errors were already shown as notifications.
	var se *shownError
	if !errors.As(err, &se) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(1)
}

// shownError marks an error the user has already seen.
type shownError struct{ err error }

func (e *shownError) Error() string { return e.err.Error() }
func (e *shownError) Unwrap() error { return e.err }

func shown(err error) error {
	if err == nil {
		return nil
	}
	return &shownError{err: err}
}

// loadConfig resolves flag > env > config file > default.
func loadConfig(backend string, port int) (*config.Config, error) {
	path, err := config.Path()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if backend != "" {
		cfg.SetBackend(backend)
	}
	if port != 0 {
		cfg.SetPort(port)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// app holds the persisted state shared by every command.
type app struct {
	cfg     *config.Config
	dataDir string
	db      *sql.DB
	store   *targets.Store
	themes  *theme.Manager
	lk      *lock.Lock
}

func openApp(cfg *config.Config, confirm targets.ConfirmFunc, hooks types.Hooks) (*app, error) {
	dataDir, err := cfg.GetDataDir()
	if err != nil {
		return nil, err
	}
	if err := applog.Init(dataDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not open log: %v\n", err)
	}

	db, err := storage.OpenDB(storage.DBPath(dataDir))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	kv := storage.NewKV(db)

	store := targets.New(kv,
		targets.WithDefault(cfg.GetDefaultTarget()),
		targets.WithConfirm(confirm),
		targets.WithHooks(hooks),
	)
	if err := store.Load(); err != nil {
		db.Close()
		return nil, err
	}

	themes := theme.New(kv)
	themes.SetHooks(hooks)
	if err := themes.Load(); err != nil {
		db.Close()
		return nil, err
	}

	return &app{cfg: cfg, dataDir: dataDir, db: db, store: store, themes: themes}, nil
}

func (a *app) Close() {
	a.db.Close()
	a.lk.Release()
	applog.Close()
}

// lockInstance takes the data directory lock for the rest of the process.
// The TUI and run hold it while they keep state in memory; commands that
// write the list take it too, so they cannot be overwritten by a running
// instance's stale copy.
func (a *app) lockInstance() error {
	lk, err := lock.Acquire(a.dataDir)
	if errors.Is(err, lock.ErrHeld) {
		return fmt.Errorf("%w; quit it first, or make the change from its UI", err)
	}
	if err != nil {
		return err
	}
	a.lk = lk
	return nil
}

func (a *app) newController(opener viewport.Opener) *refresh.Controller {
	ctrl := refresh.New(a.store, opener,
		refresh.WithInterval(a.cfg.GetInterval()),
		refresh.WithGrace(a.cfg.GetGrace()),
		refresh.WithOpTimeout(a.cfg.GetRequestTimeout()),
	)
	a.store.SetController(ctrl)
	return ctrl
}

// backend is a started viewport backend.
type backend struct {
	opener viewport.Opener
	srv    *server.Server // nil for playwright
	closer func() error
}

func (b backend) Close() {
	if b.closer != nil {
		if err := b.closer(); err != nil {
			applog.Error("backend.close", err)
		}
	}
}

// startBackend brings up the configured backend. The bridge server runs
// until ctx is cancelled.
func startBackend(ctx context.Context, cfg *config.Config) backend {
	if cfg.GetBackend() == types.BackendPlaywright {
		pw := viewport.NewPlaywright(viewport.PlaywrightOptions{
			Headless: cfg.GetHeadless(),
			Install:  true,
		})
		return backend{opener: pw, closer: pw.Close}
	}

	srv := server.New(cfg.GetPort())
	go func() {
		if err := srv.ListenAndServe(ctx); err != nil {
			applog.Error("server.listen", err, "port", cfg.GetPort())
		}
	}()
	bridge := viewport.NewBridge(srv)
	go bridge.Run(ctx)
	return backend{opener: bridge, srv: srv}
}
