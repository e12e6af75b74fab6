package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lotas/tabrefresh/internal/export"
	"github.com/lotas/tabrefresh/internal/firefox"
	"github.com/lotas/tabrefresh/internal/targets"
	"github.com/lotas/tabrefresh/internal/types"
)

// printNotice renders a notification as a single line.
func printNotice(msg string, sev types.Severity) {
	out := os.Stdout
	if sev == types.SeverityError {
		out = os.Stderr
	}
	fmt.Fprintf(out, "%s %s\n", sev.Symbol(), msg)
}

func cliHooks() types.Hooks {
	return types.Hooks{OnNotify: printNotice}
}

// openCLI opens the app for a one-shot command. Commands that write state
// pass exclusive and fail fast while another instance runs.
func openCLI(confirm targets.ConfirmFunc, exclusive bool) (*app, error) {
	cfg, err := loadConfig("", 0)
	if err != nil {
		return nil, err
	}
	a, err := openApp(cfg, confirm, cliHooks())
	if err != nil {
		return nil, err
	}
	if exclusive {
		if err := a.lockInstance(); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func runList() error {
	a, err := openCLI(nil, false)
	if err != nil {
		return err
	}
	defer a.Close()

	selected := a.store.SelectedURL()
	for _, t := range a.store.Targets() {
		marker := " "
		if t.SameURL(selected) {
			marker = "*"
		}
		suffix := ""
		if t.Protected {
			suffix = " [protected]"
		}
		fmt.Printf("%s %s (%s)%s\n", marker, t.DisplayName, t.URL, suffix)
	}
	return nil
}

func runAdd(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: tabrefresh add <url> <name...>")
	}
	a, err := openCLI(nil, true)
	if err != nil {
		return err
	}
	defer a.Close()
	return shown(a.store.Add(args[0], strings.Join(args[1:], " ")))
}

func runRemove(args []string) error {
	fs := flag.NewFlagSet("remove", flag.ExitOnError)
	yes := fs.Bool("yes", false, "Skip confirmation")
	fs.Parse(reorderArgs(args, "yes"))
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: tabrefresh remove <url> [--yes]")
	}

	var confirm targets.ConfirmFunc
	if !*yes {
		confirm = promptConfirm
	}
	a, err := openCLI(confirm, true)
	if err != nil {
		return err
	}
	defer a.Close()
	return shown(a.store.Remove(fs.Arg(0)))
}

func promptConfirm(t types.Target) bool {
	fmt.Printf("Remove %s (%s)? [y/N] ", t.DisplayName, t.URL)
	reader := bufio.NewReader(os.Stdin)
	answer, _ := reader.ReadString('\n')
	answer = strings.TrimSpace(strings.ToLower(answer))
	return answer == "y" || answer == "yes"
}

func runSelect(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: tabrefresh select <url>")
	}
	a, err := openCLI(nil, true)
	if err != nil {
		return err
	}
	defer a.Close()
	return shown(a.store.Select(args[0]))
}

func runTheme(args []string) error {
	toggle := len(args) == 1 && args[0] == "toggle"
	if len(args) > 0 && !toggle {
		return fmt.Errorf("usage: tabrefresh theme [toggle]")
	}
	a, err := openCLI(nil, toggle)
	if err != nil {
		return err
	}
	defer a.Close()

	if !toggle {
		fmt.Println(a.themes.Current())
		return nil
	}
	_, err = a.themes.Toggle()
	return shown(err)
}

func runImport(args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	profileName := fs.String("profile", "", "Firefox profile name")
	fs.Parse(args)

	profiles, err := firefox.DiscoverProfiles()
	if err != nil {
		return fmt.Errorf("discover profiles: %w", err)
	}
	profile, err := firefox.PickProfile(profiles, resolveProfileName(*profileName))
	if err != nil {
		return err
	}
	tabs, err := firefox.ReadSessionFile(profile.Path)
	if err != nil {
		return fmt.Errorf("read session: %w", err)
	}

	a, err := openCLI(nil, true)
	if err != nil {
		return err
	}
	defer a.Close()
	_, err = a.store.Import(firefox.Candidates(tabs))
	return shown(err)
}

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	jsonFlag := fs.Bool("json", false, "Export as JSON instead of markdown")
	outFile := fs.String("out", "", "Output file path (default: stdout)")
	fs.Parse(args)

	a, err := openCLI(nil, false)
	if err != nil {
		return err
	}
	defer a.Close()

	list, selected := a.store.Targets(), a.store.SelectedURL()
	var output string
	if *jsonFlag {
		output, err = export.JSON(list, selected, time.Now())
		if err != nil {
			return fmt.Errorf("generate JSON: %w", err)
		}
	} else {
		output = export.Markdown(list, selected, time.Now())
	}

	if *outFile != "" {
		if err := os.WriteFile(*outFile, []byte(output), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", *outFile, err)
		}
		return nil
	}
	fmt.Print(output)
	return nil
}

// runHeadless refreshes without a UI until interrupted.
func runHeadless(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	backendName := fs.String("backend", "", "Viewport backend: bridge or playwright")
	port := fs.Int("port", 0, "WebSocket port for the bridge backend")
	target := fs.String("url", "", "Select (adding if needed) this URL first")
	fs.Parse(args)

	cfg, err := loadConfig(*backendName, *port)
	if err != nil {
		return err
	}
	a, err := openApp(cfg, nil, cliHooks())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.lockInstance(); err != nil {
		return err
	}

	if *target != "" {
		if err := selectOrAdd(a.store, *target); err != nil {
			return shown(err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	be := startBackend(ctx, cfg)
	defer be.Close()
	if be.srv != nil {
		be.srv.OnConnectionChange(func(connected bool) {
			if connected {
				printNotice("Browser extension connected", types.SeveritySuccess)
			} else {
				printNotice("Browser extension disconnected", types.SeverityWarning)
			}
		})
		fmt.Printf("Waiting for the browser extension on port %d...\n", cfg.GetPort())
	}

	ctrl := a.newController(be.opener)
	ctrl.SetHooks(cliHooks())
	ctrl.Start()
	<-ctx.Done()
	ctrl.Stop()
	fmt.Printf("Opened the tab %d time(s) over %d refreshes.\n", ctrl.Reopens(), ctrl.Ticks())
	return nil
}

func selectOrAdd(store *targets.Store, raw string) error {
	for _, t := range store.Targets() {
		if t.SameURL(raw) {
			return store.Select(t.URL)
		}
	}
	name := raw
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		name = u.Host
	}
	return store.Add(raw, name)
}

// reorderArgs moves flag arguments before positional arguments so that
// flag.Parse handles them correctly (it stops at the first non-flag arg).
// Flags named in boolFlags never consume the following argument.
func reorderArgs(args []string, boolFlags ...string) []string {
	isBool := make(map[string]bool, len(boolFlags))
	for _, f := range boolFlags {
		isBool[f] = true
	}
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		if strings.HasPrefix(args[i], "-") {
			flags = append(flags, args[i])
			name := strings.TrimLeft(args[i], "-")
			if !isBool[name] && !strings.Contains(name, "=") &&
				i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				flags = append(flags, args[i+1])
				i++
			}
		} else {
			positional = append(positional, args[i])
		}
	}
	return append(flags, positional...)
}

// resolveProfileName returns the profile name from the flag if set,
// otherwise falls back to the TABREFRESH_PROFILE environment variable.
func resolveProfileName(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv("TABREFRESH_PROFILE")
}
