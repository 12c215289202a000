package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/zarlcorp/core/pkg/zapp"
	"github.com/zarlcorp/zotp/internal/cli"
	"github.com/zarlcorp/zotp/internal/config"
	"github.com/zarlcorp/zotp/internal/refresh"
	"github.com/zarlcorp/zotp/internal/tui"
	"github.com/zarlcorp/zotp/internal/vault"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	os.Exit(run(os.Args))
}

// run returns the process exit code so deferred cleanup completes before
// main exits.
func run(args []string) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "zotp: %v\n", err)
		return 1
	}

	logFile, err := setupLogging(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "zotp: %v\n", err)
		return 1
	}
	defer logFile.Close()

	app := zapp.New(zapp.WithName("zotp"))
	defer func() {
		if err := app.Close(); err != nil {
			slog.Error("shutdown", "err", err)
		}
	}()

	ctx, cancel := zapp.SignalContext(context.Background())
	defer cancel()

	if len(args) > 1 {
		return runCLI(ctx, cfg, args[1], args[2:])
	}

	if err := runTUI(cfg); err != nil {
		slog.Error("tui", "err", err)
		fmt.Fprintf(os.Stderr, "zotp: %v\n", err)
		return 1
	}
	return 0
}

// setupLogging points the default logger at the log file. The TUI owns
// the terminal, so nothing is logged to stderr.
func setupLogging(cfg config.Config) (io.Closer, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	h := slog.NewTextHandler(f, &slog.HandlerOptions{Level: cfg.Level()})
	slog.SetDefault(slog.New(h).With("app", "zotp"))
	return f, nil
}

func runCLI(ctx context.Context, cfg config.Config, cmd string, args []string) int {
	if cmd == "version" {
		fmt.Printf("zotp %s\n", version)
		return 0
	}

	if !knownCommand(cmd) {
		fmt.Fprintf(os.Stderr, "zotp: unknown command %q\n", cmd)
		return 1
	}

	v, closeFn, err := cli.OpenVault(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "zotp: %v\n", err)
		return 1
	}
	defer closeFn()

	switch cmd {
	case "add":
		err = cli.CmdAdd(os.Stdout, os.Stdin, v, args)
	case "list":
		err = cli.CmdList(os.Stdout, v, args)
	case "watch":
		err = cli.CmdWatch(ctx, os.Stdout, v, refresh.NewScheduler())
	case "rename":
		err = cli.CmdRename(os.Stdout, v, args)
	case "rm":
		err = cli.CmdRemove(os.Stdout, v, args)
	case "clear":
		err = cli.CmdClear(os.Stdout, v, args)
	case "copy":
		err = cli.CmdCopy(os.Stdout, v, vault.SystemClipboard{}, args)
	case "qr":
		err = cli.CmdQR(os.Stdout, v, args)
	}

	if err != nil {
		slog.Error("command failed", "cmd", cmd, "err", err)
		if errors.Is(err, cli.ErrUsage) {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 2
		}
		fmt.Fprintf(os.Stderr, "zotp: %v\n", err)
		return 1
	}
	return 0
}

func knownCommand(cmd string) bool {
	switch cmd {
	case "add", "list", "watch", "rename", "rm", "clear", "copy", "qr":
		return true
	}
	return false
}

func runTUI(cfg config.Config) error {
	firstRun := cli.IsFirstRun(cfg.DataDir)
	m := tui.New(version, cfg, firstRun, slog.Default())

	if cfg.Backend == config.BackendBolt {
		b, err := cli.OpenBolt(cfg.DataDir)
		if err != nil {
			return err
		}
		if err := m.Attach(b, func() { b.Close() }); err != nil {
			b.Close()
			return err
		}
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return err
	}

	if fm, ok := finalModel.(tui.Model); ok {
		fm.Close()
	}

	return nil
}
