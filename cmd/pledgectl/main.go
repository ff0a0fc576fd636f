// Command pledgectl is the pledge desk in a terminal. It signs in to the
// interest ledger and runs the interest workflow for one pledge.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pledge-desk/internal/adapters/ledger"
	"pledge-desk/internal/adapters/terminal"
	"pledge-desk/internal/config"
	"pledge-desk/internal/core/domain"
	"pledge-desk/internal/core/workflow"
	"pledge-desk/internal/pkg/logger"
	"pledge-desk/internal/pkg/session"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	baseURL := flag.String("ledger", cfg.Ledger.BaseURL, "interest ledger API base URL")
	timeout := flag.Duration("timeout", cfg.Ledger.Timeout(), "per-request timeout")
	username := flag.String("user", os.Getenv("PLEDGECTL_USER"), "staff username")
	password := flag.String("password", os.Getenv("PLEDGECTL_PASSWORD"), "staff password")
	pledgeID := flag.String("pledge", "", "pledge contract ID")
	exportDir := flag.String("export-dir", ".", "directory for exported documents")
	logLevel := flag.String("log-level", "warn", "log level (debug, info, warn, error)")
	flag.Parse()

	if *pledgeID == "" || *username == "" {
		flag.Usage()
		os.Exit(2)
	}

	zl := logger.New(*logLevel, cfg.Log.Format)
	defer zl.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	console := terminal.NewConsole(os.Stdin, os.Stdout)
	if *password == "" {
		line, ok := console.Prompt("Password: ")
		if !ok {
			os.Exit(1)
		}
		*password = line
	}

	client := ledger.NewClient(*baseURL, *timeout, session.New(), zl)
	loginCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = client.Login(loginCtx, *username, *password)
	cancel()
	if err != nil {
		zl.Debug("login failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "❌ Sign-in failed: %s\n", domain.UserMessage(err))
		os.Exit(1)
	}

	wf := workflow.New(client, terminal.NewGate(console), terminal.NewPresenter(console), zl)
	defer wf.Close()

	// A failed first load is already on screen; the shell can retry.
	_ = wf.LoadSummary(ctx, *pledgeID)

	shell := terminal.NewShell(console, wf, client, *pledgeID, *exportDir)
	console.Printf("Type help for commands.\n")
	if err := shell.Run(ctx); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}
