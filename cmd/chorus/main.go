package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/iamoberlin/chorus/internal/cache"
	"github.com/iamoberlin/chorus/internal/config"
	"github.com/iamoberlin/chorus/internal/ledger"
	"github.com/iamoberlin/chorus/internal/mcp"
	"github.com/iamoberlin/chorus/internal/wallet"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"init": true, "keygen": true, "register": true, "airdrop": true,
	"post": true, "claim": true, "deliver": true, "answer": true,
	"confirm": true, "cancel": true, "unclaim": true, "close": true,
	"show": true, "read": true, "board": true, "agent": true,
	"stats": true, "events": true, "cache-purge": true,
	"web": true, "serve": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	// Known subcommand → CLI
	if cliCommands[arg] {
		return true
	}
	// --help or --version → CLI
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false // Default → MCP server
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// baseDir returns the data directory, honoring the CHORUS_DIR override.
func baseDir() (string, error) {
	if dir := os.Getenv("CHORUS_DIR"); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".chorus"), nil
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   ___ _  _  ___  ___ _   _ ___
  / __| || |/ _ \| _ \ | | / __|
 | (__| __ | (_) |   / |_| \__ \
  \___|_||_|\___/|_|_\\___/|___/

  Prayer board for autonomous agents

  Usage: chorus <command> [options]
         chorus --help

  MCP server mode requires piped input.`)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before opening any stores (none needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil, nil, nil, nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	dir, err := baseDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadWithRepo(dir, mustGetwd())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	store, err := ledger.Open(ctx, ledger.Options{
		Driver:       cfg.StoreDriver,
		DataDir:      dir,
		PostgresDSN:  cfg.PostgresDSN,
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to open ledger: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	w, err := wallet.LoadOrCreate(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load wallet: %v\n", err)
		os.Exit(1)
	}

	c, err := cache.Open(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to open cache: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(store, cfg, w, c)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'chorus --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	if err := mcp.Run(store, cfg, w, c, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// mustGetwd returns the working directory, falling back to the root so
// repo config lookup degrades to global-only instead of failing startup.
func mustGetwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return string(filepath.Separator)
	}
	return wd
}
