// textexpanderctl is the control CLI for textexpanderd.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"textexpander/internal/config"
	"textexpander/internal/store"
)

var (
	configPath = flag.String("config", "", "path to config file")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	cmd := flag.Arg(0)
	args := flag.Args()[1:]

	var err error
	switch cmd {
	case "status":
		err = cmdStatus()
	case "validate":
		err = cmdValidate(args)
	case "compile":
		err = cmdCompile(args)
	case "lookup":
		err = cmdLookup(args)
	case "list":
		err = cmdList(args)
	case "simulate":
		err = cmdSimulate(args)
	case "stats":
		err = cmdStats(args)
	case "recent":
		err = cmdRecent(args)
	case "prune":
		err = cmdPrune(args)
	case "init":
		err = cmdInit()
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `textexpanderctl - Control utility for textexpanderd

Usage: textexpanderctl [options] <command> [args]

Commands:
  init                       Write a default config file if none exists
  status                     Show daemon status and journal summary
  validate [dictionary]      Check the config file and a dictionary
  compile <src> [-o out]     Compile a dictionary source to an artifact
  lookup <dict> <code>       Show the expansion a short code resolves to
  list <dict>                List every short code in a dictionary
  simulate <dict> <keys>     Type keys against a virtual host and print the result
  stats [-top N]             Show expansion statistics from the journal
  recent [-n N]              Show the most recent journal entries
  prune -older-than <dur>    Delete journal entries older than a duration
  help                       Show this help message

Options:
  -config <path>  Path to config file (default: ~/.config/textexpander/config.toml)`)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func cmdInit() error {
	path := *configPath
	if path == "" {
		path = config.ConfigPath()
	}
	cfg, created, err := config.LoadOrCreate(path)
	if err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	if created {
		fmt.Printf("Wrote default configuration to %s\n", path)
	} else {
		fmt.Printf("Configuration already exists at %s\n", path)
	}
	fmt.Printf("Dictionary: %s\n", cfg.Dictionary.Path)
	return nil
}

func cmdStatus() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Println("=== textexpanderd Status ===")
	fmt.Println()

	pidData, err := os.ReadFile(config.PIDFile())
	if err != nil {
		fmt.Println("Daemon Status: NOT RUNNING")
	} else {
		pid, _ := strconv.Atoi(strings.TrimSpace(string(pidData)))
		if processExists(pid) {
			fmt.Printf("Daemon Status: RUNNING (PID %d)\n", pid)
		} else {
			fmt.Printf("Daemon Status: STALE PID FILE (PID %d not found)\n", pid)
		}
	}
	fmt.Println()

	fmt.Println("Configuration:")
	fmt.Printf("  Layout:      %s\n", cfg.Expander.Layout)
	fmt.Printf("  Default OS:  %s\n", cfg.Expander.DefaultOS)
	fmt.Printf("  Dictionary:  %s\n", cfg.Dictionary.Path)
	if info, err := os.Stat(cfg.Dictionary.Path); err == nil {
		fmt.Printf("  Dict size:   %s (modified %s)\n", formatBytes(info.Size()), info.ModTime().Format(time.RFC3339))
	} else {
		fmt.Println("  Dict size:   not found")
	}
	fmt.Println()

	fmt.Println("Journal:")
	if !cfg.Journal.Enabled {
		fmt.Println("  Disabled")
		return nil
	}
	if _, err := os.Stat(cfg.Journal.Path); errors.Is(err, os.ErrNotExist) {
		fmt.Println("  No journal found")
		return nil
	}
	st, err := openStore(cfg)
	if err != nil {
		fmt.Printf("  Error opening journal: %v\n", err)
		return nil
	}
	defer st.Close()

	stats, err := st.Stats(context.Background(), 0)
	if err != nil {
		return err
	}
	fmt.Printf("  Path:        %s\n", cfg.Journal.Path)
	fmt.Printf("  Runs:        %d\n", stats.Runs)
	fmt.Printf("  Expansions:  %d\n", stats.Expansions)
	fmt.Printf("  Undos:       %d\n", stats.Undos)
	if !stats.Last.IsZero() {
		fmt.Printf("  Last:        %s\n", stats.Last.Format(time.RFC3339))
	}
	return nil
}

func cmdValidate(args []string) error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	path := *configPath
	if path == "" {
		path = config.ConfigPath()
	}
	fmt.Printf("Config: %s\n", path)

	findings := config.Check(cfg)
	for _, w := range findings.Warnings() {
		fmt.Printf("  warning: %s: %s\n", w.Field, w.Message)
	}
	for _, e := range findings.Errors() {
		fmt.Printf("  error:   %s: %s\n", e.Field, e.Message)
	}

	dictPath := cfg.Dictionary.Path
	if len(args) > 0 {
		dictPath = args[0]
	}
	dictErr := validateDictionary(dictPath)

	if findings.HasErrors() {
		return fmt.Errorf("%d config error(s)", len(findings.Errors()))
	}
	if dictErr != nil {
		return dictErr
	}
	fmt.Println("OK")
	return nil
}

func openStore(cfg *config.Config) (*store.Store, error) {
	return store.Open(cfg.Journal.Path, store.Options{
		BusyTimeout: time.Duration(cfg.Journal.BusyTimeoutMs) * time.Millisecond,
	})
}

func cmdStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	top := fs.Int("top", 10, "number of short codes to list")
	code := fs.String("code", "", "show a single short code")
	fs.Parse(args)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	ctx := context.Background()

	if *code != "" {
		s, err := st.ShortCodeStats(ctx, *code)
		if err != nil {
			return err
		}
		fmt.Printf("Short code: %s\n", s.ShortCode)
		fmt.Printf("  Expansions: %d\n", s.Expansions)
		fmt.Printf("  Undos:      %d (%.0f%%)\n", s.Undos, 100*s.UndoRate())
		fmt.Printf("  Cancels:    %d\n", s.Cancels)
		if !s.LastUsed.IsZero() {
			fmt.Printf("  Last used:  %s\n", s.LastUsed.Format(time.RFC3339))
		}
		return nil
	}

	stats, err := st.Stats(ctx, *top)
	if err != nil {
		return err
	}
	fmt.Println("=== Journal Statistics ===")
	fmt.Printf("Entries:      %d\n", stats.Entries)
	fmt.Printf("Runs:         %d\n", stats.Runs)
	fmt.Printf("Expansions:   %d\n", stats.Expansions)
	fmt.Printf("Undos:        %d\n", stats.Undos)
	fmt.Printf("Cancels:      %d\n", stats.Cancels)
	fmt.Printf("Chars typed:  %d\n", stats.CharsTyped)
	if !stats.First.IsZero() {
		fmt.Printf("Span:         %s .. %s\n", stats.First.Format(time.RFC3339), stats.Last.Format(time.RFC3339))
	}
	if len(stats.Top) > 0 {
		fmt.Println()
		fmt.Printf("%-20s %10s %8s %8s\n", "SHORT CODE", "EXPANDED", "UNDONE", "UNDO %")
		for _, s := range stats.Top {
			fmt.Printf("%-20s %10d %8d %7.0f%%\n", s.ShortCode, s.Expansions, s.Undos, 100*s.UndoRate())
		}
	}
	return nil
}

func cmdRecent(args []string) error {
	fs := flag.NewFlagSet("recent", flag.ExitOnError)
	n := fs.Int("n", 20, "number of entries")
	fs.Parse(args)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	entries, err := st.Recent(context.Background(), *n)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No journal entries.")
		return nil
	}
	for _, e := range entries {
		mode := "replace"
		if e.Completion {
			mode = "complete"
		}
		fmt.Printf("%s  %-9s %-16s %-8s typed=%d deleted=%d\n",
			e.Time.Local().Format("2006-01-02 15:04:05"), e.Kind, e.ShortCode, mode, e.Typed, e.Deleted)
	}
	return nil
}

func cmdPrune(args []string) error {
	fs := flag.NewFlagSet("prune", flag.ExitOnError)
	olderThan := fs.Duration("older-than", 0, "delete entries older than this (e.g. 720h)")
	fs.Parse(args)
	if *olderThan <= 0 {
		return errors.New("prune requires -older-than")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	n, err := st.Prune(context.Background(), time.Now().Add(-*olderThan))
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d journal entries.\n", n)
	return nil
}

func processExists(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix, FindProcess always succeeds, we need to send signal 0
	return process.Signal(syscall.Signal(0)) == nil
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
