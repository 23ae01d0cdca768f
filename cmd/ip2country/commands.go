package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/TomasB/ip2country/internal/config"
	"github.com/TomasB/ip2country/internal/countries"
	"github.com/TomasB/ip2country/internal/data"
	"github.com/TomasB/ip2country/internal/geoip"
	"github.com/TomasB/ip2country/internal/selfcheck"
	"github.com/TomasB/ip2country/internal/storage"
)

const (
	selfCheckDNSTimeout = 5 * time.Second
	statsTopCountries   = 10
)

var errSelfCheckFailed = errors.New("self-check failed")

// loadEngine loads the configuration and builds an engine logging to
// stderr, so command output on stdout stays clean.
func loadEngine(configPath string) (*config.Config, *geoip.Engine, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	settings, err := cfg.Settings()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := setupLogger(cfg.LogLevel)
	return cfg, geoip.New(settings, geoip.WithLogger(logger)), nil
}

func runLookup(configPath string, args []string) error {
	fs := flag.NewFlagSet("lookup", flag.ExitOnError)
	codeOnly := fs.Bool("code", false, "Print the country code only")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return errors.New("usage: ip2country lookup [-code] <addr>")
	}

	_, engine, err := loadEngine(configPath)
	if err != nil {
		return err
	}
	defer engine.Close()

	res, err := engine.Resolve(context.Background(), fs.Arg(0), *codeOnly)
	if err != nil {
		return fmt.Errorf("lookup failed: %w", err)
	}

	if *codeOnly {
		fmt.Println(res.Code)
		return nil
	}
	output, _ := json.MarshalIndent(res, "", "  ")
	fmt.Println(string(output))
	return nil
}

func runVisitor(configPath string, args []string) error {
	fs := flag.NewFlagSet("visitor", flag.ExitOnError)
	override := fs.String("country", "", "Force the visitor country")
	fs.Parse(args)

	v := geoip.Visitor{Address: fs.Arg(0), Override: strings.ToUpper(*override)}

	_, engine, err := loadEngine(configPath)
	if err != nil {
		return err
	}
	defer engine.Close()

	code, err := engine.ResolveVisitorCountry(context.Background(), v)
	if err != nil {
		return fmt.Errorf("no country for visitor: %w", err)
	}
	fmt.Println(code)
	return nil
}

func runCountries() error {
	for _, c := range countries.DropdownList() {
		fmt.Printf("%s  %s\n", c.Code, c.Name)
	}
	return nil
}

func runSelfCheck(configPath string) error {
	cfg, engine, err := loadEngine(configPath)
	if err != nil {
		return err
	}
	defer engine.Close()

	logger := setupLogger(cfg.LogLevel)
	resolver := selfcheck.NewDNSResolver(cfg.DNSServer, selfCheckDNSTimeout)
	checker := selfcheck.NewChecker(engine, resolver, logger)

	ok, outcomes := checker.Run(context.Background())
	for _, out := range outcomes {
		status := "PASS"
		if !out.Passed {
			status = "FAIL"
		}
		fmt.Printf("%-4s  %-22s %-16s want=%s got=%s\n",
			status, out.Host, out.Address, describe(out.Want, nil), describe(out.Got, out.Err))
	}

	if !ok {
		return errSelfCheckFailed
	}
	fmt.Println("Self-check passed")
	return nil
}

func describe(res *geoip.Result, err error) string {
	switch {
	case err != nil:
		return "error(" + err.Error() + ")"
	case res == nil:
		return "failure"
	case res.Name == "":
		return res.Code
	default:
		return res.Code + "/" + res.Name
	}
}

func runDBStatus(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	paths := cfg.DatabasePaths()
	if len(paths) == 0 {
		fmt.Println("GeoIP database: not configured")
		fmt.Printf("Lookup command: %s (exec enabled: %t)\n", cfg.LookupCommand, cfg.ExecEnabled)
		return nil
	}

	for _, path := range paths {
		md, err := data.ReadMetadata(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				fmt.Printf("%s: not found\n", path)
			} else {
				fmt.Printf("%s: unreadable: %v\n", path, err)
			}
			continue
		}

		fmt.Printf("%s:\n", path)
		fmt.Printf("  Type: %s\n", md.DatabaseType)
		fmt.Printf("  IP version: %d (IPv6 lookups: %t)\n", md.IPVersion, md.SupportsIPv6())
		fmt.Printf("  Nodes: %d\n", md.NodeCount)
		fmt.Printf("  Built: %s\n", md.BuildTime.Format("2006-01-02 15:04:05"))
		fmt.Printf("  Languages: %s\n", strings.Join(md.Languages, ", "))
	}
	return nil
}

func openStore(configPath string) (*config.Config, *storage.Storage, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.StoragePath == "" {
		return nil, nil, errors.New("storage_path is not configured")
	}
	store, err := storage.New(cfg.StoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return cfg, store, nil
}

// statsOptions are the parsed flags of the stats command.
type statsOptions struct {
	days   int
	recent int
}

func parseStatsFlags(args []string) (statsOptions, error) {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	days := fs.Int("d", 7, "Number of days")
	recent := fs.Int("recent", 0, "Also list the N most recent lookups")
	if err := fs.Parse(args); err != nil {
		return statsOptions{}, err
	}

	if *days < 1 {
		return statsOptions{}, errors.New("-d must be a positive integer")
	}
	if *recent < 0 {
		return statsOptions{}, errors.New("-recent must not be negative")
	}
	return statsOptions{days: *days, recent: *recent}, nil
}

func runStats(configPath string, args []string) error {
	opts, err := parseStatsFlags(args)
	if err != nil {
		return err
	}

	_, store, err := openStore(configPath)
	if err != nil {
		return err
	}
	defer store.Close()

	since := time.Now().AddDate(0, 0, -opts.days)
	st, err := store.GetStats(since)
	if err != nil {
		return fmt.Errorf("failed to read stats: %w", err)
	}
	top, err := store.TopCountries(since, statsTopCountries)
	if err != nil {
		return fmt.Errorf("failed to read top countries: %w", err)
	}

	fmt.Printf("Lookups in the last %d days\n", opts.days)
	fmt.Printf("  Total: %d\n", st.TotalLookups)
	fmt.Printf("  Failed: %d\n", st.FailedLookups)
	fmt.Printf("  Unique addresses: %d\n", st.UniqueAddresses)
	fmt.Printf("  Unique countries: %d\n", st.UniqueCountries)

	if len(top) > 0 {
		fmt.Println()
		fmt.Println("Top countries:")
		for _, cc := range top {
			name, _ := countries.NameFor(cc.Code)
			fmt.Printf("  %s  %-30s %d\n", cc.Code, name, cc.Count)
		}
	}

	if opts.recent == 0 {
		return nil
	}
	recent, err := store.RecentLookups(since, opts.recent)
	if err != nil {
		return fmt.Errorf("failed to read recent lookups: %w", err)
	}
	fmt.Println()
	fmt.Println("Recent lookups:")
	for _, l := range recent {
		code := l.Code
		if code == "" {
			code = "--"
		}
		if l.Override {
			code += " (override)"
		}
		fmt.Printf("  %s  %-39s %s\n", l.Timestamp.Format("2006-01-02 15:04:05"), l.Address, code)
	}
	return nil
}

func runCleanup(configPath string) error {
	cfg, store, err := openStore(configPath)
	if err != nil {
		return err
	}
	defer store.Close()

	deleted, err := store.Cleanup(cfg.RetentionDays)
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}

	fmt.Printf("Cleanup completed. Deleted %d records older than %d days.\n", deleted, cfg.RetentionDays)
	return nil
}

func runConfig(configPath string, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: ip2country config <validate|show>")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	switch args[0] {
	case "validate":
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		fmt.Println("Configuration is valid")

	case "show":
		fmt.Print(cfg.String())

	default:
		return fmt.Errorf("unknown config command: %s", args[0])
	}
	return nil
}

// setupLogger returns the text logger used by one-shot commands.
func setupLogger(level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: getLogLevel(level),
	}))
}
