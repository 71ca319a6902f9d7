// Command moneysim runs the money model: many independent trials of agents
// handing out units of wealth, pooled into one wealth distribution.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/talgya/money-model/internal/api"
	"github.com/talgya/money-model/internal/config"
	"github.com/talgya/money-model/internal/engine"
	"github.com/talgya/money-model/internal/entropy"
	"github.com/talgya/money-model/internal/experiment"
	"github.com/talgya/money-model/internal/persistence"
	"github.com/talgya/money-model/internal/report"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		slog.Error("moneysim failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		configPath string
		seed       int64
		verbose    bool
		serve      bool
	)

	flagSet := pflag.NewFlagSet("moneysim", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to a YAML config file")
	agentsFlag := flagSet.IntP("agents", "n", 0, "number of agents per model")
	stepsFlag := flagSet.Int("steps", 0, "steps per trial")
	trialsFlag := flagSet.Int("trials", 0, "number of independent trials")
	flagSet.Int64Var(&seed, "seed", 0, "base random seed (trial i uses seed+i); random if unset")
	excludeFlag := flagSet.Bool("exclude-self", false, "agents never give wealth to themselves")
	workersFlag := flagSet.Int("workers", 0, "parallel trial workers (0 = one per CPU)")
	dbFlag := flagSet.String("db", "", "SQLite database to store results in")
	exportFlag := flagSet.String("export", "", "write the pooled sample as zstd-compressed JSON")
	flagSet.BoolVar(&serve, "serve", false, "serve the HTTP API after the run")
	portFlag := flagSet.Int("port", 0, "HTTP API port")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log per-step and per-trial detail")

	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// ── Configuration: file, then environment, then flags ────────────
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return fmt.Errorf("environment: %w", err)
	}

	if flagSet.Changed("agents") {
		cfg.Agents = *agentsFlag
	}
	if flagSet.Changed("steps") {
		cfg.Steps = *stepsFlag
	}
	if flagSet.Changed("trials") {
		cfg.Trials = *trialsFlag
	}
	if flagSet.Changed("seed") {
		cfg.Seed = &seed
	}
	if flagSet.Changed("exclude-self") {
		cfg.ExcludeSelf = *excludeFlag
	}
	if flagSet.Changed("workers") {
		cfg.Workers = *workersFlag
	}
	if flagSet.Changed("db") {
		cfg.DBPath = *dbFlag
	}
	if flagSet.Changed("export") {
		cfg.Export = *exportFlag
	}
	if flagSet.Changed("port") {
		cfg.API.Port = *portFlag
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	seedSource := entropy.NewClient(cfg.RandomOrgKey)
	params := cfg.Params(0)
	if cfg.Seed == nil {
		params.Seed = entropy.SeedFromSource(seedSource)
	}

	slog.Info("Money Model — wealth exchange simulation",
		"agents", params.Agents,
		"steps", params.Steps,
		"trials", params.Trials,
		"seed", params.Seed,
		"exclude_self", params.ExcludeSelf,
	)

	// ── Database ──────────────────────────────────────────────────────
	var db *persistence.DB
	if cfg.DBPath != "" {
		if dir := filepath.Dir(cfg.DBPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create db dir: %w", err)
			}
		}
		db, err = persistence.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()
		slog.Info("database opened", "path", cfg.DBPath)
	}

	// ── Initial distribution of a fresh model ─────────────────────────
	fresh, err := engine.NewModel(engine.Options{Agents: params.Agents, Seed: params.Seed})
	if err != nil {
		return err
	}
	initial := fresh.Stats()
	slog.Info("initial distribution",
		"agents", initial.Agents,
		"total_wealth", initial.TotalWealth,
		"broke", initial.Broke,
		"richest", initial.Richest,
	)

	// ── Experiment ────────────────────────────────────────────────────
	exp, err := experiment.RunExperiment(params)
	if err != nil {
		return err
	}

	expected := uint64(params.Trials) * uint64(params.Agents)
	if total := exp.TotalWealth(); total != expected {
		return fmt.Errorf("pooled wealth %d, want %d: %w", total, expected, engine.ErrConservation)
	}

	broke := 0
	for _, w := range exp.Sample {
		if w == 0 {
			broke++
		}
	}
	slog.Info("pooled sample",
		"values", humanize.Comma(int64(len(exp.Sample))),
		"total_wealth", humanize.Comma(int64(exp.TotalWealth())),
		"broke", humanize.Comma(int64(broke)),
		"duration", exp.Duration,
	)

	if db != nil {
		if err := db.SaveExperiment(exp); err != nil {
			return fmt.Errorf("save experiment: %w", err)
		}
		if err := db.SaveMeta("last_experiment", exp.ID.String()); err != nil {
			return fmt.Errorf("save meta: %w", err)
		}
		if err := db.SaveMeta("last_seed", strconv.FormatInt(params.Seed, 10)); err != nil {
			return fmt.Errorf("save meta: %w", err)
		}
	}

	if cfg.Export != "" {
		if err := persistence.WriteSample(cfg.Export, persistence.NewSampleFile(exp)); err != nil {
			return fmt.Errorf("export sample: %w", err)
		}
		slog.Info("sample exported", "path", cfg.Export)
	}

	reporter := &report.TextReporter{W: os.Stdout}
	if err := reporter.Render(report.NewWealthRequest(exp.Sample)); err != nil {
		return err
	}

	if !serve {
		return nil
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.API.AdminKey == "" {
		slog.Warn("MONEYSIM_ADMIN_KEY not set — POST endpoints will be disabled")
	}
	srv := &api.Server{
		DB:            db,
		Entropy:       seedSource,
		Port:          cfg.API.Port,
		AdminKey:      cfg.API.AdminKey,
		RateLimitHour: cfg.API.RateLimitHour,
		TrustProxy:    cfg.API.TrustProxy,
	}
	srv.Start()
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.API.Port)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("received signal, shutting down", "signal", sig)
	return nil
}
