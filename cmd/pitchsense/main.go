// Package main is the entry point for the PitchSense engine: the live match
// signal fusion and tactical decision service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/pitchsense/pitchsense-engine/internal/analyzer"
	"github.com/pitchsense/pitchsense-engine/internal/baseline"
	"github.com/pitchsense/pitchsense-engine/internal/bus"
	"github.com/pitchsense/pitchsense-engine/internal/config"
	"github.com/pitchsense/pitchsense-engine/internal/health"
	"github.com/pitchsense/pitchsense-engine/internal/logging"
	"github.com/pitchsense/pitchsense-engine/internal/matchstate"
	"github.com/pitchsense/pitchsense-engine/internal/orchestrator"
	"github.com/pitchsense/pitchsense-engine/internal/pressure"
	"github.com/pitchsense/pitchsense-engine/internal/roster"
	"github.com/pitchsense/pitchsense-engine/internal/scheduler"
	"github.com/pitchsense/pitchsense-engine/internal/server"
	"github.com/pitchsense/pitchsense-engine/internal/workload"
)

var (
	version    = "1.0.0"
	cfgPath    string
	rosterPath string
	pretty     bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pitchsense",
		Short: "PitchSense - match signal fusion and tactical decision engine",
		Long: `PitchSense fuses live workload telemetry, batting pressure and match
context into tactical recommendations, escalating to remote specialist
analyzers with graceful degradation when they misbehave.`,
		RunE: runServe,
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "pitchsense.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&rosterPath, "roster", "roster.yaml", "roster file path")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", false, "human-readable console logs")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("PitchSense v%s\n", version)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	logging.Setup(cfg.Logging.Level, pretty || cfg.Logging.Pretty)
	log.Info().Str("version", version).Msg("pitchsense starting")

	ros, err := roster.LoadFile(rosterPath)
	if err != nil {
		return fmt.Errorf("load roster: %w", err)
	}

	store, err := openBaselineStore(cfg)
	if err != nil {
		return fmt.Errorf("open baseline store: %w", err)
	}
	defer store.Close()

	events := bus.New()
	defer events.Close()

	state := matchstate.New(matchstate.Config{
		Format:      workload.Format(cfg.Match.Format),
		Innings:     cfg.Match.Innings,
		TargetScore: cfg.Match.TargetScore,
		BallsTotal:  cfg.Match.BallsTotal,
	}, ros, pressure.NewEngine(), events)
	seedBaselines(state, store)

	client := analyzer.NewClient(analyzer.ClientConfig{
		BaseURL: cfg.Analyzer.URL,
		APIKey:  cfg.Analyzer.APIKey,
		Timeout: cfg.Analyzer.GetTimeout(),
	})
	ring := health.NewRing(client)
	orch := orchestrator.New(client, orchestrator.WithHealthProber(ring))

	sched, err := scheduler.New(state, ring, cfg.Scheduler.TickCron, cfg.Scheduler.HealthCron)
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	srv := server.New(cfg, state, orch, ring, events)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Msg("pitchsense stopped")
	return nil
}

// openBaselineStore opens the durable SQLite store and, when configured,
// fronts it with the Redis cache tier.
func openBaselineStore(cfg *config.Config) (baseline.Store, error) {
	sqlite, err := baseline.NewSQLiteStore(cfg.Baseline.Path)
	if err != nil {
		return nil, err
	}
	if !cfg.Redis.Enabled {
		return sqlite, nil
	}

	cached, err := baseline.NewCachedStore(sqlite, baseline.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		TTL:      cfg.Redis.GetTTL(),
	})
	if err != nil {
		sqlite.Close()
		return nil, err
	}
	return cached, nil
}

// seedBaselines loads the stored baselines into the match state so the first
// analysis cycle has fitness context.
func seedBaselines(state *matchstate.State, store baseline.Store) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	baselines, err := store.List(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("listing baselines failed; starting without fitness context")
		return
	}
	for _, b := range baselines {
		state.SeedBaseline(b)
	}
	log.Info().Int("count", len(baselines)).Msg("baselines seeded")
}
