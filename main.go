package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/samuelfneumann/ddpgportfolio/agent"
	"github.com/samuelfneumann/ddpgportfolio/agent/ddpg"
	"github.com/samuelfneumann/ddpgportfolio/config"
	"github.com/samuelfneumann/ddpgportfolio/dataset"
	"github.com/samuelfneumann/ddpgportfolio/experiment"
	"github.com/samuelfneumann/ddpgportfolio/experiment/tracker"
	"github.com/samuelfneumann/ddpgportfolio/logger"
	"github.com/samuelfneumann/ddpgportfolio/metrics"
	"github.com/samuelfneumann/ddpgportfolio/portfolio"
	"github.com/samuelfneumann/ddpgportfolio/store"
	"github.com/samuelfneumann/ddpgportfolio/utils/progressbar"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	logger.SetGlobalLogger(log)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("experiment failed")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	path := cfg.DBPath
	if path == "" {
		path = store.Memory
	}
	db, err := store.New(path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := seedPrices(db, cfg, log); err != nil {
		return err
	}
	data, assets, err := dataset.FromStore(db, cfg.Assets, cfg.Window)
	if err != nil {
		return err
	}
	p, err := portfolio.New(assets, cfg.Commission)
	if err != nil {
		return err
	}
	log.Info().
		Strs("assets", assets).
		Int("samples", data.Len()).
		Int("window", cfg.Window).
		Msg("dataset loaded")

	agentConf, err := loadAgentConfig(cfg.AgentConfig)
	if err != nil {
		return err
	}
	expConf := experiment.Config{
		Type:       experiment.OfflineExp,
		Episodes:   cfg.Episodes,
		Iterations: cfg.Iterations,
		AgentConf:  agentConf,
	}
	raw, err := json.Marshal(expConf)
	if err != nil {
		return fmt.Errorf("could not encode configuration: %w", err)
	}

	// Trackers
	reg := prometheus.NewRegistry()
	promTracker, err := tracker.NewPrometheus(reg)
	if err != nil {
		return err
	}
	logTracker, err := tracker.NewLog(log, 10)
	if err != nil {
		return err
	}
	sqlTracker, err := tracker.NewSQLite(db, string(raw))
	if err != nil {
		return err
	}
	trackers := tracker.Register(logTracker, promTracker, sqlTracker,
		tracker.NewHistory(cfg.HistoryFile))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt,
		syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		server := metrics.New(cfg.MetricsAddr, reg, log)
		go func() {
			if err := server.Start(); err != nil {
				log.Error().Err(err).Msg("metrics server stopped")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(),
				5*time.Second)
			defer cancel()
			server.Shutdown(shutdownCtx)
		}()
	}

	e, err := expConf.CreateExp(data, p, cfg.Seed, trackers)
	if err != nil {
		return err
	}
	bar := progressbar.New(os.Stdout, "training", 40, cfg.Episodes+1)
	if o, ok := e.(*experiment.Offline); ok {
		o.Progress = func() {
			bar.Increment()
			bar.Display()
		}
	}

	result, err := e.Run()
	bar.Close()
	if err != nil {
		return err
	}
	if err := e.Save(); err != nil {
		return err
	}

	log.Info().
		Str("run", sqlTracker.RunID()).
		Float64("final_value", result.FinalValue).
		Float64("sharpe", result.Sharpe).
		Float64("max_drawdown", result.MaxDrawdown).
		Msg("backtest finished")

	if cfg.MetricsAddr != "" {
		log.Info().Msg("serving metrics until interrupted")
		<-ctx.Done()
	}
	return nil
}

// seedPrices fills an empty store with synthetic prices so that the
// tool can run without a price history
func seedPrices(db *store.Store, cfg *config.Config, log zerolog.Logger) error {
	stored, err := db.Assets()
	if err != nil {
		return err
	}
	if len(stored) > 0 {
		return nil
	}

	log.Warn().
		Int("assets", cfg.SyntheticAssets).
		Int("periods", cfg.SyntheticPeriod).
		Msg("no stored prices, generating a synthetic price history")
	for i, bars := range dataset.Synthetic(cfg.SyntheticAssets,
		cfg.SyntheticPeriod, cfg.Seed) {
		if err := db.InsertPrices(fmt.Sprintf("SYN%d", i), bars); err != nil {
			return err
		}
	}
	return nil
}

// loadAgentConfig reads a typed agent configuration from a JSON file,
// or returns the default DDPG configuration if filename is empty
func loadAgentConfig(filename string) (agent.TypedConfig, error) {
	if filename == "" {
		return agent.NewTypedConfig(ddpg.DefaultConfig()), nil
	}

	raw, err := os.ReadFile(filename)
	if err != nil {
		return agent.TypedConfig{}, fmt.Errorf("could not read agent "+
			"configuration: %w", err)
	}
	var c agent.TypedConfig
	if err := json.Unmarshal(raw, &c); err != nil {
		return agent.TypedConfig{}, fmt.Errorf("could not decode agent "+
			"configuration: %w", err)
	}
	return c, nil
}
