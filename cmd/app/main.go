package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"NgxQuant/internal/di"
	"NgxQuant/internal/domain/models"
	domrepo "NgxQuant/internal/domain/repository"
	"NgxQuant/internal/ingest"
	"NgxQuant/internal/loader"
	"NgxQuant/internal/usecase"
	"NgxQuant/pkg/config"
	pkgkafka "NgxQuant/pkg/kafka"
	applogger "NgxQuant/pkg/logger"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "ngxquant",
		Short:         "NGX equity and FX analytics engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path")

	root.AddCommand(
		serveCmd(),
		migrateCmd(),
		loadCSVCmd(),
		loadFxCmd(),
		backtestCmd(),
		updateCmd(),
		statsCmd(),
		symbolsCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	return config.LoadWithEnv(configPath)
}

// bootstrap builds the pieces every offline command needs: logger, metrics
// and the bar store (schema created on first connect).
func bootstrap() (*config.Config, *applogger.Logger, domrepo.BarStore, domrepo.Metrics, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	log, err := di.ProvideLogger(cfg)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	ch, err := di.ProvideClickHouseClient(cfg)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	redisCache, err := di.ProvideRedisCache(cfg)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	store := di.ProvideBarStore(ch, cfg, log, redisCache)
	return cfg, log, store, di.ProvideMetrics(), nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, Kafka consumer and async workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			app, err := di.InitializeApp(cfg)
			if err != nil {
				return fmt.Errorf("app initialization: %w", err)
			}
			return app.Run()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, store, _, err := bootstrap()
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Init(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("schema ready")
			return nil
		},
	}
}

func loadCSVCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "load-csv",
		Short: "Bulk-load daily bar CSV exports from a directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, log, store, m, err := bootstrap()
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Init(cmd.Context()); err != nil {
				return err
			}

			importer := usecase.NewCSVImporter(loader.New(log), store, m, log)
			summary, err := importer.ImportDir(cmd.Context(), dir)
			if err != nil {
				return err
			}
			fmt.Printf("loaded %d bars from %d files (%d skipped)\n", summary.Bars, summary.Files, len(summary.Skipped))
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "data", "directory of CSV exports, one file per symbol")
	return cmd
}

func loadFxCmd() *cobra.Command {
	var file, pair, source string
	cmd := &cobra.Command{
		Use:   "load-fx",
		Short: "Load an FX rate CSV into the fx_rates table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, store, m, err := bootstrap()
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Init(cmd.Context()); err != nil {
				return err
			}

			if pair == "" {
				pair = cfg.Market.FxPair
			}
			if source == "" {
				source = cfg.Market.FxSource
			}
			importer := usecase.NewCSVImporter(loader.New(log), store, m, log)
			n, err := importer.ImportFx(cmd.Context(), file, pair, source)
			if err != nil {
				return err
			}
			fmt.Printf("loaded %d fx rates for %s\n", n, loader.NormalizePair(pair))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "FX rate CSV file")
	cmd.Flags().StringVar(&pair, "pair", "", "currency pair, defaults to market.fx_pair")
	cmd.Flags().StringVar(&source, "source", "", "rate source tag, defaults to market.fx_source")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func backtestCmd() *cobra.Command {
	var (
		tickers      string
		from, to     string
		window       int
		minObs       int
		topN         int
		fillPolicy   string
		maxGap       int
		residualCeil float64
		regimesFile  string
	)
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run a walk-forward backtest and print the report as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, store, m, err := bootstrap()
			if err != nil {
				return err
			}
			defer store.Close()

			req := models.BacktestRequest{
				Tickers:        splitList(tickers),
				From:           from,
				To:             to,
				Window:         window,
				MinObs:         minObs,
				TopN:           topN,
				FillPolicy:     fillPolicy,
				MaxGap:         maxGap,
				ResidualCeil:   residualCeil,
				RiskFreeRate:   cfg.Backtest.RiskFreeRate,
				PeriodsPerYear: cfg.Backtest.PeriodsPerYear,
			}
			if req.Window == 0 {
				req.Window = cfg.Backtest.Window
			}
			if req.MinObs == 0 {
				req.MinObs = cfg.Backtest.MinObs
			}
			if req.TopN == 0 {
				req.TopN = cfg.Backtest.TopN
			}
			if req.FillPolicy == "" {
				req.FillPolicy = cfg.Backtest.FillPolicy
			}
			if req.ResidualCeil == 0 {
				req.ResidualCeil = cfg.Backtest.ResidualCeiling
			}

			var regimes map[time.Time]string
			if regimesFile != "" {
				regimes, err = loader.New(log).LoadRegimes(regimesFile)
				if err != nil {
					return err
				}
			}

			runner := usecase.NewBacktestRunner(store, m, log,
				cfg.Market.IndexSymbol, cfg.Market.FxPair, cfg.Backtest.Workers)

			start := time.Now()
			res, err := runner.Run(cmd.Context(), req, regimes)
			if err != nil {
				return err
			}
			log.Info("backtest finished",
				applogger.Int("snapshots", len(res.Result.Snapshots)),
				applogger.Int("dropped", len(res.Dropped)),
				applogger.Duration("elapsed", time.Since(start)))

			return printJSON(map[string]any{
				"report":          res.Result.Report,
				"regime_reports":  res.Result.RegimeReports,
				"snapshots":       res.Result.Snapshots,
				"dropped_tickers": res.Dropped,
				"skipped_windows": len(res.Skips),
			})
		},
	}
	cmd.Flags().StringVar(&tickers, "tickers", "", "comma-separated ticker list")
	cmd.Flags().StringVar(&from, "from", "", "start date (2006-01-02)")
	cmd.Flags().StringVar(&to, "to", "", "end date (2006-01-02)")
	cmd.Flags().IntVar(&window, "window", 0, "rolling regression window")
	cmd.Flags().IntVar(&minObs, "min-obs", 0, "minimum observations per window")
	cmd.Flags().IntVar(&topN, "top-n", 0, "portfolio size per rebalance")
	cmd.Flags().StringVar(&fillPolicy, "fill", "", "gap fill policy: none, forward or fail")
	cmd.Flags().IntVar(&maxGap, "max-gap", 0, "max consecutive missing days to fill or tolerate")
	cmd.Flags().Float64Var(&residualCeil, "residual-ceiling", 0, "exclude fits with residual stderr above this")
	cmd.Flags().StringVar(&regimesFile, "regimes", "", "optional regime label CSV (date,label)")
	_ = cmd.MarkFlagRequired("tickers")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func updateCmd() *cobra.Command {
	var publish bool
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Pull recent bars for all listed symbols from the market data API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, store, m, err := bootstrap()
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Init(cmd.Context()); err != nil {
				return err
			}
			if cfg.Ingest.BaseURL == "" {
				return fmt.Errorf("ingest.base_url is not configured")
			}

			// Bars go straight to the store unless --publish routes them
			// through Kafka for the serve-mode consumer to pick up.
			var sink domrepo.BarSink = store
			if publish {
				if len(cfg.Kafka.Brokers) == 0 {
					return fmt.Errorf("--publish requires kafka.brokers")
				}
				producer, err := pkgkafka.NewProducer(
					pkgkafka.WithBrokers(cfg.Kafka.Brokers),
					pkgkafka.WithHashByKey(true),
				)
				if err != nil {
					return err
				}
				kafkaSink := ingest.NewKafkaBarSink(producer, cfg.Kafka.Topic)
				defer kafkaSink.Close()
				sink = kafkaSink
			}

			source := ingest.NewAPISource(ingest.APISourceConfig{
				BaseURL:        cfg.Ingest.BaseURL,
				Token:          cfg.Ingest.Token,
				RequestDelay:   cfg.Ingest.RequestDelay,
				Jitter:         cfg.Ingest.Jitter,
				MaxRetries:     cfg.Ingest.MaxRetries,
				RequestTimeout: cfg.Ingest.RequestTimeout,
			}, log)
			updater := ingest.NewUpdater(source, store, sink, m, log,
				cfg.Market.IndexSymbol, cfg.Market.FxPair)

			stats, err := updater.Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("updated %d symbols, %d bars, %d failures in %s\n",
				stats.Symbols, stats.Bars, stats.Failures, stats.Elapsed.Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().BoolVar(&publish, "publish", false, "publish bars to Kafka instead of writing to the store")
	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print row counts and date coverage of the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, store, _, err := bootstrap()
			if err != nil {
				return err
			}
			defer store.Close()
			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(stats)
		},
	}
}

func symbolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "symbols",
		Short: "List symbols with stored bars",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, store, _, err := bootstrap()
			if err != nil {
				return err
			}
			defer store.Close()
			symbols, err := store.ListSymbols(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range symbols {
				fmt.Println(s)
			}
			return nil
		},
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
