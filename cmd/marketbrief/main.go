// MarketBrief — AI-generated daily stock brief with validated picks
// and honest performance tracking.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/marketbrief/marketbrief/api"
	"github.com/marketbrief/marketbrief/internal/analyzer"
	"github.com/marketbrief/marketbrief/internal/config"
	"github.com/marketbrief/marketbrief/internal/datasource"
	"github.com/marketbrief/marketbrief/internal/llm"
	"github.com/marketbrief/marketbrief/internal/logging"
	"github.com/marketbrief/marketbrief/internal/pipeline"
	"github.com/marketbrief/marketbrief/internal/publish"
	"github.com/marketbrief/marketbrief/internal/scheduler"
	"github.com/marketbrief/marketbrief/internal/store"
	"github.com/marketbrief/marketbrief/internal/tracker"
	"github.com/marketbrief/marketbrief/internal/validate"
	"github.com/marketbrief/marketbrief/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var (
	cfg *config.Config
	log *zap.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "marketbrief",
	Short: "MarketBrief — AI daily stock brief with validated picks",
	Long: `MarketBrief generates a daily financial brief: it aggregates market
data from multiple providers, asks an AI for stock picks, validates every
claim against ground truth, and tracks each published pick to its exit so
the track record stays honest.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			cfg.Logging.Level = level
		}
		log, err = logging.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			log.Sync() //nolint:errcheck
		}
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(aggregateCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(pipelineCmd)
	rootCmd.AddCommand(positionsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scheduleCmd)
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
}

// buildPipeline wires the full pipeline from configuration. The caller owns
// closing the returned store.
func buildPipeline() (*pipeline.Pipeline, *store.Store, error) {
	st, err := store.Open(cfg.Store, log)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	router, err := llm.NewRouterFromConfig(cfg, log)
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, nil, fmt.Errorf("LLM setup failed: %w", err)
	}

	agg := datasource.NewDefaultAggregator(log)
	anl := analyzer.New(router, cfg.LLM, log)
	val := validate.New(cfg.Validation, log)
	pub := publish.NewMulti(log,
		publish.NewLogPublisher(log),
		publish.NewFilePublisher("./briefs", log),
	)

	return pipeline.New(agg, anl, val, st, pub, cfg.Brief, log), st, nil
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("MarketBrief %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Aggregate Command ---

var aggregateCmd = &cobra.Command{
	Use:   "aggregate [ticker...]",
	Short: "Fetch and score market data for one or more tickers",
	Long:  "Fetch quote, fundamentals, news, and sentiment for each ticker and print the aggregated records with their data quality scores.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tickers := make([]string, 0, len(args))
		for _, arg := range args {
			ticker := utils.NormalizeTicker(arg)
			if !utils.ValidTicker(ticker) {
				return fmt.Errorf("invalid ticker: %q", arg)
			}
			tickers = append(tickers, ticker)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
		defer cancel()

		agg := datasource.NewDefaultAggregator(log)
		if len(tickers) == 1 {
			data, err := agg.FetchStockData(ctx, tickers[0])
			if err != nil {
				return fmt.Errorf("aggregation failed: %w", err)
			}
			return printJSON(data)
		}

		concurrency, _ := cmd.Flags().GetInt("concurrency")
		results, err := agg.FetchBatch(ctx, tickers, concurrency)
		if err != nil {
			return fmt.Errorf("aggregation failed: %w", err)
		}
		return printJSON(results)
	},
}

func init() {
	aggregateCmd.Flags().Int("concurrency", 2, "parallel fetches for multi-ticker aggregation")
}

// --- Analyze Command ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze [ticker]",
	Short: "Generate and validate an AI analysis for a ticker",
	Long:  "Run the aggregate → analyze → validate stages for one ticker without persisting or publishing anything.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ticker := utils.NormalizeTicker(args[0])
		if !utils.ValidTicker(ticker) {
			return fmt.Errorf("invalid ticker: %q", args[0])
		}

		router, err := llm.NewRouterFromConfig(cfg, log)
		if err != nil {
			return fmt.Errorf("LLM setup failed: %w", err)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
		defer cancel()

		agg := datasource.NewDefaultAggregator(log)
		data, err := agg.FetchStockData(ctx, ticker)
		if err != nil {
			return fmt.Errorf("aggregation failed: %w", err)
		}

		raw, err := analyzer.New(router, cfg.LLM, log).AnalyzeStock(ctx, data, nil)
		if err != nil {
			return fmt.Errorf("analysis failed: %w", err)
		}

		pick, err := validate.New(cfg.Validation, log).Validate(raw, data)
		if err != nil {
			return fmt.Errorf("validation: %w", err)
		}
		return printJSON(pick)
	},
}

// --- Pipeline Command ---

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run one full brief cycle over the watchlist",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, st, err := buildPipeline()
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ctx, cancel := signalContext()
		defer cancel()

		report, err := p.Run(ctx)
		if err != nil {
			return fmt.Errorf("pipeline failed: %w", err)
		}
		return printJSON(report)
	},
}

// --- Positions Command ---

var positionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "Manage tracked positions",
}

var positionsUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Sweep open positions against price history and close any that hit an exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(cfg.Store, log)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close() //nolint:errcheck

		ctx, cancel := signalContext()
		defer cancel()

		upd := tracker.NewUpdater(st, datasource.NewDefaultAggregator(log), cfg.Tracker, log)
		result, err := upd.UpdateAll(ctx)
		if err != nil {
			return fmt.Errorf("position update failed: %w", err)
		}
		return printJSON(result)
	},
}

var positionsBackfillCmd = &cobra.Command{
	Use:   "backfill [position-id]",
	Short: "Re-derive one position's exit from its full price history",
	Long:  "Replay every daily bar since entry through the exit rules for a single position. An open position that should have closed is closed; a closed position is only reported, never rewritten.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(cfg.Store, log)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close() //nolint:errcheck

		pos, err := st.GetPosition(args[0])
		if err != nil {
			return fmt.Errorf("load position: %w", err)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()

		agg := datasource.NewDefaultAggregator(log)
		bars, err := agg.HistoricalBars(ctx, pos.Ticker, pos.EntryDate, time.Now())
		if err != nil {
			return fmt.Errorf("bars for %s: %w", pos.Ticker, err)
		}

		exit := tracker.ScanBars(pos, bars, cfg.Tracker.MaxHoldingDays)
		if exit == nil {
			fmt.Printf("%s (%s): no exit triggered across %d bars, position stays %s\n",
				pos.ID, pos.Ticker, len(bars), pos.Outcome)
			return nil
		}
		if !pos.Open() {
			fmt.Printf("%s (%s): already closed as %s; history says %s at %.2f on %s\n",
				pos.ID, pos.Ticker, pos.Outcome, exit.Reason, exit.Price,
				exit.Date.Format("2006-01-02"))
			return nil
		}

		closed, err := st.ClosePosition(pos.ID, exit.Reason, exit.Date, exit.Price, exit.ReturnPercent)
		if err != nil {
			return fmt.Errorf("close position: %w", err)
		}
		return printJSON(closed)
	},
}

var positionsSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print the aggregate track record",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(cfg.Store, log)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close() //nolint:errcheck

		positions, err := st.ListPositions("")
		if err != nil {
			return err
		}
		return printJSON(tracker.Summarize(positions))
	},
}

func init() {
	positionsCmd.AddCommand(positionsUpdateCmd)
	positionsCmd.AddCommand(positionsBackfillCmd)
	positionsCmd.AddCommand(positionsSummaryCmd)
}

// --- Serve Command ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(cfg.Store, log)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close() //nolint:errcheck

		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		log.Info("starting API server", zap.String("addr", addr))
		return api.NewServer(cfg, st, log).ListenAndServe(addr)
	},
}

// --- Schedule Command ---

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the recurring pipeline and position-update jobs",
	Long:  "Run as a long-lived process: the brief pipeline and the position sweep fire on their configured cron schedules (US Eastern time).",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, st, err := buildPipeline()
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		upd := tracker.NewUpdater(st, datasource.NewDefaultAggregator(log), cfg.Tracker, log)

		sched := scheduler.New(log)
		err = sched.Register(cfg.Schedule,
			func(ctx context.Context) error {
				_, err := p.Run(ctx)
				return err
			},
			func(ctx context.Context) error {
				_, err := upd.UpdateAll(ctx)
				return err
			},
		)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		log.Info("scheduler running",
			zap.String("pipeline", cfg.Schedule.PipelineCron),
			zap.String("positions", cfg.Schedule.PositionsCron))
		sched.Run(ctx)
		return nil
	},
}

// --- Helpers ---

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
