package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeovahfialho/grid-analyzer/internal/config"
	"github.com/jeovahfialho/grid-analyzer/internal/domain"
	"github.com/jeovahfialho/grid-analyzer/internal/export"
	"github.com/jeovahfialho/grid-analyzer/internal/grid"
	"github.com/jeovahfialho/grid-analyzer/internal/ingestion"
	"github.com/jeovahfialho/grid-analyzer/internal/service"
	"github.com/jeovahfialho/grid-analyzer/internal/storage/cache"
	"github.com/jeovahfialho/grid-analyzer/internal/storage/postgres"
	"github.com/jeovahfialho/grid-analyzer/pkg/logger"
)

type outputOptions struct {
	outDir  string
	details bool
	account string
	month   string
}

func main() {
	var rootCmd = &cobra.Command{
		Use:   "grid-analyzer",
		Short: "Grid trade profit reconciliation CLI",
		Long: `Matches buy and sell fills per account, instrument and month,
most recent buy first, and reports realized profit.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			verbose, _ := cmd.Flags().GetBool("verbose")
			level := "warn"
			if verbose {
				level = "debug"
			}
			logFile, _ := cmd.Flags().GetString("log-file")
			return logger.Init(logger.Options{Level: level, Development: true, File: logFile})
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Close()
		},
	}
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose logging")
	rootCmd.PersistentFlags().String("log-file", "", "Also write logs to this rotating file")

	addOutputFlags := func(cmd *cobra.Command) {
		cmd.Flags().StringP("out", "o", "", "Directory for CSV export")
		cmd.Flags().BoolP("details", "d", false, "Print every matched pair")
		cmd.Flags().StringP("account", "a", "", "Rank stocks of this account only")
		cmd.Flags().StringP("month", "m", "", "Rank stocks of this month only (YYYY-MM)")
	}

	// analyze command
	var analyzeCmd = &cobra.Command{
		Use:   "analyze [files...]",
		Short: "Analyze exported broker JSON files",
		Long: `Analyzes one or more exported trade history files. Files are parsed
concurrently and their trades concatenated in argument order.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			namesFile, _ := cmd.Flags().GetString("names")
			return analyzeFiles(cmd.Context(), args, namesFile, readOutputOptions(cmd))
		},
	}
	analyzeCmd.Flags().StringP("names", "n", "", "YAML file mapping stock code to name")
	addOutputFlags(analyzeCmd)

	// fetch command
	var fetchCmd = &cobra.Command{
		Use:   "fetch",
		Short: "Fetch trade history from the broker and analyze it",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, _ := cmd.Flags().GetString("start")
			end, _ := cmd.Flags().GetString("end")
			save, _ := cmd.Flags().GetString("save")
			return fetchAndAnalyze(cmd.Context(), start, end, save, readOutputOptions(cmd))
		},
	}
	fetchCmd.Flags().String("start", "", "Start date YYYYMMDD (default: first day of this month)")
	fetchCmd.Flags().String("end", "", "End date YYYYMMDD (default: last day of this month)")
	fetchCmd.Flags().String("save", "", "Write the raw history response to this file")
	addOutputFlags(fetchCmd)

	// sync command
	var syncCmd = &cobra.Command{
		Use:   "sync",
		Short: "Store broker trade history in PostgreSQL",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, _ := cmd.Flags().GetString("start")
			end, _ := cmd.Flags().GetString("end")
			return syncBroker(cmd.Context(), start, end)
		},
	}
	syncCmd.Flags().String("start", "", "Start date YYYYMMDD (default: first day of this month)")
	syncCmd.Flags().String("end", "", "End date YYYYMMDD (default: last day of this month)")

	// report command
	var reportCmd = &cobra.Command{
		Use:   "report",
		Short: "Analyze trades stored in PostgreSQL",
		RunE: func(cmd *cobra.Command, args []string) error {
			return reportStored(cmd.Context(), readOutputOptions(cmd))
		},
	}
	addOutputFlags(reportCmd)

	// health command
	var healthCmd = &cobra.Command{
		Use:   "health",
		Short: "Check database, cache and broker configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkHealth(cmd.Context())
		},
	}

	rootCmd.AddCommand(analyzeCmd, fetchCmd, syncCmd, reportCmd, healthCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func readOutputOptions(cmd *cobra.Command) outputOptions {
	var opts outputOptions
	opts.outDir, _ = cmd.Flags().GetString("out")
	opts.details, _ = cmd.Flags().GetBool("details")
	opts.account, _ = cmd.Flags().GetString("account")
	opts.month, _ = cmd.Flags().GetString("month")
	return opts
}

func newAnalysisService(cfg *config.Config) *service.AnalysisService {
	analyzer := grid.NewAnalyzer(grid.NewNormalizer(cfg.Location()), cfg.Workers)
	return service.NewAnalysisService(analyzer, ingestion.NewFileReader(cfg.Workers))
}

func loadNames(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	names, err := ingestion.LoadNames(path)
	if err != nil {
		return nil, err
	}
	fmt.Printf("Loaded %d instrument name(s) from %s\n", len(names), path)
	return names, nil
}

func analyzeFiles(ctx context.Context, files []string, namesFile string, opts outputOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if namesFile == "" {
		namesFile = cfg.NamesFile
	}
	names, err := loadNames(namesFile)
	if err != nil {
		return err
	}

	var paths []string
	for _, pattern := range files {
		matches, err := filepath.Glob(pattern)
		if err != nil || len(matches) == 0 {
			paths = append(paths, pattern)
			continue
		}
		paths = append(paths, matches...)
	}

	start := time.Now()
	report, errs := newAnalysisService(cfg).AnalyzeFiles(ctx, paths, names)
	if len(errs) == len(paths) {
		printLogs(report)
		return fmt.Errorf("no file could be read")
	}

	if err := present(report, opts); err != nil {
		return err
	}
	fmt.Printf("\nAnalyzed %d file(s) in %s\n", len(paths)-len(errs), time.Since(start).Round(time.Millisecond))
	return nil
}

func fetchAndAnalyze(ctx context.Context, start, end, save string, opts outputOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !cfg.BrokerConfigured() {
		return fmt.Errorf("set BROKER_USER_ID, BROKER_FUND_KEY and BROKER_COOKIE first")
	}
	start, end = defaultRange(cfg, start, end)

	syncService := service.NewSyncService(service.SyncConfig{
		Broker:   ingestion.NewBrokerClient(cfg),
		Location: cfg.Location(),
	})

	log := grid.NewRunLog(logger.Named("fetch"))
	fetched, err := syncService.Fetch(ctx, start, end, log)
	if err != nil {
		return err
	}
	for _, line := range log.Entries() {
		fmt.Println(line)
	}

	if save != "" {
		if err := os.WriteFile(save, fetched.History, 0644); err != nil {
			return fmt.Errorf("error saving history: %w", err)
		}
		fmt.Printf("History saved to %s\n", save)
	}

	analyzer := grid.NewAnalyzer(grid.NewNormalizer(cfg.Location()), cfg.Workers)
	report := analyzer.Run(fetched.Trades, fetched.Names, grid.NewRunLog(logger.Named("analysis")))
	return present(report, opts)
}

func syncBroker(ctx context.Context, start, end string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !cfg.BrokerConfigured() {
		return fmt.Errorf("set BROKER_USER_ID, BROKER_FUND_KEY and BROKER_COOKIE first")
	}
	start, end = defaultRange(cfg, start, end)

	db, err := connectDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	syncCfg := service.SyncConfig{
		Broker:     ingestion.NewBrokerClient(cfg),
		Normalizer: grid.NewNormalizer(cfg.Location()),
		Loader:     ingestion.NewBulkLoader(cfg.BatchSize),
		Fills:      postgres.NewFillRepository(db, cfg.Location()),
		Names:      postgres.NewNameRepository(db),
		NamesFile:  cfg.NamesFile,
		Location:   cfg.Location(),
	}
	if redisCache := connectRedis(cfg); redisCache != nil {
		defer redisCache.Close()
		syncCfg.Cache = redisCache
	}

	fmt.Printf("Syncing %s-%s...\n", start, end)
	result, err := service.NewSyncService(syncCfg).Sync(ctx, start, end)
	if err != nil {
		return err
	}

	for _, line := range result.Logs {
		fmt.Println(line)
	}
	fmt.Printf("\nFetched: %d\nStored: %d\nNames: %d\nDuration: %s\n",
		result.Fetched, result.Stored, result.Names, result.Duration)
	return nil
}

func reportStored(ctx context.Context, opts outputOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	db, err := connectDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	filter := domain.TradeFilter{Account: opts.account}
	if opts.month != "" {
		month, err := domain.ParseMonth(opts.month)
		if err != nil {
			return err
		}
		from := time.Date(month.Year, month.Month, 1, 0, 0, 0, 0, cfg.Location())
		to := from.AddDate(0, 1, 0)
		filter.StartDate, filter.EndDate = &from, &to
	}

	svc := newAnalysisService(cfg).WithStore(postgres.NewFillRepository(db, cfg.Location()), postgres.NewNameRepository(db))
	report, err := svc.AnalyzeStored(ctx, filter)
	if err != nil {
		return err
	}
	return present(report, opts)
}

func present(report *domain.Report, opts outputOptions) error {
	printLogs(report)
	if report.Empty() {
		fmt.Println("\nNo matched trades.")
		return nil
	}

	fmt.Println()
	if err := export.WriteSummaryText(os.Stdout, report); err != nil {
		return err
	}

	if opts.account != "" || opts.month != "" {
		rank := grid.StockFilter{Account: opts.account}
		if opts.month != "" {
			month, err := domain.ParseMonth(opts.month)
			if err != nil {
				return err
			}
			rank.Month = &month
		}
		fmt.Println("\nStock ranking:")
		for i, s := range grid.FilterStocks(report.Stocks, rank) {
			label := s.Instrument
			if s.Name != "" {
				label = fmt.Sprintf("%s (%s)", s.Name, s.Instrument)
			}
			fmt.Printf("%3d. %-10s %s %-30s %s\n", i+1, s.Account, s.Month, label, s.StockTotalProfit.StringFixed(2))
		}
	}

	if opts.details {
		fmt.Println()
		if err := export.WritePairText(os.Stdout, report); err != nil {
			return err
		}
	}

	if opts.outDir != "" {
		written, err := export.WriteCSV(opts.outDir, report)
		if err != nil {
			return err
		}
		fmt.Println()
		for _, path := range written {
			fmt.Printf("Saved %s\n", path)
		}
	}
	return nil
}

func printLogs(report *domain.Report) {
	for _, line := range report.Logs {
		fmt.Println(line)
	}
}

func defaultRange(cfg *config.Config, start, end string) (string, string) {
	first, last := ingestion.CurrentMonthRange(time.Now().In(cfg.Location()))
	if start == "" {
		start = first
	}
	if end == "" {
		end = last
	}
	return start, end
}

func connectDB(ctx context.Context, cfg *config.Config) (*postgres.DB, error) {
	db, err := postgres.NewDB(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func connectRedis(cfg *config.Config) *cache.RedisCache {
	redisCache, err := cache.NewRedisCache(cfg)
	if err != nil {
		logger.Debug("redis not available", zap.Error(err))
		return nil
	}
	return redisCache
}

func checkHealth(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fmt.Println("Checking system health...")
	fmt.Println()

	fmt.Print("PostgreSQL: ")
	db, err := postgres.NewDB(cfg)
	if err != nil {
		fmt.Printf("error: %v\n", err)
	} else {
		defer db.Close()
		if err := db.HealthCheck(ctx); err != nil {
			fmt.Printf("error: %v\n", err)
		} else {
			fmt.Println("OK")
		}
	}

	fmt.Print("Redis: ")
	redisCache := connectRedis(cfg)
	if redisCache == nil {
		fmt.Println("not available")
	} else {
		defer redisCache.Close()
		if err := redisCache.HealthCheck(ctx); err != nil {
			fmt.Printf("error: %v\n", err)
		} else {
			fmt.Println("OK")
		}
	}

	fmt.Print("Broker credentials: ")
	if cfg.BrokerConfigured() {
		fmt.Println("configured")
	} else {
		fmt.Println("missing")
	}

	fmt.Print("Timezone: ")
	fmt.Println(cfg.Location())

	return nil
}
