package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/vestigolabs/vestigo/internal/common"
	"github.com/vestigolabs/vestigo/internal/interfaces"
	"github.com/vestigolabs/vestigo/internal/models"
	"github.com/vestigolabs/vestigo/internal/services/crawler"
	"github.com/vestigolabs/vestigo/internal/services/fetcher"
	"github.com/vestigolabs/vestigo/internal/services/llm"
	"github.com/vestigolabs/vestigo/internal/services/ranking"
	"github.com/vestigolabs/vestigo/internal/services/research"
	"github.com/vestigolabs/vestigo/internal/services/search"
	badgerstore "github.com/vestigolabs/vestigo/internal/storage/badger"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles  configPaths
	collectURL   = flag.String("collect", "", "Collect evidence for the subject at this URL")
	researchName = flag.String("research", "", "Run the full research pipeline for this subject name")
	rankFile     = flag.String("rank", "", "Rank the content item batch in this JSON file")
	schedule     = flag.Bool("schedule", false, "Run ranking periodically on the -rank file using the configured cron expression")
	subjectName  = flag.String("name", "", "Subject name (with -collect)")
	subjectURL   = flag.String("url", "", "Subject URL (with -research)")
	identifier   = flag.String("identifier", "", "Subject registry identifier")
	outFile      = flag.String("out", "", "Write JSON output to this file instead of stdout")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

// app bundles the wired services for one process lifetime
type app struct {
	config   *common.Config
	logger   arbor.ILogger
	storage  interfaces.StorageManager
	llm      interfaces.LLMService
	crawler  *crawler.Service
	research *research.Service
	ranking  *ranking.Service
}

func main() {
	common.InstallCrashHandler("")
	defer common.RecoverWithCrashFile()

	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Vestigo version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	// Auto-discover a config file next to the binary or the project root
	if len(configFiles) == 0 {
		for _, candidate := range []string{"vestigo.toml", "deployments/local/vestigo.toml"} {
			if _, err := os.Stat(candidate); err == nil {
				configFiles = append(configFiles, candidate)
				break
			}
		}
	}

	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		arbor.NewLogger().Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	logger := common.InitLogger(config)
	common.PrintBanner(common.GetFullVersion())

	logger.Info().
		Strs("config_files", configFiles).
		Str("environment", config.Environment).
		Str("llm_provider", config.LLM.Provider).
		Str("search_provider", config.Search.Provider).
		Msg("Configuration loaded")

	application, err := newApp(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize services")
		os.Exit(1)
	}
	defer application.close()

	ctx, cancel := signalContext()
	defer cancel()

	switch {
	case *collectURL != "":
		err = application.runCollect(ctx, *collectURL)
	case *researchName != "":
		err = application.runResearch(ctx, *researchName)
	case *schedule:
		err = application.runSchedule(ctx)
	case *rankFile != "":
		err = application.runRank(ctx)
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		logger.Fatal().Err(err).Msg("Run failed")
		os.Exit(1)
	}
}

func newApp(config *common.Config, logger arbor.ILogger) (*app, error) {
	storageManager, err := badgerstore.NewManager(logger, &config.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	searchService, err := search.NewSearchService(&config.Search, logger)
	if err != nil {
		storageManager.Close()
		return nil, err
	}

	llmService, err := llm.NewLLMService(&config.LLM, logger)
	if err != nil {
		storageManager.Close()
		return nil, err
	}

	fetchService := fetcher.NewService(&config.Fetch, storageManager.FetchCache(), storageManager.SourceHealth(), logger)
	crawlService := crawler.NewService(fetchService, searchService, &config.Crawl, logger)

	return &app{
		config:   config,
		logger:   logger,
		storage:  storageManager,
		llm:      llmService,
		crawler:  crawlService,
		research: research.NewService(crawlService, searchService, llmService, &config.Research, &config.Crawl, logger),
		ranking:  ranking.NewService(&config.Ranking, logger),
	}, nil
}

func (a *app) close() {
	if a.llm != nil {
		a.llm.Close()
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Storage close failed")
		}
	}
}

func (a *app) runCollect(ctx context.Context, url string) error {
	subject := models.Subject{
		Name:       *subjectName,
		URL:        url,
		Identifier: *identifier,
	}

	evidence, trace := a.crawler.CollectEvidence(ctx, crawler.CollectRequest{Subject: subject})

	return writeJSON(map[string]any{
		"evidence": evidence,
		"trace":    trace,
	})
}

func (a *app) runResearch(ctx context.Context, name string) error {
	report, err := a.research.RunResearch(ctx, research.ResearchRequest{
		Subject: models.Subject{
			Name:       name,
			URL:        *subjectURL,
			Identifier: *identifier,
		},
	})
	if err != nil {
		return err
	}
	return writeJSON(report)
}

func (a *app) runRank(ctx context.Context) error {
	ranked, err := a.rankOnce(ctx)
	if err != nil {
		return err
	}
	return writeJSON(ranked)
}

func (a *app) rankOnce(ctx context.Context) ([]models.ScoredContentItem, error) {
	data, err := os.ReadFile(*rankFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read rank batch: %w", err)
	}

	var req models.RankRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse rank batch: %w", err)
	}

	return a.ranking.Rank(ctx, req)
}

// runSchedule reruns the ranking batch on the configured cron expression
// until interrupted.
func (a *app) runSchedule(ctx context.Context) error {
	if *rankFile == "" {
		return fmt.Errorf("-schedule requires -rank <file>")
	}

	expr := a.config.Schedule.Cron
	scheduler := cron.New()
	_, err := scheduler.AddFunc(expr, func() {
		runID := common.NewRankingID()
		ranked, err := a.rankOnce(ctx)
		if err != nil {
			a.logger.Error().Err(err).Str("run_id", runID).Msg("Scheduled ranking run failed")
			return
		}
		if err := writeJSON(ranked); err != nil {
			a.logger.Error().Err(err).Str("run_id", runID).Msg("Failed to write ranking output")
			return
		}
		a.logger.Info().Str("run_id", runID).Int("ranked", len(ranked)).Msg("Scheduled ranking run completed")
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}

	a.logger.Info().Str("cron", expr).Str("batch", *rankFile).Msg("Scheduler started - press Ctrl+C to stop")
	scheduler.Start()

	<-ctx.Done()
	a.logger.Info().Msg("Shutting down scheduler")
	stopCtx := scheduler.Stop()
	<-stopCtx.Done()
	return nil
}

// signalContext cancels on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()
	return ctx, cancel
}

func writeJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	data = append(data, '\n')

	if *outFile != "" {
		return os.WriteFile(*outFile, data, 0644)
	}
	_, err = os.Stdout.Write(data)
	return err
}
