package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	toml "github.com/pelletier/go-toml/v2"
)

// Config is the root application configuration, loaded from TOML files with
// environment variable overrides. Priority: CLI flags > env > file > defaults.
type Config struct {
	Environment string `toml:"environment"`

	Logging  LoggingConfig  `toml:"logging"`
	Storage  StorageConfig  `toml:"storage"`
	Fetch    FetchConfig    `toml:"fetch"`
	Crawl    CrawlConfig    `toml:"crawl"`
	Research ResearchConfig `toml:"research"`
	Ranking  RankingConfig  `toml:"ranking"`
	LLM      LLMConfig      `toml:"llm"`
	Search   SearchConfig   `toml:"search"`
	Schedule ScheduleConfig `toml:"schedule"`
}

// LoggingConfig controls log output destinations and level
type LoggingConfig struct {
	Level  string   `toml:"level"`
	Output []string `toml:"output"`
}

// StorageConfig controls the embedded BadgerDB store
type StorageConfig struct {
	Path string `toml:"path" validate:"required"`
}

// FetchConfig tunes the resilient fetch layer
type FetchConfig struct {
	UserAgent         string        `toml:"user_agent"`
	RequestTimeout    time.Duration `toml:"request_timeout" validate:"gt=0"`
	MaxAttempts       int           `toml:"max_attempts" validate:"gte=1,lte=10"`
	InitialBackoff    time.Duration `toml:"initial_backoff" validate:"gt=0"`
	MaxBackoff        time.Duration `toml:"max_backoff" validate:"gtefield=InitialBackoff"`
	BackoffMultiplier float64       `toml:"backoff_multiplier" validate:"gte=1"`
	CacheTTL          time.Duration `toml:"cache_ttl"`
	Proxies           []string      `toml:"proxies"`
	RequestsPerSecond float64       `toml:"requests_per_second" validate:"gt=0"`
	BurstSize         int           `toml:"burst_size" validate:"gte=1"`
	FailureThreshold  int           `toml:"failure_threshold" validate:"gte=1"`
	FailureCooloff    time.Duration `toml:"failure_cooloff"`
}

// CrawlConfig holds the frontier crawler budgets and classification tables
type CrawlConfig struct {
	MaxPages           int           `toml:"max_pages" validate:"gte=1"`
	MinPages           int           `toml:"min_pages" validate:"gte=0,ltefield=MaxPages"`
	MinRuntime         time.Duration `toml:"min_runtime" validate:"gte=0"`
	MaxRuntime         time.Duration `toml:"max_runtime" validate:"gtefield=MinRuntime"`
	MaxDepth           int           `toml:"max_depth" validate:"gte=0"`
	MaxLinksPerPage    int           `toml:"max_links_per_page" validate:"gte=1"`
	MaxSitemapURLs     int           `toml:"max_sitemap_urls" validate:"gte=0"`
	MaxInternalPages   int           `toml:"max_internal_pages" validate:"gte=0"`
	MaxExternalPages   int           `toml:"max_external_pages" validate:"gte=0"`
	MaxRegistryPages   int           `toml:"max_registry_pages" validate:"gte=0"`
	PerDomainCap       int           `toml:"per_domain_cap" validate:"gte=1"`
	FrontierMultiplier int           `toml:"frontier_multiplier" validate:"gte=1"`
	MinContentChars    int           `toml:"min_content_chars" validate:"gte=0"`
	RegistryDomains    []string      `toml:"registry_domains"`
	TrustedDomains     []string      `toml:"trusted_domains"`
	ContentPaths       []string      `toml:"content_paths"`
	HintKeywords       []string      `toml:"hint_keywords"`
	NoisePhrases       []string      `toml:"noise_phrases"`
}

// ResearchConfig tunes the multi-task orchestrator
type ResearchConfig struct {
	MaxWorkers      int `toml:"max_workers" validate:"gte=1,lte=16"`
	SearchRounds    int `toml:"search_rounds" validate:"gte=1,lte=4"`
	ResultsPerQuery int `toml:"results_per_query" validate:"gte=1"`
	MaxPagesPerTask int `toml:"max_pages_per_task" validate:"gte=1"`
	KeepTopPages    int `toml:"keep_top_pages" validate:"gte=1"`
}

// RankingWindowConfig overrides the time window for one item kind
type RankingWindowConfig struct {
	LookbackDays  int `toml:"lookback_days" validate:"gte=0"`
	LookaheadDays int `toml:"lookahead_days" validate:"gte=0"`
}

// RankingConfig tunes the content ranking pipeline. LookbackDays/LookaheadDays
// form the default window; Windows overrides it per item kind.
type RankingConfig struct {
	FreshnessWeight  float64                        `toml:"freshness_weight" validate:"gte=0,lte=1"`
	AuthorityWeight  float64                        `toml:"authority_weight" validate:"gte=0,lte=1"`
	SignalWeight     float64                        `toml:"signal_weight" validate:"gte=0,lte=1"`
	DiversityStep    float64                        `toml:"diversity_step" validate:"gte=0"`
	DiversityCap     float64                        `toml:"diversity_cap" validate:"gte=0"`
	MaxEventsDomain  int                            `toml:"max_events_per_domain" validate:"gte=1"`
	MaxInsightDomain int                            `toml:"max_insights_per_domain" validate:"gte=1"`
	LookbackDays     int                            `toml:"lookback_days" validate:"gte=1"`
	LookaheadDays    int                            `toml:"lookahead_days" validate:"gte=1"`
	Windows          map[string]RankingWindowConfig `toml:"windows"`
	EventKeywords    []string                       `toml:"event_keywords"`
	InsightKeywords  []string                       `toml:"insight_keywords"`
	OutputCap        int                            `toml:"output_cap" validate:"gte=1"`
	PermitUnknownAge bool                           `toml:"permit_unknown_age"`
}

// LLM provider identifiers
const (
	LLMProviderClaude   = "claude"
	LLMProviderGemini   = "gemini"
	LLMProviderDisabled = "disabled"
)

// LLMConfig selects and configures the text-generation provider
type LLMConfig struct {
	Provider string       `toml:"provider" validate:"oneof=claude gemini disabled"`
	Claude   ClaudeConfig `toml:"claude"`
	Gemini   GeminiConfig `toml:"gemini"`
}

// ClaudeConfig holds Anthropic API settings
type ClaudeConfig struct {
	APIKey    string        `toml:"api_key"`
	Model     string        `toml:"model"`
	MaxTokens int           `toml:"max_tokens" validate:"gte=1"`
	Timeout   time.Duration `toml:"timeout"`
}

// GeminiConfig holds Google Gemini API settings
type GeminiConfig struct {
	APIKey  string        `toml:"api_key"`
	Model   string        `toml:"model"`
	Timeout time.Duration `toml:"timeout"`
}

// SearchConfig selects and configures the web search provider
type SearchConfig struct {
	Provider   string        `toml:"provider" validate:"oneof=duckduckgo disabled"`
	Endpoint   string        `toml:"endpoint"`
	Timeout    time.Duration `toml:"timeout"`
	MaxResults int           `toml:"max_results" validate:"gte=1"`
}

// ScheduleConfig controls the periodic ranking runs in scheduler mode
type ScheduleConfig struct {
	Enabled bool   `toml:"enabled"`
	Cron    string `toml:"cron"`
}

// NewDefaultConfig returns configuration with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		Storage: StorageConfig{
			Path: "./data/vestigo",
		},
		Fetch: FetchConfig{
			UserAgent:         "Mozilla/5.0 (compatible; vestigo/1.0)",
			RequestTimeout:    20 * time.Second,
			MaxAttempts:       3,
			InitialBackoff:    500 * time.Millisecond,
			MaxBackoff:        6 * time.Second,
			BackoffMultiplier: 2.0,
			CacheTTL:          24 * time.Hour,
			RequestsPerSecond: 2.0,
			BurstSize:         1,
			FailureThreshold:  6,
			FailureCooloff:    2 * time.Hour,
		},
		Crawl: CrawlConfig{
			MaxPages:           16,
			MinPages:           6,
			MinRuntime:         10 * time.Second,
			MaxRuntime:         45 * time.Second,
			MaxDepth:           2,
			MaxLinksPerPage:    180,
			MaxSitemapURLs:     100,
			MaxInternalPages:   16,
			MaxExternalPages:   12,
			MaxRegistryPages:   8,
			PerDomainCap:       4,
			FrontierMultiplier: 4,
			MinContentChars:    80,
			ContentPaths: []string{
				"/about", "/about-us", "/company", "/team", "/people",
				"/careers", "/jobs", "/news", "/blog", "/press", "/products",
				"/services", "/contact",
			},
			HintKeywords: []string{
				"about", "team", "founder", "career", "product", "service",
				"news", "press", "company", "contact",
			},
			NoisePhrases: []string{
				"privacy policy", "terms of service", "cookie policy",
				"all rights reserved",
			},
		},
		Research: ResearchConfig{
			MaxWorkers:      4,
			SearchRounds:    2,
			ResultsPerQuery: 5,
			MaxPagesPerTask: 8,
			KeepTopPages:    6,
		},
		Ranking: RankingConfig{
			FreshnessWeight:  0.35,
			AuthorityWeight:  0.25,
			SignalWeight:     0.40,
			DiversityStep:    1.0,
			DiversityCap:     3.0,
			MaxEventsDomain:  12,
			MaxInsightDomain: 5,
			LookbackDays:     45,
			LookaheadDays:    90,
			Windows: map[string]RankingWindowConfig{
				"paper": {LookbackDays: 14},
				"post":  {LookbackDays: 7},
				"event": {LookaheadDays: 90},
				"web":   {LookbackDays: 7, LookaheadDays: 7},
			},
			EventKeywords: []string{
				"demo day", "pitch", "meetup", "event", "conference",
				"summit", "workshop", "seminar", "hackathon",
			},
			InsightKeywords: []string{
				"ai", "llm", "model", "agent", "paper", "benchmark",
				"open-source", "research", "funding",
			},
			OutputCap:        40,
			PermitUnknownAge: true,
		},
		LLM: LLMConfig{
			Provider: LLMProviderDisabled,
			Claude: ClaudeConfig{
				Model:     "claude-haiku-3-5-20241022",
				MaxTokens: 4096,
				Timeout:   2 * time.Minute,
			},
			Gemini: GeminiConfig{
				Model:   "gemini-3-flash-preview",
				Timeout: 2 * time.Minute,
			},
		},
		Search: SearchConfig{
			Provider:   "duckduckgo",
			Endpoint:   "https://html.duckduckgo.com/html/",
			Timeout:    15 * time.Second,
			MaxResults: 8,
		},
		Schedule: ScheduleConfig{
			Enabled: false,
			Cron:    "0 */6 * * *",
		},
	}
}

// LoadFromFiles loads configuration from TOML files in order, later files
// overriding earlier ones, then applies environment variable overrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks configuration bounds
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Ranking.FreshnessWeight+c.Ranking.AuthorityWeight+c.Ranking.SignalWeight <= 0 {
		return fmt.Errorf("invalid configuration: ranking weights must not all be zero")
	}
	return nil
}

func applyEnvOverrides(config *Config) {
	if env := os.Getenv("VESTIGO_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if level := os.Getenv("VESTIGO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("VESTIGO_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	if path := os.Getenv("VESTIGO_BADGER_PATH"); path != "" {
		config.Storage.Path = path
	}

	if userAgent := os.Getenv("VESTIGO_FETCH_USER_AGENT"); userAgent != "" {
		config.Fetch.UserAgent = userAgent
	}
	if timeout := os.Getenv("VESTIGO_FETCH_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Fetch.RequestTimeout = d
		}
	}
	if attempts := os.Getenv("VESTIGO_FETCH_MAX_ATTEMPTS"); attempts != "" {
		if n, err := strconv.Atoi(attempts); err == nil {
			config.Fetch.MaxAttempts = n
		}
	}
	if proxies := os.Getenv("VESTIGO_FETCH_PROXIES"); proxies != "" {
		pool := []string{}
		for _, p := range strings.Split(proxies, ",") {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				pool = append(pool, trimmed)
			}
		}
		config.Fetch.Proxies = pool
	}
	if ttl := os.Getenv("VESTIGO_FETCH_CACHE_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			config.Fetch.CacheTTL = d
		}
	}

	if maxPages := os.Getenv("VESTIGO_CRAWL_MAX_PAGES"); maxPages != "" {
		if n, err := strconv.Atoi(maxPages); err == nil {
			config.Crawl.MaxPages = n
		}
	}
	if maxRuntime := os.Getenv("VESTIGO_CRAWL_MAX_RUNTIME"); maxRuntime != "" {
		if d, err := time.ParseDuration(maxRuntime); err == nil {
			config.Crawl.MaxRuntime = d
		}
	}
	if maxDepth := os.Getenv("VESTIGO_CRAWL_MAX_DEPTH"); maxDepth != "" {
		if n, err := strconv.Atoi(maxDepth); err == nil {
			config.Crawl.MaxDepth = n
		}
	}

	if workers := os.Getenv("VESTIGO_RESEARCH_MAX_WORKERS"); workers != "" {
		if n, err := strconv.Atoi(workers); err == nil {
			config.Research.MaxWorkers = n
		}
	}

	if provider := os.Getenv("VESTIGO_LLM_PROVIDER"); provider != "" {
		config.LLM.Provider = provider
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && config.LLM.Claude.APIKey == "" {
		config.LLM.Claude.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" && config.LLM.Gemini.APIKey == "" {
		config.LLM.Gemini.APIKey = key
	}

	if provider := os.Getenv("VESTIGO_SEARCH_PROVIDER"); provider != "" {
		config.Search.Provider = provider
	}

	if cronExpr := os.Getenv("VESTIGO_SCHEDULE_CRON"); cronExpr != "" {
		config.Schedule.Cron = cronExpr
	}
}
