package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
	"golang.org/x/text/language"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./gh-digest.db" description:"SQLite database file"`

	// Application configuration
	TargetsDir        string `long:"targets-dir" env:"TARGETS_DIR" default:"./targets" description:"Directory containing target configuration files"`
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl           string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://digest.example.com)"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of background workers"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"30" description:"Scheduler interval in seconds"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`
	LookbackDays      int    `long:"lookback-days" env:"LOOKBACK_DAYS" default:"7" description:"How far back the first detection run looks"`

	// GitHub configuration
	GitHubAPIURL    string  `long:"github-api-url" env:"GITHUB_API_URL" default:"https://api.github.com" description:"GitHub REST API base URL"`
	GitHubToken     string  `long:"github-token" env:"GITHUB_TOKEN" description:"GitHub token (optional, raises rate limits)"`
	GitHubPageSize  int     `long:"github-page-size" env:"GITHUB_PAGE_SIZE" default:"30" description:"Items requested per GitHub API page"`
	GitHubRateLimit float64 `long:"github-rate-limit" env:"GITHUB_RATE_LIMIT" default:"1" description:"GitHub API requests per second"`
	GitHubMaxPages  int     `long:"github-max-pages" env:"GITHUB_MAX_PAGES" default:"10" description:"Maximum pages followed per listing"`

	// Translator configuration
	TranslatorURL     string `long:"translator-url" env:"TRANSLATOR_URL" description:"OpenAI-compatible API base URL (translation disabled when empty)"`
	TranslatorAPIKey  string `long:"translator-api-key" env:"TRANSLATOR_API_KEY" description:"Translator API key"`
	TranslatorModel   string `long:"translator-model" env:"TRANSLATOR_MODEL" default:"gpt-4o-mini" description:"Translator model name"`
	TranslatorTimeout int    `long:"translator-timeout" env:"TRANSLATOR_TIMEOUT" default:"60" description:"Translator request timeout in seconds"`
	TargetLanguage    string `long:"target-language" env:"TARGET_LANGUAGE" default:"ja" description:"BCP 47 tag of the translation language"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"gh-digest/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

// Load parses flags and environment variables. It returns nil, nil when help was requested.
func Load(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:            raw.DBPath,
		TargetsDir:        raw.TargetsDir,
		Port:              raw.Port,
		BaseUrl:           raw.BaseUrl,
		WorkerCount:       raw.WorkerCount,
		SchedulerInterval: raw.SchedulerInterval,
		APIAccessKey:      raw.APIAccessKey,
		LookbackDays:      raw.LookbackDays,
		GitHubAPIURL:      raw.GitHubAPIURL,
		GitHubToken:       raw.GitHubToken,
		GitHubPageSize:    raw.GitHubPageSize,
		GitHubRateLimit:   raw.GitHubRateLimit,
		GitHubMaxPages:    raw.GitHubMaxPages,
		TranslatorURL:     raw.TranslatorURL,
		TranslatorAPIKey:  raw.TranslatorAPIKey,
		TranslatorModel:   raw.TranslatorModel,
		TranslatorTimeout: raw.TranslatorTimeout,
		TargetLanguage:    raw.TargetLanguage,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	return cfg, nil
}

func (c *Cfg) validate() error {
	if c.WorkerCount <= 0 {
		return fmt.Errorf("worker count must be positive")
	}
	if c.SchedulerInterval <= 0 {
		return fmt.Errorf("scheduler interval must be positive")
	}
	if c.GitHubPageSize <= 0 || c.GitHubPageSize > 100 {
		return fmt.Errorf("github page size must be between 1 and 100")
	}
	if c.GitHubRateLimit <= 0 {
		return fmt.Errorf("github rate limit must be positive")
	}
	if _, err := language.Parse(c.TargetLanguage); err != nil {
		return fmt.Errorf("invalid target language %q: %w", c.TargetLanguage, err)
	}
	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
