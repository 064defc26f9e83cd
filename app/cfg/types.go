package cfg

import "time"

type Cfg struct {
	// Database configuration
	DBPath string

	// Application configuration
	TargetsDir        string
	Port              string
	BaseUrl           string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string
	LookbackDays      int

	// GitHub configuration
	GitHubAPIURL    string
	GitHubToken     string
	GitHubPageSize  int
	GitHubRateLimit float64
	GitHubMaxPages  int

	// Translator configuration
	TranslatorURL     string
	TranslatorAPIKey  string
	TranslatorModel   string
	TranslatorTimeout int
	TargetLanguage    string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}

func (c *Cfg) Lookback() time.Duration {
	if c.LookbackDays <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(c.LookbackDays) * 24 * time.Hour
}

func (c *Cfg) TranslationEnabled() bool {
	return c.TranslatorURL != ""
}
