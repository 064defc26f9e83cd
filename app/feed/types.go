package feed

// Configuration types

type Config struct {
	Name     string         // Derived from filename (without .yml extension)
	Repo     string         `yaml:"repo"`   // owner/repo
	Source   string         `yaml:"source"` // defaults to github
	Watchers []string       `yaml:"watchers"`
	Settings ConfigSettings `yaml:"settings"`
	Filters  []ConfigFilter `yaml:"filters"`
}

type ConfigSettings struct {
	Enabled         bool `yaml:"enabled"`
	RefreshInterval int  `yaml:"refresh_interval"` // seconds
	PageSize        int  `yaml:"page_size"`
	Timeout         int  `yaml:"timeout"`        // seconds
	AutoTranslate   bool `yaml:"auto_translate"` // queue new activities for translation
}

type ConfigFilter struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

// Channel describes the RSS channel of a target.
type Channel struct {
	Name        string
	Title       string
	Link        string
	Description string
	Language    string
}
