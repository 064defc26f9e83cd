package feed

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/gh-digest/app/database"
)

// ConfigCache holds the parsed target configurations keyed by target name.
type ConfigCache struct {
	targetsDir string
	cache      map[string]*Config
	mu         sync.RWMutex
}

func NewConfigCache(targetsDir string) *ConfigCache {
	return &ConfigCache{
		targetsDir: targetsDir,
		cache:      make(map[string]*Config),
	}
}

// Run loads every YML file in the targets directory. A missing directory means no targets.
func (cc *ConfigCache) Run() error {
	if _, err := os.Stat(cc.targetsDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(cc.targetsDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		// Derive target name from filename
		targetName := strings.TrimSuffix(filepath.Base(file), ".yml")

		config, err := cc.LoadConfig(targetName)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Configuration loaded", "target", targetName, "repo", config.Repo, "enabled", config.Settings.Enabled, "refresh_interval", config.Settings.RefreshInterval)
	}

	return nil
}

func (cc *ConfigCache) LoadConfig(targetName string) (*Config, error) {
	configFile := cc.getConfigFilePath(targetName)
	targetConfig, err := cc.parseConfig(configFile)
	if err != nil {
		return nil, err
	}

	// Set target name from parameter
	targetConfig.Name = targetName

	if err := cc.validateConfig(targetConfig); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	// Store in cache
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache[targetConfig.Name] = targetConfig

	return targetConfig, nil
}

func (cc *ConfigCache) GetConfig(targetName string) (*Config, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	targetConfig, ok := cc.cache[targetName]
	if !ok {
		return nil, fmt.Errorf("target config with name '%s' not found", targetName)
	}
	return targetConfig, nil
}

// GetConfigs returns a copy of the cache so callers can iterate without holding the lock.
func (cc *ConfigCache) GetConfigs() map[string]*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	configsCopy := make(map[string]*Config, len(cc.cache))
	for k, v := range cc.cache {
		configsCopy[k] = v
	}
	return configsCopy
}

func (cc *ConfigCache) GetEnabledConfigs() map[string]*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	enabledConfigs := make(map[string]*Config)
	for k, v := range cc.cache {
		if v.Settings.Enabled {
			enabledConfigs[k] = v
		}
	}
	return enabledConfigs
}

func (cc *ConfigCache) GetConfigCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

func (cc *ConfigCache) parseConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var targetConfig Config
	if err := yaml.Unmarshal(data, &targetConfig); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Defaults
	if targetConfig.Source == "" {
		targetConfig.Source = database.SourceTypeGitHub
	}
	if targetConfig.Settings.RefreshInterval == 0 {
		targetConfig.Settings.RefreshInterval = 3600
	}
	if targetConfig.Settings.PageSize == 0 {
		targetConfig.Settings.PageSize = 30
	}
	if targetConfig.Settings.Timeout == 0 {
		targetConfig.Settings.Timeout = 30
	}

	return &targetConfig, nil
}

func (cc *ConfigCache) validateConfig(targetConfig *Config) error {
	if targetConfig == nil {
		return fmt.Errorf("targetConfig is nil")
	}

	if targetConfig.Name == "" {
		return fmt.Errorf("target name is required")
	}

	parts := strings.Split(targetConfig.Repo, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("repo must be in owner/repo form, got %q", targetConfig.Repo)
	}

	nonNegativeFields := map[string]int{
		"refresh interval": targetConfig.Settings.RefreshInterval,
		"page size":        targetConfig.Settings.PageSize,
		"timeout":          targetConfig.Settings.Timeout,
	}

	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	// GitHub caps per_page at 100
	if targetConfig.Settings.PageSize > 100 {
		return fmt.Errorf("page size must not exceed 100")
	}

	for i, filter := range targetConfig.Filters {
		if !validFilterFields[filter.Field] {
			return fmt.Errorf("invalid filter field at index %d: %s", i, filter.Field)
		}
		if len(filter.Includes) == 0 && len(filter.Excludes) == 0 {
			return fmt.Errorf("filter at index %d must have at least one include or exclude rule", i)
		}
	}

	return nil
}

func (cc *ConfigCache) getConfigFilePath(targetName string) string {
	return filepath.Join(cc.targetsDir, targetName+".yml")
}
