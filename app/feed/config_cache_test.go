package feed

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, filename, content string) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestConfigCacheLoadValidConfig(t *testing.T) {
	tempDir := t.TempDir()

	writeConfig(t, tempDir, "go.yml", `
repo: "golang/go"
source: github
watchers: ["alice", "bob"]

settings:
  enabled: true
  refresh_interval: 1800
  page_size: 50
  timeout: 15
  auto_translate: true

filters:
  - field: "title"
    excludes:
      - "dependabot"
`)

	configCache := NewConfigCache(tempDir)
	if err := configCache.Run(); err != nil {
		t.Fatal(err)
	}

	if configCache.GetConfigCount() != 1 {
		t.Errorf("Expected 1 targetConfig, got %d", configCache.GetConfigCount())
	}

	targetConfig, err := configCache.GetConfig("go")
	if err != nil {
		t.Fatal(err)
	}

	if targetConfig.Name != "go" {
		t.Errorf("Expected name 'go', got '%s'", targetConfig.Name)
	}
	if targetConfig.Repo != "golang/go" {
		t.Errorf("Expected repo 'golang/go', got '%s'", targetConfig.Repo)
	}
	if len(targetConfig.Watchers) != 2 || targetConfig.Watchers[0] != "alice" {
		t.Errorf("Expected watchers [alice bob], got %v", targetConfig.Watchers)
	}
	if time.Duration(targetConfig.Settings.RefreshInterval)*time.Second != 30*time.Minute {
		t.Errorf("Expected refresh interval 1800s, got %ds", targetConfig.Settings.RefreshInterval)
	}
	if targetConfig.Settings.PageSize != 50 {
		t.Errorf("Expected page size 50, got %d", targetConfig.Settings.PageSize)
	}
	if !targetConfig.Settings.AutoTranslate {
		t.Error("Expected auto_translate to be enabled")
	}
	if len(targetConfig.Filters) != 1 {
		t.Errorf("Expected 1 filter, got %d", len(targetConfig.Filters))
	}
}

func TestConfigCacheLoadConfigWithDefaults(t *testing.T) {
	tempDir := t.TempDir()

	writeConfig(t, tempDir, "test.yml", `
repo: "owner/repo"

settings:
  enabled: true
`)

	configCache := NewConfigCache(tempDir)
	if err := configCache.Run(); err != nil {
		t.Fatal(err)
	}

	targetConfig, err := configCache.GetConfig("test")
	if err != nil {
		t.Fatal(err)
	}

	if targetConfig.Source != "github" {
		t.Errorf("Expected default source github, got '%s'", targetConfig.Source)
	}
	if targetConfig.Settings.RefreshInterval != 3600 {
		t.Errorf("Expected default refresh interval 3600, got %d", targetConfig.Settings.RefreshInterval)
	}
	if targetConfig.Settings.PageSize != 30 {
		t.Errorf("Expected default page size 30, got %d", targetConfig.Settings.PageSize)
	}
	if targetConfig.Settings.Timeout != 30 {
		t.Errorf("Expected default timeout 30, got %d", targetConfig.Settings.Timeout)
	}
	if targetConfig.Settings.AutoTranslate {
		t.Error("Expected auto_translate to default to false")
	}
}

func TestConfigCacheInvalidConfig(t *testing.T) {
	tempDir := t.TempDir()

	// Missing repo
	writeConfig(t, tempDir, "invalid.yml", `
settings:
  enabled: true
`)

	configCache := NewConfigCache(tempDir)
	if err := configCache.Run(); err == nil {
		t.Error("Expected error for invalid targetConfig")
	}
}

func TestConfigCacheEmptyDirectory(t *testing.T) {
	configCache := NewConfigCache(t.TempDir())
	if err := configCache.Run(); err != nil {
		t.Fatal(err)
	}

	if configCache.GetConfigCount() != 0 {
		t.Errorf("Expected 0 targetConfigs from empty directory, got %d", configCache.GetConfigCount())
	}
}

func TestConfigCacheMissingDirectory(t *testing.T) {
	configCache := NewConfigCache(filepath.Join(t.TempDir(), "absent"))
	if err := configCache.Run(); err != nil {
		t.Errorf("Expected missing directory to be ignored, got %v", err)
	}
}

func TestConfigCacheReloadConfig(t *testing.T) {
	tempDir := t.TempDir()

	configFile := writeConfig(t, tempDir, "test.yml", `
repo: "owner/repo"
settings:
  enabled: true
`)

	configCache := NewConfigCache(tempDir)
	if err := configCache.Run(); err != nil {
		t.Fatal(err)
	}

	writeConfig(t, tempDir, "test.yml", `
repo: "owner/renamed"
watchers: ["carol"]
settings:
  enabled: false
  page_size: 10
`)

	reloadedConfig, err := configCache.LoadConfig("test")
	if err != nil {
		t.Fatal(err)
	}

	if reloadedConfig.Repo != "owner/renamed" {
		t.Errorf("Expected updated repo 'owner/renamed', got '%s'", reloadedConfig.Repo)
	}
	if reloadedConfig.Settings.PageSize != 10 {
		t.Errorf("Expected updated page size 10, got %d", reloadedConfig.Settings.PageSize)
	}

	cached, _ := configCache.GetConfig("test")
	if cached.Settings.Enabled {
		t.Error("Expected cache to hold the reloaded config")
	}
	if len(configCache.GetEnabledConfigs()) != 0 {
		t.Error("Expected no enabled configs after disabling the only target")
	}

	if _, err := configCache.LoadConfig("nonexistent"); err == nil {
		t.Error("Expected error for non-existent config")
	}

	if err := os.WriteFile(configFile, []byte(`invalid yaml content`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := configCache.LoadConfig("test"); err == nil {
		t.Error("Expected error for invalid config file")
	}
}

func TestConfigCacheGetConfigs(t *testing.T) {
	tempDir := t.TempDir()

	writeConfig(t, tempDir, "one.yml", "repo: \"owner/one\"\nsettings:\n  enabled: true\n")
	writeConfig(t, tempDir, "two.yml", "repo: \"owner/two\"\nsettings:\n  enabled: false\n")

	configCache := NewConfigCache(tempDir)
	if err := configCache.Run(); err != nil {
		t.Fatal(err)
	}

	allConfigs := configCache.GetConfigs()
	if len(allConfigs) != 2 {
		t.Errorf("Expected 2 configs, got %d", len(allConfigs))
	}

	enabled := configCache.GetEnabledConfigs()
	if len(enabled) != 1 || enabled["one"] == nil {
		t.Errorf("Expected only 'one' to be enabled, got %v", enabled)
	}

	// Modifying the returned map must not affect the cache
	delete(allConfigs, "one")
	if configCache.GetConfigCount() != 2 {
		t.Error("Modifying returned configs map affected the cache")
	}
}

func TestConfigCacheGetConfigEmptyCache(t *testing.T) {
	configCache := NewConfigCache("")
	_, err := configCache.GetConfig("missing")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("Expected not found error, got %v", err)
	}
}

// Validation tests

func TestConfigCacheValidateConfigNil(t *testing.T) {
	configCache := NewConfigCache("")
	if err := configCache.validateConfig(nil); err == nil {
		t.Error("Expected error for nil targetConfig, got none")
	}
}

func TestConfigCacheValidateConfig(t *testing.T) {
	configCache := NewConfigCache("")

	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"valid", Config{Name: "t", Repo: "owner/repo"}, false},
		{"missing name", Config{Repo: "owner/repo"}, true},
		{"missing repo", Config{Name: "t"}, true},
		{"repo without owner", Config{Name: "t", Repo: "/repo"}, true},
		{"repo with extra segment", Config{Name: "t", Repo: "a/b/c"}, true},
		{"negative refresh", Config{Name: "t", Repo: "o/r", Settings: ConfigSettings{RefreshInterval: -1}}, true},
		{"negative timeout", Config{Name: "t", Repo: "o/r", Settings: ConfigSettings{Timeout: -5}}, true},
		{"page size too large", Config{Name: "t", Repo: "o/r", Settings: ConfigSettings{PageSize: 101}}, true},
		{"valid filter", Config{Name: "t", Repo: "o/r", Filters: []ConfigFilter{{Field: "author", Excludes: []string{"bot"}}}}, false},
		{"unknown filter field", Config{Name: "t", Repo: "o/r", Filters: []ConfigFilter{{Field: "description", Excludes: []string{"x"}}}}, true},
		{"empty filter", Config{Name: "t", Repo: "o/r", Filters: []ConfigFilter{{Field: "title"}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := tt.config
			err := configCache.validateConfig(&config)
			if tt.wantErr && err == nil {
				t.Error("Expected error, got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		})
	}
}
