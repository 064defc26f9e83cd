package feed

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/lysyi3m/gh-digest/app/database"
)

var validFilterFields = map[string]bool{
	"title":   true,
	"body":    true,
	"kind":    true,
	"author":  true,
	"version": true,
}

type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

// Run drops the candidates excluded by the target's filters.
func (f *Filterer) Run(candidates []database.ActivityCandidate, targetConfig *Config) []database.ActivityCandidate {
	if targetConfig == nil || len(targetConfig.Filters) == 0 {
		return candidates
	}

	kept := make([]database.ActivityCandidate, 0, len(candidates))
	for _, candidate := range candidates {
		isFiltered, filterReason := f.applyFilters(candidate, targetConfig.Filters)
		if isFiltered {
			slog.Debug("Activity filtered", "target", targetConfig.Name, "kind", candidate.Kind, "external_id", candidate.ExternalEventID, "reason", filterReason)
			continue
		}
		kept = append(kept, candidate)
	}

	return kept
}

func (f *Filterer) applyFilters(candidate database.ActivityCandidate, filters []ConfigFilter) (bool, string) {
	for _, filter := range filters {
		value := f.getFieldValue(candidate, filter.Field)

		for _, exclude := range filter.Excludes {
			if f.matchesFilter(value, exclude) {
				return true, fmt.Sprintf("Excluded by %s filter: contains '%s'", filter.Field, exclude)
			}
		}

		if len(filter.Includes) > 0 {
			matched := false
			for _, include := range filter.Includes {
				if f.matchesFilter(value, include) {
					matched = true
					break
				}
			}
			if !matched {
				return true, fmt.Sprintf("Excluded by %s filter: does not contain any of %v", filter.Field, filter.Includes)
			}
		}
	}

	return false, ""
}

func (f *Filterer) matchesFilter(value, pattern string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
}

func (f *Filterer) getFieldValue(candidate database.ActivityCandidate, field string) string {
	switch field {
	case "title":
		return candidate.Title
	case "body":
		return candidate.Body
	case "kind":
		return string(candidate.Kind)
	case "author":
		return candidate.Author
	case "version":
		if candidate.Version != nil {
			return *candidate.Version
		}
		return ""
	default:
		return ""
	}
}

// TargetPolicy applies per-target settings from the config cache during detection.
type TargetPolicy struct {
	configCache *ConfigCache
	filterer    *Filterer
}

func NewTargetPolicy(configCache *ConfigCache, filterer *Filterer) *TargetPolicy {
	return &TargetPolicy{
		configCache: configCache,
		filterer:    filterer,
	}
}

func (p *TargetPolicy) PageSize(target *database.Target) int {
	targetConfig, err := p.configCache.GetConfig(target.Name)
	if err != nil {
		return 0
	}
	return targetConfig.Settings.PageSize
}

func (p *TargetPolicy) Filter(target *database.Target, candidates []database.ActivityCandidate) []database.ActivityCandidate {
	targetConfig, err := p.configCache.GetConfig(target.Name)
	if err != nil {
		return candidates
	}
	return p.filterer.Run(candidates, targetConfig)
}
