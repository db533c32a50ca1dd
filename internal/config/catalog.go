package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"example.com/fitness/internal/domain"
)

// Catalog is the presentation and gamification data the client ships with.
// A YAML file can replace any section; omitted sections keep their defaults.
type Catalog struct {
	// Achievements replaces the built-in rules entirely and keeps file order
	// as priority order.
	Achievements []domain.AchievementRule `yaml:"achievements"`

	// Types is merged over the built-in styles by activity type.
	Types map[string]domain.TypeStyle `yaml:"types"`

	Goals domain.Goals `yaml:"goals"`

	// RecentCount is how many activities the dashboard lists.
	RecentCount int `yaml:"recent_count"`
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() Catalog {
	return Catalog{
		Achievements: domain.DefaultAchievementRules(),
		Types:        domain.DefaultTypeStyles(),
		Goals:        domain.DefaultGoals(),
		RecentCount:  5,
	}
}

// LoadCatalog reads the catalog at path over the defaults. An empty path
// returns the defaults.
func LoadCatalog(path string) (Catalog, error) {
	catalog := DefaultCatalog()
	if path == "" {
		return catalog, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog: %w", err)
	}
	var file Catalog
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog %s: %w", path, err)
	}

	if len(file.Achievements) > 0 {
		for i, rule := range file.Achievements {
			if err := validateRule(rule); err != nil {
				return Catalog{}, fmt.Errorf("catalog %s: achievement %d: %w", path, i, err)
			}
		}
		catalog.Achievements = file.Achievements
	}
	for name, style := range file.Types {
		catalog.Types[strings.ToUpper(name)] = style
	}
	if file.Goals.WeeklyMinutes > 0 {
		catalog.Goals.WeeklyMinutes = file.Goals.WeeklyMinutes
	}
	if file.Goals.Calories > 0 {
		catalog.Goals.Calories = file.Goals.Calories
	}
	if file.RecentCount > 0 {
		catalog.RecentCount = file.RecentCount
	}
	return catalog, nil
}

func validateRule(rule domain.AchievementRule) error {
	if rule.ID == "" {
		return fmt.Errorf("id is required")
	}
	switch rule.Metric {
	case domain.MetricActivities, domain.MetricCalories, domain.MetricMinutes:
	default:
		return fmt.Errorf("%s: unknown metric %q", rule.ID, rule.Metric)
	}
	if rule.Threshold < 0 {
		return fmt.Errorf("%s: threshold must not be negative", rule.ID)
	}
	return nil
}
