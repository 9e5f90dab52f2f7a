// Package catalog supplies seasonal events from a TOML file. The file is
// re-read on every lookup so campaign edits take effect without a restart;
// the engine treats the catalog as authoritative and never caches.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/lumoapp/rewards/pkg/rewards"
)

// FileCatalog implements rewards.SeasonalEventCatalog over a TOML file.
type FileCatalog struct {
	path string
}

// NewFileCatalog wires a catalog for the given file path.
func NewFileCatalog(path string) *FileCatalog {
	return &FileCatalog{path: path}
}

type eventFile struct {
	Event []eventDoc `toml:"event"`
}

type eventDoc struct {
	ID       string    `toml:"id"`
	Name     string    `toml:"name"`
	StartsAt time.Time `toml:"starts_at"`
	EndsAt   time.Time `toml:"ends_at"`
	Rule     []ruleDoc `toml:"rule"`
}

type ruleDoc struct {
	RuleType      string `toml:"rule_type"`
	BonusCredits  int64  `toml:"bonus_credits"`
	MaxTotal      int    `toml:"max_total"`
	DailyCap      int    `toml:"daily_cap"`
	CooldownHours int    `toml:"cooldown_hours"`
	OncePerSeason bool   `toml:"once_per_season"`
}

// ActiveEvents returns every catalog event whose date range contains the
// given instant.
func (catalog *FileCatalog) ActiveEvents(_ context.Context, at time.Time) ([]rewards.SeasonalEvent, error) {
	var doc eventFile
	if _, err := toml.DecodeFile(catalog.path, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", catalog.path, err)
	}
	var active []rewards.SeasonalEvent
	for _, entry := range doc.Event {
		event, err := mapEvent(entry)
		if err != nil {
			return nil, err
		}
		if event.Contains(at) {
			active = append(active, event)
		}
	}
	return active, nil
}

func mapEvent(entry eventDoc) (rewards.SeasonalEvent, error) {
	if entry.ID == "" {
		return rewards.SeasonalEvent{}, fmt.Errorf("catalog event missing id")
	}
	if !entry.EndsAt.After(entry.StartsAt) {
		return rewards.SeasonalEvent{}, fmt.Errorf("catalog event %s: ends_at must follow starts_at", entry.ID)
	}
	rules := make([]rewards.SeasonalRule, 0, len(entry.Rule))
	for _, rule := range entry.Rule {
		if rule.RuleType == "" {
			return rewards.SeasonalEvent{}, fmt.Errorf("catalog event %s: rule missing rule_type", entry.ID)
		}
		if rule.BonusCredits <= 0 {
			return rewards.SeasonalEvent{}, fmt.Errorf("catalog event %s: rule %s needs positive bonus_credits", entry.ID, rule.RuleType)
		}
		rules = append(rules, rewards.SeasonalRule{
			RuleType:      rewards.RuleType(rule.RuleType),
			BonusCredits:  rewards.AmountCredits(rule.BonusCredits),
			MaxTotal:      rule.MaxTotal,
			DailyCap:      rule.DailyCap,
			CooldownHours: rule.CooldownHours,
			OncePerSeason: rule.OncePerSeason,
		})
	}
	return rewards.SeasonalEvent{
		ID:       entry.ID,
		Name:     entry.Name,
		StartsAt: entry.StartsAt.UTC(),
		EndsAt:   entry.EndsAt.UTC(),
		Rules:    rules,
	}, nil
}
