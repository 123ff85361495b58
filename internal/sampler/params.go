package sampler

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Probabilities are per-opportunity chances of optional events.
type Probabilities struct {
	AdRewarded      float64 `json:"ad_rewarded" yaml:"ad_rewarded"`
	MenuOpened      float64 `json:"menu_opened" yaml:"menu_opened"`
	EnergySpend     float64 `json:"energy_spend" yaml:"energy_spend"`
	ConsumableSpend float64 `json:"consumable_spend" yaml:"consumable_spend"`
	Wheel           float64 `json:"wheel" yaml:"wheel"`
	WheelSkip       float64 `json:"wheel_skip" yaml:"wheel_skip"`
	AdLoadFailed    float64 `json:"ad_load_failed" yaml:"ad_load_failed"`
	AppException    float64 `json:"app_exception" yaml:"app_exception"`
	GameEnded       float64 `json:"game_ended" yaml:"game_ended"`
	AppRemoved      float64 `json:"app_removed" yaml:"app_removed"`
	AppUpdate       float64 `json:"app_update" yaml:"app_update"`
}

// DefaultProbabilities returns the stock event probabilities.
func DefaultProbabilities() Probabilities {
	return Probabilities{
		AdRewarded:      0.25,
		MenuOpened:      0.15,
		EnergySpend:     0.18,
		ConsumableSpend: 0.10,
		Wheel:           0.25,
		WheelSkip:       0.3,
		AdLoadFailed:    0.03,
		AppException:    0.01,
		GameEnded:       0.15,
		AppRemoved:      0.04,
		AppUpdate:       0.1,
	}
}

type namedValue struct {
	name  string
	value float64
}

// fields lists the probabilities in declaration order.
func (p Probabilities) fields() []namedValue {
	return []namedValue{
		{"ad_rewarded", p.AdRewarded},
		{"menu_opened", p.MenuOpened},
		{"energy_spend", p.EnergySpend},
		{"consumable_spend", p.ConsumableSpend},
		{"wheel", p.Wheel},
		{"wheel_skip", p.WheelSkip},
		{"ad_load_failed", p.AdLoadFailed},
		{"app_exception", p.AppException},
		{"game_ended", p.GameEnded},
		{"app_removed", p.AppRemoved},
		{"app_update", p.AppUpdate},
	}
}

// DefaultStartDate is the first generated day. It is fixed so that output
// only depends on the configured parameters.
var DefaultStartDate = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// maxSessionsPerDay bounds the Poisson mean; larger means underflow the sampler.
const maxSessionsPerDay = 50

// Params controls event synthesis.
type Params struct {
	Seed  int64
	Users int
	Days  int

	StartDate      time.Time
	DailyActivity  float64
	SessionsPerDay float64

	Tiers            []int
	QuestionsPerTier int

	Countries        []string
	AppVersions      []string
	OperatingSystems []string

	// Weights holds per-key draw weights. Keys without an entry weigh 1.
	Weights map[string]float64

	Probabilities Probabilities
}

// DefaultParams returns the stock generation parameters.
func DefaultParams() Params {
	return Params{
		Seed:             7,
		Users:            200,
		Days:             14,
		StartDate:        DefaultStartDate,
		DailyActivity:    0.35,
		SessionsPerDay:   1.2,
		Tiers:            []int{1, 2, 3, 4},
		QuestionsPerTier: 12,
		Countries:        []string{"United States", "Türkiye"},
		AppVersions:      []string{"1.0.5", "1.0.6", "1.0.7"},
		OperatingSystems: []string{"ANDROID", "IOS"},
		Probabilities:    DefaultProbabilities(),
	}
}

// Validate checks counts, probabilities and list parameters.
func (p Params) Validate() error {
	if p.Users < 0 {
		return fmt.Errorf("sampler: users must be >= 0, got %d", p.Users)
	}
	if p.Days < 0 {
		return fmt.Errorf("sampler: days must be >= 0, got %d", p.Days)
	}
	if err := checkProbability("daily_activity", p.DailyActivity); err != nil {
		return err
	}
	if p.SessionsPerDay < 0 || p.SessionsPerDay > maxSessionsPerDay {
		return fmt.Errorf("sampler: sessions_per_day must be in [0, %d], got %g", maxSessionsPerDay, p.SessionsPerDay)
	}
	for _, f := range p.Probabilities.fields() {
		if err := checkProbability("probabilities."+f.name, f.value); err != nil {
			return err
		}
	}
	if len(p.Tiers) == 0 {
		return fmt.Errorf("sampler: at least one tier is required")
	}
	for _, t := range p.Tiers {
		if t < 1 {
			return fmt.Errorf("sampler: tiers must be >= 1, got %d", t)
		}
	}
	if p.QuestionsPerTier < 1 {
		return fmt.Errorf("sampler: questions_per_tier must be >= 1, got %d", p.QuestionsPerTier)
	}
	if len(p.Countries) == 0 || len(p.AppVersions) == 0 || len(p.OperatingSystems) == 0 {
		return fmt.Errorf("sampler: countries, app_versions and operating_systems must be non-empty")
	}
	keys := make([]string, 0, len(p.Weights))
	for key := range p.Weights {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		w := p.Weights[key]
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("sampler: weight for %q must be a finite number >= 0, got %g", key, w)
		}
	}
	return nil
}

func checkProbability(name string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return fmt.Errorf("sampler: %s must be in [0, 1], got %g", name, v)
	}
	return nil
}
