// Package config provides the configuration for a mockgen run.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	mgerrors "github.com/nocsaren/GA-mock-to-html/internal/errors"
	"github.com/nocsaren/GA-mock-to-html/internal/mirror"
	"github.com/nocsaren/GA-mock-to-html/internal/sampler"
	"github.com/nocsaren/GA-mock-to-html/internal/vocab"
)

// Kind selects which output shapes a run writes.
type Kind string

const (
	KindRaw     Kind = "raw"
	KindDerived Kind = "derived"
	KindBoth    Kind = "both"
)

// WritesRaw reports whether the raw event export is produced.
func (k Kind) WritesRaw() bool { return k == KindRaw || k == KindBoth }

// WritesDerived reports whether the engineered CSV tables are produced.
func (k Kind) WritesDerived() bool { return k == KindDerived || k == KindBoth }

// Publish types.
const (
	PublishNone  = "none"
	PublishLocal = "local"
	PublishS3    = "s3"
)

const (
	DefaultOut = "./mock/output"
	dateLayout = "2006-01-02"
)

// Config holds everything a run depends on. Two runs with equal configs
// write identical files.
type Config struct {
	// Out is the output root directory
	Out string `json:"out" yaml:"out"`

	// Kind selects the output shapes: raw, derived, both
	Kind Kind `json:"kind" yaml:"kind"`

	// SchemaFrom is an optional directory of reference CSVs whose headers
	// widen the derived tables
	SchemaFrom string `json:"schema_from" yaml:"schema_from"`

	// MirrorMode is union or per_file
	MirrorMode string `json:"mirror_mode" yaml:"mirror_mode"`

	Seed  int64 `json:"seed" yaml:"seed"`
	Users int   `json:"users" yaml:"users"`
	Days  int   `json:"days" yaml:"days"`

	// StartDate is the first generated day, YYYY-MM-DD in UTC
	StartDate string `json:"start_date" yaml:"start_date"`

	DailyActivity    float64  `json:"daily_activity" yaml:"daily_activity"`
	SessionsPerDay   float64  `json:"sessions_per_day" yaml:"sessions_per_day"`
	Tiers            []int    `json:"tiers" yaml:"tiers"`
	QuestionsPerTier int      `json:"questions_per_tier" yaml:"questions_per_tier"`
	Countries        []string `json:"countries" yaml:"countries"`
	AppVersions      []string `json:"app_versions" yaml:"app_versions"`
	OperatingSystems []string `json:"operating_systems" yaml:"operating_systems"`

	Probabilities sampler.Probabilities `json:"probabilities" yaml:"probabilities"`

	Vocabulary VocabularyConfig `json:"vocabulary" yaml:"vocabulary"`

	// Companion controls the SQLite companion next to the JSONL export
	Companion CompanionConfig `json:"companion" yaml:"companion"`

	// Ledger controls the run ledger
	Ledger LedgerConfig `json:"ledger" yaml:"ledger"`

	// Publish controls the optional upload of the output tree
	Publish PublishConfig `json:"publish" yaml:"publish"`

	// warnings collects non-fatal problems found while loading the file
	warnings []error
}

// VocabularyConfig renames vocabulary entries and weighs their draws.
type VocabularyConfig struct {
	// Names maps a vocabulary key (or legacy field name) to a display name
	Names map[string]string `json:"names,omitempty" yaml:"names,omitempty"`

	// SpecialCharacter is the character key (or default display name) whose
	// questions use the shorter cumulative offsets
	SpecialCharacter string `json:"special_character,omitempty" yaml:"special_character,omitempty"`

	// Weights maps a vocabulary key to its draw weight; missing keys weigh 1
	Weights map[string]float64 `json:"weights,omitempty" yaml:"weights,omitempty"`
}

// CompanionConfig holds companion table settings.
type CompanionConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// LedgerConfig holds run ledger settings.
type LedgerConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Path defaults to <out>/.mockgen/runs.db
	Path string `json:"path" yaml:"path"`
}

// PublishConfig holds publish settings.
type PublishConfig struct {
	// Type is none, local or s3
	Type string `json:"type" yaml:"type"`

	// Path is the target directory for local publishing
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 publish configuration.
type S3Config struct {
	Bucket string `json:"bucket" yaml:"bucket"`
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// Prefix is prepended to every object key
	Prefix string `json:"prefix" yaml:"prefix"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	p := sampler.DefaultParams()
	return &Config{
		Out:              DefaultOut,
		Kind:             KindRaw,
		MirrorMode:       string(mirror.ModeUnion),
		Seed:             p.Seed,
		Users:            p.Users,
		Days:             p.Days,
		StartDate:        p.StartDate.Format(dateLayout),
		DailyActivity:    p.DailyActivity,
		SessionsPerDay:   p.SessionsPerDay,
		Tiers:            p.Tiers,
		QuestionsPerTier: p.QuestionsPerTier,
		Countries:        p.Countries,
		AppVersions:      p.AppVersions,
		OperatingSystems: p.OperatingSystems,
		Probabilities:    p.Probabilities,
		Companion:        CompanionConfig{Enabled: true},
		Ledger:           LedgerConfig{Enabled: true},
		Publish:          PublishConfig{Type: PublishNone},
	}
}

// Resolve fills paths and modes left empty.
func (c *Config) Resolve() {
	if c.Out == "" {
		c.Out = DefaultOut
	}
	if c.Kind == "" {
		c.Kind = KindRaw
	}
	if c.MirrorMode == "" {
		c.MirrorMode = string(mirror.ModeUnion)
	}
	if c.Publish.Type == "" {
		c.Publish.Type = PublishNone
	}
	if c.Ledger.Path == "" {
		c.Ledger.Path = filepath.Join(c.Out, ".mockgen", "runs.db")
	}
}

// RawDir returns the directory of the raw export.
func (c *Config) RawDir() string {
	return filepath.Join(c.Out, "raw")
}

// CSVDir returns the directory of the derived tables.
func (c *Config) CSVDir() string {
	return filepath.Join(c.Out, "data", "csv")
}

// UsedPath returns the path of the effective configuration dump.
func (c *Config) UsedPath() string {
	return filepath.Join(c.Out, "config_used.json")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Kind {
	case KindRaw, KindDerived, KindBoth:
	default:
		return invalid(fmt.Sprintf("invalid kind: %s (must be raw, derived, or both)", c.Kind))
	}

	if c.Out == "" {
		return invalid("out is required")
	}

	if _, err := mirror.ParseMode(c.MirrorMode); err != nil {
		return mgerrors.NewConfigError(mgerrors.CodeInvalidValue, "invalid mirror_mode", err)
	}

	switch c.Publish.Type {
	case PublishNone:
	case PublishLocal:
		if c.Publish.Path == "" {
			return invalid("publish.path is required when publish type is local")
		}
	case PublishS3:
		if c.Publish.S3.Bucket == "" {
			return invalid("publish.s3.bucket is required when publish type is s3")
		}
	default:
		return invalid(fmt.Sprintf("invalid publish type: %s (must be none, local, or s3)", c.Publish.Type))
	}

	p, err := c.SamplerParams()
	if err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return mgerrors.NewConfigError(mgerrors.CodeInvalidValue, "invalid generation parameters", err)
	}
	return nil
}

func invalid(msg string) error {
	return mgerrors.NewConfigError(mgerrors.CodeInvalidValue, msg, nil)
}

// SamplerParams converts the configuration to sampler parameters.
func (c *Config) SamplerParams() (sampler.Params, error) {
	start := sampler.DefaultStartDate
	if c.StartDate != "" {
		t, err := time.ParseInLocation(dateLayout, c.StartDate, time.UTC)
		if err != nil {
			return sampler.Params{}, mgerrors.NewConfigError(mgerrors.CodeInvalidValue,
				fmt.Sprintf("start_date %q is not YYYY-MM-DD", c.StartDate), err)
		}
		start = t
	}
	return sampler.Params{
		Seed:             c.Seed,
		Users:            c.Users,
		Days:             c.Days,
		StartDate:        start,
		DailyActivity:    c.DailyActivity,
		SessionsPerDay:   c.SessionsPerDay,
		Tiers:            c.Tiers,
		QuestionsPerTier: c.QuestionsPerTier,
		Countries:        c.Countries,
		AppVersions:      c.AppVersions,
		OperatingSystems: c.OperatingSystems,
		Weights:          c.Vocabulary.Weights,
		Probabilities:    c.Probabilities,
	}, nil
}

// ResolveVocabulary resolves the configured display names.
func (c *Config) ResolveVocabulary() (*vocab.Vocabulary, []vocab.Warning) {
	overrides := make(map[string]string, len(c.Vocabulary.Names)+1)
	for k, v := range c.Vocabulary.Names {
		overrides[k] = v
	}
	if c.Vocabulary.SpecialCharacter != "" {
		overrides[vocab.SpecialCharacterKey] = c.Vocabulary.SpecialCharacter
	}
	return vocab.Resolve(overrides)
}

// LoadFromFile loads configuration from a YAML or JSON file on top of the
// defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, mgerrors.NewConfigError(mgerrors.CodeConfigUnreadable, "failed to read config file", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	var top map[string]any
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, mgerrors.NewConfigError(mgerrors.CodeConfigMalformed, "failed to parse YAML config", err)
		}
		if err := yaml.Unmarshal(data, &top); err != nil {
			return nil, mgerrors.NewConfigError(mgerrors.CodeConfigMalformed, "failed to parse YAML config", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, mgerrors.NewConfigError(mgerrors.CodeConfigMalformed, "failed to parse JSON config", err)
		}
		if err := json.Unmarshal(data, &top); err != nil {
			return nil, mgerrors.NewConfigError(mgerrors.CodeConfigMalformed, "failed to parse JSON config", err)
		}
	default:
		return nil, mgerrors.NewConfigError(mgerrors.CodeConfigUnreadable,
			fmt.Sprintf("unsupported config file format: %s", ext), nil)
	}

	cfg.applyLegacy(top)
	return cfg, nil
}

// Warnings returns the non-fatal problems found while loading the
// configuration file.
func (c *Config) Warnings() []error {
	return c.warnings
}

// WriteFile writes the configuration as indented JSON.
func (c *Config) WriteFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return mgerrors.NewInternalError("failed to encode config", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return mgerrors.NewIOError(mgerrors.CodeWriteFailed, fmt.Sprintf("failed to write %s", path), err)
	}
	return nil
}

// EnsureDirectories creates the output root and the ledger directory.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Out}
	if c.Ledger.Enabled {
		dirs = append(dirs, filepath.Dir(c.Ledger.Path))
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return mgerrors.NewIOError(mgerrors.CodeOutputUnwritable,
				fmt.Sprintf("failed to create directory %s", dir), err)
		}
	}

	return nil
}
