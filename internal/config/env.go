package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	mgerrors "github.com/nocsaren/GA-mock-to-html/internal/errors"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv.
const EnvPrefix = "MOCKGEN_"

// envOverlay holds raw environment values. Unset variables stay nil so
// that only what is present overrides the file or defaults.
type envOverlay struct {
	Seed          *int64   `env:"SEED"`
	Users         *int     `env:"USERS"`
	Days          *int     `env:"DAYS"`
	Kind          *string  `env:"KIND"`
	Out           *string  `env:"OUT"`
	SchemaFrom    *string  `env:"SCHEMA_FROM"`
	MirrorMode    *string  `env:"MIRROR_MODE"`
	StartDate     *string  `env:"START_DATE"`
	Companion     *bool    `env:"COMPANION"`
	Ledger        *bool    `env:"LEDGER"`
	PublishType   *string  `env:"PUBLISH_TYPE"`
	PublishPath   *string  `env:"PUBLISH_PATH"`
	S3Bucket      *string  `env:"S3_BUCKET"`
	S3Region      *string  `env:"S3_REGION"`
	S3Endpoint    *string  `env:"S3_ENDPOINT"`
	S3Prefix      *string  `env:"S3_PREFIX"`
	SpecialChar   *string  `env:"SPECIAL_CHARACTER"`
	DailyActivity *float64 `env:"DAILY_ACTIVITY"`
}

// LoadDotEnv loads variables from a .env file without overriding variables
// already set in the environment.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		return mgerrors.NewConfigError(mgerrors.CodeConfigUnreadable,
			fmt.Sprintf("failed to load env file %s", path), err)
	}
	return nil
}

// LoadFromEnv overrides cfg with MOCKGEN_ environment variables.
func LoadFromEnv(cfg *Config) error {
	var raw envOverlay
	if err := env.ParseWithOptions(&raw, env.Options{Prefix: EnvPrefix}); err != nil {
		return mgerrors.NewConfigError(mgerrors.CodeInvalidValue, "failed to parse environment", err)
	}

	setInt64(&cfg.Seed, raw.Seed)
	setInt(&cfg.Users, raw.Users)
	setInt(&cfg.Days, raw.Days)
	if raw.Kind != nil {
		cfg.Kind = Kind(*raw.Kind)
	}
	setString(&cfg.Out, raw.Out)
	setString(&cfg.SchemaFrom, raw.SchemaFrom)
	setString(&cfg.MirrorMode, raw.MirrorMode)
	setString(&cfg.StartDate, raw.StartDate)
	if raw.DailyActivity != nil {
		cfg.DailyActivity = *raw.DailyActivity
	}
	if raw.Companion != nil {
		cfg.Companion.Enabled = *raw.Companion
	}
	if raw.Ledger != nil {
		cfg.Ledger.Enabled = *raw.Ledger
	}

	// Publish configuration
	setString(&cfg.Publish.Type, raw.PublishType)
	setString(&cfg.Publish.Path, raw.PublishPath)
	setString(&cfg.Publish.S3.Bucket, raw.S3Bucket)
	setString(&cfg.Publish.S3.Region, raw.S3Region)
	setString(&cfg.Publish.S3.Endpoint, raw.S3Endpoint)
	setString(&cfg.Publish.S3.Prefix, raw.S3Prefix)

	setString(&cfg.Vocabulary.SpecialCharacter, raw.SpecialChar)
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setInt64(dst *int64, v *int64) {
	if v != nil {
		*dst = *v
	}
}
