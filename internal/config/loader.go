// loader.go implements the configuration loading lifecycle for the
// pumphouse controller.
//
// The loading sequence is:
//  1. Enforce UTC timezone to prevent drift bugs.
//  2. Load .env file via godotenv (non-fatal if absent).
//  3. Use envconfig to process struct tags and populate the Config struct.
//  4. Validate the struct using go-playground/validator.
//  5. Apply cross-field checks that tag rules cannot express.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is a diagnostic error type returned by Load to aid debugging.
// It wraps a ConfigErrorType and an underlying error message.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Load loads and validates the controller configuration.
//
// It performs the following steps in order:
//  1. Sets the process timezone to UTC.
//  2. Loads a .env file if present (non-fatal if missing).
//  3. Processes envconfig tags to populate the Config struct.
//  4. Validates the Config struct.
//  5. Applies cross-field checks.
func Load() (*Config, error) {
	// Step 1: Enforce UTC timezone to prevent drift bugs. Readings carry
	// timestamps that outlive the process; the board may not have an RTC.
	time.Local = time.UTC

	// Step 2: Load .env file (non-fatal if absent).
	// godotenv.Load() will silently succeed if no .env file exists in the
	// working directory. It does NOT override existing environment variables.
	_ = godotenv.Load()

	// Step 3: Process envconfig tags to populate the Config struct.
	// The empty prefix "" means envconfig will use the exact tag values
	// (e.g., envconfig:"APP_ENV" reads APP_ENV directly).
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	// Step 4: Validate the populated struct.
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	// Step 5: Cross-field checks that struct tags cannot express.
	if err := checkRelations(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// checkRelations enforces ordering constraints between related fields.
func checkRelations(cfg *Config) error {
	if cfg.Thresholds.RainHeavy >= cfg.Thresholds.RainLight {
		return &ConfigError{
			Type:    ErrValidation,
			Message: fmt.Sprintf("RAIN_HEAVY_THRESHOLD (%d) must be below RAIN_LIGHT_THRESHOLD (%d)", cfg.Thresholds.RainHeavy, cfg.Thresholds.RainLight),
		}
	}
	if cfg.Watering.Tick <= 0 {
		return &ConfigError{
			Type:    ErrValidation,
			Message: "WATERING_TICK must be positive",
		}
	}
	if cfg.Watering.FullCap < cfg.Watering.Tick || cfg.Watering.PartialCap < cfg.Watering.Tick {
		return &ConfigError{
			Type:    ErrValidation,
			Message: "watering caps must be at least one tick",
		}
	}
	if cfg.Upload.Timeout <= 0 {
		return &ConfigError{
			Type:    ErrValidation,
			Message: "UPLOAD_TIMEOUT must be positive",
		}
	}
	return nil
}
