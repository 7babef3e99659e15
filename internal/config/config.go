// Package config defines the configuration for the pumphouse controller.
// Configuration is loaded once at process startup and is immutable
// thereafter; there is no runtime reconfiguration surface. Every value has a
// compiled-in default so the daemon can run on a bench with nothing but the
// upload endpoint and API key set.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> Struct Defaults (Lowest)
//
// A missing required value or invalid format fails startup immediately.
package config

import (
	"time"

	"pumphouse/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the controller. It is
// populated once during startup and never modified. Sub-components receive
// only the specific subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" default:"prod" validate:"required,oneof=local dev prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"pumphouse"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Thresholds ThresholdConfig
	Watering   WateringConfig
	Intervals  IntervalConfig
	Upload     UploadConfig
	Mirror     MirrorConfig
	Hardware   HardwareConfig
	TimeSync   TimeSyncConfig
	Network    NetworkConfig
	Watchdog   WatchdogConfig
	Status     StatusConfig
	Air        AirConfig
}

// ThresholdConfig holds the raw-scale decision thresholds for the irrigation
// policy. Soil: lower = drier. Rain: lower = wetter.
type ThresholdConfig struct {
	SoilDry     int `envconfig:"SOIL_DRY_THRESHOLD" default:"200" validate:"min=0,max=1023"`
	SoilVeryDry int `envconfig:"SOIL_VERY_DRY_THRESHOLD" default:"400" validate:"min=0,max=1023"`
	RainHeavy   int `envconfig:"RAIN_HEAVY_THRESHOLD" default:"800" validate:"min=0,max=1023"`
	RainLight   int `envconfig:"RAIN_LIGHT_THRESHOLD" default:"990" validate:"min=0,max=1023"`
}

// WateringConfig bounds the blocking watering loops. The caps are hard
// ceilings; the loops stop early once the soil target clears.
type WateringConfig struct {
	FullCap    time.Duration `envconfig:"WATERING_FULL_CAP" default:"180s"`
	PartialCap time.Duration `envconfig:"WATERING_PARTIAL_CAP" default:"60s"`
	Tick       time.Duration `envconfig:"WATERING_TICK" default:"1s"`
}

// IntervalConfig holds the control loop's timing parameters.
type IntervalConfig struct {
	// Send is the minimum wall-clock gap between successful uploads.
	Send time.Duration `envconfig:"SEND_INTERVAL" default:"10m"`
	// Pace is the idle delay between sensing cycles.
	Pace time.Duration `envconfig:"CYCLE_PACE" default:"5s"`
	// PageRotate advances the display page independent of sensing cadence.
	PageRotate time.Duration `envconfig:"PAGE_ROTATE_INTERVAL" default:"5s"`
	// Resync is the periodic clock re-sync interval.
	Resync time.Duration `envconfig:"TIME_RESYNC_INTERVAL" default:"6h"`
	// ErrorBackoff is the wait between recovery attempts in the Error state.
	ErrorBackoff time.Duration `envconfig:"ERROR_RETRY_BACKOFF" default:"30s"`
}

// UploadConfig holds the telemetry endpoint contract parameters.
type UploadConfig struct {
	Endpoint    string        `envconfig:"UPLOAD_ENDPOINT" validate:"required,url"`
	APIKey      SecretString  `envconfig:"UPLOAD_API_KEY" validate:"required"`
	Timeout     time.Duration `envconfig:"UPLOAD_TIMEOUT" default:"10s"`
	MaxFailures int           `envconfig:"UPLOAD_MAX_FAILURES" default:"3" validate:"min=1"`
}

// MirrorConfig gates the optional MQTT mirror of the upload payload.
// Mirror failures are logged, never counted against the uploader.
type MirrorConfig struct {
	Enabled   bool         `envconfig:"MIRROR_ENABLED" default:"false"`
	BrokerURL string       `envconfig:"MIRROR_BROKER_URL" validate:"required_if=Enabled true"`
	Topic     string       `envconfig:"MIRROR_TOPIC" default:"pumphouse/readings"`
	ClientID  string       `envconfig:"MIRROR_CLIENT_ID" default:"pumphouse"`
	Username  string       `envconfig:"MIRROR_USERNAME"`
	Password  SecretString `envconfig:"MIRROR_PASSWORD"`
}

// HardwareConfig holds the bus addresses and pin assignments. Addresses are
// decimal: 72 = 0x48 (ADC), 68 = 0x44 (climate), 39 = 0x27 (LCD backpack).
type HardwareConfig struct {
	ADCAddr     uint8  `envconfig:"ADC_I2C_ADDR" default:"72"`
	ClimateAddr uint8  `envconfig:"CLIMATE_I2C_ADDR" default:"68"`
	DisplayAddr uint8  `envconfig:"DISPLAY_I2C_ADDR" default:"39"`
	PumpGPIO    int    `envconfig:"PUMP_GPIO" default:"17"`
	GPIORoot    string `envconfig:"GPIO_SYSFS_ROOT" default:"/sys/class/gpio"`
}

// TimeSyncConfig holds the NTP collaborator parameters.
type TimeSyncConfig struct {
	Server  string        `envconfig:"NTP_SERVER" default:"pool.ntp.org"`
	Timeout time.Duration `envconfig:"NTP_TIMEOUT" default:"5s"`
}

// NetworkConfig bounds the connectivity probe and reconnect behavior.
type NetworkConfig struct {
	ProbeTimeout time.Duration `envconfig:"NET_PROBE_TIMEOUT" default:"2s"`
	MaxRetries   int           `envconfig:"NET_RECONNECT_RETRIES" default:"4" validate:"min=0"`
}

// WatchdogConfig selects and tunes the hardware watchdog feeder.
//
// Mode "auto" prefers systemd supervision when WATCHDOG_USEC is present,
// falls back to the watchdog device, and finally to a no-op feeder for
// development machines.
type WatchdogConfig struct {
	Mode       string        `envconfig:"WATCHDOG_MODE" default:"auto" validate:"oneof=auto systemd device none"`
	DevicePath string        `envconfig:"WATCHDOG_DEVICE" default:"/dev/watchdog"`
	Timeout    time.Duration `envconfig:"WATCHDOG_TIMEOUT" default:"8s"`
}

// StatusConfig holds the local read-only HTTP surface settings.
type StatusConfig struct {
	Addr string `envconfig:"STATUS_ADDR" default:":9090"`
}

// AirConfig holds the air-quality model calibration settings. RZeroDefault
// is the baseline sensor resistance in kilo-ohms used until a calibrated
// value is stored by the aircal tool.
type AirConfig struct {
	CalibrationPath string  `envconfig:"CALIBRATION_DB_PATH" default:"/var/lib/pumphouse/calibration.db"`
	RZeroDefault    float64 `envconfig:"AIR_RZERO_DEFAULT" default:"76.63" validate:"gt=0"`
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
)
