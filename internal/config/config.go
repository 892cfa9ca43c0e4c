package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

// Config holds the settings shared by the node and its observer client.
type Config struct {
	// ListenAddress is the gRPC resource service address.
	ListenAddress string `yaml:"listen_addr" env:"NODE_LISTEN_ADDR"`
	// HTTPAddress serves the REST facade, websocket observe and /metrics; empty disables it.
	HTTPAddress string `yaml:"http_addr" env:"NODE_HTTP_ADDR"`
	// ResourcePrefix is the first URI path segment of every resource.
	ResourcePrefix string `yaml:"resource_prefix" env:"NODE_RESOURCE_PREFIX"`
	// Timeout bounds network calls and graceful shutdown.
	Timeout time.Duration `yaml:"timeout" env:"NODE_TIMEOUT"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" env:"NODE_LOG_LEVEL"`
	// UseAccelAlarm gates the other alarms on motion; when false they always evaluate.
	UseAccelAlarm bool `yaml:"use_accel_alarm" env:"NODE_USE_ACCEL_ALARM"`
	// Seed seeds the simulation; zero seeds from the clock.
	Seed uint64 `yaml:"seed" env:"NODE_SEED"`
	// StateFile is where the node snapshot is written on shutdown; empty disables it.
	StateFile string `yaml:"state_file" env:"NODE_STATE_FILE"`
	// RestoreState loads StateFile at start-up.
	RestoreState bool `yaml:"restore_state" env:"NODE_RESTORE_STATE"`
	// Sensors holds the simulation parameters.
	Sensors Sensors `yaml:"sensors"`
	// Alarms holds thresholds and periods.
	Alarms Alarms `yaml:"alarms"`
	// AMQP configures the notification forwarder.
	AMQP AMQP `yaml:"amqp"`
}

// Sensor holds the random-walk parameters of one sensor.
// For light the steps are the divisor and the multiplier.
type Sensor struct {
	Initial         float64 `yaml:"initial"`
	Min             float64 `yaml:"min"`
	Max             float64 `yaml:"max"`
	DecreasePercent int     `yaml:"decrease_percent"`
	IncreasePercent int     `yaml:"increase_percent"`
	DecreaseStep    float64 `yaml:"decrease_step"`
	IncreaseStep    float64 `yaml:"increase_step"`
}

// Sensors groups the simulated sensors.
type Sensors struct {
	Light        Sensor `yaml:"light"`
	Temperature  Sensor `yaml:"temperature"`
	Rain         Sensor `yaml:"rain"`
	Traffic      Sensor `yaml:"traffic"`
	Acceleration Sensor `yaml:"acceleration"`
}

// Alarm holds the threshold and evaluation period of one alarm.
type Alarm struct {
	Threshold float64       `yaml:"threshold"`
	Period    time.Duration `yaml:"period"`
}

// Alarms groups the alarms.
type Alarms struct {
	Accel    Alarm `yaml:"accel"`
	Freezing Alarm `yaml:"freezing"`
	Lights   Alarm `yaml:"lights"`
	Traffic  Alarm `yaml:"traffic"`
}

// AMQP configures the forwarder; an empty URI disables it.
type AMQP struct {
	URI   string `yaml:"uri" env:"NODE_AMQP_URI"`
	Queue string `yaml:"queue" env:"NODE_AMQP_QUEUE"`
}

const (
	// DefaultConfigFilename is the default settings file.
	DefaultConfigFilename = "sensor-node.yaml"

	// DefaultListenAddress is the default gRPC address.
	DefaultListenAddress = "127.0.0.1:5683"

	// DefaultHTTPAddress is the default REST facade address.
	DefaultHTTPAddress = "127.0.0.1:8080"

	// DefaultResourcePrefix is the default first path segment.
	DefaultResourcePrefix = "my_res"

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Second

	// DefaultQueue is the default AMQP queue for alarm notifications.
	DefaultQueue = "alarm-notifications"

	// DefaultFilePermissions is the permission of files written by the node.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errListenAddressRequired is returned when the gRPC address is missing.
	errListenAddressRequired = errors.New("listen address must be provided")
	// errInvalidSensor is returned for inconsistent sensor parameters.
	errInvalidSensor = errors.New("invalid sensor parameters")
	// errInvalidAlarm is returned for a non-positive alarm period.
	errInvalidAlarm = errors.New("alarm period must be positive")
	// errRestoreWithoutFile is returned when restore is requested without a state file.
	errRestoreWithoutFile = errors.New("restore_state requires state_file")
)

// Default returns the stock settings.
func Default() *Config {
	return &Config{
		ListenAddress:  DefaultListenAddress,
		HTTPAddress:    DefaultHTTPAddress,
		ResourcePrefix: DefaultResourcePrefix,
		Timeout:        DefaultTimeout,
		LogLevel:       "info",
		UseAccelAlarm:  true,
		Sensors: Sensors{
			Light: Sensor{
				Initial: 256, Min: 1, Max: 65536,
				DecreasePercent: 25, IncreasePercent: 25,
				DecreaseStep: 2, IncreaseStep: 2,
			},
			Temperature: Sensor{Initial: 3, Min: -50, Max: 60},
			Rain: Sensor{
				Initial: 0, Min: 0, Max: 1,
				DecreasePercent: 30, IncreasePercent: 20,
				DecreaseStep: 0.1, IncreaseStep: 0.1,
			},
			Traffic: Sensor{
				Initial: 1.4, Min: 1, Max: 2,
				DecreasePercent: 40, IncreasePercent: 40,
				DecreaseStep: 0.1, IncreaseStep: 0.1,
			},
			Acceleration: Sensor{
				Initial: 0, Min: 0, Max: 2,
				DecreasePercent: 50, IncreasePercent: 5,
				DecreaseStep: 0.2, IncreaseStep: 0.5,
			},
		},
		Alarms: Alarms{
			Accel:    Alarm{Threshold: 0.5, Period: time.Second},
			Freezing: Alarm{Threshold: 2, Period: time.Minute},
			Lights:   Alarm{Threshold: 500, Period: 3 * time.Second},
			Traffic:  Alarm{Threshold: 1.8, Period: 10 * time.Second},
		},
		AMQP: AMQP{Queue: DefaultQueue},
	}
}

// Load reads settings from path over the defaults, applies NODE_* environment
// overrides and validates the result. A missing default file yields defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	cfg := Default()

	contents, err := os.ReadFile(filepath.Clean(path))

	switch {
	case err == nil:
		if err = yaml.Unmarshal(contents, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && path == DefaultConfigFilename:
		// Run on defaults.
	default:
		return nil, fmt.Errorf("read settings: %w", err)
	}

	if err = cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes settings to path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields and fills runtime defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.ListenAddress == "" {
		return errListenAddressRequired
	}

	if _, err := net.ResolveTCPAddr("tcp", cfg.ListenAddress); err != nil {
		return fmt.Errorf("invalid listen address: %w", err)
	}

	if cfg.HTTPAddress != "" {
		if _, err := net.ResolveTCPAddr("tcp", cfg.HTTPAddress); err != nil {
			return fmt.Errorf("invalid http address: %w", err)
		}
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.ResourcePrefix == "" {
		cfg.ResourcePrefix = DefaultResourcePrefix
	}

	if cfg.AMQP.Queue == "" {
		cfg.AMQP.Queue = DefaultQueue
	}

	if cfg.RestoreState && cfg.StateFile == "" {
		return errRestoreWithoutFile
	}

	walks := map[string]Sensor{
		"light":        cfg.Sensors.Light,
		"rain":         cfg.Sensors.Rain,
		"traffic":      cfg.Sensors.Traffic,
		"acceleration": cfg.Sensors.Acceleration,
	}
	for name, s := range walks {
		if err := validateWalk(s); err != nil {
			return fmt.Errorf("sensor %s: %w", name, err)
		}
	}

	if err := validateBounds(cfg.Sensors.Temperature); err != nil {
		return fmt.Errorf("sensor temperature: %w", err)
	}

	alarms := map[string]Alarm{
		"accel":    cfg.Alarms.Accel,
		"freezing": cfg.Alarms.Freezing,
		"lights":   cfg.Alarms.Lights,
		"traffic":  cfg.Alarms.Traffic,
	}
	for name, a := range alarms {
		if a.Period <= 0 {
			return fmt.Errorf("alarm %s: %w", name, errInvalidAlarm)
		}
	}

	return nil
}

// validateBounds checks min <= initial <= max.
func validateBounds(s Sensor) error {
	if s.Min > s.Max || s.Initial < s.Min || s.Initial > s.Max {
		return fmt.Errorf("%w: initial %v outside [%v, %v]", errInvalidSensor, s.Initial, s.Min, s.Max)
	}

	return nil
}

// validateWalk checks bounds, probabilities and steps of a random-walk sensor.
func validateWalk(s Sensor) error {
	if err := validateBounds(s); err != nil {
		return err
	}

	if s.DecreasePercent < 0 || s.DecreasePercent > 100 || s.IncreasePercent < 0 || s.IncreasePercent > 100 {
		return fmt.Errorf("%w: probabilities must be within [0,100]", errInvalidSensor)
	}

	if s.DecreaseStep <= 0 || s.IncreaseStep <= 0 {
		return fmt.Errorf("%w: steps must be positive", errInvalidSensor)
	}

	return nil
}
