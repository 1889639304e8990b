package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/multierr"

	"github.com/relabs-tech/calibration_wizard/internal/orientation"
)

// ErrMissingKey is wrapped by validation errors for required keys.
var ErrMissingKey = errors.New("required key missing")

// Tracker backends.
const (
	TrackerMock = "mock"
	TrackerMQTT = "mqtt"
)

// Accumulator backends.
const (
	AccumulatorMemory = "memory"
	AccumulatorMQTT   = "mqtt"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker           string
	MQTTClientIDWizard   string
	MQTTClientIDProducer string

	// Topics
	TopicPose               string
	TopicCalibrationSamples string
	TopicWizardState        string

	// Wizard
	Tracker     string // "mock" or "mqtt"
	Accumulator string // "memory" or "mqtt"
	AxisOrder   orientation.AxisOrder
	ReachedRule string // "target", "strict" or "previous"

	// Timing
	SampleInterval int // milliseconds

	// Web Server
	WebServerPort int

	// Logging
	LogLevel string
}

// Package-level singleton, set once by InitGlobal and read with Get.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the values used for keys absent from the config file.
func Default() *Config {
	return &Config{
		MQTTBroker:              "tcp://localhost:1883",
		MQTTClientIDWizard:      "calibration-wizard",
		MQTTClientIDProducer:    "calibration-pose-producer",
		TopicPose:               "inertial/pose",
		TopicCalibrationSamples: "calibration/samples",
		TopicWizardState:        "calibration/wizard",
		Tracker:                 TrackerMock,
		Accumulator:             AccumulatorMemory,
		AxisOrder:               orientation.DefaultAxisOrder,
		ReachedRule:             "target",
		SampleInterval:          50,
		WebServerPort:           8080,
		LogLevel:                "info",
	}
}

// Load reads the configuration file on top of Default and validates it.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_WIZARD":
		c.MQTTClientIDWizard = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value

	// Topics
	case "TOPIC_POSE":
		c.TopicPose = value
	case "TOPIC_CALIBRATION_SAMPLES":
		c.TopicCalibrationSamples = value
	case "TOPIC_WIZARD_STATE":
		c.TopicWizardState = value

	// Wizard
	case "TRACKER":
		c.Tracker = value
	case "ACCUMULATOR":
		c.Accumulator = value
	case "AXIS_ORDER":
		order, err := orientation.ParseAxisOrder(value)
		if err != nil {
			return fmt.Errorf("invalid AXIS_ORDER: %w", err)
		}
		c.AxisOrder = order
	case "REACHED_RULE":
		c.ReachedRule = value

	// Timing
	case "SAMPLE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SAMPLE_INTERVAL %q: %w", value, err)
		}
		c.SampleInterval = interval

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	// Logging
	case "LOG_LEVEL":
		c.LogLevel = value

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// Validate reports every invalid or missing value at once.
func (c *Config) Validate() error {
	var err error

	if c.Tracker != TrackerMock && c.Tracker != TrackerMQTT {
		err = multierr.Append(err, fmt.Errorf("TRACKER must be %q or %q, got %q", TrackerMock, TrackerMQTT, c.Tracker))
	}
	if c.Accumulator != AccumulatorMemory && c.Accumulator != AccumulatorMQTT {
		err = multierr.Append(err, fmt.Errorf("ACCUMULATOR must be %q or %q, got %q", AccumulatorMemory, AccumulatorMQTT, c.Accumulator))
	}
	if c.usesMQTT() {
		if c.MQTTBroker == "" {
			err = multierr.Append(err, fmt.Errorf("MQTT_BROKER: %w", ErrMissingKey))
		}
		if c.MQTTClientIDWizard == "" {
			err = multierr.Append(err, fmt.Errorf("MQTT_CLIENT_ID_WIZARD: %w", ErrMissingKey))
		}
	}
	if c.Tracker == TrackerMQTT && c.TopicPose == "" {
		err = multierr.Append(err, fmt.Errorf("TOPIC_POSE: %w", ErrMissingKey))
	}
	if c.Accumulator == AccumulatorMQTT && c.TopicCalibrationSamples == "" {
		err = multierr.Append(err, fmt.Errorf("TOPIC_CALIBRATION_SAMPLES: %w", ErrMissingKey))
	}
	if verr := c.AxisOrder.Validate(); verr != nil {
		err = multierr.Append(err, fmt.Errorf("AXIS_ORDER: %w", verr))
	}
	switch c.ReachedRule {
	case "target", "strict", "previous":
	default:
		err = multierr.Append(err, fmt.Errorf("REACHED_RULE must be target, strict or previous, got %q", c.ReachedRule))
	}
	if c.SampleInterval <= 0 {
		err = multierr.Append(err, fmt.Errorf("SAMPLE_INTERVAL must be positive, got %d", c.SampleInterval))
	}
	if c.WebServerPort <= 0 || c.WebServerPort > 65535 {
		err = multierr.Append(err, fmt.Errorf("WEB_SERVER_PORT out of range: %d", c.WebServerPort))
	}

	return err
}

func (c *Config) usesMQTT() bool {
	return c.Tracker == TrackerMQTT || c.Accumulator == AccumulatorMQTT
}

// InitGlobal initializes the global configuration from file. Only the first
// call has any effect.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
