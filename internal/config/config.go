package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config carries every knob the serial-link tool takes. The CLI flags map
// onto the same fields; flags win over the file. There are no process-wide
// defaults beyond what Default returns.
type Config struct {
	// Port is the serial device path. Ignored when FTDI is set, where the
	// device is auto-discovered and only the baud rate matters.
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
	FTDI bool   `yaml:"ftdi"`

	Verbose bool `yaml:"verbose"`

	// Reset sends the device-reset message right after connecting.
	Reset bool `yaml:"reset"`

	// Timeout ends the session successfully after this much wall time.
	// Zero means run until interrupted.
	Timeout time.Duration `yaml:"timeout"`

	// Watchdog alarms when no heartbeat arrives for this long. Zero
	// disables the watchdog.
	Watchdog time.Duration `yaml:"watchdog"`

	Log       LogConfig       `yaml:"log"`
	AppendLog AppendLogConfig `yaml:"append_log"`

	// MetricsAddr, when set, serves prometheus metrics at /metrics.
	MetricsAddr string `yaml:"metrics_addr"`
}

type LogConfig struct {
	Enable bool `yaml:"enable"`

	// Filename overrides the autogenerated serial-link-*.log.json name.
	Filename string `yaml:"filename"`
}

type AppendLogConfig struct {
	Filename string `yaml:"filename"`

	// Tags decorate every appended record.
	Tags string `yaml:"tags"`
}

func Default() Config {
	return Config{
		Port: "/dev/ttyUSB0",
		Baud: 1000000,
	}
}

// Load reads a YAML config file over the defaults and validates it.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if !c.FTDI && c.Port == "" {
		return fmt.Errorf("port is required unless ftdi is set")
	}
	if c.Baud <= 0 {
		return fmt.Errorf("baud must be positive, got %d", c.Baud)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}
	if c.Watchdog < 0 {
		return fmt.Errorf("watchdog cannot be negative")
	}
	if c.AppendLog.Tags != "" && c.AppendLog.Filename == "" {
		return fmt.Errorf("append_log.tags requires append_log.filename")
	}
	return nil
}
