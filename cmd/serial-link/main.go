// serial-link opens a serial or FTDI connection to an SBP navigation
// receiver, logs and prints incoming messages, and optionally supervises the
// link with a heartbeat watchdog.
//
// Exit status is 0 when a configured run timeout expires normally and 1 on
// interrupt, watchdog alarm, or receive-loop death.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pmiettinen/piksi-tools/internal/config"
)

type options struct {
	configPath string

	port        string
	baud        int
	ftdi        bool
	verbose     bool
	reset       bool
	timeout     time.Duration
	watchdog    time.Duration
	logEnable   bool
	logFilename string
	appendLog   string
	tags        string
	metricsAddr string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "serial-link",
		Short:         "SBP client for serial navigation receivers",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(opts, cmd.Flags().Changed)
			if err != nil {
				return err
			}
			return run(cfg, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "path to YAML config; flags override it")
	f.StringVarP(&opts.port, "port", "p", config.Default().Port, "serial port to use")
	f.IntVarP(&opts.baud, "baud", "b", config.Default().Baud, "baud rate to use")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "print extra debugging information")
	f.BoolVarP(&opts.ftdi, "ftdi", "f", false, "use the FTDI transport (device auto-discovered)")
	f.BoolVarP(&opts.logEnable, "log", "l", false, "serialize messages to an autogenerated log file")
	f.StringVarP(&opts.logFilename, "log-filename", "o", "", "file to log output to")
	f.StringVarP(&opts.appendLog, "append-log-filename", "a", "", "file to append log output to")
	f.StringVarP(&opts.tags, "tags", "d", "", "tags to decorate appended logs with")
	f.DurationVarP(&opts.timeout, "timeout", "t", 0, "exit after this much time has elapsed")
	f.DurationVarP(&opts.watchdog, "watchdog", "w", 0, "alarm after this long without a heartbeat")
	f.BoolVarP(&opts.reset, "reset", "r", false, "reset device after connection")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve prometheus metrics at this address")

	return cmd
}

// resolveConfig layers the config file (if any) over the defaults, then any
// flag the user actually set over that.
func resolveConfig(opts *options, changed func(string) bool) (config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return config.Config{}, fmt.Errorf("config load failed: %w", err)
		}
		cfg = loaded
	}

	if changed("port") {
		cfg.Port = opts.port
	}
	if changed("baud") {
		cfg.Baud = opts.baud
	}
	if changed("ftdi") {
		cfg.FTDI = opts.ftdi
	}
	if changed("verbose") {
		cfg.Verbose = opts.verbose
	}
	if changed("reset") {
		cfg.Reset = opts.reset
	}
	if changed("timeout") {
		cfg.Timeout = opts.timeout
	}
	if changed("watchdog") {
		cfg.Watchdog = opts.watchdog
	}
	if changed("log") {
		cfg.Log.Enable = opts.logEnable
	}
	if changed("log-filename") {
		cfg.Log.Filename = opts.logFilename
	}
	if changed("append-log-filename") {
		cfg.AppendLog.Filename = opts.appendLog
	}
	if changed("tags") {
		cfg.AppendLog.Tags = opts.tags
	}
	if changed("metrics-addr") {
		cfg.MetricsAddr = opts.metricsAddr
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
