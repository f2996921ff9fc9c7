package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pmiettinen/piksi-tools/internal/config"
)

func TestResolveConfig_DefaultsWhenNothingSet(t *testing.T) {
	cfg, err := resolveConfig(&options{}, func(string) bool { return false })
	if err != nil {
		t.Fatalf("resolveConfig() error: %v", err)
	}
	want := config.Default()
	if cfg.Port != want.Port || cfg.Baud != want.Baud {
		t.Fatalf("cfg=%+v want defaults", cfg)
	}
}

func TestResolveConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "link.yaml")
	if err := os.WriteFile(path, []byte("port: /dev/ttyACM0\nbaud: 9600\nwatchdog: 5s\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	opts := &options{
		configPath: path,
		baud:       115200,
		timeout:    10 * time.Second,
	}
	set := map[string]bool{"baud": true, "timeout": true}

	cfg, err := resolveConfig(opts, func(name string) bool { return set[name] })
	if err != nil {
		t.Fatalf("resolveConfig() error: %v", err)
	}
	if cfg.Port != "/dev/ttyACM0" {
		t.Fatalf("Port=%q, file value should survive", cfg.Port)
	}
	if cfg.Baud != 115200 {
		t.Fatalf("Baud=%d, flag should win", cfg.Baud)
	}
	if cfg.Watchdog != 5*time.Second {
		t.Fatalf("Watchdog=%v, file value should survive", cfg.Watchdog)
	}
	if cfg.Timeout != 10*time.Second {
		t.Fatalf("Timeout=%v, flag should win", cfg.Timeout)
	}
}

func TestResolveConfig_InvalidRejected(t *testing.T) {
	opts := &options{baud: -1}
	_, err := resolveConfig(opts, func(name string) bool { return name == "baud" })
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestRootCmd_FlagParsing(t *testing.T) {
	cmd := newRootCmd()
	if err := cmd.ParseFlags([]string{"-p", "/dev/ttyUSB3", "-b", "57600", "-t", "2s", "-r"}); err != nil {
		t.Fatalf("ParseFlags() error: %v", err)
	}
	for _, name := range []string{"port", "baud", "timeout", "reset"} {
		if !cmd.Flags().Changed(name) {
			t.Fatalf("flag %q not marked changed", name)
		}
	}
	if got, _ := cmd.Flags().GetString("port"); got != "/dev/ttyUSB3" {
		t.Fatalf("port=%q", got)
	}
}
