package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/pmiettinen/piksi-tools/internal/config"
	"github.com/pmiettinen/piksi-tools/internal/link"
	"github.com/pmiettinen/piksi-tools/internal/msglog"
	"github.com/pmiettinen/piksi-tools/internal/sbp"
	"github.com/pmiettinen/piksi-tools/internal/session"
	"github.com/pmiettinen/piksi-tools/internal/stats"
	"github.com/pmiettinen/piksi-tools/internal/transport"
)

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func openTransport(cfg config.Config) (transport.Transport, error) {
	if cfg.FTDI {
		return transport.OpenFTDI(cfg.Baud)
	}
	return transport.OpenSerial(cfg.Port, cfg.Baud)
}

func run(cfg config.Config, stdout io.Writer) error {
	log := newLogger(cfg.Verbose)

	t, err := openTransport(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	res, err := runSession(ctx, cfg, t, stdout, log)
	if err != nil {
		return err
	}
	if res.Status == session.StatusDeadline {
		fmt.Fprintln(stdout, "Timer expired.")
		return nil
	}
	if res.Reason != "" {
		return fmt.Errorf("session failed: %s (%s)", res.Status, res.Reason)
	}
	return fmt.Errorf("session failed: %s", res.Status)
}

// runSession wires consumers onto the link and drives the foreground loop.
// It owns t from here on; every exit path releases resources in reverse
// acquisition order via the deferred closes.
func runSession(ctx context.Context, cfg config.Config, t transport.Transport, stdout io.Writer, log zerolog.Logger) (session.Result, error) {
	reg := prometheus.NewRegistry()
	st := stats.NewLink(reg)

	loop := session.NewLoop()

	lnk := link.New(link.Config{
		Transport: t,
		Log:       log,
		Stats:     st,
		OnError: func(err error) {
			loop.RequestStop(fmt.Sprintf("receive loop died: %v", err))
		},
	})
	defer func() {
		if err := lnk.Close(); err != nil {
			log.Warn().Err(err).Msg("link close")
		}
	}()

	if cfg.MetricsAddr != "" {
		srv, err := stats.Serve(cfg.MetricsAddr, reg)
		if err != nil {
			return session.Result{}, fmt.Errorf("metrics server: %w", err)
		}
		defer srv.Close()
		log.Info().Str("addr", srv.Addr()).Msg("serving metrics")
	}

	d := lnk.Dispatch()
	d.Register(sbp.MsgPrint, msglog.NewPrinter(stdout))

	if cfg.Log.Enable {
		name := cfg.Log.Filename
		if name == "" {
			name = msglog.DefaultLogName(time.Now())
		}
		appender, err := msglog.Create(name, "", log)
		if err != nil {
			return session.Result{}, fmt.Errorf("open log: %w", err)
		}
		defer appender.Close()
		d.RegisterAll(appender)
		log.Info().Str("file", name).Msg("logging messages")
	}

	if cfg.AppendLog.Filename != "" {
		appender, err := msglog.Append(cfg.AppendLog.Filename, cfg.AppendLog.Tags, log)
		if err != nil {
			return session.Result{}, fmt.Errorf("open append log: %w", err)
		}
		defer appender.Close()
		d.RegisterAll(appender)
		log.Info().Str("file", cfg.AppendLog.Filename).Str("tags", cfg.AppendLog.Tags).Msg("append-logging messages")
	}

	if cfg.Watchdog > 0 {
		wd := link.NewWatchdog(cfg.Watchdog, func() {
			st.WatchdogAlarms.Inc()
			loop.RequestStop("watchdog expired: no heartbeat")
		})
		defer wd.Stop()
		d.Register(sbp.MsgHeartbeat, wd)
	}

	if err := lnk.Start(); err != nil {
		return session.Result{}, err
	}

	if cfg.Reset {
		if err := lnk.Send(sbp.MsgReset, nil); err != nil {
			return session.Result{}, fmt.Errorf("device reset: %w", err)
		}
		log.Info().Msg("sent device reset")
	}

	var deadline time.Time
	if cfg.Timeout > 0 {
		deadline = time.Now().Add(cfg.Timeout)
	}

	res := loop.Run(ctx, session.Config{
		Deadline: deadline,
		Alive:    lnk.IsAlive,
		Log:      log,
	})
	return res, nil
}
