// Package stats carries the link diagnostics counters.
//
// Counters are plain prometheus metrics on a caller-supplied registry so
// tests can use an isolated one; the prom exposition endpoint is optional
// and off unless the CLI asks for it.
package stats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Link struct {
	BytesRead      prometheus.Counter
	FramesDecoded  prometheus.Counter
	CRCDrops       prometheus.Counter
	HandlerPanics  prometheus.Counter
	SendsTotal     prometheus.Counter
	SendErrors     prometheus.Counter
	WatchdogAlarms prometheus.Counter
}

func NewLink(reg prometheus.Registerer) *Link {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	ns := "serial_link"

	return &Link{
		BytesRead: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "bytes_read_total",
			Help:      "Raw bytes read from the transport",
		}),
		FramesDecoded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "frames_decoded_total",
			Help:      "Complete checksum-valid frames decoded",
		}),
		CRCDrops: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "crc_drops_total",
			Help:      "Frames dropped for checksum mismatch",
		}),
		HandlerPanics: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "handler_panics_total",
			Help:      "Message handlers that panicked during dispatch",
		}),
		SendsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "sends_total",
			Help:      "Messages framed and written to the transport",
		}),
		SendErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "send_errors_total",
			Help:      "Send calls that failed at the transport",
		}),
		WatchdogAlarms: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "watchdog_alarms_total",
			Help:      "Heartbeat watchdog expirations",
		}),
	}
}
