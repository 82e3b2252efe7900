// Package export drives the background acquisition loop and fans each
// reading batch out to the configured sinks (MQTT, InfluxDB, WebSocket).
//
// The poller reads through the same registry the HTTP handlers use, so
// polled acquisitions queue behind request-driven ones on the registry's
// exclusive lock and device I/O never interleaves.
package export

import (
	"context"
	"time"

	"github.com/nerrad567/temper-core/internal/infrastructure/logging"
	"github.com/nerrad567/temper-core/internal/temper"
)

// Sink receives a batch of filtered readings after every poll.
//
// Publish is called sequentially from the poll loop; a sink that blocks
// delays the next poll, not the HTTP handlers. Errors are logged and the
// loop carries on.
type Sink interface {
	// Name identifies the sink in log lines.
	Name() string

	// Publish delivers one reading batch.
	Publish(readings []temper.Filtered) error
}

// Poller acquires readings on a fixed interval and publishes them.
type Poller struct {
	// Interval between acquisitions. Zero or negative disables the poller.
	Interval time.Duration

	// Temper is the device registry read through on every tick.
	Temper *temper.Temper

	// BaseURL prefixes the per-device URLs in published readings.
	BaseURL string

	Sinks  []Sink
	Logger *logging.Logger
}

// Run polls until the context is cancelled. It returns nil on
// cancellation and immediately when polling is disabled or no sinks are
// configured.
func (p *Poller) Run(ctx context.Context) error {
	if p.Interval <= 0 || len(p.Sinks) == 0 {
		p.Logger.Debug("background polling disabled",
			"interval", p.Interval,
			"sinks", len(p.Sinks),
		)
		return nil
	}

	p.Logger.Info("background polling started",
		"interval", p.Interval.String(),
		"sinks", len(p.Sinks),
	)

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.Logger.Info("background polling stopped")
			return nil
		case <-ticker.C:
			p.poll()
		}
	}
}

// poll runs one acquisition and hands the batch to every sink.
func (p *Poller) poll() {
	results := p.Temper.ReadAll()
	if len(results) == 0 {
		return
	}
	readings := temper.FilterAll(results, p.BaseURL)

	for _, sink := range p.Sinks {
		if err := sink.Publish(readings); err != nil {
			p.Logger.Warn("sink publish failed",
				"sink", sink.Name(),
				"error", err,
			)
		}
	}
}
