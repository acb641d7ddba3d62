package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/opensquawk/simbridge/internal/pkg/metrics"
	"github.com/opensquawk/simbridge/internal/simsource"
	"github.com/opensquawk/simbridge/pkg/log"
)

// Fixed reconnect delays, deliberately not exponential: the simulator either
// comes back within seconds or the operator intervenes.
const (
	connectRetryDelay = 2 * time.Second
	readRetryDelay    = 1 * time.Second
)

// Sampler reads the telemetry source at a fixed rate, independent of the
// push cadence and of link state, so a fresh snapshot is ready the instant
// readiness flips to active.
type Sampler struct {
	source   simsource.Source
	interval time.Duration

	// onReading receives each successful snapshot. onFailure is invoked
	// when a sample or connect attempt fails so the owner can drop the
	// raw source flags and recompute readiness.
	onReading func(*Snapshot)
	onFailure func()

	connected bool
	nextDue   time.Time
	logger    log.Logger
}

// NewSampler builds a sampler. interval defaults to one second.
func NewSampler(source simsource.Source, interval time.Duration, onReading func(*Snapshot), onFailure func()) *Sampler {
	if interval <= 0 {
		interval = time.Second
	}
	return &Sampler{
		source:    source,
		interval:  interval,
		onReading: onReading,
		onFailure: onFailure,
		logger:    log.WithName("sampler"),
	}
}

// Update performs at most one due sampling step. Connect failures reschedule
// at the connect retry delay; read failures after an established connection
// reschedule at the shorter read retry delay.
func (s *Sampler) Update(ctx context.Context, now time.Time) {
	if now.Before(s.nextDue) {
		return
	}

	if !s.connected {
		if err := s.source.Connect(ctx); err != nil {
			s.logger.Debug("Source connect failed", "provider", s.source.Name(), "error", err)
			s.onFailure()
			s.nextDue = now.Add(connectRetryDelay)
			return
		}
		s.connected = true
		s.logger.Info("Telemetry source connected", "provider", s.source.Name())
	}

	reading, err := s.source.Sample(ctx)
	if err != nil {
		metrics.SampleFailures.Inc()
		if errors.Is(err, simsource.ErrNotReady) {
			s.logger.Debug("Source not ready", "provider", s.source.Name())
		} else {
			s.logger.Debug("Sample failed", "provider", s.source.Name(), "error", err)
		}
		s.onFailure()
		s.nextDue = now.Add(readRetryDelay)
		return
	}

	s.onReading(FromReading(reading))
	s.nextDue = now.Add(s.interval)
}

// NextDue exposes the next scheduled sampling time.
func (s *Sampler) NextDue() time.Time { return s.nextDue }
