// Package synthetic provides an in-process telemetry source that flies a
// deterministic traffic pattern. It exists for development without a
// simulator and for exercising the full bridge pipeline in tests.
package synthetic

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/opensquawk/simbridge/internal/simsource"
)

const ProviderName = "synthetic"

func init() {
	simsource.Register(ProviderName, func(config any) (simsource.Source, error) {
		opts, _ := config.(*Options)
		return New(opts), nil
	})
}

// Options configures the synthetic flight.
type Options struct {
	// Latitude/Longitude of the pattern's center.
	Latitude  float64
	Longitude float64
}

// Source flies a closed left-hand circuit around a fixed point. Written
// values override the generated ones so applied commands are observable on
// the next sample.
type Source struct {
	opts Options

	mu        sync.Mutex
	connected bool
	started   time.Time
	overrides map[string]float64
	events    chan simsource.Event
}

var _ simsource.Source = (*Source)(nil)

func New(opts *Options) *Source {
	o := Options{Latitude: 49.4875, Longitude: 8.4660} // EDFM
	if opts != nil {
		o = *opts
	}
	return &Source{
		opts:      o,
		overrides: map[string]float64{},
		events:    make(chan simsource.Event, 16),
	}
}

func (s *Source) Name() string { return ProviderName }

func (s *Source) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected {
		return nil
	}
	s.connected = true
	s.started = time.Now()
	s.emit(simsource.EventOpen)
	s.emit(simsource.EventSessionStart)
	return nil
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil
	}
	s.connected = false
	s.emit(simsource.EventSessionStop)
	s.emit(simsource.EventQuit)
	close(s.events)
	return nil
}

func (s *Source) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Source) Events() <-chan simsource.Event { return s.events }

func (s *Source) Sample(ctx context.Context) (*simsource.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil, simsource.ErrNotReady
	}

	now := time.Now()
	elapsed := now.Sub(s.started).Seconds()

	// One lap every six minutes, about 2 nm across.
	phase := 2 * math.Pi * math.Mod(elapsed, 360) / 360
	values := map[string]float64{
		simsource.VarLatitude:          s.opts.Latitude + 0.03*math.Sin(phase),
		simsource.VarLongitude:         s.opts.Longitude + 0.03*math.Cos(phase),
		simsource.VarAltitudeTrue:      3500 + 200*math.Sin(phase*2),
		simsource.VarAltitudeIndicated: 3470 + 200*math.Sin(phase*2),
		simsource.VarAirspeedIndicated: 105,
		simsource.VarAirspeedTrue:      112,
		simsource.VarGroundVelocity:    55, // m/s
		simsource.VarOnGround:          0,
		simsource.VarEngineCombustion:  1,
		simsource.VarTurbineN1One:      62.5,
		simsource.VarTurbineN1Two:      62.1,
		simsource.VarTransponderCode:   7000,
		simsource.VarADFActiveFreq:     375,
		simsource.VarADFStandbyFreq:    414,
		simsource.VarVerticalSpeed:     350 * math.Cos(phase*2),
		simsource.VarPitchDegrees:      2.5 * math.Sin(phase),
		simsource.VarGearHandle:        0,
		simsource.VarFlapsHandleIndex:  0,
		simsource.VarParkingBrake:      0,
		simsource.VarAutopilotMaster:   1,
	}
	for name, v := range s.overrides {
		values[name] = v
	}

	s.emit(simsource.EventData)
	return &simsource.Reading{Values: values, CapturedAt: now}, nil
}

func (s *Source) WriteValue(ctx context.Context, name string, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return simsource.ErrNotReady
	}
	s.overrides[name] = value
	return nil
}

func (s *Source) SendEvent(ctx context.Context, name string, value int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return simsource.ErrNotReady
	}
	return nil
}

// emit delivers without blocking; events on a full channel are dropped.
func (s *Source) emit(kind simsource.EventKind) {
	select {
	case s.events <- simsource.Event{Kind: kind, At: time.Now()}:
	default:
	}
}
