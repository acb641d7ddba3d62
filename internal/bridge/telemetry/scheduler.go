package telemetry

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/looplab/fsm"

	"github.com/opensquawk/simbridge/internal/bridge/transport"
	"github.com/opensquawk/simbridge/internal/pkg/metrics"
	"github.com/opensquawk/simbridge/pkg/log"
)

// Cadence states and the events that move between them.
const (
	StateIdle   = "idle"
	StateActive = "active"

	eventActivate   = "activate"
	eventDeactivate = "deactivate"
)

// Gate skip reasons, one distinct counter label per gate.
const (
	SkipNotLinked   = "not_linked"
	SkipNotActive   = "not_active"
	SkipNoSnapshot  = "no_snapshot"
	SkipStale       = "stale_snapshot"
	SkipCoordinates = "invalid_coordinates"
)

// Poster is the slice of the transport client the scheduler needs.
type Poster interface {
	Request(ctx context.Context, method, url, token string, payload any) (*transport.Response, error)
}

// StateView exposes the shared runtime state the scheduler reads. All
// methods must be safe for concurrent use.
type StateView interface {
	Token() string

	// Linked reports whether the token is paired to an account.
	Linked() bool

	// Active reports derived readiness: linked, simulator connected,
	// and a flight session loaded.
	Active() bool

	// SimFlags returns the connectivity flags for the status heartbeat,
	// already gated to false while unlinked.
	SimFlags() (simConnected, flightActive bool)

	// Latest returns the freshest snapshot, or nil before the first
	// successful sample.
	Latest() *Snapshot
}

// SchedulerConfig fixes the endpoints and cadences.
type SchedulerConfig struct {
	StatusURL    string
	TelemetryURL string

	ActiveInterval time.Duration
	IdleInterval   time.Duration
	Staleness      time.Duration
}

// Scheduler runs the dual-cadence push loop: a status heartbeat every idle
// interval, a full telemetry tick every active interval. The cadence is a
// two-state machine driven purely by readiness; one next-due timestamp
// keeps the two timers mutually exclusive under both concurrency models.
type Scheduler struct {
	cfg        SchedulerConfig
	client     Poster
	view       StateView
	onResponse func(ctx context.Context, body map[string]any)
	now        func() time.Time

	mu      sync.Mutex
	machine *fsm.FSM
	nextDue time.Time
	stopped bool

	heartbeatInFlight atomic.Bool
	telemetryInFlight atomic.Bool

	logger log.Logger
}

// NewScheduler wires a scheduler. onResponse receives each parsed telemetry
// response body; now is injectable for tests and defaults to time.Now.
func NewScheduler(cfg SchedulerConfig, client Poster, view StateView, onResponse func(context.Context, map[string]any), now func() time.Time) *Scheduler {
	if cfg.ActiveInterval <= 0 {
		cfg.ActiveInterval = 30 * time.Second
	}
	if cfg.IdleInterval <= 0 {
		cfg.IdleInterval = 120 * time.Second
	}
	if cfg.Staleness <= 0 {
		cfg.Staleness = 10 * time.Second
	}
	if now == nil {
		now = time.Now
	}

	s := &Scheduler{
		cfg:        cfg,
		client:     client,
		view:       view,
		onResponse: onResponse,
		now:        now,
		logger:     log.WithName("scheduler"),
	}

	s.machine = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: eventActivate, Src: []string{StateIdle}, Dst: StateActive},
			{Name: eventDeactivate, Src: []string{StateActive}, Dst: StateIdle},
		},
		fsm.Callbacks{
			// Entering a state rearms the single cadence timer before the
			// caller fires the transition's immediate push, so no push of
			// the old cadence can interleave.
			"enter_" + StateActive: func(_ context.Context, _ *fsm.Event) {
				s.nextDue = s.now().Add(s.cfg.ActiveInterval)
				s.logger.Info("Cadence switched", "cadence", StateActive, "interval", s.cfg.ActiveInterval)
			},
			"enter_" + StateIdle: func(_ context.Context, _ *fsm.Event) {
				s.nextDue = s.now().Add(s.cfg.IdleInterval)
				s.logger.Info("Cadence switched", "cadence", StateIdle, "interval", s.cfg.IdleInterval)
			},
		},
	)
	return s
}

// Current returns the cadence state.
func (s *Scheduler) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.Current()
}

// NextDue returns the next scheduled push time.
func (s *Scheduler) NextDue() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextDue
}

// SetActive drives the cadence from a readiness change. On a real
// transition the timer is swapped inside the state machine callback and
// exactly one immediate push of the new cadence is attempted before
// returning. Calls that match the current state are no-ops.
func (s *Scheduler) SetActive(ctx context.Context, active bool) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	name := eventDeactivate
	if active {
		name = eventActivate
	}
	if err := s.machine.Event(ctx, name); err != nil {
		// Already in the requested state.
		s.mu.Unlock()
		return
	}
	state := s.machine.Current()
	s.mu.Unlock()

	s.fire(ctx, state)
}

// Update fires at most one due push for the current cadence. Both the
// cooperative tick loop and the task-mode ticker funnel through here.
func (s *Scheduler) Update(ctx context.Context, now time.Time) {
	s.mu.Lock()
	if s.stopped || now.Before(s.nextDue) {
		s.mu.Unlock()
		return
	}
	state := s.machine.Current()
	if state == StateActive {
		s.nextDue = now.Add(s.cfg.ActiveInterval)
	} else {
		s.nextDue = now.Add(s.cfg.IdleInterval)
	}
	s.mu.Unlock()

	s.fire(ctx, state)
}

// Stop halts all future pushes. Idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}

func (s *Scheduler) fire(ctx context.Context, state string) {
	if state == StateActive {
		s.activeTick(ctx)
		return
	}
	s.heartbeat(ctx)
}

// heartbeat posts the status body. It is always attempted regardless of
// snapshot availability, but never for an unlinked device.
func (s *Scheduler) heartbeat(ctx context.Context) {
	if !s.view.Linked() {
		metrics.PushesSkipped.WithLabelValues(SkipNotLinked).Inc()
		s.logger.Debug("Heartbeat skipped", "reason", SkipNotLinked)
		return
	}

	if !s.heartbeatInFlight.CompareAndSwap(false, true) {
		metrics.InFlightSkips.WithLabelValues("heartbeat").Inc()
		s.logger.Debug("Heartbeat still in flight, skipping")
		return
	}
	defer s.heartbeatInFlight.Store(false)

	simConnected, flightActive := s.view.SimFlags()
	body := StatusBody{Token: s.view.Token(), SimConnected: simConnected, FlightActive: flightActive}

	resp, err := s.client.Request(ctx, http.MethodPost, s.cfg.StatusURL, body.Token, body)
	if err != nil {
		metrics.NetworkErrors.WithLabelValues("heartbeat").Inc()
		s.logger.Warn("Heartbeat failed", "error", err)
		return
	}
	if !resp.OK() {
		s.logger.Debug("Heartbeat rejected", "status", resp.Status)
		return
	}
	metrics.PushesSent.WithLabelValues("heartbeat").Inc()
}

// activeTick evaluates the push gates in order, short-circuiting on the
// first failure, then delivers the status heartbeat followed by the full
// telemetry payload.
func (s *Scheduler) activeTick(ctx context.Context) {
	if !s.view.Active() {
		metrics.PushesSkipped.WithLabelValues(SkipNotActive).Inc()
		s.logger.Debug("Telemetry skipped", "reason", SkipNotActive)
		return
	}

	snap := s.view.Latest()
	if snap == nil {
		metrics.PushesSkipped.WithLabelValues(SkipNoSnapshot).Inc()
		s.logger.Debug("Telemetry skipped", "reason", SkipNoSnapshot)
		return
	}

	now := s.now()
	if age := snap.Age(now); age > s.cfg.Staleness {
		metrics.PushesSkipped.WithLabelValues(SkipStale).Inc()
		s.logger.Debug("Telemetry skipped", "reason", SkipStale, "age", age)
		return
	}

	if !snap.ValidPosition() {
		metrics.PushesSkipped.WithLabelValues(SkipCoordinates).Inc()
		s.logger.Debug("Telemetry skipped", "reason", SkipCoordinates,
			"latitude", snap.Latitude, "longitude", snap.Longitude)
		return
	}

	// Keep the backend's connectivity record fresh before the payload.
	s.heartbeat(ctx)

	if !s.telemetryInFlight.CompareAndSwap(false, true) {
		metrics.InFlightSkips.WithLabelValues("telemetry").Inc()
		s.logger.Debug("Telemetry push still in flight, skipping")
		return
	}
	defer s.telemetryInFlight.Store(false)

	payload := BuildPayload(snap, s.view.Token(), now)
	resp, err := s.client.Request(ctx, http.MethodPost, s.cfg.TelemetryURL, payload.Token, payload)
	if err != nil {
		metrics.NetworkErrors.WithLabelValues("telemetry").Inc()
		s.logger.Warn("Telemetry push failed", "error", err)
		return
	}
	if !resp.OK() {
		s.logger.Debug("Telemetry push rejected", "status", resp.Status)
		return
	}

	metrics.PushesSent.WithLabelValues("telemetry").Inc()
	if resp.Body != nil && s.onResponse != nil {
		s.onResponse(ctx, resp.Body)
	}
}
