// Package runtime wires the bridge together: identity, pairing, sampling,
// the push scheduler, and inbound command application. It supports both a
// cooperative tick loop (Update) and free-running tasks (Run).
package runtime

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opensquawk/simbridge/internal/bridge/command"
	"github.com/opensquawk/simbridge/internal/bridge/identity"
	"github.com/opensquawk/simbridge/internal/bridge/pairing"
	"github.com/opensquawk/simbridge/internal/bridge/telemetry"
	"github.com/opensquawk/simbridge/internal/bridge/transport"
	"github.com/opensquawk/simbridge/internal/pkg/metrics"
	"github.com/opensquawk/simbridge/internal/simsource"
	"github.com/opensquawk/simbridge/pkg/log"
)

// Config carries the resolved endpoints and cadences.
type Config struct {
	MeURL        string
	StatusURL    string
	TelemetryURL string

	// LoginBase is the page a user visits to claim the token; the token
	// is appended urlencoded as ?token=.
	LoginBase string

	PollInterval   time.Duration
	SampleInterval time.Duration
	ActiveInterval time.Duration
	IdleInterval   time.Duration
	Staleness      time.Duration

	// Diagnostics is an optional extra push of runtime status to a
	// separate endpoint.
	DiagURL           string
	DiagInterval      time.Duration
	EnableDiagnostics bool
}

// Runtime owns the bridge's moving parts.
type Runtime struct {
	cfg    Config
	store  *identity.Store
	source simsource.Source
	client *transport.Client

	state     *State
	poller    *pairing.Poller
	sampler   *telemetry.Sampler
	scheduler *telemetry.Scheduler
	interp    *command.Interpreter

	diagMu       sync.Mutex
	diagNextDue  time.Time
	diagInFlight atomic.Bool

	disposed atomic.Bool
	logger   log.Logger
}

// New assembles a runtime from its dependencies.
func New(cfg Config, store *identity.Store, source simsource.Source, client *transport.Client) *Runtime {
	if cfg.DiagInterval <= 0 {
		cfg.DiagInterval = 60 * time.Second
	}

	r := &Runtime{
		cfg:    cfg,
		store:  store,
		source: source,
		client: client,
		state:  &State{},
		logger: log.WithName("runtime"),
	}

	r.interp = command.NewInterpreter(source)
	r.poller = pairing.NewPoller(client, cfg.MeURL, r.state.Token, cfg.PollInterval, r.onLinkChange)
	r.sampler = telemetry.NewSampler(source, cfg.SampleInterval, r.onReading, r.onSampleFailure)
	r.scheduler = telemetry.NewScheduler(
		telemetry.SchedulerConfig{
			StatusURL:      cfg.StatusURL,
			TelemetryURL:   cfg.TelemetryURL,
			ActiveInterval: cfg.ActiveInterval,
			IdleInterval:   cfg.IdleInterval,
			Staleness:      cfg.Staleness,
		},
		client, r.state, r.onTelemetryResponse, nil,
	)
	return r
}

// Initialize ensures a token exists, performs the first pairing poll, and
// attempts the first heartbeat. It never fails; an unreachable backend
// just means the poll cadence keeps trying.
func (r *Runtime) Initialize(ctx context.Context) {
	token := r.store.EnsureToken()
	r.state.SetToken(token)
	r.logger.Info("Bridge identity ready", "loginUrl", r.LoginURL())

	r.poller.PollNow(ctx)
	r.scheduler.Update(ctx, time.Now())
}

// Update drives every cadence from a host-provided tick: pending source
// events, sampling, pairing, pushes, and the optional diagnostic push.
func (r *Runtime) Update(ctx context.Context, now time.Time) {
	if r.disposed.Load() {
		return
	}
	r.drainEvents(ctx)
	r.sampler.Update(ctx, now)
	r.poller.Update(ctx, now)
	r.scheduler.Update(ctx, now)
	r.updateDiagnostics(ctx, now)
}

// Run is the task mode: one goroutine per cadence plus an event consumer,
// all stopping when ctx is cancelled. Dispose runs on the way out.
func (r *Runtime) Run(ctx context.Context) error {
	r.Initialize(ctx)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev, ok := <-r.source.Events():
				if !ok {
					return nil
				}
				r.handleEvent(ctx, ev)
			}
		}
	})

	g.Go(r.tickLoop(ctx, r.cfg.SampleInterval, r.sampler.Update))
	g.Go(r.tickLoop(ctx, time.Second, r.poller.Update))
	g.Go(r.tickLoop(ctx, time.Second, r.scheduler.Update))
	g.Go(r.tickLoop(ctx, time.Second, r.updateDiagnostics))

	err := g.Wait()
	r.Dispose()
	return err
}

// tickLoop runs fn on a fixed ticker; fn's own next-due bookkeeping turns
// the coarse tick into the exact cadence.
func (r *Runtime) tickLoop(ctx context.Context, interval time.Duration, fn func(context.Context, time.Time)) func() error {
	if interval <= 0 {
		interval = time.Second
	}
	return func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case now := <-ticker.C:
				if r.disposed.Load() {
					return nil
				}
				fn(ctx, now)
			}
		}
	}
}

// Dispose cancels every scheduled activity and detaches from the source.
// Safe to call more than once; nothing started afterwards is observable.
func (r *Runtime) Dispose() {
	if !r.disposed.CompareAndSwap(false, true) {
		return
	}
	r.scheduler.Stop()
	r.poller.Stop()
	if err := r.source.Close(); err != nil {
		r.logger.Warn("Source close failed", "error", err)
	}
	r.state.SetLinked(false, "")
	r.state.ClearSimFlags()
	r.logger.Info("Bridge disposed")
}

// ResetToken mints a fresh token, forces the link state down, and polls
// immediately with the new identity.
func (r *Runtime) ResetToken(ctx context.Context) string {
	token := r.store.ResetToken()
	r.state.SetToken(token)
	r.state.SetLinked(false, "")
	r.scheduler.SetActive(ctx, false)
	r.logger.Info("Token reset", "loginUrl", r.LoginURL())
	r.poller.Reset(ctx)
	return token
}

// LoginURL is the page a user opens to claim this bridge.
func (r *Runtime) LoginURL() string {
	return r.cfg.LoginBase + "?token=" + url.QueryEscape(r.state.Token())
}

// State exposes the shared state, mainly for the status server.
func (r *Runtime) State() *State { return r.state }

// onLinkChange runs synchronously inside the poller, before the next
// scheduler tick can observe the old readiness.
func (r *Runtime) onLinkChange(ctx context.Context, linked bool, label string) {
	r.state.SetLinked(linked, label)
	r.scheduler.SetActive(ctx, r.state.Active())
}

func (r *Runtime) onReading(snap *telemetry.Snapshot) {
	r.state.StoreSnapshot(snap)
	r.state.SetSimConnected(true)
	r.recompute(context.Background())
}

func (r *Runtime) onSampleFailure() {
	r.state.ClearSimFlags()
	r.recompute(context.Background())
}

func (r *Runtime) handleEvent(ctx context.Context, ev simsource.Event) {
	switch ev.Kind {
	case simsource.EventOpen:
		r.state.SetSimConnected(true)
	case simsource.EventQuit:
		r.state.SetSimConnected(false)
	case simsource.EventSessionStart:
		r.state.SetFlightLoaded(true)
	case simsource.EventSessionStop:
		r.state.SetFlightLoaded(false)
	case simsource.EventData:
		return
	}
	r.recompute(ctx)
}

func (r *Runtime) recompute(ctx context.Context) {
	if r.disposed.Load() {
		return
	}
	r.scheduler.SetActive(ctx, r.state.Active())
}

// drainEvents consumes any pending source events without blocking.
func (r *Runtime) drainEvents(ctx context.Context) {
	for {
		select {
		case ev, ok := <-r.source.Events():
			if !ok {
				return
			}
			r.handleEvent(ctx, ev)
		default:
			return
		}
	}
}

// onTelemetryResponse parses and applies commands piggybacked on the
// telemetry response, synchronously on the same logical turn.
func (r *Runtime) onTelemetryResponse(ctx context.Context, body map[string]any) {
	commands := command.Parse(body)
	if len(commands) == 0 {
		return
	}
	r.interp.Apply(ctx, commands)
}

// Status is the runtime's external view, served by the status server and
// pushed to the diagnostics endpoint.
type Status struct {
	Provider     string    `json:"provider"`
	Token        string    `json:"token"`
	Linked       bool      `json:"linked"`
	Account      string    `json:"account,omitempty"`
	Active       bool      `json:"active"`
	Cadence      string    `json:"cadence"`
	SimConnected bool      `json:"simConnected"`
	FlightActive bool      `json:"flightActive"`
	LastPollAt   time.Time `json:"lastPollAt,omitzero"`
	LoginURL     string    `json:"loginUrl,omitempty"`
}

// Status assembles the current external view.
func (r *Runtime) Status() Status {
	simConnected, flightActive := r.state.SimFlags()
	st := Status{
		Provider:     r.source.Name(),
		Token:        r.state.Token(),
		Linked:       r.state.Linked(),
		Account:      r.state.Label(),
		Active:       r.state.Active(),
		Cadence:      r.scheduler.Current(),
		SimConnected: simConnected,
		FlightActive: flightActive,
		LastPollAt:   r.poller.LastPollAt(),
	}
	if !st.Linked {
		st.LoginURL = r.LoginURL()
	}
	return st
}

// updateDiagnostics pushes the runtime status to the optional diagnostics
// endpoint on its own cadence, with the usual in-flight guard.
func (r *Runtime) updateDiagnostics(ctx context.Context, now time.Time) {
	if !r.cfg.EnableDiagnostics || r.cfg.DiagURL == "" {
		return
	}

	r.diagMu.Lock()
	if now.Before(r.diagNextDue) {
		r.diagMu.Unlock()
		return
	}
	r.diagNextDue = now.Add(r.cfg.DiagInterval)
	r.diagMu.Unlock()

	if !r.diagInFlight.CompareAndSwap(false, true) {
		metrics.InFlightSkips.WithLabelValues("diagnostic").Inc()
		r.logger.Debug("Diagnostic push still in flight, skipping")
		return
	}
	defer r.diagInFlight.Store(false)

	status := r.Status()
	resp, err := r.client.Request(ctx, http.MethodPost, r.cfg.DiagURL, status.Token, status)
	if err != nil {
		metrics.NetworkErrors.WithLabelValues("diagnostic").Inc()
		r.logger.Debug("Diagnostic push failed", "error", err)
		return
	}
	if resp.OK() {
		metrics.PushesSent.WithLabelValues("diagnostic").Inc()
	}
}
