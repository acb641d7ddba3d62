package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/opensquawk/simbridge/internal/bridge/transport"
	"github.com/opensquawk/simbridge/internal/pkg/metrics"
)

// fakePoster records every request and answers with a canned response.
type fakePoster struct {
	mu       sync.Mutex
	requests []fakeRequest
	response *transport.Response
	err      error
}

type fakeRequest struct {
	method, url, token string
	payload            any
}

func (f *fakePoster) Request(_ context.Context, method, url, token string, payload any) (*transport.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, fakeRequest{method, url, token, payload})
	if f.err != nil {
		return nil, f.err
	}
	if f.response != nil {
		return f.response, nil
	}
	return &transport.Response{Status: 200}, nil
}

func (f *fakePoster) urls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.requests))
	for i, r := range f.requests {
		out[i] = r.url
	}
	return out
}

// fakeView is a settable StateView.
type fakeView struct {
	mu           sync.Mutex
	token        string
	linked       bool
	active       bool
	simConnected bool
	flightActive bool
	snapshot     *Snapshot
}

func (v *fakeView) Token() string { return v.token }
func (v *fakeView) Linked() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.linked
}
func (v *fakeView) Active() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.active
}
func (v *fakeView) SimFlags() (bool, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.simConnected, v.flightActive
}
func (v *fakeView) Latest() *Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshot
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig() SchedulerConfig {
	return SchedulerConfig{
		StatusURL:      "https://backend/status",
		TelemetryURL:   "https://backend/telemetry",
		ActiveInterval: 30 * time.Second,
		IdleInterval:   120 * time.Second,
		Staleness:      10 * time.Second,
	}
}

func freshSnapshot(at time.Time) *Snapshot {
	return &Snapshot{Latitude: 48.1, Longitude: 8.2, CapturedAt: at}
}

func TestUnlinkedNeverPushes(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	poster := &fakePoster{}
	view := &fakeView{token: "TOK", linked: false}
	s := NewScheduler(testConfig(), poster, view, nil, clock.Now)

	ctx := context.Background()
	for i := 0; i < 50; i++ {
		s.Update(ctx, clock.Now())
		clock.Advance(time.Minute)
	}

	if got := len(poster.urls()); got != 0 {
		t.Fatalf("unlinked device sent %d requests: %v", got, poster.urls())
	}
}

func TestIdleHeartbeatCadence(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	poster := &fakePoster{}
	view := &fakeView{token: "TOK", linked: true, simConnected: true}
	s := NewScheduler(testConfig(), poster, view, nil, clock.Now)

	ctx := context.Background()
	s.Update(ctx, clock.Now()) // first heartbeat, due immediately
	clock.Advance(60 * time.Second)
	s.Update(ctx, clock.Now()) // not due yet
	clock.Advance(60 * time.Second)
	s.Update(ctx, clock.Now()) // due at 120s

	urls := poster.urls()
	if len(urls) != 2 {
		t.Fatalf("expected 2 heartbeats, got %v", urls)
	}
	for _, u := range urls {
		if u != "https://backend/status" {
			t.Fatalf("unexpected URL %q", u)
		}
	}
	body, ok := poster.requests[0].payload.(StatusBody)
	if !ok || body.Token != "TOK" || !body.SimConnected || body.FlightActive {
		t.Fatalf("heartbeat body = %#v", poster.requests[0].payload)
	}
}

func TestIdleToActiveTransition(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	poster := &fakePoster{}
	view := &fakeView{
		token: "TOK", linked: true, active: true,
		simConnected: true, flightActive: true,
		snapshot: freshSnapshot(time.Unix(1700000000, 0)),
	}
	s := NewScheduler(testConfig(), poster, view, nil, clock.Now)
	ctx := context.Background()

	s.SetActive(ctx, true)

	if s.Current() != StateActive {
		t.Fatalf("state = %q, want active", s.Current())
	}
	// Exactly one immediate attempt: heartbeat-then-telemetry.
	urls := poster.urls()
	if len(urls) != 2 || urls[0] != "https://backend/status" || urls[1] != "https://backend/telemetry" {
		t.Fatalf("immediate push = %v", urls)
	}
	// The idle timer is gone: nothing fires before the active interval.
	clock.Advance(29 * time.Second)
	s.Update(ctx, clock.Now())
	if len(poster.urls()) != 2 {
		t.Fatalf("push fired before active interval: %v", poster.urls())
	}
	clock.Advance(time.Second)
	// The sampler would have replaced the snapshot many times by now; give
	// the scheduled tick a fresh capture so the staleness gate passes.
	view.mu.Lock()
	view.snapshot = freshSnapshot(clock.Now())
	view.mu.Unlock()
	s.Update(ctx, clock.Now())
	if got := poster.urls(); len(got) != 4 {
		t.Fatalf("scheduled active tick missing: %v", got)
	}
}

func TestActiveToIdleTransition(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	poster := &fakePoster{}
	view := &fakeView{
		token: "TOK", linked: true, active: true,
		simConnected: true, flightActive: true,
		snapshot: freshSnapshot(time.Unix(1700000000, 0)),
	}
	s := NewScheduler(testConfig(), poster, view, nil, clock.Now)
	ctx := context.Background()

	s.SetActive(ctx, true)
	view.mu.Lock()
	view.active = false
	view.flightActive = false
	view.snapshot = nil
	view.mu.Unlock()
	before := len(poster.urls())

	s.SetActive(ctx, false)

	urls := poster.urls()
	if len(urls) != before+1 || urls[len(urls)-1] != "https://backend/status" {
		t.Fatalf("expected one immediate heartbeat after deactivation, got %v", urls[before:])
	}
	// Next push follows the idle interval, not the active one.
	clock.Advance(30 * time.Second)
	s.Update(ctx, clock.Now())
	if len(poster.urls()) != before+1 {
		t.Fatal("active-interval push fired after switch to idle")
	}
	clock.Advance(90 * time.Second)
	s.Update(ctx, clock.Now())
	if len(poster.urls()) != before+2 {
		t.Fatal("idle heartbeat missing at idle interval")
	}
}

func TestSetActiveIsIdempotent(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	poster := &fakePoster{}
	view := &fakeView{token: "TOK", linked: true, active: true, simConnected: true, flightActive: true,
		snapshot: freshSnapshot(time.Unix(1700000000, 0))}
	s := NewScheduler(testConfig(), poster, view, nil, clock.Now)
	ctx := context.Background()

	s.SetActive(ctx, true)
	count := len(poster.urls())
	s.SetActive(ctx, true) // no transition, no push
	if len(poster.urls()) != count {
		t.Fatalf("repeated SetActive fired a push: %v", poster.urls())
	}
}

func TestStalenessGate(t *testing.T) {
	base := time.Unix(1700000000, 0)
	tests := []struct {
		name     string
		age      time.Duration
		expected bool
	}{
		{"fresh 9s", 9 * time.Second, true},
		{"boundary 10s", 10 * time.Second, true},
		{"stale 11s", 11 * time.Second, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &fakeClock{now: base}
			poster := &fakePoster{}
			view := &fakeView{
				token: "TOK", linked: true, active: true,
				simConnected: true, flightActive: true,
				snapshot: freshSnapshot(base.Add(-tt.age)),
			}
			s := NewScheduler(testConfig(), poster, view, nil, clock.Now)
			s.SetActive(context.Background(), true)

			sent := false
			for _, u := range poster.urls() {
				if u == "https://backend/telemetry" {
					sent = true
				}
			}
			if sent != tt.expected {
				t.Fatalf("telemetry sent = %v, want %v (age %v)", sent, tt.expected, tt.age)
			}
		})
	}
}

func TestCoordinateGate(t *testing.T) {
	base := time.Unix(1700000000, 0)
	clock := &fakeClock{now: base}
	poster := &fakePoster{}
	snap := freshSnapshot(base)
	snap.Latitude = 90.0001
	view := &fakeView{
		token: "TOK", linked: true, active: true,
		simConnected: true, flightActive: true, snapshot: snap,
	}
	s := NewScheduler(testConfig(), poster, view, nil, clock.Now)
	s.SetActive(context.Background(), true)

	for _, u := range poster.urls() {
		if u == "https://backend/telemetry" {
			t.Fatalf("out-of-range latitude pushed: %v", poster.urls())
		}
	}
}

func TestResponseBodyForwarded(t *testing.T) {
	base := time.Unix(1700000000, 0)
	clock := &fakeClock{now: base}
	poster := &fakePoster{response: &transport.Response{
		Status: 200,
		Body:   map[string]any{"xpdr": "7000"},
	}}
	var got map[string]any
	view := &fakeView{
		token: "TOK", linked: true, active: true,
		simConnected: true, flightActive: true,
		snapshot: freshSnapshot(base),
	}
	s := NewScheduler(testConfig(), poster, view, func(_ context.Context, body map[string]any) {
		got = body
	}, clock.Now)
	s.SetActive(context.Background(), true)

	if got == nil || got["xpdr"] != "7000" {
		t.Fatalf("response body not forwarded: %v", got)
	}
}

func TestNetworkErrorDoesNotResetCadence(t *testing.T) {
	base := time.Unix(1700000000, 0)
	clock := &fakeClock{now: base}
	poster := &fakePoster{err: errors.New("connection refused")}
	view := &fakeView{token: "TOK", linked: true, simConnected: true}
	s := NewScheduler(testConfig(), poster, view, nil, clock.Now)
	ctx := context.Background()

	s.Update(ctx, clock.Now())
	if len(poster.urls()) != 1 {
		t.Fatalf("expected one failed attempt, got %v", poster.urls())
	}
	// No immediate retry; the next regularly scheduled attempt is the retry.
	clock.Advance(time.Second)
	s.Update(ctx, clock.Now())
	if len(poster.urls()) != 1 {
		t.Fatal("failed heartbeat retried before its cadence")
	}
	clock.Advance(120 * time.Second)
	s.Update(ctx, clock.Now())
	if len(poster.urls()) != 2 {
		t.Fatal("next scheduled heartbeat missing")
	}
}

// blockingPoster parks the first request until released, so the test can
// deliver a second due tick while the first push is still on the wire.
type blockingPoster struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
	release chan struct{}
}

func (p *blockingPoster) Request(context.Context, string, string, string, any) (*transport.Response, error) {
	p.mu.Lock()
	p.calls++
	first := p.calls == 1
	p.mu.Unlock()
	if first {
		close(p.started)
		<-p.release
	}
	return &transport.Response{Status: 200}, nil
}

func (p *blockingPoster) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestHeartbeatInFlightSkipsNextDue(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	poster := &blockingPoster{started: make(chan struct{}), release: make(chan struct{})}
	view := &fakeView{token: "TOK", linked: true, simConnected: true}
	s := NewScheduler(testConfig(), poster, view, nil, clock.Now)
	ctx := context.Background()

	skipsBefore := testutil.ToFloat64(metrics.InFlightSkips.WithLabelValues("heartbeat"))

	done := make(chan struct{})
	go func() {
		s.Update(ctx, clock.Now()) // first heartbeat, parks inside Request
		close(done)
	}()
	<-poster.started

	// A due tick while the previous heartbeat is still in flight is
	// dropped and counted, never queued.
	clock.Advance(120 * time.Second)
	s.Update(ctx, clock.Now())
	if got := poster.count(); got != 1 {
		t.Fatalf("second heartbeat started while first in flight: %d calls", got)
	}
	if got := testutil.ToFloat64(metrics.InFlightSkips.WithLabelValues("heartbeat")) - skipsBefore; got != 1 {
		t.Fatalf("in-flight skip count = %v, want 1", got)
	}

	close(poster.release)
	<-done

	// The guard clears once the request returns; the next scheduled
	// heartbeat goes out normally.
	clock.Advance(120 * time.Second)
	s.Update(ctx, clock.Now())
	if got := poster.count(); got != 2 {
		t.Fatalf("heartbeat after release missing: %d calls", got)
	}
}

func TestStopHaltsPushes(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	poster := &fakePoster{}
	view := &fakeView{token: "TOK", linked: true, simConnected: true}
	s := NewScheduler(testConfig(), poster, view, nil, clock.Now)
	s.Stop()

	ctx := context.Background()
	s.Update(ctx, clock.Now())
	s.SetActive(ctx, true)
	clock.Advance(time.Hour)
	s.Update(ctx, clock.Now())

	if len(poster.urls()) != 0 {
		t.Fatalf("pushes after Stop: %v", poster.urls())
	}
}
