// Package pairing polls the backend to learn whether the bridge token has
// been claimed by an account.
package pairing

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opensquawk/simbridge/internal/bridge/transport"
	"github.com/opensquawk/simbridge/internal/pkg/metrics"
	"github.com/opensquawk/simbridge/pkg/log"
)

// Requester is the slice of the transport client the poller needs.
type Requester interface {
	Request(ctx context.Context, method, url, token string, payload any) (*transport.Response, error)
}

// Notifier receives link transitions synchronously, before the poller
// returns, so the runtime can recompute readiness ahead of the next
// scheduler tick. label is the account display name when linked.
type Notifier func(ctx context.Context, linked bool, label string)

// labelKeys is the display-name priority order, checked at the response
// root and again inside a nested user object.
var labelKeys = []string{"username", "userName", "name", "displayName", "email"}

// Poller checks the pairing endpoint at a fixed interval. Transient
// transport failures and server errors leave the link state untouched;
// only a definitive backend answer moves it.
type Poller struct {
	client   Requester
	meURL    string
	token    func() string
	notify   Notifier
	interval time.Duration

	mu         sync.Mutex
	linked     bool
	label      string
	nextDue    time.Time
	lastPollAt time.Time
	stopped    bool

	inFlight atomic.Bool
	logger   log.Logger
}

// NewPoller wires a poller. interval defaults to ten seconds.
func NewPoller(client Requester, meURL string, token func() string, interval time.Duration, notify Notifier) *Poller {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Poller{
		client:   client,
		meURL:    meURL,
		token:    token,
		notify:   notify,
		interval: interval,
		logger:   log.WithName("pairing"),
	}
}

// Linked reports the last definitive answer from the backend.
func (p *Poller) Linked() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.linked
}

// Label returns the account display name, empty while unlinked.
func (p *Poller) Label() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.label
}

// LastPollAt returns the completion time of the most recent poll attempt.
func (p *Poller) LastPollAt() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastPollAt
}

// PollNow performs one immediate poll and restarts the interval from it.
// Called at startup and after a token reset.
func (p *Poller) PollNow(ctx context.Context) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.nextDue = time.Now().Add(p.interval)
	p.mu.Unlock()
	p.poll(ctx)
}

// Reset drops the cached link state without notifying; the caller already
// knows the token changed. It then polls immediately with the new token.
func (p *Poller) Reset(ctx context.Context) {
	p.mu.Lock()
	p.linked = false
	p.label = ""
	p.mu.Unlock()
	p.PollNow(ctx)
}

// Update performs at most one due poll.
func (p *Poller) Update(ctx context.Context, now time.Time) {
	p.mu.Lock()
	if p.stopped || now.Before(p.nextDue) {
		p.mu.Unlock()
		return
	}
	p.nextDue = now.Add(p.interval)
	p.mu.Unlock()
	p.poll(ctx)
}

// Stop halts all future polls. Idempotent.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
}

func (p *Poller) poll(ctx context.Context) {
	if !p.inFlight.CompareAndSwap(false, true) {
		metrics.InFlightSkips.WithLabelValues("poll").Inc()
		p.logger.Debug("Poll still in flight, skipping")
		return
	}
	defer p.inFlight.Store(false)

	token := p.token()
	pollURL := p.meURL + "?token=" + url.QueryEscape(token)
	resp, err := p.client.Request(ctx, http.MethodGet, pollURL, token, nil)

	p.mu.Lock()
	p.lastPollAt = time.Now()
	p.mu.Unlock()

	if err != nil {
		// Transient failures must not flap the link state.
		metrics.NetworkErrors.WithLabelValues("poll").Inc()
		p.logger.Warn("Pairing poll failed", "error", err)
		return
	}

	switch {
	case resp.OK():
		linked := true
		if resp.Body != nil {
			if connected, ok := resp.Body["connected"].(bool); ok && !connected {
				linked = false
			}
		}
		p.apply(ctx, linked, extractLabel(resp.Body))
	case resp.Status >= 400 && resp.Status < 500:
		// The backend definitively does not know this token.
		p.apply(ctx, false, "")
	default:
		p.logger.Debug("Pairing poll server error, state unchanged", "status", resp.Status)
	}
}

// apply records a definitive answer and fires the notifier on transitions.
func (p *Poller) apply(ctx context.Context, linked bool, label string) {
	p.mu.Lock()
	changed := p.linked != linked
	p.linked = linked
	p.label = label
	p.mu.Unlock()

	if !changed {
		return
	}
	if linked {
		p.logger.Info("Bridge linked", "account", label)
	} else {
		p.logger.Info("Bridge unlinked")
	}
	if p.notify != nil {
		p.notify(ctx, linked, label)
	}
}

// extractLabel picks the account display name from a pairing response.
func extractLabel(body map[string]any) string {
	if body == nil {
		return ""
	}
	if label := scanLabel(body); label != "" {
		return label
	}
	if user, ok := body["user"].(map[string]any); ok {
		return scanLabel(user)
	}
	return ""
}

func scanLabel(obj map[string]any) string {
	for _, key := range labelKeys {
		if value, ok := obj[key].(string); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}
