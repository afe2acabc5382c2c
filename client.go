package authflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/authflow/internal/flows"
	"github.com/MrEthical07/authflow/jwt"
)

// Client owns the collaborators shared by every flow controller: gateway,
// session store, navigator, audit dispatcher, and metrics.
//
// A Client is safe for concurrent use. Controllers created from it are
// independent of each other.
type Client struct {
	config     Config
	gateway    Gateway
	store      SessionStore
	navigator  Navigator
	redirector Redirector
	audit      *auditDispatcher
	metrics    *Metrics
	logger     *slog.Logger
	ticks      func(time.Duration) TickSource
	now        func() time.Time
}

// Close stops the audit dispatcher, draining queued events for at most
// Audit.DrainTimeout.
func (c *Client) Close() {
	if c == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.config.Audit.DrainTimeout)
	defer cancel()
	if err := c.Shutdown(ctx); err != nil {
		c.logger.Warn("authflow: audit drain cut short", "error", err, "dropped", c.AuditDropped())
	}
}

// Shutdown stops the audit dispatcher. Queued events are delivered until ctx
// ends; whatever is still queued then is counted as dropped and ctx's error is
// returned.
func (c *Client) Shutdown(ctx context.Context) error {
	if c == nil || c.audit == nil {
		return nil
	}
	return c.audit.Close(ctx)
}

// Config returns a copy of the active configuration.
func (c *Client) Config() Config {
	if c == nil {
		return defaultConfig()
	}
	return cloneConfig(c.config)
}

// AuditDropped returns the number of audit events dropped under backpressure.
func (c *Client) AuditDropped() uint64 {
	if c == nil || c.audit == nil {
		return 0
	}
	return c.audit.Dropped()
}

// MetricsSnapshot copies the current counters.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	if c == nil || c.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return c.metrics.Snapshot()
}

// DestinationFor returns the landing route for role under the configured routes.
func (c *Client) DestinationFor(role string) Route {
	return c.redirector.DestinationFor(role)
}

// CurrentSession returns the held session, or [ErrNoSession]. A session past
// its expiry is cleared and reported as absent.
func (c *Client) CurrentSession(ctx context.Context) (Session, error) {
	if c == nil || c.store == nil {
		return Session{}, ErrEngineNotReady
	}

	s, err := c.store.Load(ctx)
	if err != nil {
		return Session{}, err
	}
	if s.Expired(c.now()) {
		if err := c.store.Clear(ctx); err != nil {
			c.logger.WarnContext(ctx, "authflow: clearing expired session failed", "error", err)
		}
		return Session{}, ErrNoSession
	}
	return s, nil
}

// Logout clears the session store and navigates to the login route. Logging
// out without a session is not an error.
func (c *Client) Logout(ctx context.Context) error {
	if c == nil || c.store == nil {
		return ErrEngineNotReady
	}

	var userID string
	if s, err := c.store.Load(ctx); err == nil {
		userID = s.Identity.ID
	}

	if err := c.store.Clear(ctx); err != nil {
		c.logger.WarnContext(ctx, "authflow: logout failed to clear session", "error", err)
		c.emitAudit(ctx, auditEventLogout, "", "", false, userID, AsFailure(err), nil)
		return err
	}

	c.metricInc(MetricLogout)
	c.emitAudit(ctx, auditEventLogout, "", "", true, userID, nil, nil)
	c.navigator.Navigate(c.config.Routes.Login, nil)
	return nil
}

// establishSession writes the session built from resp. It is the only place
// the store is written.
func (c *Client) establishSession(ctx context.Context, resp AuthResponse) (Session, *Failure) {
	if resp.Token == "" {
		return Session{}, &Failure{Kind: KindServer, Message: msgServer, Err: errors.New("auth response carried no token")}
	}

	now := c.now()
	s := Session{
		Token:    resp.Token,
		Identity: resp.User.Identity(),
		IssuedAt: now,
	}
	if info, ok := jwt.Inspect(resp.Token); ok && !info.ExpiresAt.IsZero() {
		s.ExpiresAt = info.ExpiresAt
	} else {
		s.ExpiresAt = now.Add(c.config.Session.DefaultTTL)
	}

	if err := c.store.Replace(context.WithoutCancel(ctx), s); err != nil {
		c.metricInc(MetricSessionWriteFailure)
		c.logger.WarnContext(ctx, "authflow: session write failed", "user_id", s.Identity.ID, "error", err)
		return Session{}, &Failure{Kind: KindServer, Message: msgServer, Err: err}
	}

	c.metricInc(MetricSessionCreated)
	return s, nil
}

// deliverNavigation navigates unless the controller owning guard has been
// disposed since its outcome was committed.
func (c *Client) deliverNavigation(ctx context.Context, guard *flows.Guard, flowID string, route Route, state NavState) {
	if !guard.Deliver(func() { c.navigator.Navigate(route, state) }) {
		c.logger.DebugContext(ctx, "authflow: navigation skipped after dispose", "flow_id", flowID, "route", string(route))
	}
}

func (c *Client) callGateway(ctx context.Context, call func(context.Context) error) error {
	start := time.Now()
	err := call(ctx)
	c.metricObserve(MetricGatewayLatency, time.Since(start))
	return err
}

// countSkipped records a submission that was ignored without a network call.
func (c *Client) countSkipped(fc flowCounters) {
	c.metricInc(MetricRequestSkipped)
	c.metricInc(fc.skipped)
}

func (c *Client) metricInc(id MetricID) {
	if c == nil || c.metrics == nil {
		return
	}
	c.metrics.Inc(id)
}

func (c *Client) metricObserve(id MetricID, d time.Duration) {
	if c == nil || c.metrics == nil {
		return
	}
	c.metrics.Observe(id, d)
}
