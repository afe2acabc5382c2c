package authflow

import (
	"log/slog"
	"time"

	"github.com/MrEthical07/authflow/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles a [Client].
//
// Builder instances are intended to be configured during initialization and
// used once; a second Build returns [ErrBuilderUsed].
type Builder struct {
	config Config

	gateway   Gateway
	store     SessionStore
	storeSet  bool
	redis     redis.UniversalClient
	navigator Navigator
	auditSink AuditSink
	logger    *slog.Logger
	ticks     func(time.Duration) TickSource

	built bool
}

// New returns a Builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithGateway sets the network collaborator. Required.
func (b *Builder) WithGateway(g Gateway) *Builder {
	b.gateway = g
	return b
}

// WithSessionStore sets the store holding the current session. It takes
// precedence over WithRedis. Without either, sessions live in memory.
func (b *Builder) WithSessionStore(store SessionStore) *Builder {
	b.store = store
	b.storeSet = true
	return b
}

// WithRedis keeps sessions in Redis under Config.Session.RedisPrefix and
// Config.Session.Profile.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithNavigator sets the navigation capability. Required.
func (b *Builder) WithNavigator(n Navigator) *Builder {
	b.navigator = n
	return b
}

// WithAuditSink sets the audit sink. It only takes effect when Config.Audit.Enabled.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the logger. The default discards everything.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the gateway latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithTickSource replaces the clock that drives resend cooldowns. Tests use it
// to step the countdown manually.
func (b *Builder) WithTickSource(factory func(interval time.Duration) TickSource) *Builder {
	b.ticks = factory
	return b
}

// Build validates the configuration and returns a ready Client.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.gateway == nil {
		return nil, ErrGatewayRequired
	}
	if b.navigator == nil {
		return nil, ErrNavigatorRequired
	}

	// -------- SESSION STORE --------
	var store SessionStore
	switch {
	case b.storeSet:
		if b.store == nil {
			return nil, ErrSessionStoreRequired
		}
		store = b.store
	case b.redis != nil:
		store = session.NewRedisStore(
			b.redis,
			cfg.Session.RedisPrefix,
			cfg.Session.Profile,
			cfg.Session.DefaultTTL,
		)
	default:
		store = session.NewMemoryStore()
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	ticks := b.ticks
	if ticks == nil {
		ticks = NewClockTicks
	}

	client := &Client{
		config:     cfg,
		gateway:    b.gateway,
		store:      store,
		navigator:  b.navigator,
		redirector: NewRedirector(cfg.Routes),
		logger:     logger,
		ticks:      ticks,
		now:        time.Now,
	}
	client.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	client.metrics = NewMetrics(cfg.Metrics)

	b.built = true

	return client, nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	return out
}
