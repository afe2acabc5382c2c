package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/MrEthical07/authflow"
	"github.com/MrEthical07/authflow/gateway"
	"github.com/MrEthical07/authflow/internal/logging"
)

// terminalNavigator prints route changes and remembers the last one.
type terminalNavigator struct {
	out io.Writer

	mu    sync.Mutex
	route authflow.Route
	state authflow.NavState
}

func (n *terminalNavigator) Navigate(route authflow.Route, state authflow.NavState) {
	n.mu.Lock()
	n.route = route
	n.state = state
	n.mu.Unlock()
	fmt.Fprintf(n.out, "-> %s\n", route)
}

func (n *terminalNavigator) Last() (authflow.Route, authflow.NavState) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.route, n.state
}

// app is one configured client plus the resources it owns.
type app struct {
	cfg    cliConfig
	client *authflow.Client
	nav    *terminalNavigator
	logger *slog.Logger

	closers []func()
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(configFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Options{
		Service: "authflow",
		Version: version,
		Format:  cfg.LogFormat,
		Level:   cfg.LogLevel,
		Writer:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("log_level", cfg.LogLevel).Wrap(err)
	}

	clientCfg := cfg.clientConfig()
	gw, err := gateway.New(clientCfg.Gateway)
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("server", cfg.Server).Wrap(err)
	}

	a := &app{
		cfg:    cfg,
		nav:    &terminalNavigator{out: cmd.OutOrStdout()},
		logger: logger,
	}

	b := authflow.New().
		WithConfig(clientCfg).
		WithGateway(gw).
		WithNavigator(a.nav).
		WithLogger(logger)
	if cfg.Audit {
		b.WithAuditSink(authflow.NewJSONWriterSink(cmd.ErrOrStderr()))
	}

	if cfg.Store == storeRedis {
		rdb, err := a.dialRedis(cmd.Context())
		if err != nil {
			a.Close()
			return nil, err
		}
		b.WithRedis(rdb)
	}

	client, err := b.Build()
	if err != nil {
		a.Close()
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	a.client = client
	a.closers = append(a.closers, client.Close)
	return a, nil
}

func (a *app) dialRedis(ctx context.Context) (redis.UniversalClient, error) {
	addr := a.cfg.RedisAddr
	if addr == redisEmbedded {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, oops.Code("REDIS_FAILED").With("operation", "start embedded redis").Wrap(err)
		}
		a.closers = append(a.closers, mr.Close)
		addr = mr.Addr()
		a.logger.Debug("embedded redis started", "addr", addr)
	}

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{addr},
	})
	a.closers = append(a.closers, func() { _ = rdb.Close() })

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, oops.Code("REDIS_FAILED").With("addr", addr).With("operation", "ping").Wrap(err)
	}
	return rdb, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// failureError turns a failed outcome into a coded CLI error.
func failureError(code string, f *authflow.Failure) error {
	if f == nil {
		return nil
	}
	return oops.Code(code).
		With("kind", f.Kind.String()).
		With("status", f.Status).
		Errorf("%s", f.Message)
}
