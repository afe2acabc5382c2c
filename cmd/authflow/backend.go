package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/MrEthical07/authflow/authtest"
	"github.com/MrEthical07/authflow/internal/logging"
)

const shutdownTimeout = 5 * time.Second

type backendConfig struct {
	listen    string
	fixedCode string
	logFormat string
	logLevel  string
	throttle  int
	window    time.Duration
}

// NewFakeBackendCmd creates the fake-backend subcommand.
func NewFakeBackendCmd() *cobra.Command {
	cfg := &backendConfig{}

	cmd := &cobra.Command{
		Use:   "fake-backend",
		Short: "Serve an in-memory auth API with demo users",
		Long: `Serve an in-memory auth API seeded with demo users (admin/admin123,
testuser/password123, newbie/newbie123). Issued codes are logged so the
reset flow can be exercised without email delivery.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFakeBackend(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.listen, "listen", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&cfg.fixedCode, "fixed-code", "", "issue this code instead of a random one")
	cmd.Flags().StringVar(&cfg.logFormat, "backend-log-format", "text", "log format: json or text")
	cmd.Flags().StringVar(&cfg.logLevel, "backend-log-level", "info", "log level")
	cmd.Flags().IntVar(&cfg.throttle, "throttle", 0, "failed logins or codes allowed per window (0 disables)")
	cmd.Flags().DurationVar(&cfg.window, "throttle-window", 15*time.Minute, "throttle window")

	return cmd
}

func runFakeBackend(cmd *cobra.Command, cfg *backendConfig) error {
	logger, err := logging.New(logging.Options{
		Service: "authflow-fake-backend",
		Version: version,
		Format:  cfg.logFormat,
		Level:   cfg.logLevel,
		Writer:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}

	scfg := authtest.DefaultConfig()
	scfg.Logger = logger
	if cfg.throttle > 0 {
		mr, err := miniredis.Run()
		if err != nil {
			return oops.Code("REDIS_FAILED").With("operation", "start embedded redis").Wrap(err)
		}
		defer mr.Close()
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer rdb.Close()

		scfg.Throttle = authtest.ThrottleConfig{
			Redis:             rdb,
			MaxLoginFailures:  cfg.throttle,
			MaxVerifyFailures: cfg.throttle,
			Window:            cfg.window,
		}
	}
	srv, err := authtest.NewServer(scfg, authtest.DemoUsers()...)
	if err != nil {
		return oops.Code("BACKEND_FAILED").With("operation", "create server").Wrap(err)
	}
	if cfg.fixedCode != "" {
		srv.SetFixedCode(cfg.fixedCode)
	}

	ln, err := net.Listen("tcp", cfg.listen)
	if err != nil {
		return oops.Code("BACKEND_FAILED").With("addr", cfg.listen).Wrap(err)
	}

	httpSrv := &http.Server{
		Handler:           srv,
		ReadHeaderTimeout: 5 * time.Second,
	}
	fmt.Fprintf(cmd.OutOrStdout(), "fake backend listening on http://%s\n", ln.Addr())

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return oops.Code("BACKEND_FAILED").With("operation", "serve").Wrap(err)
	case <-cmd.Context().Done():
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		return oops.Code("BACKEND_FAILED").With("operation", "shutdown").Wrap(err)
	}
	logger.Info("fake backend stopped")
	return nil
}
