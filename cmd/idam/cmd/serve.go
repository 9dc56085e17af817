package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/venicegeo/pz-idam/cmd/idam/cmd/cmdutil"
	"github.com/venicegeo/pz-idam/internal/logging"
	"github.com/venicegeo/pz-idam/internal/scheduler"
	"github.com/venicegeo/pz-idam/internal/server"
	"github.com/venicegeo/pz-idam/internal/services/throttle"
	"github.com/venicegeo/pz-idam/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the identity gateway",
	Long: `Starts the HTTP server together with the job stream consumer (when
Redis is configured) and the scheduled throttle reset and profile
verification tasks.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		shutdownTelemetry, metricsHandler, err := telemetry.Init(ctx, cfg.Observability)
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := shutdownTelemetry(sctx); err != nil {
				logging.Warnf("telemetry shutdown: %v", err)
			}
		}()

		bundle, err := cmdutil.NewBundle(ctx, cfg)
		if err != nil {
			return err
		}
		defer bundle.Close()

		logging.Infow("Connected to database", "authn_mode", bundle.Router.Variant())

		serverMetrics, err := telemetry.NewServerMetrics()
		if err != nil {
			return fmt.Errorf("failed to create server metrics: %w", err)
		}

		srv := &http.Server{
			Addr: cfg.ServerAddr,
			Handler: server.NewH2CHandler(server.RouterOptions{
				Gateway:        bundle.Gateway,
				RelyingParty:   bundle.RelyingParty,
				Server:         cfg.Server,
				Metrics:        serverMetrics,
				MetricsHandler: metricsHandler,
			}),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		sched, err := newScheduler(ctx, bundle)
		if err != nil {
			return err
		}

		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			logging.Infof("Starting server on %s", cfg.ServerAddr)
			logging.Infof("Server URL: %s", cfg.ServerURL)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		})

		if cfg.Redis.Addr != "" {
			client := cmdutil.NewRedisClient(cfg.Redis)
			defer client.Close()

			consumer := throttle.NewJobConsumer(client, throttle.ConsumerConfig{
				Stream:       cfg.Throttle.Stream,
				Group:        cfg.Throttle.Group,
				Consumer:     cfg.Throttle.Consumer,
				BatchSize:    cfg.Throttle.BatchSize,
				BlockTimeout: cfg.Throttle.BlockTimeout,
				ClaimMinIdle: cfg.Throttle.ClaimMinIdle,
			}, bundle.Counter)
			if err := consumer.Start(gctx); err != nil {
				return err
			}

			g.Go(func() error {
				<-gctx.Done()
				sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return consumer.Stop(sctx)
			})
		} else {
			logging.Warnf("Redis not configured; job throttle counts will not be incremented")
		}

		sched.Start(gctx)

		g.Go(func() error {
			<-gctx.Done()
			logging.Infof("Shutting down gracefully")

			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			sched.Stop()
			if err := srv.Shutdown(sctx); err != nil {
				_ = srv.Close()
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}
			logging.Infof("Server stopped")
			return nil
		})

		return g.Wait()
	},
}

// newScheduler registers the throttle reset and, when the authenticator can
// look up attributes, the weekly profile verification.
func newScheduler(ctx context.Context, bundle *cmdutil.Bundle) (*scheduler.Scheduler, error) {
	sched := scheduler.New()

	err := sched.Add(ctx, "throttle-reset", cfg.Throttle.ResetSchedule, func(ctx context.Context) error {
		return bundle.Counter.ResetAll(ctx)
	})
	if err != nil {
		return nil, err
	}

	verifier, ok := bundle.Verifier()
	if !ok {
		logging.Infof("Profile verification disabled for %s authentication", bundle.Router.Variant())
		return sched, nil
	}

	err = sched.Add(ctx, "profile-verify", cfg.Profiles.VerifySchedule, func(ctx context.Context) error {
		summary, err := verifier.Run(ctx)
		if err != nil {
			return err
		}
		logging.Infow("Profile verification complete",
			"checked", summary.Checked, "updated", summary.Updated,
			"removed", summary.Removed, "failed", summary.Failed)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sched, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
