package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deptexhq/deptex/internal/agent"
	"github.com/deptexhq/deptex/internal/config"
	"github.com/deptexhq/deptex/internal/events"
	"github.com/deptexhq/deptex/internal/policy"
	"github.com/deptexhq/deptex/internal/server"
	"github.com/deptexhq/deptex/internal/snapshot"
	"github.com/deptexhq/deptex/internal/store"
	"github.com/deptexhq/deptex/internal/store/postgres"
	"github.com/deptexhq/deptex/internal/upstream"
	"github.com/spf13/cobra"
)

// pngLabelSize is the TTF point size for node labels when a font is loaded.
const pngLabelSize = 13.0

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the Deptex gateway",
	GroupID: "system",
	// serve hosts the gateway; the usual client bootstrap would dial ourselves.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

		// Connect to Postgres when configured. Without it the gateway runs
		// stateless: views, preferences, chat history, and the audit log 503.
		var st store.Store
		if cfg.DatabaseURL != "" {
			pg, err := postgres.New(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			st = pg
			logger.Info("local store enabled")
		} else {
			logger.Info("local store disabled (DEPTEX_DATABASE_URL not set)")
		}

		closeStore := func() {
			if st == nil {
				return
			}
			if err := st.Close(); err != nil {
				logger.Error("error closing store", "err", err)
			}
		}

		// Create event publisher.
		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				closeStore()
				return err
			}
			publisher = pub
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = &events.NoopPublisher{}
			logger.Info("events disabled (DEPTEX_NATS_URL not set)")
		}

		// Connect to the core API.
		repo, err := upstream.New(cfg.CoreURL, upstream.StaticTokenSource(cfg.CoreToken), logger)
		if err != nil {
			publisher.Close()
			closeStore()
			return err
		}

		// Create the gateway.
		gw := server.NewGatewayServer(repo, st, publisher, cfg.GraphDebounce, logger)

		if cfg.FontPath != "" {
			if err := gw.Renderer().LoadFont(cfg.FontPath, pngLabelSize); err != nil {
				logger.Error("failed to load PNG font, using bitmap fallback", "path", cfg.FontPath, "err", err)
			} else {
				logger.Info("PNG font loaded", "path", cfg.FontPath)
			}
		}

		// Wire the security agent when a Gemini key is present.
		if os.Getenv("GEMINI_API_KEY") != "" {
			llm, err := agent.NewGemini(context.Background(), cfg.GeminiModel)
			if err != nil {
				logger.Error("failed to create gemini client", "err", err)
			} else {
				gw.Agent = agent.NewSecurityAgent(llm, repo, st, logger)
				logger.Info("security agent enabled", "model", cfg.GeminiModel)
			}
		} else {
			logger.Info("security agent disabled (GEMINI_API_KEY not set)")
		}

		// Start the HTTP server.
		httpServer := &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: gw.NewHTTPHandler(cfg.AuthToken),
		}
		go func() {
			logger.Info("http listener up", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http listener failed", "err", err)
			}
		}()

		// Start the snapshot scheduler if scopes and destinations are
		// configured. The gateway itself is the graph source.
		var scheduler *snapshot.Scheduler
		if cfg.SnapshotInterval > 0 && len(cfg.SnapshotScopes) > 0 {
			var dests []snapshot.Destination

			if cfg.SnapshotS3Bucket != "" {
				s3Dest, err := snapshot.NewS3Destination(
					context.Background(),
					cfg.SnapshotS3Bucket,
					cfg.SnapshotS3Key,
					cfg.SnapshotS3Region,
					cfg.SnapshotS3Endpoint,
				)
				if err != nil {
					logger.Error("failed to create S3 snapshot destination", "err", err)
				} else {
					dests = append(dests, s3Dest)
					logger.Info("snapshot S3 destination enabled", "bucket", cfg.SnapshotS3Bucket, "key", cfg.SnapshotS3Key)
				}
			}

			if cfg.SnapshotGitRepo != "" {
				gitDest := snapshot.NewGitDestination(cfg.SnapshotGitRepo, cfg.SnapshotGitFile, cfg.SnapshotGitBranch)
				dests = append(dests, gitDest)
				logger.Info("snapshot git destination enabled", "repo", cfg.SnapshotGitRepo, "file", cfg.SnapshotGitFile)
			}

			if len(dests) > 0 {
				scheduler = snapshot.NewScheduler(gw, cfg.SnapshotScopes, dests, cfg.SnapshotInterval, logger)
				scheduler.Start()
				logger.Info("snapshot scheduler started", "interval", cfg.SnapshotInterval, "scopes", len(cfg.SnapshotScopes))
			}
		}

		// Start NATS subscribers: one feeds watched scopes back into the
		// session pipeline, one keeps stored violations in sync with policy.
		var watchCancel, policyCancel context.CancelFunc
		if cfg.NATSURL != "" {
			watchSub, err := events.NewNATSSubscriber(cfg.NATSURL)
			if err != nil {
				logger.Error("failed to create watch subscriber", "err", err)
			} else {
				var watchCtx context.Context
				watchCtx, watchCancel = context.WithCancel(context.Background())
				go func() {
					if err := gw.StartWatchSubscriber(watchCtx, watchSub); err != nil {
						logger.Error("watch subscriber error", "err", err)
					}
					watchSub.Close()
				}()
				logger.Info("watch subscriber started")
			}

			if st != nil {
				policySub, err := events.NewNATSSubscriber(cfg.NATSURL)
				if err != nil {
					logger.Error("failed to create policy subscriber", "err", err)
				} else {
					watcher := policy.NewWatcher(repo, st, publisher, logger)
					var policyCtx context.Context
					policyCtx, policyCancel = context.WithCancel(context.Background())
					go func() {
						if err := watcher.StartSubscriber(policyCtx, policySub); err != nil {
							logger.Error("policy subscriber error", "err", err)
						}
						policySub.Close()
					}()
					logger.Info("policy watcher started")
				}
			}
		}

		logger.Info("deptex gateway started", "http_addr", cfg.HTTPAddr, "core_url", cfg.CoreURL)

		// Wait for SIGINT or SIGTERM.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("signal received, shutting down", "signal", sig)

		// Graceful shutdown.
		if watchCancel != nil {
			watchCancel()
			logger.Info("watch subscriber stopped")
		}
		if policyCancel != nil {
			policyCancel()
			logger.Info("policy watcher stopped")
		}

		if scheduler != nil {
			scheduler.Stop()
			logger.Info("snapshot scheduler stopped")
		}

		gw.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("http listener shutdown", "err", err)
		} else {
			logger.Info("http listener drained")
		}

		if err := publisher.Close(); err != nil {
			logger.Error("closing publisher", "err", err)
		}
		closeStore()

		logger.Info("shutdown complete")
		return nil
	},
}
