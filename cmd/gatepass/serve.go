package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alfredjeanlab/gatepass/internal/archive"
	"github.com/alfredjeanlab/gatepass/internal/audit"
	"github.com/alfredjeanlab/gatepass/internal/audit/postgres"
	"github.com/alfredjeanlab/gatepass/internal/authority"
	"github.com/alfredjeanlab/gatepass/internal/config"
	"github.com/alfredjeanlab/gatepass/internal/events"
	"github.com/alfredjeanlab/gatepass/internal/forward"
	"github.com/alfredjeanlab/gatepass/internal/policy"
	"github.com/alfredjeanlab/gatepass/internal/reconcile"
	"github.com/alfredjeanlab/gatepass/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the gate-entry server",
	GroupID: "system",
	// Override PersistentPreRunE so we don't build an HTTP client.
	PersistentPreRunE: noClient,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		slog.SetDefault(logger)

		// Load configuration.
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		p, err := policy.Resolve(cfg.Policy, cfg.PolicyFile)
		if err != nil {
			return err
		}
		logger.Info("policy loaded", "policy_id", p.PolicyID, "policy_version", p.PolicyVersion)

		auditLog, err := openAudit(cfg, logger)
		if err != nil {
			return err
		}

		// Events always reach the SSE hub; NATS is optional.
		hub := server.NewHub()
		publisher := events.Multi{hub}
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				auditLog.Close()
				return err
			}
			publisher = append(publisher, pub)
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			logger.Info("NATS events disabled (GATEPASS_NATS_URL not set)")
		}

		var forwarder forward.Forwarder = forward.NoopForwarder{}
		serverOpts := []server.Option{server.WithLogger(logger)}
		if cfg.ForwardURL != "" {
			fc := forward.NewClient(cfg.ForwardURL, auditLog,
				forward.WithTimeout(cfg.ForwardTimeout),
				forward.WithLogger(logger),
			)
			forwarder = fc
			serverOpts = append(serverOpts, server.WithReplay(fc))
			logger.Info("forwarding enabled", "url", cfg.ForwardURL)
		} else {
			logger.Info("forwarding disabled (GATEPASS_FORWARD_URL not set)")
		}

		lookup := authority.NewClient(cfg.AuthorityURL, cfg.AuthorityAction,
			authority.WithTimeout(cfg.AuthorityTimeout),
			authority.WithLocation(cfg.AuthorityLocation),
			authority.WithLogger(logger),
		)
		engine := reconcile.New(lookup, &p,
			reconcile.WithAudit(auditLog),
			reconcile.WithPublisher(publisher),
			reconcile.WithForwarder(forwarder),
			reconcile.WithLogger(logger),
		)
		gateServer := server.New(engine, auditLog, hub, serverOpts...)

		// Start gRPC health listener.
		var stopGRPC func()
		if cfg.GRPCEnabled() {
			grpcServer, health := server.NewGRPCServer(cfg.AuthToken, logger)
			lis, err := net.Listen("tcp", cfg.GRPCAddr)
			if err != nil {
				publisher.Close()
				auditLog.Close()
				return err
			}
			go func() {
				logger.Info("gRPC health listening", "addr", cfg.GRPCAddr)
				if err := grpcServer.Serve(lis); err != nil {
					logger.Error("gRPC server error", "err", err)
				}
			}()
			stopGRPC = func() {
				health.Shutdown()
				grpcServer.GracefulStop()
			}
		}

		// Start HTTP server.
		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           gateServer.NewHTTPHandler(cfg.AuthToken),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		// Start archive scheduler if any destinations are configured.
		var scheduler *archive.Scheduler
		if cfg.ArchiveEnabled() {
			if dests := archiveDestinations(cfg, logger); len(dests) > 0 {
				scheduler = archive.NewScheduler(auditLog, dests, cfg.ArchiveInterval, logger)
				scheduler.Start(context.Background())
				logger.Info("archive scheduler started", "interval", cfg.ArchiveInterval)
			}
		}

		logger.Info("gatepass server started",
			"http_addr", cfg.HTTPAddr,
			"grpc_addr", cfg.GRPCAddr,
			"audit_backend", cfg.AuditBackend,
		)

		// Wait for SIGINT or SIGTERM.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		if scheduler != nil {
			scheduler.Stop()
			logger.Info("archive scheduler stopped")
		}

		if stopGRPC != nil {
			stopGRPC()
			logger.Info("gRPC server stopped")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := auditLog.Close(); err != nil {
			logger.Error("error closing audit log", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}

// openAudit opens the configured audit backend.
func openAudit(cfg *config.Config, logger *slog.Logger) (audit.Log, error) {
	switch cfg.AuditBackend {
	case config.BackendPostgres:
		logger.Info("audit backend: postgres")
		l, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return l, nil
	case config.BackendMemory:
		logger.Warn("audit backend: memory (history is lost on restart)")
		return audit.NewMemoryLog(), nil
	default:
		logger.Info("audit backend: file", "dir", cfg.AuditDir)
		l, err := audit.OpenFileLog(cfg.AuditDir, logger)
		if err != nil {
			return nil, err
		}
		return l, nil
	}
}

// archiveDestinations builds the configured export targets. A destination
// that cannot be set up is logged and skipped.
func archiveDestinations(cfg *config.Config, logger *slog.Logger) []archive.Destination {
	var dests []archive.Destination
	if cfg.ArchiveS3Bucket != "" {
		s3Dest, err := archive.NewS3Destination(
			context.Background(),
			cfg.ArchiveS3Bucket,
			cfg.ArchiveS3Key,
			cfg.ArchiveS3Region,
			cfg.ArchiveS3Endpoint,
		)
		if err != nil {
			logger.Error("failed to create S3 archive destination", "err", err)
		} else {
			dests = append(dests, s3Dest)
			logger.Info("archive S3 destination enabled", "bucket", cfg.ArchiveS3Bucket, "key", cfg.ArchiveS3Key)
		}
	}
	if cfg.ArchiveGitRepo != "" {
		dests = append(dests, archive.NewGitDestination(cfg.ArchiveGitRepo, cfg.ArchiveGitFile, cfg.ArchiveGitBranch))
		logger.Info("archive git destination enabled", "repo", cfg.ArchiveGitRepo, "file", cfg.ArchiveGitFile)
	}
	return dests
}
