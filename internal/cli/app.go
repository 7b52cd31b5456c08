package cli

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/dajeong/miso/internal/config"
	"github.com/dajeong/miso/internal/logger"
	"github.com/dajeong/miso/internal/observability"
	"github.com/dajeong/miso/internal/tracing"
	"github.com/dajeong/miso/pkg/mcplink"
	"github.com/dajeong/miso/pkg/orchestrator"
	"github.com/dajeong/miso/pkg/reasoner"
	"github.com/dajeong/miso/pkg/toolinvoker"
	"github.com/rs/zerolog/log"
)

// loadConfig reads the effective configuration, honoring the global
// --config and --log-level flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

// app bundles the wired assistant and everything that needs tearing down.
type app struct {
	cfg        *config.Config
	log        *logger.Logger
	orch       *orchestrator.Orchestrator
	link       *mcplink.Manager
	metricsSrv *http.Server
	tracing    bool
}

// newApp wires the logger, metrics, tracing, reasoning engine, remote
// link, and orchestrator from the configuration. The remote link is
// constructed but not connected; callers decide when to connect.
func newApp(cfg *config.Config) (*app, error) {
	lg, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   cfg.Logging.Console,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
		MaxSize:   cfg.Logging.MaxSize,
		MaxAge:    cfg.Logging.MaxAge,
		Compress:  cfg.Logging.Compress,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	a := &app{cfg: cfg, log: lg}

	auditPath := filepath.Join(cfg.DataDir, "audit.log")
	if err := observability.InitAuditLogger(auditPath); err != nil {
		log.Warn().Err(err).Str("path", auditPath).Msg("Audit trail unavailable, events go to stderr")
	}

	if cfg.Tracing.Enabled {
		if err := tracing.InitOpenTelemetry(cfg.Tracing.ServiceName); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
		a.tracing = true
	}

	observability.EnsureRegistered()
	if addr := cfg.Telemetry.MetricsAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.MetricsHandler())
		a.metricsSrv = &http.Server{Addr: addr, Handler: mux}
		go func(srv *http.Server) {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Str("addr", addr).Msg("Metrics listener stopped")
			}
		}(a.metricsSrv)
	}

	engine, err := reasoner.New(reasoner.EngineConfig{
		Provider:     cfg.Engine.Provider,
		Model:        cfg.Engine.Model,
		APIKey:       cfg.Engine.APIKey,
		MaxTokens:    cfg.Engine.MaxTokens,
		Temperature:  cfg.Engine.Temperature,
		SystemPrompt: cfg.Engine.SystemPrompt,
		MaxRetries:   cfg.Engine.MaxRetries,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to build reasoning engine: %w", err)
	}

	opts := []orchestrator.Option{
		orchestrator.WithLogCapacity(cfg.Telemetry.ExecutionLogCapacity),
	}

	// The invoker and orchestrator take the link through interfaces, so
	// only hand them a *mcplink.Manager that actually exists.
	inv := toolinvoker.New(nil)
	if cfg.Remote.Enabled {
		a.link = mcplink.New(mcplink.Config{
			Endpoint:          cfg.Remote.Endpoint,
			APIKey:            cfg.Remote.APIKey,
			Profile:           cfg.Remote.Profile,
			ConnectTimeout:    time.Duration(cfg.Remote.ConnectTimeoutSeconds) * time.Second,
			MaxRetries:        cfg.Remote.MaxRetries,
			CallTimeout:       time.Duration(cfg.Remote.CallTimeoutSeconds) * time.Second,
			FailureThreshold:  cfg.Remote.FailureThreshold,
			ReconnectCooldown: time.Duration(cfg.Remote.ReconnectCooldownSeconds) * time.Second,
		})
		inv = toolinvoker.New(a.link)
		opts = append(opts, orchestrator.WithRemoteLink(a.link))
	}
	if cfg.Tools.LocalTimeoutSeconds > 0 {
		inv.SetLocalTimeout(time.Duration(cfg.Tools.LocalTimeoutSeconds) * time.Second)
	}
	opts = append(opts, orchestrator.WithInvoker(inv))

	a.orch = orchestrator.New(engine, opts...)
	return a, nil
}

// connectRemote runs the initial connection attempt and installs the
// retry schedule. A failed attempt leaves the link degraded and retrying;
// it is not an error, because local tools keep working.
func (a *app) connectRemote(ctx context.Context) {
	if a.link == nil {
		return
	}
	if err := a.link.Connect(ctx); err != nil {
		log.Warn().Err(err).Msg("Remote tool server unavailable, continuing with local tools")
	}
	if spec := a.cfg.Remote.RetrySchedule; spec != "" {
		if err := a.link.StartRetrySchedule(spec); err != nil {
			log.Warn().Err(err).Str("schedule", spec).Msg("Retry schedule rejected")
		}
	}
}

// Close tears down in reverse wiring order. Safe to call on a partially
// built app.
func (a *app) Close() {
	if a.orch != nil {
		a.orch.Close()
	} else if a.link != nil {
		a.link.Close()
	}
	if a.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = a.metricsSrv.Shutdown(ctx)
		cancel()
	}
	if a.tracing {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := tracing.ShutdownOpenTelemetry(ctx); err != nil {
			log.Warn().Err(err).Msg("Tracing shutdown failed")
		}
		cancel()
	}
	if err := observability.GetAuditLogger().Close(); err != nil {
		log.Warn().Err(err).Msg("Audit logger close failed")
	}
	if a.log != nil {
		_ = a.log.Close()
	}
}
