package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/turnpike-ai/turnpike/internal/analytics"
	"github.com/turnpike-ai/turnpike/internal/gateway"
	"github.com/turnpike-ai/turnpike/internal/idempotency"
	"github.com/turnpike-ai/turnpike/internal/log"
	"github.com/turnpike-ai/turnpike/internal/metering"
	"github.com/turnpike-ai/turnpike/internal/orchestrator"
	"github.com/turnpike-ai/turnpike/internal/provider"
	"github.com/turnpike-ai/turnpike/internal/reliability"
	"github.com/turnpike-ai/turnpike/internal/retention"
	"github.com/turnpike-ai/turnpike/internal/store"
	"github.com/turnpike-ai/turnpike/internal/voice"
	"github.com/turnpike-ai/turnpike/pkg/config"
	"github.com/turnpike-ai/turnpike/pkg/observability"
	"github.com/turnpike-ai/turnpike/pkg/security"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway and observability servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return err
	}

	log.Init(cfg.Log.Level, cfg.Log.Format)
	log.Info("starting turnpike", "version", Version, "addr", cfg.Server.Addr)

	observability.InitMetrics()
	if err := observability.InitTracingFromEnv(); err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	st := store.NewMemoryStore()

	idem, sweepTargets, err := buildIdempotencyStore(cfg)
	if err != nil {
		return err
	}
	defer idem.Close()

	meter := metering.NewMeter()
	for name, price := range cfg.Pricing {
		meter.SetPrice(name, price)
	}

	registry, err := buildRegistry(ctx, cfg, meter)
	if err != nil {
		return err
	}

	controller := reliability.New(registry, reliability.Config{
		CallTimeout: cfg.Reliability.CallTimeout.Std(),
		MaxRetries:  cfg.Reliability.MaxRetries,
		BackoffBase: cfg.Reliability.BackoffBase.Std(),
		BackoffCap:  cfg.Reliability.BackoffCap.Std(),
	})

	orch := orchestrator.New(st, idem, controller, meter)
	voicePipe := voice.NewPipeline(
		orch,
		&voice.SimTranscriber{MinBytes: cfg.Voice.MinAudioBytes},
		&voice.SimSynthesizer{},
		st,
	)

	srv := gateway.NewServer(gateway.Config{
		Addr:         cfg.Server.Addr,
		BodyLimit:    cfg.Server.BodyLimit,
		APIKeyPepper: cfg.APIKeyPepper,
	}, gateway.Deps{
		Store:     st,
		Turns:     orch,
		Voice:     voicePipe,
		Reporter:  analytics.NewReporter(st),
		Registry:  registry,
		RateLimit: security.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
	})

	checker := observability.NewHealthChecker(Version)
	checker.RegisterCheck(observability.PingCheck())
	if cfg.Idempotency.Backend == "redis" {
		checker.RegisterCheck(observability.RedisCheck(idem.Ping))
	}
	obsServer := observability.NewServer(cfg.Server.ObservabilityPort, checker)

	sweeper, err := retention.NewSweeper(cfg.Retention.SweepSchedule, sweepTargets...)
	if err != nil {
		return err
	}
	sweeper.Start()
	defer sweeper.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("gateway listening", "addr", cfg.Server.Addr)
		return srv.Start()
	})
	g.Go(func() error {
		log.Info("observability listening", "port", cfg.Server.ObservabilityPort)
		return obsServer.Start()
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	case <-gctx.Done():
		log.Error("server error", "error", gctx.Err())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(); err != nil {
		log.Error("gateway shutdown", "error", err)
	}
	if err := obsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("observability shutdown", "error", err)
	}
	if err := observability.ShutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown", "error", err)
	}

	_ = g.Wait()
	log.Info("stopped")
	return nil
}

// buildIdempotencyStore selects the configured backend. The memory backend
// additionally joins the retention sweep.
func buildIdempotencyStore(cfg *config.Config) (idempotency.Store, []retention.Sweepable, error) {
	switch cfg.Idempotency.Backend {
	case "redis":
		idem, err := idempotency.NewRedisStore(idempotency.RedisConfig{
			Addr:           cfg.Redis.Addr,
			Password:       cfg.Redis.Password,
			DB:             cfg.Redis.DB,
			PoolSize:       cfg.Redis.PoolSize,
			ReservationTTL: cfg.Idempotency.ReservationTTL.Std(),
			ResultTTL:      cfg.Idempotency.ResultTTL.Std(),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("idempotency redis: %w", err)
		}
		return idem, nil, nil
	default:
		idem := idempotency.NewMemoryStore(cfg.Idempotency.ReservationTTL.Std())
		return idem, []retention.Sweepable{idem}, nil
	}
}

// buildRegistry registers the simulated vendors unconditionally and the
// real backends whose credentials are configured. Every provider gets a
// pricing entry before a turn can select it.
func buildRegistry(ctx context.Context, cfg *config.Config, meter *metering.Meter) (*provider.Registry, error) {
	registry := provider.NewRegistry()

	register := func(p provider.ChatProvider) error {
		if _, ok := meter.Price(p.Name()); !ok {
			return fmt.Errorf("provider %q has no pricing entry", p.Name())
		}
		registry.Register(provider.Instrument(p))
		return nil
	}

	if err := register(provider.NewVendorA()); err != nil {
		return nil, err
	}
	if err := register(provider.NewVendorB()); err != nil {
		return nil, err
	}

	if cfg.Providers.OpenAIKey != "" {
		if err := register(provider.NewOpenAI(cfg.Providers.OpenAIKey, cfg.Providers.OpenAIModel)); err != nil {
			return nil, err
		}
	}
	if cfg.Providers.GeminiKey != "" {
		gem, err := provider.NewGemini(ctx, cfg.Providers.GeminiKey, cfg.Providers.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("gemini client: %w", err)
		}
		if err := register(gem); err != nil {
			return nil, err
		}
	}
	if cfg.Providers.BedrockEnabled {
		br, err := provider.NewBedrock(ctx, cfg.Providers.BedrockRegion, cfg.Providers.BedrockModel)
		if err != nil {
			return nil, fmt.Errorf("bedrock client: %w", err)
		}
		if err := register(br); err != nil {
			return nil, err
		}
	}

	log.Info("providers registered", "providers", registry.List())
	return registry, nil
}
