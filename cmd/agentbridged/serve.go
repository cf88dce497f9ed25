package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agentbridge/agentbridge/internal/agent"
	"github.com/agentbridge/agentbridge/internal/audit"
	"github.com/agentbridge/agentbridge/internal/auth"
	"github.com/agentbridge/agentbridge/internal/cache"
	"github.com/agentbridge/agentbridge/internal/command"
	"github.com/agentbridge/agentbridge/internal/config"
	"github.com/agentbridge/agentbridge/internal/httpapi"
	"github.com/agentbridge/agentbridge/internal/metrics"
	"github.com/agentbridge/agentbridge/internal/natsbridge"
	"github.com/agentbridge/agentbridge/internal/policy"
	"github.com/agentbridge/agentbridge/internal/ratelimit"
	"github.com/agentbridge/agentbridge/internal/secretstore"
	"github.com/agentbridge/agentbridge/internal/store"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the agentbridge HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*configPath)
		},
	}
}

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	db, err := store.Open(cfg.Store.DSN)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}

	agentRepo := store.NewAgentRepo(db)
	commandRepo := store.NewCommandRepo(db)
	auditRepo := store.NewAuditRepo(db)
	policyRepo := store.NewPolicyRepo(db)
	deploymentRepo := store.NewDeploymentRepo(db)

	var secretBackend secretstore.SecretStore = secretstore.NewMemory()
	var sharedCache cache.Cache = cache.NewMemory()
	if cfg.Cache.Backend == "redis" {
		redisCache, err := cache.NewRedis(cfg.Cache.RedisURL, "agentbridge")
		if err != nil {
			return fmt.Errorf("connect redis cache: %w", err)
		}
		sharedCache = redisCache
	}
	secrets := secretstore.NewCachedStore(secretBackend, sharedCache, cfg.Auth.BearerCacheTTL)

	agentRegistry := agent.NewRegistry(agentRepo, deploymentRepo, secrets, cfg.Auth.AgentSecretPrefix)
	auditLog := audit.NewLogger(auditRepo)

	authorizer := policy.NewAuthorizer()
	policyLoader := policy.NewLoader(policyRepo, authorizer)
	if err := policyLoader.Reload(); err != nil {
		return fmt.Errorf("load initial policy: %w", err)
	}

	hmacVerifier := auth.NewHMACVerifier(secrets, cfg.Auth.AgentSecretPrefix, cfg.Auth.HMACClockSkew)

	var bearerVerifier *auth.BearerVerifier
	if cfg.Auth.OIDCIssuer != "" {
		bearerVerifier, err = auth.NewBearerVerifier(context.Background(), cfg.Auth.OIDCIssuer, cfg.Auth.OIDCAudience, sharedCache, cfg.Auth.BearerCacheTTL)
		if err != nil {
			return fmt.Errorf("init bearer verifier: %w", err)
		}
	}
	pipeline := auth.NewPipeline(hmacVerifier, bearerVerifier, cfg.Auth.AllowAnonymous)

	waiters := command.NewWaiterRegistry()
	var signaler command.Signaler = waiters

	var embeddedNATS *natsbridge.EmbeddedServer
	var bridge *natsbridge.Bridge
	if cfg.NATS.Enabled {
		natsURL := cfg.NATS.URL
		if cfg.NATS.Embedded {
			embeddedNATS = natsbridge.NewEmbeddedServer(natsbridge.EmbeddedServerConfig{})
			if err := embeddedNATS.Start(); err != nil {
				return fmt.Errorf("start embedded nats: %w", err)
			}
			natsURL = embeddedNATS.URL()
		}
		bridge, err = natsbridge.Connect(natsURL, waiters, log)
		if err != nil {
			return fmt.Errorf("connect nats bridge: %w", err)
		}
		signaler = bridge
	}

	dispatcher := command.NewDispatcher(commandRepo, waiters, signaler)
	limiter := ratelimit.New(20, 40, 10*time.Minute)
	reg := metrics.New(prometheus.DefaultRegisterer)
	opsHub := httpapi.NewOpsHub(log)

	ctx, stopServe := context.WithCancel(context.Background())

	reaper := command.NewReaper(commandRepo, agentRepo, time.Duration(cfg.Queue.ReaperIntervalSec)*time.Second, 3*time.Duration(cfg.Queue.ReaperIntervalSec)*time.Second, log)
	go reaper.Run(ctx)
	go opsHub.Run(ctx.Done())
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				limiter.Sweep()
			}
		}
	}()

	srv := &httpapi.Server{
		Agents:      agentRegistry,
		Dispatcher:  dispatcher,
		Commands:    commandRepo,
		AuditLog:    auditLog,
		Authorizer:  authorizer,
		PolicyLoad:  policyLoader.Reload,
		Pipeline:    pipeline,
		RateLimiter: limiter,
		Metrics:     reg,
		Hub:         opsHub,
		Log:         log,
		LongPollMin: time.Duration(cfg.Queue.LongPollMinSeconds) * time.Second,
		LongPollMax: time.Duration(cfg.Queue.LongPollMaxSeconds) * time.Second,
	}
	router := srv.NewRouter()

	httpServer := &http.Server{
		Addr:         cfg.HTTP.ListenAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: time.Duration(cfg.Queue.LongPollMaxSeconds+10) * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("agentbridge listening", zap.String("addr", cfg.HTTP.ListenAddr))
		serverErr <- httpServer.ListenAndServe()
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	for {
		select {
		case err := <-serverErr:
			if err != nil && err != http.ErrServerClosed {
				stopServe()
				return fmt.Errorf("http server failed: %w", err)
			}
		case s := <-sig:
			if s == syscall.SIGHUP {
				log.Info("received SIGHUP, reloading policy")
				if err := policyLoader.Reload(); err != nil {
					log.Error("policy reload failed", zap.Error(err))
				}
				continue
			}
			log.Info("shutting down", zap.String("signal", s.String()))
			stopServe()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = httpServer.Shutdown(shutdownCtx)
			if bridge != nil {
				bridge.Close()
			}
			if embeddedNATS != nil {
				embeddedNATS.Shutdown()
			}
			return nil
		}
	}
}
