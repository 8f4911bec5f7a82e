package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	httpapi "github.com/caseflow/caseflow/internal/api/http"
	"github.com/caseflow/caseflow/internal/application/cooldown"
	"github.com/caseflow/caseflow/internal/application/dispatcher"
	"github.com/caseflow/caseflow/internal/application/lifecycle"
	"github.com/caseflow/caseflow/internal/application/partner"
	"github.com/caseflow/caseflow/internal/config"
	"github.com/caseflow/caseflow/internal/domain/action"
	"github.com/caseflow/caseflow/internal/domain/payment"
	"github.com/caseflow/caseflow/internal/infrastructure/gateway"
	"github.com/caseflow/caseflow/internal/infrastructure/postgres"
	"github.com/caseflow/caseflow/internal/infrastructure/sse"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db error: %v", err)
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		log.Fatalf("migration error: %v", err)
	}

	registry, err := payment.LoadRegistry(cfg.PaymentProfilesPath)
	if err != nil {
		log.Fatalf("payment profiles error: %v", err)
	}

	guards, err := lifecycle.NewGuardSet(map[action.Type]string{
		action.TypeCreateShop:   cfg.ShopCreateGuardExpr,
		action.TypeCreateMidman: cfg.MidmanCreateGuardExpr,
	})
	if err != nil {
		log.Fatalf("guard error: %v", err)
	}

	// infrastructure
	ticketRepo := postgres.NewTicketRepository(pool)
	gatewayClient := gateway.NewClient(cfg.GatewayBaseURL, &http.Client{Timeout: cfg.ExternalCallTimeout}, logger)
	renderHub := sse.NewHub()

	// services
	lifecycleSvc := lifecycle.NewService(ticketRepo, gatewayClient, registry, guards, cfg.SupportRoleID, cfg.MidmanRoleID, logger)
	resolver := partner.NewResolver(gatewayClient, time.Second, logger)
	cooldowns := cooldown.NewTracker(cfg.CreateCooldown, cooldown.SystemClock(), logger)
	dispatcherSvc := dispatcher.NewService(lifecycleSvc, resolver, cooldowns, cfg.ExternalCallTimeout, logger)

	apiServer := httpapi.NewServer(dispatcherSvc, lifecycleSvc, renderHub, logger)

	httpServer := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      apiServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	go cooldowns.Run(sweepCtx, cfg.CooldownSweepEvery)

	go func() {
		logger.Info().Str("addr", cfg.ServerAddr).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	stopSweep()
	renderHub.Stop()
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctxShutdown)
}
