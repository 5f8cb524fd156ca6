package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sakara-commerce/storefront/internal/checkout"
	"github.com/sakara-commerce/storefront/internal/destination"
	"github.com/sakara-commerce/storefront/internal/domain"
	"github.com/sakara-commerce/storefront/internal/gateway"
	"github.com/sakara-commerce/storefront/internal/handlers"
	"github.com/sakara-commerce/storefront/internal/platform/config"
	"github.com/sakara-commerce/storefront/internal/platform/observability"
	"github.com/sakara-commerce/storefront/internal/session"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("storefront")
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	catalog, err := config.LoadChannelCatalog(cfg.Payments.ChannelCatalogPath)
	if err != nil {
		logger.Fatal("failed to load payment channel catalog", zap.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close error", zap.Error(err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to reach redis", zap.Error(err))
	}

	sessionStore, err := session.NewStore(redisClient, cfg.Session.TTL)
	if err != nil {
		logger.Fatal("failed to initialise session store", zap.Error(err))
	}

	// All requests share one client; the per-session commerce token is
	// resolved from the request context on each call.
	client, err := gateway.NewClient(gateway.ClientConfig{
		Endpoint:     cfg.Commerce.Endpoint,
		ChannelToken: cfg.Commerce.ChannelToken,
		Timeout:      cfg.Commerce.Timeout,
		Tokens:       session.NewContextTokenSource(sessionStore),
	})
	if err != nil {
		logger.Fatal("failed to initialise commerce client", zap.Error(err))
	}

	registry, err := checkout.NewRegistry(checkout.RegistryDeps{
		Factory: func(sessionID string) (*checkout.ActiveOrderManager, error) {
			sessionClient, err := gateway.NewClient(gateway.ClientConfig{
				Endpoint:     cfg.Commerce.Endpoint,
				ChannelToken: cfg.Commerce.ChannelToken,
				Timeout:      cfg.Commerce.Timeout,
				Tokens:       session.NewTokenSource(sessionStore, sessionID),
			})
			if err != nil {
				return nil, err
			}
			sessionLogger := logger.Named("checkout").With(zap.String("session_id", sessionID))
			manager, err := checkout.NewActiveOrderManager(checkout.ActiveOrderManagerDeps{
				Client: sessionClient,
				Logger: sessionLogger,
			})
			if err != nil {
				return nil, err
			}
			manager.Subscribe(func(order *domain.Order) {
				sessionLogger.Debug("order snapshot",
					zap.String("order_code", order.Code),
					zap.String("order_state", string(order.State)),
					zap.Int("lines", order.LineCount()))
			})
			return manager, nil
		},
		Logger: logger.Named("registry"),
		TTL:    cfg.Session.ManagerTTL,
	})
	if err != nil {
		logger.Fatal("failed to initialise checkout registry", zap.Error(err))
	}

	janitorCtx, janitorCancel := context.WithCancel(ctx)
	defer janitorCancel()
	registry.StartJanitor(janitorCtx, 0)

	resolver, err := destination.NewResolver(destination.ResolverDeps{
		Client:         client,
		Logger:         logger.Named("destination"),
		MinQueryLength: cfg.Destination.MinQueryLength,
		ResultLimit:    cfg.Destination.ResultLimit,
	})
	if err != nil {
		logger.Fatal("failed to initialise destination resolver", zap.Error(err))
	}

	settlementPoller, err := checkout.NewSettlementPoller(checkout.SettlementPollerDeps{
		Client:   client,
		Logger:   logger.Named("settlement"),
		Interval: cfg.Payments.PollInterval,
	})
	if err != nil {
		logger.Fatal("failed to initialise settlement poller", zap.Error(err))
	}

	dispatcherFor := func(manager *checkout.ActiveOrderManager) (*checkout.PaymentDispatcher, error) {
		return checkout.NewPaymentDispatcher(checkout.PaymentDispatcherDeps{
			Manager:    manager,
			Catalog:    catalog,
			MethodCode: cfg.Payments.MethodCode,
			Logger:     logger.Named("payments"),
		})
	}

	cartHandlers := handlers.NewCartHandlers(registry)
	checkoutHandlers := handlers.NewCheckoutHandlers(registry, dispatcherFor)
	destinationHandlers := handlers.NewDestinationHandlers(resolver)
	orderHandlers := handlers.NewOrderHandlers(client, settlementPoller)
	countryHandlers := handlers.NewCountryHandlers(client, cfg.Commerce.CountryCacheTTL, nil)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			session.Middleware(cfg.Session.CookieName, cfg.Session.TTL, cfg.Session.Secure),
			observability.InjectLoggerMiddleware(logger),
			observability.RequestLoggerMiddleware(),
			observability.RecoveryMiddleware(logger),
		),
		handlers.WithCartRoutes(cartHandlers.Routes),
		handlers.WithCheckoutRoutes(checkoutHandlers.Routes),
		handlers.WithDestinationRoutes(destinationHandlers.Routes),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithCountryRoutes(countryHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("storefront listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	janitorCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
