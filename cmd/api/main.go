package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"storefront/internal/cache"
	"storefront/internal/config"
	"storefront/internal/httpserver"
	"storefront/internal/logger"
	"storefront/internal/repository/localcart"
	"storefront/internal/seed"
	cartsvc "storefront/internal/service/cart"
	"storefront/internal/service/identity"
	productsvc "storefront/internal/service/product"
	"storefront/internal/storage"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFormat).With(zap.String("component", "api"))
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}
	keys, err := cfg.SessionKeys()
	if err != nil {
		log.Fatal("session keys", zap.Error(err))
	}

	ctx := context.Background()
	stores, err := storage.Open(ctx, cfg.DBDriver, cfg.DBConnString, log)
	if err != nil {
		log.Fatal("open storage", zap.String("driver", cfg.DBDriver), zap.Error(err))
	}
	defer stores.Close()

	if cfg.AutoMigrate || cfg.DBDriver == "sqlite" || cfg.DBDriver == "memory" {
		if err := stores.Migrate(ctx); err != nil {
			log.Fatal("migrate", zap.Error(err))
		}
	}
	if cfg.DBDriver == "memory" {
		if _, err := seed.Apply(ctx, stores.Products); err != nil {
			log.Fatal("seed memory catalog", zap.Error(err))
		}
	}

	var carts cartsvc.Store = stores.Carts
	ready := stores.Ping
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		carts = cache.NewCachedStore(stores.Carts, cache.NewRedisCache(rdb, cfg.CartCacheTTL), log)
		ready = func(ctx context.Context) error {
			if err := stores.Ping(ctx); err != nil {
				return err
			}
			return rdb.Ping(ctx).Err()
		}
		log.Info("cart cache enabled", zap.String("redis", cfg.RedisAddr), zap.Duration("ttl", cfg.CartCacheTTL))
	}

	catalog := productsvc.New(stores.Products)
	sessionStore := localcart.NewSessionStore(keys...)
	var local httpserver.LocalStoreFactory
	switch cfg.AnonStore {
	case "redis":
		local = httpserver.Shared(localcart.NewRedis(rdb, localcart.DefaultRedisTTL))
	case "memory":
		local = httpserver.Shared(localcart.NewMemory())
	default:
		local = func(w http.ResponseWriter, r *http.Request) cartsvc.LocalStore {
			return localcart.NewCookie(sessionStore, w, r, catalog, log)
		}
	}

	gin.SetMode(gin.ReleaseMode)
	srv, err := httpserver.New(cfg.HTTPAddr, log, httpserver.Deps{
		Carts:       carts,
		Locks:       cartsvc.NewLocks(),
		LocalStore:  local,
		Catalog:     catalog,
		Tokens:      identity.NewTokens(cfg.JWTSecret, cfg.JWTTTL),
		Anonymous:   identity.NewAnonymous(sessionStore),
		Ready:       ready,
		CORSOrigins: cfg.CORSOrigins,
		Currency:    cfg.CurrencySymbol,
	})
	if err != nil {
		log.Fatal("init server", zap.Error(err))
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	} else {
		log.Info("server stopped")
	}
}
