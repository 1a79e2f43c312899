// Package storage opens the catalog and cart repositories for the configured
// database driver.
package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"storefront/internal/db"
	"storefront/internal/migrate"
	cartrepo "storefront/internal/repository/cart"
	productrepo "storefront/internal/repository/product"
	productsvc "storefront/internal/service/product"
)

// Stores holds the repositories of one backend.
type Stores struct {
	Driver   string
	Carts    cartrepo.Repository
	Products productrepo.Repository

	ping    func(ctx context.Context) error
	migrate func(ctx context.Context) error
	close   func()
}

// Open connects to the backend named by driver: pgx, mysql, postgres, sqlite
// or memory.
func Open(ctx context.Context, driver, dsn string, logger *zap.Logger) (*Stores, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch driver {
	case "pgx":
		pool, err := db.Connect(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("connect pgx: %w", err)
		}
		return &Stores{
			Driver:   driver,
			Carts:    cartrepo.NewPostgres(pool, logger),
			Products: productrepo.NewPostgres(pool, logger),
			ping:     pool.Ping,
			migrate:  func(ctx context.Context) error { return migrate.Apply(ctx, pool, logger) },
			close:    pool.Close,
		}, nil

	case "mysql", "postgres", "sqlite":
		gdb, err := db.OpenGorm(driver, dsn)
		if err != nil {
			return nil, err
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, fmt.Errorf("get underlying sql.DB: %w", err)
		}
		return &Stores{
			Driver:   driver,
			Carts:    cartrepo.NewGorm(gdb, logger),
			Products: productrepo.NewGorm(gdb, logger),
			ping:     sqlDB.PingContext,
			migrate:  func(context.Context) error { return db.AutoMigrate(gdb) },
			close: func() {
				if err := sqlDB.Close(); err != nil {
					logger.Warn("close database", zap.Error(err))
				}
			},
		}, nil

	case "memory":
		products := productrepo.NewMemory()
		return &Stores{
			Driver:   driver,
			Carts:    cartrepo.NewMemory(productsvc.New(products)),
			Products: products,
		}, nil
	}
	return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
}

// Ping checks connectivity. The memory backend is always reachable.
func (s *Stores) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

// Migrate brings the schema up to date: embedded SQL migrations for pgx,
// gorm AutoMigrate for the other SQL drivers.
func (s *Stores) Migrate(ctx context.Context) error {
	if s.migrate == nil {
		return nil
	}
	if err := s.migrate(ctx); err != nil {
		return fmt.Errorf("migrate %s: %w", s.Driver, err)
	}
	return nil
}

func (s *Stores) Close() {
	if s.close != nil {
		s.close()
	}
}
