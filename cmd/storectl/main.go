package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"storefront/internal/config"
	"storefront/internal/importer"
	"storefront/internal/logger"
	"storefront/internal/seed"
	"storefront/internal/service/identity"
	"storefront/internal/storage"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, "console").With(zap.String("component", "storectl"))
	defer func() { _ = log.Sync() }()

	cmd := &cli.Command{
		Name:  "storectl",
		Usage: "Storefront maintenance tasks",
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "Create or update the catalog and cart schema",
				Action: func(ctx context.Context, c *cli.Command) error {
					stores, err := storage.Open(ctx, cfg.DBDriver, cfg.DBConnString, log)
					if err != nil {
						return err
					}
					defer stores.Close()
					if err := stores.Migrate(ctx); err != nil {
						return err
					}
					log.Info("migrations applied", zap.String("driver", cfg.DBDriver))
					return nil
				},
			},
			{
				Name:  "seed",
				Usage: "Upsert the demo fashion catalog",
				Action: func(ctx context.Context, c *cli.Command) error {
					stores, err := storage.Open(ctx, cfg.DBDriver, cfg.DBConnString, log)
					if err != nil {
						return err
					}
					defer stores.Close()
					products, err := seed.Apply(ctx, stores.Products)
					if err != nil {
						return err
					}
					for _, p := range products {
						fmt.Printf("%s\t%s\t%d variants\n", p.ID, p.Key, len(p.Variants))
					}
					return nil
				},
			},
			{
				Name:      "import",
				Usage:     "Import products and variants from a CSV export",
				ArgsUsage: "<file.csv>",
				Action: func(ctx context.Context, c *cli.Command) error {
					path := c.Args().First()
					if path == "" {
						return errors.New("import: CSV file path is required")
					}
					f, err := os.Open(path)
					if err != nil {
						return fmt.Errorf("open file: %w", err)
					}
					defer f.Close()

					stores, err := storage.Open(ctx, cfg.DBDriver, cfg.DBConnString, log)
					if err != nil {
						return err
					}
					defer stores.Close()

					start := time.Now()
					count, err := importer.NewCSVImporter(f, stores.Products, log).Run(ctx)
					if err != nil {
						return fmt.Errorf("import failed after %d products: %w", count, err)
					}
					fmt.Printf("Imported %d products in %s\n", count, time.Since(start).Truncate(time.Millisecond))
					return nil
				},
			},
			{
				Name:      "token",
				Usage:     "Issue a bearer token for a user id (development only)",
				ArgsUsage: "<user-id>",
				Flags: []cli.Flag{
					&cli.DurationFlag{Name: "ttl", Usage: "token lifetime", Value: cfg.JWTTTL},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					if cfg.JWTSecret == "" {
						return errors.New("token: JWT_SECRET is not set")
					}
					token, expires, err := identity.NewTokens(cfg.JWTSecret, c.Duration("ttl")).Issue(c.Args().First())
					if err != nil {
						return err
					}
					fmt.Println(token)
					log.Info("token issued", zap.Time("expires_at", expires))
					return nil
				},
			},
			{
				Name:  "keys",
				Usage: "Generate cookie session keys for .env",
				Action: func(ctx context.Context, c *cli.Command) error {
					auth, enc, err := config.GenerateSessionKeys()
					if err != nil {
						return err
					}
					fmt.Printf("SESSION_AUTH_KEY=%s\n", auth)
					fmt.Printf("SESSION_ENC_KEY=%s\n", enc)
					return nil
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal("storectl failed", zap.Error(err))
	}
}
