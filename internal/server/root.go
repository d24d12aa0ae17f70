package server

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
	"github.com/zhirschtritt/deals/internal/config"
	"github.com/zhirschtritt/deals/internal/domain"
	"github.com/zhirschtritt/deals/internal/logger"
	"github.com/zhirschtritt/deals/internal/repository"
	"github.com/zhirschtritt/deals/internal/seed"
)

var rootCmd = &cobra.Command{
	Use:          "deals",
	Short:        "Deals CRUD service",
	Long:         `HTTP service for creating, reading, updating and deleting deals, backed by PostgreSQL`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	seedCmd.Flags().IntVar(&seedCount, "count", 10, "Number of sample deals to insert")
	seedCmd.Flags().IntVar(&seedConcurrency, "concurrency", 4, "Number of concurrent inserts")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(seedCmd)
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return startServer()
	},
}

var (
	seedCount       int
	seedConcurrency int
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert sample deals",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSeed(cmd.Context(), seedCount, seedConcurrency)
	},
}

func startServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	server, err := NewServer(cfg, logger.New(cfg))
	if err != nil {
		return err
	}
	return server.Start()
}

func runSeed(ctx context.Context, count, concurrency int) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if count <= 0 {
		return fmt.Errorf("count must be positive, got %d", count)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg)

	pool, err := openPool(cfg.DBConnString, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	// seeded deals do not go through the activity log
	dealService := domain.NewDealService(repository.NewDBDealRepository(db), nil, log)

	_, err = seed.NewSeeder(dealService, log, concurrency).Seed(ctx, count)
	return err
}
