package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"gorm.io/gorm"

	"github.com/ashwinyue/next-support/internal/config"
	"github.com/ashwinyue/next-support/internal/database"
	"github.com/ashwinyue/next-support/internal/logger"
	"github.com/ashwinyue/next-support/internal/service/knowledge"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to config yaml")
	syncES := flag.Bool("es", true, "sync knowledge articles to elasticsearch when configured")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.App.Debug)

	// 建表之后在同一步骤链里写入演示数据
	var result *database.SeedResult
	db, err := database.New(cfg,
		database.WithLogger(log),
		database.WithAfterMigrate(func(ctx context.Context, tx *gorm.DB) (err error) {
			result, err = database.Seed(ctx, tx)
			return err
		}),
	)
	if err != nil {
		log.Error("failed to seed database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	for _, u := range result.Users {
		log.Info("seeded user", "id", u.ID, "email", u.Email)
	}

	if !*syncES || cfg.Elastic.Host == "" {
		log.Info("skipping elasticsearch sync")
		return
	}

	client, err := knowledge.NewESClient(cfg.Elastic.Host, cfg.Elastic.Username, cfg.Elastic.Password)
	if err != nil {
		log.Error("failed to create elasticsearch client", "error", err)
		os.Exit(1)
	}
	indexer, err := knowledge.NewIndexer(ctx, client, knowledge.IndexName(cfg.Elastic.IndexPrefix))
	if err != nil {
		log.Error("failed to create indexer", "error", err)
		os.Exit(1)
	}
	n, err := indexer.Sync(ctx, result.Articles)
	if err != nil {
		log.Error("failed to sync knowledge articles", "error", err)
		os.Exit(1)
	}
	log.Info("seed completed", "articles_indexed", n)
}
