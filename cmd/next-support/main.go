package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/ashwinyue/next-support/internal/config"
	"github.com/ashwinyue/next-support/internal/database"
	"github.com/ashwinyue/next-support/internal/handler"
	"github.com/ashwinyue/next-support/internal/logger"
	"github.com/ashwinyue/next-support/internal/repository"
	"github.com/ashwinyue/next-support/internal/router"
	"github.com/ashwinyue/next-support/internal/service"
	"github.com/ashwinyue/next-support/internal/service/knowledge"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to config yaml")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Debug)
	gin.SetMode(cfg.Server.Mode)

	// 初始化数据库
	db, err := database.New(cfg, database.WithLogger(log))
	if err != nil {
		log.Error("failed to init database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("database connected", "dbname", cfg.Database.DBName)

	// 初始化 Redis，可选
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	} else {
		log.Warn("redis disabled, rate limiting and cross-instance turn locks are off")
	}

	// 初始化 Elasticsearch，可选
	var esClient *elasticsearch.Client
	if cfg.Elastic.Host != "" {
		esClient, err = knowledge.NewESClient(cfg.Elastic.Host, cfg.Elastic.Username, cfg.Elastic.Password)
		if err != nil {
			log.Warn("failed to create elasticsearch client, knowledge search uses database", "error", err)
			esClient = nil
		}
	}

	// 初始化各层
	repos := repository.NewRepositories(db.DB)
	services, err := service.NewServices(repos, cfg, nil, redisClient, esClient, log)
	if err != nil {
		log.Error("failed to init services", "error", err)
		os.Exit(1)
	}
	handlers := handler.NewHandlers(services, db.Ping)
	r := router.SetupRouter(handlers, services)

	srv := &http.Server{
		Addr:         cfg.Server.GetAddr(),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Info("server starting", "addr", srv.Addr, "env", cfg.App.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}
	log.Info("server exited")
}
