package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ashwinyue/next-support/internal/config"
	"github.com/ashwinyue/next-support/internal/model"
)

// DB 数据库封装
type DB struct {
	*gorm.DB
	opts options
}

// Step 迁移步骤，按注册顺序在同一连接上执行
type Step func(ctx context.Context, db *gorm.DB) error

type options struct {
	log          *slog.Logger
	migrate      bool
	afterMigrate []Step
}

// Option 连接选项
type Option func(*options)

// WithLogger SQL 日志写入给定的 slog 日志器
func WithLogger(log *slog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithoutMigrate 连接后不做迁移
func WithoutMigrate() Option {
	return func(o *options) { o.migrate = false }
}

// WithAfterMigrate 建表之后追加步骤，例如写入演示数据
func WithAfterMigrate(steps ...Step) Option {
	return func(o *options) { o.afterMigrate = append(o.afterMigrate, steps...) }
}

func newOptions(opts []Option) options {
	o := options{log: slog.Default(), migrate: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New 连接数据库，校验连通性后执行迁移
func New(cfg *config.Config, opts ...Option) (*DB, error) {
	o := newOptions(opts)

	db, err := gorm.Open(postgres.Open(cfg.Database.GetDSN()), gormConfig(o.log, cfg.App.Debug))
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.Database.MaxLifetime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	d := &DB{DB: db, opts: o}
	if o.migrate {
		if err := d.Migrate(context.Background()); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
	}
	return d, nil
}

// gormConfig 时间统一 UTC，debug 时输出全部 SQL，否则只记慢查询和错误
func gormConfig(log *slog.Logger, debug bool) *gorm.Config {
	level := gormlogger.Warn
	if debug {
		level = gormlogger.Info
	}
	return &gorm.Config{
		Logger: gormlogger.NewSlogLogger(log, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Migrate 建表、建关键词索引，再执行附加步骤
func (db *DB) Migrate(ctx context.Context) error {
	steps := append([]Step{migrateModels, indexKeywords}, db.opts.afterMigrate...)
	return runSteps(ctx, db.DB, steps)
}

func runSteps(ctx context.Context, db *gorm.DB, steps []Step) error {
	for i, step := range steps {
		if err := step(ctx, db.WithContext(ctx)); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}

func migrateModels(ctx context.Context, db *gorm.DB) error {
	return db.AutoMigrate(model.AllModels...)
}

// indexKeywords 知识库关键词交集查询走 GIN 索引
func indexKeywords(ctx context.Context, db *gorm.DB) error {
	return db.Exec(`CREATE INDEX IF NOT EXISTS idx_knowledge_articles_keywords ON knowledge_articles USING GIN (keywords)`).Error
}

// Close 关闭数据库连接
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping 检查数据库连接
func (db *DB) Ping(ctx context.Context) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
