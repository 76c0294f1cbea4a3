package db

import (
	"context"
	"fmt"
	"intelhub/internal/config"
	"intelhub/internal/models"
	"log/slog"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open 按配置打开数据库连接并完成自动迁移
func Open(cfg config.DatabaseConfig, logLevel string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = openSQLite(cfg.URL)
	case "postgres", "":
		dialector = postgres.Open(cfg.URL)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}

	gormLevel := logger.Warn
	if logLevel == "debug" {
		gormLevel = logger.Info
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(gormLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	slog.Info("database connection established", "driver", conn.Dialector.Name())

	if err := Migrate(conn); err != nil {
		return nil, err
	}
	slog.Info("database migration completed")
	return conn, nil
}

// Migrate 建表；子类型表与 sources 共享主键，外键在 postgres 上单独补建
func Migrate(conn *gorm.DB) error {
	err := conn.AutoMigrate(
		&models.Source{},
		&models.ForumDetail{},
		&models.ForumPost{},
		&models.RansomwareGroupDetail{},
		&models.RansomwareEntry{},
		&models.RansomwareIngestKey{},
		&models.TelegramDetail{},
	)
	if err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	if conn.Dialector.Name() != "postgres" {
		return nil
	}
	for _, table := range []string{"forums", "ransomware_groups", "telegrams"} {
		name := "fk_" + table + "_source"
		if conn.Migrator().HasConstraint(table, name) {
			continue
		}
		stmt := fmt.Sprintf(`ALTER TABLE %q ADD CONSTRAINT %q FOREIGN KEY ("id") REFERENCES "sources"("id") ON UPDATE CASCADE ON DELETE CASCADE`, table, name)
		if err := conn.Exec(stmt).Error; err != nil {
			return fmt.Errorf("add constraint %s: %w", name, err)
		}
	}
	return nil
}

// Tx 一个工作单元：fn 返回错误或 panic 时整体回滚，否则提交
func Tx(ctx context.Context, conn *gorm.DB, fn func(tx *gorm.DB) error) error {
	return conn.WithContext(ctx).Transaction(fn)
}
