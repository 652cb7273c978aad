package db

import (
	"context"
	"fmt"
	"time"

	"DHAdmin/config"
	"DHAdmin/logger"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	_ "modernc.org/sqlite" // 纯 Go 的 sqlite 驱动，注册为 "sqlite"
)

// Dialector builds the GORM dialector for the configured DB_DRIVER.
func Dialector(cfg *config.Config) (gorm.Dialector, error) {
	switch cfg.DBDriver {
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
		return mysql.Open(dsn), nil
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
			cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)
		return postgres.Open(dsn), nil
	case "sqlite":
		return OpenSQLiteDialector(cfg.DBPath), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}

// OpenSQLiteDialector uses the modernc driver so no cgo toolchain is required.
func OpenSQLiteDialector(dsn string) gorm.Dialector {
	return sqlite.Dialector{DriverName: "sqlite", DSN: dsn}
}

// Connect opens the database and configures the connection pool.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}

	gormDB, err := Open(dialector, cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if cfg.DBDriver == "sqlite" {
		// sqlite 只允许单写连接
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Successfully connected to the database with GORM.", logger.String("driver", cfg.DBDriver))
	return gormDB, nil
}

// Open wraps gorm.Open with the project's logger settings.
func Open(dialector gorm.Dialector, logLevel string) (*gorm.DB, error) {
	gormDB, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   newGormLogger(logLevel),
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database with GORM: %w", err)
	}
	return gormDB, nil
}

// Close 关闭 GORM 数据库连接
func Close(gormDB *gorm.DB) error {
	if gormDB == nil {
		return nil
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AutoMigrateModels 自动迁移指定的模型
func AutoMigrateModels(gormDB *gorm.DB, models ...interface{}) error {
	if gormDB == nil {
		return fmt.Errorf("GORM database not initialized")
	}
	if err := gormDB.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to auto migrate models: %w", err)
	}
	logger.Info("Models migrated successfully with GORM.", logger.Int("models", len(models)))
	return nil
}

// zapWriter forwards GORM's printf-style output to the zap logger.
type zapWriter struct{}

func (zapWriter) Printf(format string, args ...interface{}) {
	logger.Debug(fmt.Sprintf(format, args...), logger.String("component", "gorm"))
}

func newGormLogger(level string) gormlogger.Interface {
	logLevel := gormlogger.Warn
	if level == "debug" {
		logLevel = gormlogger.Info
	}
	return gormlogger.New(zapWriter{}, gormlogger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  logLevel,
		IgnoreRecordNotFoundError: true,
	})
}
