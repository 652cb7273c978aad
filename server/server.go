package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"DHAdmin/cache"
	"DHAdmin/config"
	"DHAdmin/core/auth"
	"DHAdmin/core/confdoc"
	"DHAdmin/core/live"
	"DHAdmin/core/projectconf"
	"DHAdmin/db"
	"DHAdmin/events"
	"DHAdmin/logger"
	"DHAdmin/repository"
	"DHAdmin/storage"
)

// Start connects every backing service, serves HTTP on cfg.HTTPAddr and
// blocks until SIGINT or SIGTERM.
func Start(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	gormDB, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close(gormDB)

	if err := db.AutoMigrateModels(gormDB, repository.Models()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	authOpts := []auth.Option{auth.WithTokenTTL(cfg.TokenTTL)}
	if cfg.TokenDenylist {
		rdb, err := db.ConnectRedis(cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		defer rdb.Close()
		authOpts = append(authOpts, auth.WithDenylist(cache.NewTokenDenylist(rdb)))
		logger.Info("[Server] 已启用令牌吊销列表")
	}

	authService, err := auth.NewService(repository.NewGormUserRepository(gormDB), cfg.JWTSecret, authOpts...)
	if err != nil {
		return err
	}

	// 素材上传为可选功能
	var assets assetStore
	if cfg.MinioEndpoint != "" {
		client, err := storage.NewMinioClient(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize MinIO: %w", err)
		}
		assets = storage.NewAssetStore(client, cfg.MinioBucket)
		logger.Info("[Server] MinIO 已连接", logger.String("bucket", cfg.MinioBucket))
	}

	hub := live.NewHub()
	go hub.Run()
	defer hub.Stop()

	publishers := events.Multi{hub}
	if cfg.AMQPURL != "" {
		amqpPublisher, err := events.DialAMQP(cfg.AMQPURL)
		if err != nil {
			return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		defer amqpPublisher.Close()
		publishers = append(publishers, amqpPublisher)
		logger.Info("[Server] 配置变更事件将发布到 RabbitMQ", logger.String("exchange", events.ConfigExchange))
	}

	configService := projectconf.NewService(repository.NewGormConfigRepository(gormDB), publishers)

	apiHandler := NewAPIHandler(Deps{
		Config:    cfg,
		Auth:      authService,
		Configs:   configService,
		Snapshots: confdoc.NewSnapshots(confdoc.DefaultMaxVersions),
		Assets:    assets,
		Hub:       hub,
	})

	// 设置服务器超时
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(apiHandler),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute, // 视频上传
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	// 创建一个通道来接收操作系统信号
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("[Server] starting", logger.String("addr", cfg.HTTPAddr), logger.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// 等待中断信号
	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-stop:
	}
	logger.Info("[Server] Shutting down server...")

	// 创建一个5秒超时的上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("[Server] Server stopped")
	return nil
}
