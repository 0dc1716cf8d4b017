package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"order-admin/internal/config"
	httpctl "order-admin/internal/controllers/http"
	"order-admin/internal/infra"
	"order-admin/internal/infra/cache"
	"order-admin/internal/infra/db"
	"order-admin/internal/infra/rabbitmq"
	"order-admin/internal/logger"
	"order-admin/internal/metrics"
	"order-admin/internal/repository/gormrepo"
	"order-admin/internal/services"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	logger.Init(zl)
	defer logger.Sync()

	gdb, err := db.Open(cfg)
	if err != nil {
		logger.L().Fatal("db: connect", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}
	repo := gormrepo.NewOrderRepository(gdb)

	var publisher rabbitmq.PublisherInterface = rabbitmq.NopPublisher{Log: zl}
	if cfg.RabbitMQ.URL != "" {
		p, err := rabbitmq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, zl)
		if err != nil {
			logger.L().Fatal("failed to init publisher", zap.Error(err))
		}
		defer p.Close()
		publisher = p
	} else {
		logger.Warn("RABBITMQ_URL not set, order notifications are disabled")
	}

	s := services.NewOrderService(repo, infra.NewHTTPDownloader(cfg.Download.Timeout, cfg.Download.AllowedHosts), publisher)
	s.SetLogger(zl)
	s.SetActionCooldown(cfg.Action.Cooldown)

	if addr := cfg.Redis.RedisAddr(); addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:         addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis unreachable, list cache will miss", zap.String("addr", addr), zap.Error(err))
		}
		s.SetCache(cache.NewRedisOrderListCache(redisClient, cfg.Redis.ListTTL, zl))
	}

	metrics.Register(prometheus.DefaultRegisterer)

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery(), logger.GinMiddleware(zl), metrics.Instrument())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	httpctl.NewHandler(s, zl).RegisterRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting order admin service", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L().Fatal("server run", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	s.Wait()
}
