package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/joeychilson/autolink/cache"
	"github.com/joeychilson/autolink/logger"
	"github.com/joeychilson/autolink/metrics"
	"github.com/joeychilson/autolink/server"
	"github.com/joeychilson/autolink/service"
)

const (
	defaultAddr       = ":8080"
	defaultConfigFile = "./config.yaml"
	defaultLogLevel   = "info"
)

func main() {
	addr := getEnv("ADDR", defaultAddr)
	configFile := getEnv("CONFIG_FILE", defaultConfigFile)
	redisURL := getEnv("REDIS_URL", "")
	logLevel := getEnv("LOG_LEVEL", defaultLogLevel)

	level, err := logger.ParseLevel(logLevel)
	log := logger.NewWithLevel(level)
	if err != nil {
		log.Warn("unknown log level, using info", "level", logLevel)
	}

	log.Info("starting autolink API server", "log_level", level.String())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var svc *service.Service
	if _, statErr := os.Stat(configFile); statErr == nil {
		log.Info("loading config from file", "file", configFile)
		svc, err = service.NewFromFile(configFile)
	} else {
		log.Info("using default configuration (config file not found)", "checked", configFile)
		svc, err = service.New(nil)
	}
	if err != nil {
		log.Error("failed to create service", "error", err)
		os.Exit(1)
	}

	registry := prom.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewPrometheusRecorder(registry)

	svc = svc.WithLogger(log).WithMetrics(recorder)
	defer svc.Close()

	serverCfg := &server.Config{
		RateLimitRequests: getEnvInt(log, "RATE_LIMIT_REQUESTS", 0),
		RateLimitWindow:   getEnvDuration(log, "RATE_LIMIT_WINDOW", 0),
		APIKey:            os.Getenv("API_KEY"),
		Metrics:           recorder.Handler(),
	}

	if redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			log.Error("failed to parse redis URL", "error", err)
			os.Exit(1)
		}

		redisClient := redis.NewClient(opts)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}

		log.Info("redis connection established", "addr", opts.Addr)

		svc = svc.WithCache(cache.NewRedisCache(redisClient, cache.Config{}))
		serverCfg.RedisClient = redisClient
	} else {
		log.Info("REDIS_URL not set, using in-memory cache and rate limits")
	}

	srv, err := server.New(svc, log, serverCfg)
	if err != nil {
		log.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	if err := srv.StartWithShutdown(ctx, addr); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}

	log.Info("server shutdown complete")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(log logger.Logger, key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Warn("invalid integer environment variable, using default", "key", key, "value", value)
		return defaultValue
	}
	return n
}

func getEnvDuration(log logger.Logger, key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Warn("invalid duration environment variable, using default", "key", key, "value", value)
		return defaultValue
	}
	return d
}
