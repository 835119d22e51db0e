// =============================================================================
// AskForge worker 主入口
// =============================================================================
// 问答作业 worker 进程：轮询作业队列，驱动 RAG 管线，流式写回事件。
//
// 使用方法:
//
//	askforge work                        # 启动 worker
//	askforge work --config config.yaml  # 指定配置文件
//	askforge version                    # 显示版本信息
// =============================================================================
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/askforge/askforge/checkpoint"
	"github.com/askforge/askforge/config"
	"github.com/askforge/askforge/internal/metrics"
	"github.com/askforge/askforge/jobs"
	"github.com/askforge/askforge/providers"
	"github.com/askforge/askforge/rag"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "work":
		runWork(os.Args[2:])
	case "version":
		fmt.Printf("askforge %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`AskForge - 检索增强问答 worker

Usage:
  askforge work [--config config.yaml] [--metrics-addr :9090]
  askforge version`)
}

func runWork(args []string) {
	fs := flag.NewFlagSet("work", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	metricsAddr := fs.String("metrics-addr", ":9090", "Prometheus metrics listen address, empty to disable")
	_ = fs.Parse(args)

	cfg, err := config.NewLoader().WithConfigPath(*configPath).Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := buildLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	recorder := metrics.NewCollector("askforge", logger)

	queue, events, store, checkpoints := buildBackends(cfg, recorder, logger)
	pipeline := buildPipeline(cfg, recorder, logger)

	worker := jobs.NewWorker(jobs.WorkerConfig{
		PollInterval: cfg.Worker.PollInterval,
		JobTimeout:   cfg.Worker.JobTimeout,
	}, queue, events, store, pipeline, recorder, logger).
		WithCheckpoints(checkpoints)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *metricsAddr != "" {
		go serveMetrics(ctx, *metricsAddr, logger)
	}

	logger.Info("askforge worker starting",
		zap.String("version", version),
		zap.Bool("redis", cfg.Redis.Addr != ""))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("worker exited", zap.Error(err))
	}
}

// buildBackends 按配置选择 Redis 或内存后端。
func buildBackends(cfg *config.Config, recorder metrics.Recorder, logger *zap.Logger) (jobs.JobQueue, jobs.EventQueue, jobs.StatusStore, checkpoint.Store) {
	if cfg.Redis.Addr == "" {
		logger.Info("redis not configured, using in-memory backends")
		return jobs.NewMemoryJobQueue(),
			jobs.NewMemoryEventQueue(cfg.Worker.EventTTL, recorder),
			jobs.NewMemoryStatusStore(),
			checkpoint.NewMemoryStore(cfg.Checkpoint.KeepLast)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return jobs.NewRedisJobQueue(client, cfg.Redis.KeyPrefix),
		jobs.NewRedisEventQueue(client, cfg.Redis.KeyPrefix, cfg.Worker.EventTTL, recorder),
		jobs.NewRedisStatusStore(client, cfg.Redis.KeyPrefix),
		checkpoint.NewRedisStore(client, cfg.Redis.KeyPrefix, cfg.Checkpoint.KeepLast)
}

// buildPipeline 把扁平的配置映射到管线各阶段。
// 未配置 API key 时不接 LLM，管线以确定性回退模式运行，
// 便于冒烟验证整条链路。
func buildPipeline(cfg *config.Config, recorder metrics.Recorder, logger *zap.Logger) *rag.Pipeline {
	pcfg := rag.DefaultPipelineConfig()
	pcfg.Decomposer.MaxSubQueries = cfg.Pipeline.MaxSubQueries
	pcfg.Retriever.MaxConcurrency = cfg.Pipeline.SearchConcurrency
	pcfg.Retriever.Timeout = cfg.Pipeline.SearchTimeout
	pcfg.SearchK = cfg.Pipeline.SearchK
	pcfg.Merger.TopK = cfg.Pipeline.TopK
	pcfg.Merger.MaxPerSource = cfg.Pipeline.MaxPerSource
	pcfg.PostProcessor.TopK = cfg.Pipeline.TopK
	pcfg.PostProcessor.MaxPerSource = cfg.Pipeline.MaxPerSource
	pcfg.PostProcessor.MaxCharsPerDoc = cfg.Pipeline.MaxCharsPerDoc
	pcfg.Summary.TurnThreshold = cfg.Pipeline.SummaryThreshold
	pcfg.Safeguard.UseLLM = cfg.Pipeline.SafeguardUseLLM

	caps := rag.Capabilities{}
	if cfg.LLM.APIKey != "" {
		client := providers.NewOpenAIClient(providers.OpenAIConfig{
			BaseURL:        cfg.LLM.BaseURL,
			APIKey:         cfg.LLM.APIKey,
			Model:          cfg.LLM.Model,
			EmbeddingModel: cfg.LLM.EmbeddingModel,
			Temperature:    cfg.LLM.Temperature,
			MaxTokens:      cfg.LLM.MaxTokens,
			Timeout:        cfg.LLM.Timeout,
		}, logger)
		caps.Generator = client
		caps.Embedder = client
		if cfg.Pipeline.GeneratorRPS > 0 {
			caps.Generator = rag.NewRateLimitedGenerator(client, cfg.Pipeline.GeneratorRPS, 1)
		}
	}
	return rag.NewPipeline(pcfg, caps, recorder, logger)
}

func serveMetrics(ctx context.Context, addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics endpoint listening", zap.String("addr", addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server failed", zap.Error(err))
	}
}

// buildLogger 按配置构建 zap logger。
func buildLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	logger, err := zapConfig.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
