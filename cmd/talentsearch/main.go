package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"talent-search-go/internal/agent"
	"talent-search-go/internal/analytics"
	"talent-search-go/internal/api/handler"
	"talent-search-go/internal/api/router"
	"talent-search-go/internal/config"
	"talent-search-go/internal/extractor"
	appCoreLogger "talent-search-go/internal/logger"
	"talent-search-go/internal/pipeline"
	"talent-search-go/internal/query"
	"talent-search-go/internal/scoring"
	"talent-search-go/internal/search"
	"talent-search-go/internal/storage"
	"talent-search-go/internal/tracing"

	"github.com/cloudwego/hertz/pkg/app/server"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/spf13/pflag"
)

var (
	version     = "1.0.0"            //nolint:gochecknoglobals
	serviceName = "talent-search-go" //nolint:gochecknoglobals
)

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "", "配置文件路径")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	initLogger(cfg)
	glog.Infof("配置加载成功 (service=%s version=%s)", serviceName, version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracingShutdown, err := tracing.InitTracerProvider(ctx, tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		ServiceName:  cfg.Tracing.ServiceName,
		SampleRatio:  cfg.Tracing.SampleRatio,
	})
	if err != nil {
		glog.Fatalf("初始化链路追踪失败: %v", err)
	}
	defer func() {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		if err := tracingShutdown(shutdownCtx); err != nil {
			glog.Warnf("关闭链路追踪失败: %v", err)
		}
	}()

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		glog.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()
	if storageManager.MySQL == nil || storageManager.MinIO == nil {
		glog.Fatalf("MySQL 和 MinIO 是必需组件，请检查配置")
	}
	glog.Info("存储服务初始化成功")

	searchClient, err := search.NewClient(&cfg.Search)
	if err != nil {
		glog.Fatalf("初始化搜索客户端失败: %v", err)
	}
	glog.Infof("搜索客户端初始化成功 (index=%s)", cfg.Search.IndexName)

	synchronizer, err := search.NewSynchronizer(searchClient, storageManager.MySQL,
		search.WithSyncLogger(componentLogger(cfg, "[Synchronizer] ")),
	)
	if err != nil {
		glog.Fatalf("初始化索引同步器失败: %v", err)
	}

	engine, err := scoring.NewEngine(searchClient,
		scoring.WithEngineLogger(componentLogger(cfg, "[ScoringEngine] ")),
	)
	if err != nil {
		glog.Fatalf("初始化排序引擎失败: %v", err)
	}

	interpreter := query.NewInterpreter(
		query.WithInterpreterLogger(componentLogger(cfg, "[Interpreter] ")),
	)
	builder := query.NewBuilder()

	resumeExtractor, err := buildResumeExtractor(ctx, cfg)
	if err != nil {
		glog.Fatalf("初始化简历提取器失败: %v", err)
	}

	pipelineOpts := []pipeline.PipelineOption{
		pipeline.WithConcurrency(cfg.Pipeline.Concurrency),
		pipeline.WithPipelineLogger(componentLogger(cfg, "[Pipeline] ")),
	}
	if delay, err := time.ParseDuration(cfg.Pipeline.InterChunkDelay); err == nil {
		pipelineOpts = append(pipelineOpts, pipeline.WithChunkDelay(delay))
	} else {
		glog.Warnf("解析批间延迟失败 (%s): %v, 使用默认值", cfg.Pipeline.InterChunkDelay, err)
	}
	if storageManager.Redis != nil {
		pipelineOpts = append(pipelineOpts, pipeline.WithDeduper(storageManager.Redis))
	}
	batchPipeline, err := pipeline.NewPipeline(storageManager.MinIO, resumeExtractor, synchronizer, pipelineOpts...)
	if err != nil {
		glog.Fatalf("初始化批处理流水线失败: %v", err)
	}
	glog.Infof("批处理流水线初始化成功 (concurrency=%d)", cfg.Pipeline.Concurrency)

	aggregatorOpts := []analytics.AggregatorOption{
		analytics.WithAggregatorLogger(componentLogger(cfg, "[Aggregator] ")),
	}
	if storageManager.Redis != nil {
		aggregatorOpts = append(aggregatorOpts, analytics.WithTrendsCache(storageManager.Redis))
	}
	aggregator, err := analytics.NewAggregator(storageManager.MySQL, aggregatorOpts...)
	if err != nil {
		glog.Fatalf("初始化分析聚合器失败: %v", err)
	}
	glog.Info("分析聚合器初始化成功")

	handlers := &router.Handlers{
		Search:    handler.NewSearchHandler(interpreter, builder, engine, aggregator),
		Candidate: handler.NewCandidateHandler(storageManager, resumeExtractor),
		Sync:      handler.NewSyncHandler(storageManager, synchronizer, batchPipeline),
		Analytics: handler.NewAnalyticsHandler(aggregator),
	}

	if storageManager.RabbitMQ != nil {
		if _, err := handlers.Sync.StartSyncConsumer(); err != nil {
			glog.Fatalf("启动同步消费者失败: %v", err)
		}
		glog.Info("索引同步消费者已启动")
	} else {
		glog.Warn("RabbitMQ 未配置，索引同步将在请求内同步执行")
	}

	tracer, tracerCfg := hertztracing.NewServerTracer()
	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
		tracer,
	)
	h.Use(hertztracing.ServerMiddleware(tracerCfg))

	router.RegisterRoutes(h, handlers, cfg.Server.APIKeys)
	glog.Info("HTTP路由注册成功")

	go func() {
		glog.Infof("HTTP 服务器启动中，监听地址: %s", cfg.Server.Address)
		if err := h.Run(); err != nil {
			glog.Fatalf("启动HTTP服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	glog.Info("接收到终止信号，正在优雅退出...")

	// 先停聚合器，把缓冲中的查询事件落库
	aggregator.Close()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		glog.Errorf("服务器关闭失败: %v", err)
	}
	glog.Info("优雅退出完成")
}

// initLogger 初始化 zerolog 全局日志，并把 Hertz 的 hlog 接到同一个实例上
func initLogger(cfg *config.Config) {
	appCoreLogger.Init(appCoreLogger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	})

	glog.SetLogger(hertzadapter.From(appCoreLogger.Logger))
	switch cfg.Logger.Level {
	case "debug":
		glog.SetLevel(glog.LevelDebug)
	case "warn":
		glog.SetLevel(glog.LevelWarn)
	case "error":
		glog.SetLevel(glog.LevelError)
	default:
		glog.SetLevel(glog.LevelInfo)
	}
}

// componentLogger 为各组件创建带前缀的标准库logger，非debug级别时丢弃输出
func componentLogger(cfg *config.Config, prefix string) *log.Logger {
	if cfg.Logger.Level == "debug" {
		return log.New(os.Stderr, prefix, log.LstdFlags|log.Lshortfile)
	}
	return log.New(io.Discard, "", 0)
}

// buildResumeExtractor 按配置组装文本提取与结构化提取链路。
// Tika 可用时优先，否则回退到进程内 PDF 解析；LLM 提取按开关叠加。
func buildResumeExtractor(ctx context.Context, cfg *config.Config) (*extractor.ResumeExtractor, error) {
	var textExtractor extractor.TextExtractor
	if cfg.Extractor.Type == "tika" && cfg.Extractor.TikaServerURL != "" {
		tikaOpts := []extractor.TikaOption{
			extractor.WithTikaLogger(componentLogger(cfg, "[TikaExtractor] ")),
		}
		if cfg.Extractor.TimeoutSeconds > 0 {
			tikaOpts = append(tikaOpts, extractor.WithTikaTimeout(time.Duration(cfg.Extractor.TimeoutSeconds)*time.Second))
		}
		textExtractor = extractor.NewTikaExtractor(cfg.Extractor.TikaServerURL, tikaOpts...)
		glog.Info("使用Tika文本提取器")
	} else {
		einoExtractor, err := extractor.NewEinoPDFExtractor(ctx,
			extractor.WithEinoLogger(componentLogger(cfg, "[PDFExtractor] ")),
		)
		if err != nil {
			return nil, err
		}
		textExtractor = einoExtractor
		glog.Info("使用内置PDF文本提取器")
	}

	extractorOpts := []extractor.ResumeExtractorOption{
		extractor.WithExtractorLogger(componentLogger(cfg, "[ResumeExtractor] ")),
	}
	if cfg.LLM.Enabled {
		chatModel, err := agent.NewOpenAIChatModel(&cfg.LLM)
		if err != nil {
			return nil, err
		}
		llmExtractor, err := extractor.NewLLMExtractor(chatModel,
			extractor.WithLLMLogger(componentLogger(cfg, "[LLMExtractor] ")),
		)
		if err != nil {
			return nil, err
		}
		extractorOpts = append(extractorOpts, extractor.WithLLMExtractor(llmExtractor))
		glog.Infof("LLM结构化提取已启用 (model=%s)", cfg.LLM.Model)
	}

	return extractor.NewResumeExtractor(textExtractor, extractorOpts...)
}
