package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mip/qsync/internal/alerts"
	"mip/qsync/internal/analytics"
	"mip/qsync/internal/api"
	"mip/qsync/internal/dispatch"
	"mip/qsync/internal/enrich"
	"mip/qsync/internal/explain"
	"mip/qsync/internal/history"
	"mip/qsync/internal/ingest"
	"mip/qsync/internal/model"
	"mip/qsync/internal/pipeline"
	"mip/qsync/internal/worker"
	"mip/qsync/pkg/config"
	"mip/qsync/pkg/infra/mysql"
	"mip/qsync/pkg/infra/redis"
	"mip/qsync/pkg/logger"
	"mip/qsync/pkg/mqttx"
)

var (
	configPath = flag.String("config", "./config/worker.yaml", "配置文件路径")
)

func main() {
	flag.Parse()

	// 1. 加载配置
	log.Println("========================================")
	log.Println("  QSYNC Worker Starting...")
	log.Println("========================================")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Config validation failed: %v", err)
	}

	log.Printf("Config loaded: %s, env: %s, log_level: %s\n", cfg.App.Name, cfg.App.Env, cfg.App.LogLevel)

	// 2. 初始化 Logger
	zapLogger, err := logger.NewZapLogger(cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx := context.Background()

	// 3. 初始化存储（数据库未配置时降级到内存实现）
	var (
		ledger     history.Ledger
		alertStore alerts.Store
		alertQuery api.AlertQuerier
	)
	if cfg.MySQL.DSN != "" {
		db, err := mysql.Open(cfg.MySQL.DSN)
		if err != nil {
			log.Fatalf("Failed to connect mysql: %v", err)
		}

		historyDAO, err := mysql.NewHistoryDAO(db)
		if err != nil {
			log.Fatalf("Failed to init history dao: %v", err)
		}
		alertDAO, err := mysql.NewAlertDAO(db)
		if err != nil {
			log.Fatalf("Failed to init alert dao: %v", err)
		}

		ledger = historyDAO
		alertStore = alertDAO
		alertQuery = alertDAO
	} else {
		zapLogger.Warnf(ctx, "[Main] mysql.dsn not configured, using in-memory storage")
		memAlerts := alerts.NewMemoryStore()
		ledger = history.NewMemoryLedger()
		alertStore = memAlerts
		alertQuery = memAlerts
	}

	// 4. 加载模型套件（缺失时降级运行：掺假检测与归因不可用）
	suite := loadModelSuite(ctx, cfg, zapLogger)

	// 5. 初始化 Redis 通知（可选）
	var notifier pipeline.Notifier
	if cfg.Redis.Addr != "" {
		pubsub, err := redis.NewPubSub(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Channel)
		if err != nil {
			log.Fatalf("Failed to connect redis: %v", err)
		}
		defer pubsub.Close()
		notifier = pubsub
	} else {
		zapLogger.Warnf(ctx, "[Main] redis.addr not configured, processed notifications disabled")
	}

	// 6. 组装流水线
	pipe := buildPipeline(cfg, suite, ledger, alertStore, notifier, zapLogger)

	// 7. 连接 MQTT 并创建 Manager
	mqttClient, err := mqttx.NewClient(mqttx.Options{
		Broker:   cfg.MQTT.Broker,
		ClientID: cfg.MQTT.ClientID,
		Username: cfg.MQTT.Username,
		Password: cfg.MQTT.Password,
		QoS:      cfg.MQTT.QoS,
	})
	if err != nil {
		log.Fatalf("Failed to connect mqtt broker: %v", err)
	}
	defer mqttClient.Close()

	proc := ingest.GetProcess(pipe, mqttClient, cfg.MQTT.AckTopic, zapLogger)

	mgr, err := worker.NewManagerInstance(cfg, mqttClient, proc, zapLogger)
	if err != nil {
		log.Fatalf("Failed to create manager: %v", err)
	}

	// 8. 启动 Manager（goroutine）
	go func() {
		if err := mgr.Start(); err != nil {
			log.Fatalf("Manager start failed: %v", err)
		}
	}()

	// 9. 启动 HTTP 查询服务（goroutine）
	handler := api.NewHandler(pipe, analytics.NewAggregator(), alertQuery, zapLogger)
	engine := api.SetupRoutes(handler, cfg.App.Name)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: engine,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		log.Printf("Starting HTTP server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
	}()

	log.Println("Worker started. Press Ctrl+C to shutdown.")

	// 10. 等待退出信号
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Println("========================================")
		log.Printf("  Received signal: %v\n", sig)
		log.Println("  Shutting down Worker...")
		log.Println("========================================")
	case err := <-serverErrChan:
		log.Fatalf("HTTP server error: %v", err)
	}

	// 11. 优雅关闭：先停消费链路，再停查询服务
	mgr.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	fmt.Println("========================================")
	fmt.Println("  Worker exited gracefully")
	fmt.Println("========================================")
}

// loadModelSuite 加载模型套件，失败时返回仅含元信息的降级套件
func loadModelSuite(ctx context.Context, cfg *config.Config, log logger.Logger) *model.Suite {
	if cfg.Pipeline.ModelBundle != "" {
		suite, err := model.LoadSuite(cfg.Pipeline.ModelBundle)
		if err == nil {
			log.Infof(ctx, "[Main] model bundle loaded: spectral_cols=%d important_cols=%d",
				len(suite.Bundle.SpectralCols), len(suite.Bundle.ImportantCols))
			return suite
		}
		log.Errorf(ctx, "[Main] load model bundle failed, running degraded: %v", err)
	} else {
		log.Warnf(ctx, "[Main] pipeline.model_bundle not configured, running degraded")
	}

	return &model.Suite{
		Bundle: model.Bundle{
			SpectralCols:  cfg.Pipeline.SpectralCols,
			ImportantCols: cfg.Pipeline.ImportantCols,
		},
	}
}

// buildPipeline 组装富化流水线
func buildPipeline(
	cfg *config.Config,
	suite *model.Suite,
	ledger history.Ledger,
	alertStore alerts.Store,
	notifier pipeline.Notifier,
	zapLogger logger.Logger,
) *pipeline.Pipeline {
	basePrice := cfg.Pipeline.BasePrice
	if basePrice <= 0 {
		basePrice = enrich.DefaultBasePrice
	}

	cacheCap := cfg.Pipeline.CacheCapacity
	if cacheCap <= 0 {
		cacheCap = explain.DefaultCacheCapacity
	}

	thresholds := enrich.DefaultThresholds()
	if cfg.Pipeline.Thresholds.Fat.High > 0 {
		thresholds = enrich.Thresholds{
			Fat: enrich.Threshold{Low: cfg.Pipeline.Thresholds.Fat.Low, High: cfg.Pipeline.Thresholds.Fat.High},
			SNF: enrich.Threshold{Low: cfg.Pipeline.Thresholds.SNF.Low, High: cfg.Pipeline.Thresholds.SNF.High},
			TS:  enrich.Threshold{Low: cfg.Pipeline.Thresholds.TS.Low, High: cfg.Pipeline.Thresholds.TS.High},
		}
	}

	timeout := cfg.Downstream.Timeout
	if timeout <= 0 {
		timeout = dispatch.DefaultTimeout
	}
	retries := cfg.Downstream.Retries
	if retries <= 0 {
		retries = dispatch.DefaultRetries
	}
	backoff := cfg.Downstream.Backoff
	if backoff <= 0 {
		backoff = dispatch.DefaultBackoff
	}

	return pipeline.New(pipeline.Deps{
		Extractor:  enrich.NewFeatureExtractor(),
		Scorer:     enrich.NewQualityScorer(basePrice),
		Classifier: enrich.NewRiskClassifier(thresholds),
		Anomaly:    model.NewAnomalyScorer(suite.Anomaly, suite.Normalizer, suite.Bundle),
		Ranker:     explain.NewRanker(suite.Explainers, suite.Bundle),
		ShapCache:  explain.NewCache(cacheCap),
		Engine:     alerts.NewEngine(alertStore, zapLogger),
		Aggregator: analytics.NewAggregator(),
		Ledger:     ledger,
		Dispatcher: dispatch.New(cfg.Downstream.Endpoint, timeout, retries, backoff, dispatch.NewState(), zapLogger),
		Notifier:   notifier,
		Latest:     pipeline.NewLatestStore(),
		Logger:     zapLogger,
	})
}
