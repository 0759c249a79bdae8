package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"mip/qsync/internal/alerts"
	"mip/qsync/internal/analytics"
	"mip/qsync/internal/dispatch"
	"mip/qsync/internal/enrich"
	"mip/qsync/internal/explain"
	"mip/qsync/internal/history"
	"mip/qsync/internal/ingest"
	"mip/qsync/internal/model"
	"mip/qsync/internal/pipeline"
	"mip/qsync/pkg/config"
	"mip/qsync/pkg/infra/mysql"
	"mip/qsync/pkg/logger"
)

var (
	configPath   = flag.String("config", "./config/worker.yaml", "配置文件路径")
	testcasePath = flag.String("testcase", "./tools/fasttest/testcase/samples.json", "测试样本路径")
	skipDB       = flag.Bool("skip-db", false, "跳过数据库操作（账本与告警走内存实现）")
)

func main() {
	flag.Parse()

	fmt.Println("========================================")
	fmt.Println("  FastTest - QSYNC 流水线快速回放工具")
	fmt.Println("========================================")

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("❌ Failed to load config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Config loaded: %s\n", cfg.App.Name)

	// 2. 加载测试样本（每条为一份完整入站 payload）
	payloads, err := loadPayloads(*testcasePath)
	if err != nil {
		fmt.Printf("❌ Failed to load test samples: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Loaded %d samples from %s\n", len(payloads), *testcasePath)

	// 3. 初始化存储（根据 skip-db 参数决定）
	var (
		ledger     history.Ledger
		alertStore alerts.Store
	)
	if *skipDB {
		fmt.Println("⚠️  Skip-DB mode: using in-memory ledger and alert store")
		ledger = history.NewMemoryLedger()
		alertStore = alerts.NewMemoryStore()
	} else {
		db, err := mysql.Open(cfg.MySQL.DSN)
		if err != nil {
			fmt.Printf("❌ Failed to connect mysql: %v\n", err)
			os.Exit(1)
		}
		historyDAO, err := mysql.NewHistoryDAO(db)
		if err != nil {
			fmt.Printf("❌ Failed to init history dao: %v\n", err)
			os.Exit(1)
		}
		alertDAO, err := mysql.NewAlertDAO(db)
		if err != nil {
			fmt.Printf("❌ Failed to init alert dao: %v\n", err)
			os.Exit(1)
		}
		ledger = historyDAO
		alertStore = alertDAO
		fmt.Println("✅ Database initialized")
	}

	// 4. 加载模型套件（缺失时降级）
	suite := &model.Suite{
		Bundle: model.Bundle{
			SpectralCols:  cfg.Pipeline.SpectralCols,
			ImportantCols: cfg.Pipeline.ImportantCols,
		},
	}
	if cfg.Pipeline.ModelBundle != "" {
		if loaded, err := model.LoadSuite(cfg.Pipeline.ModelBundle); err == nil {
			suite = loaded
			fmt.Println("✅ Model bundle loaded")
		} else {
			fmt.Printf("⚠️  Model bundle unavailable, running degraded: %v\n", err)
		}
	}

	// 5. 组装流水线（无下游推送与通知，仅回放富化链路）
	log := logger.Nop{}
	pipe := pipeline.New(pipeline.Deps{
		Extractor:  enrich.NewFeatureExtractor(),
		Scorer:     enrich.NewQualityScorer(enrich.DefaultBasePrice),
		Classifier: enrich.NewRiskClassifier(enrich.DefaultThresholds()),
		Anomaly:    model.NewAnomalyScorer(suite.Anomaly, suite.Normalizer, suite.Bundle),
		Ranker:     explain.NewRanker(suite.Explainers, suite.Bundle),
		ShapCache:  explain.NewCache(explain.DefaultCacheCapacity),
		Engine:     alerts.NewEngine(alertStore, log),
		Aggregator: analytics.NewAggregator(),
		Ledger:     ledger,
		Dispatcher: dispatch.New("", dispatch.DefaultTimeout, 0, dispatch.DefaultBackoff, dispatch.NewState(), log),
		Latest:     pipeline.NewLatestStore(),
		Logger:     log,
	})

	// 6. 回放样本
	fmt.Println("\n========================================")
	fmt.Println("  Running Samples")
	fmt.Println("========================================")

	successCount := 0
	failureCount := 0

	for i, raw := range payloads {
		fmt.Printf("\n[Sample %d/%d]\n", i+1, len(payloads))
		fmt.Println("----------------------------------------")

		startTime := time.Now()
		err := runSample(pipe, raw)
		duration := time.Since(startTime)

		if err != nil {
			fmt.Printf("❌ FAILED: %v\n", err)
			fmt.Printf("⏱️  Duration: %v\n", duration)
			failureCount++
		} else {
			fmt.Printf("✅ PASSED\n")
			fmt.Printf("⏱️  Duration: %v\n", duration)
			successCount++
		}
	}

	// 7. 输出回放汇总
	fmt.Println("\n========================================")
	fmt.Println("  Replay Summary")
	fmt.Println("========================================")
	fmt.Printf("Total: %d\n", len(payloads))
	fmt.Printf("Passed: %d ✅\n", successCount)
	fmt.Printf("Failed: %d ❌\n", failureCount)

	if failureCount > 0 {
		os.Exit(1)
	}
}

// loadPayloads 从 JSON 文件加载测试样本
func loadPayloads(path string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read testcase file: %w", err)
	}

	var payloads []json.RawMessage
	if err := json.Unmarshal(data, &payloads); err != nil {
		return nil, fmt.Errorf("failed to unmarshal testcase: %w", err)
	}

	return payloads, nil
}

// runSample 回放单条样本并打印富化结果
func runSample(pipe *pipeline.Pipeline, raw json.RawMessage) error {
	ctx := context.Background()

	s, err := ingest.ParseSample(raw)
	if err != nil {
		return fmt.Errorf("parse failed: %w", err)
	}

	enriched, err := pipe.Process(ctx, s)
	if err != nil {
		return fmt.Errorf("pipeline failed: %w", err)
	}

	fmt.Printf("  SampleID: %s\n", enriched.SampleID)
	fmt.Printf("  Supplier: %s Route: %s\n", enriched.SupplierID, enriched.RouteID)
	fmt.Printf("  QualityScore: %.3f FinalPrice: %.2f\n", enriched.Price.QualityScore, enriched.Price.FinalPrice)
	fmt.Printf("  MilkType: %s\n", enriched.MilkType)
	for name, card := range enriched.TrafficCards {
		fmt.Printf("    - %s: %s\n", name, card.Risk)
	}
	fmt.Printf("  Alerts: %d\n", len(enriched.Alerts))
	for _, alert := range enriched.Alerts {
		fmt.Printf("    - %s [%s] %s\n", alert.Type, alert.Severity, alert.Message)
	}
	for stage, msg := range enriched.StageErrors {
		fmt.Printf("  ⚠️  stage %s degraded: %s\n", stage, msg)
	}

	return nil
}
