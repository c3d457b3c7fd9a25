package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/cvo-platform/cvo-core/internal/audit"
	"github.com/cvo-platform/cvo-core/internal/common/config"
	"github.com/cvo-platform/cvo-core/internal/common/db"
	"github.com/cvo-platform/cvo-core/internal/common/logger"
	"github.com/cvo-platform/cvo-core/internal/feed"
	"github.com/cvo-platform/cvo-core/internal/newentry"
	"github.com/cvo-platform/cvo-core/internal/photos"
	"github.com/cvo-platform/cvo-core/internal/salestatus"
	"github.com/cvo-platform/cvo-core/internal/stock"
)

// audit-job 一次性审计批次，适合 cron。默认只报告；-fix 时对
// 可安全修复的规则执行纠错。退出码：0 无发现，1 有发现，2 运行失败。

var (
	configPath = flag.String("config", "configs/audit-job.json", "配置文件路径")
	fix        = flag.Bool("fix", false, "对可修复的发现执行纠错批次")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log, err := logger.NewLogger(cfg.Log.Driver, cfg.Log.Level, cfg.Log.Format, cfg.Log.Output, cfg.Log.Path)
	if err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}

	gormDB, err := db.NewMySQL(
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Database,
		cfg.Database.MaxIdle,
		cfg.Database.MaxOpen,
	)
	if err != nil {
		log.Fatalf("failed to init mysql: %v", err)
	}

	stockRepo := stock.NewRepo(gormDB)
	photoRepo := photos.NewRepo(gormDB)
	intakeRepo := newentry.NewRepo(gormDB)
	classRepo := salestatus.NewRepo(gormDB)
	feedRepo := feed.NewRepo(gormDB)

	auditor := audit.NewAuditor(stockRepo, photoRepo, intakeRepo, classRepo, feedRepo)

	ctx := context.Background()
	findings, err := auditor.Report(ctx)
	if err != nil {
		log.Errorf("audit failed: %v", err)
		os.Exit(2)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(findings)

	if *fix && len(findings) > 0 {
		classifier := photos.NewClassifier(photoRepo)
		corrector := audit.NewCorrector(classifier, stockRepo, log)
		result, err := corrector.Apply(ctx, findings)
		if err != nil {
			log.Errorf("correction failed: %v", err)
			os.Exit(2)
		}
		_ = enc.Encode(result)
	}

	if len(findings) > 0 {
		os.Exit(1)
	}
}
