package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/cvo-platform/cvo-core/internal/assign"
	"github.com/cvo-platform/cvo-core/internal/common/config"
	"github.com/cvo-platform/cvo-core/internal/common/db"
	"github.com/cvo-platform/cvo-core/internal/common/logger"
	"github.com/cvo-platform/cvo-core/internal/common/middleware"
	"github.com/cvo-platform/cvo-core/internal/common/server"
	"github.com/cvo-platform/cvo-core/internal/common/tracing"
	"github.com/cvo-platform/cvo-core/internal/feed"
	"github.com/cvo-platform/cvo-core/internal/newentry"
	"github.com/cvo-platform/cvo-core/internal/photos"
	"github.com/cvo-platform/cvo-core/internal/reconcile"
	"github.com/cvo-platform/cvo-core/internal/sales"
	"github.com/cvo-platform/cvo-core/internal/salestatus"
	"github.com/cvo-platform/cvo-core/internal/stock"
)

var (
	configPath = flag.String("config", "configs/reconciler-service.json", "配置文件路径")
)

func main() {
	flag.Parse()

	// 加载配置
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 初始化日志
	log, err := logger.NewLogger(cfg.Log.Driver, cfg.Log.Level, cfg.Log.Format, cfg.Log.Output, cfg.Log.Path)
	if err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}

	// 初始化链路追踪
	tracer, closer, err := tracing.InitTracer(
		cfg.Server.Name,
		cfg.Jaeger.Endpoint,
		cfg.Jaeger.Sampler,
	)
	if err != nil {
		log.Warnf("failed to init tracer: %v", err)
	} else {
		defer closer.Close()
	}
	_ = tracer

	// 初始化数据库
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
	if err := gormDB.AutoMigrate(
		&stock.Vehicle{},
		&feed.Row{},
		&sales.Sale{},
		&newentry.Entry{},
		&salestatus.Classification{},
		&salestatus.ReviewFlag{},
		&photos.WorkItem{},
		&assign.PhotographerQuota{},
		&assign.JobFlag{},
		&reconcile.ChangeLog{},
	); err != nil {
		log.Fatalf("failed to migrate mysql schema: %v", err)
	}

	// 组装对账引擎
	stockRepo := stock.NewRepo(gormDB)
	feedRepo := feed.NewRepo(gormDB)
	salesRepo := sales.NewRepo(gormDB)
	classRepo := salestatus.NewRepo(gormDB)
	photoRepo := photos.NewRepo(gormDB)
	quotaRepo := assign.NewRepo(gormDB)
	logRepo := reconcile.NewLogRepo(gormDB)

	classifier := photos.NewClassifier(photoRepo)
	engine := reconcile.NewEngine(
		feedRepo,
		salesRepo,
		stockRepo,
		classRepo,
		photoRepo,
		classifier,
		logRepo,
		log,
		cfg.Jobs.ReceptionBackdateDays,
		cfg.Jobs.RowRetry,
	)
	balancer := assign.NewBalancer(quotaRepo, photoRepo, quotaRepo, log)

	// 周期任务外层熔断：连续失败后停拍一个窗口，避免打挂共享库
	breaker := middleware.NewCircuitBreaker(
		"reconcile-tick",
		cfg.Jobs.BreakerMaxFailures,
		time.Duration(cfg.Jobs.BreakerResetSeconds)*time.Second,
	)
	runner := reconcile.NewRunner(
		engine,
		balancer,
		breaker,
		time.Duration(cfg.Jobs.ReconcileIntervalMinutes)*time.Minute,
		log,
	)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runner.Start(runCtx)

	// gRPC 只承载健康检查和注册发现；业务入口在 ops-gateway（HTTP）
	if err := server.RunGRPCServer(cfg, log, nil); err != nil {
		log.Fatalf("reconciler-service exited with error: %v", err)
	}
}
