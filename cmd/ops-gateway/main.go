package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cvo-platform/cvo-core/internal/assign"
	"github.com/cvo-platform/cvo-core/internal/audit"
	"github.com/cvo-platform/cvo-core/internal/common/config"
	"github.com/cvo-platform/cvo-core/internal/common/db"
	"github.com/cvo-platform/cvo-core/internal/common/logger"
	"github.com/cvo-platform/cvo-core/internal/common/middleware"
	"github.com/cvo-platform/cvo-core/internal/feed"
	"github.com/cvo-platform/cvo-core/internal/newentry"
	"github.com/cvo-platform/cvo-core/internal/photos"
	"github.com/cvo-platform/cvo-core/internal/reconcile"
	"github.com/cvo-platform/cvo-core/internal/sales"
	"github.com/cvo-platform/cvo-core/internal/salestatus"
	"github.com/cvo-platform/cvo-core/internal/stock"
)

// ops-gateway 是操作员的 HTTP 入口：手动触发对账/分配、标记拍照完成、
// 跑审计报告和纠错批次、看摄影师绩效。所有写路径都经共享库，
// 与 reconciler-service 的周期任务通过状态前置检查和咨询性标志互不踩踏。

var (
	configPath = flag.String("config", "configs/ops-gateway.json", "配置文件路径")
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

	// 组装服务（对账/分配与 reconciler-service 各自组装一份，
	// 共享的是库里的状态，不是进程里的对象）
	stockRepo := stock.NewRepo(gormDB)
	feedRepo := feed.NewRepo(gormDB)
	salesRepo := sales.NewRepo(gormDB)
	intakeRepo := newentry.NewRepo(gormDB)
	classRepo := salestatus.NewRepo(gormDB)
	photoRepo := photos.NewRepo(gormDB)
	quotaRepo := assign.NewRepo(gormDB)
	logRepo := reconcile.NewLogRepo(gormDB)

	classifier := photos.NewClassifier(photoRepo)
	engine := reconcile.NewEngine(
		feedRepo, salesRepo, stockRepo, classRepo, photoRepo, classifier, logRepo, log,
		cfg.Jobs.ReceptionBackdateDays, cfg.Jobs.RowRetry,
	)
	balancer := assign.NewBalancer(quotaRepo, photoRepo, quotaRepo, log)
	// interval=0：这里只借 RunOnce 的 对账→分配 路径，周期循环归 reconciler-service
	runner := reconcile.NewRunner(engine, balancer, nil, 0, log)
	cascade := photos.NewCascade(photoRepo, stockRepo, intakeRepo, cfg.Jobs.ReceptionBackdateDays)
	auditor := audit.NewAuditor(stockRepo, photoRepo, intakeRepo, classRepo, feedRepo)
	corrector := audit.NewCorrector(classifier, stockRepo, log)
	stats := assign.NewStatsService(quotaRepo, photoRepo)

	h := &handlers{
		runner:    runner,
		balancer:  balancer,
		cascade:   cascade,
		auditor:   auditor,
		corrector: corrector,
		stats:     stats,
		log:       log,
	}

	limiter := middleware.NewTokenBucket(cfg.Jobs.OpsRateCapacity, cfg.Jobs.OpsRatePerSecond)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/api/v1/reconcile/run", middleware.RateLimitHTTP(limiter, http.HandlerFunc(h.runReconcile)))
	mux.Handle("/api/v1/photos/assign", middleware.RateLimitHTTP(limiter, http.HandlerFunc(h.runAssignment)))
	mux.Handle("/api/v1/photos/complete", middleware.RateLimitHTTP(limiter, http.HandlerFunc(h.completePhotos)))
	mux.Handle("/api/v1/audit/report", middleware.RateLimitHTTP(limiter, http.HandlerFunc(h.auditReport)))
	mux.Handle("/api/v1/audit/correct", middleware.RateLimitHTTP(limiter, http.HandlerFunc(h.auditCorrect)))
	mux.Handle("/api/v1/photographers/stats", middleware.RateLimitHTTP(limiter, http.HandlerFunc(h.photographerStats)))

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("ops-gateway listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("ops-gateway exited with error: %v", err)
		}
	case sig := <-quit:
		log.Infof("Received signal: %v, shutting down", sig)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("graceful shutdown failed: %v", err)
		}
	}
}
