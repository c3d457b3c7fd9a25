package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/cvo-platform/cvo-core/internal/assign"
	"github.com/cvo-platform/cvo-core/internal/common/logger"
	"github.com/cvo-platform/cvo-core/internal/common/middleware"
	"github.com/opentracing/opentracing-go"
)

// AssignmentRunner 对账后接着跑的分配批次（assign.Balancer 满足）。
type AssignmentRunner interface {
	Run(ctx context.Context) (assign.Result, error)
}

// Runner 周期调度器：每个 tick 跑一次 对账 → 分配，整个 tick 包在熔断器里。
// 数据库连续失败时熔断跳过后续 tick，避免每隔几分钟刷一屏同样的错误。
// 手动触发（ops-gateway）复用同一条代码路径。
type Runner struct {
	engine   *Engine
	balancer AssignmentRunner
	breaker  *middleware.CircuitBreaker
	interval time.Duration
	log      logger.Logger
}

func NewRunner(engine *Engine, balancer AssignmentRunner, breaker *middleware.CircuitBreaker, interval time.Duration, log logger.Logger) *Runner {
	return &Runner{
		engine:   engine,
		balancer: balancer,
		breaker:  breaker,
		interval: interval,
		log:      log,
	}
}

// Start 阻塞式周期循环，ctx 取消后返回。interval<=0 表示不启用周期任务。
func (r *Runner) Start(ctx context.Context) {
	if r == nil || r.engine == nil || r.interval <= 0 {
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if r.log != nil {
				r.log.Info("reconcile runner stopped")
			}
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

// RunOnce 手动触发一次 对账 → 分配（熔断器外，操作员要立刻看到真实错误）。
func (r *Runner) RunOnce(ctx context.Context) (Summary, assign.Result, error) {
	summary, err := r.engine.Run(ctx)
	if err != nil {
		return summary, assign.Result{}, err
	}
	if r.balancer == nil {
		return summary, assign.Result{}, nil
	}
	res, err := r.balancer.Run(ctx)
	if err != nil && !errors.Is(err, assign.ErrNoActiveCapacity) && !errors.Is(err, assign.ErrRunInProgress) {
		return summary, res, err
	}
	if err != nil && r.log != nil {
		// 容量/并发冲突属于上报项，不算批次失败
		r.log.Warnf("assignment not run: %v", err)
	}
	return summary, res, nil
}

func (r *Runner) tick(ctx context.Context) {
	span := opentracing.StartSpan("reconcile.tick")
	defer span.Finish()
	tickCtx := opentracing.ContextWithSpan(ctx, span)

	err := r.breakerCall(func() error {
		_, _, err := r.RunOnce(tickCtx)
		return err
	})
	if err != nil && r.log != nil {
		if errors.Is(err, middleware.ErrBreakerOpen) {
			r.log.Warn("reconcile tick skipped: circuit breaker open")
		} else {
			r.log.Errorf("reconcile tick failed: %v", err)
		}
	}
}

func (r *Runner) breakerCall(fn func() error) error {
	if r.breaker == nil {
		return fn()
	}
	return r.breaker.Call(context.Background(), fn)
}
