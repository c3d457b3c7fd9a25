package assign

import (
	"context"
	"errors"
	"fmt"

	"github.com/cvo-platform/cvo-core/internal/common/logger"
	"github.com/cvo-platform/cvo-core/internal/photos"
)

// ErrNoActiveCapacity 没有任何活跃摄影师，分配无处可去。
// 属于"容量错误"：返回给调用方上报，不动任何工单。
var ErrNoActiveCapacity = errors.New("no active photographers")

// ErrRunInProgress 另一次分配还没结束（咨询性标志被占）。
var ErrRunInProgress = errors.New("assignment run already in progress")

const assignmentFlag = "photo_assignment"

// QuotaStore 配额读取接口（按 id 升序返回）。
type QuotaStore interface {
	ListActive(ctx context.Context) ([]PhotographerQuota, error)
}

// WorkQueue 分配器需要的工单队列视图。
type WorkQueue interface {
	ListUnassignedPending(ctx context.Context) ([]photos.WorkItem, error)
	AssignedCounts(ctx context.Context) (map[string]int, error)
	Save(ctx context.Context, item *photos.WorkItem) error
}

// AdvisoryFlag 批任务的进行中标志。
type AdvisoryFlag interface {
	TryAcquire(ctx context.Context, name string) (bool, error)
	Release(ctx context.Context, name string) error
}

// PhotographerLoad 赤字计算的每摄影师状态。
type PhotographerLoad struct {
	PhotographerID string
	Percentage     float64
	Assigned       int // 当前在册分配数（分配过程中逐件递增）
}

// Deficit 目标份额与当前在册数的差。分配器永远把下一件给赤字最大者。
func (p PhotographerLoad) Deficit(totalVehicles int) float64 {
	return float64(totalVehicles)*p.Percentage/100 - float64(p.Assigned)
}

// PickLargestDeficit 返回赤字最大的摄影师下标；打平取 id 最小者。
// loads 必须已按 id 升序（ListActive 保证），这样顺序扫描 + 严格大于
// 天然落在 id 最小者上，结果可复现。
func PickLargestDeficit(loads []PhotographerLoad, totalVehicles int) int {
	best := -1
	bestDeficit := 0.0
	for i := range loads {
		d := loads[i].Deficit(totalVehicles)
		if best == -1 || d > bestDeficit {
			best = i
			bestDeficit = d
		}
	}
	return best
}

// Result 一次分配批次的结果摘要（给操作员看计数，不抛裸异常）。
type Result struct {
	TotalVehicles int // totalAssigned + 本批待分配数
	Assigned      int
	Skipped       int // 单件写失败（重试一次后仍失败），不中断批次
	Loads         []PhotographerLoad
}

// Balancer 摄影师工作量分配器：赤字贪心，每分一件重算一次。
// 贪心不保证全局最优，但稳定、便宜，且满足最大余数法的 ±1 公平界。
type Balancer struct {
	quotas QuotaStore
	queue  WorkQueue
	flag   AdvisoryFlag
	log    logger.Logger
}

func NewBalancer(quotas QuotaStore, queue WorkQueue, flag AdvisoryFlag, log logger.Logger) *Balancer {
	return &Balancer{quotas: quotas, queue: queue, flag: flag, log: log}
}

// Run 执行一次分配批次。
func (b *Balancer) Run(ctx context.Context) (Result, error) {
	if b == nil || b.quotas == nil || b.queue == nil {
		return Result{}, fmt.Errorf("balancer not initialized")
	}

	if b.flag != nil {
		ok, err := b.flag.TryAcquire(ctx, assignmentFlag)
		if err != nil {
			return Result{}, fmt.Errorf("acquire assignment flag: %w", err)
		}
		if !ok {
			return Result{}, ErrRunInProgress
		}
		defer func() {
			if err := b.flag.Release(ctx, assignmentFlag); err != nil && b.log != nil {
				b.log.Warnf("release assignment flag: %v", err)
			}
		}()
	}

	quotas, err := b.quotas.ListActive(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list active photographers: %w", err)
	}
	if len(quotas) == 0 {
		return Result{}, ErrNoActiveCapacity
	}

	counts, err := b.queue.AssignedCounts(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("read assigned counts: %w", err)
	}
	pending, err := b.queue.ListUnassignedPending(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list unassigned items: %w", err)
	}

	loads := make([]PhotographerLoad, len(quotas))
	totalAssigned := 0
	for i, q := range quotas {
		loads[i] = PhotographerLoad{
			PhotographerID: q.PhotographerID,
			Percentage:     q.Percentage,
			Assigned:       counts[q.PhotographerID],
		}
		totalAssigned += counts[q.PhotographerID]
	}

	result := Result{TotalVehicles: totalAssigned + len(pending)}

	for i := range pending {
		item := &pending[i]

		idx := PickLargestDeficit(loads, result.TotalVehicles)
		if idx < 0 {
			break
		}
		photographerID := loads[idx].PhotographerID

		item.AssignedTo = &photographerID
		if item.OriginalAssignedTo == nil {
			// 首次分配留痕；后续纠错改派不覆盖
			item.OriginalAssignedTo = &photographerID
		}

		if err := b.saveWithRetry(ctx, item); err != nil {
			if b.log != nil {
				b.log.WithFields(map[string]interface{}{
					"plate": item.LicensePlate,
					"error": err.Error(),
				}).Warn("assignment write failed, item skipped")
			}
			item.AssignedTo = nil
			result.Skipped++
			continue
		}

		loads[idx].Assigned++
		result.Assigned++
	}

	result.Loads = loads
	return result, nil
}

// saveWithRetry 单行写失败重试一次；仍失败由调用方记入 Skipped。
func (b *Balancer) saveWithRetry(ctx context.Context, item *photos.WorkItem) error {
	if err := b.queue.Save(ctx, item); err == nil {
		return nil
	}
	return b.queue.Save(ctx, item)
}
