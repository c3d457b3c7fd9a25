package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/cvo-platform/cvo-core/internal/common/logger"
	"github.com/cvo-platform/cvo-core/internal/feed"
	"github.com/cvo-platform/cvo-core/internal/sales"
	"github.com/cvo-platform/cvo-core/internal/salestatus"
	"github.com/cvo-platform/cvo-core/internal/stock"
	"github.com/google/uuid"
)

// FeedReader feed 快照读取（批次级失败中止整次 run）。
type FeedReader interface {
	Snapshot(ctx context.Context) (*feed.Snapshot, error)
}

// SalesReader 销售台账读取。
type SalesReader interface {
	ListAll(ctx context.Context) ([]sales.Sale, error)
}

// VehicleStore 车辆目录（stock）的读写。is_sold 的唯一写方是本引擎。
type VehicleStore interface {
	ListAll(ctx context.Context) ([]stock.Vehicle, error)
	Save(ctx context.Context, v *stock.Vehicle) error
}

// ClassificationStore 售出分类：只插入 + 待复核标记。
type ClassificationStore interface {
	ListAll(ctx context.Context) ([]salestatus.Classification, error)
	Insert(ctx context.Context, c *salestatus.Classification) error
	FlagForReview(ctx context.Context, plate, reason string) (bool, error)
}

// WorkItemChecker 判断车牌是否已有拍照工单（接收日期回填要避开已有工单）。
type WorkItemChecker interface {
	ExistsByPlate(ctx context.Context, plate string) (bool, error)
}

// WorkClassifier 拍照工作量分类器（photos.Classifier 满足）。
type WorkClassifier interface {
	Apply(ctx context.Context, plate string, status salestatus.Status, hasMedia bool) (bool, error)
}

// ChangeLogger 每个被改动的车牌记一条变更日志。
type ChangeLogger interface {
	Append(ctx context.Context, entry *ChangeLog) error
}

// Engine 车辆生命周期对账引擎：拿 feed 快照对 stock 目录和销售台账，
// 给消失的车辆补售出分类，并驱动拍照工单分类器。
//
// 幂等：输入不变时重跑零写入。靠的是各处的状态前置检查（已分类不重插、
// is_sold 已置位不重刷、工单已达目标态不重写），不是锁。
type Engine struct {
	feed     FeedReader
	sales    SalesReader
	vehicles VehicleStore
	classes  ClassificationStore
	items    WorkItemChecker
	photo    WorkClassifier
	changes  ChangeLogger
	log      logger.Logger

	backdateDays int
	rowRetry     int
}

func NewEngine(
	feedReader FeedReader,
	salesReader SalesReader,
	vehicles VehicleStore,
	classes ClassificationStore,
	items WorkItemChecker,
	photo WorkClassifier,
	changes ChangeLogger,
	log logger.Logger,
	backdateDays, rowRetry int,
) *Engine {
	if backdateDays <= 0 {
		backdateDays = 2
	}
	if rowRetry < 0 {
		rowRetry = 1
	}
	return &Engine{
		feed:         feedReader,
		sales:        salesReader,
		vehicles:     vehicles,
		classes:      classes,
		items:        items,
		photo:        photo,
		changes:      changes,
		log:          log,
		backdateDays: backdateDays,
		rowRetry:     rowRetry,
	}
}

// Run 执行一次全量对账。
// 批次级读失败返回错误中止；单车失败记日志跳过，绝不中断整批。
func (e *Engine) Run(ctx context.Context) (Summary, error) {
	if e == nil || e.feed == nil || e.vehicles == nil || e.classes == nil {
		return Summary{}, fmt.Errorf("engine not initialized")
	}

	summary := Summary{RunID: uuid.NewString()}

	snapshot, err := e.feed.Snapshot(ctx)
	if err != nil {
		return summary, fmt.Errorf("reconcile run aborted: %w", err)
	}

	var ledger []sales.Sale
	if e.sales != nil {
		ledger, err = e.sales.ListAll(ctx)
		if err != nil {
			return summary, fmt.Errorf("reconcile run aborted: %w", err)
		}
	}
	// soldSet：规范化车牌 → 最早已知销售日期
	soldDates := make(map[string]time.Time, len(ledger))
	for _, s := range ledger {
		plate := stock.NormalizePlate(s.LicensePlate)
		if plate == "" {
			continue
		}
		if prev, ok := soldDates[plate]; !ok || s.SaleDate.Before(prev) {
			soldDates[plate] = s.SaleDate
		}
	}

	existing, err := e.classes.ListAll(ctx)
	if err != nil {
		return summary, fmt.Errorf("reconcile run aborted: %w", err)
	}
	classifiedByVehicle := make(map[string]salestatus.Status, len(existing))
	for _, c := range existing {
		classifiedByVehicle[c.SourceTable+"_"+c.VehicleID] = c.Status
	}

	vehicles, err := e.vehicles.ListAll(ctx)
	if err != nil {
		return summary, fmt.Errorf("reconcile run aborted: %w", err)
	}

	for i := range vehicles {
		v := &vehicles[i]
		summary.Processed++

		if err := e.reconcileVehicle(ctx, v, snapshot, soldDates, classifiedByVehicle, &summary); err != nil {
			summary.Skipped++
			if e.log != nil {
				e.log.WithFields(map[string]interface{}{
					"run_id": summary.RunID,
					"plate":  v.LicensePlate,
					"error":  err.Error(),
				}).Warn("vehicle skipped during reconcile")
			}
		}
	}

	if e.log != nil {
		e.log.WithFields(map[string]interface{}{
			"run_id":     summary.RunID,
			"processed":  summary.Processed,
			"mutated":    summary.Mutated,
			"classified": summary.Classified,
			"skipped":    summary.Skipped,
			"flagged":    summary.Flagged,
		}).Info("reconcile run finished")
	}
	return summary, nil
}

// reconcileVehicle 单车对账。返回错误表示该车被跳过（行级错误）。
func (e *Engine) reconcileVehicle(
	ctx context.Context,
	v *stock.Vehicle,
	snapshot *feed.Snapshot,
	soldDates map[string]time.Time,
	classifiedByVehicle map[string]salestatus.Status,
	summary *Summary,
) error {
	plate := stock.NormalizePlate(v.LicensePlate)
	if plate == "" {
		return fmt.Errorf("missing license plate")
	}

	classKey := "stock_" + v.ID
	status, isClassified := classifiedByVehicle[classKey]
	inFeed := snapshot.Contains(plate)
	saleDate, inSold := soldDates[plate]

	// 已按"缺席"分类的车又回到 feed：只记待复核标记，绝不自动回退分类。
	if isClassified && inFeed {
		created, err := e.classes.FlagForReview(ctx, plate, "classified vehicle reappeared in feed")
		if err != nil {
			return fmt.Errorf("flag for review: %w", err)
		}
		if created {
			summary.Flagged++
			e.appendChange(ctx, summary.RunID, plate, "flagged_review", string(status))
		}
		return nil
	}

	// 未分类且 feed / 台账两边都查无此车 → 缺席，按渠道补分类。
	justClassified := false
	if !isClassified && !inFeed {
		if v.Model == "" {
			return fmt.Errorf("missing model, cannot classify")
		}
		if inSold {
			status = salestatus.StatusVendido
		} else {
			status = salestatus.StatusProfesional
		}
		c := &salestatus.Classification{
			VehicleID:     v.ID,
			SourceTable:   "stock",
			LicensePlate:  plate,
			Status:        status,
			Justification: absentJustification(status),
		}
		if err := e.withRetry(func() error { return e.classes.Insert(ctx, c) }); err != nil {
			return fmt.Errorf("insert classification: %w", err)
		}
		classifiedByVehicle[classKey] = status
		isClassified = true
		justClassified = true
		summary.Classified++
		e.appendChange(ctx, summary.RunID, plate, "classified", string(status))
	}

	// 售出置位：台账可查、或刚被分类为缺席，且目录还标着未售。
	if (inSold || justClassified) && !v.IsSold {
		v.IsSold = true
		v.AutoMarked = true
		// 接收日期回填只在台账可查、且还没有拍照工单时做；
		// 有工单说明拍照流程已经在走，日期归级联管。
		if inSold && v.PhysicalReceptionDate == nil && e.items != nil {
			exists, err := e.items.ExistsByPlate(ctx, plate)
			if err != nil {
				return fmt.Errorf("check work item: %w", err)
			}
			if !exists {
				reception := saleDate.AddDate(0, 0, -e.backdateDays)
				v.PhysicalReceptionDate = &reception
			}
		}
		if err := e.withRetry(func() error { return e.vehicles.Save(ctx, v) }); err != nil {
			return fmt.Errorf("mark sold: %w", err)
		}
		summary.Mutated++
		e.appendChange(ctx, summary.RunID, plate, "marked_sold", "")
	}

	// 拍照工单分类器：对账后的车辆统一过一遍（幂等，目标态已满足时零写入）。
	if e.photo != nil {
		changed, err := e.photo.Apply(ctx, plate, status, snapshot.HasMedia(plate))
		if err != nil {
			return fmt.Errorf("apply photo classification: %w", err)
		}
		if changed {
			summary.Mutated++
			e.appendChange(ctx, summary.RunID, plate, "photo_item_updated", "")
		}
	}

	return nil
}

func absentJustification(status salestatus.Status) string {
	if status == salestatus.StatusVendido {
		return "absent from feed, present in sales ledger"
	}
	return "absent from feed and sales ledger, assumed professional channel"
}

// appendChange 变更日志写失败只告警，不影响对账本身。
func (e *Engine) appendChange(ctx context.Context, runID, plate, action, detail string) {
	if e.changes == nil {
		return
	}
	err := e.changes.Append(ctx, &ChangeLog{
		RunID:        runID,
		LicensePlate: plate,
		Action:       action,
		Detail:       detail,
	})
	if err != nil && e.log != nil {
		e.log.Warnf("append change log plate=%s action=%s: %v", plate, action, err)
	}
}

// withRetry 单行写失败重试（默认一次），仍失败交给调用方按行级错误处理。
func (e *Engine) withRetry(fn func() error) error {
	err := fn()
	for i := 0; err != nil && i < e.rowRetry; i++ {
		err = fn()
	}
	return err
}
