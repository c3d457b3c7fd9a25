package photos

import (
	"context"
	"fmt"
	"time"

	"github.com/cvo-platform/cvo-core/internal/stock"
)

// StockMirror 级联需要写的库存侧字段。
type StockMirror interface {
	GetByPlate(ctx context.Context, plate string) (*stock.Vehicle, error)
	Save(ctx context.Context, v *stock.Vehicle) error
}

// IntakeMirror 入库暂存区的 is_received 镜像。
type IntakeMirror interface {
	MarkReceived(ctx context.Context, plate string, date time.Time) (bool, error)
}

// CascadeResult 一次完成级联的结果摘要。
type CascadeResult struct {
	AlreadyCompleted bool // true 表示工单本来就是完成态，本次零写入
	StockMirrored    bool
	IntakeMirrored   bool
	ReceptionDate    time.Time
}

// ApplyCompletion 纯转移逻辑：把工单从未完成打到人工完成态，并回填接收日期。
// 已完成的工单再调一次是 no-op（返回 false），这是整个级联幂等性的根。
// backdateDays 建模"车辆实际到店先于拍照完成"的运营时差。
func ApplyCompletion(item *WorkItem, now time.Time, backdateDays int) bool {
	if item == nil || item.PhotosCompleted {
		return false
	}
	reception := now.AddDate(0, 0, -backdateDays)

	item.PhotosCompleted = true
	item.AutoCompleted = false // 人工完成，不是分类器写的
	completedAt := now
	item.PhotosCompletedDate = &completedAt
	item.PhysicalReceptionDate = &reception
	item.IsAvailable = true
	return true
}

// Cascade 生命周期触发引擎：photos_completed false→true 的人工完成转移，
// 在同一个写路径里级联库存行和入库暂存行。原系统用数据库触发器做这件事，
// 这里改成显式函数调用，由发起写入的一方（ops-gateway）在同一事务边界内执行。
type Cascade struct {
	items        WorkItemStore
	stockRows    StockMirror
	intake       IntakeMirror
	backdateDays int
}

func NewCascade(items WorkItemStore, stockRows StockMirror, intake IntakeMirror, backdateDays int) *Cascade {
	if backdateDays <= 0 {
		backdateDays = 2
	}
	return &Cascade{
		items:        items,
		stockRows:    stockRows,
		intake:       intake,
		backdateDays: backdateDays,
	}
}

// CompletePhotos 人工标记拍照完成并级联。
// 重复调用已完成的工单返回 AlreadyCompleted=true 且不产生任何写入。
func (c *Cascade) CompletePhotos(ctx context.Context, plate string, now time.Time) (CascadeResult, error) {
	if c == nil || c.items == nil {
		return CascadeResult{}, fmt.Errorf("cascade not initialized")
	}
	plate = stock.NormalizePlate(plate)
	if plate == "" {
		return CascadeResult{}, fmt.Errorf("license plate required")
	}

	item, err := c.items.GetByPlate(ctx, plate)
	if err != nil {
		return CascadeResult{}, err
	}
	if item == nil {
		return CascadeResult{}, fmt.Errorf("work item not found: %s", plate)
	}

	if !ApplyCompletion(item, now, c.backdateDays) {
		return CascadeResult{AlreadyCompleted: true}, nil
	}

	result := CascadeResult{ReceptionDate: *item.PhysicalReceptionDate}

	// 先写镜像、最后写工单行：中途失败时工单仍是未完成态，
	// 重跑会把级联整体重做（镜像写的是同样的值，重做无害）。

	// 库存侧镜像：同一接收日期 + 可用置位
	if c.stockRows != nil {
		v, err := c.stockRows.GetByPlate(ctx, plate)
		if err != nil {
			return CascadeResult{}, err
		}
		if v != nil {
			v.PhysicalReceptionDate = item.PhysicalReceptionDate
			v.IsAvailable = true
			if err := c.stockRows.Save(ctx, v); err != nil {
				return CascadeResult{}, err
			}
			result.StockMirrored = true
		}
	}

	// 入库暂存区镜像（行不存在不是错误）
	if c.intake != nil {
		mirrored, err := c.intake.MarkReceived(ctx, plate, result.ReceptionDate)
		if err != nil {
			return CascadeResult{}, err
		}
		result.IntakeMirrored = mirrored
	}

	if err := c.items.Save(ctx, item); err != nil {
		return CascadeResult{}, err
	}

	return result, nil
}
