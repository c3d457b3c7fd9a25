package photos

import (
	"context"
	"fmt"
	"time"

	"github.com/cvo-platform/cvo-core/internal/salestatus"
	"github.com/cvo-platform/cvo-core/internal/stock"
	"github.com/google/uuid"
)

// Decision 分类器对一台车的拍照工单裁决。
type Decision int

const (
	// DecisionExempt 免拍分类（profesional / tactico_vn），工单直接自动完成。
	DecisionExempt Decision = iota
	// DecisionUpstreamMedia feed 已带媒体，上游拍过了，工单自动完成。
	DecisionUpstreamMedia
	// DecisionPending 需要本店拍照，保证存在一条未完成工单，进入分配队列。
	DecisionPending
)

// Decide 纯裁决逻辑：分类 + feed 媒体标记 → 工单该处于什么状态。
// status 为空串表示该车还没有售出分类。
func Decide(status salestatus.Status, hasMedia bool) Decision {
	if salestatus.IsExempt(status) {
		return DecisionExempt
	}
	if hasMedia {
		return DecisionUpstreamMedia
	}
	return DecisionPending
}

// WorkItemStore 分类器和级联需要的最小工单仓库。
type WorkItemStore interface {
	GetByPlate(ctx context.Context, plate string) (*WorkItem, error)
	Save(ctx context.Context, item *WorkItem) error
}

// Classifier 拍照工作量分类器：决定一台已对账车辆要不要拍照工单，
// 以及已有工单该不该自动完成。
type Classifier struct {
	items WorkItemStore
}

func NewClassifier(items WorkItemStore) *Classifier {
	return &Classifier{items: items}
}

// Apply 把裁决落到工单行上。幂等：目标状态已满足时零写入。
// 返回是否发生了写入。
func (c *Classifier) Apply(ctx context.Context, plate string, status salestatus.Status, hasMedia bool) (bool, error) {
	if c == nil || c.items == nil {
		return false, fmt.Errorf("classifier not initialized")
	}
	plate = stock.NormalizePlate(plate)
	if plate == "" {
		return false, fmt.Errorf("license plate required")
	}

	item, err := c.items.GetByPlate(ctx, plate)
	if err != nil {
		return false, err
	}

	switch Decide(status, hasMedia) {
	case DecisionExempt, DecisionUpstreamMedia:
		if item == nil {
			now := time.Now()
			item = &WorkItem{
				ID:                  uuid.NewString(),
				LicensePlate:        plate,
				PhotosCompleted:     true,
				PhotosCompletedDate: &now,
				AutoCompleted:       true,
			}
			return true, c.items.Save(ctx, item)
		}
		if item.PhotosCompleted {
			return false, nil
		}
		now := time.Now()
		item.PhotosCompleted = true
		item.PhotosCompletedDate = &now
		item.AutoCompleted = true
		return true, c.items.Save(ctx, item)

	default: // DecisionPending
		if item != nil {
			return false, nil
		}
		item = &WorkItem{
			ID:           uuid.NewString(),
			LicensePlate: plate,
		}
		return true, c.items.Save(ctx, item)
	}
}

// ResetInconsistent 纠正脏组合：auto_completed=true 但 feed 无媒体且分类不免拍。
// 只回退自动完成的工单，人工完成的不动。只由纠错批次显式调用，审计器本身不落库。
func (c *Classifier) ResetInconsistent(ctx context.Context, plate string) (bool, error) {
	if c == nil || c.items == nil {
		return false, fmt.Errorf("classifier not initialized")
	}
	item, err := c.items.GetByPlate(ctx, plate)
	if err != nil {
		return false, err
	}
	if item == nil || !item.AutoCompleted {
		return false, nil
	}
	item.PhotosCompleted = false
	item.AutoCompleted = false
	item.PhotosCompletedDate = nil
	return true, c.items.Save(ctx, item)
}
