package audit

import (
	"context"
	"fmt"

	"github.com/cvo-platform/cvo-core/internal/common/logger"
	"github.com/cvo-platform/cvo-core/internal/stock"
)

// ItemResetter 清除工单的完成态，让车辆回到待拍队列。
type ItemResetter interface {
	ResetInconsistent(ctx context.Context, licensePlate string) (bool, error)
}

// VehicleStore 纠错批次需要的目录写入面。
type VehicleStore interface {
	GetByPlate(ctx context.Context, licensePlate string) (*stock.Vehicle, error)
	Save(ctx context.Context, v *stock.Vehicle) error
}

// CorrectionResult 纠错批次的汇总：每条规则各修了多少、跳过多少。
type CorrectionResult struct {
	ResetItems int `json:"reset_items"`
	MarkedSold int `json:"marked_sold"`
	Skipped    int `json:"skipped"`
	Unfixable  int `json:"unfixable"`
}

// Corrector 显式的纠错批次：接收一份审计报告，只修有安全修复动作的规则。
// 重复入库（duplicate_intake）没有机器可判定的正确方向，只上报，人工处理。
type Corrector struct {
	items    ItemResetter
	vehicles VehicleStore
	log      logger.Logger
}

func NewCorrector(items ItemResetter, vehicles VehicleStore, log logger.Logger) *Corrector {
	return &Corrector{items: items, vehicles: vehicles, log: log}
}

// Apply 按发现逐条修复。单条失败记为 Skipped 并继续，不中断整个批次。
func (c *Corrector) Apply(ctx context.Context, findings []Finding) (CorrectionResult, error) {
	var result CorrectionResult
	if c == nil || c.items == nil || c.vehicles == nil {
		return result, fmt.Errorf("corrector not initialized")
	}

	for _, f := range findings {
		switch f.Rule {
		case RuleAutoCompletedNoMedia, RuleStaleCompletion:
			reset, err := c.items.ResetInconsistent(ctx, f.LicensePlate)
			if err != nil {
				result.Skipped++
				c.warn("reset work item failed", f, err)
				continue
			}
			if reset {
				result.ResetItems++
			}
		case RuleSoldFlagMissing:
			v, err := c.vehicles.GetByPlate(ctx, f.LicensePlate)
			if err != nil {
				result.Skipped++
				c.warn("load vehicle failed", f, err)
				continue
			}
			if v == nil || v.IsSold {
				continue
			}
			v.IsSold = true
			v.AutoMarked = true
			if err := c.vehicles.Save(ctx, v); err != nil {
				result.Skipped++
				c.warn("mark vehicle sold failed", f, err)
				continue
			}
			result.MarkedSold++
		default:
			result.Unfixable++
		}
	}

	if c.log != nil {
		c.log.WithFields(map[string]interface{}{
			"reset_items": result.ResetItems,
			"marked_sold": result.MarkedSold,
			"skipped":     result.Skipped,
			"unfixable":   result.Unfixable,
		}).Info("audit correction finished")
	}
	return result, nil
}

func (c *Corrector) warn(msg string, f Finding, err error) {
	if c.log == nil {
		return
	}
	c.log.WithFields(map[string]interface{}{
		"license_plate": f.LicensePlate,
		"rule":          string(f.Rule),
		"error":         err.Error(),
	}).Warn(msg)
}
