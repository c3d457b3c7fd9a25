package audit

import (
	"context"
	"fmt"

	"github.com/cvo-platform/cvo-core/internal/feed"
	"github.com/cvo-platform/cvo-core/internal/newentry"
	"github.com/cvo-platform/cvo-core/internal/photos"
	"github.com/cvo-platform/cvo-core/internal/salestatus"
	"github.com/cvo-platform/cvo-core/internal/stock"
)

// Rule 审计规则标识。
type Rule string

const (
	// RuleAutoCompletedNoMedia auto_completed=true 但 feed 无媒体且分类不免拍。
	RuleAutoCompletedNoMedia Rule = "auto_completed_without_media"
	// RuleSoldFlagMissing 分类为零售售出但目录仍标未售。
	RuleSoldFlagMissing Rule = "classified_sold_but_not_marked"
	// RuleStaleCompletion feed 里在售、工单却已完成且分类不免拍。
	RuleStaleCompletion Rule = "stale_completion"
	// RuleDuplicateIntake 同一车牌同时出现在目录和入库暂存区。
	RuleDuplicateIntake Rule = "duplicate_intake"
)

// Finding 一条审计发现：车牌 + 违反的规则 + 现场字段值。
// 只上报不修复；修复是单独的、可追溯的显式动作（见 Corrector）。
type Finding struct {
	LicensePlate string                 `json:"license_plate"`
	Rule         Rule                   `json:"rule"`
	Fields       map[string]interface{} `json:"fields"`
}

// VehicleReader / ItemReader / IntakeReader / ClassReader / FeedReader
// 审计器的只读数据面。
type VehicleReader interface {
	ListAll(ctx context.Context) ([]stock.Vehicle, error)
}

type ItemReader interface {
	ListAll(ctx context.Context) ([]photos.WorkItem, error)
}

type IntakeReader interface {
	ListAll(ctx context.Context) ([]newentry.Entry, error)
}

type ClassReader interface {
	ListAll(ctx context.Context) ([]salestatus.Classification, error)
}

type FeedReader interface {
	Snapshot(ctx context.Context) (*feed.Snapshot, error)
}

// Auditor 一致性审计器：按需运行，只读，产出结构化发现列表。
// 原系统里这是十几个一次性检查/修复脚本，这里收敛成一个审计器 + 一个纠错批次。
type Auditor struct {
	vehicles VehicleReader
	items    ItemReader
	intake   IntakeReader
	classes  ClassReader
	feed     FeedReader
}

func NewAuditor(vehicles VehicleReader, items ItemReader, intake IntakeReader, classes ClassReader, feedReader FeedReader) *Auditor {
	return &Auditor{
		vehicles: vehicles,
		items:    items,
		intake:   intake,
		classes:  classes,
		feed:     feedReader,
	}
}

// Report 跑全部规则，返回发现列表。不产生任何写入。
func (a *Auditor) Report(ctx context.Context) ([]Finding, error) {
	if a == nil || a.vehicles == nil || a.items == nil || a.classes == nil || a.feed == nil {
		return nil, fmt.Errorf("auditor not initialized")
	}

	snapshot, err := a.feed.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit aborted: %w", err)
	}
	vehicles, err := a.vehicles.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit aborted: %w", err)
	}
	items, err := a.items.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit aborted: %w", err)
	}
	classes, err := a.classes.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit aborted: %w", err)
	}

	statusByPlate := make(map[string]salestatus.Status, len(classes))
	for _, c := range classes {
		statusByPlate[stock.NormalizePlate(c.LicensePlate)] = c.Status
	}

	var findings []Finding

	// (a) auto_completed 但无媒体且不免拍
	// (c) feed 在售 + 已完成 + 不免拍（过期完成态）
	for _, item := range items {
		plate := stock.NormalizePlate(item.LicensePlate)
		status := statusByPlate[plate]
		exempt := salestatus.IsExempt(status)

		if item.AutoCompleted && !exempt && !snapshot.HasMedia(plate) {
			findings = append(findings, Finding{
				LicensePlate: plate,
				Rule:         RuleAutoCompletedNoMedia,
				Fields: map[string]interface{}{
					"photos_completed": item.PhotosCompleted,
					"auto_completed":   item.AutoCompleted,
					"sale_status":      string(status),
				},
			})
		}

		if item.PhotosCompleted && !exempt &&
			snapshot.Availability(plate) == feed.AvailabilityDisponible && !snapshot.HasMedia(plate) {
			findings = append(findings, Finding{
				LicensePlate: plate,
				Rule:         RuleStaleCompletion,
				Fields: map[string]interface{}{
					"photos_completed": item.PhotosCompleted,
					"availability":     string(snapshot.Availability(plate)),
					"sale_status":      string(status),
				},
			})
		}
	}

	// (b) 分类售出但目录未置位
	soldStatuses := map[string]salestatus.Status{}
	for _, c := range classes {
		if c.Status == salestatus.StatusVendido || c.Status == salestatus.StatusParticular {
			soldStatuses[stock.NormalizePlate(c.LicensePlate)] = c.Status
		}
	}
	platesInStock := make(map[string]bool, len(vehicles))
	for _, v := range vehicles {
		plate := stock.NormalizePlate(v.LicensePlate)
		platesInStock[plate] = true
		if status, ok := soldStatuses[plate]; ok && !v.IsSold {
			findings = append(findings, Finding{
				LicensePlate: plate,
				Rule:         RuleSoldFlagMissing,
				Fields: map[string]interface{}{
					"is_sold":     v.IsSold,
					"sale_status": string(status),
				},
			})
		}
	}

	// (d) 目录和入库暂存区同时出现
	if a.intake != nil {
		entries, err := a.intake.ListAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("audit aborted: %w", err)
		}
		for _, e := range entries {
			plate := stock.NormalizePlate(e.LicensePlate)
			if platesInStock[plate] {
				findings = append(findings, Finding{
					LicensePlate: plate,
					Rule:         RuleDuplicateIntake,
					Fields: map[string]interface{}{
						"is_received": e.IsReceived,
					},
				})
			}
		}
	}

	return findings, nil
}
