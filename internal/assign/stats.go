package assign

import (
	"context"
	"fmt"

	"github.com/cvo-platform/cvo-core/internal/photos"
)

// PhotographerStats 仪表盘用的每摄影师只读汇总。
type PhotographerStats struct {
	PhotographerID string  `json:"photographer_id"`
	Percentage     float64 `json:"percentage"`
	IsActive       bool    `json:"is_active"`
	TotalAssigned  int     `json:"total_assigned"`
	TotalCompleted int     `json:"total_completed"`
	CompletionRate float64 `json:"completion_rate"` // 0..100
	AvgDaysToDone  float64 `json:"avg_days_to_done"` // 接收→完成的平均天数
}

// QuotaLister 含非活跃摄影师在内的全量配额。
type QuotaLister interface {
	ListAll(ctx context.Context) ([]PhotographerQuota, error)
}

// ItemLister 全量工单。
type ItemLister interface {
	ListAll(ctx context.Context) ([]photos.WorkItem, error)
}

// StatsService 摄影师绩效汇总。只读，不产生任何写入。
type StatsService struct {
	quotas QuotaLister
	items  ItemLister
}

func NewStatsService(quotas QuotaLister, items ItemLister) *StatsService {
	return &StatsService{quotas: quotas, items: items}
}

// PerPhotographer 计算每摄影师的分配/完成汇总。
func (s *StatsService) PerPhotographer(ctx context.Context) ([]PhotographerStats, error) {
	if s == nil || s.quotas == nil || s.items == nil {
		return nil, fmt.Errorf("stats service not initialized")
	}

	quotas, err := s.quotas.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	items, err := s.items.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	byPhotographer := make(map[string][]photos.WorkItem)
	for _, item := range items {
		if item.AssignedTo == nil {
			continue
		}
		byPhotographer[*item.AssignedTo] = append(byPhotographer[*item.AssignedTo], item)
	}

	out := make([]PhotographerStats, 0, len(quotas))
	for _, q := range quotas {
		assigned := byPhotographer[q.PhotographerID]

		st := PhotographerStats{
			PhotographerID: q.PhotographerID,
			Percentage:     q.Percentage,
			IsActive:       q.IsActive,
			TotalAssigned:  len(assigned),
		}

		var daySum float64
		var daySamples int
		for _, item := range assigned {
			if !item.PhotosCompleted {
				continue
			}
			st.TotalCompleted++
			if item.PhysicalReceptionDate != nil && item.PhotosCompletedDate != nil {
				days := item.PhotosCompletedDate.Sub(*item.PhysicalReceptionDate).Hours() / 24
				if days >= 0 {
					daySum += days
					daySamples++
				}
			}
		}
		if st.TotalAssigned > 0 {
			st.CompletionRate = float64(st.TotalCompleted) / float64(st.TotalAssigned) * 100
		}
		if daySamples > 0 {
			st.AvgDaysToDone = daySum / float64(daySamples)
		}
		out = append(out, st)
	}
	return out, nil
}
