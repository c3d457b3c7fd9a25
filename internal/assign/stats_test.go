package assign

import (
	"context"
	"testing"
	"time"

	"github.com/cvo-platform/cvo-core/internal/photos"
)

type fakeQuotaLister struct {
	quotas []PhotographerQuota
}

func (f *fakeQuotaLister) ListAll(_ context.Context) ([]PhotographerQuota, error) {
	return f.quotas, nil
}

type fakeItemLister struct {
	items []photos.WorkItem
}

func (f *fakeItemLister) ListAll(_ context.Context) ([]photos.WorkItem, error) {
	return f.items, nil
}

func strPtr(s string) *string { return &s }

func TestPerPhotographer(t *testing.T) {
	reception := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	completed := reception.AddDate(0, 0, 4)

	quotas := &fakeQuotaLister{quotas: []PhotographerQuota{
		{PhotographerID: "p1", Percentage: 70, IsActive: true},
		{PhotographerID: "p2", Percentage: 30, IsActive: false},
	}}
	items := &fakeItemLister{items: []photos.WorkItem{
		{ID: "i1", LicensePlate: "0001AAA", AssignedTo: strPtr("p1"), PhotosCompleted: true,
			PhysicalReceptionDate: &reception, PhotosCompletedDate: &completed},
		{ID: "i2", LicensePlate: "0002BBB", AssignedTo: strPtr("p1")},
		{ID: "i3", LicensePlate: "0003CCC"}, // 未分配，不计入任何人
	}}

	stats, err := NewStatsService(quotas, items).PerPhotographer(context.Background())
	if err != nil {
		t.Fatalf("PerPhotographer: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected stats for both photographers, got %d", len(stats))
	}

	p1 := stats[0]
	if p1.PhotographerID != "p1" || p1.TotalAssigned != 2 || p1.TotalCompleted != 1 {
		t.Fatalf("unexpected p1 stats %+v", p1)
	}
	if p1.CompletionRate != 50 {
		t.Fatalf("expected 50%% completion, got %v", p1.CompletionRate)
	}
	if p1.AvgDaysToDone != 4 {
		t.Fatalf("expected 4 days average, got %v", p1.AvgDaysToDone)
	}

	p2 := stats[1]
	if p2.TotalAssigned != 0 || p2.CompletionRate != 0 || p2.IsActive {
		t.Fatalf("unexpected p2 stats %+v", p2)
	}
}
