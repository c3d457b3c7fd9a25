package assign

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cvo-platform/cvo-core/internal/photos"
)

type fakeQuotaStore struct {
	quotas []PhotographerQuota
}

func (f *fakeQuotaStore) ListActive(_ context.Context) ([]PhotographerQuota, error) {
	return f.quotas, nil
}

type fakeQueue struct {
	pending  []photos.WorkItem
	counts   map[string]int
	saved    []photos.WorkItem
	failNext int // 前 n 次 Save 失败
}

func (f *fakeQueue) ListUnassignedPending(_ context.Context) ([]photos.WorkItem, error) {
	out := make([]photos.WorkItem, len(f.pending))
	copy(out, f.pending)
	return out, nil
}

func (f *fakeQueue) AssignedCounts(_ context.Context) (map[string]int, error) {
	return f.counts, nil
}

func (f *fakeQueue) Save(_ context.Context, item *photos.WorkItem) error {
	if f.failNext > 0 {
		f.failNext--
		return fmt.Errorf("write failed")
	}
	f.saved = append(f.saved, *item)
	return nil
}

type fakeFlag struct {
	held bool
}

func (f *fakeFlag) TryAcquire(_ context.Context, _ string) (bool, error) {
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeFlag) Release(_ context.Context, _ string) error {
	f.held = false
	return nil
}

func assignedBy(saved []photos.WorkItem) map[string]int {
	out := map[string]int{}
	for _, item := range saved {
		if item.AssignedTo != nil {
			out[*item.AssignedTo]++
		}
	}
	return out
}

func TestRunSplitsBySeventyThirty(t *testing.T) {
	quotas := &fakeQuotaStore{quotas: []PhotographerQuota{
		{PhotographerID: "p70", Percentage: 70, IsActive: true},
		{PhotographerID: "p30", Percentage: 30, IsActive: true},
	}}
	queue := &fakeQueue{
		pending: []photos.WorkItem{
			{ID: "i1", LicensePlate: "0001AAA"},
			{ID: "i2", LicensePlate: "0002BBB"},
			{ID: "i3", LicensePlate: "0003CCC"},
		},
		counts: map[string]int{},
	}

	b := NewBalancer(quotas, queue, &fakeFlag{}, nil)
	result, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.TotalVehicles != 3 || result.Assigned != 3 {
		t.Fatalf("expected 3 vehicles all assigned, got %+v", result)
	}
	got := assignedBy(queue.saved)
	if got["p70"] != 2 || got["p30"] != 1 {
		t.Fatalf("expected 2/1 split, got %v", got)
	}
}

func TestRunFairnessWithinOne(t *testing.T) {
	quotas := &fakeQuotaStore{quotas: []PhotographerQuota{
		{PhotographerID: "a", Percentage: 40, IsActive: true},
		{PhotographerID: "b", Percentage: 35, IsActive: true},
		{PhotographerID: "c", Percentage: 25, IsActive: true},
	}}
	var pending []photos.WorkItem
	for i := 0; i < 20; i++ {
		pending = append(pending, photos.WorkItem{
			ID:           fmt.Sprintf("i%d", i),
			LicensePlate: fmt.Sprintf("%04dXYZ", i),
		})
	}
	queue := &fakeQueue{pending: pending, counts: map[string]int{}}

	b := NewBalancer(quotas, queue, nil, nil)
	result, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Assigned != 20 {
		t.Fatalf("expected all 20 assigned, got %d", result.Assigned)
	}

	got := assignedBy(queue.saved)
	targets := map[string]float64{"a": 8, "b": 7, "c": 5}
	for id, target := range targets {
		diff := float64(got[id]) - target
		if diff > 1 || diff < -1 {
			t.Fatalf("photographer %s: %d assigned, target %.0f (off by more than 1)", id, got[id], target)
		}
	}
}

func TestPickLargestDeficitTieBreaksLowestID(t *testing.T) {
	// 50/50 且都是 0 在册：赤字打平，必须选 id 升序里的第一个
	loads := []PhotographerLoad{
		{PhotographerID: "alpha", Percentage: 50},
		{PhotographerID: "beta", Percentage: 50},
	}
	if idx := PickLargestDeficit(loads, 2); idx != 0 {
		t.Fatalf("expected tie to pick lowest id, got index %d", idx)
	}
}

func TestRunNoActiveCapacity(t *testing.T) {
	queue := &fakeQueue{
		pending: []photos.WorkItem{{ID: "i1", LicensePlate: "0001AAA"}},
		counts:  map[string]int{},
	}
	b := NewBalancer(&fakeQuotaStore{}, queue, nil, nil)

	_, err := b.Run(context.Background())
	if !errors.Is(err, ErrNoActiveCapacity) {
		t.Fatalf("expected ErrNoActiveCapacity, got %v", err)
	}
	if len(queue.saved) != 0 {
		t.Fatalf("expected zero writes without capacity")
	}
}

func TestRunInProgressFlag(t *testing.T) {
	flag := &fakeFlag{held: true}
	b := NewBalancer(&fakeQuotaStore{quotas: []PhotographerQuota{{PhotographerID: "p", Percentage: 100, IsActive: true}}},
		&fakeQueue{counts: map[string]int{}}, flag, nil)

	if _, err := b.Run(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
}

func TestRunSkipsFailedWriteAndContinues(t *testing.T) {
	quotas := &fakeQuotaStore{quotas: []PhotographerQuota{
		{PhotographerID: "p", Percentage: 100, IsActive: true},
	}}
	queue := &fakeQueue{
		pending: []photos.WorkItem{
			{ID: "i1", LicensePlate: "0001AAA"},
			{ID: "i2", LicensePlate: "0002BBB"},
		},
		counts:   map[string]int{},
		failNext: 2, // 第一件连重试一起失败
	}

	b := NewBalancer(quotas, queue, nil, nil)
	result, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Skipped != 1 || result.Assigned != 1 {
		t.Fatalf("expected 1 skipped 1 assigned, got %+v", result)
	}
}

func TestRunPreservesOriginalAssignment(t *testing.T) {
	original := "former"
	quotas := &fakeQuotaStore{quotas: []PhotographerQuota{
		{PhotographerID: "p", Percentage: 100, IsActive: true},
	}}
	queue := &fakeQueue{
		pending: []photos.WorkItem{
			{ID: "i1", LicensePlate: "0001AAA", OriginalAssignedTo: &original},
		},
		counts: map[string]int{},
	}

	b := NewBalancer(quotas, queue, nil, nil)
	if _, err := b.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	saved := queue.saved[0]
	if saved.OriginalAssignedTo == nil || *saved.OriginalAssignedTo != "former" {
		t.Fatalf("expected original assignment preserved, got %v", saved.OriginalAssignedTo)
	}
	if saved.AssignedTo == nil || *saved.AssignedTo != "p" {
		t.Fatalf("expected reassignment to p, got %v", saved.AssignedTo)
	}
}
