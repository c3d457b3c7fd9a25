package photos

import (
	"context"
	"testing"
	"time"

	"github.com/cvo-platform/cvo-core/internal/salestatus"
)

// fakeItemStore 内存工单仓库，按规范化车牌索引。
type fakeItemStore struct {
	items map[string]*WorkItem
	saves int
}

func newFakeItemStore() *fakeItemStore {
	return &fakeItemStore{items: map[string]*WorkItem{}}
}

func (f *fakeItemStore) GetByPlate(_ context.Context, plate string) (*WorkItem, error) {
	item, ok := f.items[plate]
	if !ok {
		return nil, nil
	}
	cp := *item
	return &cp, nil
}

func (f *fakeItemStore) Save(_ context.Context, item *WorkItem) error {
	cp := *item
	f.items[item.LicensePlate] = &cp
	f.saves++
	return nil
}

func TestDecide(t *testing.T) {
	if Decide(salestatus.StatusProfesional, false) != DecisionExempt {
		t.Fatalf("expected profesional exempt")
	}
	if Decide(salestatus.StatusTacticoVN, false) != DecisionExempt {
		t.Fatalf("expected tactico_vn exempt")
	}
	if Decide(salestatus.StatusVendido, true) != DecisionUpstreamMedia {
		t.Fatalf("expected media to auto-complete non-exempt vehicle")
	}
	if Decide(salestatus.StatusVendido, false) != DecisionPending {
		t.Fatalf("expected vendido without media to need photos")
	}
	if Decide("", false) != DecisionPending {
		t.Fatalf("expected unclassified vehicle without media to need photos")
	}
}

func TestApplyCreatesPendingItem(t *testing.T) {
	store := newFakeItemStore()
	c := NewClassifier(store)

	changed, err := c.Apply(context.Background(), "1234 ABC", salestatus.StatusVendido, false)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !changed {
		t.Fatalf("expected first apply to create item")
	}

	item := store.items["1234ABC"]
	if item == nil {
		t.Fatalf("expected item keyed by normalized plate")
	}
	if item.PhotosCompleted || item.AutoCompleted {
		t.Fatalf("expected pending item, got completed")
	}

	// 重跑同样输入必须零写入
	changed, err = c.Apply(context.Background(), "1234 ABC", salestatus.StatusVendido, false)
	if err != nil {
		t.Fatalf("Apply again: %v", err)
	}
	if changed {
		t.Fatalf("expected second apply to be a no-op")
	}
	if store.saves != 1 {
		t.Fatalf("expected exactly 1 save, got %d", store.saves)
	}
}

func TestApplyAutoCompletesExempt(t *testing.T) {
	store := newFakeItemStore()
	c := NewClassifier(store)

	changed, err := c.Apply(context.Background(), "5678DEF", salestatus.StatusProfesional, false)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !changed {
		t.Fatalf("expected apply to write")
	}

	item := store.items["5678DEF"]
	if item == nil || !item.PhotosCompleted || !item.AutoCompleted {
		t.Fatalf("expected auto-completed item, got %+v", item)
	}
	if item.PhotosCompletedDate == nil {
		t.Fatalf("expected completion date to be set")
	}
}

func TestApplyCompletesExistingPendingOnMedia(t *testing.T) {
	store := newFakeItemStore()
	store.items["9999XYZ"] = &WorkItem{ID: "i1", LicensePlate: "9999XYZ"}
	c := NewClassifier(store)

	changed, err := c.Apply(context.Background(), "9999XYZ", salestatus.StatusVendido, true)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !changed {
		t.Fatalf("expected media to complete pending item")
	}
	item := store.items["9999XYZ"]
	if !item.PhotosCompleted || !item.AutoCompleted {
		t.Fatalf("expected completed item, got %+v", item)
	}
}

func TestResetInconsistent(t *testing.T) {
	store := newFakeItemStore()
	completedAt := time.Now()
	store.items["1111AAA"] = &WorkItem{
		ID:                  "i1",
		LicensePlate:        "1111AAA",
		PhotosCompleted:     true,
		AutoCompleted:       true,
		PhotosCompletedDate: &completedAt,
	}
	// 人工完成的工单不回退
	store.items["2222BBB"] = &WorkItem{
		ID:              "i2",
		LicensePlate:    "2222BBB",
		PhotosCompleted: true,
	}
	c := NewClassifier(store)

	reset, err := c.ResetInconsistent(context.Background(), "1111AAA")
	if err != nil {
		t.Fatalf("ResetInconsistent: %v", err)
	}
	if !reset {
		t.Fatalf("expected auto-completed item to be reset")
	}
	item := store.items["1111AAA"]
	if item.PhotosCompleted || item.AutoCompleted || item.PhotosCompletedDate != nil {
		t.Fatalf("expected item back to pending, got %+v", item)
	}

	reset, err = c.ResetInconsistent(context.Background(), "2222BBB")
	if err != nil {
		t.Fatalf("ResetInconsistent: %v", err)
	}
	if reset {
		t.Fatalf("expected manually completed item to be left alone")
	}
}
