package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/cvo-platform/cvo-core/internal/feed"
	"github.com/cvo-platform/cvo-core/internal/sales"
	"github.com/cvo-platform/cvo-core/internal/salestatus"
	"github.com/cvo-platform/cvo-core/internal/stock"
)

type fakeFeed struct {
	rows []feed.Row
}

func (f *fakeFeed) Snapshot(_ context.Context) (*feed.Snapshot, error) {
	return feed.NewSnapshot(f.rows), nil
}

type fakeSales struct {
	sales []sales.Sale
}

func (f *fakeSales) ListAll(_ context.Context) ([]sales.Sale, error) {
	return f.sales, nil
}

type fakeVehicles struct {
	vehicles map[string]*stock.Vehicle
	saves    int
}

func (f *fakeVehicles) ListAll(_ context.Context) ([]stock.Vehicle, error) {
	var out []stock.Vehicle
	for _, v := range f.vehicles {
		out = append(out, *v)
	}
	return out, nil
}

func (f *fakeVehicles) GetByPlate(_ context.Context, plate string) (*stock.Vehicle, error) {
	for _, v := range f.vehicles {
		if v.LicensePlate == plate {
			cp := *v
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeVehicles) Save(_ context.Context, v *stock.Vehicle) error {
	cp := *v
	f.vehicles[v.ID] = &cp
	f.saves++
	return nil
}

type fakeClasses struct {
	classes []salestatus.Classification
	flags   map[string]int
}

func (f *fakeClasses) ListAll(_ context.Context) ([]salestatus.Classification, error) {
	out := make([]salestatus.Classification, len(f.classes))
	copy(out, f.classes)
	return out, nil
}

func (f *fakeClasses) Insert(_ context.Context, c *salestatus.Classification) error {
	f.classes = append(f.classes, *c)
	return nil
}

func (f *fakeClasses) FlagForReview(_ context.Context, plate, _ string) (bool, error) {
	if f.flags == nil {
		f.flags = map[string]int{}
	}
	if f.flags[plate] > 0 {
		return false, nil
	}
	f.flags[plate]++
	return true, nil
}

type fakeChecker struct {
	plates map[string]bool
}

func (f *fakeChecker) ExistsByPlate(_ context.Context, plate string) (bool, error) {
	return f.plates[plate], nil
}

type fakePhotoClassifier struct {
	applied map[string]salestatus.Status
	changed map[string]bool
}

func (f *fakePhotoClassifier) Apply(_ context.Context, plate string, status salestatus.Status, _ bool) (bool, error) {
	if f.applied == nil {
		f.applied = map[string]salestatus.Status{}
	}
	f.applied[plate] = status
	return f.changed[plate], nil
}

type fakeChangeLog struct {
	entries []ChangeLog
}

func (f *fakeChangeLog) Append(_ context.Context, entry *ChangeLog) error {
	f.entries = append(f.entries, *entry)
	return nil
}

func newTestEngine(feedRows []feed.Row, ledger []sales.Sale, vehicles map[string]*stock.Vehicle) (*Engine, *fakeVehicles, *fakeClasses, *fakePhotoClassifier, *fakeChangeLog) {
	vs := &fakeVehicles{vehicles: vehicles}
	cs := &fakeClasses{}
	pc := &fakePhotoClassifier{}
	cl := &fakeChangeLog{}
	e := NewEngine(
		&fakeFeed{rows: feedRows},
		&fakeSales{sales: ledger},
		vs, cs,
		&fakeChecker{plates: map[string]bool{}},
		pc, cl, nil, 2, 1,
	)
	return e, vs, cs, pc, cl
}

// 三台库存车：A1/A2 在 feed 里在售，A3 两天前从 feed 消失且台账有售出记录。
func TestRunClassifiesAbsentVehicle(t *testing.T) {
	saleDate := time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)
	vehicles := map[string]*stock.Vehicle{
		"v1": {ID: "v1", LicensePlate: "0001AAA", Model: "Corsa"},
		"v2": {ID: "v2", LicensePlate: "0002BBB", Model: "Astra"},
		"v3": {ID: "v3", LicensePlate: "0003CCC", Model: "Mokka"},
	}
	feedRows := []feed.Row{
		{LicensePlate: "0001AAA", Availability: feed.AvailabilityDisponible},
		{LicensePlate: "0002BBB", Availability: feed.AvailabilityDisponible},
	}
	ledger := []sales.Sale{{LicensePlate: "0003CCC", SaleDate: saleDate}}

	e, vs, cs, pc, _ := newTestEngine(feedRows, ledger, vehicles)

	summary, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Processed != 3 {
		t.Fatalf("expected 3 processed, got %d", summary.Processed)
	}
	if summary.Classified != 1 {
		t.Fatalf("expected exactly 1 classification, got %d", summary.Classified)
	}

	// A3：台账可查 → vendido + is_sold 置位 + 接收日期回填 saleDate-2d
	if len(cs.classes) != 1 {
		t.Fatalf("expected 1 classification, got %d", len(cs.classes))
	}
	c := cs.classes[0]
	if c.Status != salestatus.StatusVendido || c.LicensePlate != "0003CCC" {
		t.Fatalf("unexpected classification %+v", c)
	}
	v3 := vs.vehicles["v3"]
	if !v3.IsSold || !v3.AutoMarked {
		t.Fatalf("expected v3 marked sold, got %+v", v3)
	}
	wantReception := saleDate.AddDate(0, 0, -2)
	if v3.PhysicalReceptionDate == nil || !v3.PhysicalReceptionDate.Equal(wantReception) {
		t.Fatalf("expected reception %v, got %v", wantReception, v3.PhysicalReceptionDate)
	}

	// A1/A2 在 feed 里：不分类、不置位，只过拍照分类器
	if vs.vehicles["v1"].IsSold || vs.vehicles["v2"].IsSold {
		t.Fatalf("expected in-feed vehicles untouched")
	}
	if len(pc.applied) != 3 {
		t.Fatalf("expected classifier applied to all vehicles, got %d", len(pc.applied))
	}
	if pc.applied["0001AAA"] != "" {
		t.Fatalf("expected unclassified status for in-feed vehicle")
	}
}

func TestRunAbsentWithoutSaleIsProfessional(t *testing.T) {
	vehicles := map[string]*stock.Vehicle{
		"v1": {ID: "v1", LicensePlate: "0009ZZZ", Model: "Corsa"},
	}
	e, vs, cs, _, _ := newTestEngine(nil, nil, vehicles)

	if _, err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(cs.classes) != 1 || cs.classes[0].Status != salestatus.StatusProfesional {
		t.Fatalf("expected profesional classification, got %+v", cs.classes)
	}
	// 刚分类为缺席也要置位 is_sold（车已不在本店流通）
	if !vs.vehicles["v1"].IsSold {
		t.Fatalf("expected absent vehicle marked sold")
	}
	// 无台账日期，不回填接收日期
	if vs.vehicles["v1"].PhysicalReceptionDate != nil {
		t.Fatalf("expected no reception backfill without sale date")
	}
}

func TestRunIsIdempotent(t *testing.T) {
	saleDate := time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)
	vehicles := map[string]*stock.Vehicle{
		"v3": {ID: "v3", LicensePlate: "0003CCC", Model: "Mokka"},
	}
	ledger := []sales.Sale{{LicensePlate: "0003CCC", SaleDate: saleDate}}

	e, vs, cs, _, _ := newTestEngine(nil, ledger, vehicles)

	if _, err := e.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	savesAfterFirst := vs.saves
	classesAfterFirst := len(cs.classes)

	summary, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.Classified != 0 || summary.Mutated != 0 {
		t.Fatalf("expected second run without mutations, got %+v", summary)
	}
	if vs.saves != savesAfterFirst || len(cs.classes) != classesAfterFirst {
		t.Fatalf("expected no extra writes on rerun")
	}
}

func TestRunSkipsVehicleWithoutModel(t *testing.T) {
	vehicles := map[string]*stock.Vehicle{
		"v1": {ID: "v1", LicensePlate: "0004DDD"}, // 缺 Model，行级错误
		"v2": {ID: "v2", LicensePlate: "0005EEE", Model: "Astra"},
	}
	e, _, cs, _, _ := newTestEngine(nil, nil, vehicles)

	summary, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Skipped != 1 {
		t.Fatalf("expected 1 skipped, got %d", summary.Skipped)
	}
	if summary.Classified != 1 || len(cs.classes) != 1 || cs.classes[0].LicensePlate != "0005EEE" {
		t.Fatalf("expected healthy vehicle still classified, got %+v", cs.classes)
	}
}

func TestRunFlagsReappearedVehicle(t *testing.T) {
	vehicles := map[string]*stock.Vehicle{
		"v1": {ID: "v1", LicensePlate: "0006FFF", Model: "Corsa"},
	}
	e, vs, cs, _, cl := newTestEngine(
		[]feed.Row{{LicensePlate: "0006FFF", Availability: feed.AvailabilityDisponible}},
		nil, vehicles,
	)
	cs.classes = []salestatus.Classification{{
		VehicleID:    "v1",
		SourceTable:  "stock",
		LicensePlate: "0006FFF",
		Status:       salestatus.StatusProfesional,
	}}

	summary, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Flagged != 1 {
		t.Fatalf("expected 1 flagged, got %d", summary.Flagged)
	}
	// 只标记不回退：分类原样，目录不动
	if len(cs.classes) != 1 || vs.saves != 0 {
		t.Fatalf("expected no automatic rollback")
	}
	found := false
	for _, entry := range cl.entries {
		if entry.Action == "flagged_review" && entry.LicensePlate == "0006FFF" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected flagged_review change log entry")
	}

	// 重跑：标记已存在，不再计数
	summary, err = e.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.Flagged != 0 {
		t.Fatalf("expected no repeat flag, got %d", summary.Flagged)
	}
}
