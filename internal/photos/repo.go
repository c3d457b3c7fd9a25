package photos

import (
	"context"
	"errors"
	"fmt"

	"github.com/cvo-platform/cvo-core/internal/stock"
	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) withCtx(ctx context.Context) *gorm.DB {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.WithContext(ctx)
}

// GetByPlate 按规范化车牌查找；不存在返回 (nil, nil)。
func (r *Repo) GetByPlate(ctx context.Context, plate string) (*WorkItem, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var item WorkItem
	err := db.Where("license_plate = ?", stock.NormalizePlate(plate)).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *Repo) ExistsByPlate(ctx context.Context, plate string) (bool, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return false, fmt.Errorf("repo db is nil")
	}
	var count int64
	err := db.Model(&WorkItem{}).
		Where("license_plate = ?", stock.NormalizePlate(plate)).
		Count(&count).Error
	return count > 0, err
}

func (r *Repo) Save(ctx context.Context, item *WorkItem) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	item.LicensePlate = stock.NormalizePlate(item.LicensePlate)
	return db.Save(item).Error
}

func (r *Repo) ListAll(ctx context.Context) ([]WorkItem, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var items []WorkItem
	if err := db.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ListUnassignedPending 待分配队列：未分配且未完成，按创建时间稳定排序（最老优先）。
func (r *Repo) ListUnassignedPending(ctx context.Context) ([]WorkItem, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var items []WorkItem
	err := db.Where("assigned_to IS NULL AND photos_completed = ?", false).
		Order("created_at asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// AssignedCounts 各摄影师当前在册分配数（不要求已完成）。
func (r *Repo) AssignedCounts(ctx context.Context) (map[string]int, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	type row struct {
		AssignedTo string
		N          int
	}
	var rows []row
	err := db.Model(&WorkItem{}).
		Select("assigned_to, count(*) as n").
		Where("assigned_to IS NOT NULL").
		Group("assigned_to").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.AssignedTo] = r.N
	}
	return counts, nil
}
