package newentry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cvo-platform/cvo-core/internal/stock"
	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) ListAll(ctx context.Context) ([]Entry, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var entries []Entry
	if err := r.db.WithContext(ctx).Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// MarkReceived 同车牌的暂存行镜像置位 is_received（不存在则忽略，不是错误）。
// 返回是否真的写了行。已收货的行不再重写，保证级联幂等。
func (r *Repo) MarkReceived(ctx context.Context, plate string, date time.Time) (bool, error) {
	if r == nil || r.db == nil {
		return false, fmt.Errorf("repo db is nil")
	}
	var e Entry
	err := r.db.WithContext(ctx).Where("license_plate = ?", stock.NormalizePlate(plate)).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if e.IsReceived {
		return false, nil
	}
	e.IsReceived = true
	e.ReceptionDate = &date
	if err := r.db.WithContext(ctx).Save(&e).Error; err != nil {
		return false, err
	}
	return true, nil
}
