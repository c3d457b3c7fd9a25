package salestatus

import (
	"context"
	"fmt"

	"github.com/google/uuid"
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

func (r *Repo) ListAll(ctx context.Context) ([]Classification, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var rows []Classification
	if err := db.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Insert 新增分类行。本表只插入；改写已有分类必须走人工复核流程。
func (r *Repo) Insert(ctx context.Context, c *Classification) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return db.Create(c).Error
}

// FlagForReview 给车牌记一条待复核标记；已有未处理标记时不重复插入（幂等）。
// 返回是否新建了标记。
func (r *Repo) FlagForReview(ctx context.Context, plate, reason string) (bool, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return false, fmt.Errorf("repo db is nil")
	}

	var count int64
	if err := db.Model(&ReviewFlag{}).
		Where("license_plate = ? AND resolved = ?", plate, false).
		Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	flag := &ReviewFlag{
		ID:           uuid.NewString(),
		LicensePlate: plate,
		Reason:       reason,
	}
	if err := db.Create(flag).Error; err != nil {
		return false, err
	}
	return true, nil
}
