package assign

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// flagStaleAfter 进程崩溃没来得及 Release 时，标志超过这个时长视为失效。
const flagStaleAfter = 10 * time.Minute

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

// ListActive 活跃摄影师配额，按 id 升序（赤字打平时取 id 最小者，这里先排好序保证确定性）。
func (r *Repo) ListActive(ctx context.Context) ([]PhotographerQuota, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var quotas []PhotographerQuota
	err := db.Where("is_active = ?", true).
		Order("photographer_id asc").
		Find(&quotas).Error
	if err != nil {
		return nil, err
	}
	return quotas, nil
}

// ListAll 全量配额（含非活跃，绩效汇总用）。
func (r *Repo) ListAll(ctx context.Context) ([]PhotographerQuota, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var quotas []PhotographerQuota
	if err := db.Order("photographer_id asc").Find(&quotas).Error; err != nil {
		return nil, err
	}
	return quotas, nil
}

// TryAcquire 尝试占住名为 name 的任务标志。返回 false 表示已有同名任务在跑。
func (r *Repo) TryAcquire(ctx context.Context, name string) (bool, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return false, fmt.Errorf("repo db is nil")
	}

	acquired := false
	err := db.Transaction(func(tx *gorm.DB) error {
		var flag JobFlag
		err := tx.Where("name = ?", name).First(&flag).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			acquired = true
			return tx.Create(&JobFlag{Name: name, InProgress: true}).Error
		}
		if err != nil {
			return err
		}
		if flag.InProgress && time.Since(flag.UpdatedAt) < flagStaleAfter {
			return nil
		}
		flag.InProgress = true
		acquired = true
		return tx.Save(&flag).Error
	})
	if err != nil {
		return false, err
	}
	return acquired, nil
}

// Release 释放任务标志。
func (r *Repo) Release(ctx context.Context, name string) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return db.Model(&JobFlag{}).
		Where("name = ?", name).
		Update("in_progress", false).Error
}
