package feed

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// Repo duc_scraper 的只读仓库。写入方是站外的抓取任务，不在本系统范围内。
type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Snapshot 拉取全量快照。任何读失败都是批次级错误，由调用方中止整次 run。
func (r *Repo) Snapshot(ctx context.Context) (*Snapshot, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var rows []Row
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("read feed snapshot: %w", err)
	}
	return NewSnapshot(rows), nil
}
