package sales

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) ListAll(ctx context.Context) ([]Sale, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var sales []Sale
	if err := r.db.WithContext(ctx).Find(&sales).Error; err != nil {
		return nil, fmt.Errorf("read sales ledger: %w", err)
	}
	return sales, nil
}
