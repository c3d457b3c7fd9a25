package assign

import "time"

// PhotographerQuota 是 fotos_asignadas 表的 GORM 模型：
// 管理端配置的摄影师工作量目标占比。本包只读；百分比之和不强制等于 100
// （原业务接受这种松散，占比只用来算赤字）。
type PhotographerQuota struct {
	PhotographerID string  `gorm:"primaryKey;size:36"`
	Percentage     float64 `gorm:"not null;default:0"` // 0..100
	IsActive       bool    `gorm:"index;not null;default:false"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (PhotographerQuota) TableName() string { return "fotos_asignadas" }

// JobFlag 是 job_flags 表的 GORM 模型：批任务的咨询性"进行中"标志。
// 并发极低，不需要真正的分布式锁；标志只用来避免两次重叠的分配
// 各自读到同一份计数重复算赤字。
type JobFlag struct {
	Name       string    `gorm:"primaryKey;size:64"`
	InProgress bool      `gorm:"not null;default:false"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

func (JobFlag) TableName() string { return "job_flags" }
