package photos

import "time"

// WorkItem 是 fotos 表的 GORM 模型：需要（或曾经需要）本店拍照的车辆，每车一行。
//
// 不变式：PhotosCompleted=true 只能来自两个渠道——人工完成，或 feed 快照确实带媒体
// （含免拍分类的自动完成）。AutoCompleted=true 但 feed 无媒体且分类不免拍，
// 是审计器要抓的脏数据。
type WorkItem struct {
	ID           string `gorm:"primaryKey;size:36"`
	LicensePlate string `gorm:"uniqueIndex;size:32;not null"`

	PhotosCompleted     bool       `gorm:"index;not null;default:false"`
	PhotosCompletedDate *time.Time
	AutoCompleted       bool `gorm:"not null;default:false"` // true = 分类器写的，false = 人工

	AssignedTo         *string `gorm:"index;size:36"` // 当前负责的摄影师
	OriginalAssignedTo *string `gorm:"size:36"`       // 首次分配记录，纠错改派时留痕

	PhysicalReceptionDate *time.Time
	IsAvailable           bool `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (WorkItem) TableName() string { return "fotos" }
