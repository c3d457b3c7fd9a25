package newentry

import "time"

// Entry 是 nuevas_entradas 表的 GORM 模型：还没迁入主目录（stock）的入库暂存区。
type Entry struct {
	ID            string     `gorm:"primaryKey;size:36"`
	LicensePlate  string     `gorm:"index;size:32;not null"`
	Model         string     `gorm:"size:128"`
	IsReceived    bool       `gorm:"not null;default:false"` // 拍照完成级联镜像置位
	ReceptionDate *time.Time
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

func (Entry) TableName() string { return "nuevas_entradas" }
