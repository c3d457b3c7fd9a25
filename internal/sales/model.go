package sales

import "time"

// Sale 是 sales_vehicles 表的 GORM 模型：零售销售台账，本系统只读。
type Sale struct {
	ID           string    `gorm:"primaryKey;size:36"`
	LicensePlate string    `gorm:"index;size:32;not null"`
	SaleDate     time.Time `gorm:"index"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

func (Sale) TableName() string { return "sales_vehicles" }
