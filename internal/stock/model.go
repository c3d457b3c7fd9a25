package stock

import (
	"strings"
	"time"
)

// Vehicle 是 stock 表的 GORM 模型：每台实车一行，车牌是跨数据源唯一可靠的自然键。
type Vehicle struct {
	ID           string `gorm:"primaryKey;size:36"`
	LicensePlate string `gorm:"uniqueIndex;size:32;not null"` // 规范化后的车牌（大写、去空白）
	Model        string `gorm:"size:128"`
	Brand        string `gorm:"size:64"`

	IsSold      bool `gorm:"index;not null;default:false"` // 售出状态（本表是唯一写方）
	IsAvailable bool `gorm:"not null;default:false"`       // 到店可用（拍照完成级联置位）

	// AutoMarked 为 true 表示该行是对账引擎写的，不是人工操作。
	AutoMarked bool `gorm:"not null;default:false"`

	PhysicalReceptionDate *time.Time // 物理接收日期（可空，级联回填）

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Vehicle) TableName() string { return "stock" }

// NormalizePlate 车牌规范化：大写 + 去掉所有空白。
// feed / 销售台账 / stock 三边 join 全靠这个键，规则必须一致。
func NormalizePlate(plate string) string {
	return strings.Join(strings.Fields(strings.ToUpper(plate)), "")
}
