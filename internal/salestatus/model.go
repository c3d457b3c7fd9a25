package salestatus

import "time"

// Status 售出分类枚举（持久化为字符串）。
type Status string

const (
	// StatusProfesional 走批发/同业渠道售出，不经过零售销售台账，永远不需要本店拍照。
	StatusProfesional Status = "profesional"
	// StatusVendido 经零售渠道售出（台账可查）。
	StatusVendido Status = "vendido"
	// StatusParticular 同 vendido 的零售渠道别名，历史数据里两种写法并存。
	StatusParticular Status = "particular"
	// StatusTacticoVN 战术/车队用车，同样免拍照。
	StatusTacticoVN Status = "tactico_vn"
)

// IsExempt 该分类是否免拍照。
func IsExempt(s Status) bool {
	return s == StatusProfesional || s == StatusTacticoVN
}

// Classification 是 vehicle_sale_status 表的 GORM 模型。
// 只插入不更新：一旦分类，对账引擎不允许悄悄改写（见 ReviewFlag）。
type Classification struct {
	ID            string `gorm:"primaryKey;size:36"`
	VehicleID     string `gorm:"index;size:36;not null"`
	SourceTable   string `gorm:"size:32;not null"` // stock / nuevas_entradas
	LicensePlate  string `gorm:"index;size:32;not null"`
	Status        Status `gorm:"type:varchar(16);index;not null"`
	Justification string `gorm:"size:255"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (Classification) TableName() string { return "vehicle_sale_status" }

// ReviewFlag 是 classification_reviews 表的 GORM 模型：
// 已按"缺席"分类的车又出现在 feed 里时记一条，等人工复核，绝不自动回退分类。
type ReviewFlag struct {
	ID           string `gorm:"primaryKey;size:36"`
	LicensePlate string `gorm:"index;size:32;not null"`
	Reason       string `gorm:"size:255"`
	Resolved     bool   `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (ReviewFlag) TableName() string { return "classification_reviews" }
