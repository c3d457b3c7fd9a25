package feed

import (
	"time"

	"github.com/cvo-platform/cvo-core/internal/stock"
)

// Availability feed 里的展示状态枚举。
type Availability string

const (
	AvailabilityDisponible Availability = "DISPONIBLE"
	AvailabilityReservado  Availability = "RESERVADO"
	AvailabilityVendido    Availability = "VENDIDO"
)

// Row 是 duc_scraper 表的 GORM 模型：外部抓取任务写入的最新快照，本系统只读。
type Row struct {
	ID           string       `gorm:"primaryKey;size:36"`
	LicensePlate string       `gorm:"index;size:32;not null"`
	Model        string       `gorm:"size:128"`
	Availability Availability `gorm:"type:varchar(16);index"`

	// 快照里的媒体槽位：抓取方最多带回前两张图的 URL，非空即认为上游已有成片。
	PhotoURL1 string `gorm:"size:512"`
	PhotoURL2 string `gorm:"size:512"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (Row) TableName() string { return "duc_scraper" }

// HasMedia 该行是否已带媒体。
func (r Row) HasMedia() bool {
	return r.PhotoURL1 != "" || r.PhotoURL2 != ""
}

// Snapshot 按规范化车牌索引的全量 feed 快照。
// 同一车牌出现多行时保留最新一行（抓取任务偶尔会重复写入）。
type Snapshot struct {
	rows map[string]Row
}

// NewSnapshot 从原始行构建快照。
func NewSnapshot(rows []Row) *Snapshot {
	m := make(map[string]Row, len(rows))
	for _, row := range rows {
		plate := stock.NormalizePlate(row.LicensePlate)
		if plate == "" {
			continue
		}
		if prev, ok := m[plate]; !ok || row.CreatedAt.After(prev.CreatedAt) {
			m[plate] = row
		}
	}
	return &Snapshot{rows: m}
}

// Contains 车牌是否出现在 feed 里。
func (s *Snapshot) Contains(plate string) bool {
	if s == nil {
		return false
	}
	_, ok := s.rows[stock.NormalizePlate(plate)]
	return ok
}

// HasMedia 车牌对应的快照行是否已有媒体。
func (s *Snapshot) HasMedia(plate string) bool {
	if s == nil {
		return false
	}
	row, ok := s.rows[stock.NormalizePlate(plate)]
	return ok && row.HasMedia()
}

// Availability 车牌在 feed 里的展示状态；不存在返回空串。
func (s *Snapshot) Availability(plate string) Availability {
	if s == nil {
		return ""
	}
	return s.rows[stock.NormalizePlate(plate)].Availability
}

// Len 快照里的车牌数。
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rows)
}
