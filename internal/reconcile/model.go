package reconcile

import "time"

// ChangeLog 是 reconcile_log 表的 GORM 模型：对账引擎每改动一个车牌记一行，
// 供事后追查"这台车为什么变成了 vendido"。
type ChangeLog struct {
	ID           string `gorm:"primaryKey;size:36"`
	RunID        string `gorm:"index;size:36;not null"`
	LicensePlate string `gorm:"index;size:32;not null"`
	Action       string `gorm:"size:64;not null"` // classified / marked_sold / flagged_review ...
	Detail       string `gorm:"size:255"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (ChangeLog) TableName() string { return "reconcile_log" }

// Summary 一次对账 run 的结果摘要。操作员看到的是这些计数，不是裸错误。
type Summary struct {
	RunID      string `json:"run_id"`
	Processed  int    `json:"processed"`  // 扫过的库存行数
	Mutated    int    `json:"mutated"`    // 发生写入的车牌数
	Classified int    `json:"classified"` // 新插入的分类行数
	Skipped    int    `json:"skipped"`    // 行级错误跳过数
	Flagged    int    `json:"flagged"`    // 新增待复核标记数
}
