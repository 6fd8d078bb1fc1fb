package database

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CV 状态。保存后为 pending，worker 渲染完成后为 ready，最终失败为 failed。
const (
	StatusPending = "pending"
	StatusReady   = "ready"
	StatusFailed  = "failed"
)

// CV 表示一份已保存的简历。
// 对外只暴露 PublicID，自增主键仅在库内和任务载荷中使用。
type CV struct {
	gorm.Model
	PublicID string         `gorm:"uniqueIndex;size:36"`
	Title    string         `gorm:"size:255"`
	Content  datatypes.JSON `gorm:"type:jsonb"` // cv.Document 的 JSON，不含头像字节
	ImageKey string         `gorm:"size:512"`
	PdfKey   string         `gorm:"size:512"`
	Status   string         `gorm:"size:32;index"`
	// Revision 每次保存加一，渲染结果只写回同一修订。
	Revision uint `gorm:"not null;default:0"`
}
