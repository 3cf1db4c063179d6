package card

import (
	"time"

	"github.com/gowvp/dayflow/internal/core/analysis"
)

// TimelineCard 时间轴卡片，一个分析完成的窗口对应一张
type TimelineCard struct {
	ID            int64             `gorm:"primaryKey" json:"id"`
	JobID         int64             `gorm:"column:job_id;notNull;uniqueIndex" json:"job_id"`                   // 产生该卡片的任务
	Date          string            `gorm:"column:date;notNull;index;type:varchar(10)" json:"date"`            // YYYY-MM-DD
	StartTime     time.Time         `gorm:"column:start_time;notNull;index" json:"start_time"`                 // 开始时间
	EndTime       time.Time         `gorm:"column:end_time;notNull" json:"end_time"`                           // 结束时间
	Title         string            `gorm:"column:title;notNull;default:''" json:"title"`                      // 标题
	Summary       string            `gorm:"column:summary;notNull;default:''" json:"summary"`                  // 摘要
	Category      analysis.Category `gorm:"column:category;notNull;type:varchar(32)" json:"category"`          // 分类
	IsDistraction bool              `gorm:"column:is_distraction;notNull;default:false" json:"is_distraction"` // 是否分心
	ThumbnailPath string            `gorm:"column:thumbnail_path;notNull;default:''" json:"thumbnail_path,omitempty"`
	CreatedAt     time.Time         `gorm:"column:created_at;notNull" json:"created_at"`
}

// TableName database table name
func (*TimelineCard) TableName() string {
	return "timeline_cards"
}

// CardJob 任务与卡片的对应关系
// 合并策略会把多个任务并入同一张卡片，每个任务都在此登记，保证同一任务只处理一次
type CardJob struct {
	JobID     int64     `gorm:"column:job_id;primaryKey;autoIncrement:false" json:"job_id"`
	CardID    int64     `gorm:"column:card_id;notNull;index" json:"card_id"`
	CreatedAt time.Time `gorm:"column:created_at;notNull" json:"created_at"`
}

// TableName database table name
func (*CardJob) TableName() string {
	return "timeline_card_jobs"
}
