package job

import "time"

// Status 任务状态
// Pending -> Processing -> Completed | Failed，Failed 可被外部重置为 Pending
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal 是否终态
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// AnalysisJob 分析任务，覆盖一段由连续分片组成的时间窗口
type AnalysisJob struct {
	ID           int64      `gorm:"primaryKey" json:"id"`
	StartTime    time.Time  `gorm:"column:start_time;notNull;uniqueIndex:idx_analysis_jobs_window" json:"start_time"` // 窗口开始
	EndTime      time.Time  `gorm:"column:end_time;notNull;uniqueIndex:idx_analysis_jobs_window" json:"end_time"`     // 窗口结束
	Status       Status     `gorm:"column:status;notNull;index;type:varchar(16)" json:"status"`                       // 状态
	ErrorMessage string     `gorm:"column:error_message;notNull;default:''" json:"error_message,omitempty"`           // 仅 Failed 时有值
	Attempts     int        `gorm:"column:attempts;notNull;default:0" json:"attempts"`                                // 进入 Processing 的次数
	CreatedAt    time.Time  `gorm:"column:created_at;notNull;index;autoCreateTime:false" json:"created_at"`           // 入队时间，按此先进先出
	CompletedAt  *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`                                // 进入终态的时间
}

// TableName database table name
func (*AnalysisJob) TableName() string {
	return "analysis_jobs"
}
