package chunk

import "time"

// ChunkDuration 每个分片固定时长
const ChunkDuration = 15 * time.Second

// VideoChunk 录屏分片，一行记录对应磁盘上的一个文件
type VideoChunk struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	FilePath   string    `gorm:"column:file_path;notNull;default:''" json:"file_path"`                   // 文件路径
	StartTime  time.Time `gorm:"column:start_time;notNull;index" json:"start_time"`                      // 开始时间
	EndTime    time.Time `gorm:"column:end_time;notNull" json:"end_time"`                                // 结束时间 = 开始时间 + 15s
	FrameCount int       `gorm:"column:frame_count;notNull;default:0" json:"frame_count"`                // 帧数
	FileSize   int64     `gorm:"column:file_size;notNull;default:0" json:"file_size"`                    // 文件大小(字节)
	CreatedAt  time.Time `gorm:"column:created_at;notNull;index;autoCreateTime:false" json:"created_at"` // 入库时间，保留策略以此为准
}

// TableName database table name
func (*VideoChunk) TableName() string {
	return "video_chunks"
}

// TimeRange 时间轴数据项
type TimeRange struct {
	ID      int64 `json:"id"`
	StartMs int64 `json:"start_ms"`
	EndMs   int64 `json:"end_ms"`
}

// EvictResult 一次清理的统计
type EvictResult struct {
	Deleted     int   `json:"deleted"`      // 删除的记录数
	FilesFailed int   `json:"files_failed"` // 删除失败的文件数，不影响记录删除
	FreedBytes  int64 `json:"freed_bytes"`
}

func (r *EvictResult) add(o EvictResult) {
	r.Deleted += o.Deleted
	r.FilesFailed += o.FilesFailed
	r.FreedBytes += o.FreedBytes
}
