package chunk

import (
	"time"

	"github.com/ixugo/goddd/pkg/web"
)

// RecordChunkInput 采集端提交的已完成分片
type RecordChunkInput struct {
	Path       string `json:"path"`        // AllocateChunkPath 分配的路径
	StartMs    int64  `json:"start_ms"`    // 分片开始时间（毫秒时间戳）
	FrameCount int    `json:"frame_count"` // 帧数
}

func (in RecordChunkInput) StartAt() time.Time {
	return time.UnixMilli(in.StartMs)
}

// AllocateChunkInput 申请分片路径
type AllocateChunkInput struct {
	StartMs int64 `json:"start_ms"`
}

func (in AllocateChunkInput) StartAt() time.Time {
	return time.UnixMilli(in.StartMs)
}

type AllocateChunkOutput struct {
	Path string `json:"path"`
}

// FindChunkInput 按时间范围查询分片
type FindChunkInput struct {
	web.PagerFilter
	web.DateFilter
}
