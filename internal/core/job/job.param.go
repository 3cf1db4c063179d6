package job

import (
	"time"

	"github.com/ixugo/goddd/pkg/web"
)

// EnqueueInput 以毫秒时间戳描述的窗口
type EnqueueInput struct {
	StartMs int64 `json:"start_ms"`
	EndMs   int64 `json:"end_ms"`
}

func (in EnqueueInput) StartAt() time.Time {
	return time.UnixMilli(in.StartMs)
}

func (in EnqueueInput) EndAt() time.Time {
	return time.UnixMilli(in.EndMs)
}

// EnqueueOutput Created 为 false 表示窗口已有任务
// 已有任务失败时 Retryable 为 true，需调用 Reset 重新排队
type EnqueueOutput struct {
	Job       *AnalysisJob `json:"job"`
	Created   bool         `json:"created"`
	Retryable bool         `json:"retryable"`
}

// FindJobInput 按状态分页查询
type FindJobInput struct {
	web.PagerFilter
	Status Status `form:"status"`
}
