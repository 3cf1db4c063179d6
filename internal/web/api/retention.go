package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gowvp/dayflow/internal/core/chunk"
	"github.com/ixugo/goddd/pkg/reason"
	"github.com/ixugo/goddd/pkg/web"
)

// RetentionAPI 手动触发清理与延时视频生成
type RetentionAPI struct {
	sweeper *chunk.Sweeper
	core    chunk.Core
}

func NewRetentionAPI(sweeper *chunk.Sweeper, core chunk.Core) RetentionAPI {
	return RetentionAPI{sweeper: sweeper, core: core}
}

func registerRetention(g gin.IRouter, api RetentionAPI, handler ...gin.HandlerFunc) {
	group := g.Group("", handler...)
	group.POST("/retention/sweep", web.WrapH(api.sweep))
	group.POST("/timelapses/:date", web.WrapH(api.buildTimelapse))
}

type sweepInput struct {
	// RetainHours 覆盖配置的保留时长，0 使用配置
	RetainHours int `form:"retain_hours" json:"retain_hours"`
}

func (a RetentionAPI) sweep(c *gin.Context, in *sweepInput) (chunk.SweepResult, error) {
	if in.RetainHours < 0 {
		return chunk.SweepResult{}, reason.ErrBadRequest.Withf("retain_hours must not be negative")
	}
	if in.RetainHours > 0 {
		return a.sweeper.Run(c.Request.Context(), time.Duration(in.RetainHours)*time.Hour)
	}
	return a.sweeper.RunOnce(c.Request.Context())
}

type buildTimelapseOutput struct {
	Path string `json:"path"`
}

// buildTimelapse 将某一天的分片拼接为延时视频，date 格式 YYYY-MM-DD
func (a RetentionAPI) buildTimelapse(c *gin.Context, _ *struct{}) (*buildTimelapseOutput, error) {
	date, err := time.ParseInLocation(time.DateOnly, c.Param("date"), time.Local)
	if err != nil {
		return nil, reason.ErrBadRequest.Withf("invalid date %q", c.Param("date"))
	}
	path, err := a.core.BuildTimelapse(c.Request.Context(), date)
	if err != nil {
		return nil, err
	}
	return &buildTimelapseOutput{Path: path}, nil
}
