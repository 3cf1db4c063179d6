package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gowvp/dayflow/internal/core/job"
	"github.com/ixugo/goddd/pkg/reason"
	"github.com/ixugo/goddd/pkg/web"
)

// JobAPI 分析任务接口
type JobAPI struct {
	scheduler *job.Scheduler
}

func NewJobAPI(scheduler *job.Scheduler) JobAPI {
	return JobAPI{scheduler: scheduler}
}

func registerJob(g gin.IRouter, api JobAPI, handler ...gin.HandlerFunc) {
	group := g.Group("/jobs", handler...)
	group.GET("", web.WrapH(api.findJobs))
	group.POST("", web.WrapH(api.enqueue))
	group.POST("/ready", web.WrapH(api.enqueueReady))
	group.GET("/stats", web.WrapH(api.stats))
	group.GET("/:id", web.WrapH(api.getJob))
	// 失败任务重新入队，是唯一的重试入口
	group.POST("/:id/retry", web.WrapH(api.retry))
}

func (a JobAPI) findJobs(c *gin.Context, in *job.FindJobInput) (any, error) {
	items, total, err := a.scheduler.FindJobs(c.Request.Context(), in)
	return gin.H{"items": items, "total": total}, err
}

func (a JobAPI) enqueue(c *gin.Context, in *job.EnqueueInput) (*job.EnqueueOutput, error) {
	return a.scheduler.EnqueueWindow(c.Request.Context(), in)
}

func (a JobAPI) enqueueReady(c *gin.Context, _ *struct{}) (gin.H, error) {
	n, err := a.scheduler.EnqueueReady(c.Request.Context())
	return gin.H{"created": n}, err
}

func (a JobAPI) stats(c *gin.Context, _ *struct{}) (map[job.Status]int64, error) {
	return a.scheduler.CountByStatus(c.Request.Context())
}

func (a JobAPI) getJob(c *gin.Context, _ *struct{}) (*job.AnalysisJob, error) {
	id, err := parseID(c)
	if err != nil {
		return nil, err
	}
	return a.scheduler.GetJob(c.Request.Context(), id)
}

func (a JobAPI) retry(c *gin.Context, _ *struct{}) (*job.AnalysisJob, error) {
	id, err := parseID(c)
	if err != nil {
		return nil, err
	}
	return a.scheduler.Reset(c.Request.Context(), id)
}

func parseID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, reason.ErrBadRequest.Withf("invalid id %q", c.Param("id"))
	}
	return id, nil
}
