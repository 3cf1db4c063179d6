package api

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gowvp/dayflow/internal/core/job"
	"github.com/ixugo/goddd/pkg/web"
)

// headerRequestID 请求标识，客户端未携带时由服务端生成
const headerRequestID = "X-Request-ID"

func setupRouter(r *gin.Engine, uc *Usecase) {
	r.Use(
		requestID(),
		// 格式化输出到控制台，然后记录到日志
		gin.CustomRecovery(func(c *gin.Context, err any) {
			slog.ErrorContext(c.Request.Context(), "panic", "err", err, "stack", string(debug.Stack()))
			c.AbortWithStatus(http.StatusInternalServerError)
		}),
		web.Logger(
			web.IgnoreMethod(http.MethodOptions),
			web.IgnorePrefix("/static/recordings"),
			web.IgnorePrefix("/health"),
		),
	)
	if uc.Conf.Server.HTTP.AllowCORS {
		r.Use(cors.New(cors.Config{
			AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "HEAD", "OPTIONS"},
			AllowHeaders: []string{
				"Accept", "Content-Length", "Content-Type", "Range", "Origin",
				"Authorization", "Cache-Control", "X-Requested-With", headerRequestID,
			},
			ExposeHeaders: []string{headerRequestID},
			MaxAge:        12 * time.Hour,
			AllowOriginFunc: func(_ string) bool {
				return true
			},
		}))
	}
	r.NoRoute(func(c *gin.Context) {
		c.JSON(404, gin.H{"msg": "来到了无人的荒漠"})
	})

	r.GET("/health", web.WrapH(uc.getHealth))

	// json 接口压缩，视频文件与播放列表不压缩
	api := r.Group("", gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/static/", "/chunks/playlist.m3u8"})))
	registerChunk(api, uc.ChunkAPI)
	registerJob(api, uc.JobAPI)
	registerCard(api, uc.CardAPI)
	registerRetention(api, uc.RetentionAPI)

	// 静态文件服务，支持 Range 请求，供播放列表引用
	r.Static("/static/recordings", uc.ChunkAPI.core.RecordingsDir())
	r.Static("/static/timelapses", uc.ChunkAPI.core.TimelapsesDir())
}

type getHealthOutput struct {
	Version   string               `json:"version"`
	StartAt   time.Time            `json:"start_at"`
	Provider  string               `json:"provider"`
	DiskUsage float64              `json:"disk_usage"` // 存储目录所在磁盘使用率(百分比)
	Jobs      map[job.Status]int64 `json:"jobs"`
}

func (uc *Usecase) getHealth(c *gin.Context, _ *struct{}) (getHealthOutput, error) {
	out := getHealthOutput{
		Version:  uc.Conf.BuildVersion,
		StartAt:  startRuntime,
		Provider: uc.Conf.Analysis.Provider,
	}
	if usage, err := uc.ChunkAPI.core.DiskUsage(); err == nil {
		out.DiskUsage = usage
	}
	jobs, err := uc.JobAPI.scheduler.CountByStatus(c.Request.Context())
	if err != nil {
		return out, err
	}
	out.Jobs = jobs
	return out, nil
}

// requestID 透传或生成请求标识并写回响应头
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(headerRequestID, id)
		c.Set("request_id", id)
		c.Next()
	}
}
