package api

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gowvp/dayflow/internal/core/chunk"
	"github.com/grafov/m3u8"
	"github.com/ixugo/goddd/pkg/reason"
	"github.com/ixugo/goddd/pkg/web"
)

// ChunkAPI 为 http 提供业务方法
type ChunkAPI struct {
	core chunk.Core
}

func NewChunkAPI(core chunk.Core) ChunkAPI {
	return ChunkAPI{core: core}
}

func registerChunk(g gin.IRouter, api ChunkAPI, handler ...gin.HandlerFunc) {
	group := g.Group("/chunks", handler...)
	group.GET("", web.WrapH(api.findChunks))
	group.POST("", web.WrapH(api.addChunk))
	group.POST("/allocate", web.WrapH(api.allocateChunk))
	group.GET("/latest", web.WrapH(api.latestChunk))
	group.GET("/timeline", web.WrapH(api.getTimeline))
	// HLS 播放列表（根据时间范围生成 m3u8）
	group.GET("/playlist.m3u8", api.playlist)
	group.GET("/:id", web.WrapH(api.getChunk))
}

// findChunks 分页查询分片
func (a ChunkAPI) findChunks(c *gin.Context, in *chunk.FindChunkInput) (any, error) {
	items, total, err := a.core.FindChunks(c.Request.Context(), in)
	return gin.H{"items": items, "total": total}, err
}

// addChunk 采集端写完分片后登记
func (a ChunkAPI) addChunk(c *gin.Context, in *chunk.RecordChunkInput) (*chunk.VideoChunk, error) {
	return a.core.AddChunk(c.Request.Context(), in)
}

// allocateChunk 采集端开始写分片前申请路径
func (a ChunkAPI) allocateChunk(_ *gin.Context, in *chunk.AllocateChunkInput) (*chunk.AllocateChunkOutput, error) {
	if in.StartMs <= 0 {
		return nil, reason.ErrBadRequest.Withf("start_ms is required")
	}
	path, err := a.core.AllocateChunkPath(in.StartAt())
	if err != nil {
		return nil, err
	}
	return &chunk.AllocateChunkOutput{Path: path}, nil
}

func (a ChunkAPI) latestChunk(c *gin.Context, _ *struct{}) (*chunk.VideoChunk, error) {
	out, err := a.core.LatestChunk(c.Request.Context())
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, reason.ErrNotFound.Withf("no chunks recorded")
	}
	return out, nil
}

// getTimeline 获取时间轴数据
func (a ChunkAPI) getTimeline(c *gin.Context, in *chunk.FindChunkInput) (any, error) {
	if in.StartMs <= 0 || in.EndMs <= 0 {
		return nil, reason.ErrBadRequest.Withf("start_ms and end_ms are required")
	}
	items, err := a.core.GetTimeline(c.Request.Context(), in.StartAt(), in.EndAt())
	return gin.H{"items": items}, err
}

func (a ChunkAPI) getChunk(c *gin.Context, _ *struct{}) (*chunk.VideoChunk, error) {
	id, err := parseID(c)
	if err != nil {
		return nil, err
	}
	return a.core.GetChunk(c.Request.Context(), id)
}

// playlist 生成 HLS m3u8 播放列表
// 路径: /chunks/playlist.m3u8?start_ms=xxx&end_ms=xxx
func (a ChunkAPI) playlist(c *gin.Context) {
	var in chunk.FindChunkInput
	if err := c.ShouldBindQuery(&in); err != nil || in.StartMs <= 0 || in.EndMs <= 0 {
		web.Fail(c, reason.ErrBadRequest.Withf("start_ms and end_ms are required"))
		return
	}
	chunks, err := a.core.QueryChunks(c.Request.Context(), in.StartAt(), in.EndAt())
	if err != nil {
		web.Fail(c, err)
		return
	}
	if len(chunks) == 0 {
		web.Fail(c, reason.ErrNotFound.Withf("no chunks found in time range"))
		return
	}

	content, err := a.generateM3U8(chunks)
	if err != nil {
		web.Fail(c, reason.ErrServer.Withf("generate playlist err[%s]", err.Error()))
		return
	}
	c.Header("Content-Type", "application/vnd.apple.mpegurl")
	c.Header("Cache-Control", "no-cache")
	c.String(http.StatusOK, content)
}

// generateM3U8 分片已按开始时间升序
// 每个分片都是独立的 mp4，时间戳从 0 开始，片段之间需要 DISCONTINUITY 让播放器重置解码器
func (a ChunkAPI) generateM3U8(chunks []*chunk.VideoChunk) (string, error) {
	pl, err := m3u8.NewMediaPlaylist(0, uint(len(chunks)))
	if err != nil {
		return "", err
	}
	pl.MediaType = m3u8.VOD
	pl.TargetDuration = chunk.ChunkDuration.Seconds()

	root := a.core.RecordingsDir()
	for i, ch := range chunks {
		rel, err := filepath.Rel(root, ch.FilePath)
		if err != nil || strings.HasPrefix(rel, "..") {
			rel = filepath.Base(ch.FilePath)
		}
		uri := fmt.Sprintf("/static/recordings/%s", filepath.ToSlash(rel))
		if err := pl.Append(uri, ch.EndTime.Sub(ch.StartTime).Seconds(), ""); err != nil {
			return "", err
		}
		if i > 0 {
			_ = pl.SetDiscontinuity()
		}
	}
	pl.Close()
	return pl.String(), nil
}
