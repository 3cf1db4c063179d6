package api

import (
	"github.com/gin-gonic/gin"
	"github.com/gowvp/dayflow/internal/core/card"
	"github.com/ixugo/goddd/pkg/web"
)

// CardAPI 时间轴卡片接口
type CardAPI struct {
	core card.Core
}

func NewCardAPI(core card.Core) CardAPI {
	return CardAPI{core: core}
}

func registerCard(g gin.IRouter, api CardAPI, handler ...gin.HandlerFunc) {
	group := g.Group("/cards", handler...)
	group.GET("", web.WrapH(api.findCards))
	group.GET("/:id", web.WrapH(api.getCard))
}

// findCards 按日期或时间范围查询，?date=2024-01-01 或 ?start_ms=&end_ms=
func (a CardAPI) findCards(c *gin.Context, in *card.FindCardInput) (any, error) {
	items, total, err := a.core.FindCards(c.Request.Context(), in)
	return gin.H{"items": items, "total": total}, err
}

func (a CardAPI) getCard(c *gin.Context, _ *struct{}) (*card.TimelineCard, error) {
	id, err := parseID(c)
	if err != nil {
		return nil, err
	}
	return a.core.GetCard(c.Request.Context(), id)
}
