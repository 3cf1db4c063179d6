package card

import "github.com/ixugo/goddd/pkg/web"

// FindCardInput 按日期或时间范围查询，Date 优先
type FindCardInput struct {
	web.PagerFilter
	web.DateFilter
	Date string `form:"date"` // YYYY-MM-DD
	// Distraction 仅返回分心卡片
	Distraction bool `form:"distraction"`
}
