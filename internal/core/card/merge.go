package card

// MergeStrategy 决定新卡片是否并入相邻的上一张卡片
// prev 为同一天内结束时间不晚于新卡片开始时间的最近一张，没有时为 nil
// 返回 true 时 prev 已被修改，调用方负责保存
type MergeStrategy interface {
	Merge(prev, next *TimelineCard) bool
}

// MergeFunc 函数适配器
type MergeFunc func(prev, next *TimelineCard) bool

func (f MergeFunc) Merge(prev, next *TimelineCard) bool {
	return f(prev, next)
}

// AlwaysNew 从不合并
type AlwaysNew struct{}

func (AlwaysNew) Merge(_, _ *TimelineCard) bool {
	return false
}
