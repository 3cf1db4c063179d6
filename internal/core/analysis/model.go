package analysis

import (
	"strings"
	"time"
)

// Category 时间轴卡片分类，封闭集合
type Category string

const (
	CategoryCoding        Category = "Coding"
	CategoryMeeting       Category = "Meeting"
	CategoryEmail         Category = "Email"
	CategoryResearch      Category = "Research"
	CategoryDocumentation Category = "Documentation"
	CategorySocialMedia   Category = "Social Media"
	CategoryEntertainment Category = "Entertainment"
	CategoryProductivity  Category = "Productivity"
	CategoryCommunication Category = "Communication"
	CategoryDesign        Category = "Design"
	CategoryOther         Category = "Other"
)

// Categories 全部分类，顺序即提示词中的顺序
var Categories = []Category{
	CategoryCoding,
	CategoryMeeting,
	CategoryEmail,
	CategoryResearch,
	CategoryDocumentation,
	CategorySocialMedia,
	CategoryEntertainment,
	CategoryProductivity,
	CategoryCommunication,
	CategoryDesign,
	CategoryOther,
}

// ParseCategory 不区分大小写的精确匹配
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	for _, c := range Categories {
		if strings.EqualFold(s, string(c)) {
			return c, true
		}
	}
	return "", false
}

// IsDistraction 属于该集合的分类直接视为分心，无需再询问模型
func (c Category) IsDistraction() bool {
	return c == CategorySocialMedia || c == CategoryEntertainment
}

func (c Category) Valid() bool {
	_, ok := ParseCategory(string(c))
	return ok
}

// Result 分析结果，两种后端的统一输出
type Result struct {
	Title         string    `json:"title"`
	Summary       string    `json:"summary"`
	Category      Category  `json:"category"`
	IsDistraction bool      `json:"is_distraction"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
}
