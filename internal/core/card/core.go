package card

import (
	"context"
	"time"

	"github.com/ixugo/goddd/pkg/orm"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

// Storer data persistence
type Storer interface {
	Card() CardStorer
}

// CardStorer Instantiation interface
type CardStorer interface {
	Find(context.Context, *[]*TimelineCard, orm.Pager, ...orm.QueryOption) (int64, error)
	Get(context.Context, *TimelineCard, ...orm.QueryOption) error
	Session(context.Context, ...func(*gorm.DB) error) error
}

// Core business domain
type Core struct {
	store Storer
	merge MergeStrategy
	now   func() time.Time
	loc   *time.Location
}

type Option func(*Core)

// WithMergeStrategy 替换合并策略，默认总是新建
func WithMergeStrategy(m MergeStrategy) Option {
	return func(c *Core) {
		if m != nil {
			c.merge = m
		}
	}
}

// WithClock 替换时钟
func WithClock(now func() time.Time) Option {
	return func(c *Core) {
		c.now = now
	}
}

// WithLocation 卡片日期使用的时区
func WithLocation(loc *time.Location) Option {
	return func(c *Core) {
		c.loc = loc
	}
}

// NewCore create business domain
func NewCore(store Storer, opts ...Option) Core {
	c := Core{
		store: store,
		merge: AlwaysNew{},
		now:   time.Now,
		loc:   time.Local,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// DateOf 卡片所属日期
func (c Core) DateOf(t time.Time) string {
	return t.In(c.loc).Format(dateLayout)
}
