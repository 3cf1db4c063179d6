package carddb

import (
	"context"

	"github.com/gowvp/dayflow/internal/core/card"
	"github.com/ixugo/goddd/pkg/orm"
	"gorm.io/gorm"
)

var _ card.CardStorer = Card{}

// Card Related business namespaces
type Card struct {
	orm.Type[card.TimelineCard]
	db *gorm.DB
}

// NewCard instance object
func NewCard(db *gorm.DB) Card {
	return Card{Type: orm.NewType[card.TimelineCard](db), db: db}
}

// Session 在同一个事务中依次执行
func (d Card) Session(ctx context.Context, changeFns ...func(*gorm.DB) error) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, fn := range changeFns {
			if err := fn(tx); err != nil {
				return err
			}
		}
		return nil
	})
}
