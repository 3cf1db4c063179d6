package carddb

import (
	"github.com/gowvp/dayflow/internal/core/card"
	"gorm.io/gorm"
)

var _ card.Storer = DB{}

// DB Related business namespaces
type DB struct {
	db *gorm.DB
}

// NewDB instance object
func NewDB(db *gorm.DB) DB {
	return DB{db: db}
}

// Card Get business instance
func (d DB) Card() card.CardStorer {
	return NewCard(d.db)
}

// AutoMigrate sync database
func (d DB) AutoMigrate(ok bool) DB {
	if !ok {
		return d
	}
	if err := d.db.AutoMigrate(
		new(card.TimelineCard),
		new(card.CardJob),
	); err != nil {
		panic(err)
	}
	return d
}
