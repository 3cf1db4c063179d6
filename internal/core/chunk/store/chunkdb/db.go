package chunkdb

import (
	"github.com/gowvp/dayflow/internal/core/chunk"
	"gorm.io/gorm"
)

var _ chunk.Storer = DB{}

// DB Related business namespaces
type DB struct {
	db *gorm.DB
}

// NewDB instance object
func NewDB(db *gorm.DB) DB {
	return DB{db: db}
}

// Chunk Get business instance
func (d DB) Chunk() chunk.ChunkStorer {
	return NewChunk(d.db)
}

// AutoMigrate sync database
func (d DB) AutoMigrate(ok bool) DB {
	if !ok {
		return d
	}
	if err := d.db.AutoMigrate(
		new(chunk.VideoChunk),
	); err != nil {
		panic(err)
	}
	return d
}
