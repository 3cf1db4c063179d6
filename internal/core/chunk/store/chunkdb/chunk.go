package chunkdb

import (
	"context"

	"github.com/gowvp/dayflow/internal/core/chunk"
	"github.com/ixugo/goddd/pkg/orm"
	"gorm.io/gorm"
)

var _ chunk.ChunkStorer = Chunk{}

// Chunk Related business namespaces
type Chunk struct {
	orm.Type[chunk.VideoChunk]
	db *gorm.DB
}

// NewChunk instance object
func NewChunk(db *gorm.DB) Chunk {
	return Chunk{Type: orm.NewType[chunk.VideoChunk](db), db: db}
}

// Count implements chunk.ChunkStorer.
func (d Chunk) Count(ctx context.Context, opts ...orm.QueryOption) (int64, error) {
	return orm.CountWithContext[chunk.VideoChunk](ctx, d.db, opts...)
}

// Session 在同一个事务中依次执行
func (d Chunk) Session(ctx context.Context, changeFns ...func(*gorm.DB) error) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, fn := range changeFns {
			if err := fn(tx); err != nil {
				return err
			}
		}
		return nil
	})
}
