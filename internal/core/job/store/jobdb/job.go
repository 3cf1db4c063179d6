package jobdb

import (
	"context"

	"github.com/gowvp/dayflow/internal/core/job"
	"github.com/ixugo/goddd/pkg/orm"
	"gorm.io/gorm"
)

var _ job.JobStorer = Job{}

// Job Related business namespaces
type Job struct {
	orm.Type[job.AnalysisJob]
	db *gorm.DB
}

// NewJob instance object
func NewJob(db *gorm.DB) Job {
	return Job{Type: orm.NewType[job.AnalysisJob](db), db: db}
}

// Count implements job.JobStorer.
func (d Job) Count(ctx context.Context, opts ...orm.QueryOption) (int64, error) {
	return orm.CountWithContext[job.AnalysisJob](ctx, d.db, opts...)
}

// Session 在同一个事务中依次执行
func (d Job) Session(ctx context.Context, changeFns ...func(*gorm.DB) error) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, fn := range changeFns {
			if err := fn(tx); err != nil {
				return err
			}
		}
		return nil
	})
}
