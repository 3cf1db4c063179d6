package jobdb

import (
	"github.com/gowvp/dayflow/internal/core/job"
	"gorm.io/gorm"
)

var _ job.Storer = DB{}

// DB Related business namespaces
type DB struct {
	db *gorm.DB
}

// NewDB instance object
func NewDB(db *gorm.DB) DB {
	return DB{db: db}
}

// Job Get business instance
func (d DB) Job() job.JobStorer {
	return NewJob(d.db)
}

// AutoMigrate sync database
func (d DB) AutoMigrate(ok bool) DB {
	if !ok {
		return d
	}
	if err := d.db.AutoMigrate(
		new(job.AnalysisJob),
	); err != nil {
		panic(err)
	}
	return d
}
