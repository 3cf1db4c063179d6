package carddb

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gowvp/dayflow/internal/core/card"
	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/web"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func generateMockDB() (*gorm.DB, sqlmock.Sqlmock, error) {
	db, mock, err := sqlmock.New()
	if err != nil {
		return nil, nil, err
	}
	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	return gdb, mock, err
}

func TestCardFindByDate(t *testing.T) {
	db, mock, err := generateMockDB()
	if err != nil {
		t.Fatal(err)
	}
	store := NewCard(db)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "timeline_cards" WHERE date = \$1`).
		WithArgs("2024-01-01").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	rows := sqlmock.NewRows([]string{"id", "job_id", "date", "title", "category"}).
		AddRow(1, 3, "2024-01-01", "Writing Go code", "Coding").
		AddRow(2, 4, "2024-01-01", "Watching videos", "Entertainment")
	mock.ExpectQuery(`SELECT \* FROM "timeline_cards" WHERE date = \$1 ORDER BY start_time ASC LIMIT \$2`).
		WithArgs("2024-01-01", 10).WillReturnRows(rows)

	var out []*card.TimelineCard
	pager := web.PagerFilter{Page: 1, Size: 10}
	total, err := store.Find(context.Background(), &out, &pager, orm.Where("date = ?", "2024-01-01"), orm.OrderBy("start_time ASC"))
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || out[1].Category != "Entertainment" {
		t.Fatalf("unexpected result total[%d] %+v", total, out)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
