package card_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gowvp/dayflow/internal/core/analysis"
	"github.com/gowvp/dayflow/internal/core/card"
	"github.com/gowvp/dayflow/internal/core/card/store/carddb"
	"github.com/ixugo/goddd/pkg/reason"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newCore(t *testing.T, opts ...card.Option) card.Core {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "card.db")), &gorm.Config{})
	require.NoError(t, err)
	store := carddb.NewDB(db).AutoMigrate(true)
	return card.NewCore(store, append([]card.Option{card.WithLocation(time.UTC)}, opts...)...)
}

func result(start time.Time, category analysis.Category) *analysis.Result {
	return &analysis.Result{
		Title:     "Writing Go code",
		Summary:   "The user was writing Go code.",
		Category:  category,
		StartTime: start,
		EndTime:   start.Add(15 * time.Minute),
	}
}

func TestBuildCreatesCardOncePerJob(t *testing.T) {
	core := newCore(t)
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 23, 50, 0, 0, time.UTC)

	c1, err := core.Build(ctx, 1, result(start, analysis.CategoryCoding))
	require.NoError(t, err)
	require.NotZero(t, c1.ID)
	require.Equal(t, "2024-01-01", c1.Date)
	require.Equal(t, "Writing Go code", c1.Title)
	require.Equal(t, analysis.CategoryCoding, c1.Category)
	require.True(t, c1.EndTime.Equal(start.Add(15*time.Minute)))

	c2, err := core.Build(ctx, 1, result(start, analysis.CategoryCoding))
	require.NoError(t, err)
	require.Equal(t, c1.ID, c2.ID)

	items, err := core.CardsOfDay(ctx, start)
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestBuildRejectsUnknownCategory(t *testing.T) {
	_, err := newCore(t).Build(context.Background(), 1, result(time.Now(), "Gaming"))
	require.True(t, errors.Is(err, analysis.ErrValidation))
}

func TestBuildDefaultNeverMerges(t *testing.T) {
	core := newCore(t)
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	for i := range 3 {
		_, err := core.Build(ctx, int64(i+1), result(start.Add(time.Duration(i)*15*time.Minute), analysis.CategoryCoding))
		require.NoError(t, err)
	}
	items, total, err := core.FindCards(ctx, &card.FindCardInput{Date: "2024-01-01"})
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Len(t, items, 3)
	require.True(t, items[0].StartTime.Before(items[1].StartTime))
}

func TestBuildWithMergeStrategy(t *testing.T) {
	var seen *card.TimelineCard
	merge := card.MergeFunc(func(prev, next *card.TimelineCard) bool {
		seen = prev
		if prev.Category != next.Category {
			return false
		}
		prev.EndTime = next.EndTime
		return true
	})
	core := newCore(t, card.WithMergeStrategy(merge))
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	first, err := core.Build(ctx, 1, result(start, analysis.CategoryCoding))
	require.NoError(t, err)
	require.Nil(t, seen)

	merged, err := core.Build(ctx, 2, result(start.Add(15*time.Minute), analysis.CategoryCoding))
	require.NoError(t, err)
	require.NotNil(t, seen)
	require.Equal(t, first.ID, merged.ID)
	require.True(t, merged.EndTime.Equal(start.Add(30*time.Minute)))

	other, err := core.Build(ctx, 3, result(start.Add(30*time.Minute), analysis.CategoryMeeting))
	require.NoError(t, err)
	require.NotEqual(t, first.ID, other.ID)

	items, err := core.CardsOfDay(ctx, start)
	require.NoError(t, err)
	require.Len(t, items, 2)
}

func TestBuildMergedJobIsIdempotent(t *testing.T) {
	merges := 0
	merge := card.MergeFunc(func(prev, next *card.TimelineCard) bool {
		merges++
		prev.EndTime = next.EndTime
		return true
	})
	core := newCore(t, card.WithMergeStrategy(merge))
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	first, err := core.Build(ctx, 1, result(start, analysis.CategoryCoding))
	require.NoError(t, err)
	merged, err := core.Build(ctx, 2, result(start.Add(15*time.Minute), analysis.CategoryCoding))
	require.NoError(t, err)
	require.Equal(t, first.ID, merged.ID)
	require.Equal(t, 1, merges)

	// 重建已合并的任务，不再重复合并
	again, err := core.Build(ctx, 2, result(start.Add(15*time.Minute), analysis.CategoryCoding))
	require.NoError(t, err)
	require.Equal(t, first.ID, again.ID)
	require.Equal(t, 1, merges)
	require.True(t, again.EndTime.Equal(start.Add(30*time.Minute)))

	byJob, err := core.GetCardByJob(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, first.ID, byJob.ID)

	items, err := core.CardsOfDay(ctx, start)
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestFindCardsInvalidDate(t *testing.T) {
	_, _, err := newCore(t).FindCards(context.Background(), &card.FindCardInput{Date: "01/01/2024"})
	require.True(t, errors.Is(err, reason.ErrBadRequest))
}
