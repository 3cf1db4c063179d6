package card

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gowvp/dayflow/internal/core/analysis"
	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/reason"
	"github.com/ixugo/goddd/pkg/web"
	"github.com/jinzhu/copier"
	"gorm.io/gorm"
)

// Build 根据分析结果生成卡片，同一任务只会生成一次
func (c Core) Build(ctx context.Context, jobID int64, res *analysis.Result) (*TimelineCard, error) {
	var out TimelineCard
	if err := c.store.Card().Session(ctx, c.BuildSession(jobID, res, &out)); err != nil {
		var e *reason.Error
		if errors.As(err, &e) {
			return nil, e
		}
		return nil, reason.ErrDB.Withf(`Build job[%d] err[%s]`, jobID, err.Error())
	}
	return &out, nil
}

// BuildSession 返回在外部事务中执行的建卡函数，供任务完成时与状态更新放在同一事务
func (c Core) BuildSession(jobID int64, res *analysis.Result, out *TimelineCard) func(*gorm.DB) error {
	return func(tx *gorm.DB) error {
		if res == nil {
			return reason.ErrBadRequest.Withf("job[%d] has no result", jobID)
		}
		if !res.Category.Valid() {
			return analysis.ErrValidation.Withf("job[%d] unknown category %q", jobID, res.Category)
		}

		// 同一任务重复调用时返回已有卡片，包括已被合并进其他卡片的任务
		var link CardJob
		err := tx.Where("job_id = ?", jobID).First(&link).Error
		if err == nil {
			return tx.Where("id = ?", link.CardID).First(out).Error
		}
		if !orm.IsErrRecordNotFound(err) {
			return err
		}

		var next TimelineCard
		if err := copier.Copy(&next, res); err != nil {
			return err
		}
		next.JobID = jobID
		next.StartTime = res.StartTime.UTC()
		next.EndTime = res.EndTime.UTC()
		next.Date = c.DateOf(res.StartTime)
		next.CreatedAt = c.now().UTC()

		prev, err := c.previous(tx, &next)
		if err != nil {
			return err
		}
		if prev != nil && c.merge.Merge(prev, &next) {
			if err := tx.Save(prev).Error; err != nil {
				return err
			}
			if err := tx.Create(&CardJob{JobID: jobID, CardID: prev.ID, CreatedAt: next.CreatedAt}).Error; err != nil {
				return err
			}
			*out = *prev
			slog.Info("timeline card merged", "card_id", prev.ID, "job_id", jobID)
			return nil
		}

		if err := tx.Create(&next).Error; err != nil {
			return err
		}
		if err := tx.Create(&CardJob{JobID: jobID, CardID: next.ID, CreatedAt: next.CreatedAt}).Error; err != nil {
			return err
		}
		*out = next
		slog.Info("timeline card created", "card_id", next.ID, "job_id", jobID, "date", next.Date, "category", next.Category)
		return nil
	}
}

// previous 同一天内紧挨在 next 之前的卡片
func (c Core) previous(tx *gorm.DB, next *TimelineCard) (*TimelineCard, error) {
	var prev TimelineCard
	err := tx.Where("date = ? AND end_time <= ?", next.Date, next.StartTime).
		Order("end_time DESC, id DESC").
		First(&prev).Error
	if orm.IsErrRecordNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &prev, nil
}

// FindCards 分页查询，按开始时间升序
func (c Core) FindCards(ctx context.Context, in *FindCardInput) ([]*TimelineCard, int64, error) {
	// 未指定 size 时每页 10 条
	if in.Size <= 0 {
		in.Size = 10
	}
	query := orm.NewQuery(3).OrderBy("start_time ASC, id ASC")
	switch {
	case in.Date != "":
		if _, err := time.Parse(dateLayout, in.Date); err != nil {
			return nil, 0, reason.ErrBadRequest.Withf("invalid date %q", in.Date)
		}
		query.Where("date = ?", in.Date)
	case in.StartMs > 0 && in.EndMs > 0:
		query.Where("start_time >= ? AND start_time <= ?", in.StartAt().UTC(), in.EndAt().UTC())
	}
	if in.Distraction {
		query.Where("is_distraction = ?", true)
	}

	items := make([]*TimelineCard, 0, in.Limit())
	total, err := c.store.Card().Find(ctx, &items, in, query.Encode()...)
	if err != nil {
		return nil, 0, reason.ErrDB.Withf(`Find in[%+v] err[%s]`, in, err.Error())
	}
	return items, total, nil
}

// CardsOfDay 某一天的全部卡片
func (c Core) CardsOfDay(ctx context.Context, date time.Time) ([]*TimelineCard, error) {
	items := make([]*TimelineCard, 0, 16)
	pager := web.PagerFilter{Page: 1, Size: 1000}
	_, err := c.store.Card().Find(ctx, &items, &pager, orm.Where("date = ?", c.DateOf(date)), orm.OrderBy("start_time ASC, id ASC"))
	if err != nil {
		return nil, reason.ErrDB.Withf(`CardsOfDay err[%s]`, err.Error())
	}
	return items, nil
}

// GetCard Query a single object
func (c Core) GetCard(ctx context.Context, id int64) (*TimelineCard, error) {
	var out TimelineCard
	if err := c.store.Card().Get(ctx, &out, orm.Where("id=?", id)); err != nil {
		if orm.IsErrRecordNotFound(err) {
			return nil, reason.ErrNotFound.Withf(`Get id[%v] err[%s]`, id, err.Error())
		}
		return nil, reason.ErrDB.Withf(`Get id[%v] err[%s]`, id, err.Error())
	}
	return &out, nil
}

// GetCardByJob 任务对应的卡片，任务被合并时返回合并后的卡片
func (c Core) GetCardByJob(ctx context.Context, jobID int64) (*TimelineCard, error) {
	var out TimelineCard
	err := c.store.Card().Session(ctx, func(tx *gorm.DB) error {
		var link CardJob
		if err := tx.Where("job_id = ?", jobID).First(&link).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", link.CardID).First(&out).Error
	})
	if err != nil {
		if orm.IsErrRecordNotFound(err) {
			return nil, reason.ErrNotFound.Withf(`job[%v] has no card`, jobID)
		}
		return nil, reason.ErrDB.Withf(`GetCardByJob err[%s]`, err.Error())
	}
	return &out, nil
}
