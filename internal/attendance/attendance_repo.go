package attendance

import (
	"context"
	"database/sql"
	"time"

	"gorm.io/gorm"
)

//go:generate mockgen -source=attendance_repo.go -destination=mock/attendance_repo_mock.go -package=mock
type Repository interface {
	WithTx(tx *sql.Tx) Repository

	// Create inserts the day's entry. The (identity_id, day) unique index
	// makes it a conditional insert: the losing side of a concurrent race
	// fails with a unique violation instead of silently overwriting.
	Create(ctx context.Context, e *Entry) error

	FindByIdentityAndDay(ctx context.Context, identityID string, day time.Time) (*Entry, error)

	// Close sets time_out exactly once; it reports gorm.ErrRecordNotFound
	// when the entry is missing or already closed.
	Close(ctx context.Context, id string, timeOut time.Time) error

	SetPhotoURL(ctx context.Context, id string, transition Transition, url string) error

	FindAllByDay(ctx context.Context, day time.Time) ([]Entry, error)

	// FindPageByDay returns one page of the day's entries plus the total
	// row count for that day, with the limit and offset applied in SQL.
	FindPageByDay(ctx context.Context, day time.Time, limit, offset int) ([]Entry, int64, error)

	FindAllByIdentity(ctx context.Context, identityID string) ([]Entry, error)
}

type repository struct {
	db *gorm.DB
	tx *sql.Tx
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *sql.Tx) Repository {
	return &repository{db: r.db, tx: tx}
}

// conn binds gorm to the service-owned transaction when one is present, so
// the ledger write and the outbox insert commit or roll back together.
func (r *repository) conn(ctx context.Context) *gorm.DB {
	if r.tx == nil {
		return r.db.WithContext(ctx)
	}
	session := r.db.Session(&gorm.Session{Context: ctx})
	session.Statement.ConnPool = r.tx
	return session
}

func (r *repository) Create(ctx context.Context, e *Entry) error {
	return r.conn(ctx).Create(e).Error
}

func (r *repository) FindByIdentityAndDay(ctx context.Context, identityID string, day time.Time) (*Entry, error) {
	var e Entry
	err := r.conn(ctx).
		Where("identity_id = ?", identityID).
		Where("day = ?", day.Format("2006-01-02")).
		First(&e).Error
	return &e, err
}

func (r *repository) Close(ctx context.Context, id string, timeOut time.Time) error {
	res := r.conn(ctx).
		Model(&Entry{}).
		Where("id = ?", id).
		Where("time_out IS NULL").
		Update("time_out", timeOut)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) SetPhotoURL(ctx context.Context, id string, transition Transition, url string) error {
	column := "photo_in_url"
	if transition == TransitionLogout {
		column = "photo_out_url"
	}
	return r.conn(ctx).
		Model(&Entry{}).
		Where("id = ?", id).
		Update(column, url).Error
}

func (r *repository) FindAllByDay(ctx context.Context, day time.Time) ([]Entry, error) {
	var rows []Entry
	err := r.conn(ctx).
		Preload("Identity").
		Where("day = ?", day.Format("2006-01-02")).
		Order("time_in ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) FindPageByDay(ctx context.Context, day time.Time, limit, offset int) ([]Entry, int64, error) {
	dayKey := day.Format("2006-01-02")

	var total int64
	if err := r.conn(ctx).
		Model(&Entry{}).
		Where("day = ?", dayKey).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []Entry
	err := r.conn(ctx).
		Preload("Identity").
		Where("day = ?", dayKey).
		Order("time_in ASC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	return rows, total, err
}

func (r *repository) FindAllByIdentity(ctx context.Context, identityID string) ([]Entry, error) {
	var rows []Entry
	err := r.conn(ctx).
		Where("identity_id = ?", identityID).
		Order("day DESC").
		Find(&rows).Error
	return rows, err
}
