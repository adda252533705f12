package identity

import (
	"context"
	"database/sql"
	"time"

	"gorm.io/gorm"
)

//go:generate mockgen -source=identity_repo.go -destination=mock/identity_repo_mock.go -package=mock
type Repository interface {
	WithTx(tx *sql.Tx) Repository

	CreateIdentity(ctx context.Context, id *Identity) error
	FindByID(ctx context.Context, id string) (*Identity, error)
	FindAll(ctx context.Context) ([]Identity, error)
	Deactivate(ctx context.Context, id string) error

	// ListActiveEnrolledBy returns active identities whose enrollment is at
	// or before cutoff. Used for absentee listing: an identity enrolled
	// after the target day is never absent for that day.
	ListActiveEnrolledBy(ctx context.Context, cutoff time.Time) ([]Identity, error)

	CreateFaceTemplate(ctx context.Context, t *FaceTemplate) error
	ListActiveFaceTemplates(ctx context.Context) ([]FaceTemplate, error)

	CreateCredential(ctx context.Context, c *Credential) error
	FindCredential(ctx context.Context, credentialID string) (*Credential, error)

	// AdvanceSignCount performs an atomic increment-and-compare of the
	// stored counter. It reports false when newCount does not advance past
	// the stored value, which the caller must treat as replay.
	AdvanceSignCount(ctx context.Context, id string, newCount int64) (bool, error)
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
// enrollment writes and their outbox inserts commit or roll back together.
func (r *repository) conn(ctx context.Context) *gorm.DB {
	if r.tx == nil {
		return r.db.WithContext(ctx)
	}
	session := r.db.Session(&gorm.Session{Context: ctx})
	session.Statement.ConnPool = r.tx
	return session
}

func (r *repository) CreateIdentity(ctx context.Context, id *Identity) error {
	return r.conn(ctx).Create(id).Error
}

func (r *repository) FindByID(ctx context.Context, id string) (*Identity, error) {
	var ident Identity
	err := r.conn(ctx).First(&ident, "id = ?", id).Error
	return &ident, err
}

func (r *repository) FindAll(ctx context.Context) ([]Identity, error) {
	var idents []Identity
	err := r.conn(ctx).
		Order("full_name ASC").
		Find(&idents).Error
	return idents, err
}

func (r *repository) Deactivate(ctx context.Context, id string) error {
	res := r.conn(ctx).
		Model(&Identity{}).
		Where("id = ?", id).
		Where("active = true").
		Update("active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) ListActiveEnrolledBy(ctx context.Context, cutoff time.Time) ([]Identity, error) {
	var idents []Identity
	err := r.conn(ctx).
		Where("active = true").
		Where("enrolled_at <= ?", cutoff).
		Order("full_name ASC").
		Find(&idents).Error
	return idents, err
}

func (r *repository) CreateFaceTemplate(ctx context.Context, t *FaceTemplate) error {
	return r.conn(ctx).Create(t).Error
}

func (r *repository) ListActiveFaceTemplates(ctx context.Context) ([]FaceTemplate, error) {
	var templates []FaceTemplate
	err := r.conn(ctx).
		Joins("JOIN identities ON identities.id = face_templates.identity_id").
		Where("identities.active = true").
		Where("identities.deleted_at IS NULL").
		Find(&templates).Error
	return templates, err
}

func (r *repository) CreateCredential(ctx context.Context, c *Credential) error {
	return r.conn(ctx).Create(c).Error
}

func (r *repository) FindCredential(ctx context.Context, credentialID string) (*Credential, error) {
	var cred Credential
	err := r.conn(ctx).
		First(&cred, "credential_id = ?", credentialID).Error
	return &cred, err
}

func (r *repository) AdvanceSignCount(ctx context.Context, id string, newCount int64) (bool, error) {
	// Single conditional UPDATE rather than read-modify-write so two
	// concurrent verifications cannot both pass the counter check.
	res := r.conn(ctx).Exec(`
		UPDATE credentials
		SET sign_count = ?, updated_at = now()
		WHERE id = ? AND sign_count < ?
	`, newCount, id, newCount)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
