package auth

import (
	"context"

	"gorm.io/gorm"
)

//go:generate mockgen -source=auth_repo.go -destination=mock/auth_repo_mock.go -package=mock
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*AdminUser, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*AdminUser, error) {
	var user AdminUser
	err := r.db.WithContext(ctx).First(&user, "email = ?", email).Error
	return &user, err
}
