package auth

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AdminUser operates the enrollment and reporting surface. Attendance marks
// themselves come from kiosk devices and are authenticated biometrically,
// not by these accounts.
type AdminUser struct {
	ID           uuid.UUID      `gorm:"column:id;type:uuid;primaryKey;default:gen_random_uuid()"`
	Email        string         `gorm:"column:email;type:varchar(150);not null;uniqueIndex:uq_admin_user_email"`
	PasswordHash string         `gorm:"column:password_hash;type:varchar(100);not null"`
	Role         string         `gorm:"column:role;type:varchar(30);not null;default:OPERATOR"`
	Active       bool           `gorm:"column:active;not null;default:true"`
	CreatedAt    time.Time      `gorm:"column:created_at"`
	UpdatedAt    time.Time      `gorm:"column:updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (AdminUser) TableName() string {
	return "admin_users"
}
