package attendance

import (
	"time"

	"github.com/google/uuid"
)

const statusPresent = "PRESENT"

// CertainConfidence is recorded for credential-based entries: a verified
// signature is a certain identity, unlike a distance-derived face score.
const CertainConfidence = 1.0

// Entry is the single attendance record for one identity on one calendar
// day. Created on first login, mutated once to set TimeOut, then immutable.
type Entry struct {
	ID          uuid.UUID    `gorm:"column:id;type:uuid;primaryKey;default:gen_random_uuid()"`
	IdentityID  uuid.UUID    `gorm:"column:identity_id;type:uuid;not null;uniqueIndex:uq_attendance_identity_day"`
	Day         time.Time    `gorm:"column:day;type:date;not null;uniqueIndex:uq_attendance_identity_day"`
	TimeIn      time.Time    `gorm:"column:time_in;type:timestamptz;not null"`
	TimeOut     *time.Time   `gorm:"column:time_out;type:timestamptz"`
	Method      string       `gorm:"column:method;type:varchar(20);not null"`
	Confidence  float64      `gorm:"column:confidence;not null"`
	Status      string       `gorm:"column:status;type:varchar(20);not null;default:PRESENT"`
	Note        *string      `gorm:"column:note;type:text"`
	Location    *string      `gorm:"column:location;type:varchar(150)"`
	PhotoInURL  *string      `gorm:"column:photo_in_url;type:text"`
	PhotoOutURL *string      `gorm:"column:photo_out_url;type:text"`
	CreatedAt   time.Time    `gorm:"column:created_at"`
	UpdatedAt   time.Time    `gorm:"column:updated_at"`
	Identity    *IdentityRef `gorm:"foreignKey:IdentityID;references:ID"`
}

func (Entry) TableName() string {
	return "attendance_entries"
}

type IdentityRef struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	FullName string    `gorm:"column:full_name"`
	Phone    *string   `gorm:"column:phone"`
}

func (IdentityRef) TableName() string {
	return "identities"
}

// Duration returns the elapsed session time, zero while the session is open.
func Duration(e Entry) time.Duration {
	if e.TimeOut == nil {
		return 0
	}
	return e.TimeOut.Sub(e.TimeIn)
}
