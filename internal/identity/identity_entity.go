package identity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MethodFace and MethodCredential tag which biometric class produced an
// enrollment or an attendance mark.
const (
	MethodFace       = "FACE"
	MethodCredential = "CREDENTIAL"
)

// Identity is an enrolled person. Deactivation flips Active instead of
// deleting, so attendance history survives while the identity stops
// participating in matching.
type Identity struct {
	ID         uuid.UUID      `gorm:"column:id;type:uuid;primaryKey;default:gen_random_uuid()"`
	FullName   string         `gorm:"column:full_name;type:varchar(150);not null"`
	Phone      *string        `gorm:"column:phone;type:varchar(30)"`
	Active     bool           `gorm:"column:active;not null;default:true"`
	EnrolledAt time.Time      `gorm:"column:enrolled_at;type:timestamptz;not null"`
	CreatedAt  time.Time      `gorm:"column:created_at"`
	UpdatedAt  time.Time      `gorm:"column:updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (Identity) TableName() string {
	return "identities"
}

// FaceTemplate stores one face embedding per identity. The vector is kept as
// jsonb; Vector/SetVector convert to and from []float64.
type FaceTemplate struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey;default:gen_random_uuid()"`
	IdentityID uuid.UUID       `gorm:"column:identity_id;type:uuid;not null;uniqueIndex:uq_face_template_identity"`
	Embedding  json.RawMessage `gorm:"column:embedding;type:jsonb;not null"`
	CreatedAt  time.Time       `gorm:"column:created_at"`
}

func (FaceTemplate) TableName() string {
	return "face_templates"
}

func (t *FaceTemplate) Vector() ([]float64, error) {
	var v []float64
	if err := json.Unmarshal(t.Embedding, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func (t *FaceTemplate) SetVector(v []float64) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	t.Embedding = raw
	return nil
}

// Credential is a fingerprint-class authenticator bound to an identity.
// SignCount is non-decreasing across successful verifications; a counter
// that fails to advance indicates a cloned authenticator.
type Credential struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey;default:gen_random_uuid()"`
	IdentityID   uuid.UUID `gorm:"column:identity_id;type:uuid;not null;uniqueIndex:uq_credential_identity"`
	CredentialID string    `gorm:"column:credential_id;type:varchar(2048);not null;uniqueIndex:uq_credential_external_id"`
	PublicKey    []byte    `gorm:"column:public_key;type:bytea;not null"` // PKIX DER, P-256
	SignCount    int64     `gorm:"column:sign_count;not null;default:0"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (Credential) TableName() string {
	return "credentials"
}
