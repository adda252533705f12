package identity

import (
	"errors"
	"strings"

	identityerrors "go-bioattend/internal/identity/errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return identityerrors.ErrIdentityNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" {
			switch pgErr.ConstraintName {
			case "uq_face_template_identity":
				return identityerrors.ErrFaceTemplateExists
			case "uq_credential_identity", "uq_credential_external_id":
				return identityerrors.ErrCredentialExists
			}
		}
	}

	errMsg := strings.ToLower(err.Error())
	if strings.Contains(errMsg, "duplicate key value") {
		if strings.Contains(errMsg, "uq_face_template_identity") {
			return identityerrors.ErrFaceTemplateExists
		}
		if strings.Contains(errMsg, "uq_credential") {
			return identityerrors.ErrCredentialExists
		}
	}

	return err
}
