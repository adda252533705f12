package attendance

import (
	"errors"
	"strings"

	attendanceerrors "go-bioattend/internal/attendance/errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// mapCreateError translates a failed conditional insert. A unique violation
// on (identity_id, day) is the losing side of a concurrent first-mark race
// and surfaces as AlreadyLoggedIn, never as a generic 500.
func mapCreateError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" && pgErr.ConstraintName == "uq_attendance_identity_day" {
			return attendanceerrors.ErrAlreadyLoggedIn
		}
	}

	errMsg := strings.ToLower(err.Error())
	if strings.Contains(errMsg, "duplicate key value") && strings.Contains(errMsg, "uq_attendance_identity_day") {
		return attendanceerrors.ErrAlreadyLoggedIn
	}

	return err
}
