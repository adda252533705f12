package attendance

import (
	"testing"
	"time"

	attendanceerrors "go-bioattend/internal/attendance/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func openEntry(timeIn time.Time) *Entry {
	return &Entry{
		ID:         uuid.New(),
		IdentityID: uuid.New(),
		TimeIn:     timeIn,
	}
}

func closedEntry(timeIn, timeOut time.Time) *Entry {
	e := openEntry(timeIn)
	e.TimeOut = &timeOut
	return e
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction("")
	assert.NoError(t, err)
	assert.Equal(t, ActionAuto, a)

	for _, s := range []string{"auto", "login", "logout"} {
		a, err := ParseAction(s)
		assert.NoError(t, err)
		assert.Equal(t, Action(s), a)
	}

	_, err = ParseAction("clock-in")
	assert.ErrorIs(t, err, attendanceerrors.ErrUnknownAction)
}

func TestResolve_StateTable(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	in := now.Add(-3 * time.Hour)
	out := now.Add(-1 * time.Hour)

	tests := []struct {
		name       string
		existing   *Entry
		action     Action
		transition Transition
		err        error
	}{
		{"auto with no entry logs in", nil, ActionAuto, TransitionLogin, nil},
		{"auto with open entry logs out", openEntry(in), ActionAuto, TransitionLogout, nil},
		{"auto with closed entry is terminal", closedEntry(in, out), ActionAuto, "", attendanceerrors.ErrAlreadyCompleted},

		{"login with no entry logs in", nil, ActionLogin, TransitionLogin, nil},
		{"login with open entry conflicts", openEntry(in), ActionLogin, "", attendanceerrors.ErrAlreadyLoggedIn},
		{"login with closed entry is terminal", closedEntry(in, out), ActionLogin, "", attendanceerrors.ErrAlreadyCompleted},

		{"logout with no entry needs login", nil, ActionLogout, "", attendanceerrors.ErrMustLoginFirst},
		{"logout with open entry logs out", openEntry(in), ActionLogout, TransitionLogout, nil},
		{"logout with closed entry is terminal", closedEntry(in, out), ActionLogout, "", attendanceerrors.ErrAlreadyCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := Resolve(tt.existing, tt.action, now)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.transition, tr)
		})
	}
}

func TestResolve_UnknownAction(t *testing.T) {
	_, err := Resolve(nil, Action("toggle"), time.Now())
	assert.ErrorIs(t, err, attendanceerrors.ErrUnknownAction)
}

func TestDayOf(t *testing.T) {
	jakarta, err := time.LoadLocation("Asia/Jakarta")
	assert.NoError(t, err)

	// 23:30 UTC on the 9th is already the 10th in UTC+7.
	late := time.Date(2025, 3, 9, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), DayOf(late, jakarta))
	assert.Equal(t, time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC), DayOf(late, time.UTC))

	// every instant of the same local day truncates to the same key
	morning := time.Date(2025, 3, 10, 1, 0, 0, 0, jakarta)
	evening := time.Date(2025, 3, 10, 23, 59, 59, 0, jakarta)
	assert.Equal(t, DayOf(morning, jakarta), DayOf(evening, jakarta))
}

func TestDuration(t *testing.T) {
	in := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	out := time.Date(2025, 3, 10, 17, 30, 0, 0, time.UTC)

	assert.Equal(t, time.Duration(0), Duration(*openEntry(in)))
	assert.Equal(t, 8*time.Hour+30*time.Minute, Duration(*closedEntry(in, out)))
}
