package errors

import (
	"net/http"

	"go-bioattend/internal/shared/apperror"
)

var (
	ErrNoMatch = apperror.New(
		apperror.CodeNoMatch,
		"No enrolled identity matched the sample, please try again",
		http.StatusNotFound,
	)

	ErrVerificationFailed = apperror.New(
		apperror.CodeVerificationFailed,
		"The biometric assertion could not be verified",
		http.StatusUnauthorized,
	)

	ErrReplayDetected = apperror.New(
		apperror.CodeReplayDetected,
		"Credential counter did not advance; the authenticator may be cloned",
		http.StatusUnauthorized,
	)

	ErrAlreadyLoggedIn = apperror.New(
		apperror.CodeAlreadyLoggedIn,
		"You are already logged in for today",
		http.StatusConflict,
	)

	ErrAlreadyCompleted = apperror.New(
		apperror.CodeAlreadyCompleted,
		"Attendance for today is already completed",
		http.StatusConflict,
	)

	ErrMustLoginFirst = apperror.New(
		apperror.CodeMustLoginFirst,
		"You must log in before logging out",
		http.StatusConflict,
	)

	ErrInvalidDay = apperror.New(
		apperror.CodeInvalidInput,
		"Day must be in YYYY-MM-DD format",
		http.StatusBadRequest,
	)

	ErrUnknownAction = apperror.New(
		apperror.CodeInvalidInput,
		"Action must be one of auto, login, logout",
		http.StatusBadRequest,
	)
)
