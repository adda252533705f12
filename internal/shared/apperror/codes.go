package apperror

const (
	// Client errors (4xx)
	CodeInvalidInput = "INVALID_INPUT"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeInvalidState = "INVALID_STATE"

	// Biometric resolution
	CodeDimensionMismatch  = "DIMENSION_MISMATCH"
	CodeNoMatch            = "NO_MATCH"
	CodeVerificationFailed = "VERIFICATION_FAILED"
	CodeReplayDetected     = "REPLAY_DETECTED"

	// Attendance session policy
	CodeAlreadyLoggedIn  = "ALREADY_LOGGED_IN"
	CodeAlreadyCompleted = "ALREADY_COMPLETED"
	CodeMustLoginFirst   = "MUST_LOGIN_FIRST"
	CodeDuplicateEntry   = "DUPLICATE_ENTRY"

	// Server errors (5xx)
	CodeInternalError      = "INTERNAL_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)
