package errors

import (
	"net/http"

	"go-bioattend/internal/shared/apperror"
)

var (
	ErrIdentityNotFound = apperror.New(
		apperror.CodeNotFound,
		"Identity not found",
		http.StatusNotFound,
	)

	ErrIdentityInactive = apperror.New(
		apperror.CodeInvalidState,
		"Identity is deactivated",
		http.StatusConflict,
	)

	ErrFaceTemplateExists = apperror.New(
		apperror.CodeConflict,
		"A face template is already enrolled for this identity",
		http.StatusConflict,
	)

	ErrCredentialExists = apperror.New(
		apperror.CodeConflict,
		"This credential is already registered",
		http.StatusConflict,
	)

	ErrInvalidCredentialID = apperror.New(
		apperror.CodeInvalidInput,
		"Credential id must decode to between 16 and 1024 bytes",
		http.StatusBadRequest,
	)

	ErrInvalidPublicKey = apperror.New(
		apperror.CodeInvalidInput,
		"Public key must be a base64-encoded P-256 key in PKIX DER form",
		http.StatusBadRequest,
	)

	ErrEmbeddingDimension = apperror.New(
		apperror.CodeDimensionMismatch,
		"The extracted embedding does not have the expected dimensionality",
		http.StatusBadRequest,
	)
)
