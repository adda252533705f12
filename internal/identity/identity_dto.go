package identity

type EnrollFaceRequest struct {
	FullName string  `json:"full_name" binding:"required"`
	Phone    *string `json:"phone"`
	Photo    string  `json:"photo" binding:"required"` // base64 image
}

type RegisterCredentialRequest struct {
	// IdentityID attaches the credential to an existing identity. When
	// empty, FullName is required and a new identity is enrolled.
	IdentityID   string  `json:"identity_id"`
	FullName     string  `json:"full_name"`
	Phone        *string `json:"phone"`
	CredentialID string  `json:"credential_id" binding:"required"` // base64url
	PublicKey    string  `json:"public_key" binding:"required"`    // base64 PKIX DER
}

type IdentityResponse struct {
	ID         string  `json:"id"`
	FullName   string  `json:"full_name"`
	Phone      *string `json:"phone,omitempty"`
	Active     bool    `json:"active"`
	EnrolledAt string  `json:"enrolled_at"`
}
