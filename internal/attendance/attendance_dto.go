package attendance

type MarkFaceRequest struct {
	Photo    string  `json:"photo" binding:"required"` // base64 image
	Action   string  `json:"action"`                   // auto | login | logout, default auto
	Note     *string `json:"note"`
	Location *string `json:"location"`
}

type MarkAssertionRequest struct {
	CredentialID      string  `json:"credential_id" binding:"required"`      // base64url
	AuthenticatorData string  `json:"authenticator_data" binding:"required"` // base64url
	ClientDataJSON    string  `json:"client_data_json" binding:"required"`   // base64url
	Signature         string  `json:"signature" binding:"required"`          // base64url
	Action            string  `json:"action"`
	Note              *string `json:"note"`
	Location          *string `json:"location"`
}

type ChallengeRequest struct {
	CredentialID string `json:"credential_id" binding:"required"`
}

type ChallengeResponse struct {
	Challenge string `json:"challenge"`
	ExpiresIn int    `json:"expires_in_seconds"`
}

type EntryResponse struct {
	ID           string  `json:"id"`
	IdentityID   string  `json:"identity_id"`
	IdentityName string  `json:"identity_name,omitempty"`
	Day          string  `json:"day"`
	TimeIn       string  `json:"time_in"`
	TimeOut      *string `json:"time_out,omitempty"`
	Method       string  `json:"method"`
	Confidence   float64 `json:"confidence"`
	Status       string  `json:"status"`
	Note         *string `json:"note,omitempty"`
	Location     *string `json:"location,omitempty"`
	Duration     string  `json:"duration,omitempty"`
}

type MarkResponse struct {
	Transition string        `json:"transition"` // logged_in | logged_out
	Entry      EntryResponse `json:"entry"`
}

type AbsenteeResponse struct {
	IdentityID string `json:"identity_id"`
	FullName   string `json:"full_name"`
	NotifyLink string `json:"notify_link,omitempty"`
}
