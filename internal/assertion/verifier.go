package assertion

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
)

const (
	// ExpectedType is the client-data type tag for an authentication assertion.
	ExpectedType = "webauthn.get"

	challengeBytes = 32

	minCredentialIDBytes = 16
	maxCredentialIDBytes = 1024

	// authDataMinLen covers rpIdHash(32) + flags(1) + signCount(4).
	authDataMinLen = 37

	counterOffset = 33
)

// Assertion is the decoded challenge-response payload supplied by the client.
// All byte fields arrive base64url-encoded on the wire and are decoded by the
// transport layer before reaching Verify.
type Assertion struct {
	CredentialID      string
	AuthenticatorData []byte
	ClientDataJSON    []byte
	Signature         []byte
}

// clientData is the subset of the client-data payload the verifier inspects.
type clientData struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	Origin    string `json:"origin"`
}

// Verify checks a signed assertion against the stored public key. The signed
// byte string is authenticatorData || SHA-256(clientDataJSON), signed with
// ECDSA over P-256 and a SHA-256 digest. When expectedChallenge is non-empty
// it must equal the challenge embedded in the client data exactly.
//
// Verification failure is a normal outcome: every decoding, parsing, or
// cryptographic failure returns false, never an error or panic.
func Verify(a Assertion, storedPublicKey []byte, expectedChallenge string) bool {
	if len(a.AuthenticatorData) < authDataMinLen || len(a.ClientDataJSON) == 0 || len(a.Signature) == 0 {
		return false
	}

	var cd clientData
	if err := json.Unmarshal(a.ClientDataJSON, &cd); err != nil {
		return false
	}
	if cd.Type != ExpectedType {
		return false
	}
	if expectedChallenge != "" && cd.Challenge != expectedChallenge {
		return false
	}

	pub, err := parsePublicKey(storedPublicKey)
	if err != nil {
		return false
	}

	clientDataHash := sha256.Sum256(a.ClientDataJSON)
	signed := make([]byte, 0, len(a.AuthenticatorData)+len(clientDataHash))
	signed = append(signed, a.AuthenticatorData...)
	signed = append(signed, clientDataHash[:]...)

	digest := sha256.Sum256(signed)
	return ecdsa.VerifyASN1(pub, digest[:], a.Signature)
}

// Counter extracts the big-endian signature counter embedded in the
// authenticator data. The counter sits inside the signed byte string, so a
// client cannot claim a counter value the authenticator did not sign.
func Counter(authData []byte) (uint32, bool) {
	if len(authData) < authDataMinLen {
		return 0, false
	}
	return binary.BigEndian.Uint32(authData[counterOffset : counterOffset+4]), true
}

func parsePublicKey(der []byte) (*ecdsa.PublicKey, error) {
	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, err
	}
	pub, ok := key.(*ecdsa.PublicKey)
	if !ok || pub.Curve != elliptic.P256() {
		return nil, x509.ErrUnsupportedAlgorithm
	}
	return pub, nil
}

// IsValidPublicKey reports whether der parses as an ECDSA P-256 public key
// in PKIX form. Used at registration time so malformed or off-curve keys
// are rejected before they can poison later verifications.
func IsValidPublicKey(der []byte) bool {
	_, err := parsePublicKey(der)
	return err == nil
}

// GenerateChallenge returns a fresh 32-byte random challenge, base64url
// encoded without padding. Each challenge is single-use.
func GenerateChallenge() (string, error) {
	buf := make([]byte, challengeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// IsValidCredentialID reports whether the base64url-encoded credential id
// decodes to between 16 and 1024 bytes.
func IsValidCredentialID(id string) bool {
	raw, err := base64.RawURLEncoding.DecodeString(id)
	if err != nil {
		return false
	}
	return len(raw) >= minCredentialIDBytes && len(raw) <= maxCredentialIDBytes
}
