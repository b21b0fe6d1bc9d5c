// Package token signs and checks the HS256 bearer tokens used by the API
// under test. Claims follow the API's compact names: lid (local id), usr
// (username) and rol (role).
package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dskow/fixturegen/internal/apperror"
	"github.com/golang-jwt/jwt/v5"
)

// Roles accepted by the API.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Expiration is the fixed expiry of every generated token (2050-01-01 UTC).
// A constant expiry keeps tokens byte-identical across runs.
var Expiration = time.Date(2050, time.January, 1, 0, 0, 0, 0, time.UTC)

// Claims is the token payload. Field order is the serialized order.
type Claims struct {
	LocalID  string `json:"lid"`
	Username string `json:"usr"`
	Role     string `json:"rol"`
	jwt.RegisteredClaims
}

// NewClaims returns claims for the given identity with the fixed expiration.
func NewClaims(subjectID, username, role string) Claims {
	return Claims{
		LocalID:  subjectID,
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(Expiration),
		},
	}
}

// Validate is called by the jwt parser after the registered claims pass.
func (c Claims) Validate() error {
	switch {
	case c.LocalID == "":
		return &MissingClaimError{Claim: "lid"}
	case c.Username == "":
		return &MissingClaimError{Claim: "usr"}
	case c.Role == "":
		return &MissingClaimError{Claim: "rol"}
	case c.Role != RoleUser && c.Role != RoleAdmin:
		return fmt.Errorf("unknown role %q", c.Role)
	}
	return nil
}

// MissingClaimError indicates the token is well-signed but lacks a claim
// the API requires.
type MissingClaimError struct {
	Claim string
}

func (e *MissingClaimError) Error() string {
	return fmt.Sprintf("missing required claim: %s", e.Claim)
}

// GenerateToken signs an HS256 token for the identity. The output depends
// only on its arguments.
func GenerateToken(subjectID, username, role string, secret []byte) (string, error) {
	return sign(jwt.SigningMethodHS256, NewClaims(subjectID, username, role), secret)
}

func sign(method jwt.SigningMethod, claims Claims, key any) (string, error) {
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		return "", apperror.New(apperror.SigningFailure, "sign token for "+claims.Username, err)
	}
	return s, nil
}

// Verify parses tokenStr, checks its HS256 signature against secret and
// validates the claims. It is the same check the API performs on every
// authenticated request.
func Verify(tokenStr string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	return claims, nil
}

// IsMissingClaim reports whether err was caused by an absent claim.
func IsMissingClaim(err error) bool {
	var mc *MissingClaimError
	return errors.As(err, &mc)
}

// DecodePayload returns the payload of tokenStr without checking the
// signature. Only the first two segments are read, so tokens with an empty
// or extra trailing segment still decode.
func DecodePayload(tokenStr string) (map[string]any, error) {
	parts := strings.Split(tokenStr, ".")
	if len(parts) < 2 {
		return nil, fmt.Errorf("%w: expected header.payload[.signature]", jwt.ErrTokenMalformed)
	}

	raw, err := jwt.NewParser().DecodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	return payload, nil
}

// Extract returns the string claim named field without verifying the token.
func Extract(tokenStr, field string) (string, error) {
	payload, err := DecodePayload(tokenStr)
	if err != nil {
		return "", err
	}
	v, ok := payload[field].(string)
	if !ok {
		return "", fmt.Errorf("%s not found or is not a string", field)
	}
	return v, nil
}
