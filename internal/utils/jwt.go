package utils // package utils provides helper functions for token creation and hashing

import (
	"time" // time utilities for generating expirations

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// AccessToken represents a signed JWT session token along with its expiry.
// The Token field contains the JWT string. Exp stores the expiration
// timestamp as a time.Time. Volunteers present the token in the
// Authorization header for every scan-station endpoint. Stations are
// shared hardware, so sessions are short-lived and volunteers re-enter
// their PIN rather than refreshing.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// NewAccessToken builds and signs an HS256 JWT for a volunteer session. It
// takes the signing secret, the volunteer record ID, the volunteer's role,
// and a TTL in minutes. The JWT includes standard claims: subject (sub),
// role, expiration (exp) and issued at (iat).
func NewAccessToken(secret, volunteerID, role string, ttlMin int) (AccessToken, error) {
	// Calculate the expiration time by adding the TTL to the current UTC time.
	exp := time.Now().UTC().Add(time.Duration(ttlMin) * time.Minute)
	// Construct the JWT claims. sub carries the volunteer record ID so
	// handlers can reload the volunteer on each request; role lets the
	// middleware gate admin-only routes without a lookup.
	claims := jwt.MapClaims{
		"sub":  volunteerID,
		"role": role,
		"exp":  exp.Unix(),
		"iat":  time.Now().UTC().Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}
