package client

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenExpiry reads the exp claim without verifying the signature. The
// client only uses it to decide whether a round trip is worth making; the
// server remains the authority on validity.
func tokenExpiry(raw string) (time.Time, error) {
	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, err
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, errors.New("token has no expiry")
	}
	return exp.Time, nil
}

// tokenExpired reports whether the token's exp claim is in the past. A token
// that cannot be decoded counts as expired.
func tokenExpired(raw string, now time.Time) bool {
	exp, err := tokenExpiry(raw)
	if err != nil {
		return true
	}
	return !now.Before(exp)
}
