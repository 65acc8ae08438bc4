package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenExpired is returned by ParseAccessToken for a well-formed,
// correctly signed token whose expiry has passed.
var ErrTokenExpired = errors.New("token expired")

// ErrTokenInvalid is returned for anything else: malformed tokens, wrong
// signing method, bad signature, missing claims.
var ErrTokenInvalid = errors.New("token invalid")

// AccessToken is a signed bearer token together with its expiry. Tokens are
// stateless: nothing is stored server-side, and validity is purely a
// function of signature and expiry at verification time.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// Claims are the identity assertions carried inside an access token.
type Claims struct {
	UserID    uint64
	Role      string
	ExpiresAt time.Time
}

// NewAccessToken builds and signs an HS256 JWT for a user with a fixed
// validity window of ttlMin minutes from issuance. Claims: subject (sub),
// role, expiration (exp) and issued-at (iat).
func NewAccessToken(secret string, userID uint64, role string, ttlMin int) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(time.Duration(ttlMin) * time.Minute)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	})
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies a bearer token and extracts its claims. The
// signature is checked before anything is read out of the payload; forged or
// malformed tokens come back as ErrTokenInvalid without claims, expired ones
// as ErrTokenExpired.
func ParseAccessToken(secret, raw string) (Claims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrTokenInvalid
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return Claims{}, ErrTokenInvalid
	}

	sub, ok := claims["sub"].(float64) // JSON numbers decode as float64
	if !ok {
		return Claims{}, ErrTokenInvalid
	}
	role, ok := claims["role"].(string)
	if !ok {
		return Claims{}, ErrTokenInvalid
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return Claims{}, ErrTokenInvalid
	}
	return Claims{UserID: uint64(sub), Role: role, ExpiresAt: exp.Time}, nil
}
