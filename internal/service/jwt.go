package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenPair is the session credential handed out after login.
type TokenPair struct {
	Access  string `json:"token"`
	Refresh string `json:"refresh"`
}

// TokenIssuer signs and parses HS256 session tokens.
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenIssuer(secret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

func (t *TokenIssuer) sign(userID int64, typ string, ttl time.Duration) (string, error) {
	now := t.now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"typ":     typ,
		"exp":     now.Add(ttl).Unix(),
		"iat":     now.Unix(),
		"nbf":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Issue returns a fresh access and refresh token for userID.
func (t *TokenIssuer) Issue(userID int64) (TokenPair, error) {
	access, err := t.sign(userID, tokenTypeAccess, t.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := t.sign(userID, tokenTypeRefresh, t.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

// ParseAccess returns the user id carried by a valid access token.
func (t *TokenIssuer) ParseAccess(tokenString string) (int64, error) {
	return t.parse(tokenString, tokenTypeAccess)
}

// ParseRefresh returns the user id carried by a valid refresh token.
func (t *TokenIssuer) ParseRefresh(tokenString string) (int64, error) {
	return t.parse(tokenString, tokenTypeRefresh)
}

func (t *TokenIssuer) parse(tokenString, typ string) (int64, error) {
	token, err := jwt.Parse(tokenString, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrInvalidToken
	}
	if got, _ := claims["typ"].(string); got != typ {
		return 0, ErrInvalidToken
	}

	userID, ok := claims["user_id"].(float64)
	if !ok {
		return 0, ErrInvalidToken
	}
	return int64(userID), nil
}
