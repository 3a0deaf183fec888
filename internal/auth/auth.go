// Package auth carries the caller's tenant, user and recipient identity as an
// explicit value, minted from and parsed into bearer JWTs.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Env is the identity every service call runs under.
type Env struct {
	CompanyID uint
	UserID    uint
	PartnerID uint
}

// System is the identity used by the sweep scheduler and inbound webhooks.
func System(companyID uint) Env {
	return Env{CompanyID: companyID}
}

type Claims struct {
	CompanyID uint `json:"company_id"`
	UserID    uint `json:"user_id"`
	PartnerID uint `json:"partner_id,omitempty"`
	jwt.RegisteredClaims
}

var ErrInvalidToken = errors.New("invalid token")

func IssueToken(secret string, env Env, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("JWT secret is not configured")
	}
	now := time.Now()
	claims := Claims{
		CompanyID: env.CompanyID,
		UserID:    env.UserID,
		PartnerID: env.PartnerID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Subject:   fmt.Sprintf("%d", env.UserID),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func ParseToken(secret, tokenString string) (Env, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return Env{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.CompanyID == 0 {
		return Env{}, ErrInvalidToken
	}
	return Env{CompanyID: claims.CompanyID, UserID: claims.UserID, PartnerID: claims.PartnerID}, nil
}
