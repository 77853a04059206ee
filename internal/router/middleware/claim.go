package middleware

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TraderClaims carries the trader identity (a wallet address) as Subject.
type TraderClaims struct {
	Trader string `json:"trader"`
	jwt.RegisteredClaims
}

func NewTraderClaims(trader string, duration time.Duration) (*TraderClaims, error) {
	tokenID, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &TraderClaims{
		Trader: trader,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID.String(),
			Subject:   trader,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
		},
	}, nil
}
