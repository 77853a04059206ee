package router

import (
	"net/http"
	"time"

	"github.com/DangVuDev/vndc-exchange/internal/router/middleware"
)

type SessionRouter interface {
	Create(w http.ResponseWriter, r *http.Request)
}

type sessionRouterImpl struct {
	tokenMaker *middleware.JWTMaker
	ttl        time.Duration
}

func NewSessionRouter(tokenMaker *middleware.JWTMaker, ttl time.Duration) SessionRouter {
	return &sessionRouterImpl{tokenMaker: tokenMaker, ttl: ttl}
}

// Create hands out a bearer token for a self-declared trader name.
func (sr *sessionRouterImpl) Create(w http.ResponseWriter, r *http.Request) {
	type SessionRequest struct {
		Trader string `json:"trader" validate:"required,printascii,max=128"`
	}
	type SessionResponse struct {
		Token     string    `json:"token"`
		Trader    string    `json:"trader"`
		ExpiresAt time.Time `json:"expiresAt"`
	}

	req, err := decodeJSON[SessionRequest](w, r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	token, claims, err := sr.tokenMaker.CreateToken(req.Trader, sr.ttl)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, SessionResponse{
		Token:     token,
		Trader:    claims.Trader,
		ExpiresAt: claims.ExpiresAt.Time,
	})
}
