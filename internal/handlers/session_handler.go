package handlers

import (
	"errors"
	"net/http"
	"time"

	mW "github.com/ruralpay/escrow/internal/middleware"
	"github.com/ruralpay/escrow/internal/services"
)

const defaultTokenTTL = 24 * time.Hour

// SessionHandler issues and revokes bearer tokens. Account keys live on
// chain, so tokens are minted by the operator for clients it has verified.
type SessionHandler struct {
	engine    *services.Engine
	auth      *mW.Authenticator
	validator *services.ValidationHelper
}

func NewSessionHandler(engine *services.Engine, auth *mW.Authenticator) *SessionHandler {
	return &SessionHandler{
		engine:    engine,
		auth:      auth,
		validator: services.NewValidationHelper(),
	}
}

// IssueToken mints a token for an account
// @Summary Issue token
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{account=string,ttl_hours=int} true "Token request"
// @Router /admin/tokens [post]
func (h *SessionHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	operator, ok := caller(w, r)
	if !ok {
		return
	}
	if !h.engine.IsOperator(operator) {
		SendErrorResponse(w, "Tokens are issued by the operator only", http.StatusForbidden, nil)
		return
	}
	var req struct {
		Account  string `json:"account" validate:"required,account"`
		TTLHours int    `json:"ttl_hours" validate:"omitempty,min=1,max=720"`
	}
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	ttl := defaultTokenTTL
	if req.TTLHours > 0 {
		ttl = time.Duration(req.TTLHours) * time.Hour
	}
	token, err := h.auth.IssueToken(req.Account, ttl)
	if err != nil {
		sendError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"token":      token,
		"account":    req.Account,
		"expires_at": time.Now().Add(ttl).UTC(),
	})
}

// Logout revokes the token of the current request
// @Summary Logout
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Router /sessions/logout [post]
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Revoke(r.Context()); err != nil {
		if errors.Is(err, mW.ErrRevocationDisabled) {
			SendErrorResponse(w, "Logout is not available", http.StatusNotImplemented, nil)
			return
		}
		SendErrorResponse(w, "Failed to revoke token", http.StatusServiceUnavailable, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}
