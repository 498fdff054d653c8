package http

import (
	"net/http"

	"github.com/rtbecker76/universal-electronics2/internal/cart"
	"github.com/rtbecker76/universal-electronics2/internal/session"
	"go.uber.org/zap"
)

type SessionHandler struct {
	revoker session.Revoker
	carts   *cart.Registry
	log     *zap.Logger
}

func NewSessionHandler(revoker session.Revoker, carts *cart.Registry, log *zap.Logger) *SessionHandler {
	return &SessionHandler{revoker: revoker, carts: carts, log: log}
}

// SignOut revokes the caller's token and discards their cart.
func (h *SessionHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	claims, ok := session.ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}
	if err := h.revoker.Revoke(r.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	h.carts.Drop(claims.Subject)
	h.log.Info("signed out", zap.String("user_id", claims.Subject))
	w.WriteHeader(http.StatusNoContent)
}
