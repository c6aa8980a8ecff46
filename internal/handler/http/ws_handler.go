package http

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/bhavik262/pizza-delivery/internal/auth"
)

// Upgrader joins an authenticated websocket connection to its rooms.
type Upgrader interface {
	Serve(w http.ResponseWriter, r *http.Request, identity auth.Identity) error
}

type WSHandler struct {
	base
	authenticator Authenticator
	hub           Upgrader
}

func NewWSHandler(authenticator Authenticator, hub Upgrader, production bool) *WSHandler {
	return &WSHandler{base: newBase(production), authenticator: authenticator, hub: hub}
}

// ServeHTTP authenticates with the token query parameter, since browsers
// cannot set headers on websocket requests, falling back to the header.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = bearerToken(r)
	}
	identity, err := h.authenticator.Authenticate(r.Context(), token)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	if err := h.hub.Serve(w, r, identity); err != nil {
		log.Warn().Err(err).Stringer("user_id", identity.UserID).Msg("Websocket upgrade failed")
	}
}
