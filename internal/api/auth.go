package api

import (
	"net/http"

	"example.com/smartroutine/internal/auth"
	"example.com/smartroutine/internal/domain"
	"example.com/smartroutine/internal/identity"
)

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	profile, err := h.identity.Register(r.Context(), identity.Registration{
		Email:    req.Email,
		Password: req.Password,
		Username: req.Username,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProfileView(*profile))
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	token, profile, err := h.identity.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSignInResponse(token, *profile))
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.ActorFromContext(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	profile, err := h.identity.Profile(r.Context(), actor.UserID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileView(*profile))
}

// authorize resolves the actor and checks that the token carries scope. It
// writes the error response itself and reports false on failure.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, scope string) (domain.Actor, bool) {
	actor, err := auth.ActorFromContext(r.Context())
	if err == nil {
		err = auth.Require(r.Context(), scope)
	}
	if err != nil {
		h.writeDomainError(w, r, err)
		return domain.Actor{}, false
	}
	return actor, true
}
