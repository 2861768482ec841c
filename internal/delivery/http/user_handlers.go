package http

import (
	"encoding/json"
	"net/http"

	"github.com/trellismart/backend/internal/apperr"
	"github.com/trellismart/backend/internal/service"
)

func (h *Handler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var in service.SignUpInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, apperr.Validationf("invalid request body"))
		return
	}

	user, err := h.users.SignUp(r.Context(), in)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"message": "User registered successfully",
		"user":    user,
	})
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, apperr.Validationf("invalid request body"))
		return
	}

	token, user, err := h.users.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  user,
	})
}
