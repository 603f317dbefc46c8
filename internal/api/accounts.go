package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type createAccountRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	account, err := h.svc.CreateAccount(r.Context(), req.Username, req.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusCreated, account)
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	profile, err := h.svc.GetAccount(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, profile)
}

func (h *Handler) listFriends(w http.ResponseWriter, r *http.Request) {
	friends, err := h.svc.ListFriends(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, friends)
}
