package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type changedResponse struct {
	Changed bool `json:"changed"`
}

func (h *Handler) friendOp(w http.ResponseWriter, r *http.Request, other string, op func(ctx context.Context, a, b string) (bool, error)) {
	changed, err := op(r.Context(), chi.URLParam(r, "username"), chi.URLParam(r, other))
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, changedResponse{Changed: changed})
}

func (h *Handler) sendFriendRequest(w http.ResponseWriter, r *http.Request) {
	h.friendOp(w, r, "target", h.svc.Friends.Send)
}

func (h *Handler) withdrawFriendRequest(w http.ResponseWriter, r *http.Request) {
	h.friendOp(w, r, "target", h.svc.Friends.Withdraw)
}

func (h *Handler) acceptFriendRequest(w http.ResponseWriter, r *http.Request) {
	h.friendOp(w, r, "friend", h.svc.Friends.Accept)
}

func (h *Handler) rejectFriendRequest(w http.ResponseWriter, r *http.Request) {
	h.friendOp(w, r, "friend", h.svc.Friends.Reject)
}
