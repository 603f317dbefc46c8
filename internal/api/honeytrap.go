package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type createDecoyRequest struct {
	Purpose string `json:"purpose"`
}

func (h *Handler) createDecoy(w http.ResponseWriter, r *http.Request) {
	var req createDecoyRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	decoy, err := h.svc.CreateDecoy(r.Context(), req.Purpose)
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusCreated, map[string]any{
		"id":        decoy.Username,
		"honeytrap": decoy,
	})
}

func (h *Handler) listDecoys(w http.ResponseWriter, r *http.Request) {
	decoys, err := h.svc.ListDecoys(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, decoys)
}

func (h *Handler) getDecoy(w http.ResponseWriter, r *http.Request) {
	decoy, err := h.svc.Decoys.Get(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, decoy)
}

// listDetected serves the registry; ?fields=username returns names only.
func (h *Handler) listDetected(w http.ResponseWriter, r *http.Request) {
	usernamesOnly := r.URL.Query().Get("fields") == "username"
	records, err := h.svc.ListDetected(r.Context(), usernamesOnly)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !usernamesOnly {
		JSON(w, http.StatusOK, records)
		return
	}
	names := make([]string, len(records))
	for i, rec := range records {
		names[i] = rec.Username
	}
	JSON(w, http.StatusOK, names)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.GetStatistics(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, stats)
}

type logActionRequest struct {
	Username string `json:"username"`
	Action   string `json:"action"`
}

func (h *Handler) logAction(w http.ResponseWriter, r *http.Request) {
	var req logActionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.LogAction(r.Context(), req.Username, req.Action); err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusCreated, map[string]string{"status": "logged"})
}

func (h *Handler) analyze(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Detection.Sweep(r.Context())
	if err != nil && res == nil {
		writeError(w, r, err)
		return
	}
	// Partial failures still return what was recorded.
	JSON(w, http.StatusOK, res)
}

func (h *Handler) checkComment(w http.ResponseWriter, r *http.Request) {
	verdict, err := h.svc.Detection.CheckComment(r.Context(), chi.URLParam(r, "id"))
	if err != nil && verdict == nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, verdict)
}
