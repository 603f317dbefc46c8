package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/raphaelgruber/honeytrap/internal/models"
)

func pair(r *http.Request) (initiator, counterpart string) {
	return chi.URLParam(r, "initiator"), chi.URLParam(r, "counterpart")
}

func (h *Handler) startProbe(w http.ResponseWriter, r *http.Request) {
	initiator, counterpart := pair(r)
	session, err := h.svc.StartProbe(r.Context(), initiator, counterpart)
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, session)
}

func (h *Handler) probeResult(w http.ResponseWriter, r *http.Request) {
	initiator, counterpart := pair(r)
	session, err := h.svc.GetProbeResult(r.Context(), initiator, counterpart)
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, session)
}

type feedRequest struct {
	Message string `json:"message"`
}

func (h *Handler) feedProbe(w http.ResponseWriter, r *http.Request) {
	var req feedRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	initiator, counterpart := pair(r)
	res, err := h.svc.FeedProbeMessage(r.Context(), initiator, counterpart, req.Message)
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, res)
}

// Probe socket message types.
const (
	msgSession = "session"
	msgReply   = "reply"
	msgResult  = "result"
	msgError   = "error"
)

// socketMessage is the frame exchanged on the probe WebSocket. The client
// only sends Message; the server fills the rest.
type socketMessage struct {
	Type    string                      `json:"type,omitempty"`
	Message string                      `json:"message,omitempty"`
	Result  string                      `json:"result,omitempty"`
	Error   string                      `json:"error,omitempty"`
	Session *models.ConversationSession `json:"session,omitempty"`
}

const socketWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local dev
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// probeSocket runs a live probe: every message the counterpart sends is fed
// to the probe and answered with the decoy's reply. Once classified, the
// result is pushed and the socket is closed.
func (h *Handler) probeSocket(w http.ResponseWriter, r *http.Request) {
	initiator, counterpart := pair(r)

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	session, err := h.svc.StartProbe(ctx, initiator, counterpart)
	if err != nil {
		_ = writeFrame(ws, socketMessage{Type: msgError, Error: err.Error()})
		return
	}
	slog.Info("probe socket opened", "initiator", initiator, "counterpart", counterpart)

	if err := writeFrame(ws, socketMessage{Type: msgSession, Message: session.Opening, Session: session}); err != nil {
		return
	}
	if session.Done() {
		_ = writeFrame(ws, resultFrame(session))
		closeSocket(ws)
		return
	}

	for {
		var in socketMessage
		if err := ws.ReadJSON(&in); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("probe socket read ended", "error", err)
			}
			return
		}

		res, err := h.svc.FeedProbeMessage(ctx, initiator, counterpart, in.Message)
		if err != nil {
			var ve *models.ValidationError
			if errors.As(err, &ve) {
				if writeFrame(ws, socketMessage{Type: msgError, Error: err.Error()}) != nil {
					return
				}
				continue
			}
			slog.Error("probe feed failed", "initiator", initiator, "counterpart", counterpart, "error", err)
			_ = writeFrame(ws, socketMessage{Type: msgError, Error: err.Error()})
			return
		}

		if res.Reply != "" {
			if err := writeFrame(ws, socketMessage{Type: msgReply, Message: res.Reply, Session: res.Session}); err != nil {
				return
			}
		}
		if res.Session.Done() {
			_ = writeFrame(ws, resultFrame(res.Session))
			closeSocket(ws)
			return
		}
	}
}

func resultFrame(s *models.ConversationSession) socketMessage {
	m := socketMessage{Type: msgResult, Session: s}
	if s.Result != nil {
		m.Result = *s.Result
	}
	return m
}

func writeFrame(ws *websocket.Conn, m socketMessage) error {
	_ = ws.SetWriteDeadline(time.Now().Add(socketWriteWait))
	return ws.WriteJSON(m)
}

func closeSocket(ws *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "probe complete")
	_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(socketWriteWait))
}
