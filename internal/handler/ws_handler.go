package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/proktor-id/proktor-backend/internal/proctor"
	"github.com/proktor-id/proktor-backend/internal/registry"
	"github.com/proktor-id/proktor-backend/internal/service"
	ws "github.com/proktor-id/proktor-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allow list permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

func decode(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func readDeadline() time.Time {
	return time.Now().Add(5 * time.Minute)
}

// wsConn serializes writes to one WebSocket connection. The event pump and
// the message loop both write, and gorilla/websocket allows one writer only.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) WriteTyped(v interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return ws.WriteTyped(w.conn, v)
}

func (w *wsConn) WriteError(msg string) {
	_ = w.WriteTyped(ws.ErrorResponse{Event: ws.EventError, Error: msg})
}

// wsPresenter pushes presentation commands to the client. It implements
// proctor.Presenter; the relay replays state on reconnect so a dropped write
// here is recovered by the next attach.
type wsPresenter struct {
	conn *wsConn
}

func (p *wsPresenter) AcquireSuppression() {
	_ = p.conn.WriteTyped(ws.LockdownEvent{Event: ws.EventLockdown, Engage: true})
}

func (p *wsPresenter) ReleaseSuppression() {
	_ = p.conn.WriteTyped(ws.LockdownEvent{Event: ws.EventLockdown, Engage: false})
}

func (p *wsPresenter) EnterFullscreen() error {
	return p.conn.WriteTyped(ws.FullscreenEvent{Event: ws.EventFullscreen, Enter: true})
}

func (p *wsPresenter) ExitFullscreen() error {
	return p.conn.WriteTyped(ws.FullscreenEvent{Event: ws.EventFullscreen, Enter: false})
}

// WSHandler handles the exam session WebSocket stream.
type WSHandler struct {
	sessions *service.SessionService
	tokens   *service.TokenService
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessions *service.SessionService, tokens *service.TokenService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		tokens:   tokens,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/exam/sessions/:session_id/stream?token=...
// Upgrades to WebSocket and attaches the client to its live attempt: machine
// events flow out, answers and environment reports flow in.
func (h *WSHandler) SessionStream(c *gin.Context) {
	sessionID := c.Param("session_id")

	claims, err := h.tokens.Validate(c.Query("token"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session token"})
		return
	}
	if claims.SessionID != sessionID {
		c.JSON(http.StatusForbidden, gin.H{"error": "token does not match session"})
		return
	}

	sess, ok := h.sessions.Get(sessionID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found or already finished"})
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer raw.Close()

	conn := &wsConn{conn: raw}

	wsLog := h.log.With().
		Str("session_id", sessionID).
		Str("ticket", sess.TicketCode).
		Logger()
	wsLog.Info().Msg("Client attached")

	// One transport at a time: attaching replays the current lockdown and
	// fullscreen state for a reconnecting client.
	sess.Presenter.Attach(&wsPresenter{conn: conn})
	defer sess.Presenter.Detach()

	// Pump machine events to the client until the connection or the session
	// goes away.
	pumpDone := make(chan struct{})
	stop := make(chan struct{})
	go func() {
		defer close(pumpDone)
		for {
			select {
			case evt := <-sess.Events():
				if err := conn.WriteTyped(evt.Data); err != nil {
					return
				}
			case <-stop:
				return
			}
		}
	}()
	defer func() {
		close(stop)
		<-pumpDone
	}()

	for {
		var envelope ws.RequestEnvelope
		raw.SetReadDeadline(readDeadline())
		_, data, err := raw.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}
		if err := decode(data, &envelope); err != nil {
			conn.WriteError("malformed message")
			continue
		}

		switch envelope.Action {
		case ws.ActionStart:
			h.handleStart(conn, sess)
		case ws.ActionAnswer:
			h.handleAnswer(c.Request.Context(), conn, sess, data)
		case ws.ActionEnv:
			h.handleEnv(conn, sess, data)
		case ws.ActionEvent:
			h.handleEvent(conn, sess, data)
		case ws.ActionSubmit:
			h.handleSubmit(conn, wsLog, sess)
		case ws.ActionPing:
			_ = conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(envelope.Action)).Msg("Unknown action")
			conn.WriteError("unknown action: " + string(envelope.Action))
		}
	}
}

func (h *WSHandler) handleStart(conn *wsConn, sess *registry.Session) {
	if err := h.sessions.Begin(sess); err != nil {
		conn.WriteError("cannot start: " + err.Error())
	}
}

func (h *WSHandler) handleAnswer(ctx context.Context, conn *wsConn, sess *registry.Session, data []byte) {
	var msg ws.AnswerRequest
	if err := decode(data, &msg); err != nil || msg.QID == "" {
		conn.WriteError("q_id is required")
		return
	}

	if err := h.sessions.Answer(ctx, sess, msg.QID, msg.Answer); err != nil {
		switch {
		case errors.Is(err, proctor.ErrUnknownQuestion):
			conn.WriteError("unknown question")
		case errors.Is(err, proctor.ErrNotInProgress):
			conn.WriteError("attempt is not in progress")
		default:
			conn.WriteError("save failed")
		}
	}
}

func (h *WSHandler) handleEnv(conn *wsConn, sess *registry.Session, data []byte) {
	var msg ws.EnvRequest
	if err := decode(data, &msg); err != nil {
		conn.WriteError("malformed env report")
		return
	}
	sess.Probe.Update(msg.Report)
}

func (h *WSHandler) handleEvent(conn *wsConn, sess *registry.Session, data []byte) {
	var msg ws.EventRequest
	if err := decode(data, &msg); err != nil {
		conn.WriteError("malformed event")
		return
	}

	switch kind := proctor.EventKind(msg.Kind); kind {
	case proctor.EventCopy, proctor.EventPaste, proctor.EventContextMenu, proctor.EventBlur:
		sess.Machine.HandleEvent(kind)
	default:
		conn.WriteError("unknown event kind: " + msg.Kind)
	}
}

func (h *WSHandler) handleSubmit(conn *wsConn, wsLog zerolog.Logger, sess *registry.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := h.sessions.Submit(ctx, sess)
	if err != nil {
		wsLog.Error().Err(err).Msg("Submit failed")
		conn.WriteError("Gagal menyimpan hasil ujian. Coba lagi.")
		return
	}
	if res == nil {
		// Another submit is already in flight; the graded event follows.
		return
	}

	wsLog.Info().
		Int("score", res.Score).
		Str("finish_reason", string(res.FinishReason)).
		Msg("Attempt submitted and graded")
}
