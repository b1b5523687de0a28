package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/proktor-id/proktor-backend/internal/middleware"
	"github.com/proktor-id/proktor-backend/internal/model"
	"github.com/proktor-id/proktor-backend/internal/proctor"
	"github.com/proktor-id/proktor-backend/internal/response"
	"github.com/proktor-id/proktor-backend/internal/service"
	"github.com/proktor-id/proktor-backend/internal/validator"
)

// SessionHandler handles the exam session REST surface.
type SessionHandler struct {
	sessions *service.SessionService
	log      zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions *service.SessionService, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		log:      log.With().Str("component", "session_handler").Logger(),
	}
}

// StartSession godoc
// POST /api/v1/exam/sessions
// Redeems a ticket code and opens (or resumes) a proctored attempt.
func (h *SessionHandler) StartSession(c *gin.Context) {
	var req model.StartSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	resp, err := h.sessions.StartSession(c.Request.Context(), req)
	if err != nil {
		h.failStart(c, err)
		return
	}

	status := http.StatusCreated
	if resp.Resumed {
		status = http.StatusOK
	}
	response.Success(c, status, resp)
}

// GetResult godoc
// GET /api/v1/exam/tickets/:ticket_code/result
// Returns the persisted outcome of a consumed ticket.
func (h *SessionHandler) GetResult(c *gin.Context) {
	res, err := h.sessions.Result(c.Request.Context(), c.Param("ticket_code"))
	if err != nil {
		switch {
		case errors.Is(err, proctor.ErrInvalidTicketCode), errors.Is(err, proctor.ErrTicketNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrTicketNotFound)
		case errors.Is(err, service.ErrResultNotReady):
			response.Fail(c, http.StatusConflict, response.ErrResultNotReady)
		default:
			h.log.Error().Err(err).Msg("Get result failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}
	response.Success(c, http.StatusOK, res)
}

// GetState godoc
// GET /api/v1/exam/sessions/:session_id
// Returns a live snapshot of the attempt. Requires the session token issued
// at start; a reloading client uses this to restore its view.
func (h *SessionHandler) GetState(c *gin.Context) {
	sessionID := c.Param("session_id")

	claims := middleware.GetSessionClaims(c)
	if claims == nil || claims.SessionID != sessionID {
		response.Fail(c, http.StatusForbidden, response.ErrTokenInvalid)
		return
	}

	sess, ok := h.sessions.Get(sessionID)
	if !ok {
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"session_id":      sess.ID,
		"phase":           string(sess.Machine.Phase()),
		"remaining":       sess.Machine.Remaining(),
		"violation_count": sess.Machine.ViolationCount(),
		"saved_answers":   sess.Machine.Answers(),
	})
}

// failStart maps loader failures to their API error codes.
func (h *SessionHandler) failStart(c *gin.Context, err error) {
	switch {
	case errors.Is(err, proctor.ErrInvalidTicketCode):
		response.Fail(c, http.StatusBadRequest, response.ErrValidation)
	case errors.Is(err, proctor.ErrTicketNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrTicketNotFound)
	case errors.Is(err, proctor.ErrTicketConsumed):
		response.Fail(c, http.StatusConflict, response.ErrTicketUsed)
	case errors.Is(err, proctor.ErrTicketNotYetValid):
		response.Fail(c, http.StatusForbidden, response.ErrTicketNotYetValid)
	case errors.Is(err, proctor.ErrTicketExpired):
		response.Fail(c, http.StatusForbidden, response.ErrTicketExpired)
	case errors.Is(err, proctor.ErrConfigMissing):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrConfigMissing)
	case errors.Is(err, proctor.ErrQuestionSourceMissing):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrQuestionsMissing)
	case errors.Is(err, proctor.ErrEmptyQuestionSet):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrNoQuestions)
	default:
		h.log.Error().Err(err).Msg("Start session failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
