package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/canto-lessons/internal/dto"
	"github.com/noah-isme/canto-lessons/internal/models"
	"github.com/noah-isme/canto-lessons/pkg/response"
)

type sessionController interface {
	Get(id string) models.SessionState
	EnterTeacher(id, pin string) (models.SessionState, error)
	OpenEditor(id, lessonID string) (models.SessionState, error)
	CloseEditor(id string) (models.SessionState, error)
	EnterPortal(id, rawURL string) (models.SessionState, error)
	Exit(id string) (models.SessionState, error)
}

// SessionHandler moves a session between the role selection, teacher and
// student screens.
type SessionHandler struct {
	sessions sessionController
	validate *validator.Validate
}

// NewSessionHandler constructs SessionHandler.
func NewSessionHandler(sessions sessionController, validate *validator.Validate) *SessionHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &SessionHandler{sessions: sessions, validate: validate}
}

// Get godoc
// @Summary Get a session, starting one at role selection when unknown
// @Tags Session
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /session/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.sessions.Get(c.Param("id")), nil)
}

// Teacher godoc
// @Summary Enter teacher mode
// @Description The PIN is a convenience gate, not a credential.
// @Tags Session
// @Accept json
// @Produce json
// @Param payload body dto.TeacherSessionRequest true "PIN"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /session/teacher [post]
func (h *SessionHandler) Teacher(c *gin.Context) {
	var req dto.TeacherSessionRequest
	if !bindJSON(c, h.validate, &req) {
		return
	}
	state, err := h.sessions.EnterTeacher(req.SessionID, req.PIN)
	h.write(c, state, err)
}

// OpenEditor godoc
// @Summary Open the lesson editor
// @Tags Session
// @Accept json
// @Produce json
// @Param payload body dto.OpenEditorRequest true "Session and lesson"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /session/editor [post]
func (h *SessionHandler) OpenEditor(c *gin.Context) {
	var req dto.OpenEditorRequest
	if !bindJSON(c, h.validate, &req) {
		return
	}
	state, err := h.sessions.OpenEditor(req.SessionID, req.LessonID)
	h.write(c, state, err)
}

// CloseEditor godoc
// @Summary Close the lesson editor
// @Tags Session
// @Accept json
// @Produce json
// @Param payload body dto.SessionTransitionRequest true "Session"
// @Success 200 {object} response.Envelope
// @Router /session/editor/close [post]
func (h *SessionHandler) CloseEditor(c *gin.Context) {
	var req dto.SessionTransitionRequest
	if !bindJSON(c, h.validate, &req) {
		return
	}
	state, err := h.sessions.CloseEditor(req.SessionID)
	h.write(c, state, err)
}

// Portal godoc
// @Summary Enter the student portal from a portal URL
// @Tags Session
// @Accept json
// @Produce json
// @Param payload body dto.PortalSessionRequest true "Session and URL"
// @Success 200 {object} response.Envelope
// @Router /session/portal [post]
func (h *SessionHandler) Portal(c *gin.Context) {
	var req dto.PortalSessionRequest
	if !bindJSON(c, h.validate, &req) {
		return
	}
	state, err := h.sessions.EnterPortal(req.SessionID, req.URL)
	h.write(c, state, err)
}

// Exit godoc
// @Summary Return to role selection
// @Tags Session
// @Accept json
// @Produce json
// @Param payload body dto.SessionTransitionRequest true "Session"
// @Success 200 {object} response.Envelope
// @Router /session/exit [post]
func (h *SessionHandler) Exit(c *gin.Context) {
	var req dto.SessionTransitionRequest
	if !bindJSON(c, h.validate, &req) {
		return
	}
	state, err := h.sessions.Exit(req.SessionID)
	h.write(c, state, err)
}

func (h *SessionHandler) write(c *gin.Context, state models.SessionState, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state, nil)
}
