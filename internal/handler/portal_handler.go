package handler

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/canto-lessons/internal/middleware"
	"github.com/noah-isme/canto-lessons/internal/models"
	"github.com/noah-isme/canto-lessons/internal/service"
	appErrors "github.com/noah-isme/canto-lessons/pkg/errors"
	"github.com/noah-isme/canto-lessons/pkg/response"
)

// PortalSessionHeader carries the portal session id between requests.
const PortalSessionHeader = "X-Portal-Session"

const maxUploadBytes = 64 << 20

type portalService interface {
	Load(ctx context.Context, sessionID string, nav models.Navigation) (string, *models.StudentView, error)
	Upload(ctx context.Context, sessionID string, raw []byte, studentID string) (string, *models.StudentView, error)
	State(sessionID string) (models.LoadState, *models.StudentView)
}

type linkDecoder interface {
	DecodeLink(raw string) (models.Lesson, error)
}

// PortalHandler serves the student side: resolving which lessons to show.
type PortalHandler struct {
	portal portalService
	links  linkDecoder
}

// NewPortalHandler constructs PortalHandler.
func NewPortalHandler(portal portalService, links linkDecoder) *PortalHandler {
	return &PortalHandler{portal: portal, links: links}
}

// Load godoc
// @Summary Resolve the student view
// @Description Fetches the published snapshot for a student, decodes a share link, or falls back to local data.
// @Tags Portal
// @Produce json
// @Param student query string false "Student ID"
// @Param id query string false "Student ID (alias)"
// @Param data query string false "Snapshot file name override"
// @Param share query string false "Share link token"
// @Param url query string false "Full portal URL to parse instead of the individual parameters"
// @Param X-Portal-Session header string false "Portal session id"
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /portal [get]
func (h *PortalHandler) Load(c *gin.Context) {
	nav, err := navigationFromRequest(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	sessionID, view, err := h.portal.Load(c.Request.Context(), c.GetHeader(PortalSessionHeader), nav)
	c.Header(PortalSessionHeader, sessionID)
	h.writeView(c, sessionID, view, err)
}

// State godoc
// @Summary Report the load state of a portal session
// @Tags Portal
// @Produce json
// @Param X-Portal-Session header string true "Portal session id"
// @Success 200 {object} response.Envelope
// @Router /portal/state [get]
func (h *PortalHandler) State(c *gin.Context) {
	sessionID := c.GetHeader(PortalSessionHeader)
	state, view := h.portal.State(sessionID)
	response.JSON(c, http.StatusOK, gin.H{"state": state, "view": view}, nil)
}

// Share godoc
// @Summary Decode a share link into its lesson
// @Tags Portal
// @Produce json
// @Param token path string true "Share token"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /portal/share/{token} [get]
func (h *PortalHandler) Share(c *gin.Context) {
	lesson, err := h.links.DecodeLink(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lesson, nil)
}

// Upload godoc
// @Summary Load a hand-picked data file
// @Description Accepts a classroom snapshot, a student package or a single lesson, as a multipart "file" field or the raw body.
// @Tags Portal
// @Accept json,mpfd
// @Produce json
// @Param student query string false "Student to show when the file is a classroom snapshot"
// @Param file formData file false "Data file"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /portal/upload [post]
func (h *PortalHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	raw, err := readUpload(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	studentID := strings.TrimSpace(c.Query("student"))
	sessionID, view, err := h.portal.Upload(c.Request.Context(), c.GetHeader(PortalSessionHeader), raw, studentID)
	c.Header(PortalSessionHeader, sessionID)
	h.writeView(c, sessionID, view, err)
}

func (h *PortalHandler) writeView(c *gin.Context, sessionID string, view *models.StudentView, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "source", string(view.Source))
	middleware.SetMeta(c, "session", sessionID)
	response.JSON(c, http.StatusOK, view, nil, middleware.ExtractMeta(c))
}

func navigationFromRequest(c *gin.Context) (models.Navigation, error) {
	if raw := strings.TrimSpace(c.Query("url")); raw != "" {
		return service.ParseNavigation(raw)
	}
	nav, err := service.ParseNavigation("?" + c.Request.URL.RawQuery)
	if err != nil {
		return nav, err
	}
	if share := strings.TrimSpace(c.Query("share")); share != "" {
		nav.ShareToken = share
	}
	return nav, nil
}

func readUpload(c *gin.Context) ([]byte, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		header, err := c.FormFile("file")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required")
		}
		file, err := header.Open()
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "cannot read uploaded file")
		}
		defer file.Close() //nolint:errcheck
		return readAllUpload(file)
	}
	return readAllUpload(c.Request.Body)
}

func readAllUpload(r io.Reader) ([]byte, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "cannot read uploaded file")
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "uploaded file is empty")
	}
	return raw, nil
}
