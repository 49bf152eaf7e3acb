package handler

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/canto-lessons/internal/dto"
	"github.com/noah-isme/canto-lessons/internal/service"
	appErrors "github.com/noah-isme/canto-lessons/pkg/errors"
	"github.com/noah-isme/canto-lessons/pkg/response"
)

type distributionService interface {
	ExportLessonFile(ctx context.Context, lessonID string) (*service.FileExport, error)
	ExportSnapshotFile(ctx context.Context) (*service.FileExport, error)
	ExportStudentPackage(ctx context.Context, studentID string) (*service.FileExport, error)
	PreviewLink(lessonID string) (*dto.LinkPreviewResponse, error)
	ExportLink(ctx context.Context, lessonID string, acknowledged bool) (*dto.LinkExportResponse, error)
	PublishSnapshot(ctx context.Context) (*dto.PublishResponse, error)
	SnapshotFilename() string
	OpenPublished() (*os.File, error)
	OpenExport(token string) (*os.File, string, error)
}

type rosterRenderer interface {
	Render() ([]byte, string, error)
}

// ExportHandler exposes the distribution formats: files, share links, the
// published snapshot and the roster CSV.
type ExportHandler struct {
	distribution distributionService
	roster       rosterRenderer
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(distribution distributionService, roster rosterRenderer) *ExportHandler {
	return &ExportHandler{distribution: distribution, roster: roster}
}

// LessonFile godoc
// @Summary Export one lesson as a JSON file, audio included
// @Tags Exports
// @Produce json
// @Param id path string true "Lesson ID"
// @Param download query bool false "Stream the file instead of returning a download link"
// @Success 200 {object} response.Envelope
// @Router /exports/lessons/{id}/file [get]
func (h *ExportHandler) LessonFile(c *gin.Context) {
	result, err := h.distribution.ExportLessonFile(c.Request.Context(), c.Param("id"))
	h.writeFileExport(c, result, err)
}

// SnapshotFile godoc
// @Summary Export the classroom snapshot file for upload next to the site
// @Tags Exports
// @Produce json
// @Param download query bool false "Stream the file instead of returning a download link"
// @Success 200 {object} response.Envelope
// @Router /exports/snapshot/file [get]
func (h *ExportHandler) SnapshotFile(c *gin.Context) {
	result, err := h.distribution.ExportSnapshotFile(c.Request.Context())
	h.writeFileExport(c, result, err)
}

// StudentPackage godoc
// @Summary Export one student's package file
// @Tags Exports
// @Produce json
// @Param id path string true "Student ID"
// @Param download query bool false "Stream the file instead of returning a download link"
// @Success 200 {object} response.Envelope
// @Router /exports/students/{id}/package [get]
func (h *ExportHandler) StudentPackage(c *gin.Context) {
	result, err := h.distribution.ExportStudentPackage(c.Request.Context(), c.Param("id"))
	h.writeFileExport(c, result, err)
}

// Link godoc
// @Summary Export a lesson as a compressed share link
// @Description Audio is never carried by links. A lesson with audio needs confirmStrip=true.
// @Tags Exports
// @Produce json
// @Param id path string true "Lesson ID"
// @Param confirmStrip query bool false "Acknowledge that audio will be dropped"
// @Param preview query bool false "Only report whether audio would be dropped"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /exports/lessons/{id}/link [get]
func (h *ExportHandler) Link(c *gin.Context) {
	if queryBool(c, "preview") {
		preview, err := h.distribution.PreviewLink(c.Param("id"))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, preview, nil)
		return
	}
	link, err := h.distribution.ExportLink(c.Request.Context(), c.Param("id"), queryBool(c, "confirmStrip"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// Publish godoc
// @Summary Publish the classroom snapshot at the site root
// @Tags Exports
// @Produce json
// @Success 201 {object} response.Envelope
// @Router /exports/snapshot/publish [post]
func (h *ExportHandler) Publish(c *gin.Context) {
	result, err := h.distribution.PublishSnapshot(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Roster godoc
// @Summary Download the roster with assignments as CSV
// @Tags Exports
// @Produce text/csv
// @Success 200 {file} binary
// @Router /exports/roster.csv [get]
func (h *ExportHandler) Roster(c *gin.Context) {
	if h.roster == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "roster export not configured"))
		return
	}
	data, filename, err := h.roster.Render()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, filename, "text/csv; charset=utf-8", data)
}

// Download godoc
// @Summary Download a stored export through a signed token
// @Tags Exports
// @Produce application/octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Router /exports/download/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	file, filename, err := h.distribution.OpenExport(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck
	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read export"))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), contentTypeFor(filename), file, nil)
}

// ServePublished godoc
// @Summary Serve the published classroom snapshot
// @Description Served at the site root with caching disabled so students always see the latest publication.
// @Tags Portal
// @Produce json
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /{snapshotFilename} [get]
func (h *ExportHandler) ServePublished(c *gin.Context) {
	file, err := h.distribution.OpenPublished()
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck
	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read published snapshot"))
		return
	}
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
	c.Header("Content-Type", "application/json; charset=utf-8")
	http.ServeContent(c.Writer, c.Request, h.distribution.SnapshotFilename(), info.ModTime(), file)
}

func (h *ExportHandler) writeFileExport(c *gin.Context, result *service.FileExport, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	if queryBool(c, "download") {
		response.Attachment(c, result.Filename, "application/json; charset=utf-8", result.Data)
		return
	}
	response.JSON(c, http.StatusOK, result.FileExportResponse, nil)
}

func queryBool(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(c.Query(key))
	return err == nil && v
}

func contentTypeFor(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".json":
		return "application/json; charset=utf-8"
	case ".csv":
		return "text/csv; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
