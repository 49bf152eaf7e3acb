package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/canto-lessons/internal/dto"
	"github.com/noah-isme/canto-lessons/pkg/response"
)

type annotator interface {
	Annotate(ctx context.Context, text string) (*dto.AnnotationResponse, error)
	AnnotateArticle(ctx context.Context, url string) (*dto.AnnotationResponse, error)
}

// AnnotationHandler exposes AI-assisted sentence annotation to the editor.
type AnnotationHandler struct {
	annotator annotator
	validate  *validator.Validate
}

// NewAnnotationHandler constructs AnnotationHandler.
func NewAnnotationHandler(annotator annotator, validate *validator.Validate) *AnnotationHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &AnnotationHandler{annotator: annotator, validate: validate}
}

// Annotate godoc
// @Summary Split text into annotated sentences
// @Tags Annotations
// @Accept json
// @Produce json
// @Param payload body dto.AnnotateRequest true "Text"
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /annotations [post]
func (h *AnnotationHandler) Annotate(c *gin.Context) {
	var req dto.AnnotateRequest
	if !bindJSON(c, h.validate, &req) {
		return
	}
	result, err := h.annotator.Annotate(c.Request.Context(), req.Text)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Article godoc
// @Summary Annotate the readable text of a web article
// @Tags Annotations
// @Accept json
// @Produce json
// @Param payload body dto.AnnotateArticleRequest true "Article URL"
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /annotations/article [post]
func (h *AnnotationHandler) Article(c *gin.Context) {
	var req dto.AnnotateArticleRequest
	if !bindJSON(c, h.validate, &req) {
		return
	}
	result, err := h.annotator.AnnotateArticle(c.Request.Context(), req.URL)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
