package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/canto-lessons/internal/dto"
	"github.com/noah-isme/canto-lessons/internal/models"
	appErrors "github.com/noah-isme/canto-lessons/pkg/errors"
	"github.com/noah-isme/canto-lessons/pkg/response"
)

type lessonStore interface {
	ListLessons() []models.Lesson
	Lesson(id string) (models.Lesson, bool)
	UpsertLesson(ctx context.Context, lesson models.Lesson) (models.Lesson, error)
	DeleteLesson(ctx context.Context, id string) error
}

// LessonHandler exposes lesson authoring endpoints.
type LessonHandler struct {
	store    lessonStore
	validate *validator.Validate
}

// NewLessonHandler constructs LessonHandler.
func NewLessonHandler(store lessonStore, validate *validator.Validate) *LessonHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &LessonHandler{store: store, validate: validate}
}

// List godoc
// @Summary List lessons, newest first
// @Tags Lessons
// @Produce json
// @Param full query bool false "Return full lessons instead of summaries"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /lessons [get]
func (h *LessonHandler) List(c *gin.Context) {
	lessons := h.store.ListLessons()
	start, end, pagination := pageWindow(c, len(lessons))
	lessons = lessons[start:end]
	if queryBool(c, "full") {
		response.JSON(c, http.StatusOK, lessons, pagination, map[string]interface{}{"count": len(lessons)})
		return
	}
	summaries := make([]dto.LessonSummary, 0, len(lessons))
	for _, l := range lessons {
		summaries = append(summaries, dto.NewLessonSummary(l))
	}
	response.JSON(c, http.StatusOK, summaries, pagination, map[string]interface{}{"count": len(summaries)})
}

// Get godoc
// @Summary Get a lesson
// @Tags Lessons
// @Produce json
// @Param id path string true "Lesson ID"
// @Success 200 {object} response.Envelope
// @Router /lessons/{id} [get]
func (h *LessonHandler) Get(c *gin.Context) {
	lesson, ok := h.store.Lesson(c.Param("id"))
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "lesson not found"))
		return
	}
	response.JSON(c, http.StatusOK, lesson, nil)
}

// Create godoc
// @Summary Create a lesson
// @Tags Lessons
// @Accept json
// @Produce json
// @Param payload body dto.LessonRequest true "Lesson payload"
// @Success 201 {object} response.Envelope
// @Router /lessons [post]
func (h *LessonHandler) Create(c *gin.Context) {
	var req dto.LessonRequest
	if !bindJSON(c, h.validate, &req) {
		return
	}
	if id := strings.TrimSpace(req.ID); id != "" {
		if _, exists := h.store.Lesson(id); exists {
			response.Error(c, appErrors.Clone(appErrors.ErrConflict, "lesson already exists"))
			return
		}
	}
	lesson, err := h.store.UpsertLesson(c.Request.Context(), req.ToModel())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, lesson)
}

// Update godoc
// @Summary Replace a lesson
// @Tags Lessons
// @Accept json
// @Produce json
// @Param id path string true "Lesson ID"
// @Param payload body dto.LessonRequest true "Lesson payload"
// @Success 200 {object} response.Envelope
// @Router /lessons/{id} [put]
func (h *LessonHandler) Update(c *gin.Context) {
	id := c.Param("id")
	if _, ok := h.store.Lesson(id); !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "lesson not found"))
		return
	}
	var req dto.LessonRequest
	if !bindJSON(c, h.validate, &req) {
		return
	}
	req.ID = id
	lesson, err := h.store.UpsertLesson(c.Request.Context(), req.ToModel())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lesson, nil)
}

// Delete godoc
// @Summary Delete a lesson
// @Description Students keep the id in their assignment list; it resolves to nothing.
// @Tags Lessons
// @Param id path string true "Lesson ID"
// @Success 204
// @Router /lessons/{id} [delete]
func (h *LessonHandler) Delete(c *gin.Context) {
	if err := h.store.DeleteLesson(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
