package handler

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/canto-lessons/internal/dto"
	"github.com/noah-isme/canto-lessons/internal/models"
	appErrors "github.com/noah-isme/canto-lessons/pkg/errors"
	"github.com/noah-isme/canto-lessons/pkg/response"
)

type studentStore interface {
	ListStudents() []models.Student
	Student(id string) (models.Student, bool)
	LessonsForStudent(id string) ([]models.Lesson, bool)
	UpsertStudent(ctx context.Context, student models.Student) (models.Student, error)
	DeleteStudent(ctx context.Context, id string) error
	AssignLesson(ctx context.Context, studentID, lessonID string) (models.Student, error)
	UnassignLesson(ctx context.Context, studentID, lessonID string) (models.Student, error)
}

// StudentHandler exposes roster and assignment endpoints.
type StudentHandler struct {
	store    studentStore
	validate *validator.Validate
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(store studentStore, validate *validator.Validate) *StudentHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &StudentHandler{store: store, validate: validate}
}

// List godoc
// @Summary List students, newest first
// @Tags Students
// @Produce json
// @Param search query string false "Filter by name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	students := h.store.ListStudents()
	if search := strings.ToLower(strings.TrimSpace(c.Query("search"))); search != "" {
		filtered := students[:0]
		for _, s := range students {
			if strings.Contains(strings.ToLower(s.Name), search) {
				filtered = append(filtered, s)
			}
		}
		students = filtered
	}
	start, end, pagination := pageWindow(c, len(students))
	students = students[start:end]
	response.JSON(c, http.StatusOK, students, pagination, map[string]interface{}{"count": len(students)})
}

// Get godoc
// @Summary Get a student with their assigned lessons
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	detail, ok := h.detail(c.Param("id"))
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "student not found"))
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Create godoc
// @Summary Create a student
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body dto.StudentRequest true "Student payload"
// @Success 201 {object} response.Envelope
// @Router /students [post]
func (h *StudentHandler) Create(c *gin.Context) {
	var req dto.StudentRequest
	if !bindJSON(c, h.validate, &req) {
		return
	}
	if id := strings.TrimSpace(req.ID); id != "" {
		if _, exists := h.store.Student(id); exists {
			response.Error(c, appErrors.Clone(appErrors.ErrConflict, "student already exists"))
			return
		}
	}
	student, err := h.store.UpsertStudent(c.Request.Context(), req.ToModel())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// Update godoc
// @Summary Replace a student
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body dto.StudentRequest true "Student payload"
// @Success 200 {object} response.Envelope
// @Router /students/{id} [put]
func (h *StudentHandler) Update(c *gin.Context) {
	id := c.Param("id")
	if _, ok := h.store.Student(id); !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "student not found"))
		return
	}
	var req dto.StudentRequest
	if !bindJSON(c, h.validate, &req) {
		return
	}
	req.ID = id
	student, err := h.store.UpsertStudent(c.Request.Context(), req.ToModel())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Delete godoc
// @Summary Delete a student
// @Tags Students
// @Param id path string true "Student ID"
// @Success 204
// @Router /students/{id} [delete]
func (h *StudentHandler) Delete(c *gin.Context) {
	if err := h.store.DeleteStudent(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Assign godoc
// @Summary Assign a lesson to a student
// @Description Assigning a lesson twice is a no-op.
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Param lessonId path string true "Lesson ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/lessons/{lessonId} [post]
func (h *StudentHandler) Assign(c *gin.Context) {
	student, err := h.store.AssignLesson(c.Request.Context(), c.Param("id"), c.Param("lessonId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Unassign godoc
// @Summary Remove a lesson from a student
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Param lessonId path string true "Lesson ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/lessons/{lessonId} [delete]
func (h *StudentHandler) Unassign(c *gin.Context) {
	student, err := h.store.UnassignLesson(c.Request.Context(), c.Param("id"), c.Param("lessonId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

func (h *StudentHandler) detail(id string) (dto.StudentDetail, bool) {
	student, ok := h.store.Student(id)
	if !ok {
		return dto.StudentDetail{}, false
	}
	lessons, _ := h.store.LessonsForStudent(id)
	summaries := make([]dto.LessonSummary, 0, len(lessons))
	for _, l := range lessons {
		summaries = append(summaries, dto.NewLessonSummary(l))
	}
	return dto.StudentDetail{
		Student:    student,
		Lessons:    summaries,
		PortalPath: "/student/" + url.PathEscape(student.ID),
	}, true
}
