package dto

import "github.com/noah-isme/canto-lessons/internal/models"

// StudentRequest captures POST /students and PUT /students/:id payloads.
type StudentRequest struct {
	ID                string   `json:"id" validate:"omitempty,max=64"`
	Name              string   `json:"name" validate:"required,max=100"`
	AssignedLessonIDs []string `json:"assignedLessonIds" validate:"omitempty,dive,required"`
}

// ToModel converts the request into a student.
func (r StudentRequest) ToModel() models.Student {
	ids := r.AssignedLessonIDs
	if ids == nil {
		ids = []string{}
	}
	return models.Student{ID: r.ID, Name: r.Name, AssignedLessonIDs: ids}
}

// StudentDetail is a student with the assigned lessons that still exist.
type StudentDetail struct {
	models.Student
	Lessons []LessonSummary `json:"lessons"`
	// PortalPath is the relative student link, e.g. "/student/<id>".
	PortalPath string `json:"portalPath"`
}
