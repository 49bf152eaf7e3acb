package service

import (
	"bytes"
	"encoding/json"

	"github.com/noah-isme/canto-lessons/internal/models"
	appErrors "github.com/noah-isme/canto-lessons/pkg/errors"
)

// ClassifyPayload detects which known document shape raw holds and decodes it.
//
//	students + lessons     -> classroom snapshot (older single-blob backups too)
//	studentName + lessons  -> student package
//	id + sentences         -> lesson
//
// Anything else is INVALID_FORMAT. Nothing is returned unless the whole
// document decodes.
func ClassifyPayload(raw []byte) (models.Payload, error) {
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return models.Payload{}, appErrors.Wrap(err, appErrors.ErrInvalidFormat.Code, appErrors.ErrInvalidFormat.Status,
			"invalid format: the file is not a JSON object")
	}
	has := func(key string) bool {
		v, ok := fields[key]
		return ok && !bytes.Equal(bytes.TrimSpace(v), []byte("null"))
	}

	switch {
	case has("students") && has("lessons"):
		var snapshot models.ClassroomSnapshot
		if err := json.Unmarshal(raw, &snapshot); err != nil {
			return models.Payload{}, invalidShape(err, "classroom snapshot")
		}
		if snapshot.Students == nil {
			snapshot.Students = []models.Student{}
		}
		if snapshot.Lessons == nil {
			snapshot.Lessons = []models.Lesson{}
		}
		return models.Payload{Kind: models.PayloadClassroomSnapshot, Snapshot: &snapshot}, nil

	case has("studentName") && has("lessons"):
		var pkg models.StudentPackage
		if err := json.Unmarshal(raw, &pkg); err != nil {
			return models.Payload{}, invalidShape(err, "student package")
		}
		if pkg.Lessons == nil {
			pkg.Lessons = []models.Lesson{}
		}
		return models.Payload{Kind: models.PayloadStudentPackage, Package: &pkg}, nil

	case has("id") && has("sentences"):
		var lesson models.Lesson
		if err := json.Unmarshal(raw, &lesson); err != nil {
			return models.Payload{}, invalidShape(err, "lesson")
		}
		if lesson.ID == "" {
			return models.Payload{}, appErrors.Clone(appErrors.ErrInvalidFormat, "invalid format: lesson has an empty id")
		}
		return models.Payload{Kind: models.PayloadLesson, Lesson: &lesson}, nil
	}

	return models.Payload{}, appErrors.Clone(appErrors.ErrInvalidFormat,
		"invalid format: expected a classroom snapshot (students and lessons), a student package (studentName and lessons) or a lesson")
}

func invalidShape(err error, shape string) error {
	return appErrors.Wrap(err, appErrors.ErrInvalidFormat.Code, appErrors.ErrInvalidFormat.Status,
		"invalid format: the file looks like a "+shape+" but its fields have the wrong types")
}
