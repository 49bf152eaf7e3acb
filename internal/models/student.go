package models

// Student is a learner with the ordered set of lessons assigned to them.
type Student struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	AssignedLessonIDs []string `json:"assignedLessonIds"`
}

// Clone returns a deep copy.
func (s Student) Clone() Student {
	out := s
	if s.AssignedLessonIDs == nil {
		return out
	}
	out.AssignedLessonIDs = append(make([]string, 0, len(s.AssignedLessonIDs)), s.AssignedLessonIDs...)
	return out
}

// IsAssigned reports whether lessonID is in the student's assignment list.
func (s Student) IsAssigned(lessonID string) bool {
	for _, id := range s.AssignedLessonIDs {
		if id == lessonID {
			return true
		}
	}
	return false
}

// CloneStudents deep-copies a student list.
func CloneStudents(students []Student) []Student {
	out := make([]Student, len(students))
	for i, s := range students {
		out[i] = s.Clone()
	}
	return out
}
