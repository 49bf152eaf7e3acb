package models

// ClassroomSnapshot is a point-in-time copy of every student and lesson. It is
// the content of the published student_data.json file.
type ClassroomSnapshot struct {
	GeneratedAt int64     `json:"generatedAt"`
	Students    []Student `json:"students"`
	Lessons     []Lesson  `json:"lessons"`
}

// FindStudent looks up a student by id.
func (s ClassroomSnapshot) FindStudent(id string) (Student, bool) {
	for _, st := range s.Students {
		if st.ID == id {
			return st.Clone(), true
		}
	}
	return Student{}, false
}

// PackageFor resolves the student's assigned lessons into a StudentPackage.
// Assigned ids with no matching lesson are skipped.
func (s ClassroomSnapshot) PackageFor(student Student) StudentPackage {
	byID := make(map[string]Lesson, len(s.Lessons))
	for _, l := range s.Lessons {
		byID[l.ID] = l
	}
	lessons := make([]Lesson, 0, len(student.AssignedLessonIDs))
	for _, id := range student.AssignedLessonIDs {
		if l, ok := byID[id]; ok {
			lessons = append(lessons, l.Clone())
		}
	}
	return StudentPackage{StudentName: student.Name, GeneratedAt: s.GeneratedAt, Lessons: lessons}
}

// StudentPackage is one student's name and their assigned lessons inlined.
type StudentPackage struct {
	StudentName string   `json:"studentName"`
	GeneratedAt int64    `json:"generatedAt"`
	Lessons     []Lesson `json:"lessons"`
}

// LegacyBlob is the single-key document older builds stored locally.
type LegacyBlob struct {
	Lessons  []Lesson  `json:"lessons"`
	Students []Student `json:"students"`
}

// PayloadKind names the shape detected in an uploaded or fetched document.
type PayloadKind string

const (
	PayloadClassroomSnapshot PayloadKind = "classroom_snapshot"
	PayloadStudentPackage    PayloadKind = "student_package"
	PayloadLesson            PayloadKind = "lesson"
)

// Payload is a decoded document tagged with its shape. Exactly one of the
// pointer fields is set, matching Kind.
type Payload struct {
	Kind     PayloadKind        `json:"kind"`
	Snapshot *ClassroomSnapshot `json:"snapshot,omitempty"`
	Package  *StudentPackage    `json:"package,omitempty"`
	Lesson   *Lesson            `json:"lesson,omitempty"`
}
