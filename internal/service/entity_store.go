package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/canto-lessons/internal/models"
	appErrors "github.com/noah-isme/canto-lessons/pkg/errors"
)

type entityPersistence interface {
	LoadAll(ctx context.Context) ([]models.Lesson, []models.Student, error)
	SaveLesson(ctx context.Context, lesson models.Lesson) error
	DeleteLesson(ctx context.Context, id string) error
	SaveStudent(ctx context.Context, student models.Student) error
	DeleteStudent(ctx context.Context, id string) error
	RetiredIDs(ctx context.Context) (map[string]struct{}, error)
}

// EntityStore owns the canonical lessons and students. Every mutation is
// written to persistence before the in-memory lists change, so a failed save
// leaves the store exactly as it was. Values going in and out are deep copies.
type EntityStore struct {
	mu       sync.RWMutex
	persist  entityPersistence
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string
	ready    bool
	lessons  []models.Lesson
	students []models.Student
	retired  map[string]struct{}
}

// NewEntityStore constructs an EntityStore. Call Init before use.
func NewEntityStore(persist entityPersistence, logger *zap.Logger) *EntityStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EntityStore{
		persist: persist,
		logger:  logger,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Init loads every record from persistence.
func (s *EntityStore) Init(ctx context.Context) error {
	lessons, students, err := s.persist.LoadAll(ctx)
	if err != nil {
		return err
	}
	retired, err := s.persist.RetiredIDs(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lessons = lessons
	s.students = students
	s.retired = retired
	s.ready = true
	s.logger.Info("entity store loaded",
		zap.Int("lessons", len(lessons)),
		zap.Int("students", len(students)),
		zap.Int("retired_ids", len(retired)))
	return nil
}

// Ready reports whether Init has completed.
func (s *EntityStore) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Close drops the in-memory copy. The store must be re-initialised before reuse.
func (s *EntityStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lessons = nil
	s.students = nil
	s.retired = nil
	s.ready = false
	return nil
}

// UpsertLesson inserts a lesson (listed first) or replaces the one with the same id in place.
func (s *EntityStore) UpsertLesson(ctx context.Context, lesson models.Lesson) (models.Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkReady(); err != nil {
		return models.Lesson{}, err
	}

	idx := s.lessonIndex(lesson.ID)
	var existing *models.Lesson
	if idx >= 0 {
		existing = &s.lessons[idx]
	} else if s.isRetired("lesson", lesson.ID) {
		return models.Lesson{}, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("lesson id %q belonged to a deleted lesson", lesson.ID))
	}
	prepared, err := s.prepareLesson(lesson, existing)
	if err != nil {
		return models.Lesson{}, err
	}

	if err := s.persist.SaveLesson(ctx, prepared); err != nil {
		return models.Lesson{}, err
	}
	if idx >= 0 {
		s.lessons[idx] = prepared
	} else {
		s.lessons = append([]models.Lesson{prepared}, s.lessons...)
	}
	return prepared.Clone(), nil
}

// DeleteLesson hard-deletes a lesson. Students that still list its id are left
// alone; lookups filter the dangling id out.
func (s *EntityStore) DeleteLesson(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkReady(); err != nil {
		return err
	}
	idx := s.lessonIndex(id)
	if idx < 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
	}
	if err := s.persist.DeleteLesson(ctx, id); err != nil {
		return err
	}
	s.retired[retiredKey("lesson", id)] = struct{}{}
	s.lessons = append(s.lessons[:idx:idx], s.lessons[idx+1:]...)
	return nil
}

// UpsertStudent inserts a student (listed first) or replaces the one with the same id in place.
func (s *EntityStore) UpsertStudent(ctx context.Context, student models.Student) (models.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkReady(); err != nil {
		return models.Student{}, err
	}

	prepared := student.Clone()
	if strings.TrimSpace(prepared.Name) == "" {
		return models.Student{}, appErrors.Clone(appErrors.ErrValidation, "student name is required")
	}
	if prepared.ID == "" {
		prepared.ID = s.newID()
	}
	if s.studentIndex(prepared.ID) < 0 && s.isRetired("student", prepared.ID) {
		return models.Student{}, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("student id %q belonged to a deleted student", prepared.ID))
	}
	prepared.AssignedLessonIDs = dedupeIDs(prepared.AssignedLessonIDs)

	if err := s.persist.SaveStudent(ctx, prepared); err != nil {
		return models.Student{}, err
	}
	if idx := s.studentIndex(prepared.ID); idx >= 0 {
		s.students[idx] = prepared
	} else {
		s.students = append([]models.Student{prepared}, s.students...)
	}
	return prepared.Clone(), nil
}

// DeleteStudent hard-deletes a student.
func (s *EntityStore) DeleteStudent(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkReady(); err != nil {
		return err
	}
	idx := s.studentIndex(id)
	if idx < 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	if err := s.persist.DeleteStudent(ctx, id); err != nil {
		return err
	}
	s.retired[retiredKey("student", id)] = struct{}{}
	s.students = append(s.students[:idx:idx], s.students[idx+1:]...)
	return nil
}

// AssignLesson puts lessonID at the front of the student's assignments.
// Assigning an already assigned lesson changes nothing.
func (s *EntityStore) AssignLesson(ctx context.Context, studentID, lessonID string) (models.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkReady(); err != nil {
		return models.Student{}, err
	}
	idx := s.studentIndex(studentID)
	if idx < 0 {
		return models.Student{}, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	if s.lessonIndex(lessonID) < 0 {
		return models.Student{}, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
	}
	current := s.students[idx]
	if current.IsAssigned(lessonID) {
		return current.Clone(), nil
	}

	updated := current.Clone()
	updated.AssignedLessonIDs = append([]string{lessonID}, updated.AssignedLessonIDs...)
	if err := s.persist.SaveStudent(ctx, updated); err != nil {
		return models.Student{}, err
	}
	s.students[idx] = updated
	return updated.Clone(), nil
}

// UnassignLesson removes lessonID from the student's assignments if present.
func (s *EntityStore) UnassignLesson(ctx context.Context, studentID, lessonID string) (models.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkReady(); err != nil {
		return models.Student{}, err
	}
	idx := s.studentIndex(studentID)
	if idx < 0 {
		return models.Student{}, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	current := s.students[idx]
	if !current.IsAssigned(lessonID) {
		return current.Clone(), nil
	}

	updated := current.Clone()
	kept := updated.AssignedLessonIDs[:0]
	for _, id := range updated.AssignedLessonIDs {
		if id != lessonID {
			kept = append(kept, id)
		}
	}
	updated.AssignedLessonIDs = kept
	if err := s.persist.SaveStudent(ctx, updated); err != nil {
		return models.Student{}, err
	}
	s.students[idx] = updated
	return updated.Clone(), nil
}

// Lesson looks a lesson up by id.
func (s *EntityStore) Lesson(id string) (models.Lesson, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx := s.lessonIndex(id); idx >= 0 {
		return s.lessons[idx].Clone(), true
	}
	return models.Lesson{}, false
}

// Student looks a student up by id.
func (s *EntityStore) Student(id string) (models.Student, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx := s.studentIndex(id); idx >= 0 {
		return s.students[idx].Clone(), true
	}
	return models.Student{}, false
}

// ListLessons returns every lesson, newest first.
func (s *EntityStore) ListLessons() []models.Lesson {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.CloneLessons(s.lessons)
}

// ListStudents returns every student, newest first.
func (s *EntityStore) ListStudents() []models.Student {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.CloneStudents(s.students)
}

// HasStudents reports whether the local student table has any rows.
func (s *EntityStore) HasStudents() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.students) > 0
}

// LessonsForStudent resolves the student's assignments in order, skipping ids
// whose lesson has been deleted.
func (s *EntityStore) LessonsForStudent(studentID string) ([]models.Lesson, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.studentIndex(studentID)
	if idx < 0 {
		return nil, false
	}
	return s.resolveLessons(s.students[idx].AssignedLessonIDs), true
}

// PackageFor builds the student's package from local data.
func (s *EntityStore) PackageFor(studentID string) (models.StudentPackage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.studentIndex(studentID)
	if idx < 0 {
		return models.StudentPackage{}, false
	}
	student := s.students[idx]
	return models.StudentPackage{
		StudentName: student.Name,
		GeneratedAt: s.now().UnixMilli(),
		Lessons:     s.resolveLessons(student.AssignedLessonIDs),
	}, true
}

// Snapshot copies every student and lesson into a ClassroomSnapshot.
func (s *EntityStore) Snapshot() models.ClassroomSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.ClassroomSnapshot{
		GeneratedAt: s.now().UnixMilli(),
		Students:    models.CloneStudents(s.students),
		Lessons:     models.CloneLessons(s.lessons),
	}
}

func (s *EntityStore) resolveLessons(ids []string) []models.Lesson {
	out := make([]models.Lesson, 0, len(ids))
	for _, id := range ids {
		if idx := s.lessonIndex(id); idx >= 0 {
			out = append(out, s.lessons[idx].Clone())
		}
	}
	return out
}

func (s *EntityStore) checkReady() error {
	if !s.ready {
		return appErrors.Clone(appErrors.ErrStorageUnavailable, "entity store is not initialised")
	}
	return nil
}

// isRetired reports whether a deleted record of this kind once used id.
func (s *EntityStore) isRetired(entity, id string) bool {
	if id == "" {
		return false
	}
	_, ok := s.retired[retiredKey(entity, id)]
	return ok
}

func (s *EntityStore) lessonIndex(id string) int {
	if id == "" {
		return -1
	}
	for i := range s.lessons {
		if s.lessons[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *EntityStore) studentIndex(id string) int {
	if id == "" {
		return -1
	}
	for i := range s.students {
		if s.students[i].ID == id {
			return i
		}
	}
	return -1
}

// prepareLesson validates a lesson and fills in generated fields. existing is
// the stored version when the lesson is being replaced.
func (s *EntityStore) prepareLesson(lesson models.Lesson, existing *models.Lesson) (models.Lesson, error) {
	out := lesson.Clone()
	if strings.TrimSpace(out.Title) == "" {
		return models.Lesson{}, appErrors.Clone(appErrors.ErrValidation, "lesson title is required")
	}
	if out.ID == "" {
		out.ID = s.newID()
	}
	if out.CreatedAt == 0 {
		if existing != nil {
			out.CreatedAt = existing.CreatedAt
		} else {
			out.CreatedAt = s.now().UnixMilli()
		}
	}

	mediaURL, kind, guessed, err := normalizeMedia(out.MediaURL)
	if err != nil {
		return models.Lesson{}, err
	}
	if guessed && (out.MediaType == models.MediaImage || out.MediaType == models.MediaVideo) {
		kind = out.MediaType
	}
	out.MediaURL, out.MediaType = mediaURL, kind

	if out.Sentences == nil {
		out.Sentences = []models.Sentence{}
	}
	seen := make(map[string]struct{}, len(out.Sentences))
	for i := range out.Sentences {
		sentence := &out.Sentences[i]
		if sentence.ID == "" {
			sentence.ID = s.newID()
		}
		if _, dup := seen[sentence.ID]; dup {
			return models.Lesson{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("sentence id %q is used twice", sentence.ID))
		}
		seen[sentence.ID] = struct{}{}
		if sentence.Words == nil {
			sentence.Words = []models.Word{}
		}
		for j := range sentence.Words {
			word := &sentence.Words[j]
			if word.Jyutping == nil {
				word.Jyutping = []string{}
			}
			if !word.HasValidSelection() {
				return models.Lesson{}, appErrors.Clone(appErrors.ErrValidation,
					fmt.Sprintf("sentence %d word %d (%s): selected pronunciation must be one of its candidates", i+1, j+1, word.Char))
			}
		}
	}
	return out, nil
}
