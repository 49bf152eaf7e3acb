package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/canto-lessons/internal/models"
	"github.com/noah-isme/canto-lessons/internal/repository"
	appErrors "github.com/noah-isme/canto-lessons/pkg/errors"
)

// legacyMigrationMarker is written to the legacy store once every record of
// the old blob has been copied into the record store.
const legacyMigrationMarker = "migration:legacy-v1"

type recordSubstrate interface {
	Ping(ctx context.Context) error
	Get(ctx context.Context, table repository.Table, id string) ([]byte, error)
	Put(ctx context.Context, table repository.Table, id string, payload []byte) error
	Delete(ctx context.Context, table repository.Table, id string) error
	GetAll(ctx context.Context, table repository.Table) ([]repository.Record, error)
}

type legacyStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// MigrationReport summarises one migration attempt.
type MigrationReport struct {
	BlobFound       bool `json:"blobFound"`
	AlreadyMigrated bool `json:"alreadyMigrated"`
	LessonsWritten  int  `json:"lessonsWritten"`
	StudentsWritten int  `json:"studentsWritten"`
	BlobDeleted     bool `json:"blobDeleted"`
	SynthesizedIDs  int  `json:"synthesizedIds"`
}

// PersistenceAdapter binds the entity store to durable record storage and
// carries the one-time migration out of the legacy single-blob format.
type PersistenceAdapter struct {
	records   recordSubstrate
	legacy    legacyStore
	legacyKey string
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewPersistenceAdapter constructs a PersistenceAdapter. legacy may be nil when
// no previous build ever wrote to this substrate.
func NewPersistenceAdapter(records recordSubstrate, legacy legacyStore, legacyKey string, metrics *MetricsService, logger *zap.Logger) *PersistenceAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if legacyKey == "" {
		legacyKey = "cantonese_lesson_data"
	}
	return &PersistenceAdapter{
		records:   records,
		legacy:    legacy,
		legacyKey: legacyKey,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// Init verifies the substrate is usable.
func (p *PersistenceAdapter) Init(ctx context.Context) error {
	if p.records == nil {
		return appErrors.WithRemediation(appErrors.Clone(appErrors.ErrStorageUnavailable, "no record store configured"),
			"Check DB_DRIVER and DB_PATH.")
	}
	if err := p.records.Ping(ctx); err != nil {
		appErr := appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, "record store is unreachable")
		return appErrors.WithRemediation(appErr, "Check that the database file is writable or the database server is running.")
	}
	return nil
}

// Migrate copies the legacy blob into the record store. It is safe to call on
// every start: with no blob it does nothing, and a blob left behind after a
// completed migration is only deleted. A failed write leaves the blob in
// place so the next start can finish the job.
func (p *PersistenceAdapter) Migrate(ctx context.Context) (MigrationReport, error) {
	var report MigrationReport
	if p.legacy == nil {
		return report, nil
	}

	raw, ok, err := p.legacy.Get(ctx, p.legacyKey)
	if err != nil {
		return report, appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, "failed to read legacy data")
	}
	if !ok {
		return report, nil
	}
	report.BlobFound = true

	if _, done, err := p.legacy.Get(ctx, legacyMigrationMarker); err != nil {
		return report, appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, "failed to read migration marker")
	} else if done {
		report.AlreadyMigrated = true
		if err := p.legacy.Delete(ctx, p.legacyKey); err != nil {
			return report, appErrors.Wrap(err, appErrors.ErrSaveFailed.Code, appErrors.ErrSaveFailed.Status, "failed to remove migrated legacy data")
		}
		report.BlobDeleted = true
		return report, nil
	}

	var blob models.LegacyBlob
	if err := json.Unmarshal([]byte(raw), &blob); err != nil {
		return report, appErrors.Wrap(err, appErrors.ErrInvalidFormat.Code, appErrors.ErrInvalidFormat.Status, "legacy data is not valid JSON; it was left in place")
	}

	// The blob lists newest first. Writing oldest first gives the record store
	// the same listing order.
	for i := len(blob.Lessons) - 1; i >= 0; i-- {
		lesson := blob.Lessons[i]
		if lesson.ID == "" {
			lesson.ID = uuid.NewString()
			report.SynthesizedIDs++
		}
		if err := p.SaveLesson(ctx, lesson); err != nil {
			p.metrics.RecordMigrated("lesson", report.LessonsWritten)
			return report, fmt.Errorf("migrated %d of %d lessons: %w", report.LessonsWritten, len(blob.Lessons), err)
		}
		report.LessonsWritten++
	}
	p.metrics.RecordMigrated("lesson", report.LessonsWritten)

	for i := len(blob.Students) - 1; i >= 0; i-- {
		student := blob.Students[i]
		if student.ID == "" {
			student.ID = uuid.NewString()
			report.SynthesizedIDs++
		}
		student.AssignedLessonIDs = dedupeIDs(student.AssignedLessonIDs)
		if err := p.SaveStudent(ctx, student); err != nil {
			p.metrics.RecordMigrated("student", report.StudentsWritten)
			return report, fmt.Errorf("migrated %d of %d students: %w", report.StudentsWritten, len(blob.Students), err)
		}
		report.StudentsWritten++
	}
	p.metrics.RecordMigrated("student", report.StudentsWritten)

	if err := p.legacy.Put(ctx, legacyMigrationMarker, p.now().UTC().Format(time.RFC3339)); err != nil {
		return report, appErrors.Wrap(err, appErrors.ErrSaveFailed.Code, appErrors.ErrSaveFailed.Status, "failed to record migration")
	}
	if err := p.legacy.Delete(ctx, p.legacyKey); err != nil {
		// The marker is set, so the next start only retries the delete.
		p.logger.Warn("legacy blob not deleted after migration", zap.Error(err))
		return report, nil
	}
	report.BlobDeleted = true

	p.logger.Info("legacy data migrated",
		zap.Int("lessons", report.LessonsWritten),
		zap.Int("students", report.StudentsWritten),
		zap.Int("synthesized_ids", report.SynthesizedIDs))
	return report, nil
}

// LoadAll returns every stored lesson and student, newest first. Records that
// no longer decode are logged and skipped so one bad row cannot block startup.
func (p *PersistenceAdapter) LoadAll(ctx context.Context) ([]models.Lesson, []models.Student, error) {
	lessonRecords, err := p.records.GetAll(ctx, repository.TableLessons)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, "failed to load lessons")
	}
	studentRecords, err := p.records.GetAll(ctx, repository.TableStudents)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, "failed to load students")
	}

	lessons := make([]models.Lesson, 0, len(lessonRecords))
	for _, rec := range lessonRecords {
		var lesson models.Lesson
		if err := json.Unmarshal([]byte(rec.Payload), &lesson); err != nil || lesson.ID == "" {
			p.logger.Error("skipping undecodable lesson record", zap.String("id", rec.ID), zap.Error(err))
			continue
		}
		lessons = append(lessons, lesson)
	}

	students := make([]models.Student, 0, len(studentRecords))
	for _, rec := range studentRecords {
		var student models.Student
		if err := json.Unmarshal([]byte(rec.Payload), &student); err != nil || student.ID == "" {
			p.logger.Error("skipping undecodable student record", zap.String("id", rec.ID), zap.Error(err))
			continue
		}
		students = append(students, student)
	}
	return lessons, students, nil
}

// SaveLesson writes one lesson record.
func (p *PersistenceAdapter) SaveLesson(ctx context.Context, lesson models.Lesson) error {
	return p.put(ctx, repository.TableLessons, lesson.ID, lesson, "lesson")
}

// DeleteLesson retires the lesson id, then removes the record.
func (p *PersistenceAdapter) DeleteLesson(ctx context.Context, id string) error {
	if err := p.retire(ctx, "lesson", id); err != nil {
		return err
	}
	return p.delete(ctx, repository.TableLessons, id, "lesson")
}

// SaveStudent writes one student record.
func (p *PersistenceAdapter) SaveStudent(ctx context.Context, student models.Student) error {
	return p.put(ctx, repository.TableStudents, student.ID, student, "student")
}

// DeleteStudent retires the student id, then removes the record.
func (p *PersistenceAdapter) DeleteStudent(ctx context.Context, id string) error {
	if err := p.retire(ctx, "student", id); err != nil {
		return err
	}
	return p.delete(ctx, repository.TableStudents, id, "student")
}

type retiredID struct {
	Entity    string `json:"entity"`
	ID        string `json:"id"`
	RetiredAt int64  `json:"retiredAt"`
}

func retiredKey(entity, id string) string {
	return entity + ":" + id
}

// RetiredIDs returns the keys of every deleted lesson and student id, in the
// form "lesson:<id>" or "student:<id>".
func (p *PersistenceAdapter) RetiredIDs(ctx context.Context) (map[string]struct{}, error) {
	records, err := p.records.GetAll(ctx, repository.TableRetiredIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, "failed to load retired ids")
	}
	out := make(map[string]struct{}, len(records))
	for _, rec := range records {
		out[rec.ID] = struct{}{}
	}
	return out, nil
}

func (p *PersistenceAdapter) retire(ctx context.Context, entity, id string) error {
	entry := retiredID{Entity: entity, ID: id, RetiredAt: p.now().UnixMilli()}
	return p.put(ctx, repository.TableRetiredIDs, retiredKey(entity, id), entry, entity)
}

func (p *PersistenceAdapter) put(ctx context.Context, table repository.Table, id string, value interface{}, entity string) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode "+entity)
	}
	if err := p.records.Put(ctx, table, id, payload); err != nil {
		p.metrics.RecordSaveFailure(entity)
		p.logger.Warn("save failed", zap.String("entity", entity), zap.String("id", id), zap.Error(err))
		appErr := appErrors.Wrap(err, appErrors.ErrSaveFailed.Code, appErrors.ErrSaveFailed.Status, "could not save "+entity)
		return appErrors.WithRemediation(appErr, "Your changes are still on screen. Free up storage space and try again.")
	}
	return nil
}

func (p *PersistenceAdapter) delete(ctx context.Context, table repository.Table, id string, entity string) error {
	if err := p.records.Delete(ctx, table, id); err != nil {
		p.metrics.RecordSaveFailure(entity)
		return appErrors.Wrap(err, appErrors.ErrSaveFailed.Code, appErrors.ErrSaveFailed.Status, "could not delete "+entity)
	}
	return nil
}

// dedupeIDs drops empty and repeated ids, keeping the first occurrence.
func dedupeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
