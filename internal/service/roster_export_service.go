package service

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/canto-lessons/internal/models"
	"github.com/noah-isme/canto-lessons/pkg/export"
)

const (
	rosterStatusAssigned   = "assigned"
	rosterStatusMissing    = "missing"
	rosterStatusUnassigned = "unassigned"

	exportKindRoster = "roster"
)

var rosterHeaders = []string{"student_id", "student_name", "lesson_id", "lesson_title", "status"}

type rosterSource interface {
	ListStudents() []models.Student
	Lesson(id string) (models.Lesson, bool)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// RosterExportService renders the class roster with each student's assignments as CSV.
type RosterExportService struct {
	source  rosterSource
	csv     csvRenderer
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// NewRosterExportService constructs a RosterExportService.
func NewRosterExportService(source rosterSource, csv csvRenderer, metrics *MetricsService, logger *zap.Logger) *RosterExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	return &RosterExportService{source: source, csv: csv, metrics: metrics, logger: logger, now: time.Now}
}

// Render returns the roster CSV and a dated file name for it. Students with no
// assignments get one "unassigned" row; ids whose lesson was deleted are "missing".
func (s *RosterExportService) Render() ([]byte, string, error) {
	students := s.source.ListStudents()
	rows := make([]map[string]string, 0, len(students))
	missing := 0
	for _, student := range students {
		if len(student.AssignedLessonIDs) == 0 {
			rows = append(rows, map[string]string{
				"student_id":   student.ID,
				"student_name": student.Name,
				"status":       rosterStatusUnassigned,
			})
			continue
		}
		for _, lessonID := range student.AssignedLessonIDs {
			row := map[string]string{
				"student_id":   student.ID,
				"student_name": student.Name,
				"lesson_id":    lessonID,
				"status":       rosterStatusAssigned,
			}
			if lesson, ok := s.source.Lesson(lessonID); ok {
				row["lesson_title"] = lesson.Title
			} else {
				row["status"] = rosterStatusMissing
				missing++
			}
			rows = append(rows, row)
		}
	}

	data, err := s.csv.Render(export.Dataset{Headers: rosterHeaders, Rows: rows})
	if err != nil {
		s.metrics.RecordExport(exportKindRoster, false)
		return nil, "", fmt.Errorf("render roster: %w", err)
	}
	s.metrics.RecordExport(exportKindRoster, true)
	if missing > 0 {
		s.logger.Info("roster lists assignments to deleted lessons", zap.Int("missing", missing))
	}
	return data, fmt.Sprintf("roster_%s.csv", s.now().Format("20060102")), nil
}
