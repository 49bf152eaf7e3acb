package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/canto-lessons/internal/dto"
	"github.com/noah-isme/canto-lessons/internal/models"
	appErrors "github.com/noah-isme/canto-lessons/pkg/errors"
	"github.com/noah-isme/canto-lessons/pkg/sharelink"
	"github.com/noah-isme/canto-lessons/pkg/storage"
)

// AudioStripWarning is shown before a link export drops recorded audio.
const AudioStripWarning = "Share links cannot carry recorded audio. The link will include the text, pronunciations and translations only. Use file export to keep the audio."

const (
	exportKindLesson   = "lesson"
	exportKindSnapshot = "snapshot"
	exportKindPackage  = "package"
	exportKindLink     = "link"
)

type lessonCatalog interface {
	Lesson(id string) (models.Lesson, bool)
	PackageFor(studentID string) (models.StudentPackage, bool)
	Snapshot() models.ClassroomSnapshot
}

type snapshotForgetter interface {
	ForgetSnapshot(ctx context.Context, filename string) error
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// DistributionConfig tunes export behaviour.
type DistributionConfig struct {
	APIPrefix        string
	PublicBaseURL    string
	LinkMaxChars     int
	SnapshotFilename string
	ResultTTL        time.Duration
}

// DistributionService turns store contents into the three distribution
// formats: downloadable files, compressed share links and the published
// classroom snapshot.
type DistributionService struct {
	catalog   lessonCatalog
	exports   fileStorage
	publish   fileStorage
	signer    *storage.SignedURLSigner
	snapshots snapshotForgetter
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       DistributionConfig
}

// NewDistributionService constructs a DistributionService. snapshots may be
// nil; when set, publishing drops the cached copy of the previous snapshot.
func NewDistributionService(catalog lessonCatalog, exports, publish fileStorage, signer *storage.SignedURLSigner, snapshots snapshotForgetter, cfg DistributionConfig, metrics *MetricsService, logger *zap.Logger) *DistributionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LinkMaxChars <= 0 {
		cfg.LinkMaxChars = 8000
	}
	if cfg.SnapshotFilename == "" {
		cfg.SnapshotFilename = "student_data.json"
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &DistributionService{
		catalog:   catalog,
		exports:   exports,
		publish:   publish,
		signer:    signer,
		snapshots: snapshots,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
	}
}

// FileExport is a rendered export file plus its stored download details.
type FileExport struct {
	dto.FileExportResponse
	Data []byte `json:"-"`
}

// ExportLessonFile renders one lesson with full fidelity, audio included.
func (s *DistributionService) ExportLessonFile(ctx context.Context, lessonID string) (*FileExport, error) {
	lesson, ok := s.catalog.Lesson(lessonID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
	}
	return s.storeExport(ctx, exportKindLesson, sanitizeFilename(lesson.Title)+".json", lesson)
}

// ExportSnapshotFile renders every student and lesson under the configured
// snapshot file name, ready to upload next to the deployed site.
func (s *DistributionService) ExportSnapshotFile(ctx context.Context) (*FileExport, error) {
	return s.storeExport(ctx, exportKindSnapshot, s.cfg.SnapshotFilename, s.catalog.Snapshot())
}

// ExportStudentPackage renders one student's name and assigned lessons.
func (s *DistributionService) ExportStudentPackage(ctx context.Context, studentID string) (*FileExport, error) {
	pkg, ok := s.catalog.PackageFor(studentID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	return s.storeExport(ctx, exportKindPackage, sanitizeFilename(pkg.StudentName)+"_lessons.json", pkg)
}

// PreviewLink reports whether a link export of the lesson would drop audio.
func (s *DistributionService) PreviewLink(lessonID string) (*dto.LinkPreviewResponse, error) {
	lesson, ok := s.catalog.Lesson(lessonID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
	}
	preview := &dto.LinkPreviewResponse{LessonID: lesson.ID, WillStripAudio: lesson.HasAudio()}
	if preview.WillStripAudio {
		preview.Warning = AudioStripWarning
	}
	return preview, nil
}

// ExportLink packs the lesson, minus audio, into a share link. A lesson with
// audio is refused until the caller acknowledges the strip warning.
func (s *DistributionService) ExportLink(ctx context.Context, lessonID string, acknowledged bool) (*dto.LinkExportResponse, error) {
	lesson, ok := s.catalog.Lesson(lessonID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
	}
	hadAudio := lesson.HasAudio()
	if hadAudio && !acknowledged {
		s.metrics.RecordExport(exportKindLink, false)
		return nil, appErrors.WithRemediation(appErrors.Clone(appErrors.ErrPreconditionFailed, AudioStripWarning),
			"Confirm that the audio may be dropped, or use file export.")
	}

	token, err := EncodeLessonLink(lesson)
	if err != nil {
		return nil, err
	}
	if len(token) > s.cfg.LinkMaxChars {
		s.metrics.RecordExport(exportKindLink, false)
		s.logger.Info("link export too large",
			zap.String("lesson_id", lesson.ID),
			zap.Int("token_length", len(token)),
			zap.Int("max", s.cfg.LinkMaxChars))
		msg := fmt.Sprintf("lesson is too large to share as a link (%d characters, limit %d)", len(token), s.cfg.LinkMaxChars)
		return nil, appErrors.WithRemediation(appErrors.Clone(appErrors.ErrExportTooLarge, msg), "Use file export instead.")
	}

	s.metrics.RecordExport(exportKindLink, true)
	return &dto.LinkExportResponse{
		LessonID:      lesson.ID,
		URL:           sharelink.BuildURL(s.cfg.PublicBaseURL, token),
		Token:         token,
		TokenLength:   len(token),
		MaxLength:     s.cfg.LinkMaxChars,
		AudioStripped: hadAudio,
	}, nil
}

// DecodeLink accepts a share URL or a bare token and returns the lesson it carries.
func (s *DistributionService) DecodeLink(raw string) (models.Lesson, error) {
	return DecodeLessonLink(raw)
}

// EncodeLessonLink strips audio from lesson and returns its share token.
func EncodeLessonLink(lesson models.Lesson) (string, error) {
	payload, err := json.Marshal(lesson.WithoutAudio())
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode lesson")
	}
	token, err := sharelink.Encode(payload)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compress lesson")
	}
	return token, nil
}

// DecodeLessonLink reverses EncodeLessonLink.
func DecodeLessonLink(raw string) (models.Lesson, error) {
	decoded, err := sharelink.Decode(sharelink.ExtractToken(raw))
	if err != nil {
		return models.Lesson{}, appErrors.Wrap(err, appErrors.ErrInvalidFormat.Code, appErrors.ErrInvalidFormat.Status,
			"invalid format: the share link is damaged or incomplete")
	}
	payload, err := ClassifyPayload(decoded)
	if err != nil {
		return models.Lesson{}, err
	}
	if payload.Kind != models.PayloadLesson {
		return models.Lesson{}, appErrors.Clone(appErrors.ErrInvalidFormat, "invalid format: the share link does not contain a lesson")
	}
	return *payload.Lesson, nil
}

// PublishSnapshot writes the classroom snapshot to the publish directory,
// replacing the previous publication atomically.
func (s *DistributionService) PublishSnapshot(ctx context.Context) (*dto.PublishResponse, error) {
	snapshot := s.catalog.Snapshot()
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode snapshot")
	}
	if _, err := s.publish.Save(s.cfg.SnapshotFilename, data); err != nil {
		s.metrics.RecordExport("publish", false)
		appErr := appErrors.Wrap(err, appErrors.ErrSaveFailed.Code, appErrors.ErrSaveFailed.Status, "failed to publish snapshot")
		return nil, appErrors.WithRemediation(appErr, "Check that PUBLISH_DIR exists and is writable.")
	}
	s.metrics.RecordExport("publish", true)
	if s.snapshots != nil {
		if err := s.snapshots.ForgetSnapshot(ctx, s.cfg.SnapshotFilename); err != nil {
			s.logger.Warn("cached snapshot not dropped", zap.String("filename", s.cfg.SnapshotFilename), zap.Error(err))
		}
	}
	s.logger.Info("snapshot published",
		zap.String("filename", s.cfg.SnapshotFilename),
		zap.Int("students", len(snapshot.Students)),
		zap.Int("lessons", len(snapshot.Lessons)))
	return &dto.PublishResponse{
		Filename:    s.cfg.SnapshotFilename,
		PublicPath:  "/" + s.cfg.SnapshotFilename,
		GeneratedAt: snapshot.GeneratedAt,
		Students:    len(snapshot.Students),
		Lessons:     len(snapshot.Lessons),
		SizeBytes:   len(data),
	}, nil
}

// SnapshotFilename is the published snapshot's file name.
func (s *DistributionService) SnapshotFilename() string {
	return s.cfg.SnapshotFilename
}

// OpenPublished opens the published snapshot file.
func (s *DistributionService) OpenPublished() (*os.File, error) {
	file, err := s.publish.Open(s.cfg.SnapshotFilename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.WithRemediation(appErrors.Clone(appErrors.ErrNotFound, s.cfg.SnapshotFilename+" has not been published"),
				"Publish the classroom snapshot from the teacher dashboard.")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open published snapshot")
	}
	return file, nil
}

// OpenExport validates a download token and opens the file it grants.
func (s *DistributionService) OpenExport(token string) (*os.File, string, error) {
	grant, err := s.signer.Parse(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "download link has expired")
		}
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "download link is not valid")
	}
	file, err := s.exports.Open(grant.Path)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export file no longer exists")
	}
	return file, path.Base(grant.Path), nil
}

// CleanupExports removes stored exports older than ttl, or the configured
// result TTL when ttl is not positive.
func (s *DistributionService) CleanupExports(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.exports.CleanupOlderThan(ttl)
}

func (s *DistributionService) storeExport(_ context.Context, kind, filename string, value interface{}) (*FileExport, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode "+kind)
	}
	result := &FileExport{Data: data}
	result.Filename = filename
	result.Kind = kind
	result.SizeBytes = len(data)

	relPath, err := s.exports.Save(path.Join(kind, uuid.NewString(), filename), data)
	if err != nil {
		s.metrics.RecordExport(kind, false)
		return nil, appErrors.Wrap(err, appErrors.ErrSaveFailed.Code, appErrors.ErrSaveFailed.Status, "failed to store "+kind+" export")
	}
	token, expiresAt, err := s.signer.Generate(kind, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	result.DownloadURL = fmt.Sprintf("%s/exports/download/%s", prefix, token)
	result.ExpiresAt = expiresAt
	s.metrics.RecordExport(kind, true)
	return result, nil
}

func sanitizeFilename(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "untitled"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "\"", "", "?", "", "*", "", "<", "", ">", "", "|", "")
	result := replacer.Replace(raw)
	if runes := []rune(result); len(runes) > 80 {
		return string(runes[:80])
	}
	return result
}
