package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/canto-lessons/internal/models"
	"github.com/noah-isme/canto-lessons/internal/repository"
	appErrors "github.com/noah-isme/canto-lessons/pkg/errors"
	"github.com/noah-isme/canto-lessons/pkg/sharelink"
	"github.com/noah-isme/canto-lessons/pkg/storage"
)

func newDistribution(t *testing.T, maxChars int) (*DistributionService, *EntityStore) {
	t.Helper()
	store, _ := newMemoryStore(t)
	exports, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	publish, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	svc := NewDistributionService(store, exports, publish, signer, nil, DistributionConfig{
		APIPrefix:     "/api/v1",
		PublicBaseURL: "https://lessons.example.com/",
		LinkMaxChars:  maxChars,
	}, NewMetricsService(), zap.NewNop())
	return svc, store
}

func TestLessonFileRoundTripKeepsAudio(t *testing.T) {
	svc, store := newDistribution(t, 0)
	lesson, err := store.UpsertLesson(context.Background(), greetingsLesson())
	require.NoError(t, err)

	export, err := svc.ExportLessonFile(context.Background(), lesson.ID)
	require.NoError(t, err)
	assert.Equal(t, "Greetings.json", export.Filename)
	assert.True(t, strings.HasPrefix(export.DownloadURL, "/api/v1/exports/download/"))

	payload, err := ClassifyPayload(export.Data)
	require.NoError(t, err)
	require.Equal(t, models.PayloadLesson, payload.Kind)
	assert.Equal(t, lesson, *payload.Lesson)
	assert.True(t, payload.Lesson.HasAudio())
}

func TestLinkRoundTripDropsOnlyAudio(t *testing.T) {
	svc, store := newDistribution(t, 0)
	lesson, err := store.UpsertLesson(context.Background(), greetingsLesson())
	require.NoError(t, err)

	link, err := svc.ExportLink(context.Background(), lesson.ID, true)
	require.NoError(t, err)
	assert.True(t, link.AudioStripped)
	assert.True(t, strings.HasPrefix(link.URL, "https://lessons.example.com/#/share/"))
	assert.NotContains(t, link.URL, "=")

	decoded, err := svc.DecodeLink(link.URL)
	require.NoError(t, err)
	assert.Equal(t, lesson.WithoutAudio(), decoded)
	for _, s := range decoded.Sentences {
		assert.Empty(t, s.AudioBase64)
		assert.Empty(t, s.ExplanationAudio)
	}

	fromToken, err := svc.DecodeLink(link.Token)
	require.NoError(t, err)
	assert.Equal(t, decoded, fromToken)
}

func TestLinkExportRequiresAcknowledgementForAudio(t *testing.T) {
	svc, store := newDistribution(t, 0)
	lesson, err := store.UpsertLesson(context.Background(), greetingsLesson())
	require.NoError(t, err)

	preview, err := svc.PreviewLink(lesson.ID)
	require.NoError(t, err)
	assert.True(t, preview.WillStripAudio)
	assert.Equal(t, AudioStripWarning, preview.Warning)

	_, err = svc.ExportLink(context.Background(), lesson.ID, false)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrPreconditionFailed.Code))

	silent := lesson.WithoutAudio()
	silent.ID = "l-silent"
	_, err = store.UpsertLesson(context.Background(), silent)
	require.NoError(t, err)
	link, err := svc.ExportLink(context.Background(), "l-silent", false)
	require.NoError(t, err, "lessons without audio need no acknowledgement")
	assert.False(t, link.AudioStripped)
}

func TestLinkExportRejectsOversizedLesson(t *testing.T) {
	svc, store := newDistribution(t, 40)
	lesson, err := store.UpsertLesson(context.Background(), greetingsLesson())
	require.NoError(t, err)

	_, err = svc.ExportLink(context.Background(), lesson.ID, true)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrExportTooLarge.Code))
	assert.Contains(t, appErrors.FromError(err).Remediation, "file export")
}

func TestDecodeLinkRejectsGarbage(t *testing.T) {
	_, err := DecodeLessonLink("https://lessons.example.com/#/share/%%%not-base64")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidFormat.Code))

	_, err = DecodeLessonLink("")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidFormat.Code))

	token, err := sharelink.Encode([]byte(`{"studentName":"Amy","lessons":[]}`))
	require.NoError(t, err)
	_, err = DecodeLessonLink(token)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidFormat.Code), "a link must carry a lesson")
}

func TestSnapshotFileAndPackageExports(t *testing.T) {
	svc, store := newDistribution(t, 0)
	ctx := context.Background()
	_, err := store.UpsertLesson(ctx, greetingsLesson())
	require.NoError(t, err)
	_, err = store.UpsertStudent(ctx, models.Student{ID: "st1", Name: "Amy", AssignedLessonIDs: []string{"l1"}})
	require.NoError(t, err)

	snapshotExport, err := svc.ExportSnapshotFile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "student_data.json", snapshotExport.Filename)
	payload, err := ClassifyPayload(snapshotExport.Data)
	require.NoError(t, err)
	assert.Equal(t, models.PayloadClassroomSnapshot, payload.Kind)
	assert.Len(t, payload.Snapshot.Students, 1)

	pkgExport, err := svc.ExportStudentPackage(ctx, "st1")
	require.NoError(t, err)
	assert.Equal(t, "Amy_lessons.json", pkgExport.Filename)
	payload, err = ClassifyPayload(pkgExport.Data)
	require.NoError(t, err)
	require.Equal(t, models.PayloadStudentPackage, payload.Kind)
	assert.Equal(t, "Amy", payload.Package.StudentName)

	_, err = svc.ExportStudentPackage(ctx, "ghost")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
}

func TestOpenExportWithSignedToken(t *testing.T) {
	svc, store := newDistribution(t, 0)
	_, err := store.UpsertLesson(context.Background(), greetingsLesson())
	require.NoError(t, err)
	export, err := svc.ExportLessonFile(context.Background(), "l1")
	require.NoError(t, err)

	token := strings.TrimPrefix(export.DownloadURL, "/api/v1/exports/download/")
	file, name, err := svc.OpenExport(token)
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, "Greetings.json", name)
	data, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, export.Data, data)

	_, _, err = svc.OpenExport(token + "x")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
}

func TestPublishSnapshotThenOpen(t *testing.T) {
	svc, store := newDistribution(t, 0)
	ctx := context.Background()

	_, err := svc.OpenPublished()
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))

	_, err = store.UpsertStudent(ctx, models.Student{ID: "st1", Name: "Amy"})
	require.NoError(t, err)
	published, err := svc.PublishSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/student_data.json", published.PublicPath)
	assert.Equal(t, 1, published.Students)

	file, err := svc.OpenPublished()
	require.NoError(t, err)
	defer file.Close()
	data, err := io.ReadAll(file)
	require.NoError(t, err)
	payload, err := ClassifyPayload(data)
	require.NoError(t, err)
	assert.Equal(t, models.PayloadClassroomSnapshot, payload.Kind)
}

func TestPublishSnapshotDropsCachedCopy(t *testing.T) {
	ctx := context.Background()
	store, _ := newMemoryStore(t)
	exports, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	publish, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	cache := NewCacheService(repository.NewMemoryCache(), nil, time.Hour, nil)
	svc := NewDistributionService(store, exports, publish, storage.NewSignedURLSigner("secret", time.Hour), cache,
		DistributionConfig{SnapshotFilename: "class_a.json"}, nil, nil)

	stale := models.ClassroomSnapshot{GeneratedAt: 1, Students: []models.Student{{ID: "old", Name: "Old"}}}
	require.NoError(t, cache.StoreSnapshot(ctx, "class_a.json", stale))
	require.NoError(t, cache.StoreSnapshot(ctx, "class_b.json", stale))

	_, err = svc.PublishSnapshot(ctx)
	require.NoError(t, err)

	_, ok := cache.LoadSnapshot(ctx, "class_a.json")
	assert.False(t, ok)
	_, ok = cache.LoadSnapshot(ctx, "class_b.json")
	assert.True(t, ok)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "untitled", sanitizeFilename("  "))
	assert.Equal(t, "Lesson_1-_Dim_Sum", sanitizeFilename("Lesson 1: Dim Sum"))
	assert.Equal(t, "a-b", sanitizeFilename("a/b"))
	assert.Equal(t, "飲茶", sanitizeFilename("飲茶"))
}
