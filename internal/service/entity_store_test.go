package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/canto-lessons/internal/models"
	"github.com/noah-isme/canto-lessons/internal/repository"
	appErrors "github.com/noah-isme/canto-lessons/pkg/errors"
)

func TestEntityStoreUpsertThenLookupIsDeepEqual(t *testing.T) {
	store, _ := newMemoryStore(t)
	ctx := context.Background()

	lesson := greetingsLesson()
	saved, err := store.UpsertLesson(ctx, lesson)
	require.NoError(t, err)
	assert.Equal(t, lesson, saved)

	got, ok := store.Lesson("l1")
	require.True(t, ok)
	assert.Equal(t, lesson, got)

	got.Sentences[0].Words[0].Jyutping[0] = "mutated"
	again, _ := store.Lesson("l1")
	assert.Equal(t, "nei5", again.Sentences[0].Words[0].Jyutping[0])
}

func TestEntityStoreUpsertKeepsLessonsAsGiven(t *testing.T) {
	store, _ := newMemoryStore(t)
	ctx := context.Background()

	padded := greetingsLesson()
	padded.Title = "Greetings "

	embed := greetingsLesson()
	embed.ID = "l2"
	embed.MediaURL = "https://drive.google.com/file/d/abc/preview"
	embed.MediaType = models.MediaVideo

	claimedImage := greetingsLesson()
	claimedImage.ID = "l3"
	claimedImage.MediaURL = "https://cdn.example.com/render?id=42"
	claimedImage.MediaType = models.MediaImage

	for _, lesson := range []models.Lesson{padded, embed, claimedImage} {
		saved, err := store.UpsertLesson(ctx, lesson)
		require.NoError(t, err, lesson.ID)
		assert.Equal(t, lesson, saved)

		got, ok := store.Lesson(lesson.ID)
		require.True(t, ok)
		assert.Equal(t, lesson, got)
	}

	student := models.Student{ID: "st1", Name: " Amy", AssignedLessonIDs: []string{"l1"}}
	savedStudent, err := store.UpsertStudent(ctx, student)
	require.NoError(t, err)
	assert.Equal(t, student, savedStudent)
}

func TestEntityStoreUpsertOrdering(t *testing.T) {
	store, _ := newMemoryStore(t)
	ctx := context.Background()

	first := greetingsLesson()
	second := greetingsLesson()
	second.ID = "l2"
	second.Title = "Numbers"

	_, err := store.UpsertLesson(ctx, first)
	require.NoError(t, err)
	_, err = store.UpsertLesson(ctx, second)
	require.NoError(t, err)

	first.Title = "Greetings, revised"
	_, err = store.UpsertLesson(ctx, first)
	require.NoError(t, err)

	lessons := store.ListLessons()
	require.Len(t, lessons, 2)
	assert.Equal(t, "l2", lessons[0].ID, "new lessons are listed first")
	assert.Equal(t, "Greetings, revised", lessons[1].Title, "replace keeps position")
}

func TestEntityStoreUpsertGeneratesIDs(t *testing.T) {
	store, _ := newMemoryStore(t)
	store.now = func() time.Time { return time.UnixMilli(5000) }
	ids := []string{"gen-lesson", "gen-sentence"}
	store.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	saved, err := store.UpsertLesson(context.Background(), models.Lesson{
		Title:     "Untitled draft",
		Sentences: []models.Sentence{{Words: []models.Word{{Char: "我"}}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "gen-lesson", saved.ID)
	assert.Equal(t, int64(5000), saved.CreatedAt)
	assert.Equal(t, "gen-sentence", saved.Sentences[0].ID)
	assert.Equal(t, []string{}, saved.Sentences[0].Words[0].Jyutping)
}

func TestEntityStoreUpsertKeepsCreatedAt(t *testing.T) {
	store, _ := newMemoryStore(t)
	ctx := context.Background()
	_, err := store.UpsertLesson(ctx, greetingsLesson())
	require.NoError(t, err)

	edit := greetingsLesson()
	edit.CreatedAt = 0
	saved, err := store.UpsertLesson(ctx, edit)
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000000), saved.CreatedAt)
}

func TestEntityStoreRejectsInvalidLessons(t *testing.T) {
	store, _ := newMemoryStore(t)
	ctx := context.Background()

	badSelection := greetingsLesson()
	badSelection.Sentences[0].Words[1].SelectedJyutping = "hou9"
	_, err := store.UpsertLesson(ctx, badSelection)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))

	dupSentence := greetingsLesson()
	dupSentence.Sentences[1].ID = "s1"
	_, err = store.UpsertLesson(ctx, dupSentence)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))

	noTitle := greetingsLesson()
	noTitle.Title = "  "
	_, err = store.UpsertLesson(ctx, noTitle)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))

	assert.Empty(t, store.ListLessons())
}

func TestEntityStoreNormalizesMedia(t *testing.T) {
	store, _ := newMemoryStore(t)
	lesson := greetingsLesson()
	lesson.MediaURL = "https://youtu.be/dQw4w9WgXcQ"

	saved, err := store.UpsertLesson(context.Background(), lesson)
	require.NoError(t, err)
	assert.Equal(t, "https://www.youtube.com/embed/dQw4w9WgXcQ", saved.MediaURL)
	assert.Equal(t, models.MediaVideo, saved.MediaType)

	lesson.MediaURL = "https://example.com/player/clip"
	lesson.MediaType = ""
	saved, err = store.UpsertLesson(context.Background(), lesson)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/player/clip", saved.MediaURL)
	assert.Equal(t, models.MediaVideo, saved.MediaType)
}

func TestEntityStoreAssignIsIdempotent(t *testing.T) {
	store, substrate := newMemoryStore(t)
	ctx := context.Background()

	_, err := store.UpsertLesson(ctx, greetingsLesson())
	require.NoError(t, err)
	_, err = store.UpsertStudent(ctx, models.Student{ID: "st1", Name: "Amy"})
	require.NoError(t, err)

	once, err := store.AssignLesson(ctx, "st1", "l1")
	require.NoError(t, err)

	substrate.FailWrites(errors.New("should not write"))
	twice, err := store.AssignLesson(ctx, "st1", "l1")
	require.NoError(t, err, "repeat assignment must not touch storage")
	assert.Equal(t, once, twice)
	assert.Equal(t, []string{"l1"}, twice.AssignedLessonIDs)
}

func TestEntityStoreAssignNewestFirstAndUnassign(t *testing.T) {
	store, _ := newMemoryStore(t)
	ctx := context.Background()
	for _, id := range []string{"l1", "l2"} {
		lesson := greetingsLesson()
		lesson.ID = id
		_, err := store.UpsertLesson(ctx, lesson)
		require.NoError(t, err)
	}
	_, err := store.UpsertStudent(ctx, models.Student{ID: "st1", Name: "Amy"})
	require.NoError(t, err)

	_, err = store.AssignLesson(ctx, "st1", "l1")
	require.NoError(t, err)
	student, err := store.AssignLesson(ctx, "st1", "l2")
	require.NoError(t, err)
	assert.Equal(t, []string{"l2", "l1"}, student.AssignedLessonIDs)

	student, err = store.UnassignLesson(ctx, "st1", "l2")
	require.NoError(t, err)
	assert.Equal(t, []string{"l1"}, student.AssignedLessonIDs)

	_, err = store.AssignLesson(ctx, "st1", "nope")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
	_, err = store.AssignLesson(ctx, "ghost", "l1")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
}

func TestEntityStoreDeleteLessonLeavesDanglingIDs(t *testing.T) {
	store, _ := newMemoryStore(t)
	ctx := context.Background()
	_, err := store.UpsertLesson(ctx, greetingsLesson())
	require.NoError(t, err)
	_, err = store.UpsertStudent(ctx, models.Student{ID: "st1", Name: "Amy", AssignedLessonIDs: []string{"l1", "l1"}})
	require.NoError(t, err)

	require.NoError(t, store.DeleteLesson(ctx, "l1"))

	student, ok := store.Student("st1")
	require.True(t, ok)
	assert.Equal(t, []string{"l1"}, student.AssignedLessonIDs)

	lessons, ok := store.LessonsForStudent("st1")
	require.True(t, ok)
	assert.Empty(t, lessons)

	err = store.DeleteLesson(ctx, "l1")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
}

func TestEntityStoreNeverReusesDeletedIDs(t *testing.T) {
	store, substrate := newMemoryStore(t)
	ctx := context.Background()
	_, err := store.UpsertLesson(ctx, greetingsLesson())
	require.NoError(t, err)
	_, err = store.UpsertStudent(ctx, models.Student{ID: "st1", Name: "Amy"})
	require.NoError(t, err)

	require.NoError(t, store.DeleteLesson(ctx, "l1"))
	require.NoError(t, store.DeleteStudent(ctx, "st1"))

	_, err = store.UpsertLesson(ctx, greetingsLesson())
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict.Code))
	_, err = store.UpsertStudent(ctx, models.Student{ID: "st1", Name: "Someone else"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict.Code))

	// A lesson may still use an id that only a deleted student had.
	other := greetingsLesson()
	other.ID = "st1"
	_, err = store.UpsertLesson(ctx, other)
	require.NoError(t, err)

	restarted := NewEntityStore(NewPersistenceAdapter(substrate, substrate.Legacy(), "", nil, zap.NewNop()), zap.NewNop())
	require.NoError(t, restarted.Init(ctx))
	_, err = restarted.UpsertLesson(ctx, greetingsLesson())
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict.Code), "retired ids survive a restart")
	_, err = restarted.UpsertStudent(ctx, models.Student{ID: "st1", Name: "Someone else"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict.Code))
}

func TestEntityStoreDeleteFailureKeepsRecord(t *testing.T) {
	store, substrate := newMemoryStore(t)
	ctx := context.Background()
	_, err := store.UpsertLesson(ctx, greetingsLesson())
	require.NoError(t, err)

	substrate.FailWrites(errors.New("quota exceeded"))
	err = store.DeleteLesson(ctx, "l1")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrSaveFailed.Code))
	substrate.FailWrites(nil)

	_, ok := store.Lesson("l1")
	assert.True(t, ok)
	edit := greetingsLesson()
	edit.Title = "Still editable"
	_, err = store.UpsertLesson(ctx, edit)
	require.NoError(t, err)
}

func TestEntityStoreSaveFailureLeavesMemoryUnchanged(t *testing.T) {
	store, substrate := newMemoryStore(t)
	ctx := context.Background()
	_, err := store.UpsertLesson(ctx, greetingsLesson())
	require.NoError(t, err)

	substrate.FailWrites(errors.New("quota exceeded"))
	edit := greetingsLesson()
	edit.Title = "Lost edit"
	_, err = store.UpsertLesson(ctx, edit)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrSaveFailed.Code))
	assert.NotEmpty(t, appErrors.FromError(err).Remediation)

	got, _ := store.Lesson("l1")
	assert.Equal(t, "Greetings", got.Title)

	substrate.FailWrites(nil)
	_, err = store.UpsertLesson(ctx, edit)
	require.NoError(t, err, "retry succeeds once storage recovers")
}

func TestEntityStoreRequiresInit(t *testing.T) {
	substrate := repository.NewMemorySubstrate()
	store := NewEntityStore(NewPersistenceAdapter(substrate, nil, "", nil, nil), nil)

	_, err := store.UpsertLesson(context.Background(), greetingsLesson())
	assert.True(t, appErrors.HasCode(err, appErrors.ErrStorageUnavailable.Code))

	require.NoError(t, store.Init(context.Background()))
	_, err = store.UpsertLesson(context.Background(), greetingsLesson())
	require.NoError(t, err)

	require.NoError(t, store.Close())
	assert.Empty(t, store.ListLessons())
}

func TestEntityStoreReloadsFromSubstrate(t *testing.T) {
	substrate := repository.NewMemorySubstrate()
	adapter := NewPersistenceAdapter(substrate, nil, "", nil, zap.NewNop())
	ctx := context.Background()

	first := NewEntityStore(adapter, nil)
	require.NoError(t, first.Init(ctx))
	_, err := first.UpsertLesson(ctx, greetingsLesson())
	require.NoError(t, err)
	second := greetingsLesson()
	second.ID = "l2"
	_, err = first.UpsertLesson(ctx, second)
	require.NoError(t, err)
	_, err = first.UpsertStudent(ctx, models.Student{ID: "st1", Name: "Amy", AssignedLessonIDs: []string{"l1"}})
	require.NoError(t, err)

	reopened := NewEntityStore(adapter, nil)
	require.NoError(t, reopened.Init(ctx))
	assert.Equal(t, first.ListLessons(), reopened.ListLessons())
	assert.Equal(t, first.ListStudents(), reopened.ListStudents())
	assert.True(t, reopened.HasStudents())
}

func TestEntityStoreSnapshotAndPackage(t *testing.T) {
	store, _ := newMemoryStore(t)
	store.now = func() time.Time { return time.UnixMilli(1000) }
	ctx := context.Background()
	_, err := store.UpsertLesson(ctx, greetingsLesson())
	require.NoError(t, err)
	_, err = store.UpsertStudent(ctx, models.Student{ID: "st1", Name: "Amy", AssignedLessonIDs: []string{"l1", "gone"}})
	require.NoError(t, err)

	snap := store.Snapshot()
	assert.Equal(t, int64(1000), snap.GeneratedAt)
	assert.Len(t, snap.Students, 1)
	assert.Len(t, snap.Lessons, 1)

	pkg, ok := store.PackageFor("st1")
	require.True(t, ok)
	assert.Equal(t, "Amy", pkg.StudentName)
	require.Len(t, pkg.Lessons, 1)
	assert.Equal(t, greetingsLesson(), pkg.Lessons[0])

	_, ok = store.PackageFor("nobody")
	assert.False(t, ok)
}
