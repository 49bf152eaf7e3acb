package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/canto-lessons/internal/models"
	appErrors "github.com/noah-isme/canto-lessons/pkg/errors"
)

type localSource interface {
	HasStudents() bool
	PackageFor(studentID string) (models.StudentPackage, bool)
	ListLessons() []models.Lesson
}

type snapshotSource interface {
	Fetch(ctx context.Context, filename string) (*FetchResult, error)
}

type snapshotCache interface {
	StoreSnapshot(ctx context.Context, filename string, snapshot models.ClassroomSnapshot) error
	LoadSnapshot(ctx context.Context, filename string) (models.ClassroomSnapshot, bool)
}

// Reconciler resolves what a student sees from, in priority order, the
// published snapshot, a share link or this device's own store. Each Load or
// Upload takes a new epoch; a result that finishes after a newer call started
// is dropped.
type Reconciler struct {
	local           localSource
	fetcher         snapshotSource
	cache           snapshotCache
	metrics         *MetricsService
	logger          *zap.Logger
	defaultFilename string
	now             func() time.Time

	mu      sync.Mutex
	epoch   uint64
	state   models.LoadState
	current *models.StudentView
}

// NewReconciler constructs a Reconciler in the INIT state. cache may be nil.
func NewReconciler(local localSource, fetcher snapshotSource, cache snapshotCache, defaultFilename string, metrics *MetricsService, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultFilename == "" {
		defaultFilename = "student_data.json"
	}
	return &Reconciler{
		local:           local,
		fetcher:         fetcher,
		cache:           cache,
		metrics:         metrics,
		logger:          logger,
		defaultFilename: defaultFilename,
		now:             time.Now,
		state:           models.LoadInit,
	}
}

// State returns the current load state and the last view that was applied.
func (r *Reconciler) State() (models.LoadState, *models.StudentView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return r.state, nil
	}
	view := *r.current
	return r.state, &view
}

// Load resolves the view for nav. A fatal error leaves the reconciler in
// FETCH_FAILED or PARSE_FAILED and carries remediation text for the student.
func (r *Reconciler) Load(ctx context.Context, nav models.Navigation) (*models.StudentView, error) {
	epoch := r.begin(nav.StudentID != "")

	var (
		view  *models.StudentView
		state models.LoadState
		err   error
	)
	switch {
	case nav.StudentID != "":
		view, state, err = r.loadFromNetwork(ctx, nav)
	case nav.ShareToken != "":
		view, state, err = r.loadFromLink(nav.ShareToken)
	default:
		view, state = r.loadLocal(), models.LoadReady
	}
	return r.commit(epoch, view, state, err)
}

// Upload applies a file the student chose by hand. The document shape decides
// how it is used; a malformed file changes nothing.
func (r *Reconciler) Upload(ctx context.Context, raw []byte, studentID string) (*models.StudentView, error) {
	payload, err := ClassifyPayload(raw)
	if err != nil {
		return nil, err
	}

	view := &models.StudentView{Source: models.SourceUpload}
	switch payload.Kind {
	case models.PayloadClassroomSnapshot:
		snapshot := *payload.Snapshot
		r.storeSnapshot(ctx, r.defaultFilename, snapshot)
		if studentID == "" {
			view.Package = models.StudentPackage{GeneratedAt: snapshot.GeneratedAt, Lessons: models.CloneLessons(snapshot.Lessons)}
			view.Warnings = append(view.Warnings, "No student was selected, so every lesson in the file is shown.")
			break
		}
		student, ok := snapshot.FindStudent(studentID)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("student %q is not in the uploaded file", studentID))
		}
		view.Package = snapshot.PackageFor(student)
	case models.PayloadStudentPackage:
		view.Package = *payload.Package
	case models.PayloadLesson:
		view.Package = models.StudentPackage{GeneratedAt: payload.Lesson.CreatedAt, Lessons: []models.Lesson{*payload.Lesson}}
	}

	epoch := r.begin(false)
	return r.commit(epoch, view, models.LoadReady, nil)
}

func (r *Reconciler) loadFromNetwork(ctx context.Context, nav models.Navigation) (*models.StudentView, models.LoadState, error) {
	filename := nav.DataFile
	if filename == "" {
		filename = r.defaultFilename
	}
	hasLocal := r.local.HasStudents()

	res, err := r.fetcher.Fetch(ctx, filename)
	if err != nil || !res.OK() {
		var reason string
		if err != nil {
			reason = err.Error()
		} else {
			reason = "HTTP " + res.Status
		}
		if hasLocal {
			r.logger.Warn("snapshot fetch failed; using local data",
				zap.String("file", filename),
				zap.String("student_id", nav.StudentID),
				zap.String("reason", reason))
			return r.fallback(ctx, nav.StudentID, filename), models.LoadReady, nil
		}
		url := ""
		if res != nil {
			url = res.URL
		}
		return nil, models.LoadFetchFailed, fetchFailedError(filename, reason, url)
	}

	payload, err := ClassifyPayload(res.Body)
	if err != nil {
		if hasLocal {
			r.logger.Warn("snapshot is not valid; using local data", zap.String("file", filename), zap.Error(err))
			return r.fallback(ctx, nav.StudentID, filename), models.LoadReady, nil
		}
		return nil, models.LoadParseFailed, parseFailedError(err, filename)
	}

	view := &models.StudentView{Source: models.SourceNetwork}
	switch payload.Kind {
	case models.PayloadClassroomSnapshot:
		snapshot := *payload.Snapshot
		r.storeSnapshot(ctx, filename, snapshot)
		student, ok := snapshot.FindStudent(nav.StudentID)
		if ok {
			view.Package = snapshot.PackageFor(student)
			return view, models.LoadReady, nil
		}
		warning := fmt.Sprintf("Student %q is not listed in %s.", nav.StudentID, filename)
		if !hasLocal {
			return nil, models.LoadFetchFailed, appErrors.WithRemediation(
				appErrors.Clone(appErrors.ErrSnapshotUnavailable, fmt.Sprintf("could not load lessons: student %q is not listed in %s", nav.StudentID, filename)),
				"Check the link your teacher sent, or ask them to assign you lessons and publish "+filename+" again.")
		}
		fallback := r.fallback(ctx, nav.StudentID, filename)
		fallback.Warnings = append([]string{warning}, fallback.Warnings...)
		return fallback, models.LoadReady, nil
	case models.PayloadStudentPackage:
		view.Package = *payload.Package
	case models.PayloadLesson:
		view.Package = models.StudentPackage{GeneratedAt: payload.Lesson.CreatedAt, Lessons: []models.Lesson{*payload.Lesson}}
	}
	return view, models.LoadReady, nil
}

func (r *Reconciler) loadFromLink(token string) (*models.StudentView, models.LoadState, error) {
	lesson, err := DecodeLessonLink(token)
	if err != nil {
		return nil, models.LoadParseFailed, appErrors.WithRemediation(appErrors.FromError(err),
			"Ask your teacher to send the link again, or to send the lesson as a file instead.")
	}
	return &models.StudentView{
		Source:  models.SourceLink,
		Package: models.StudentPackage{GeneratedAt: lesson.CreatedAt, Lessons: []models.Lesson{lesson}},
	}, models.LoadReady, nil
}

func (r *Reconciler) loadLocal() *models.StudentView {
	return &models.StudentView{
		Source:  models.SourceLocal,
		Package: models.StudentPackage{GeneratedAt: r.now().UnixMilli(), Lessons: r.local.ListLessons()},
	}
}

// fallback resolves studentID from this device's store, then from the last
// snapshot cached for filename, and otherwise returns an empty view.
func (r *Reconciler) fallback(ctx context.Context, studentID, filename string) *models.StudentView {
	if pkg, ok := r.local.PackageFor(studentID); ok {
		return &models.StudentView{Source: models.SourceLocal, Package: pkg}
	}
	if r.cache != nil {
		if snapshot, ok := r.cache.LoadSnapshot(ctx, filename); ok {
			if student, found := snapshot.FindStudent(studentID); found {
				return &models.StudentView{Source: models.SourceCache, Package: snapshot.PackageFor(student)}
			}
		}
	}
	return &models.StudentView{
		Source:   models.SourceNone,
		Package:  models.StudentPackage{Lessons: []models.Lesson{}},
		Warnings: []string{fmt.Sprintf("No lessons for student %q were found on this device.", studentID)},
	}
}

func (r *Reconciler) storeSnapshot(ctx context.Context, filename string, snapshot models.ClassroomSnapshot) {
	if r.cache == nil {
		return
	}
	if err := r.cache.StoreSnapshot(ctx, filename, snapshot); err != nil {
		r.logger.Warn("failed to cache snapshot", zap.String("file", filename), zap.Error(err))
	}
}

func (r *Reconciler) begin(fetching bool) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.epoch++
	if fetching {
		r.state = models.LoadFetching
	}
	return r.epoch
}

func (r *Reconciler) commit(epoch uint64, view *models.StudentView, state models.LoadState, err error) (*models.StudentView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if epoch != r.epoch {
		r.logger.Debug("discarding superseded load", zap.Uint64("epoch", epoch), zap.Uint64("current", r.epoch))
		return nil, appErrors.Clone(appErrors.ErrSuperseded, "a newer load replaced this one")
	}
	r.state = state
	if err != nil {
		r.metrics.RecordViewSource(string(models.SourceNone), string(state))
		return nil, err
	}
	if view.Package.Lessons == nil {
		view.Package.Lessons = []models.Lesson{}
	}
	view.State = state
	view.Epoch = epoch
	view.LoadedAt = r.now().UTC()
	r.current = view
	r.metrics.RecordViewSource(string(view.Source), string(state))
	out := *view
	return &out, nil
}

func fetchFailedError(filename, reason, url string) error {
	appErr := appErrors.Clone(appErrors.ErrSnapshotUnavailable, fmt.Sprintf("could not load %s (%s)", filename, reason))
	return appErrors.WithRemediation(appErr, uploadChecklist(filename, url))
}

func parseFailedError(err error, filename string) error {
	appErr := appErrors.FromError(err)
	appErr = appErrors.Clone(appErr, fmt.Sprintf("%s is not a valid classroom file: %s", filename, appErr.Message))
	return appErrors.WithRemediation(appErr, uploadChecklist(filename, ""))
}

func uploadChecklist(filename, url string) string {
	check := "Open the file's address in a browser to confirm it is reachable."
	if url != "" {
		check = "Open " + url + " in a browser to confirm it is reachable."
	}
	return fmt.Sprintf("1. In teacher mode, export the classroom snapshot. 2. Upload it to the site root as %s, without renaming it. 3. %s 4. Or upload a lesson file you received directly on this page.", filename, check)
}
