package service

import (
	"crypto/subtle"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/canto-lessons/internal/models"
	appErrors "github.com/noah-isme/canto-lessons/pkg/errors"
	"github.com/noah-isme/canto-lessons/pkg/sharelink"
)

// PINGate keeps students from wandering into the teacher screens. It is a UX
// convenience and not authentication: the PIN is a shared configuration
// value, it guards no data, and anyone with the value gets in.
type PINGate struct {
	pin string
}

// NewPINGate builds a gate for pin. An empty pin leaves the gate open.
func NewPINGate(pin string) *PINGate {
	return &PINGate{pin: strings.TrimSpace(pin)}
}

// Allows reports whether entered matches the configured PIN.
func (g *PINGate) Allows(entered string) bool {
	if g == nil || g.pin == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(entered)), []byte(g.pin)) == 1
}

var dataFilePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*\.json$`)

// ParseNavigation extracts the student id, snapshot file override and share
// token from a portal URL. The student id may come from a `student` or `id`
// query parameter or a /student/<id> route segment, in the path or in a
// hash route. All parts are optional.
func ParseNavigation(raw string) (models.Navigation, error) {
	var nav models.Navigation
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nav, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nav, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "portal address is not a valid URL")
	}

	if idx := strings.Index(raw, sharelink.FragmentPrefix); idx >= 0 {
		nav.ShareToken = sharelink.ExtractToken(raw[idx:])
	}

	query := u.Query()
	routePath := u.Path
	if frag := u.Fragment; frag != "" && nav.ShareToken == "" {
		fragPath, fragQuery, _ := strings.Cut(frag, "?")
		if strings.HasPrefix(fragPath, "/") {
			routePath = fragPath
		}
		if values, err := url.ParseQuery(fragQuery); err == nil {
			for key, v := range values {
				if query.Get(key) == "" {
					query[key] = v
				}
			}
		}
	}

	nav.StudentID = strings.TrimSpace(query.Get("student"))
	if nav.StudentID == "" {
		nav.StudentID = strings.TrimSpace(query.Get("id"))
	}
	if nav.StudentID == "" {
		nav.StudentID = studentFromPath(routePath)
	}

	if data := strings.TrimSpace(query.Get("data")); data != "" {
		if !dataFilePattern.MatchString(data) || strings.Contains(data, "..") {
			return models.Navigation{}, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("data file %q must be a plain .json file name", data))
		}
		nav.DataFile = data
	}
	return nav, nil
}

func studentFromPath(p string) string {
	segments := strings.Split(strings.Trim(p, "/"), "/")
	for i := 0; i+1 < len(segments); i++ {
		if segments[i] == "student" {
			if id, err := url.PathUnescape(segments[i+1]); err == nil {
				return strings.TrimSpace(id)
			}
		}
	}
	return ""
}

type lessonLookup interface {
	Lesson(id string) (models.Lesson, bool)
}

// allowedTransitions lists the modes reachable from each mode.
var allowedTransitions = map[models.Mode][]models.Mode{
	models.ModeRoleSelect:       {models.ModeTeacherDashboard, models.ModeStudentPortal},
	models.ModeTeacherDashboard: {models.ModeTeacherEditor, models.ModeStudentPortal, models.ModeRoleSelect},
	models.ModeTeacherEditor:    {models.ModeTeacherDashboard, models.ModeRoleSelect},
	models.ModeStudentPortal:    {models.ModeTeacherDashboard, models.ModeRoleSelect},
}

// SessionController tracks which screen each session is on.
type SessionController struct {
	gate    *PINGate
	lessons lessonLookup
	logger  *zap.Logger
	now     func() time.Time
	idleTTL time.Duration

	mu       sync.Mutex
	sessions map[string]models.SessionState
}

// NewSessionController constructs a SessionController.
func NewSessionController(gate *PINGate, lessons lessonLookup, idleTTL time.Duration, logger *zap.Logger) *SessionController {
	if logger == nil {
		logger = zap.NewNop()
	}
	if idleTTL <= 0 {
		idleTTL = 12 * time.Hour
	}
	return &SessionController{
		gate:     gate,
		lessons:  lessons,
		logger:   logger,
		now:      time.Now,
		idleTTL:  idleTTL,
		sessions: make(map[string]models.SessionState),
	}
}

// Get returns the session, starting a new one at ROLE_SELECT when id is empty or unknown.
func (c *SessionController) Get(id string) models.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(id)
}

// EnterTeacher moves to the teacher dashboard when pin passes the gate.
func (c *SessionController) EnterTeacher(id, pin string) (models.SessionState, error) {
	if !c.gate.Allows(pin) {
		c.logger.Info("teacher PIN rejected", zap.String("session_id", id))
		return models.SessionState{}, appErrors.Clone(appErrors.ErrPINRejected, "incorrect PIN")
	}
	return c.transition(id, models.ModeTeacherDashboard, func(s *models.SessionState) error {
		s.EditLessonID = ""
		return nil
	})
}

// OpenEditor opens the editor on lessonID, or on a new draft when lessonID is empty.
func (c *SessionController) OpenEditor(id, lessonID string) (models.SessionState, error) {
	if lessonID != "" && c.lessons != nil {
		if _, ok := c.lessons.Lesson(lessonID); !ok {
			return models.SessionState{}, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
	}
	return c.transition(id, models.ModeTeacherEditor, func(s *models.SessionState) error {
		s.EditLessonID = lessonID
		return nil
	})
}

// CloseEditor returns to the dashboard.
func (c *SessionController) CloseEditor(id string) (models.SessionState, error) {
	return c.transition(id, models.ModeTeacherDashboard, func(s *models.SessionState) error {
		if s.Mode != models.ModeTeacherEditor {
			return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("no editor is open in %s", s.Mode))
		}
		s.EditLessonID = ""
		return nil
	})
}

// EnterPortal switches to the student portal with the navigation parsed from rawURL.
func (c *SessionController) EnterPortal(id, rawURL string) (models.SessionState, error) {
	nav, err := ParseNavigation(rawURL)
	if err != nil {
		return models.SessionState{}, err
	}
	return c.transition(id, models.ModeStudentPortal, func(s *models.SessionState) error {
		s.EditLessonID = ""
		s.Navigation = nav
		return nil
	})
}

// Exit returns to role selection.
func (c *SessionController) Exit(id string) (models.SessionState, error) {
	return c.transition(id, models.ModeRoleSelect, func(s *models.SessionState) error {
		s.EditLessonID = ""
		s.Navigation = models.Navigation{}
		return nil
	})
}

// Prune drops sessions idle for longer than the configured TTL.
func (c *SessionController) Prune() int {
	cutoff := c.now().Add(-c.idleTTL)
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for id, s := range c.sessions {
		if s.UpdatedAt.Before(cutoff) {
			delete(c.sessions, id)
			removed++
		}
	}
	return removed
}

func (c *SessionController) transition(id string, to models.Mode, apply func(*models.SessionState) error) (models.SessionState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state := c.getLocked(id)
	if state.Mode != to && !canTransition(state.Mode, to) {
		return state, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("cannot move from %s to %s", state.Mode, to))
	}
	next := state
	if err := apply(&next); err != nil {
		return state, err
	}
	next.Mode = to
	next.UpdatedAt = c.now().UTC()
	c.sessions[next.ID] = next
	c.logger.Debug("session mode changed", zap.String("session_id", next.ID), zap.String("from", string(state.Mode)), zap.String("to", string(to)))
	return next, nil
}

func (c *SessionController) getLocked(id string) models.SessionState {
	if id != "" {
		if s, ok := c.sessions[id]; ok {
			return s
		}
	} else {
		id = uuid.NewString()
	}
	s := models.SessionState{ID: id, Mode: models.ModeRoleSelect, UpdatedAt: c.now().UTC()}
	c.sessions[id] = s
	return s
}

func canTransition(from, to models.Mode) bool {
	for _, m := range allowedTransitions[from] {
		if m == to {
			return true
		}
	}
	return false
}
