package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/canto-lessons/internal/models"
)

// PortalConfig tunes the student portal.
type PortalConfig struct {
	DefaultFilename string
	IdleTTL         time.Duration
}

type portalSession struct {
	reconciler *Reconciler
	lastUsed   time.Time
}

// PortalService keeps one Reconciler per portal session so that each open
// student view tracks its own load epoch.
type PortalService struct {
	local   localSource
	fetcher snapshotSource
	cache   snapshotCache
	metrics *MetricsService
	logger  *zap.Logger
	cfg     PortalConfig
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*portalSession
}

// NewPortalService constructs a PortalService. cache may be nil.
func NewPortalService(local localSource, fetcher snapshotSource, cache snapshotCache, cfg PortalConfig, metrics *MetricsService, logger *zap.Logger) *PortalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 2 * time.Hour
	}
	return &PortalService{
		local:    local,
		fetcher:  fetcher,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
		sessions: make(map[string]*portalSession),
	}
}

// Load resolves the student view for nav within the given portal session. An
// empty sessionID opens a new session; the id in use is always returned.
func (s *PortalService) Load(ctx context.Context, sessionID string, nav models.Navigation) (string, *models.StudentView, error) {
	id, r := s.session(sessionID)
	view, err := r.Load(ctx, nav)
	return id, view, err
}

// Upload applies a hand-picked file within the given portal session.
func (s *PortalService) Upload(ctx context.Context, sessionID string, raw []byte, studentID string) (string, *models.StudentView, error) {
	id, r := s.session(sessionID)
	view, err := r.Upload(ctx, raw, studentID)
	return id, view, err
}

// State reports the load state of a session. Unknown sessions are INIT.
func (s *PortalService) State(sessionID string) (models.LoadState, *models.StudentView) {
	s.mu.Lock()
	entry, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return models.LoadInit, nil
	}
	return entry.reconciler.State()
}

// Prune drops sessions idle for longer than the configured TTL.
func (s *PortalService) Prune() int {
	cutoff := s.now().Add(-s.cfg.IdleTTL)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, entry := range s.sessions {
		if entry.lastUsed.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug("pruned portal sessions", zap.Int("removed", removed), zap.Int("remaining", len(s.sessions)))
	}
	return removed
}

func (s *PortalService) session(sessionID string) (string, *Reconciler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	entry, ok := s.sessions[sessionID]
	if !ok {
		entry = &portalSession{
			reconciler: NewReconciler(s.local, s.fetcher, s.cache, s.cfg.DefaultFilename, s.metrics, s.logger.With(zap.String("portal_session", sessionID))),
		}
		s.sessions[sessionID] = entry
	}
	entry.lastUsed = s.now()
	return sessionID, entry.reconciler
}
