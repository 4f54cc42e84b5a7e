package handlers

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sirupsen/logrus"

	"relief-route-viewer/internal/metrics"
	"relief-route-viewer/internal/models"
	"relief-route-viewer/internal/viewer"
)

// ViewSession is one open view of a run. All access to the controller goes
// through With, which serialises requests and stream messages of the session.
type ViewSession struct {
	ID        string
	RunID     string
	RunLabel  string
	CreatedAt time.Time

	mu   sync.Mutex
	ctrl *viewer.Controller
}

// With runs fn while holding the session lock
func (s *ViewSession) With(fn func(*viewer.Controller) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.ctrl)
}

// ViewSessionStore manages view sessions in memory
type ViewSessionStore struct {
	sessions *xsync.MapOf[string, *ViewSession]
	options  []viewer.Option
}

// NewViewSessionStore creates a new session store. The options are applied to
// the controller of every session.
func NewViewSessionStore(opts ...viewer.Option) *ViewSessionStore {
	return &ViewSessionStore{
		sessions: xsync.NewMapOf[string, *ViewSession](),
		options:  opts,
	}
}

// Create opens a session on run
func (s *ViewSessionStore) Create(run *models.Run) *ViewSession {
	id := uuid.NewString()
	logger := logrus.WithFields(logrus.Fields{"component": "viewer", "session": id, "run": run.ID})

	opts := append([]viewer.Option{viewer.WithLogger(logger)}, s.options...)
	session := &ViewSession{
		ID:        id,
		RunID:     run.ID,
		RunLabel:  run.Label,
		CreatedAt: time.Now(),
		ctrl:      viewer.New(&run.Geo, &run.Solutions, opts...),
	}

	s.sessions.Store(id, session)
	metrics.ActiveSessions.Inc()
	logger.WithField("solutions", session.ctrl.SolutionCount()).Info("Created view session")
	return session
}

// Get returns the session with id, or nil
func (s *ViewSessionStore) Get(id string) *ViewSession {
	session, _ := s.sessions.Load(id)
	return session
}

// Delete closes one session
func (s *ViewSessionStore) Delete(id string) {
	if _, ok := s.sessions.LoadAndDelete(id); ok {
		metrics.ActiveSessions.Dec()
		log.WithField("session", id).Info("Deleted view session")
	}
}

// DeleteForRun closes every session of a run and returns how many there were
func (s *ViewSessionStore) DeleteForRun(runID string) int {
	var ids []string
	s.sessions.Range(func(id string, session *ViewSession) bool {
		if session.RunID == runID {
			ids = append(ids, id)
		}
		return true
	})
	for _, id := range ids {
		s.Delete(id)
	}
	return len(ids)
}

// Count returns the number of open sessions
func (s *ViewSessionStore) Count() int {
	return s.sessions.Size()
}
