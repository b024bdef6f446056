package editor

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"timetracker/internal/cache"
	"timetracker/internal/core"
	"timetracker/internal/log"
)

var ErrSessionNotFound = errors.New("editor session not found")

// Manager keeps open editor sessions keyed by a random id. Sessions that
// expire or get pushed out by capacity are closed, which stops their timers.
type Manager struct {
	sessions *cache.LRUCache[*Session]
	ticker   TickerFunc
	logger   *log.Logger
}

type ManagerConfig struct {
	MaxSessions int
	TTL         time.Duration
	Ticker      TickerFunc
	Logger      *log.Logger
}

func NewManager(cfg ManagerConfig) *Manager {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 256
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 12 * time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Discard()
	}
	m := &Manager{ticker: cfg.Ticker, logger: cfg.Logger.WithComponent(log.ComponentEditor)}
	m.sessions = cache.NewLRUCache[*Session](cfg.MaxSessions, cfg.TTL,
		cache.WithSlidingExpiration[*Session](),
		cache.WithEvictHandler(func(id string, s *Session) {
			if !s.Closed() {
				m.logger.Debug("Editor session evicted", log.FieldSessionID, id)
			}
			s.Close()
		}),
	)
	return m
}

// Cleaner exposes the session cache for periodic expiry.
func (m *Manager) Cleaner() cache.Cleaner {
	return m.sessions
}

// Open registers a new session and returns its id.
func (m *Manager) Open(date string, entry *core.TimeEntry, categories []core.Category) (string, *Session) {
	var opts []Option
	if m.ticker != nil {
		opts = append(opts, WithTicker(m.ticker))
	}
	s := Open(date, entry, categories, opts...)
	id := uuid.NewString()
	m.sessions.Set(id, s)
	m.logger.Debug("Editor session opened", log.FieldSessionID, id, log.FieldEntryID, s.EntryID())
	return id, s
}

// Get returns an open session.
func (m *Manager) Get(id string) (*Session, error) {
	s, ok := m.sessions.Get(id)
	if !ok || s.Closed() {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Close discards a session. Closing an unknown id is a no-op.
func (m *Manager) Close(id string) {
	m.sessions.Delete(id)
}

// Len returns the number of tracked sessions.
func (m *Manager) Len() int {
	return m.sessions.Size()
}
