package services

import (
	"context"
	"sync"
	"time"

	"duotask/internal/engine"
	"duotask/internal/models"
	"duotask/internal/notify"
	"duotask/internal/realtime"
	"duotask/internal/store"
	"duotask/internal/watchdog"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog"
)

// Session is one user's live client core: the sync engine with its event
// loop plus the deadline watchdog. It exists from login to logout.
type Session struct {
	Engine   *engine.Engine
	Watchdog *watchdog.Watchdog
	cancel   context.CancelFunc
}

type SessionConfig struct {
	Store         store.TaskStore
	Bus           realtime.Bus
	Notifier      notify.Notifier
	WeekStart     time.Weekday
	SweepInterval time.Duration
	DueSoonWindow time.Duration
	Logger        zerolog.Logger
}

// SessionManager constructs and tears down per-user sessions so nothing
// task-scoped lives in ambient globals.
type SessionManager struct {
	config SessionConfig

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

func NewSessionManager(config SessionConfig) *SessionManager {
	return &SessionManager{
		config:   config,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Open returns the user's session, creating it on first use: the mirror
// is fetched, the realtime loop starts, and the watchdog begins sweeping.
func (m *SessionManager) Open(ctx context.Context, user models.Profile) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session, ok := m.sessions[user.ID]; ok {
		return session, nil
	}

	eng := engine.New(engine.Config{
		Store:     m.config.Store,
		Bus:       m.config.Bus,
		Sub:       m.config.Bus,
		Notifier:  m.config.Notifier,
		User:      user,
		WeekStart: m.config.WeekStart,
		Logger:    m.config.Logger,
	})

	// Initial fetch fails open to an empty mirror; the session still
	// starts and realtime events fill it in.
	if err := eng.FetchAll(ctx); err != nil {
		m.config.Logger.Warn().Err(err).Str("user_id", user.ID.String()).Msg("session started with empty mirror")
	}

	runCtx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := eng.Run(runCtx); err != nil && runCtx.Err() == nil {
			m.config.Logger.Error().Err(err).Str("user_id", user.ID.String()).Msg("engine event loop exited")
		}
	}()

	dog := watchdog.New(watchdog.Config{
		Store:         m.config.Store,
		Bus:           m.config.Bus,
		Notifier:      m.config.Notifier,
		Snapshot:      eng.Tasks,
		User:          user,
		SweepInterval: m.config.SweepInterval,
		DueSoonWindow: m.config.DueSoonWindow,
		Logger:        m.config.Logger,
	})
	dog.Start()

	session := &Session{Engine: eng, Watchdog: dog, cancel: cancel}
	m.sessions[user.ID] = session
	return session, nil
}

// Get returns the live session without creating one.
func (m *SessionManager) Get(userID uuid.UUID) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[userID]
	return session, ok
}

// Close stops the watchdog and the realtime loop. In-flight store calls
// are not cancelled; their late responses land on a dead session and are
// ignored.
func (m *SessionManager) Close(userID uuid.UUID) {
	m.mu.Lock()
	session, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()

	if !ok {
		return
	}
	session.Watchdog.Stop()
	session.cancel()
}

func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	ids := make([]uuid.UUID, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.Close(id)
	}
}
