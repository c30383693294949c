// manager.go implements the table of open conversations and its expiry sweep.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	eventlog "github.com/berth-dev/slipway/internal/log"
)

var (
	ErrAlreadyOpen   = errors.New("a conversation is already open for this user and channel")
	ErrNoSuchSession = errors.New("no open conversation for this user and channel")
)

// CleanupFunc runs after a conversation closes, typically to delete the
// tracked external messages. It is best-effort: errors are logged only.
type CleanupFunc func(ctx context.Context, t Transcript) error

// Options configure a Manager.
type Options struct {
	Expiry        time.Duration // idle time after which the sweep closes a conversation
	SweepInterval time.Duration // zero disables the background sweep
	Cleanup       CleanupFunc
	Journal       *eventlog.Logger
	Logger        *zap.Logger
	Now           func() time.Time
}

type conversation struct {
	id           string
	key          Key
	state        State
	model        string
	turns        []Turn
	tracked      []string
	createdAt    time.Time
	lastActivity time.Time
}

func (c *conversation) snapshot() Snapshot {
	return Snapshot{
		ID:             c.id,
		Key:            c.key,
		State:          c.state,
		Model:          c.model,
		Turns:          append([]Turn(nil), c.turns...),
		TrackedIDs:     append([]string(nil), c.tracked...),
		CreatedAt:      c.createdAt,
		LastActivityAt: c.lastActivity,
	}
}

// Manager owns every open conversation. mu is held only for table lookups
// and mutations, never while a cleanup callback runs.
type Manager struct {
	opts   Options
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[Key]*conversation
	closed   bool

	cleanups  sync.WaitGroup
	stop      chan struct{}
	stopOnce  sync.Once
	sweepDone chan struct{}
}

// NewManager creates a Manager and, when opts.SweepInterval is positive,
// starts its sweep. Call Close to stop it.
func NewManager(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	m := &Manager{
		opts:      opts,
		logger:    opts.Logger,
		sessions:  make(map[Key]*conversation),
		stop:      make(chan struct{}),
		sweepDone: make(chan struct{}),
	}
	if opts.SweepInterval > 0 {
		go m.sweepLoop()
	} else {
		close(m.sweepDone)
	}
	return m
}

// Start opens a conversation for key. It fails with ErrAlreadyOpen rather
// than replacing an existing one.
func (m *Manager) Start(key Key, model string) (Snapshot, error) {
	m.mu.Lock()
	if _, ok := m.sessions[key]; ok {
		m.mu.Unlock()
		return Snapshot{}, ErrAlreadyOpen
	}
	now := m.opts.Now()
	c := &conversation{
		id:           uuid.New().String(),
		key:          key,
		state:        StateOpen,
		model:        model,
		createdAt:    now,
		lastActivity: now,
	}
	m.sessions[key] = c
	snap := c.snapshot()
	m.mu.Unlock()

	m.logger.Info("conversation started", zap.String("key", key.String()), zap.String("conversation_id", snap.ID))
	m.journal(eventlog.LogEvent{Event: eventlog.EventConversationStarted, SessionID: snap.ID, User: key.UserID, Channel: key.ChannelID})
	return snap, nil
}

// AddTurn appends a user message and refreshes the activity time.
func (m *Manager) AddTurn(key Key, text, messageID string) (Snapshot, error) {
	return m.append(key, Turn{Role: RoleUser, Text: text, MessageID: messageID})
}

// AddReply appends an assistant message and refreshes the activity time.
func (m *Manager) AddReply(key Key, text, messageID string) (Snapshot, error) {
	return m.append(key, Turn{Role: RoleAssistant, Text: text, MessageID: messageID})
}

func (m *Manager) append(key Key, t Turn) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.openLocked(key)
	if err != nil {
		return Snapshot{}, err
	}
	t.At = m.opts.Now()
	c.turns = append(c.turns, t)
	if t.MessageID != "" {
		c.tracked = append(c.tracked, t.MessageID)
	}
	c.lastActivity = t.At
	return c.snapshot(), nil
}

// Track remembers an external message id for cleanup without adding a turn.
func (m *Manager) Track(key Key, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.openLocked(key)
	if err != nil {
		return err
	}
	c.tracked = append(c.tracked, messageID)
	return nil
}

// SetModel changes the generator model the conversation will build with.
func (m *Manager) SetModel(key Key, model string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.openLocked(key)
	if err != nil {
		return err
	}
	c.model = model
	return nil
}

// Get returns a snapshot of the open conversation for key.
func (m *Manager) Get(key Key) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.openLocked(key)
	if err != nil {
		return Snapshot{}, err
	}
	return c.snapshot(), nil
}

// Active returns the number of open conversations.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Finalize closes the conversation and returns its turns. Exactly one of
// concurrent Finalize or Cancel calls on a key succeeds.
func (m *Manager) Finalize(key Key) (Transcript, error) {
	return m.close(key, ReasonFinalized)
}

// Cancel closes the conversation, discarding its turns. The transcript is
// still returned so callers can clean up tracked messages.
func (m *Manager) Cancel(key Key) (Transcript, error) {
	return m.close(key, ReasonCancelled)
}

// Sweep closes every conversation idle for longer than the expiry and
// returns how many it closed.
func (m *Manager) Sweep() int {
	if m.opts.Expiry <= 0 {
		return 0
	}
	now := m.opts.Now()

	m.mu.Lock()
	var expired []Transcript
	for key, c := range m.sessions {
		if now.Sub(c.lastActivity) > m.opts.Expiry {
			expired = append(expired, m.removeLocked(key, ReasonExpired))
		}
	}
	inline := m.closed
	m.mu.Unlock()

	for _, t := range expired {
		m.afterClose(t, inline)
	}
	if len(expired) > 0 {
		m.logger.Info("swept idle conversations", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// Close stops the sweep and waits for pending cleanup callbacks. Open
// conversations are left as they are.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
	<-m.sweepDone

	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.cleanups.Wait()
}

func (m *Manager) sweepLoop() {
	defer close(m.sweepDone)
	ticker := time.NewTicker(m.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

func (m *Manager) openLocked(key Key) (*conversation, error) {
	c, ok := m.sessions[key]
	if !ok || c.state != StateOpen {
		return nil, ErrNoSuchSession
	}
	return c, nil
}

func (m *Manager) close(key Key, reason Reason) (Transcript, error) {
	m.mu.Lock()
	if _, err := m.openLocked(key); err != nil {
		m.mu.Unlock()
		return Transcript{}, err
	}
	t := m.removeLocked(key, reason)
	inline := m.closed
	m.mu.Unlock()

	m.afterClose(t, inline)
	return t, nil
}

// removeLocked is the only way a conversation leaves the table. Callers
// hold mu and must pass the transcript to afterClose after unlocking.
func (m *Manager) removeLocked(key Key, reason Reason) Transcript {
	c := m.sessions[key]
	if reason == ReasonFinalized {
		c.state = StateFinalizing
	}
	snap := c.snapshot()
	c.state = StateClosed
	snap.State = StateClosed
	delete(m.sessions, key)

	if !m.closed {
		m.cleanups.Add(1)
	}
	return Transcript{Snapshot: snap, Reason: reason, ClosedAt: m.opts.Now()}
}

// afterClose logs the closure and runs the cleanup callback. The callback
// runs in its own goroutine unless the manager is already closed.
func (m *Manager) afterClose(t Transcript, inline bool) {
	m.logger.Info("conversation closed",
		zap.String("key", t.Key.String()),
		zap.String("conversation_id", t.ID),
		zap.String("reason", string(t.Reason)),
		zap.Int("turns", len(t.Turns)))

	event := eventlog.EventConversationCancelled
	switch t.Reason {
	case ReasonFinalized:
		event = eventlog.EventConversationFinalized
	case ReasonExpired:
		event = eventlog.EventConversationExpired
	}
	m.journal(eventlog.LogEvent{Event: event, SessionID: t.ID, User: t.Key.UserID, Channel: t.Key.ChannelID, Turns: len(t.Turns)})

	if inline {
		m.runCleanup(t)
		return
	}
	go func() {
		defer m.cleanups.Done()
		m.runCleanup(t)
	}()
}

func (m *Manager) runCleanup(t Transcript) {
	if m.opts.Cleanup == nil {
		return
	}
	if err := m.opts.Cleanup(context.Background(), t); err != nil {
		m.logger.Warn("conversation cleanup",
			zap.String("conversation_id", t.ID),
			zap.Int("tracked", len(t.TrackedIDs)),
			zap.Error(err))
	}
}

func (m *Manager) journal(e eventlog.LogEvent) {
	if m.opts.Journal == nil {
		return
	}
	if err := m.opts.Journal.Append(e); err != nil {
		m.logger.Warn("append journal event", zap.String("event", e.Event), zap.Error(err))
	}
}
