package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/BrandOS/internal/catalog"
	"github.com/BTreeMap/BrandOS/internal/models"
	"github.com/BTreeMap/BrandOS/internal/store"
	"github.com/BTreeMap/BrandOS/internal/util"
)

// ErrManagerClosed is returned by every SessionManager method after Close.
var ErrManagerClosed = errors.New("session manager closed")

// ManagerOpts holds configuration for a SessionManager.
type ManagerOpts struct {
	ChatReplyDelay time.Duration
	AnalysisDelay  time.Duration
	Timer          Timer
	Catalog        *catalog.Catalog
}

// ManagerOption configures a SessionManager.
type ManagerOption func(*ManagerOpts)

// WithChatReplyDelay sets the latency of the mock chat reply.
func WithChatReplyDelay(d time.Duration) ManagerOption {
	return func(o *ManagerOpts) { o.ChatReplyDelay = d }
}

// WithAnalysisDelay sets the latency of the mock document analysis.
func WithAnalysisDelay(d time.Duration) ManagerOption {
	return func(o *ManagerOpts) { o.AnalysisDelay = d }
}

// WithTimer replaces the wall-clock timer, typically with a ManualTimer in tests.
func WithTimer(t Timer) ManagerOption {
	return func(o *ManagerOpts) { o.Timer = t }
}

// WithCatalog replaces the embedded catalog.
func WithCatalog(c *catalog.Catalog) ManagerOption {
	return func(o *ManagerOpts) { o.Catalog = c }
}

// session is one live onboarding session. Its epoch grows on every reset so that delayed
// completions scheduled before the reset are dropped.
type session struct {
	id         string
	state      models.SessionState
	transcript []models.ChatMessage
	epoch      uint64
	createdAt  time.Time
	pending    map[string]struct{}
}

// SessionManager hosts live sessions. A single mutex serializes every transition, timer
// callbacks included, so the state machine sees one event at a time.
type SessionManager struct {
	mu       sync.Mutex
	machine  *Machine
	store    store.Store
	timer    Timer
	chat     *ChatResponder
	analyzer *DocumentAnalyzer
	sessions map[string]*session // held until Close
	closed   bool
}

// NewSessionManager creates a manager persisting to st. A nil store keeps sessions in memory.
func NewSessionManager(st store.Store, opts ...ManagerOption) *SessionManager {
	cfg := ManagerOpts{
		ChatReplyDelay: DefaultChatReplyDelay,
		AnalysisDelay:  DefaultAnalysisDelay,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Timer == nil {
		cfg.Timer = NewSimpleTimer()
	}
	if cfg.Catalog == nil {
		cfg.Catalog = catalog.Default()
	}
	if st == nil {
		st = store.NewInMemoryStore()
	}
	slog.Debug("Creating SessionManager", "chatDelay", cfg.ChatReplyDelay, "analysisDelay", cfg.AnalysisDelay)

	return &SessionManager{
		machine:  NewMachine(cfg.Catalog),
		store:    st,
		timer:    cfg.Timer,
		chat:     NewChatResponder(cfg.Timer, cfg.ChatReplyDelay),
		analyzer: NewDocumentAnalyzer(cfg.Timer, cfg.AnalysisDelay),
		sessions: make(map[string]*session),
	}
}

// List returns the persisted record of every session, most recently updated first. Every
// session is written on creation, so the store sees sessions that were never hydrated here.
func (m *SessionManager) List(ctx context.Context) ([]models.SessionRecord, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return nil, ErrManagerClosed
	}

	recs, err := m.store.ListSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return recs, nil
}

// Create starts a new session with default state and returns its snapshot.
func (m *SessionManager) Create(ctx context.Context) (models.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return models.Snapshot{}, ErrManagerClosed
	}

	sess := newSession(util.NewSessionID(), models.NewSessionState(), time.Now())
	m.sessions[sess.id] = sess
	m.persistLocked(ctx, sess)

	slog.Info("SessionManager Create", "sessionID", sess.id)
	return m.snapshotLocked(sess), nil
}

// Get returns the snapshot of a session, hydrating it from the store on first access.
func (m *SessionManager) Get(ctx context.Context, id string) (models.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.loadLocked(ctx, id)
	if err != nil {
		return models.Snapshot{}, err
	}
	return m.snapshotLocked(sess), nil
}

// State returns a copy of the full in-memory state of a session.
func (m *SessionManager) State(ctx context.Context, id string) (models.SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.loadLocked(ctx, id)
	if err != nil {
		return models.SessionState{}, err
	}
	return sess.state.Clone(), nil
}

// Dispatch applies ev to the session. A rejected event leaves the session untouched and the
// returned snapshot reflects the unchanged state.
func (m *SessionManager) Dispatch(ctx context.Context, id string, ev Event) (models.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.loadLocked(ctx, id)
	if err != nil {
		return models.Snapshot{}, err
	}
	if ev == nil {
		return m.snapshotLocked(sess), fmt.Errorf("%w: nil event", ErrInvalidTransition)
	}
	slog.Debug("SessionManager Dispatch", "sessionID", id, "event", ev.Kind(), "phase", sess.state.Phase)

	if _, ok := ev.(Reset); ok {
		m.resetLocked(ctx, sess)
		return m.snapshotLocked(sess), nil
	}
	if err := m.applyLocked(ctx, sess, ev); err != nil {
		return m.snapshotLocked(sess), err
	}
	return m.snapshotLocked(sess), nil
}

// Reset discards every selection, answer and pending completion of the session.
func (m *SessionManager) Reset(ctx context.Context, id string) (models.Snapshot, error) {
	return m.Dispatch(ctx, id, Reset{})
}

// SendChat appends a user message and schedules the canned assistant reply.
func (m *SessionManager) SendChat(ctx context.Context, id, text string) (models.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.loadLocked(ctx, id)
	if err != nil {
		return models.ChatMessage{}, err
	}

	epoch := sess.epoch
	var timerID string
	timerID, err = m.chat.Respond(text, func(reply string) {
		m.completeAsync(id, epoch, &timerID, func(s *session) {
			s.transcript = append(s.transcript, newMessage(models.ChatRoleAI, reply))
		})
	})
	if err != nil {
		return models.ChatMessage{}, err
	}
	sess.pending[timerID] = struct{}{}

	msg := newMessage(models.ChatRoleUser, text)
	sess.transcript = append(sess.transcript, msg)
	slog.Debug("SessionManager SendChat", "sessionID", id, "timerID", timerID)
	return msg, nil
}

// Transcript returns a copy of the session's chat transcript.
func (m *SessionManager) Transcript(ctx context.Context, id string) ([]models.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.loadLocked(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]models.ChatMessage, len(sess.transcript))
	copy(out, sess.transcript)
	return out, nil
}

// UploadDocument schedules the mock analysis of filename. Its fixed field set is merged into
// the questionnaire answers when it completes.
func (m *SessionManager) UploadDocument(ctx context.Context, id, filename string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.loadLocked(ctx, id)
	if err != nil {
		return err
	}

	epoch := sess.epoch
	var timerID string
	timerID, err = m.analyzer.Analyze(sess.state.HasDocumentAddon, filename, func(fields map[string]string) {
		m.completeAsync(id, epoch, &timerID, func(s *session) {
			if err := m.applyLocked(context.Background(), s, UpdateAnswers{Answers: fields}); err != nil {
				slog.Warn("SessionManager document analysis not applied", "sessionID", id, "error", err)
			}
		})
	})
	if err != nil {
		slog.Debug("SessionManager UploadDocument rejected", "sessionID", id, "error", err)
		return err
	}
	sess.pending[timerID] = struct{}{}
	slog.Info("SessionManager UploadDocument accepted", "sessionID", id, "filename", filename, "timerID", timerID)
	return nil
}

// Notifications returns the session's notifications narrowed by its current filter.
func (m *SessionManager) Notifications(ctx context.Context, id string) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.loadLocked(ctx, id)
	if err != nil {
		return nil, err
	}
	return models.FilterNotifications(sess.state.Notifications, sess.state.NotificationFilter), nil
}

// Close stops every pending completion. The store is owned by the caller and stays open.
func (m *SessionManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	if st, ok := m.timer.(*SimpleTimer); ok {
		slog.Debug("SessionManager stopping timers", "pending", len(st.ListActive()))
	}
	m.timer.Stop()
	for _, sess := range m.sessions {
		sess.pending = make(map[string]struct{})
	}
	slog.Info("SessionManager closed", "sessions", len(m.sessions))
}

func newSession(id string, state models.SessionState, createdAt time.Time) *session {
	return &session{
		id:         id,
		state:      state,
		transcript: initialTranscript(),
		createdAt:  createdAt,
		pending:    make(map[string]struct{}),
	}
}

func initialTranscript() []models.ChatMessage {
	return []models.ChatMessage{
		newMessage(models.ChatRoleAI, GreetingMessage),
		newMessage(models.ChatRoleWidget, ""),
	}
}

func newMessage(role models.ChatRole, content string) models.ChatMessage {
	return models.ChatMessage{ID: util.NewMessageID(), Role: role, Content: content, Time: time.Now()}
}

// loadLocked returns the live session, hydrating it from the store when needed.
func (m *SessionManager) loadLocked(ctx context.Context, id string) (*session, error) {
	if m.closed {
		return nil, ErrManagerClosed
	}
	if sess, ok := m.sessions[id]; ok {
		return sess, nil
	}

	rec, err := m.store.GetSession(ctx, id)
	if err != nil {
		slog.Error("SessionManager hydrate failed", "sessionID", id, "error", err)
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", models.ErrSessionNotFound, id)
	}

	state := models.NewSessionState()
	if err := ValidateRecord(*rec); err != nil {
		slog.Warn("SessionManager persisted session invalid, starting from defaults", "sessionID", id, "error", err)
	} else {
		state = rec.Apply(state)
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	sess := newSession(id, state, createdAt)
	if state.Questionnaire.Completed {
		sess.transcript = append(sess.transcript, newMessage(models.ChatRoleAI, CompletionMessage))
	}
	m.sessions[id] = sess
	slog.Debug("SessionManager hydrated session", "sessionID", id, "phase", state.Phase)
	return sess, nil
}

// applyLocked runs a transition and its side effects: the completion message and the
// best-effort write of the persisted subset.
func (m *SessionManager) applyLocked(ctx context.Context, sess *session, ev Event) error {
	prev := sess.state
	next, err := m.machine.Transition(prev, ev)
	if err != nil {
		return err
	}
	sess.state = next

	if !prev.Questionnaire.Completed && next.Questionnaire.Completed {
		sess.transcript = append(sess.transcript, newMessage(models.ChatRoleAI, CompletionMessage))
		slog.Info("SessionManager questionnaire completed", "sessionID", sess.id, "flowType", next.FlowType)
	}
	if !models.PersistedEqual(prev, next) {
		m.persistLocked(ctx, sess)
	}
	return nil
}

func (m *SessionManager) resetLocked(ctx context.Context, sess *session) {
	sess.epoch++
	for timerID := range sess.pending {
		if err := m.timer.Cancel(timerID); err != nil {
			slog.Warn("SessionManager failed to cancel timer", "sessionID", sess.id, "timerID", timerID, "error", err)
		}
	}
	sess.pending = make(map[string]struct{})
	sess.state = models.NewSessionState()
	sess.transcript = initialTranscript()
	m.persistLocked(ctx, sess)
	slog.Info("SessionManager Reset", "sessionID", sess.id, "epoch", sess.epoch)
}

// persistLocked writes the persisted subset. Failures are logged and otherwise ignored: the
// in-memory state stays authoritative.
func (m *SessionManager) persistLocked(ctx context.Context, sess *session) {
	rec := sess.state.Record(sess.id)
	rec.CreatedAt = sess.createdAt
	if err := m.store.SaveSession(ctx, rec); err != nil {
		slog.Warn("SessionManager persist failed", "sessionID", sess.id, "error", err)
	}
}

// completeAsync runs apply for a delayed completion unless the session was reset or the
// manager closed since it was scheduled.
func (m *SessionManager) completeAsync(id string, epoch uint64, timerID *string, apply func(*session)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	sess, ok := m.sessions[id]
	if !ok || sess.epoch != epoch {
		slog.Debug("SessionManager dropped stale completion", "sessionID", id, "epoch", epoch)
		return
	}
	delete(sess.pending, *timerID)
	apply(sess)
}

func (m *SessionManager) snapshotLocked(sess *session) models.Snapshot {
	return m.machine.BuildSnapshot(sess.id, sess.state)
}
