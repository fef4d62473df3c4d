// Package session keeps each user's chat context: credential, loaded tables
// and the last answer. Nothing is written to disk.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/csv-chat/backend/internal/config"
	"github.com/csv-chat/backend/internal/logging"
	"github.com/csv-chat/backend/internal/models"
	"github.com/csv-chat/backend/internal/parser"
)

var (
	ErrNotFound        = errors.New("session not found")
	ErrTableNotFound   = errors.New("table not found")
	ErrEmptyCredential = errors.New("API key is empty")
)

// CredentialEnvVar is read when sessions start with the server's own key.
const CredentialEnvVar = "OPENAI_API_KEY"

// Options configures a Manager.
type Options struct {
	MaxSessions       int
	MaxRows           int
	PreviewRows       int
	PreviewColumns    int
	Store             parser.StoreOptions
	CredentialFromEnv bool
}

// OptionsFromConfig maps the application configuration onto manager options.
func OptionsFromConfig(cfg *config.AppConfig) Options {
	return Options{
		MaxSessions:       cfg.Session.MaxSessions,
		MaxRows:           cfg.Limits.MaxRows,
		PreviewRows:       cfg.Limits.PreviewRows,
		PreviewColumns:    cfg.Limits.PreviewColumns,
		Store:             parser.DefaultStoreOptions(),
		CredentialFromEnv: cfg.Agent.CredentialFromEnv,
	}
}

// Manager handles active chat sessions.
type Manager struct {
	sessions map[string]*State
	mu       sync.RWMutex
	opts     Options
	registry *parser.Registry
	logger   *zap.Logger
	now      func() time.Time

	// closing tracks sessions released in the background.
	closing sync.WaitGroup
}

// State is one session. Its fields are guarded by mu; readers such as a
// running question hold the read lock so an upload waits for them.
type State struct {
	ID        string
	CreatedAt time.Time

	lastAccessed atomic.Int64 // unix nanos

	mu         sync.RWMutex
	credential string
	tables     []*models.Table
	previews   map[string]*models.TablePreview
	fileErrors []models.FileResult
	store      *parser.TableStore
	lastAnswer *models.Answer
	closed     bool
}

// Snapshot is the read-only view handed to Read callbacks.
type Snapshot struct {
	ID         string
	Credential string
	Tables     []*models.Table
	Store      *parser.TableStore
}

// NewManager creates a session manager. A nil logger disables logging.
func NewManager(opts Options, logger *zap.Logger) *Manager {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = config.DefaultConfig().Session.MaxSessions
	}
	if opts.PreviewColumns <= 0 {
		opts.PreviewColumns = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		sessions: make(map[string]*State),
		opts:     opts,
		registry: parser.GetGlobalRegistry(),
		logger:   logger.Named("session"),
		now:      time.Now,
	}
}

// Create starts a new empty session, evicting the least recently used
// sessions when the manager is full.
func (m *Manager) Create() *State {
	now := m.now()
	state := &State{
		ID:        uuid.New().String(),
		CreatedAt: now,
		previews:  make(map[string]*models.TablePreview),
	}
	state.lastAccessed.Store(now.UnixNano())
	if m.opts.CredentialFromEnv {
		state.credential = strings.TrimSpace(os.Getenv(CredentialEnvVar))
	}

	m.mu.Lock()
	evicted := m.evictLocked(len(m.sessions) - m.opts.MaxSessions + 1)
	m.sessions[state.ID] = state
	count := len(m.sessions)
	m.mu.Unlock()

	for _, old := range evicted {
		m.release(old)
		m.logger.Info("Evicted session to stay under limit", zap.String("session", logging.ShortID(old.ID)))
	}
	m.logger.Debug("Session created", zap.String("session", logging.ShortID(state.ID)), zap.Int("active", count))
	return state
}

// evictLocked removes the n least recently used sessions. m.mu must be held.
func (m *Manager) evictLocked(n int) []*State {
	var evicted []*State
	for ; n > 0 && len(m.sessions) > 0; n-- {
		var oldest *State
		for _, s := range m.sessions {
			if oldest == nil || s.lastAccessed.Load() < oldest.lastAccessed.Load() {
				oldest = s
			}
		}
		delete(m.sessions, oldest.ID)
		evicted = append(evicted, oldest)
	}
	return evicted
}

// Get returns a session and marks it as used.
func (m *Manager) Get(id string) (*State, error) {
	m.mu.RLock()
	state, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	state.lastAccessed.Store(m.now().UnixNano())
	return state, nil
}

// Touch marks a session as used. It reports whether the session exists.
func (m *Manager) Touch(id string) bool {
	_, err := m.Get(id)
	return err == nil
}

// Count returns the number of active sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// View returns the client-facing snapshot of a session.
func (m *Manager) View(id string) (*models.SessionView, error) {
	state, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	state.mu.RLock()
	defer state.mu.RUnlock()

	view := &models.SessionView{
		ID:             state.ID,
		HasCredential:  state.credential != "",
		CredentialHint: logging.Redact(state.credential),
		Tables:         make([]models.TableInfo, 0, len(state.tables)),
		FileErrors:     state.fileErrors,
		LastAnswer:     state.lastAnswer,
		CreatedAt:      state.CreatedAt,
		LastAccessed:   time.Unix(0, state.lastAccessed.Load()),
	}
	for _, t := range state.tables {
		view.Tables = append(view.Tables, t.Info())
	}
	return view, nil
}

// SetCredential stores the user's API key in memory for this session only.
func (m *Manager) SetCredential(id, credential string) error {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return ErrEmptyCredential
	}
	state, err := m.Get(id)
	if err != nil {
		return err
	}

	state.mu.Lock()
	state.credential = credential
	state.mu.Unlock()

	m.logger.Info("Credential set",
		zap.String("session", logging.ShortID(id)),
		zap.String("credential", logging.Redact(credential)))
	return nil
}

// ClearCredential forgets the session's API key.
func (m *Manager) ClearCredential(id string) error {
	state, err := m.Get(id)
	if err != nil {
		return err
	}
	state.mu.Lock()
	state.credential = ""
	state.mu.Unlock()
	return nil
}

// LoadFiles parses the uploaded files and replaces the session's tables with
// the ones that parsed. Results come back in upload order; a file that fails
// does not stop the others.
func (m *Manager) LoadFiles(ctx context.Context, id string, files []models.UploadedFile) ([]models.FileResult, error) {
	state, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	start := m.now()
	results := make([]models.FileResult, len(files))
	parsed := make([]*models.Table, len(files))
	tables := make([]*models.Table, 0, len(files))

	for i, f := range files {
		results[i].FileName = f.Name
		table, parseErr := m.parse(f)
		if parseErr != nil {
			m.reject(id, &results[i], parseErr)
			continue
		}
		parsed[i] = table
		tables = append(tables, table)
	}
	parser.UniqueIdentifiers(tables)

	state.mu.Lock()
	defer state.mu.Unlock()
	if state.closed {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if state.store == nil {
		store, err := parser.NewTableStore(m.opts.Store)
		if err != nil {
			return nil, fmt.Errorf("failed to create table store: %w", err)
		}
		state.store = store
	}

	var loadErr *parser.LoadError
	if err := state.store.Load(ctx, tables); err != nil && !errors.As(err, &loadErr) {
		// The store may be half filled; start the next upload from a fresh one.
		state.store.Close()
		state.store = nil
		state.tables = nil
		state.previews = make(map[string]*models.TablePreview)
		state.fileErrors = nil
		state.lastAnswer = nil
		return nil, fmt.Errorf("failed to load tables: %w", err)
	}

	// Tables the store rejected become per-file failures; the rest keep
	// their upload order and get consecutive preview slots.
	loaded := make([]*models.Table, 0, len(tables))
	var failed []models.FileResult
	for i, table := range parsed {
		if table == nil {
			failed = append(failed, results[i])
			continue
		}
		if loadErr != nil {
			if err, ok := loadErr.Failed[table.ID]; ok {
				m.reject(id, &results[i], err)
				failed = append(failed, results[i])
				continue
			}
		}
		results[i].OK = true
		results[i].Preview = m.preview(table, len(loaded))
		loaded = append(loaded, table)
	}
	tables = loaded

	state.tables = tables
	state.previews = make(map[string]*models.TablePreview, len(tables))
	for _, r := range results {
		if r.Preview != nil {
			state.previews[r.Preview.TableID] = r.Preview
		}
	}
	state.fileErrors = failed
	state.lastAnswer = nil

	m.logger.Info("Files loaded",
		zap.String("session", logging.ShortID(id)),
		zap.Int("files", len(files)),
		zap.Int("tables", len(tables)),
		zap.Int("failed", len(failed)),
		zap.Duration("elapsed", m.now().Sub(start)))
	return results, nil
}

// reject marks a file result as failed.
func (m *Manager) reject(id string, result *models.FileResult, err error) {
	result.OK = false
	result.Error = err.Error()
	m.logger.Info("File rejected",
		zap.String("session", logging.ShortID(id)),
		zap.String("file", result.FileName),
		zap.Error(err))
}

func (m *Manager) parse(f models.UploadedFile) (*models.Table, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return m.registry.ParseFile(f.Name, f.Data, m.opts.MaxRows)
}

// preview builds the bounded preview of the index-th loaded table. Display
// slots are assigned round-robin over PreviewColumns.
func (m *Manager) preview(t *models.Table, index int) *models.TablePreview {
	return &models.TablePreview{
		TableID:  t.ID,
		FileName: t.Name,
		Column:   index % m.opts.PreviewColumns,
		Columns:  t.Columns,
		Rows:     t.Head(m.opts.PreviewRows),
		RowCount: len(t.Rows),
	}
}

// Tables returns the loaded tables' metadata in upload order.
func (m *Manager) Tables(id string) ([]models.TableInfo, error) {
	state, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	state.mu.RLock()
	defer state.mu.RUnlock()

	infos := make([]models.TableInfo, len(state.tables))
	for i, t := range state.tables {
		infos[i] = t.Info()
	}
	return infos, nil
}

// Preview returns the stored preview of one table.
func (m *Manager) Preview(id, tableID string) (*models.TablePreview, error) {
	state, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	state.mu.RLock()
	defer state.mu.RUnlock()

	p, ok := state.previews[tableID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, tableID)
	}
	return p, nil
}

// Read runs fn with a consistent snapshot of the session. Uploads and resets
// wait until fn returns.
func (m *Manager) Read(id string, fn func(Snapshot) error) error {
	state, err := m.Get(id)
	if err != nil {
		return err
	}
	state.mu.RLock()
	defer state.mu.RUnlock()
	if state.closed {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return fn(Snapshot{
		ID:         state.ID,
		Credential: state.credential,
		Tables:     append([]*models.Table(nil), state.tables...),
		Store:      state.store,
	})
}

// SetLastAnswer records the most recent answer shown to the user.
func (m *Manager) SetLastAnswer(id string, answer *models.Answer) error {
	state, err := m.Get(id)
	if err != nil {
		return err
	}
	state.mu.Lock()
	state.lastAnswer = answer
	state.mu.Unlock()
	return nil
}

// Reset drops the session's tables, file errors and answer. The credential
// is kept.
func (m *Manager) Reset(ctx context.Context, id string) error {
	state, err := m.Get(id)
	if err != nil {
		return err
	}
	state.mu.Lock()
	defer state.mu.Unlock()

	if state.store != nil {
		if err := state.store.Load(ctx, nil); err != nil {
			return fmt.Errorf("failed to reset tables: %w", err)
		}
	}
	state.tables = nil
	state.previews = make(map[string]*models.TablePreview)
	state.fileErrors = nil
	state.lastAnswer = nil
	return nil
}

// Delete removes a session and releases its tables.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	state, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	m.release(state)
	m.logger.Debug("Session deleted", zap.String("session", logging.ShortID(id)))
	return nil
}

// CleanupOldSessions removes sessions not used for longer than maxAge and
// returns how many were removed.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) int {
	cutoff := m.now().Add(-maxAge).UnixNano()

	m.mu.Lock()
	var expired []*State
	for id, state := range m.sessions {
		if state.lastAccessed.Load() < cutoff {
			expired = append(expired, state)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, state := range expired {
		m.release(state)
		m.logger.Info("Cleaned up idle session",
			zap.String("session", logging.ShortID(state.ID)),
			zap.Duration("idle", m.now().Sub(time.Unix(0, state.lastAccessed.Load())).Round(time.Second)))
	}
	return len(expired)
}

// StartJanitor removes idle sessions every interval until ctx is done. The
// returned channel is closed when the janitor has stopped.
func (m *Manager) StartJanitor(ctx context.Context, interval, maxAge time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.CleanupOldSessions(maxAge)
			}
		}
	}()
	return done
}

// Close releases every session.
func (m *Manager) Close() {
	m.mu.Lock()
	all := make([]*State, 0, len(m.sessions))
	for id, state := range m.sessions {
		all = append(all, state)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, state := range all {
		state.close()
	}
	m.closing.Wait()
}

// release closes a session that is no longer in the map. A question still
// running on it holds the read lock, so the close happens in the background
// once that question is done.
func (m *Manager) release(state *State) {
	m.closing.Add(1)
	go func() {
		defer m.closing.Done()
		state.close()
	}()
}

// close forgets the credential and frees the session's DuckDB database.
func (s *State) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.credential = ""
	s.tables = nil
	s.previews = nil
	if s.store != nil {
		s.store.Close()
		s.store = nil
	}
}
