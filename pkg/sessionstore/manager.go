// Package sessionstore implements the process-wide registry that opens,
// shares, ages-out, and closes per-session triple stores.
package sessionstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jido-ai/jido-memory/pkg/logging"
	"github.com/jido-ai/jido-memory/pkg/ontology"
	"github.com/jido-ai/jido-memory/pkg/triplestore"
)

var safeSessionID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// Sentinel errors surfaced by the manager. See ../memory/errors.go for the
// adapter's own error taxonomy; the two sets are deliberately distinct
// since a manager failure and a record-level failure are different kinds
// of caller-visible events.
var (
	ErrInvalidSessionID   = fmt.Errorf("sessionstore: invalid session id")
	ErrPathTraversal      = fmt.Errorf("sessionstore: path traversal detected")
	ErrStoreOpenFailed    = fmt.Errorf("sessionstore: store open failed")
	ErrOntologyLoadFailed = fmt.Errorf("sessionstore: ontology load failed")
	ErrNotFound           = fmt.Errorf("sessionstore: session not found")
)

// Config configures a Manager. All fields have sensible defaults supplied
// by pkg/config.
type Config struct {
	BasePath        string
	MaxOpenStores   int
	IdleTimeout     time.Duration
	CleanupInterval time.Duration
	CloseTimeout    time.Duration
}

// Metadata is the observable state of one open session entry.
type Metadata struct {
	OpenedAt       time.Time
	LastAccessed   time.Time
	OntologyLoaded bool
}

// entry is the manager's internal bookkeeping for one open store. A
// reserved-but-not-yet-open entry (see OpenOrCreate) has handle == nil and
// a non-nil ready channel that is closed once the store finishes opening;
// this lets the slot count against max_open_stores the instant it is
// reserved, before the slow I/O that creates the real handle runs.
type entry struct {
	handle         *Handle
	openedAt       time.Time
	lastAccessed   time.Time
	ontologyLoaded bool
	ready          chan struct{}
}

// Handle is an opaque reference to an open session store. Callers obtain
// one from OpenOrCreate or Get and pass it to the triple store adapter.
type Handle struct {
	sessionID string
	store     *triplestore.Store
}

// Store returns the underlying triple store for use by the adapter.
func (h *Handle) Store() *triplestore.Store { return h.store }

// SessionID returns the session this handle belongs to.
func (h *Handle) SessionID() string { return h.sessionID }

// Manager owns the session_id -> store mapping. All mutating operations
// are serialized through mu, modelling the single-writer mailbox the
// design calls for with an explicit lock rather than a goroutine-per-actor.
type Manager struct {
	mu     sync.Mutex
	cfg    Config
	loader *ontology.Loader
	logger *logging.Logger
	open   map[string]*entry

	cron *cron.Cron
}

// NewManager constructs a Manager over cfg. It does not open any stores or
// start the idle reaper; call Start to begin periodic reaping.
func NewManager(cfg Config, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewLogger()
	}
	return &Manager{
		cfg:    cfg,
		loader: ontology.NewLoader(),
		logger: logger,
		open:   make(map[string]*entry),
	}
}

// BasePath returns the directory session stores are created under.
func (m *Manager) BasePath() string { return m.cfg.BasePath }

// Start begins the periodic idle-reaping timer. Calling Start twice is a
// no-op.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cron != nil {
		return
	}
	m.cron = cron.New()
	interval := m.cfg.CleanupInterval
	if interval <= 0 {
		interval = time.Minute
	}
	spec := fmt.Sprintf("@every %s", interval.String())
	m.cron.AddFunc(spec, m.reapIdle)
	m.cron.Start()
}

// Stop halts the idle reaper without closing any open stores.
func (m *Manager) Stop() {
	m.mu.Lock()
	c := m.cron
	m.cron = nil
	m.mu.Unlock()
	if c != nil {
		c.Stop()
	}
}

// storePath computes the per-session directory, then verifies via
// re-expansion that it is strictly contained within base_path. This is
// defense-in-depth: the safe-identifier predicate already forbids the
// characters a traversal would need, but the check is cheap and the
// design calls for it explicitly.
func (m *Manager) storePath(sessionID string) (string, error) {
	base, err := filepath.Abs(m.cfg.BasePath)
	if err != nil {
		return "", fmt.Errorf("sessionstore: resolve base path: %w", err)
	}
	candidate := filepath.Join(base, "session_"+sessionID)
	resolved, err := filepath.Abs(candidate)
	if err != nil {
		return "", fmt.Errorf("sessionstore: resolve store path: %w", err)
	}
	if resolved != base && !strings.HasPrefix(resolved, base+string(os.PathSeparator)) {
		return "", ErrPathTraversal
	}
	return resolved, nil
}

// OpenOrCreate returns the handle for sessionID, opening and ontology-
// bootstrapping a fresh store if none is open yet. If the open-set is at
// capacity, the least-recently-accessed entry is evicted first.
//
// The eviction check and the slot it makes room for are one atomic
// transaction: a placeholder entry (handle == nil) is inserted into the
// map under the lock before the slow open/ontology-load I/O runs, so a
// concurrent OpenOrCreate for a different session sees the slot already
// counted against max_open_stores instead of racing this call to insert
// after both passed the capacity check.
func (m *Manager) OpenOrCreate(ctx context.Context, sessionID string) (*Handle, error) {
	if !safeSessionID.MatchString(sessionID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSessionID, sessionID)
	}

	m.mu.Lock()
	if e, ok := m.open[sessionID]; ok {
		if e.handle == nil {
			// Another caller is already opening this same session; wait
			// for it to finish instead of racing to open our own store.
			ready := e.ready
			m.mu.Unlock()
			select {
			case <-ready:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			m.mu.Lock()
			e, ok = m.open[sessionID]
			if !ok || e.handle == nil {
				m.mu.Unlock()
				return nil, fmt.Errorf("%w: concurrent open did not succeed", ErrStoreOpenFailed)
			}
		}
		e.lastAccessed = time.Now()
		h := e.handle
		m.mu.Unlock()
		return h, nil
	}

	for m.cfg.MaxOpenStores > 0 && len(m.open) >= m.cfg.MaxOpenStores {
		if m.evictLRULocked() {
			break
		}
		// Every entry at capacity is still mid-open (handle == nil), so
		// there is nothing evictable yet. Wait for one of them (whichever
		// the map yields first) to finish opening — it becomes evictable
		// the instant it does —
		// rather than reserving another slot and overshooting capacity
		// once all the in-flight opens complete.
		waitReady := m.oldestInFlightLocked()
		if waitReady == nil {
			break
		}
		m.mu.Unlock()
		select {
		case <-waitReady:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		m.mu.Lock()
	}
	placeholder := &entry{ready: make(chan struct{})}
	m.open[sessionID] = placeholder
	m.mu.Unlock()

	abortReservation := func() {
		m.mu.Lock()
		if cur, ok := m.open[sessionID]; ok && cur == placeholder {
			delete(m.open, sessionID)
		}
		close(placeholder.ready)
		m.mu.Unlock()
	}

	path, err := m.storePath(sessionID)
	if err != nil {
		abortReservation()
		return nil, err
	}

	store, err := triplestore.Open(path, true)
	if err != nil {
		abortReservation()
		return nil, fmt.Errorf("%w: %v", ErrStoreOpenFailed, err)
	}

	loaded, err := m.loader.Loaded(ctx, store)
	if err != nil {
		store.Close()
		abortReservation()
		return nil, fmt.Errorf("%w: %v", ErrOntologyLoadFailed, err)
	}
	if !loaded {
		if _, err := m.loader.Load(ctx, store); err != nil {
			store.Close()
			abortReservation()
			return nil, fmt.Errorf("%w: %v", ErrOntologyLoadFailed, err)
		}
	}

	h := &Handle{sessionID: sessionID, store: store}
	now := time.Now()

	m.mu.Lock()
	if cur, ok := m.open[sessionID]; !ok || cur != placeholder {
		// The reservation was evicted or closed out from under us while
		// the I/O above was in flight; re-register it since this call is
		// the only holder of the now-open store.
		m.open[sessionID] = placeholder
	}
	placeholder.handle = h
	placeholder.openedAt = now
	placeholder.lastAccessed = now
	placeholder.ontologyLoaded = true
	close(placeholder.ready)
	m.mu.Unlock()
	return h, nil
}

// Get returns the handle for sessionID if it is already open, never
// creating a new store. A session whose open is still in flight (another
// goroutine's OpenOrCreate hasn't finished) is reported not_found, since
// there is no usable handle yet.
func (m *Manager) Get(sessionID string) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.open[sessionID]
	if !ok || e.handle == nil {
		return nil, ErrNotFound
	}
	e.lastAccessed = time.Now()
	return e.handle, nil
}

// Metadata returns the observable state of sessionID's open entry.
func (m *Manager) Metadata(sessionID string) (Metadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.open[sessionID]
	if !ok || e.handle == nil {
		return Metadata{}, ErrNotFound
	}
	return Metadata{OpenedAt: e.openedAt, LastAccessed: e.lastAccessed, OntologyLoaded: e.ontologyLoaded}, nil
}

// Health delegates to the underlying store's health probe.
func (m *Manager) Health(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	e, ok := m.open[sessionID]
	m.mu.Unlock()
	if !ok || e.handle == nil {
		return ErrNotFound
	}
	return e.handle.store.Health(ctx)
}

// Close closes sessionID's store, if open. Closing an unknown session is
// success.
func (m *Manager) Close(sessionID string) error {
	m.mu.Lock()
	e, ok := m.open[sessionID]
	if ok {
		delete(m.open, sessionID)
	}
	m.mu.Unlock()
	if !ok || e.handle == nil {
		return nil
	}
	if err := e.handle.store.Close(); err != nil {
		m.logger.Warn("sessionstore: error closing store", logging.String("session_id", sessionID), logging.Error(err))
	}
	return nil
}

// CloseAll closes every open store in parallel, abandoning any that does
// not finish within close_timeout_ms so shutdown cannot deadlock.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]string, 0, len(m.open))
	for id := range m.open {
		sessions = append(sessions, id)
	}
	m.mu.Unlock()

	timeout := m.cfg.CloseTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	var wg sync.WaitGroup
	for _, id := range sessions {
		wg.Add(1)
		go func(sessionID string) {
			defer wg.Done()
			done := make(chan struct{})
			go func() {
				m.Close(sessionID)
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(timeout):
				m.logger.Warn("sessionstore: close timed out, abandoning", logging.String("session_id", sessionID))
			}
		}(id)
	}
	wg.Wait()
}

// ListOpen returns the session ids that have finished opening. Sessions
// whose open is still in flight are not yet observably "open".
func (m *Manager) ListOpen() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.open))
	for id, e := range m.open {
		if e.handle == nil {
			continue
		}
		out = append(out, id)
	}
	return out
}

// IsOpen reports whether sessionID currently has a ready, open store.
func (m *Manager) IsOpen(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.open[sessionID]
	return ok && e.handle != nil
}

// evictLRULocked closes the least-recently-accessed entry that has
// finished opening and reports whether it evicted anything. Entries still
// being opened by another in-flight OpenOrCreate call (handle == nil) are
// skipped: they have no store to close and evicting the reservation itself
// would undercount the slot it exists to hold. Callers must hold m.mu.
func (m *Manager) evictLRULocked() bool {
	var oldestID string
	var oldest time.Time
	first := true
	for id, e := range m.open {
		if e.handle == nil {
			continue
		}
		if first || e.lastAccessed.Before(oldest) {
			oldestID = id
			oldest = e.lastAccessed
			first = false
		}
	}
	if oldestID == "" {
		return false
	}
	e := m.open[oldestID]
	delete(m.open, oldestID)
	if err := e.handle.store.Close(); err != nil {
		m.logger.Warn("sessionstore: error closing evicted store", logging.String("session_id", oldestID), logging.Error(err))
	}
	return true
}

// oldestInFlightLocked returns the ready channel of an arbitrary entry still
// mid-open (handle == nil), or nil if none exists. Used to wait for
// capacity to free up when every entry at the bound is still opening.
// Callers must hold m.mu; the returned channel is safe to wait on after
// unlocking since it is only ever closed, never replaced.
func (m *Manager) oldestInFlightLocked() chan struct{} {
	for _, e := range m.open {
		if e.handle == nil {
			return e.ready
		}
	}
	return nil
}

// reapIdle closes every entry whose last_accessed predates idle_timeout.
// Entries still being opened (handle == nil) are skipped regardless of
// their zero-value lastAccessed, since they aren't idle, they're in flight.
func (m *Manager) reapIdle() {
	timeout := m.cfg.IdleTimeout
	if timeout <= 0 {
		return
	}
	threshold := time.Now().Add(-timeout)

	m.mu.Lock()
	var stale []string
	for id, e := range m.open {
		if e.handle == nil {
			continue
		}
		if e.lastAccessed.Before(threshold) {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		e := m.open[id]
		delete(m.open, id)
		if err := e.handle.store.Close(); err != nil {
			m.logger.Warn("sessionstore: error closing idle store", logging.String("session_id", id), logging.Error(err))
		}
	}
	m.mu.Unlock()
}
