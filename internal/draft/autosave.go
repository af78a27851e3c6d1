// Package draft debounces compose-surface edits into periodic persistence
// operations, one state machine per draft slot.
package draft

import (
	"fmt"
	"log"
	gosync "sync"
	"time"

	"github.com/plumemail/plume/internal/identity"
	"github.com/plumemail/plume/internal/models"
)

// State is the autosave state of one draft slot.
type State int

const (
	StateIdle State = iota
	StateDirty
	StateSaving
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDirty:
		return "dirty"
	case StateSaving:
		return "saving"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// DefaultDebounce is the quiet period after the last edit before a save.
const DefaultDebounce = 2 * time.Second

// Saver persists draft records. The cache-backed implementation is
// NewStoreSaver; tests substitute their own.
type Saver interface {
	SaveDraft(d models.Draft) error
	DeleteDraft(draftID string) error
}

// session is the per-draft state machine. At most one persist operation per
// draft is in flight; a save request arriving while Saving sets queued and
// is coalesced into the next save.
type session struct {
	draft  models.Draft
	state  State
	timer  *time.Timer
	queued bool
	err    error
}

// Manager runs one autosave state machine per draft id.
type Manager struct {
	mu       gosync.Mutex
	saver    Saver
	debounce time.Duration
	sessions map[string]*session
}

// NewManager creates a Manager. A non-positive debounce selects the default.
func NewManager(saver Saver, debounce time.Duration) *Manager {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Manager{
		saver:    saver,
		debounce: debounce,
		sessions: make(map[string]*session),
	}
}

// Edit records new draft content and (re)starts the debounce timer. An empty
// DraftID starts a new compose session and the generated id is returned.
// Edits within the debounce window coalesce: only the latest content is ever
// persisted.
func (m *Manager) Edit(d models.Draft) string {
	if d.DraftID == "" {
		d.DraftID = identity.LocalToken()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[d.DraftID]
	if !ok {
		sess = &session{}
		m.sessions[d.DraftID] = sess
	}

	d.LastSaved = sess.draft.LastSaved
	sess.draft = d

	if sess.state == StateSaving {
		// The in-flight save carries older content; queue another pass.
		sess.queued = true
		return d.DraftID
	}

	sess.state = StateDirty
	sess.err = nil
	m.restartTimerLocked(d.DraftID, sess)
	return d.DraftID
}

// SaveNow bypasses the debounce timer and persists immediately. While a save
// is in flight the request is queued and coalesced rather than run in
// parallel.
func (m *Manager) SaveNow(draftID string) error {
	m.mu.Lock()

	sess, ok := m.sessions[draftID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("no compose session for draft %s", draftID)
	}

	stopTimerLocked(sess)
	if sess.state == StateSaving {
		sess.queued = true
		m.mu.Unlock()
		return nil
	}

	return m.saveLocked(draftID, sess)
}

// Discard cancels any pending timer and deletes the draft record without
// saving. The session is gone afterwards; no stale timer can fire for it.
func (m *Manager) Discard(draftID string) error {
	m.mu.Lock()
	sess, ok := m.sessions[draftID]
	if ok {
		stopTimerLocked(sess)
		delete(m.sessions, draftID)
	}
	m.mu.Unlock()

	if err := m.saver.DeleteDraft(draftID); err != nil {
		return fmt.Errorf("failed to discard draft %s: %w", draftID, err)
	}
	return nil
}

// OnSent is the terminal transition after a successful send: the draft
// record is deleted regardless of the machine's current state.
func (m *Manager) OnSent(draftID string) error {
	return m.Discard(draftID)
}

// State returns the machine state for a draft, if a session exists.
func (m *Manager) State(draftID string) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[draftID]
	if !ok {
		return StateIdle, false
	}
	return sess.state, true
}

// LastError returns the most recent persist failure, if the machine is in
// the error state.
func (m *Manager) LastError(draftID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.sessions[draftID]; ok {
		return sess.err
	}
	return nil
}

// restartTimerLocked arms the debounce timer, cancelling any earlier one.
// Caller must hold m.mu.
func (m *Manager) restartTimerLocked(draftID string, sess *session) {
	stopTimerLocked(sess)
	sess.timer = time.AfterFunc(m.debounce, func() {
		m.flush(draftID)
	})
}

func stopTimerLocked(sess *session) {
	if sess.timer != nil {
		sess.timer.Stop()
		sess.timer = nil
	}
}

// flush is the timer-expiry transition Dirty → Saving. A timer that fires
// after a discard or a newer state change finds nothing to do.
func (m *Manager) flush(draftID string) {
	m.mu.Lock()

	sess, ok := m.sessions[draftID]
	if !ok || sess.state != StateDirty {
		m.mu.Unlock()
		return
	}

	if err := m.saveLocked(draftID, sess); err != nil {
		log.Printf("Warning: Autosave of draft %s failed: %v", draftID, err)
	}
}

// saveLocked runs one persist operation. It is entered holding m.mu and
// releases it around the blocking save so edits can keep arriving.
func (m *Manager) saveLocked(draftID string, sess *session) error {
	sess.state = StateSaving
	snapshot := sess.draft
	savedAt := time.Now()
	snapshot.LastSaved = savedAt
	m.mu.Unlock()

	err := m.saver.SaveDraft(snapshot)

	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[draftID]
	if !ok {
		// Discarded or sent while saving; nothing left to transition.
		return err
	}

	if err != nil {
		sess.state = StateError
		sess.err = err
		return err
	}

	sess.draft.LastSaved = savedAt
	sess.err = nil
	if sess.queued {
		sess.queued = false
		sess.state = StateDirty
		m.restartTimerLocked(draftID, sess)
		return nil
	}
	sess.state = StateIdle
	return nil
}
