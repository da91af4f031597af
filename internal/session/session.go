package session

import (
	"sync"

	"github.com/google/uuid"

	"github.com/njoyaf/mboa-location/internal/types"
)

// Snapshot is the observable slice of a profile's session state. The UI
// surface reads these three fields and nothing else.
type Snapshot struct {
	CurrentLocation *string        `json:"currentLocation"`
	IsDetecting     bool           `json:"isDetecting"`
	ViewMode        types.ViewMode `json:"viewMode"`
}

// State holds the in-memory, per-profile location session: current city
// label, detection-in-progress flag and view mode. View mode changes are
// local and never reach the preference store.
type State struct {
	mu        sync.RWMutex
	current   *string
	detecting bool
	viewMode  types.ViewMode
	subs      map[int]chan Snapshot
	nextSub   int
}

func newState() *State {
	return &State{
		viewMode: types.ViewModeMyLocation,
		subs:     make(map[int]chan Snapshot),
	}
}

// Snapshot returns a copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *State) snapshotLocked() Snapshot {
	var current *string
	if s.current != nil {
		v := *s.current
		current = &v
	}
	return Snapshot{
		CurrentLocation: current,
		IsDetecting:     s.detecting,
		ViewMode:        s.viewMode,
	}
}

// SetDetecting flips the detection-in-progress flag.
func (s *State) SetDetecting(detecting bool) {
	s.mu.Lock()
	s.detecting = detecting
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(snap)
}

// SetLocation records a resolved or chosen city and clears the detecting
// flag. Idempotent: a late-arriving duplicate update is harmless.
func (s *State) SetLocation(city string) {
	s.mu.Lock()
	s.current = &city
	s.detecting = false
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(snap)
}

// SetViewMode switches the result-scoping mode. Synchronous, local only.
func (s *State) SetViewMode(mode types.ViewMode) {
	s.mu.Lock()
	s.viewMode = mode
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(snap)
}

// Subscribe registers for state change notifications. The returned cancel
// function must be called when the consumer goes away. Slow consumers miss
// intermediate snapshots rather than blocking publishers.
func (s *State) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan Snapshot, 8)
	s.subs[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *State) publish(snap Snapshot) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

// Manager lazily creates one State per profile. It stands in for the
// single app-wide session of the original client, generalized to many
// concurrent profiles.
type Manager struct {
	mu     sync.Mutex
	states map[uuid.UUID]*State
}

func NewManager() *Manager {
	return &Manager{states: make(map[uuid.UUID]*State)}
}

// Get returns the session state for a profile, creating it on first use.
func (m *Manager) Get(profileID uuid.UUID) *State {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[profileID]
	if !ok {
		st = newState()
		m.states[profileID] = st
	}
	return st
}
