// Package authstate holds the authentication state seen by a browser and
// notifies subscribers when it changes.
package authstate

import (
	"encoding/json"
	"sync"
)

// EventName is the name of the event emitted on every state change.
const EventName = "authStateChanged"

// State is a snapshot of the authentication state.
type State struct {
	IsAuthenticated bool            `json:"isAuthenticated"`
	User            json.RawMessage `json:"user"`
}

// Event is delivered to subscribers on login success or logout.
type Event struct {
	Name   string          `json:"event"`
	User   json.RawMessage `json:"user,omitempty"`
	Logout bool            `json:"logout,omitempty"`
}

// Store is an observable authentication state. The zero value is not usable;
// create one with New.
type Store struct {
	mu          sync.Mutex
	initialized bool
	state       State
	nextID      int
	subscribers map[int]func(Event)
}

// New creates an uninitialized Store.
func New() *Store {
	return &Store{subscribers: make(map[int]func(Event))}
}

// Init sets the starting state from token presence. Only the first call has
// an effect and it emits no event.
func (s *Store) Init(hasToken bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return
	}
	s.initialized = true
	s.state.IsAuthenticated = hasToken
}

// Initialized reports whether Init or a login/logout event has run.
func (s *Store) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// OnLoginSuccess marks the store authenticated with user and emits one event.
func (s *Store) OnLoginSuccess(user json.RawMessage) {
	s.mu.Lock()
	s.initialized = true
	s.state = State{IsAuthenticated: true, User: user}
	subs := s.snapshotSubscribersLocked()
	s.mu.Unlock()

	notify(subs, Event{Name: EventName, User: user})
}

// OnLogout clears the state and emits one event.
func (s *Store) OnLogout() {
	s.mu.Lock()
	s.initialized = true
	s.state = State{}
	subs := s.snapshotSubscribersLocked()
	s.mu.Unlock()

	notify(subs, Event{Name: EventName, Logout: true})
}

// Snapshot returns the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn for future events and returns its unsubscribe func.
// fn is called outside the store's lock.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.subscribers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subscribers, id)
		})
	}
}

// Subscribers returns the number of registered subscribers.
func (s *Store) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}

func (s *Store) snapshotSubscribersLocked() []func(Event) {
	subs := make([]func(Event), 0, len(s.subscribers))
	for i := 0; i < s.nextID; i++ {
		if fn, ok := s.subscribers[i]; ok {
			subs = append(subs, fn)
		}
	}
	return subs
}

func notify(subs []func(Event), ev Event) {
	for _, fn := range subs {
		fn(ev)
	}
}
