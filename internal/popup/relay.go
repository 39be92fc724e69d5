package popup

import (
	"encoding/json"
	"strings"
	"sync"

	"marketfront-go/internal/auth"
	"marketfront-go/internal/metrics"

	log "github.com/sirupsen/logrus"
)

// Relay carries messages from login windows to the listeners registered by
// their opener. Only messages from the trusted origin with a recognized type
// are delivered; everything else is dropped without error, since unrelated
// scripts may post to the same window.
type Relay struct {
	trustedOrigin string
	logger        *log.Logger

	mu        sync.Mutex
	listeners map[string]map[*Listener]struct{}
}

// Listener is a single-shot registration on a Relay.
type Listener struct {
	relay  *Relay
	scope  string
	accept func(auth.Message) bool
	fn     func(auth.Message)
}

// NewRelay creates a Relay that trusts messages from origin.
func NewRelay(origin string, logger *log.Logger) *Relay {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Relay{
		trustedOrigin: strings.TrimRight(origin, "/"),
		logger:        logger,
		listeners:     make(map[string]map[*Listener]struct{}),
	}
}

// Listen registers fn for the next message in scope that accept approves.
// A nil accept approves every valid message. fn runs at most once.
func (r *Relay) Listen(scope string, accept func(auth.Message) bool, fn func(auth.Message)) *Listener {
	l := &Listener{relay: r, scope: scope, accept: accept, fn: fn}
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.listeners[scope]
	if !ok {
		set = make(map[*Listener]struct{})
		r.listeners[scope] = set
	}
	set[l] = struct{}{}
	return l
}

// Remove unregisters l. It reports whether l was still registered.
func (l *Listener) Remove() bool {
	r := l.relay
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(l)
}

// Post validates raw message data from origin and delivers it to the matching
// listeners of scope. It returns how many listeners received it.
func (r *Relay) Post(scope, origin string, data []byte) int {
	if strings.TrimRight(origin, "/") != r.trustedOrigin {
		metrics.RelayDropped.WithLabelValues("origin").Inc()
		r.logger.WithFields(log.Fields{"scope": scope, "origin": origin}).Debug("relay: dropped message from untrusted origin")
		return 0
	}
	msg, err := auth.ParseMessage(data)
	if err != nil {
		metrics.RelayDropped.WithLabelValues("shape").Inc()
		r.logger.WithField("scope", scope).Debug("relay: dropped unrecognized message")
		return 0
	}

	r.mu.Lock()
	var matched []*Listener
	for l := range r.listeners[scope] {
		if l.accept == nil || l.accept(msg) {
			matched = append(matched, l)
		}
	}
	for _, l := range matched {
		r.removeLocked(l)
	}
	r.mu.Unlock()

	if len(matched) == 0 {
		metrics.RelayDropped.WithLabelValues("no_listener").Inc()
	}
	for _, l := range matched {
		l.fn(msg)
	}
	return len(matched)
}

// PostMessage encodes msg and posts it like Post.
func (r *Relay) PostMessage(scope, origin string, msg auth.Message) int {
	data, err := json.Marshal(msg)
	if err != nil {
		return 0
	}
	return r.Post(scope, origin, data)
}

// Pending returns the number of listeners registered for scope.
func (r *Relay) Pending(scope string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listeners[scope])
}

func (r *Relay) removeLocked(l *Listener) bool {
	set, ok := r.listeners[l.scope]
	if !ok {
		return false
	}
	if _, ok := set[l]; !ok {
		return false
	}
	delete(set, l)
	if len(set) == 0 {
		delete(r.listeners, l.scope)
	}
	return true
}
