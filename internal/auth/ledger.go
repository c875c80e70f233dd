package auth

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// knownTransports lists the transports a "bare" user id binding applies
// to when no explicit "transport:id" form is given.
var knownTransports = []string{"discord", "signal"}

type bindingKey struct {
	transport string
	userID    string
}

// SudoGrant is a temporary permission elevation.
type SudoGrant struct {
	Transport string
	UserID    string
	Level     Level
	Expiry    time.Time
}

// SudoRequest is a pending elevation awaiting ADMIN approval.
type SudoRequest struct {
	ID        string
	Transport string
	UserID    string
	Requested Level
	Action    string
	CreatedAt time.Time
}

// Ledger holds user-level bindings, live sudo grants, pending sudo
// requests, and per-user rate-limit windows. All maps are guarded by a
// single mutex — the spec requires no external concurrent access beyond
// handler code on the shared executor, but a mutex makes the ledger safe
// under Go's preemptive goroutine scheduling regardless.
type Ledger struct {
	mu sync.Mutex

	bindings     map[bindingKey]Level
	defaultLevel Level

	sudoGrants   map[bindingKey]SudoGrant
	sudoPending  map[string]SudoRequest
	sudoTimeout  time.Duration

	rateWindows map[bindingKey][]time.Time
	rateLimit   int

	// Now is overridable for deterministic tests.
	Now func() time.Time
}

// Config carries the subset of §6's `auth` section the ledger needs.
type Config struct {
	AdminUsers         []string
	OperatorUsers      []string
	TrustedUsers       []string
	DefaultLevel       Level
	RateLimitPerMinute int
	SudoTimeoutSeconds int
}

// NewLedger builds a Ledger from static bindings plus rate/sudo limits.
func NewLedger(cfg Config) *Ledger {
	l := &Ledger{
		bindings:     make(map[bindingKey]Level),
		defaultLevel: cfg.DefaultLevel,
		sudoGrants:   make(map[bindingKey]SudoGrant),
		sudoPending:  make(map[string]SudoRequest),
		sudoTimeout:  time.Duration(cfg.SudoTimeoutSeconds) * time.Second,
		rateWindows:  make(map[bindingKey][]time.Time),
		rateLimit:    cfg.RateLimitPerMinute,
		Now:          func() time.Time { return time.Now().UTC() },
	}
	for _, id := range cfg.AdminUsers {
		l.bind(id, Admin)
	}
	for _, id := range cfg.OperatorUsers {
		l.bind(id, Operator)
	}
	for _, id := range cfg.TrustedUsers {
		l.bind(id, Trusted)
	}
	return l
}

// bind parses "transport:id" or a bare id (applied to every known
// transport) and records the static binding.
func (l *Ledger) bind(id string, level Level) {
	if transport, user, ok := strings.Cut(id, ":"); ok {
		l.bindings[bindingKey{transport, user}] = level
		return
	}
	for _, t := range knownTransports {
		l.bindings[bindingKey{t, id}] = level
	}
}

// Level resolves the effective permission level for (transport, user):
// a live sudo grant first, falling back to the static binding, falling
// back to the configured default. Expired grants are dropped on read.
func (l *Ledger) Level(transport, userID string) Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.levelLocked(transport, userID)
}

func (l *Ledger) levelLocked(transport, userID string) Level {
	key := bindingKey{transport, userID}
	if grant, ok := l.sudoGrants[key]; ok {
		if l.Now().Before(grant.Expiry) {
			return grant.Level
		}
		delete(l.sudoGrants, key)
	}
	if level, ok := l.bindings[key]; ok {
		return level
	}
	return l.defaultLevel
}

// Check reports whether (transport, user)'s effective level meets or
// exceeds required.
func (l *Ledger) Check(transport, userID string, required Level) bool {
	return l.Level(transport, userID) >= required
}

// RequestSudo allocates a pending sudo request and returns its id.
func (l *Ledger) RequestSudo(transport, userID, action string, requested Level) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := uuid.NewString()
	l.sudoPending[id] = SudoRequest{
		ID:        id,
		Transport: transport,
		UserID:    userID,
		Requested: requested,
		Action:    action,
		CreatedAt: l.Now(),
	}
	return id
}

// ApproveSudo installs a grant for the pending request if the approver
// holds ADMIN. A second approval of a different request for the same
// user overwrites any existing grant — grants never stack.
func (l *Ledger) ApproveSudo(requestID, approverTransport, approverUser string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.levelLocked(approverTransport, approverUser) < Admin {
		return false
	}
	req, ok := l.sudoPending[requestID]
	if !ok {
		return false
	}
	delete(l.sudoPending, requestID)

	key := bindingKey{req.Transport, req.UserID}
	l.sudoGrants[key] = SudoGrant{
		Transport: req.Transport,
		UserID:    req.UserID,
		Level:     req.Requested,
		Expiry:    l.Now().Add(l.sudoTimeout),
	}
	return true
}

// DenySudo removes a pending request without granting elevation.
func (l *Ledger) DenySudo(requestID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.sudoPending[requestID]; !ok {
		return false
	}
	delete(l.sudoPending, requestID)
	return true
}

// RevokeSudo drops an active grant, if any.
func (l *Ledger) RevokeSudo(transport, userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := bindingKey{transport, userID}
	if _, ok := l.sudoGrants[key]; !ok {
		return false
	}
	delete(l.sudoGrants, key)
	return true
}

// ListPending returns all outstanding sudo requests.
func (l *Ledger) ListPending() []SudoRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]SudoRequest, 0, len(l.sudoPending))
	for _, r := range l.sudoPending {
		out = append(out, r)
	}
	return out
}
