package approval

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle tag of a pending approval request. Pending is the
// only non-terminal state; exactly one transition out of it is permitted.
type State string

const (
	StatePending  State = "pending"
	StateApproved State = "approved"
	StateRejected State = "rejected"
	StateExpired  State = "expired"
)

func (s State) Terminal() bool {
	return s != StatePending
}

// Request is one in-flight co-authorization ticket for an admin login
// attempt. Requests live only in process memory; a crash loses them, which
// is acceptable given the short TTL.
type Request struct {
	ID         string
	Name       string
	Email      string
	IP         string
	CreatedAt  time.Time
	State      State
	ResolvedBy string
}

// Store holds pending approval requests and arbitrates the resolution race.
// Resolve is a single compare-and-set under one lock with no suspension
// point, so two near-simultaneous calls can never both observe Pending.
type Store struct {
	mu   sync.Mutex
	reqs map[string]*Request
	ttl  time.Duration

	logger *slog.Logger
}

func NewStore(logger *slog.Logger, ttl time.Duration) *Store {
	return &Store{
		reqs:   make(map[string]*Request),
		ttl:    ttl,
		logger: logger.With(slog.String("component", "approval_store")),
	}
}

// Create registers a new pending request. Request ids come from a
// high-entropy generator, not a counter, so concurrent workers cannot
// collide.
func (s *Store) Create(name, email, ip string) Request {
	req := &Request{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		IP:        ip,
		CreatedAt: time.Now(),
		State:     StatePending,
	}

	s.mu.Lock()
	s.reqs[req.ID] = req
	s.mu.Unlock()

	s.logger.Debug("Pending request created", slog.String("requestID", req.ID), slog.String("email", email))
	return *req
}

// Resolve attempts the Pending -> terminal transition. It returns true only
// for the call that performed the transition; unknown ids and requests that
// are already terminal return false. The caller uses the return value to
// decide whether its responder won the race.
func (s *Store) Resolve(requestID string, outcome State, resolvedBy string) bool {
	if !outcome.Terminal() {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.reqs[requestID]
	if !ok || req.State != StatePending {
		return false
	}
	req.State = outcome
	req.ResolvedBy = resolvedBy
	return true
}

// Get returns a copy of the request, so callers can never mutate stored
// state behind the lock.
func (s *Store) Get(requestID string) (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.reqs[requestID]
	if !ok {
		return Request{}, false
	}
	return *req, true
}

// Evict drops a request after its outcome has been delivered (or dropped).
// Later Resolve calls for the id return false as for any unknown id.
func (s *Store) Evict(requestID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reqs, requestID)
}

// SweepExpired transitions every Pending request created before now-TTL to
// Expired and removes it, returning copies of the newly expired entries so
// the caller can signal the original requesters. It shares the Resolve lock,
// so a sweep racing a resolve on the same id still yields exactly one winner.
func (s *Store) SweepExpired(now time.Time) []Request {
	cutoff := now.Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []Request
	for id, req := range s.reqs {
		if req.State != StatePending || !req.CreatedAt.Before(cutoff) {
			continue
		}
		req.State = StateExpired
		expired = append(expired, *req)
		delete(s.reqs, id)
	}

	if len(expired) > 0 {
		s.logger.Info("Expired unresolved approval requests", slog.Int("count", len(expired)))
	}
	return expired
}
