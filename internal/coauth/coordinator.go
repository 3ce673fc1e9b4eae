package coauth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/seifgad/acadgate/pkg/approval"
	"github.com/seifgad/acadgate/pkg/session"
)

// Wire event names for the co-authorization flow.
const (
	// EventApprovalRequest is broadcast to the admins room when a new admin
	// login needs a second admin's sign-off.
	EventApprovalRequest = "admin:approval_request"
	// EventLoginResult is delivered to the requester on the connection that
	// initiated the login attempt.
	EventLoginResult = "login:result"
)

type approvalRequestPayload struct {
	RequestID string `json:"request_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	IP        string `json:"ip"`
}

type loginResultPayload struct {
	RequestID  string `json:"request_id"`
	Approved   bool   `json:"approved"`
	Expired    bool   `json:"expired,omitempty"`
	ResolvedBy string `json:"resolved_by,omitempty"`
}

// Notifier is the slice of the fan-out the coordinator needs; errors are
// advisory and never affect the approval flow.
type Notifier interface {
	Notify(ctx context.Context, identityID, notifType, title string, payload any) error
}

// Coordinator runs the admin co-authorization state machine: it creates a
// pending request per login attempt, broadcasts it to every connected admin,
// lets the store arbitrate which response wins, and delivers the outcome to
// the requester's connection. The only correctness guarantee it enforces is
// single-winner resolution; delivery is best effort.
type Coordinator struct {
	logger      *slog.Logger
	store       *approval.Store
	broadcaster *session.Broadcaster
	notifier    Notifier

	mu         sync.Mutex
	requesters map[string]session.Conn // requestID -> originating connection
}

func New(logger *slog.Logger, store *approval.Store, broadcaster *session.Broadcaster, notifier Notifier) *Coordinator {
	return &Coordinator{
		logger:      logger.With(slog.String("component", "approval_coordinator")),
		store:       store,
		broadcaster: broadcaster,
		notifier:    notifier,
		requesters:  make(map[string]session.Conn),
	}
}

// Begin starts a co-authorization round for a login attempt arriving on
// conn. The broadcast is fire-and-forget: only admins connected right now
// see it, and that is enough, since any one of them can resolve it.
func (c *Coordinator) Begin(conn session.Conn, name, email, ip string) string {
	req := c.store.Create(name, email, ip)

	c.mu.Lock()
	c.requesters[req.ID] = conn
	c.mu.Unlock()

	c.broadcaster.Broadcast(session.AdminsRoom, EventApprovalRequest, approvalRequestPayload{
		RequestID: req.ID,
		Name:      req.Name,
		Email:     req.Email,
		IP:        req.IP,
	})

	c.logger.Info("Approval round started",
		slog.String("requestID", req.ID),
		slog.String("email", email),
		slog.String("ip", ip),
	)
	return req.ID
}

// Respond applies one admin's vote. Losers of the race, late clicks on
// expired requests, and unknown ids all fall through silently: the second
// responder's vote is simply moot, and telling them so would leak race
// timing.
func (c *Coordinator) Respond(ctx context.Context, requestID string, approved bool, admin session.Identity) {
	outcome := approval.StateRejected
	if approved {
		outcome = approval.StateApproved
	}

	if !c.store.Resolve(requestID, outcome, admin.Name) {
		c.logger.Debug("Discarding response for already-resolved or unknown request",
			slog.String("requestID", requestID),
			slog.String("adminID", admin.ID),
		)
		return
	}

	conn := c.takeRequester(requestID)
	c.store.Evict(requestID)

	if conn == nil {
		// requester abandoned the login page; they must retry for a fresh id
		c.logger.Info("Requester connection gone at resolution time",
			slog.String("requestID", requestID),
		)
	} else {
		c.broadcaster.Push(conn, EventLoginResult, loginResultPayload{
			RequestID:  requestID,
			Approved:   approved,
			ResolvedBy: admin.Name,
		})
	}

	c.logger.Info("Approval request resolved",
		slog.String("requestID", requestID),
		slog.String("outcome", string(outcome)),
		slog.String("adminID", admin.ID),
	)

	if c.notifier != nil {
		title := "Admin login rejected"
		if approved {
			title = "Admin login approved"
		}
		if err := c.notifier.Notify(ctx, admin.ID, "AdminApproval", title, loginResultPayload{
			RequestID:  requestID,
			Approved:   approved,
			ResolvedBy: admin.Name,
		}); err != nil {
			c.logger.Warn("Failed to record approval notification", slog.Any("error", err))
		}
	}
}

// Forget drops the requester-connection reference when the originating
// connection closes. The pending request itself stays resolvable until the
// TTL sweep reaps it; admins may still vote, the vote is just undeliverable.
func (c *Coordinator) Forget(connID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, conn := range c.requesters {
		if conn.ID() == connID {
			delete(c.requesters, id)
		}
	}
}

// Run drives the periodic TTL sweep until the context is cancelled. Each
// newly expired request is reported to its requester as a timed-out
// rejection, when that connection still exists.
func (c *Coordinator) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.Sweep(now)
		}
	}
}

// Sweep expires stale pending requests as of now. Split out of Run so tests
// can drive time explicitly.
func (c *Coordinator) Sweep(now time.Time) {
	for _, req := range c.store.SweepExpired(now) {
		conn := c.takeRequester(req.ID)
		if conn == nil {
			continue
		}
		c.broadcaster.Push(conn, EventLoginResult, loginResultPayload{
			RequestID: req.ID,
			Approved:  false,
			Expired:   true,
		})
		c.logger.Info("Delivered expiry to requester", slog.String("requestID", req.ID))
	}
}

func (c *Coordinator) takeRequester(requestID string) session.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	conn := c.requesters[requestID]
	delete(c.requesters, requestID)
	return conn
}
