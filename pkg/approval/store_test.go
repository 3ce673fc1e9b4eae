package approval_test

import (
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/seifgad/acadgate/pkg/approval"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

func newTestStore(ttl time.Duration) *approval.Store {
	return approval.NewStore(newTestLogger(), ttl)
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(2 * time.Minute)

	req := s.Create("New Admin", "new@campus.edu", "10.0.0.1")
	if req.ID == "" {
		t.Fatal("Expected a generated request id")
	}
	if req.State != approval.StatePending {
		t.Errorf("Expected new request to be pending, got %s", req.State)
	}

	got, found := s.Get(req.ID)
	if !found {
		t.Fatal("Get failed to find created request")
	}
	if got.Email != "new@campus.edu" {
		t.Errorf("Expected email to round-trip, got %s", got.Email)
	}
}

func TestResolveFirstCallWins(t *testing.T) {
	s := newTestStore(2 * time.Minute)
	req := s.Create("New Admin", "new@campus.edu", "10.0.0.1")

	if !s.Resolve(req.ID, approval.StateApproved, "admin-a") {
		t.Fatal("Expected first resolve to win")
	}
	if s.Resolve(req.ID, approval.StateRejected, "admin-b") {
		t.Error("Expected second resolve to lose")
	}

	got, _ := s.Get(req.ID)
	if got.State != approval.StateApproved {
		t.Errorf("Expected final state approved, got %s", got.State)
	}
	if got.ResolvedBy != "admin-a" {
		t.Errorf("Expected resolution attributed to admin-a, got %s", got.ResolvedBy)
	}
}

func TestResolveUnknownIDReturnsFalse(t *testing.T) {
	s := newTestStore(2 * time.Minute)
	if s.Resolve("never-created", approval.StateApproved, "admin-a") {
		t.Error("Expected resolve of unknown id to return false")
	}
}

func TestResolveRejectsNonTerminalOutcome(t *testing.T) {
	s := newTestStore(2 * time.Minute)
	req := s.Create("New Admin", "new@campus.edu", "10.0.0.1")

	if s.Resolve(req.ID, approval.StatePending, "admin-a") {
		t.Error("Expected resolve to pending to be refused")
	}
	got, _ := s.Get(req.ID)
	if got.State != approval.StatePending {
		t.Errorf("Expected request to remain pending, got %s", got.State)
	}
}

func TestConcurrentResolveHasExactlyOneWinner(t *testing.T) {
	s := newTestStore(2 * time.Minute)

	// hammer the race a few times; one winner per request, every round
	for round := 0; round < 50; round++ {
		req := s.Create("New Admin", "new@campus.edu", "10.0.0.1")

		const resolvers = 8
		var wg sync.WaitGroup
		wins := make([]bool, resolvers)
		for i := 0; i < resolvers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				outcome := approval.StateApproved
				if i%2 == 1 {
					outcome = approval.StateRejected
				}
				wins[i] = s.Resolve(req.ID, outcome, "admin")
			}(i)
		}
		wg.Wait()

		winners := 0
		var winnerIdx int
		for i, won := range wins {
			if won {
				winners++
				winnerIdx = i
			}
		}
		if winners != 1 {
			t.Fatalf("Round %d: expected exactly 1 winner, got %d", round, winners)
		}

		got, _ := s.Get(req.ID)
		want := approval.StateApproved
		if winnerIdx%2 == 1 {
			want = approval.StateRejected
		}
		if got.State != want {
			t.Fatalf("Round %d: final state %s does not match winning call's outcome %s", round, got.State, want)
		}
	}
}

func TestSweepExpiredHonorsCutoff(t *testing.T) {
	ttl := 2 * time.Minute
	s := newTestStore(ttl)

	stale := s.Create("Stale Admin", "stale@campus.edu", "10.0.0.1")
	time.Sleep(10 * time.Millisecond) // Ensure creation times are distinguishable
	fresh := s.Create("Fresh Admin", "fresh@campus.edu", "10.0.0.2")

	// pick a sweep time whose cutoff lands between the two creation times
	now := stale.CreatedAt.Add(ttl + 5*time.Millisecond)
	expired := s.SweepExpired(now)

	if len(expired) != 1 {
		t.Fatalf("Expected exactly the stale request to expire, got %d", len(expired))
	}
	if expired[0].ID != stale.ID {
		t.Errorf("Expected stale request %s to expire, got %s", stale.ID, expired[0].ID)
	}
	if expired[0].State != approval.StateExpired {
		t.Errorf("Expected swept request state expired, got %s", expired[0].State)
	}

	if got, found := s.Get(fresh.ID); !found || got.State != approval.StatePending {
		t.Error("Expected fresh request to survive the sweep untouched")
	}
	if s.Resolve(stale.ID, approval.StateApproved, "late-admin") {
		t.Error("Expected resolve after expiry to return false")
	}
}

func TestSweepLeavesFreshRequestsUntouched(t *testing.T) {
	s := newTestStore(2 * time.Minute)
	req := s.Create("Fresh Admin", "fresh@campus.edu", "10.0.0.1")

	expired := s.SweepExpired(time.Now())
	if len(expired) != 0 {
		t.Fatalf("Expected no expirations within TTL, got %d", len(expired))
	}

	got, found := s.Get(req.ID)
	if !found || got.State != approval.StatePending {
		t.Error("Expected fresh request to remain pending after sweep")
	}
}

func TestSweepRacingResolveYieldsOneWinner(t *testing.T) {
	s := newTestStore(0) // zero TTL: everything pending is immediately expirable

	for round := 0; round < 50; round++ {
		req := s.Create("New Admin", "new@campus.edu", "10.0.0.1")

		var wg sync.WaitGroup
		var resolved bool
		var expired []approval.Request
		wg.Add(2)
		go func() {
			defer wg.Done()
			resolved = s.Resolve(req.ID, approval.StateApproved, "admin-a")
		}()
		go func() {
			defer wg.Done()
			expired = s.SweepExpired(time.Now().Add(time.Second))
		}()
		wg.Wait()

		sweepWon := len(expired) == 1
		if resolved == sweepWon {
			t.Fatalf("Round %d: expected exactly one of resolve/sweep to win (resolve=%v, sweep=%v)", round, resolved, sweepWon)
		}
		s.Evict(req.ID)
	}
}

func TestEvictMakesResolveANoOp(t *testing.T) {
	s := newTestStore(2 * time.Minute)
	req := s.Create("New Admin", "new@campus.edu", "10.0.0.1")

	s.Evict(req.ID)
	if s.Resolve(req.ID, approval.StateApproved, "admin-a") {
		t.Error("Expected resolve after evict to return false")
	}
	if _, found := s.Get(req.ID); found {
		t.Error("Expected evicted request to be gone")
	}
}
