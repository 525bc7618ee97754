package store

import (
	"context"
	"os"
	"testing"
	"time"

	valkey "github.com/valkey-io/valkey-go"
)

// openTestValkeyClient connects to the instance named by TEST_VALKEY_ADDR.
// Tests are skipped when no instance is available.
func openTestValkeyClient(t *testing.T) valkey.Client {
	t.Helper()
	addr := os.Getenv("TEST_VALKEY_ADDR")
	if addr == "" {
		t.Skip("TEST_VALKEY_ADDR not set; skipping valkey tests")
	}
	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}})
	if err != nil {
		t.Skipf("valkey unavailable: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

func newFastElection(client valkey.Client, prefix string) *LeaderElection {
	le := NewLeaderElection(client, prefix)
	le.lockTTL = 2 * time.Second
	le.renewPeriod = 20 * time.Millisecond
	return le
}

func waitForLeadership(t *testing.T, le *LeaderElection, want bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if le.IsLeader() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("leadership never became %v (identity=%s)", want, le.Identity())
}

func lockValue(t *testing.T, client valkey.Client, prefix string) (string, bool) {
	t.Helper()
	res := client.Do(context.Background(),
		client.B().Get().Key(prefix+janitorLockKey).Build())
	if res.Error() != nil {
		if valkey.IsValkeyNil(res.Error()) {
			return "", false
		}
		t.Fatalf("GET lock: %v", res.Error())
	}
	v, err := res.ToString()
	if err != nil {
		t.Fatalf("lock value: %v", err)
	}
	return v, true
}

func TestLeaderElectionHandover(t *testing.T) {
	client := openTestValkeyClient(t)
	const prefix = "election_test:"
	ctx := context.Background()

	first := newFastElection(client, prefix)
	first.Start(ctx)
	waitForLeadership(t, first, true)

	if v, held := lockValue(t, client, prefix); !held || v != first.Identity() {
		t.Fatalf("lock holder = %q held=%v, want %q", v, held, first.Identity())
	}

	second := newFastElection(client, prefix)
	second.Start(ctx)
	time.Sleep(100 * time.Millisecond)
	if second.IsLeader() {
		t.Fatal("second instance acquired a held lock")
	}

	// Stop hands the lock back immediately instead of waiting out the TTL.
	first.Stop()
	if v, held := lockValue(t, client, prefix); held && v == first.Identity() {
		t.Fatal("stopped leader still holds the lock")
	}
	waitForLeadership(t, second, true)

	second.Stop()
	if _, held := lockValue(t, client, prefix); held {
		t.Fatal("lock not released after last participant stopped")
	}
}

func TestLeaderElectionReleasesOnContextCancel(t *testing.T) {
	client := openTestValkeyClient(t)
	const prefix = "election_cancel_test:"

	ctx, cancel := context.WithCancel(context.Background())
	le := newFastElection(client, prefix)
	le.Start(ctx)
	waitForLeadership(t, le, true)

	cancel()
	le.Stop() // waits for the release
	if _, held := lockValue(t, client, prefix); held {
		t.Fatal("lock survived context cancellation")
	}
}
