package store

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	valkey "github.com/valkey-io/valkey-go"
)

const (
	defaultLockTTL     = 30 * time.Second
	defaultRenewPeriod = 10 * time.Second
	janitorLockKey     = "leader:cache-janitor"
)

// LeaderElection elects one instance to run background maintenance (the
// search-cache janitor) when several replicas share a database. The lock
// lives in Valkey with a TTL; a crashed leader's lock expires on its own.
type LeaderElection struct {
	client   valkey.Client
	prefix   string
	identity string

	lockTTL     time.Duration
	renewPeriod time.Duration

	mu       sync.RWMutex
	isLeader bool
	stop     chan struct{}
	done     chan struct{}
	started  bool
	stopped  bool
}

// NewLeaderElection creates an election participant. prefix namespaces the
// lock key alongside the session keys.
func NewLeaderElection(client valkey.Client, prefix string) *LeaderElection {
	hostname, _ := os.Hostname()
	return &LeaderElection{
		client:      client,
		prefix:      prefix,
		identity:    fmt.Sprintf("%s-%s", hostname, uuid.NewString()[:8]),
		lockTTL:     defaultLockTTL,
		renewPeriod: defaultRenewPeriod,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

func (le *LeaderElection) key() string { return le.prefix + janitorLockKey }

// IsLeader reports whether this instance currently holds the lock.
func (le *LeaderElection) IsLeader() bool {
	le.mu.RLock()
	defer le.mu.RUnlock()
	return le.isLeader
}

// Identity returns this instance's unique election identity.
func (le *LeaderElection) Identity() string { return le.identity }

// Start runs the election loop until ctx is done or Stop is called.
func (le *LeaderElection) Start(ctx context.Context) {
	le.mu.Lock()
	if le.started {
		le.mu.Unlock()
		return
	}
	le.started = true
	le.mu.Unlock()
	go le.run(ctx)
}

// Stop leaves the election and blocks until the lock is released, so a
// terminating replica hands leadership over instead of holding the key
// until its TTL expires.
func (le *LeaderElection) Stop() {
	le.mu.Lock()
	started := le.started
	if !le.stopped {
		le.stopped = true
		close(le.stop)
	}
	le.mu.Unlock()
	if started {
		<-le.done
	}
}

func (le *LeaderElection) run(ctx context.Context) {
	defer close(le.done)
	ticker := time.NewTicker(le.renewPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-le.stop:
			le.resignDetached()
			return
		case <-ctx.Done():
			le.resignDetached()
			return
		case <-ticker.C:
			le.tick(ctx)
		}
	}
}

// resignDetached releases the lock under a fresh context; the loop context
// is already cancelled when shutdown gets here.
func (le *LeaderElection) resignDetached() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	le.resign(ctx)
}

func (le *LeaderElection) tick(ctx context.Context) {
	if le.IsLeader() {
		renewed, err := le.renew(ctx)
		if err != nil || !renewed {
			log.Printf("leader-election: lost lock (identity=%s err=%v)", le.identity, err)
			le.resign(ctx)
		}
		return
	}

	acquired, err := le.acquire(ctx)
	if err != nil {
		log.Printf("leader-election: acquire failed: %v", err)
		return
	}
	if acquired {
		log.Printf("leader-election: became leader (identity=%s)", le.identity)
		le.mu.Lock()
		le.isLeader = true
		le.mu.Unlock()
	}
}

// acquire takes the lock with SET NX EX so acquisition and TTL are atomic.
func (le *LeaderElection) acquire(ctx context.Context) (bool, error) {
	res := le.client.Do(ctx,
		le.client.B().Set().Key(le.key()).Value(le.identity).Nx().Ex(le.lockTTL).Build())
	if res.Error() != nil {
		if valkey.IsValkeyNil(res.Error()) {
			return false, nil // held by another instance
		}
		return false, res.Error()
	}
	ok, err := res.ToString()
	if err != nil {
		return false, nil
	}
	return ok == "OK", nil
}

// renew extends the TTL only while the lock still carries our identity.
func (le *LeaderElection) renew(ctx context.Context) (bool, error) {
	script := `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("expire", KEYS[1], ARGV[2])
		else
			return 0
		end
	`
	ttl := fmt.Sprintf("%d", int64(le.lockTTL.Seconds()))
	res := le.client.Do(ctx,
		le.client.B().Eval().Script(script).Numkeys(1).Key(le.key()).Arg(le.identity).Arg(ttl).Build())
	if res.Error() != nil {
		return false, res.Error()
	}
	n, err := res.ToInt64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// resign drops leadership and deletes the lock if we still own it.
func (le *LeaderElection) resign(ctx context.Context) {
	le.mu.Lock()
	wasLeader := le.isLeader
	le.isLeader = false
	le.mu.Unlock()

	if !wasLeader {
		return
	}
	script := `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`
	res := le.client.Do(ctx,
		le.client.B().Eval().Script(script).Numkeys(1).Key(le.key()).Arg(le.identity).Build())
	if res.Error() != nil {
		log.Printf("leader-election: release failed: %v", res.Error())
	}
}
