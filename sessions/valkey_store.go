package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	session "github.com/go-session/session/v3"
	valkey "github.com/valkey-io/valkey-go"
)

// ValkeyStore is a Valkey (Redis-compatible) session ManagerStore for
// deployments that share sessions across instances.
type ValkeyStore struct {
	client valkey.Client
	prefix string
}

// NewValkeyStore creates a Valkey-backed session store.
// addr example: "127.0.0.1:6379"; prefix helps namespace keys.
func NewValkeyStore(addr, prefix string) (*ValkeyStore, error) {
	cli, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}})
	if err != nil {
		return nil, err
	}
	if prefix == "" {
		prefix = "session:"
	}
	return &ValkeyStore{client: cli, prefix: prefix}, nil
}

// NewValkeyStoreWithClient creates a session store with an existing client.
func NewValkeyStoreWithClient(client valkey.Client, prefix string) *ValkeyStore {
	if prefix == "" {
		prefix = "session:"
	}
	return &ValkeyStore{client: client, prefix: prefix}
}

func (s *ValkeyStore) key(sid string) string { return s.prefix + sid }

// Check the session store exists
func (s *ValkeyStore) Check(ctx context.Context, sid string) (bool, error) {
	res := s.client.Do(ctx, s.client.B().Exists().Key(s.key(sid)).Build())
	if res.Error() != nil {
		return false, res.Error()
	}
	n, err := res.AsInt64()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Create a session store and specify the expiration time (in seconds)
func (s *ValkeyStore) Create(ctx context.Context, sid string, expired int64) (session.Store, error) {
	return newValueStore(ctx, &valkeySaver{s: s, ctx: ctx}, sid, expired, nil), nil
}

// Update refreshes the session TTL, keeping any stored values.
func (s *ValkeyStore) Update(ctx context.Context, sid string, expired int64) (session.Store, error) {
	values, found, err := s.load(ctx, sid)
	if err != nil {
		return nil, err
	}
	store := newValueStore(ctx, &valkeySaver{s: s, ctx: ctx}, sid, expired, values)
	if found {
		if err := store.Save(); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// Delete a session store
func (s *ValkeyStore) Delete(ctx context.Context, sid string) error {
	return s.client.Do(ctx, s.client.B().Del().Key(s.key(sid)).Build()).Error()
}

// Refresh moves the session data under a new sid and removes the old one.
func (s *ValkeyStore) Refresh(ctx context.Context, oldsid, sid string, expired int64) (session.Store, error) {
	values, _, err := s.load(ctx, oldsid)
	if err != nil {
		return nil, err
	}
	store := newValueStore(ctx, &valkeySaver{s: s, ctx: ctx}, sid, expired, values)
	if err := store.Save(); err != nil {
		return nil, err
	}
	if err := s.Delete(ctx, oldsid); err != nil {
		return nil, err
	}
	return store, nil
}

// Close storage, release resources
func (s *ValkeyStore) Close() error {
	s.client.Close()
	return nil
}

func (s *ValkeyStore) load(ctx context.Context, sid string) (map[string]interface{}, bool, error) {
	res := s.client.Do(ctx, s.client.B().Get().Key(s.key(sid)).Build())
	if res.Error() != nil {
		if valkey.IsValkeyNil(res.Error()) {
			return nil, false, nil
		}
		return nil, false, res.Error()
	}
	raw, err := res.ToString()
	if err != nil || raw == "" {
		return nil, false, nil
	}
	var values map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, false, fmt.Errorf("decode session values: %w", err)
	}
	return values, true, nil
}

// valkeySaver adapts ValkeyStore to the sessionSaver used by valueStore.
// It captures the request context because sessionSaver has none.
type valkeySaver struct {
	s   *ValkeyStore
	ctx context.Context
}

func (vs *valkeySaver) save(sid string, values map[string]interface{}, expired int64) error {
	data, err := json.Marshal(values)
	if err != nil {
		return err
	}
	ttl := time.Duration(expired) * time.Second
	return vs.s.client.Do(vs.ctx,
		vs.s.client.B().Set().Key(vs.s.key(sid)).Value(string(data)).Ex(ttl).Build()).Error()
}
