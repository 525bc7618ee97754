package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	session "github.com/go-session/session/v3"
	"github.com/tidwall/buntdb"
)

// BuntStore is the default session ManagerStore, backed by buntdb with
// per-session TTLs. Pass ":memory:" for an ephemeral store.
type BuntStore struct {
	db     *buntdb.DB
	prefix string
}

// NewBuntStore opens (or creates) the session database at path.
func NewBuntStore(path, prefix string) (*BuntStore, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	if prefix == "" {
		prefix = "session:"
	}
	return &BuntStore{db: db, prefix: prefix}, nil
}

func (s *BuntStore) key(sid string) string { return s.prefix + sid }

// Check the session store exists
func (s *BuntStore) Check(_ context.Context, sid string) (bool, error) {
	var exists bool
	err := s.db.View(func(tx *buntdb.Tx) error {
		_, err := tx.Get(s.key(sid))
		if err == buntdb.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	})
	return exists, err
}

// Create a session store and specify the expiration time (in seconds)
func (s *BuntStore) Create(ctx context.Context, sid string, expired int64) (session.Store, error) {
	return newValueStore(ctx, s, sid, expired, nil), nil
}

// Update refreshes the session TTL, keeping any stored values.
func (s *BuntStore) Update(ctx context.Context, sid string, expired int64) (session.Store, error) {
	values, found, err := s.load(sid)
	if err != nil {
		return nil, err
	}
	store := newValueStore(ctx, s, sid, expired, values)
	if found {
		if err := store.Save(); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// Delete a session store
func (s *BuntStore) Delete(_ context.Context, sid string) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(s.key(sid))
		if err == buntdb.ErrNotFound {
			return nil
		}
		return err
	})
}

// Refresh moves the session data under a new sid and removes the old one.
func (s *BuntStore) Refresh(ctx context.Context, oldsid, sid string, expired int64) (session.Store, error) {
	values, _, err := s.load(oldsid)
	if err != nil {
		return nil, err
	}
	store := newValueStore(ctx, s, sid, expired, values)
	if err := store.Save(); err != nil {
		return nil, err
	}
	if err := s.Delete(ctx, oldsid); err != nil {
		return nil, err
	}
	return store, nil
}

// Close storage, release resources
func (s *BuntStore) Close() error { return s.db.Close() }

func (s *BuntStore) load(sid string) (map[string]interface{}, bool, error) {
	var raw string
	err := s.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(s.key(sid))
		if err == buntdb.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		raw = v
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if raw == "" {
		return nil, false, nil
	}
	var values map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, false, fmt.Errorf("decode session values: %w", err)
	}
	return values, true, nil
}

func (s *BuntStore) save(sid string, values map[string]interface{}, expired int64) error {
	data, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(s.key(sid), string(data), &buntdb.SetOptions{
			Expires: true,
			TTL:     time.Duration(expired) * time.Second,
		})
		return err
	})
}

// sessionSaver is how a valueStore flushes into its backend.
type sessionSaver interface {
	save(sid string, values map[string]interface{}, expired int64) error
}

// valueStore implements session.Store over an in-memory value map that
// Save flushes into the owning backend.
type valueStore struct {
	sync.RWMutex
	ctx     context.Context
	parent  sessionSaver
	sid     string
	expired int64
	values  map[string]interface{}
}

func newValueStore(ctx context.Context, parent sessionSaver, sid string, expired int64, values map[string]interface{}) *valueStore {
	if values == nil {
		values = make(map[string]interface{})
	}
	return &valueStore{ctx: ctx, parent: parent, sid: sid, expired: expired, values: values}
}

func (vs *valueStore) Context() context.Context { return vs.ctx }

func (vs *valueStore) SessionID() string { return vs.sid }

func (vs *valueStore) Set(key string, value interface{}) {
	vs.Lock()
	vs.values[key] = value
	vs.Unlock()
}

func (vs *valueStore) Get(key string) (interface{}, bool) {
	vs.RLock()
	v, ok := vs.values[key]
	vs.RUnlock()
	return v, ok
}

func (vs *valueStore) Delete(key string) interface{} {
	vs.Lock()
	v := vs.values[key]
	delete(vs.values, key)
	vs.Unlock()
	return v
}

func (vs *valueStore) Flush() error {
	vs.Lock()
	vs.values = make(map[string]interface{})
	vs.Unlock()
	return vs.Save()
}

func (vs *valueStore) Save() error {
	vs.RLock()
	defer vs.RUnlock()
	return vs.parent.save(vs.sid, vs.values, vs.expired)
}
