package sessions

import (
	"context"
	"testing"
)

func TestBuntStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	bs, err := NewBuntStore(":memory:", "")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer bs.Close()

	t.Run("values persist across loads", func(t *testing.T) {
		s, err := bs.Create(ctx, "sid-a", 3600)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		s.Set("oauth_access_token", "final")
		if err := s.Save(); err != nil {
			t.Fatalf("Save: %v", err)
		}

		exists, err := bs.Check(ctx, "sid-a")
		if err != nil || !exists {
			t.Fatalf("Check after save: exists=%v err=%v", exists, err)
		}

		reloaded, err := bs.Update(ctx, "sid-a", 3600)
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if v, ok := reloaded.Get("oauth_access_token"); !ok || v != "final" {
			t.Errorf("reloaded value = %v (%v)", v, ok)
		}
	})

	t.Run("refresh moves data to the new sid", func(t *testing.T) {
		s, _ := bs.Create(ctx, "sid-old", 3600)
		s.Set("k", "v")
		s.Save()

		moved, err := bs.Refresh(ctx, "sid-old", "sid-new", 3600)
		if err != nil {
			t.Fatalf("Refresh: %v", err)
		}
		if v, ok := moved.Get("k"); !ok || v != "v" {
			t.Errorf("moved value = %v (%v)", v, ok)
		}
		if moved.SessionID() != "sid-new" {
			t.Errorf("SessionID = %q", moved.SessionID())
		}
		if exists, _ := bs.Check(ctx, "sid-old"); exists {
			t.Error("old sid survived refresh")
		}
		if exists, _ := bs.Check(ctx, "sid-new"); !exists {
			t.Error("new sid not created by refresh")
		}
	})

	t.Run("delete and flush clear state", func(t *testing.T) {
		s, _ := bs.Create(ctx, "sid-b", 3600)
		s.Set("k", "v")
		s.Save()

		if err := s.Flush(); err != nil {
			t.Fatalf("Flush: %v", err)
		}
		if _, ok := s.Get("k"); ok {
			t.Error("value survived flush")
		}

		if err := bs.Delete(ctx, "sid-b"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if exists, _ := bs.Check(ctx, "sid-b"); exists {
			t.Error("sid survived delete")
		}
		// Deleting a missing sid is not an error.
		if err := bs.Delete(ctx, "sid-b"); err != nil {
			t.Errorf("double delete: %v", err)
		}
	})

	t.Run("unknown sid does not exist", func(t *testing.T) {
		if exists, err := bs.Check(ctx, "never-created"); err != nil || exists {
			t.Errorf("Check unknown sid: exists=%v err=%v", exists, err)
		}
	})
}
