package sessions

import (
	"context"
	"os"
	"testing"
)

// openTestValkey connects to the instance named by TEST_VALKEY_ADDR. Tests
// are skipped when no instance is available.
func openTestValkey(t *testing.T) *ValkeyStore {
	t.Helper()
	addr := os.Getenv("TEST_VALKEY_ADDR")
	if addr == "" {
		t.Skip("TEST_VALKEY_ADDR not set; skipping valkey tests")
	}
	vs, err := NewValkeyStore(addr, "session_test:")
	if err != nil {
		t.Skipf("valkey unavailable: %v", err)
	}
	t.Cleanup(func() { vs.Close() })
	return vs
}

func TestValkeyStoreLifecycle(t *testing.T) {
	vs := openTestValkey(t)
	ctx := context.Background()

	t.Run("values persist across loads", func(t *testing.T) {
		s, err := vs.Create(ctx, "sid-a", 60)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		s.Set("oauth_access_token", "final")
		if err := s.Save(); err != nil {
			t.Fatalf("Save: %v", err)
		}

		exists, err := vs.Check(ctx, "sid-a")
		if err != nil || !exists {
			t.Fatalf("Check after save: exists=%v err=%v", exists, err)
		}

		reloaded, err := vs.Update(ctx, "sid-a", 60)
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if v, ok := reloaded.Get("oauth_access_token"); !ok || v != "final" {
			t.Errorf("reloaded value = %v (%v)", v, ok)
		}
	})

	t.Run("refresh moves data to the new sid", func(t *testing.T) {
		s, _ := vs.Create(ctx, "sid-old", 60)
		s.Set("k", "v")
		s.Save()

		moved, err := vs.Refresh(ctx, "sid-old", "sid-new", 60)
		if err != nil {
			t.Fatalf("Refresh: %v", err)
		}
		if v, ok := moved.Get("k"); !ok || v != "v" {
			t.Errorf("moved value = %v (%v)", v, ok)
		}
		if exists, _ := vs.Check(ctx, "sid-old"); exists {
			t.Error("old sid survived refresh")
		}
	})

	t.Run("delete clears state", func(t *testing.T) {
		s, _ := vs.Create(ctx, "sid-b", 60)
		s.Set("k", "v")
		s.Save()

		if err := vs.Delete(ctx, "sid-b"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if exists, _ := vs.Check(ctx, "sid-b"); exists {
			t.Error("sid survived delete")
		}
	})
}
