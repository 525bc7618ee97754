package server

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kgashok/PlumConfusedOpensource/migrate"
	"github.com/kgashok/PlumConfusedOpensource/models"
	"github.com/kgashok/PlumConfusedOpensource/store"
)

// TestSearchFallbackToCache exercises the rate-limit downgrade against a
// real database. Skipped unless TEST_DATABASE_DSN points at Postgres.
func TestSearchFallbackToCache(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set; skipping database tests")
	}
	if err := migrate.Run(migrate.Options{Driver: "postgres", DSN: dsn, Command: "up"}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	db.Exec(`DELETE FROM search_results`)

	search := store.NewSearchStore(db)
	cached := []models.SearchResult{
		{ID: "1", Text: "cached result", CreatedAt: time.Now().UTC().Add(-time.Hour), AuthorID: "42", ScreenName: "alice"},
	}
	if err := search.UpsertAll(context.Background(), cached); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	fp := newFakePlatform()
	fp.content = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"title":"Too Many Requests"}`))
	}
	e, _ := newTestApp(t, fp, store.NewMessageStore(db), search)
	signIn(e)

	obj := e.GET("/api/search").
		WithQuery("q", "golang").
		Expect().Status(http.StatusOK).
		JSON().Object()
	obj.ValueEqual("stale", true)
	obj.Value("retry_after").Number().Gt(0)
	obj.Value("data").Array().First().Object().ValueEqual("text", "cached result")
}
