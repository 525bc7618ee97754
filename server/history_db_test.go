package server

import (
	"net/http"
	"os"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kgashok/PlumConfusedOpensource/migrate"
	"github.com/kgashok/PlumConfusedOpensource/store"
)

// TestMessageHistory posts through the API and reads the history back from
// the local store. Skipped unless TEST_DATABASE_DSN points at Postgres.
func TestMessageHistory(t *testing.T) {
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
	db.Exec(`DELETE FROM messages`)

	fp := newFakePlatform()
	fp.content = func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"data":{"id":"999","text":"hello history"}}`))
		case http.MethodDelete:
			w.Write([]byte(`{"data":{"deleted":true}}`))
		}
	}
	e, _ := newTestApp(t, fp, store.NewMessageStore(db), store.NewSearchStore(db))
	signIn(e)

	e.POST("/api/tweets").
		WithJSON(map[string]string{"text": "hello history"}).
		Expect().Status(http.StatusCreated)

	first := e.GET("/api/tweets").Expect().
		Status(http.StatusOK).
		JSON().Object().Value("data").Array().First().Object()
	first.ValueEqual("id", "999")
	first.ValueEqual("text", "hello history")
	first.ValueEqual("screen_name", "alice")
	first.ValueEqual("deleted", false)

	// Deleting upstream flags the local row but keeps it in the history.
	e.DELETE("/api/tweets/999").Expect().Status(http.StatusOK)
	e.GET("/api/tweets").Expect().
		Status(http.StatusOK).
		JSON().Object().Value("data").Array().First().Object().
		ValueEqual("deleted", true)
}
