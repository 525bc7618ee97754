package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	session "github.com/go-session/session/v3"
	valkey "github.com/valkey-io/valkey-go"

	"github.com/kgashok/PlumConfusedOpensource/metrics"
	"github.com/kgashok/PlumConfusedOpensource/migrate"
	"github.com/kgashok/PlumConfusedOpensource/server"
	"github.com/kgashok/PlumConfusedOpensource/sessions"
	"github.com/kgashok/PlumConfusedOpensource/store"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg := server.GetConfig()

	if cfg.ConsumerKey() == "" || cfg.ConsumerSecret() == "" {
		log.Fatal("consumer key/secret not configured (PLUM_CONSUMER__KEY / PLUM_CONSUMER__SECRET)")
	}

	// Optionally run DB migrations before the server starts:
	// MIGRATE_ON_START=1 MIGRATE_DRIVER=postgres MIGRATE_DSN=...
	if err := migrate.RunFromEnv(); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	sessionStore, valkeyClient := newSessionStore(cfg)
	sessions.Init(sessions.Options{
		Store:      sessionStore,
		CookieName: cfg.Session.CookieName,
		Sign:       []byte(cfg.Session.Sign),
		Secure:     cfg.Production(),
		Expired:    cfg.Session.Expired,
	})

	var (
		messages *store.MessageStore
		search   *store.SearchStore
	)
	if dsn := cfg.DatabaseDSN(); dsn != "" {
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			log.Fatalf("open history database: %v", err)
		}
		messages = store.NewMessageStore(db)
		search = store.NewSearchStore(db)
	} else {
		log.Print("no database DSN configured; history endpoints disabled")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var elector *store.LeaderElection
	if search != nil {
		janitor := &store.Janitor{Search: search}
		if valkeyClient != nil {
			// Several replicas share the cache; let one of them prune it.
			elector = store.NewLeaderElection(valkeyClient, "plum:")
			elector.Start(ctx)
			janitor.Elector = elector
		}
		go janitor.Run(ctx)
	}

	collector := metrics.NewCollector(prometheus.DefaultRegisterer)

	srv := server.NewServer(cfg, messages, search, collector)
	httpSrv := &http.Server{
		Addr:    cfg.Listen,
		Handler: server.NewGinEngine(srv),
	}
	go func() {
		<-ctx.Done()
		log.Print("shutting down on signal")
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Printf("listening on %s (env=%s)", cfg.Listen, cfg.Env)
	err := httpSrv.ListenAndServe()
	cancel()
	if elector != nil {
		// Blocks until the janitor lock is handed back.
		elector.Stop()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server stopped: %v", err)
	}
}

// newSessionStore builds the configured session backend. The Valkey client
// is returned as well so leader election can share the connection.
func newSessionStore(cfg *server.AppConfig) (session.ManagerStore, valkey.Client) {
	switch cfg.Session.Backend {
	case "valkey":
		client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{cfg.Session.ValkeyAddr}})
		if err != nil {
			log.Fatalf("connect valkey: %v", err)
		}
		return sessions.NewValkeyStoreWithClient(client, "plum:"), client
	default:
		s, err := sessions.NewBuntStore(cfg.Session.Path, "")
		if err != nil {
			log.Fatalf("open session store: %v", err)
		}
		return s, nil
	}
}
