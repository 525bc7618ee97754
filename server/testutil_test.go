package server

import (
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gavv/httpexpect/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kgashok/PlumConfusedOpensource/metrics"
	"github.com/kgashok/PlumConfusedOpensource/sessions"
	"github.com/kgashok/PlumConfusedOpensource/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakePlatform stubs the provider's OAuth endpoints and content API behind
// one test server. Content calls are counted so tests can assert that
// unauthenticated requests never reach the platform.
type fakePlatform struct {
	mu sync.Mutex

	requestTokenStatus int
	requestTokenBody   string
	accessTokenStatus  int
	accessTokenBody    string

	// content handles everything that is not an OAuth exchange.
	content http.HandlerFunc

	contentCalls     int
	accessTokenCalls int
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		requestTokenStatus: http.StatusOK,
		requestTokenBody:   "oauth_token=abc&oauth_token_secret=xyz&oauth_callback_confirmed=true",
		accessTokenStatus:  http.StatusOK,
		accessTokenBody:    "oauth_token=final&oauth_token_secret=finalsecret&user_id=42&screen_name=alice",
	}
}

func (f *fakePlatform) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/oauth/request_token":
		f.mu.Lock()
		status, body := f.requestTokenStatus, f.requestTokenBody
		f.mu.Unlock()
		w.WriteHeader(status)
		w.Write([]byte(body))
	case "/oauth/access_token":
		f.mu.Lock()
		f.accessTokenCalls++
		status, body := f.accessTokenStatus, f.accessTokenBody
		f.mu.Unlock()
		w.WriteHeader(status)
		w.Write([]byte(body))
	default:
		f.mu.Lock()
		f.contentCalls++
		handler := f.content
		f.mu.Unlock()
		if handler != nil {
			handler(w, r)
			return
		}
		http.NotFound(w, r)
	}
}

func (f *fakePlatform) ContentCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.contentCalls
}

func (f *fakePlatform) AccessTokenCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accessTokenCalls
}

// initSessionsOnce installs the process-wide session manager exactly once.
// sessions.Init must be called once per process (go-session's InitManager is
// guarded by a sync.Once), so the backing store is shared by all tests and
// never closed; isolation comes from each test's fresh cookie jar.
var initSessionsOnce sync.Once

func initTestSessions(t *testing.T) {
	t.Helper()
	initSessionsOnce.Do(func() {
		bs, err := sessions.NewBuntStore(":memory:", "")
		if err != nil {
			t.Fatalf("open session store: %v", err)
		}
		sessions.Init(sessions.Options{
			Store:      bs,
			CookieName: "plum_session",
			Expired:    7200,
		})
	})
}

// newTestApp builds a full application against a fake platform and returns
// an httpexpect client that keeps cookies and stops at redirects.
func newTestApp(t *testing.T, fp *fakePlatform, messages *store.MessageStore, search *store.SearchStore) (*httpexpect.Expect, *Server) {
	t.Helper()

	platform := httptest.NewServer(fp)
	t.Cleanup(platform.Close)

	initTestSessions(t)

	cfg := &AppConfig{
		Env:      "test",
		Consumer: ConsumerConfig{Key: "ck", Secret: "cs"},
		OAuth: OAuthConfig{
			CallbackURL:     "http://127.0.0.1/callback",
			RequestTokenURL: platform.URL + "/oauth/request_token",
			AuthorizeURL:    platform.URL + "/oauth/authorize",
			AccessTokenURL:  platform.URL + "/oauth/access_token",
		},
		Platform: PlatformConfig{
			BaseURL:       platform.URL,
			UploadBaseURL: platform.URL,
		},
	}
	applyDefaults(cfg)

	srv := NewServer(cfg, messages, search, metrics.NewCollector(prometheus.NewRegistry()))
	app := httptest.NewServer(NewGinEngine(srv))
	t.Cleanup(app.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	e := httpexpect.WithConfig(httpexpect.Config{
		BaseURL:  app.URL,
		Reporter: httpexpect.NewAssertReporter(t),
		Client: &http.Client{
			Jar: jar,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	})
	return e, srv
}

// signIn walks the full three-legged flow against the fake platform.
func signIn(e *httpexpect.Expect) {
	e.GET("/auth").Expect().Status(http.StatusFound)
	e.GET("/callback").
		WithQuery("oauth_token", "abc").
		WithQuery("oauth_verifier", "verifier123").
		Expect().Status(http.StatusFound).
		Header("Location").Equal("/")
}
