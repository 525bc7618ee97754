package server

import (
	"net/http"
	"strings"
	"testing"
)

func TestCreateTweet(t *testing.T) {
	t.Run("authorized create", func(t *testing.T) {
		fp := newFakePlatform()
		fp.content = func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/2/tweets" {
				t.Errorf("platform saw %s %s", r.Method, r.URL.Path)
			}
			if auth := r.Header.Get("Authorization"); !strings.Contains(auth, `oauth_token="final"`) {
				t.Errorf("not signed with the bound access token: %s", auth)
			}
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"data":{"id":"999","text":"hello"}}`))
		}
		e, _ := newTestApp(t, fp, nil, nil)
		signIn(e)

		obj := e.POST("/api/tweets").
			WithJSON(map[string]string{"text": "hello"}).
			Expect().Status(http.StatusCreated).
			JSON().Object().Value("data").Object()
		obj.ValueEqual("id", "999")
		obj.ValueEqual("text", "hello")
		obj.ValueEqual("screen_name", "alice")
	})

	t.Run("empty text", func(t *testing.T) {
		fp := newFakePlatform()
		e, _ := newTestApp(t, fp, nil, nil)
		signIn(e)

		before := fp.ContentCalls()
		e.POST("/api/tweets").
			WithJSON(map[string]string{"text": "   "}).
			Expect().Status(http.StatusBadRequest).
			JSON().Object().ValueEqual("error", "invalid_request")
		if fp.ContentCalls() != before {
			t.Error("invalid request reached the platform")
		}
	})

	t.Run("unauthenticated create never reaches the platform", func(t *testing.T) {
		fp := newFakePlatform()
		e, _ := newTestApp(t, fp, nil, nil)

		e.POST("/api/tweets").
			WithJSON(map[string]string{"text": "hello"}).
			Expect().Status(http.StatusUnauthorized).
			JSON().Object().ValueEqual("error", "not_authenticated")
		if got := fp.ContentCalls(); got != 0 {
			t.Errorf("platform saw %d calls from an unauthenticated session", got)
		}
	})

	t.Run("upstream rejection surfaces with detail", func(t *testing.T) {
		fp := newFakePlatform()
		fp.content = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"detail":"You are not permitted to perform this action."}`))
		}
		e, _ := newTestApp(t, fp, nil, nil)
		signIn(e)

		obj := e.POST("/api/tweets").
			WithJSON(map[string]string{"text": "hello"}).
			Expect().Status(http.StatusBadGateway).
			JSON().Object()
		obj.ValueEqual("error", "upstream_api_error")
		obj.Value("detail").Object().Value("detail").String().Contains("not permitted")
	})
}

func TestDeleteTweetEndpoint(t *testing.T) {
	fp := newFakePlatform()
	fp.content = func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/2/tweets/999" {
			t.Errorf("platform saw %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"data":{"deleted":true}}`))
	}
	e, _ := newTestApp(t, fp, nil, nil)
	signIn(e)

	e.DELETE("/api/tweets/999").Expect().
		Status(http.StatusOK).
		JSON().Object().Value("data").Object().ValueEqual("deleted", true)
}

func TestRetweetEndpoint(t *testing.T) {
	fp := newFakePlatform()
	fp.content = func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2/users/42/retweets" {
			t.Errorf("retweet path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"data":{"retweeted":true}}`))
	}
	e, _ := newTestApp(t, fp, nil, nil)
	signIn(e)

	e.POST("/api/tweets/777/retweet").Expect().
		Status(http.StatusOK).
		JSON().Object().Value("data").Object().ValueEqual("retweeted", true)
}

func TestUploadMediaEndpoint(t *testing.T) {
	t.Run("upload returns the media id", func(t *testing.T) {
		fp := newFakePlatform()
		fp.content = func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/1.1/media/upload.json" {
				t.Errorf("upload path = %s", r.URL.Path)
			}
			w.Write([]byte(`{"media_id_string":"711"}`))
		}
		e, _ := newTestApp(t, fp, nil, nil)
		signIn(e)

		e.POST("/api/media").
			WithMultipart().
			WithFileBytes("media", "cat.png", []byte("png-bytes")).
			Expect().Status(http.StatusOK).
			JSON().Object().ValueEqual("media_id", "711")
	})

	t.Run("missing field", func(t *testing.T) {
		fp := newFakePlatform()
		e, _ := newTestApp(t, fp, nil, nil)
		signIn(e)

		e.POST("/api/media").
			WithMultipart().
			WithFormField("other", "x").
			Expect().Status(http.StatusBadRequest).
			JSON().Object().ValueEqual("error", "invalid_request")
	})

	t.Run("oversized upload is rejected locally", func(t *testing.T) {
		fp := newFakePlatform()
		e, _ := newTestApp(t, fp, nil, nil)
		signIn(e)

		before := fp.ContentCalls()
		e.POST("/api/media").
			WithMultipart().
			WithFileBytes("media", "big.png", make([]byte, maxMediaBytes+1)).
			Expect().Status(http.StatusRequestEntityTooLarge)
		if fp.ContentCalls() != before {
			t.Error("oversized upload reached the platform")
		}
	})
}

func TestListTweetsWithoutStore(t *testing.T) {
	fp := newFakePlatform()
	e, _ := newTestApp(t, fp, nil, nil)
	signIn(e)

	e.GET("/api/tweets").Expect().
		Status(http.StatusNotImplemented).
		JSON().Object().ValueEqual("error", "not_implemented")
}
