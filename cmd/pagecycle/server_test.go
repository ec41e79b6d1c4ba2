package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/pagecycle/pagecycle"
	"github.com/pagecycle/pagecycle/store"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
}

func newTestServer(t *testing.T, config pagecycle.Config) *Server {
	t.Helper()
	srv, err := NewServer(config, store.NewMemStore())
	if err != nil {
		t.Fatal(err)
	}
	return srv
}

func get(srv *Server, target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

// A visit from a non-canonical URL is rendered off the live response,
// buffered, and redirected; the redirect target serves the buffer.
func TestBufferThenRedirectRoundTrip(t *testing.T) {
	srv := newTestServer(t, pagecycle.Config{
		Pages: []pagecycle.ConfigPage{{Path: "/page", Body: "hello"}},
	})

	// first visit establishes the session and instantiates the page
	rec := get(srv, "/page")
	if rec.Code != http.StatusOK || rec.Body.String() != "hello" {
		t.Fatalf("first visit: code=%d body=%q", rec.Code, rec.Body.String())
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("cookies = %+v", cookies)
	}
	session := cookies[0]

	// arriving via a non-canonical URL buffers the render and redirects
	rec = get(srv, "/page?from=email", session)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("non-canonical visit: code=%d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/page" {
		t.Fatalf("Location = %q", loc)
	}

	// following the redirect serves the buffered output
	rec = get(srv, "/page", session)
	if rec.Code != http.StatusOK || rec.Body.String() != "hello" {
		t.Fatalf("redirect target: code=%d body=%q", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Fatalf("Content-Type = %q", ct)
	}
}

// An ajax request already on the canonical URL gets a redirect, never markup.
func TestAjaxRequestOnCanonicalURLRedirects(t *testing.T) {
	srv := newTestServer(t, pagecycle.Config{
		Pages: []pagecycle.ConfigPage{{Path: "/page", Body: "hello"}},
	})

	req := httptest.NewRequest("GET", "/page", nil)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/page" {
		t.Fatalf("code=%d location=%q", rec.Code, rec.Header().Get("Location"))
	}
}

// A stateless page on a first-contact (temporary) session is redirected
// without rendering when the URLs differ.
func TestStatelessPageOnTemporarySession(t *testing.T) {
	srv := newTestServer(t, pagecycle.Config{
		Pages: []pagecycle.ConfigPage{{Path: "/page", Body: "hello", Stateless: true}},
	})

	rec := get(srv, "/page?utm=42")
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/page" {
		t.Fatalf("code=%d location=%q", rec.Code, rec.Header().Get("Location"))
	}
}

// A never-redirect page always writes, even from a non-canonical URL.
func TestNeverRedirectPolicyWritesInPlace(t *testing.T) {
	srv := newTestServer(t, pagecycle.Config{
		Pages: []pagecycle.ConfigPage{{Path: "/page", Body: "hello", Policy: "never-redirect"}},
	})

	rec := get(srv, "/page?whatever=1")
	if rec.Code != http.StatusOK || rec.Body.String() != "hello" {
		t.Fatalf("code=%d body=%q", rec.Code, rec.Body.String())
	}
}

// Buffered responses are scoped to the session that produced them.
func TestBufferIsNotSharedAcrossSessions(t *testing.T) {
	srv := newTestServer(t, pagecycle.Config{
		Pages: []pagecycle.ConfigPage{{Path: "/page", Body: "hello"}},
	})

	// establish a session and leave a buffered response behind
	first := get(srv, "/page").Result().Cookies()[0]
	if rec := get(srv, "/page?x=1", first); rec.Code != http.StatusSeeOther {
		t.Fatalf("code=%d", rec.Code)
	}

	// a different session must not consume it: its own first visit renders
	other := get(srv, "/page").Result().Cookies()[0]
	if other.Value == first.Value {
		t.Fatal("sessions share an id")
	}

	// the original session still finds its buffer
	rec := get(srv, "/page", first)
	if rec.Code != http.StatusOK || rec.Body.String() != "hello" {
		t.Fatalf("code=%d body=%q", rec.Code, rec.Body.String())
	}
}
