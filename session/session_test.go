package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestResolveMintsTemporarySession(t *testing.T) {
	rec := httptest.NewRecorder()
	sess := Resolve(rec, httptest.NewRequest("GET", "/", nil))

	if !sess.IsTemporary() {
		t.Fatal("fresh session should be temporary")
	}
	if sess.ID() == "" {
		t.Fatal("session has no id")
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != cookieName || cookies[0].Value != sess.ID() {
		t.Fatalf("cookies = %+v", cookies)
	}
}

func TestResolveReusesPresentedCookie(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: cookieName, Value: "abc-123"})
	rec := httptest.NewRecorder()

	sess := Resolve(rec, req)

	if sess.IsTemporary() {
		t.Fatal("established session should not be temporary")
	}
	if sess.ID() != "abc-123" {
		t.Fatalf("id = %s", sess.ID())
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatal("cookie re-set for established session")
	}
}
