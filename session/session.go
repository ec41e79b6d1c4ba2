// Package session provides cookie-backed sessions for the page server.
package session

import (
	"net/http"

	"github.com/google/uuid"
)

const cookieName = "pagecycle-session"

// Session identifies one client across requests.
type Session struct {
	id        string
	temporary bool
}

// ID returns the session identifier, used to scope buffered-response keys.
func (s *Session) ID() string {
	return s.id
}

// IsTemporary reports whether the session cookie has not round-tripped to the
// client yet. A temporary session cannot carry buffered output across a
// redirect, because the follow-up request would not present the cookie.
func (s *Session) IsTemporary() bool {
	return s.temporary
}

// Resolve returns the session for the request, minting a new one (and setting
// its cookie on w) when the client did not present one.
func Resolve(w http.ResponseWriter, r *http.Request) *Session {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return &Session{id: c.Value}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
	})
	return &Session{id: id, temporary: true}
}
