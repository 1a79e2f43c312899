package identity

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
)

const (
	anonymousSessionName = "storefront-session"
	anonymousIDKey       = "anonymous_id"
)

// Anonymous keeps the anonymous session id in a signed cookie.
type Anonymous struct {
	store sessions.Store
}

func NewAnonymous(store sessions.Store) *Anonymous {
	return &Anonymous{store: store}
}

// Lookup returns the anonymous id carried by the request, or "".
func (a *Anonymous) Lookup(r *http.Request) string {
	sess, err := a.store.Get(r, anonymousSessionName)
	if err != nil || sess == nil {
		return ""
	}
	id, _ := sess.Values[anonymousIDKey].(string)
	return id
}

// Ensure returns the request's anonymous id, issuing and saving a new one
// when the request has none.
func (a *Anonymous) Ensure(w http.ResponseWriter, r *http.Request) (string, error) {
	if id := a.Lookup(r); id != "" {
		return id, nil
	}
	sess, _ := a.store.Get(r, anonymousSessionName)
	id := uuid.NewString()
	sess.Values[anonymousIDKey] = id
	if err := sess.Save(r, w); err != nil {
		return "", err
	}
	return id, nil
}
