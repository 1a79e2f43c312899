package domain

// Session describes who is driving the cart. Exactly one of UserID and
// AnonymousID is meaningful, depending on Authenticated.
type Session struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"userId,omitempty"`
	AnonymousID   string `json:"anonymousId,omitempty"`
}

// CartKey identifies the cart owned by the session.
func (s Session) CartKey() string {
	if s.Authenticated {
		return "user:" + s.UserID
	}
	return "anon:" + s.AnonymousID
}
