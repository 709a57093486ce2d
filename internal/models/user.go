package models

// Principal is the authenticated console user. It is resolved once per request and
// passed down explicitly instead of being read from shared state.
type Principal struct {
	UserID         string `json:"user_id"`
	OrganizationID string `json:"organization_id,omitempty"`
	Token          string `json:"-"`
}

func (p Principal) IsAnonymous() bool {
	return p.Token == ""
}
