package auth

// Principal is the authenticated identity attached to a request. It is rebuilt on every
// request from a verified access token or an API key and never persisted.
type Principal struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	UserName string `json:"userName"`
	Role     string `json:"role"`
}

// PrincipalFromClaims builds a Principal from decoded access token claims.
func PrincipalFromClaims(c *Claims) Principal {
	role := c.Role
	if role == "" {
		role = RoleUser
	}
	return Principal{ID: c.ID, Email: c.Email, UserName: c.UserName, Role: role}
}
