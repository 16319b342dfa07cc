package domain

// TokenType distinguishes the two bearer token classes. A token issued
// as one class is never accepted where the other is required.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)
