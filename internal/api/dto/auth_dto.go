package dto

import "time"

// RefreshRequest carries the refresh token to exchange.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenPairResponse returns a fresh access/refresh pair. The refresh
// token rotates on every exchange.
type TokenPairResponse struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}
