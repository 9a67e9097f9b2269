package models

import "time"

// User is a dashboard operator allowed to call the admin API.
type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}

// Device is a registered sensor station.
type Device struct {
	ID        string     `json:"device_id"`
	Name      string     `json:"name"`
	Secret    string     `json:"-"` // HMAC key, returned only once at registration
	CreatedAt time.Time  `json:"created_at"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
}

// Session is a short-lived device token issued after a signed handshake.
type Session struct {
	Token     string    `json:"session_token"`
	DeviceID  string    `json:"device_id"`
	ExpiresAt time.Time `json:"expires_at"`
}
