package model

import "time"

// User represents a registered principal as stored in the `users` table.
// Records are created at registration and never updated or deleted.
//
// Fields:
//
//	ID           – opaque server-assigned identifier (UUID string).
//	Email        – unique address, compared case-sensitively.
//	DisplayName  – free text shown in the chat UI.
//	PasswordHash – bcrypt hash; the plaintext is never stored.
//	CreatedAt    – timestamp of creation (UTC).
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
}

// PublicUser is the projection of a User that may leave the server.
type PublicUser struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// Public strips the password hash.
func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName}
}
