package models

import "time"

type User struct {
	ID             int        `json:"id" example:"1"`                   // User ID
	Email          string     `json:"email" example:"user@example.com"` // User email
	FirstName      string     `json:"FirstName" example:"John"`         // User first name
	LastName       string     `json:"LastName" example:"Doe"`           // User last name
	OrganizationID int        `json:"organization_id" example:"1"`      // Active organization
	Role           string     `json:"role,omitempty"`
	LastLogin      *time.Time `json:"last_login,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// PinCredential holds the salted hash of a user's 4-digit transaction PIN.
// The PIN itself is never stored or logged.
type PinCredential struct {
	UserID    int       `json:"user_id" db:"user_id"`
	Hash      string    `json:"-" db:"hash"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
