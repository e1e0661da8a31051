package models

import "time"

// Role identifiers carried in the users table and in access tokens.
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// User represents an account stored in the database.
type User struct {
	ID string `gorm:"type:text;primaryKey"` // Primary key.

	Username  string `gorm:"type:text;not null;uniqueIndex"`       // Unique login name.
	FirstName string `gorm:"type:text"`                            // Given name.
	LastName  string `gorm:"type:text"`                            // Family name.
	Email     string `gorm:"type:text;uniqueIndex"`                // Email address.
	Role      string `gorm:"type:text;not null;default:'student'"` // Account role.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// Actor holds the display fields of a user attached to history entries.
type Actor struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}
