package domain

import "time"

// User represents a user of the application in the domain.
// Every rate and every derived rate is partitioned by User.
type User struct {
	UserID string `json:"userID"` // Primary Key (e.g., UUID)
	Name   string `json:"name"`
	AuditFields
	DeletedAt *time.Time `json:"deletedAt,omitempty"` // Used for soft delete
}
