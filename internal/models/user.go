package models

import "time"

// User is an administrative principal that can obtain Layer-0 tokens
type User struct {
	Id           string
	Username     string
	PasswordHash string
	Email        string
	State        LifecycleState
	CreatedAt    time.Time
}
