package identity

import "time"

const (
	// RoleMember is the default role for registered users.
	RoleMember = "member"
	// RoleAdmin marks reviewers allowed to approve or deny withdrawals.
	RoleAdmin = "admin"
)

// User represents a registered community member who may own a wallet.
type User struct {
	ID           string
	Email        string
	Username     string
	Role         string
	PasswordHash []byte
	TokenVersion int
	CreatedAt    time.Time
}

// Credentials carries sign-up / sign-in input.
type Credentials struct {
	Email    string
	Username string
	Password string
}
