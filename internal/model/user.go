package model

import "time"

// Role names stored in the `users.role` column and carried in the JWT
// "role" claim. CUSTOMER buys tickets, ORGANIZER owns events and runs
// the entry gate for them, ADMIN can do everything.
const (
	RoleCustomer  = "CUSTOMER"
	RoleOrganizer = "ORGANIZER"
	RoleAdmin     = "ADMIN"
)

// User represents an application user record as stored in the
// `users` table. Each field corresponds to a column. Handlers define
// separate response types with JSON tags; these structs are used by
// the repository layer.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique email address.
//  PasswordHash – bcrypt hashed password.
//  FirstName    – given name used in emails and gate screens.
//  Surname      – family name.
//  Role         – one of the Role* constants.
//  IsActive     – whether the account is active.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
//  DeletedAt    – soft-delete tombstone (nil while the row is live).
type User struct {
	ID           uint64
	Email        string
	PasswordHash string
	FirstName    string
	Surname      string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

// FullName joins first name and surname for display in emails and
// check-in responses.
func (u User) FullName() string {
	if u.FirstName == "" {
		return u.Surname
	}
	if u.Surname == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.Surname
}

// RefreshToken models an entry in the `refresh_tokens` table. Each
// refresh token belongs to a user and carries metadata for expiry and
// revocation. The plain token is never stored; only its SHA-256 hash.
type RefreshToken struct {
	ID        uint64
	UserID    uint64
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}
