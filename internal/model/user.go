package model

import "time"

// Role names stored in users.role and the JWT "role" claim.
const (
	RoleCustomer = "CUSTOMER"
	RoleAdmin    = "ADMIN"
)

// User represents an application user record as stored in the
// `users` table.  The struct is used internally by the repository layer;
// handlers expose Profile instead.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Email        – unique, lower-cased email address.
//	PasswordHash – bcrypt hashed password.
//	Name, Phone  – optional contact details.
//	Birthday     – optional date of birth.
//	Role         – CUSTOMER or ADMIN.
//	IsActive     – whether the account is active.
type User struct {
	ID           uint64     // users.id
	Email        string     // users.email
	PasswordHash string     // users.password_hash
	Name         string     // users.name
	Phone        string     // users.phone
	Birthday     *time.Time // users.birthday (nullable)
	Role         string     // users.role
	IsActive     bool       // users.is_active
	CreatedAt    time.Time  // users.created_at
	UpdatedAt    time.Time  // users.updated_at
}

// Profile is the public view of a user.
type Profile struct {
	ID        uint64     `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	Birthday  *time.Time `json:"birthday,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	Roles     []string   `json:"roles"`
}

// Profile converts the record into its public view.
func (u User) Profile() Profile {
	return Profile{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Phone:     u.Phone,
		Birthday:  u.Birthday,
		CreatedAt: u.CreatedAt,
		Roles:     []string{u.Role},
	}
}
