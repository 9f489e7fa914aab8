package model

import "time"

// Role is the users.role enum.
type Role string

const (
	RoleSuperAdmin Role = "superadmin"
	RoleAdmin      Role = "admin"
	RoleCustomer   Role = "customer"
)

// IsElevated reports whether the role may manage other users' bookings.
func (r Role) IsElevated() bool { return r == RoleAdmin || r == RoleSuperAdmin }

// User represents a row in the `users` table. Customers created through the
// public find-or-create flow have no email.
//
// Fields:
//
//	ID       – primary key identifier of the user.
//	FullName – display name.
//	Email    – unique email address (nullable).
//	Phone    – contact phone number, 10 digits starting with 0.
//	Role     – superadmin, admin or customer.
//	IsActive – whether the account is active.
type User struct {
	ID        uint64    // users.id
	FullName  string    // users.full_name
	Email     *string   // users.email (nullable)
	Phone     string    // users.phone
	Role      Role      // users.role
	IsActive  bool      // users.is_active
	CreatedAt time.Time // users.created_at
	UpdatedAt time.Time // users.updated_at
}

// Summary returns the requester view embedded in booking responses.
func (u *User) Summary() *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{ID: u.ID, FullName: u.FullName, Phone: u.Phone, Email: u.Email}
}

// UserSummary is the subset of a user shown alongside a booking.
type UserSummary struct {
	ID       uint64
	FullName string
	Phone    string
	Email    *string
}
