package person

import (
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// CapabilityAdmin grants access to the administration surface.
const CapabilityAdmin = "admin:admin"

var roleGrants = map[Role][]string{
	RoleAdmin: {CapabilityAdmin},
	RoleUser:  {},
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := roleGrants[r]
	return ok
}

// Capabilities returns a fresh copy of the capabilities granted to r.
// Unknown roles get none.
func (r Role) Capabilities() []string {
	grants := roleGrants[r]
	if len(grants) == 0 {
		return nil
	}
	out := make([]string, len(grants))
	copy(out, grants)
	return out
}

type Person struct {
	ID        int64     `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Username  string    `json:"username" db:"username"`
	Password  string    `json:"-" db:"password"`
	Role      Role      `json:"role" db:"role"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	IsDeleted bool      `json:"is_deleted" db:"is_deleted"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CanSignIn reports whether the person may be issued a session.
func (p *Person) CanSignIn() bool {
	return p.IsActive && !p.IsDeleted
}
