package model

type Role string

const (
	RoleUser     Role = "user"
	RoleProvider Role = "provider"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleProvider
}

// ParseRole maps an empty role to RoleUser.
func ParseRole(s string) (Role, bool) {
	if s == "" {
		return RoleUser, true
	}
	r := Role(s)
	return r, r.Valid()
}
