package auth

import "strings"

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStudent Role = "student"
)

func NormalizeRole(role string) Role {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case string(RoleAdmin):
		return RoleAdmin
	default:
		return RoleStudent
	}
}

// RoleFor maps the stored administrator flag to a token role.
func RoleFor(isAdmin bool) Role {
	if isAdmin {
		return RoleAdmin
	}
	return RoleStudent
}

func IsAdmin(role string) bool {
	return NormalizeRole(role) == RoleAdmin
}
