package model

import (
	"strings"
	"time"
)

type Role string

const (
	RoleMaster     Role = "master"
	RoleManagement Role = "management"
	RoleEngineer   Role = "engineer"
	RoleBilling    Role = "billing"
)

func (r Role) String() string { return string(r) }

func (r Role) Valid() bool {
	switch r {
	case RoleMaster, RoleManagement, RoleEngineer, RoleBilling:
		return true
	}
	return false
}

func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

// CanEditPipeline reports whether the role may mutate contacts and their
// pipeline fields.
func (r Role) CanEditPipeline() bool {
	return r == RoleMaster || r == RoleManagement
}

type User struct {
	ID        int64     `db:"id"`
	Username  string    `db:"username"`
	APIKey    string    `db:"api_key"`
	Role      Role      `db:"role"`
	Status    string    `db:"status"` // active|suspended
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
