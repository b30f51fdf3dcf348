// internal/domain/role.go
package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Role is one of the closed set of roles a user can hold.
type Role uint8

const (
	RoleUser Role = 1 << iota
	RoleAdmin
)

var roleNames = map[Role]string{
	RoleUser:  "USER",
	RoleAdmin: "ADMIN",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Role(%d)", uint8(r))
}

// ParseRole accepts "USER"/"ADMIN", case-insensitive, with or without a "ROLE_" prefix.
func ParseRole(s string) (Role, error) {
	name := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "ROLE_")
	for r, n := range roleNames {
		if n == name {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

// RoleSet is a set of roles stored as a bit mask.
type RoleSet uint8

// NewRoleSet builds a set from the given roles.
func NewRoleSet(roles ...Role) RoleSet {
	var s RoleSet
	for _, r := range roles {
		s |= RoleSet(r)
	}
	return s
}

// ParseRoleSet builds a set from role names. Unknown names are an error.
func ParseRoleSet(names []string) (RoleSet, error) {
	var s RoleSet
	for _, n := range names {
		r, err := ParseRole(n)
		if err != nil {
			return 0, err
		}
		s |= RoleSet(r)
	}
	return s, nil
}

func (s RoleSet) Has(r Role) bool { return s&RoleSet(r) != 0 }

func (s RoleSet) IsEmpty() bool { return s == 0 }

// Names returns the role names in a stable order.
func (s RoleSet) Names() []string {
	names := make([]string, 0, len(roleNames))
	for r, n := range roleNames {
		if s.Has(r) {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

func (s RoleSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Names())
}

func (s *RoleSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	parsed, err := ParseRoleSet(names)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
