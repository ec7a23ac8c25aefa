package identity

import (
	"encoding/json"
	"sort"
	"time"
)

// Role represents a marketplace role carried in the access token claims.
type Role string

const (
	RoleAdmin    Role = "Admin"
	RoleUser     Role = "User"
	RoleDelivery Role = "Delivery"
)

// RoleSet is a normalized set of roles. The backend may encode roles as a
// single string or a collection; RoleSet accepts both shapes on the wire and
// always serializes as a sorted array.
type RoleSet map[Role]struct{}

// NewRoleSet builds a RoleSet from the given roles.
func NewRoleSet(roles ...Role) RoleSet {
	rs := make(RoleSet, len(roles))
	for _, r := range roles {
		rs[r] = struct{}{}
	}
	return rs
}

// FromStrings builds a RoleSet from raw claim values, skipping empty entries.
func FromStrings(roles []string) RoleSet {
	rs := make(RoleSet, len(roles))
	for _, r := range roles {
		if r == "" {
			continue
		}
		rs[Role(r)] = struct{}{}
	}
	return rs
}

// Has reports whether the set contains the given role.
func (rs RoleSet) Has(role Role) bool {
	_, ok := rs[role]
	return ok
}

// Slice returns the roles as a sorted slice.
func (rs RoleSet) Slice() []Role {
	roles := make([]Role, 0, len(rs))
	for r := range rs {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}

// MarshalJSON serializes the set as a sorted string array.
func (rs RoleSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(rs.Slice())
}

// UnmarshalJSON accepts either a string array or a single string.
func (rs *RoleSet) UnmarshalJSON(data []byte) error {
	var many []string
	if err := json.Unmarshal(data, &many); err == nil {
		*rs = FromStrings(many)
		return nil
	}

	var one string
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*rs = FromStrings([]string{one})
	return nil
}

// Identity is the decoded or server-provided profile of the logged in user.
type Identity struct {
	ID        int64     `json:"id"`
	UserName  string    `json:"userName,omitempty"`
	Email     string    `json:"email,omitempty"`
	FullName  string    `json:"fullName,omitempty"`
	Roles     RoleSet   `json:"roles,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// IsAdmin reports whether the identity carries the Admin role.
func (id *Identity) IsAdmin() bool {
	return id != nil && id.Roles.Has(RoleAdmin)
}

// IsDelivery reports whether the identity carries the Delivery role.
func (id *Identity) IsDelivery() bool {
	return id != nil && id.Roles.Has(RoleDelivery)
}
