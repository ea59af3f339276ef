package grouprole

import (
	"encoding/json"
	"strings"
)

// RoleID identifies a role within a group type. Stored identifiers follow
// the "<group-type>-<name>" convention; only the last hyphen separates them.
type RoleID struct {
	GroupType string
	Name      string
}

// ParseRoleID splits a stored identifier on its last hyphen. Identifiers
// without a hyphen carry only a name.
func ParseRoleID(raw string) RoleID {
	pos := strings.LastIndex(raw, "-")
	if pos < 0 {
		return RoleID{Name: raw}
	}
	return RoleID{GroupType: raw[:pos], Name: raw[pos+1:]}
}

// Normalize returns the short role name of a stored identifier.
func Normalize(raw string) string {
	return ParseRoleID(raw).Name
}

// String renders the fully-qualified identifier.
func (id RoleID) String() string {
	if id.GroupType == "" {
		return id.Name
	}
	return id.GroupType + "-" + id.Name
}

// IsZero reports whether the identifier has no name.
func (id RoleID) IsZero() bool {
	return id.Name == ""
}

// MarshalJSON encodes the identifier in its stored string form.
func (id RoleID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// UnmarshalJSON decodes a stored string identifier.
func (id *RoleID) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*id = ParseRoleID(raw)
	return nil
}
