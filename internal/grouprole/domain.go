package grouprole

import "errors"

// ErrNotFound indicates that the requested group does not exist.
var ErrNotFound = errors.New("grouprole: not found")

// Audience describes who implicitly holds a role inside a group.
type Audience string

const (
	// AudienceAssigned roles are granted explicitly to individual members.
	AudienceAssigned Audience = ""
	// AudienceMember roles are implied for every member of the group.
	AudienceMember Audience = "member"
	// AudienceOutsider roles are implied for authenticated non-members.
	AudienceOutsider Audience = "outsider"
	// AudienceAnonymous roles are implied for anonymous actors.
	AudienceAnonymous Audience = "anonymous"
)

// Role is a role definition belonging to a group type.
type Role struct {
	ID       RoleID   `json:"id"`
	Label    string   `json:"label"`
	Weight   int      `json:"weight"`
	Audience Audience `json:"audience,omitempty"`
}

// Group is the group entity bound to a condition at evaluation time.
type Group struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Label string `json:"label"`
}

// Actor is the user on whose behalf a condition is evaluated.
type Actor struct {
	ID int64
}

// IsAnonymous reports whether the actor is not logged in.
func (a Actor) IsAnonymous() bool {
	return a.ID <= 0
}
