package condition

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"golang.org/x/text/message"

	"github.com/odyssey-erp/grouprole-condition/internal/grouprole"
)

// MembershipLookup resolves the roles an actor holds inside a group.
type MembershipLookup interface {
	RolesFor(ctx context.Context, actor grouprole.Actor, group *grouprole.Group) ([]grouprole.RoleID, error)
}

// GroupRole is a configured instance of the group role condition.
type GroupRole struct {
	config Config
	lookup MembershipLookup
	logger *slog.Logger
}

// NewGroupRole builds a condition instance. logger may be nil.
func NewGroupRole(cfg Config, lookup MembershipLookup, logger *slog.Logger) *GroupRole {
	return &GroupRole{config: cfg, lookup: lookup, logger: logger}
}

// Configuration returns a copy of the instance configuration.
func (c *GroupRole) Configuration() Config {
	return Config{GroupRoles: slices.Clone(c.config.GroupRoles), Negate: c.config.Negate}
}

// IsNegated reports whether the result of Evaluate is inverted by Execute.
func (c *GroupRole) IsNegated() bool {
	return c.config.Negate
}

// Evaluate reports whether the actor holds one of the configured roles in
// the bound group. An empty selection passes unless the condition is
// negated. A failed lookup counts as holding no roles.
func (c *GroupRole) Evaluate(ctx context.Context, bound Context) bool {
	if len(c.config.GroupRoles) == 0 && !c.config.Negate {
		return true
	}
	if c.lookup == nil {
		return false
	}
	resolved, err := c.lookup.RolesFor(ctx, bound.Actor, bound.Group)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("group role lookup failed", slog.Int64("actor", bound.Actor.ID), slog.Any("error", err))
		}
		return false
	}
	return Matches(resolved, c.config.GroupRoles)
}

// Execute evaluates the condition and applies negation.
func (c *GroupRole) Execute(ctx context.Context, bound Context) bool {
	return c.Evaluate(ctx, bound) != c.config.Negate
}

// Summary describes the configured roles, e.g. "The group role is editor,
// member or admin". It fails with ErrEmptySelection when nothing is selected.
func (c *GroupRole) Summary(p *message.Printer) (string, error) {
	roles := c.config.GroupRoles
	if len(roles) == 0 {
		return "", ErrEmptySelection
	}
	if p == nil {
		p = NewPrinter()
	}
	one, many := msgSummaryOne, msgSummaryMany
	if c.config.Negate {
		one, many = msgSummaryNotOne, msgSummaryNotMany
	}
	if len(roles) == 1 {
		return p.Sprintf(one, roles[0]), nil
	}
	last := roles[len(roles)-1]
	return p.Sprintf(many, strings.Join(roles[:len(roles)-1], ", "), last), nil
}

// Matches reports whether any resolved role shares a short name with a
// configured role. Empty names and "0" never match, the same values the edit
// form treats as unchecked. Configured entries may be short names or
// fully-qualified identifiers.
func Matches(resolved []grouprole.RoleID, configured []string) bool {
	if len(resolved) == 0 || len(configured) == 0 {
		return false
	}
	allowed := make(map[string]struct{}, len(configured))
	for _, raw := range configured {
		if name := grouprole.Normalize(raw); truthy(name) {
			allowed[name] = struct{}{}
		}
	}
	for _, id := range resolved {
		if id.IsZero() || !truthy(id.Name) {
			continue
		}
		if _, ok := allowed[id.Name]; ok {
			return true
		}
	}
	return false
}
