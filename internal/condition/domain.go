// Package condition implements the "group_role" visibility condition: a
// predicate that passes when the acting user holds one of a configured set
// of roles inside the group bound to the condition.
package condition

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/grouprole-condition/internal/grouprole"
	"github.com/odyssey-erp/grouprole-condition/internal/platform/httpx"
)

// PluginID is the identifier under which the condition is registered.
const PluginID = "group_role"

var (
	// ErrNotFound indicates that the condition configuration does not exist.
	ErrNotFound = fmt.Errorf("condition: %w", httpx.ErrNotFound)
	// ErrDuplicate indicates a configuration with the same ID already exists.
	ErrDuplicate = fmt.Errorf("condition: %w", httpx.ErrDuplicate)
	// ErrValidation wraps invalid configuration input.
	ErrValidation = fmt.Errorf("condition: %w", httpx.ErrValidation)
	// ErrIllegalChoice is returned when a submitted role is not among the form options.
	ErrIllegalChoice = fmt.Errorf("condition: illegal choice: %w", httpx.ErrValidation)
	// ErrEmptySelection is returned by Summary when no roles are configured.
	ErrEmptySelection = errors.New("condition: no group roles selected")
)

// ContextDefinition describes a value the host binds before evaluation.
type ContextDefinition struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
}

// Definition describes the plugin to the host.
type Definition struct {
	ID       string              `json:"id"`
	Label    string              `json:"label"`
	Contexts []ContextDefinition `json:"contexts"`
}

// GroupRoleDefinition is the registered definition of the condition.
var GroupRoleDefinition = Definition{
	ID:    PluginID,
	Label: "Group role",
	Contexts: []ContextDefinition{
		{Name: "group", DataType: "entity:group", Label: "group", Required: true},
	},
}

// Config is the persisted configuration of a condition.
type Config struct {
	GroupRoles []string `json:"group_roles"`
	Negate     bool     `json:"negate"`
}

// DefaultConfig returns the configuration of a freshly placed condition.
func DefaultConfig() Config {
	return Config{GroupRoles: []string{}}
}

// Clean trims role identifiers, drops empty and duplicate entries and keeps
// the first-seen order.
func (c Config) Clean() Config {
	out := Config{GroupRoles: make([]string, 0, len(c.GroupRoles)), Negate: c.Negate}
	for _, role := range c.GroupRoles {
		role = strings.TrimSpace(role)
		if role == "" || slices.Contains(out.GroupRoles, role) {
			continue
		}
		out.GroupRoles = append(out.GroupRoles, role)
	}
	return out
}

// Record is a stored condition placement.
type Record struct {
	ID        uuid.UUID `json:"id"`
	PluginID  string    `json:"plugin_id"`
	Label     string    `json:"label"`
	GroupType string    `json:"group_type,omitempty"`
	Config    Config    `json:"config"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Context carries the values bound to a condition for one evaluation.
type Context struct {
	Group *grouprole.Group
	Actor grouprole.Actor
}

// Result is the outcome of evaluating a stored condition.
type Result struct {
	ConditionID uuid.UUID `json:"condition_id"`
	Visible     bool      `json:"visible"`
	Summary     string    `json:"summary,omitempty"`
}
