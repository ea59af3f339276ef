package condition

import (
	"slices"

	"golang.org/x/text/message"

	"github.com/odyssey-erp/grouprole-condition/internal/grouprole"
)

// Option is a single checkbox of the role selection.
type Option struct {
	Key     string
	Label   string
	Checked bool
}

// Form is the configuration form of a condition.
type Form struct {
	Title       string
	Description string
	Options     []Option
	NegateLabel string
	Negate      bool
}

// BuildForm lists the given role definitions as checkboxes keyed by their
// short identifier. The first definition of a short identifier wins.
func BuildForm(p *message.Printer, roles []grouprole.Role, cfg Config) Form {
	if p == nil {
		p = NewPrinter()
	}
	selected := make(map[string]struct{}, len(cfg.GroupRoles))
	for _, raw := range cfg.GroupRoles {
		selected[grouprole.Normalize(raw)] = struct{}{}
	}
	form := Form{
		Title:       p.Sprintf(msgFormTitle),
		Description: p.Sprintf(msgFormDescription),
		NegateLabel: p.Sprintf(msgFormNegate),
		Negate:      cfg.Negate,
	}
	seen := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		if role.ID.IsZero() {
			continue
		}
		key := role.ID.Name
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		_, checked := selected[key]
		form.Options = append(form.Options, Option{Key: key, Label: role.Label, Checked: checked})
	}
	return form
}

// SubmitForm turns submitted checkbox values, keyed by option key, into a
// configuration. Unchecked boxes submit an empty string or "0" and are
// dropped. Keys that are not options of the form fail with ErrIllegalChoice.
func SubmitForm(form Form, values map[string]string, negate bool) (Config, error) {
	keys := make([]string, 0, len(form.Options))
	for _, opt := range form.Options {
		keys = append(keys, opt.Key)
	}
	for key, value := range values {
		if truthy(value) && !slices.Contains(keys, key) {
			return Config{}, ErrIllegalChoice
		}
	}
	cfg := Config{GroupRoles: []string{}, Negate: negate}
	for _, key := range keys {
		if truthy(values[key]) {
			cfg.GroupRoles = append(cfg.GroupRoles, key)
		}
	}
	return cfg, nil
}

func truthy(value string) bool {
	return value != "" && value != "0"
}
