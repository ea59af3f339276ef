package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/grouprole-condition/internal/grouprole"
)

func catalogRoles() []grouprole.Role {
	return []grouprole.Role{
		{ID: grouprole.ParseRoleID("community-admin"), Label: "Admin"},
		{ID: grouprole.ParseRoleID("community-editor"), Label: "Editor"},
		{ID: grouprole.ParseRoleID("community-member"), Label: "Member"},
		{ID: grouprole.ParseRoleID("team-member"), Label: "Team member"},
	}
}

func TestBuildFormKeysByShortName(t *testing.T) {
	form := BuildForm(NewPrinter(language.English), catalogRoles(), Config{GroupRoles: []string{"community-editor"}, Negate: true})

	require.Len(t, form.Options, 3)
	assert.Equal(t, Option{Key: "admin", Label: "Admin"}, form.Options[0])
	assert.Equal(t, Option{Key: "editor", Label: "Editor", Checked: true}, form.Options[1])
	assert.Equal(t, Option{Key: "member", Label: "Member"}, form.Options[2])
	assert.Equal(t, "Group roles", form.Title)
	assert.Equal(t, "If you select no Group roles, the condition will evaluate to TRUE for all requests.", form.Description)
	assert.True(t, form.Negate)
}

func TestBuildFormTranslatesLabels(t *testing.T) {
	form := BuildForm(NewPrinter(language.Indonesian), nil, DefaultConfig())
	assert.Equal(t, "Peran grup", form.Title)
	assert.Equal(t, "Balikkan kondisi", form.NegateLabel)
	assert.Empty(t, form.Options)
}

func TestSubmitFormDropsUnchecked(t *testing.T) {
	form := BuildForm(nil, catalogRoles(), DefaultConfig())
	cfg, err := SubmitForm(form, map[string]string{
		"admin":  "admin",
		"editor": "0",
		"member": "",
	}, false)
	require.NoError(t, err)
	assert.Equal(t, Config{GroupRoles: []string{"admin"}}, cfg)
}

func TestSubmitFormKeepsOptionOrder(t *testing.T) {
	form := BuildForm(nil, catalogRoles(), DefaultConfig())
	cfg, err := SubmitForm(form, map[string]string{"member": "member", "admin": "1"}, true)
	require.NoError(t, err)
	assert.Equal(t, Config{GroupRoles: []string{"admin", "member"}, Negate: true}, cfg)
}

func TestSubmitFormNothingChecked(t *testing.T) {
	form := BuildForm(nil, catalogRoles(), DefaultConfig())
	cfg, err := SubmitForm(form, nil, false)
	require.NoError(t, err)
	assert.Equal(t, []string{}, cfg.GroupRoles)
}

func TestSubmitFormRejectsUnknownKey(t *testing.T) {
	form := BuildForm(nil, catalogRoles(), DefaultConfig())
	_, err := SubmitForm(form, map[string]string{"owner": "owner"}, false)
	assert.ErrorIs(t, err, ErrIllegalChoice)

	_, err = SubmitForm(form, map[string]string{"owner": "0"}, false)
	assert.NoError(t, err)
}

func TestCheckboxValues(t *testing.T) {
	values := checkboxValues(map[string][]string{
		"group_roles[admin]":  {"admin"},
		"group_roles[editor]": {"0", "editor"},
		"negate":              {"1"},
		"group_roles":         {"x"},
	}, "group_roles")
	assert.Equal(t, map[string]string{"admin": "admin", "editor": "editor"}, values)
}
