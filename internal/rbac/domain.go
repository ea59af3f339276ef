package rbac

// Permission represents an atomic site capability.
type Permission struct {
	ID          int64
	Name        string
	Description string
}

// Site permissions guarding the condition administration routes.
const (
	PermConditionsView = "conditions.view"
	PermConditionsEdit = "conditions.edit"
	PermGroupRolesView = "group_roles.view"
	PermCacheManage    = "group_roles.cache"
	PermAuditView      = "conditions.audit"
)

// Scopes lists all permissions known to the service.
func Scopes() []string {
	return []string{
		PermConditionsView,
		PermConditionsEdit,
		PermGroupRolesView,
		PermCacheManage,
		PermAuditView,
	}
}
