package authz

import "taskflow/internal/models"

// CanRead reports whether a member with role may read project tasks.
func CanRead(role models.ProjectRole) bool {
	switch role {
	case models.RoleOwner, models.RoleAdmin, models.RoleMember, models.RoleViewer:
		return true
	}
	return false
}

// CanEdit reports whether a member with role may mutate project tasks.
func CanEdit(role models.ProjectRole) bool {
	return CanRead(role) && !IsReadOnly(role)
}

func IsReadOnly(role models.ProjectRole) bool {
	return role == models.RoleViewer
}

// CanDelete is narrower than CanEdit: only the task creator or a project
// owner may soft-delete.
func CanDelete(role models.ProjectRole, actorID, creatorID string) bool {
	if actorID != "" && actorID == creatorID {
		return true
	}
	return role == models.RoleOwner
}
