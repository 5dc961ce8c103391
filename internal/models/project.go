package models

// ProjectRole is a member's role inside one project.
type ProjectRole string

const (
	RoleOwner  ProjectRole = "OWNER"
	RoleAdmin  ProjectRole = "ADMIN"
	RoleMember ProjectRole = "MEMBER"
	RoleViewer ProjectRole = "VIEWER"
)

type ProjectMember struct {
	ProjectID string      `json:"project_id"`
	UserID    string      `json:"user_id"`
	Role      ProjectRole `json:"role"`
}

// TemplateState is one named status of a project's workflow template.
type TemplateState struct {
	Name       string `json:"name"`
	Position   int    `json:"position"`
	IsTerminal bool   `json:"is_terminal"`
}
