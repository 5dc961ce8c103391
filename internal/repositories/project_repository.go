package repositories

import (
	"context"
	"database/sql"
	"errors"

	"taskflow/internal/models"
)

// ProjectRepository reads membership and workflow templates. Both are
// managed elsewhere.
type ProjectRepository interface {
	GetMember(ctx context.Context, projectID, userID string) (*models.ProjectMember, error)
	ListTemplateStates(ctx context.Context, projectID string) ([]models.TemplateState, error)
}

type projectRepository struct {
	db *sql.DB
}

func NewProjectRepository(db *sql.DB) ProjectRepository {
	return &projectRepository{db: db}
}

func (r *projectRepository) GetMember(ctx context.Context, projectID, userID string) (*models.ProjectMember, error) {
	const q = `SELECT project_id, user_id, role FROM project_members WHERE project_id = $1 AND user_id = $2`
	m := &models.ProjectMember{}
	if err := r.db.QueryRowContext(ctx, q, projectID, userID).Scan(&m.ProjectID, &m.UserID, &m.Role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

func (r *projectRepository) ListTemplateStates(ctx context.Context, projectID string) ([]models.TemplateState, error) {
	const q = `
		SELECT name, position, is_terminal
		FROM project_template_states
		WHERE project_id = $1
		ORDER BY position ASC`
	rows, err := r.db.QueryContext(ctx, q, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.TemplateState
	for rows.Next() {
		var s models.TemplateState
		if err := rows.Scan(&s.Name, &s.Position, &s.IsTerminal); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
