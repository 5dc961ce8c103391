package services

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"taskflow/internal/authz"
	"taskflow/internal/models"
	"taskflow/internal/repositories"
)

// AccessService is the access guard in front of every task operation.
type AccessService interface {
	VerifyProjectAccess(ctx context.Context, actor models.Actor, projectID string) (*models.ProjectMember, error)
	VerifyProjectEditAccess(ctx context.Context, actor models.Actor, projectID string) (*models.ProjectMember, error)
}

type accessService struct {
	projects repositories.ProjectRepository
}

func NewAccessService(projects repositories.ProjectRepository) AccessService {
	return &accessService{projects: projects}
}

func (s *accessService) VerifyProjectAccess(ctx context.Context, actor models.Actor, projectID string) (*models.ProjectMember, error) {
	member, err := s.member(ctx, actor, projectID)
	if err != nil {
		return nil, err
	}
	if !authz.CanRead(member.Role) {
		return nil, ErrForbidden
	}
	return member, nil
}

func (s *accessService) VerifyProjectEditAccess(ctx context.Context, actor models.Actor, projectID string) (*models.ProjectMember, error) {
	member, err := s.member(ctx, actor, projectID)
	if err != nil {
		return nil, err
	}
	if !authz.CanEdit(member.Role) {
		return nil, ErrForbidden
	}
	return member, nil
}

func (s *accessService) member(ctx context.Context, actor models.Actor, projectID string) (*models.ProjectMember, error) {
	if actor.UserID == "" {
		return nil, ErrUnauthorized
	}
	if _, err := uuid.Parse(projectID); err != nil {
		return nil, validationError("invalid project id")
	}
	member, err := s.projects.GetMember(ctx, projectID, actor.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrForbidden
		}
		return nil, err
	}
	return member, nil
}
