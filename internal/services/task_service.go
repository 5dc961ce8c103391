package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskflow/internal/authz"
	"taskflow/internal/models"
	"taskflow/internal/repositories"
)

// CreateTaskInput carries the fields accepted on task and subtask creation.
type CreateTaskInput struct {
	Title       string
	Description *string
	Priority    models.TaskPriority
	DueDate     *string
	SprintID    *string
	EpicID      *string
	AssigneeIDs *[]string
	AssigneeID  *string
}

// TaskService is the task mutation pipeline plus the read paths around it.
// Every call takes the acting user explicitly.
type TaskService interface {
	Create(ctx context.Context, actor models.Actor, projectID string, in CreateTaskInput) (*models.Task, error)
	CreateSubtask(ctx context.Context, actor models.Actor, projectID, parentID string, in CreateTaskInput) (*models.Task, error)
	GetByID(ctx context.Context, actor models.Actor, projectID, id string) (*models.Task, error)
	GetAll(ctx context.Context, actor models.Actor, filter models.TaskFilter) ([]models.Task, error)
	ListSubtasks(ctx context.Context, actor models.Actor, projectID, parentID string) ([]models.Task, error)
	Update(ctx context.Context, actor models.Actor, projectID, id string, patch models.TaskPatch) (*models.Task, error)
	UpdateSubtask(ctx context.Context, actor models.Actor, projectID, id string, patch models.TaskPatch) (*models.Task, error)
	SoftDelete(ctx context.Context, actor models.Actor, projectID, id string) error
	SoftDeleteSubtask(ctx context.Context, actor models.Actor, projectID, id string) error
	AuditTrail(ctx context.Context, actor models.Actor, projectID, id string) (*models.Task, []models.AuditEntry, error)
}

// SideEffects accepts post-commit jobs.
type SideEffects interface {
	Enqueue(job SideEffectJob) bool
}

type taskService struct {
	repo       repositories.TaskRepository
	access     AccessService
	workflows  WorkflowResolver
	audit      AuditService
	dispatcher *NotificationDispatcher
	effects    SideEffects
	now        func() time.Time
}

func NewTaskService(
	repo repositories.TaskRepository,
	access AccessService,
	workflows WorkflowResolver,
	audit AuditService,
	dispatcher *NotificationDispatcher,
	effects SideEffects,
) TaskService {
	return &taskService{
		repo:       repo,
		access:     access,
		workflows:  workflows,
		audit:      audit,
		dispatcher: dispatcher,
		effects:    effects,
		now:        time.Now,
	}
}

func (s *taskService) Create(ctx context.Context, actor models.Actor, projectID string, in CreateTaskInput) (*models.Task, error) {
	return s.create(ctx, actor, projectID, nil, in)
}

func (s *taskService) CreateSubtask(ctx context.Context, actor models.Actor, projectID, parentID string, in CreateTaskInput) (*models.Task, error) {
	return s.create(ctx, actor, projectID, &parentID, in)
}

func (s *taskService) create(ctx context.Context, actor models.Actor, projectID string, parentID *string, in CreateTaskInput) (*models.Task, error) {
	if _, err := s.access.VerifyProjectEditAccess(ctx, actor, projectID); err != nil {
		return nil, err
	}

	scope := ScopeTask
	if parentID != nil {
		scope = ScopeSubtask
		parent, err := s.load(ctx, projectID, *parentID)
		if err != nil {
			return nil, err
		}
		// subtasks live in their parent's project
		projectID = parent.ProjectID
	}

	now := s.now().UTC()
	task := &models.Task{
		ID:           uuid.NewString(),
		ProjectID:    projectID,
		ParentTaskID: parentID,
		CreatedByID:  actor.UserID,
		Priority:     models.PriorityMedium,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	patch := models.TaskPatch{
		Title:       &in.Title,
		Description: in.Description,
		DueDate:     in.DueDate,
		SprintID:    in.SprintID,
		EpicID:      in.EpicID,
	}
	if in.Priority != "" {
		patch.Priority = &in.Priority
	}
	if err := applyPatch(task, patch); err != nil {
		return nil, err
	}

	wf, err := s.workflows.Resolve(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("resolve workflow: %w", err)
	}
	task.Status = wf.DefaultStatus()

	plan := ReconcileAssignees(nil, RequestedAssignees(in.AssigneeIDs, in.AssigneeID))
	task.AssigneeIDs = plan.Final

	err = s.repo.WithTx(ctx, func(tx repositories.TaskTx) error {
		if err := tx.Insert(ctx, task); err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		if len(plan.Final) > 0 {
			if err := tx.ReplaceAssignees(ctx, task.ID, plan.Final); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[task][create][ok] id=%s project=%s scope=%s assignees=%d", task.ID, projectID, scope, len(task.AssigneeIDs))

	s.enqueueNotifications(MutationEvent{
		Kind:      MutationCreate,
		Scope:     scope,
		Actor:     actor,
		TaskID:    task.ID,
		ProjectID: task.ProjectID,
		Title:     task.Title,
		CreatorID: task.CreatedByID,
		Assignees: task.AssigneeIDs,
		Added:     plan.Added,
	})
	return task, nil
}

func (s *taskService) GetByID(ctx context.Context, actor models.Actor, projectID, id string) (*models.Task, error) {
	if _, err := s.access.VerifyProjectAccess(ctx, actor, projectID); err != nil {
		return nil, err
	}
	return s.load(ctx, projectID, id)
}

func (s *taskService) GetAll(ctx context.Context, actor models.Actor, filter models.TaskFilter) ([]models.Task, error) {
	if _, err := s.access.VerifyProjectAccess(ctx, actor, filter.ProjectID); err != nil {
		return nil, err
	}
	for field, v := range map[string]*string{"assignee_id": filter.AssigneeID, "sprint_id": filter.SprintID, "epic_id": filter.EpicID} {
		if v == nil {
			continue
		}
		if _, err := uuid.Parse(*v); err != nil {
			return nil, validationError("invalid %s filter", field)
		}
	}
	if filter.Status != nil {
		status := NormalizeStatus(*filter.Status)
		filter.Status = &status
	}
	return s.repo.FindAll(ctx, filter)
}

func (s *taskService) ListSubtasks(ctx context.Context, actor models.Actor, projectID, parentID string) ([]models.Task, error) {
	if _, err := s.access.VerifyProjectAccess(ctx, actor, projectID); err != nil {
		return nil, err
	}
	parent, err := s.load(ctx, projectID, parentID)
	if err != nil {
		return nil, err
	}
	return s.repo.FindAll(ctx, models.TaskFilter{ProjectID: parent.ProjectID, ParentTaskID: &parent.ID})
}

func (s *taskService) Update(ctx context.Context, actor models.Actor, projectID, id string, patch models.TaskPatch) (*models.Task, error) {
	return s.update(ctx, actor, projectID, id, patch, ScopeTask)
}

func (s *taskService) UpdateSubtask(ctx context.Context, actor models.Actor, projectID, id string, patch models.TaskPatch) (*models.Task, error) {
	return s.update(ctx, actor, projectID, id, patch, ScopeSubtask)
}

func (s *taskService) update(ctx context.Context, actor models.Actor, projectID, id string, patch models.TaskPatch, scope MutationScope) (*models.Task, error) {
	if _, err := s.access.VerifyProjectEditAccess(ctx, actor, projectID); err != nil {
		return nil, err
	}
	current, err := s.loadScoped(ctx, projectID, id, scope)
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	if err := applyPatch(next, patch); err != nil {
		return nil, err
	}

	transition := Transition{}
	if patch.Status != nil {
		wf, err := s.workflows.Resolve(ctx, current.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("resolve workflow: %w", err)
		}
		transition = wf.Evaluate(current.Status, &next.Status)
	}

	plan := ReconcileAssignees(current.AssigneeIDs, RequestedAssignees(patch.AssigneeIDs, patch.AssigneeID))
	next.AssigneeIDs = plan.Final
	next.UpdatedAt = s.now().UTC()

	err = s.repo.WithTx(ctx, func(tx repositories.TaskTx) error {
		if err := tx.UpdateFields(ctx, next); err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		if plan.Apply {
			if err := tx.ReplaceAssignees(ctx, next.ID, plan.Final); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	log.Printf("[task][update][ok] id=%s scope=%s added=%d removed=%d terminal=%v",
		next.ID, scope, len(plan.Added), len(plan.Removed), transition.EnteredTerminal)

	before, after := current, next.Clone()
	s.enqueue(SideEffectJob{
		Name: "audit:" + next.ID,
		Run: func(ctx context.Context) {
			s.audit.Record(ctx, actor, before, after)
		},
	})
	s.enqueueNotifications(MutationEvent{
		Kind:       MutationUpdate,
		Scope:      scope,
		Actor:      actor,
		TaskID:     after.ID,
		ProjectID:  after.ProjectID,
		Title:      after.Title,
		CreatorID:  after.CreatedByID,
		Assignees:  after.AssigneeIDs,
		Added:      plan.Added,
		Transition: transition,
	})
	return next, nil
}

func (s *taskService) SoftDelete(ctx context.Context, actor models.Actor, projectID, id string) error {
	return s.softDelete(ctx, actor, projectID, id, ScopeTask)
}

func (s *taskService) SoftDeleteSubtask(ctx context.Context, actor models.Actor, projectID, id string) error {
	return s.softDelete(ctx, actor, projectID, id, ScopeSubtask)
}

// softDelete marks the task and its direct subtasks. Deeper descendants are
// left alone.
func (s *taskService) softDelete(ctx context.Context, actor models.Actor, projectID, id string, scope MutationScope) error {
	member, err := s.access.VerifyProjectEditAccess(ctx, actor, projectID)
	if err != nil {
		return err
	}
	task, err := s.loadScoped(ctx, projectID, id, scope)
	if err != nil {
		return err
	}
	if !authz.CanDelete(member.Role, actor.UserID, task.CreatedByID) {
		log.Printf("[task][delete][deny] id=%s actor=%s role=%s creator=%s", id, actor.UserID, member.Role, task.CreatedByID)
		return ErrForbidden
	}

	at := s.now().UTC()
	var children int64
	err = s.repo.WithTx(ctx, func(tx repositories.TaskTx) error {
		if err := tx.SoftDelete(ctx, task.ID, at); err != nil {
			return err
		}
		n, err := tx.SoftDeleteChildren(ctx, task.ID, at)
		if err != nil {
			return fmt.Errorf("delete subtasks: %w", err)
		}
		children = n
		return nil
	})
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	log.Printf("[task][delete][ok] id=%s subtasks=%d", task.ID, children)
	return nil
}

func (s *taskService) AuditTrail(ctx context.Context, actor models.Actor, projectID, id string) (*models.Task, []models.AuditEntry, error) {
	if _, err := s.access.VerifyProjectAccess(ctx, actor, projectID); err != nil {
		return nil, nil, err
	}
	task, err := s.load(ctx, projectID, id)
	if err != nil {
		return nil, nil, err
	}
	entries, err := s.audit.ListByTask(ctx, task.ID)
	if err != nil {
		return nil, nil, err
	}
	return task, entries, nil
}

// load returns a live task that belongs to projectID.
func (s *taskService) load(ctx context.Context, projectID, id string) (*models.Task, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, validationError("invalid task id")
	}
	task, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if task.ProjectID != projectID || task.IsDeleted() {
		return nil, ErrNotFound
	}
	return task, nil
}

func (s *taskService) loadScoped(ctx context.Context, projectID, id string, scope MutationScope) (*models.Task, error) {
	task, err := s.load(ctx, projectID, id)
	if err != nil {
		return nil, err
	}
	if scope == ScopeSubtask && !task.IsSubtask() {
		return nil, ErrNotFound
	}
	return task, nil
}

func (s *taskService) enqueueNotifications(ev MutationEvent) {
	if len(PlanNotifications(ev)) == 0 {
		return
	}
	s.enqueue(SideEffectJob{
		Name: "notify:" + ev.TaskID,
		Run: func(ctx context.Context) {
			s.dispatcher.Dispatch(ctx, ev)
		},
	})
}

func (s *taskService) enqueue(job SideEffectJob) {
	if s.effects == nil {
		return
	}
	s.effects.Enqueue(job)
}

// applyPatch validates and copies the supplied fields onto t. Nothing is
// written when an error is returned.
func applyPatch(t *models.Task, p models.TaskPatch) error {
	next := t.Clone()

	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return validationError("title is required")
		}
		next.Title = title
	}
	if p.Description != nil {
		next.Description = optionalString(*p.Description)
	}
	if p.Status != nil {
		// Stored in the same UPPER_SNAKE form the workflow evaluates.
		status := NormalizeStatus(*p.Status)
		if status == "" {
			return validationError("status must not be empty")
		}
		next.Status = status
	}
	if p.Priority != nil {
		pr := models.TaskPriority(strings.ToUpper(strings.TrimSpace(string(*p.Priority))))
		if !pr.Valid() {
			return validationError("invalid priority %q", *p.Priority)
		}
		next.Priority = pr
	}
	if p.DueDate != nil {
		due, err := parseDueDate(*p.DueDate)
		if err != nil {
			return err
		}
		next.DueDate = due
	}
	if p.SprintID != nil {
		id, err := optionalUUID("sprint_id", *p.SprintID)
		if err != nil {
			return err
		}
		next.SprintID = id
	}
	if p.EpicID != nil {
		id, err := optionalUUID("epic_id", *p.EpicID)
		if err != nil {
			return err
		}
		next.EpicID = id
	}

	*t = *next
	return nil
}

// parseDueDate accepts RFC3339 or a plain YYYY-MM-DD date; "" clears.
func parseDueDate(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		u := t.UTC()
		return &u, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, validationError("invalid due_date %q", v)
	}
	return &t, nil
}

func optionalUUID(field, v string) (*string, error) {
	if v == "" {
		return nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil, validationError("invalid %s", field)
	}
	s := id.String()
	return &s, nil
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
