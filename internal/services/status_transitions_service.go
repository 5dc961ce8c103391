package services

import (
	"context"
	"log"
	"strings"
	"unicode"

	"taskflow/internal/models"
	"taskflow/internal/repositories"
)

const (
	StatusPending    = "PENDING"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
)

// Transition classifies one status change.
type Transition struct {
	Changed         bool
	EnteredTerminal bool
}

// Workflow is a project's resolved status configuration. Any status may move
// to any other; only entry into a terminal state is privileged.
type Workflow struct {
	states   []string
	terminal map[string]struct{}
}

// DefaultWorkflow is used by projects without a template.
func DefaultWorkflow() Workflow {
	return Workflow{
		states:   []string{StatusPending, StatusInProgress, StatusCompleted},
		terminal: map[string]struct{}{StatusCompleted: {}},
	}
}

// NewWorkflow builds a workflow from template states ordered by position.
// Flagged states are terminal. When nothing is flagged the state named
// COMPLETED (after normalization) is used, and if that is missing too the
// project has no terminal state at all.
func NewWorkflow(states []models.TemplateState) Workflow {
	if len(states) == 0 {
		return DefaultWorkflow()
	}
	w := Workflow{terminal: map[string]struct{}{}}
	for _, s := range states {
		name := NormalizeStatus(s.Name)
		if name == "" {
			continue
		}
		w.states = append(w.states, name)
		if s.IsTerminal {
			w.terminal[name] = struct{}{}
		}
	}
	if len(w.states) == 0 {
		return DefaultWorkflow()
	}
	if len(w.terminal) == 0 {
		for _, name := range w.states {
			if name == StatusCompleted {
				w.terminal[name] = struct{}{}
			}
		}
	}
	return w
}

// DefaultStatus is the status seeded on new tasks.
func (w Workflow) DefaultStatus() string {
	if len(w.states) == 0 {
		return StatusPending
	}
	return w.states[0]
}

// IsTerminal compares by normalized name, so "completed" and "COMPLETED"
// are the same state.
func (w Workflow) IsTerminal(status string) bool {
	_, ok := w.terminal[NormalizeStatus(status)]
	return ok
}

func (w Workflow) HasTerminal() bool { return len(w.terminal) > 0 }

// Evaluate classifies a status change. newStatus nil means the request did
// not touch the status.
func (w Workflow) Evaluate(oldStatus string, newStatus *string) Transition {
	if newStatus == nil || *newStatus == oldStatus {
		return Transition{}
	}
	return Transition{
		Changed:         true,
		EnteredTerminal: !w.IsTerminal(oldStatus) && w.IsTerminal(*newStatus),
	}
}

// NormalizeStatus turns a template state name into an UPPER_SNAKE_CASE
// identifier: "In progress" -> "IN_PROGRESS", "code-review" -> "CODE_REVIEW".
func NormalizeStatus(name string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.TrimSpace(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(unicode.ToUpper(r))
			continue
		}
		pendingSep = true
	}
	return b.String()
}

// WorkflowResolver loads a project's workflow once per call site.
type WorkflowResolver interface {
	Resolve(ctx context.Context, projectID string) (Workflow, error)
}

type workflowResolver struct {
	projects repositories.ProjectRepository
}

func NewWorkflowResolver(projects repositories.ProjectRepository) WorkflowResolver {
	return &workflowResolver{projects: projects}
}

func (r *workflowResolver) Resolve(ctx context.Context, projectID string) (Workflow, error) {
	states, err := r.projects.ListTemplateStates(ctx, projectID)
	if err != nil {
		return Workflow{}, err
	}
	w := NewWorkflow(states)
	if !w.HasTerminal() {
		log.Printf("[workflow][warn] project=%s template defines no terminal state; completion notifications are disabled", projectID)
	}
	return w, nil
}
