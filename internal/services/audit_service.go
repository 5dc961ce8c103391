package services

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"taskflow/internal/models"
	"taskflow/internal/repositories"
)

// DiffSnapshots returns one entry per audited field whose serialized value
// differs between before and after. The assignee set is compared as a set.
func DiffSnapshots(before, after *models.Task, actorID string, at time.Time) []models.AuditEntry {
	if before == nil || after == nil {
		return nil
	}
	pairs := []struct {
		field    string
		old, new *string
	}{
		{models.FieldTitle, strPtr(before.Title), strPtr(after.Title)},
		{models.FieldDescription, before.Description, after.Description},
		{models.FieldStatus, strPtr(before.Status), strPtr(after.Status)},
		{models.FieldPriority, strPtr(string(before.Priority)), strPtr(string(after.Priority))},
		{models.FieldDueDate, serializeTime(before.DueDate), serializeTime(after.DueDate)},
		{models.FieldAssigneeID, before.LegacyAssigneeID(), after.LegacyAssigneeID()},
		{models.FieldSprintID, before.SprintID, after.SprintID},
		{models.FieldEpicID, before.EpicID, after.EpicID},
		{models.FieldAssigneeIDs, serializeSet(before.AssigneeIDs), serializeSet(after.AssigneeIDs)},
	}

	var entries []models.AuditEntry
	for _, p := range pairs {
		if equalPtr(p.old, p.new) {
			continue
		}
		entries = append(entries, models.AuditEntry{
			ID:        uuid.NewString(),
			TaskID:    after.ID,
			Field:     p.field,
			OldValue:  p.old,
			NewValue:  p.new,
			ActorID:   actorID,
			CreatedAt: at,
		})
	}
	return entries
}

// AuditService persists audit entries outside the mutation transaction.
type AuditService interface {
	// Record diffs and stores. Failures are logged, never returned.
	Record(ctx context.Context, actor models.Actor, before, after *models.Task)
	ListByTask(ctx context.Context, taskID string) ([]models.AuditEntry, error)
}

type auditService struct {
	repo repositories.AuditRepository
	now  func() time.Time
}

func NewAuditService(repo repositories.AuditRepository) AuditService {
	return &auditService{repo: repo, now: time.Now}
}

func (s *auditService) Record(ctx context.Context, actor models.Actor, before, after *models.Task) {
	entries := DiffSnapshots(before, after, actor.UserID, s.now().UTC())
	if len(entries) == 0 {
		return
	}
	if err := s.repo.CreateBatch(ctx, entries); err != nil {
		log.Printf("[audit][persist][err] task=%s entries=%d: %v", after.ID, len(entries), err)
		return
	}
	log.Printf("[audit][persist][ok] task=%s entries=%d", after.ID, len(entries))
}

func (s *auditService) ListByTask(ctx context.Context, taskID string) ([]models.AuditEntry, error) {
	return s.repo.ListByTask(ctx, taskID)
}

func strPtr(s string) *string { return &s }

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func serializeTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

// serializeSet renders ids as a sorted JSON array so that order does not
// produce a diff.
func serializeSet(ids []string) *string {
	sorted := append([]string{}, ids...)
	sort.Strings(sorted)
	b, _ := json.Marshal(sorted)
	s := string(b)
	return &s
}
