package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"taskflow/internal/models"
	"taskflow/internal/repositories"
)

const (
	projectID = "aaaaaaaa-0000-0000-0000-000000000001"
	otherProj = "aaaaaaaa-0000-0000-0000-000000000002"

	userOwner = "00000000-0000-0000-0000-0000000000f0"
	userU1    = "00000000-0000-0000-0000-000000000001"
	userU2    = "00000000-0000-0000-0000-000000000002"
	userU3    = "00000000-0000-0000-0000-000000000003"
	userU7    = "00000000-0000-0000-0000-000000000007"
	userView  = "00000000-0000-0000-0000-0000000000e0"
)

var errBoom = errors.New("boom")

// memTaskRepo is an in-memory TaskRepository. WithTx snapshots the whole
// table and restores it when fn fails.
type memTaskRepo struct {
	mu    sync.Mutex
	tasks map[string]*models.Task

	failReplace error
	failUpdate  error
	failChild   error
}

func newMemTaskRepo() *memTaskRepo {
	return &memTaskRepo{tasks: map[string]*models.Task{}}
}

func (r *memTaskRepo) put(t *models.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.AssigneeIDs == nil {
		t.AssigneeIDs = []string{}
	}
	r.tasks[t.ID] = t.Clone()
}

// raw returns the stored row including soft-deleted ones.
func (r *memTaskRepo) raw(id string) *models.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tasks[id].Clone()
}

func (r *memTaskRepo) FindByID(_ context.Context, id string) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.DeletedAt != nil {
		return nil, repositories.ErrNotFound
	}
	return t.Clone(), nil
}

func (r *memTaskRepo) FindAll(_ context.Context, f models.TaskFilter) ([]models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Task{}
	for _, t := range r.tasks {
		if t.DeletedAt != nil {
			continue
		}
		if f.ProjectID != "" && t.ProjectID != f.ProjectID {
			continue
		}
		if f.ParentTaskID != nil && (t.ParentTaskID == nil || *t.ParentTaskID != *f.ParentTaskID) {
			continue
		}
		if f.ParentTaskID == nil && f.TopLevelOnly && t.ParentTaskID != nil {
			continue
		}
		if f.Status != nil && t.Status != *f.Status {
			continue
		}
		out = append(out, *t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memTaskRepo) WithTx(_ context.Context, fn func(tx repositories.TaskTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := make(map[string]*models.Task, len(r.tasks))
	for id, t := range r.tasks {
		snapshot[id] = t.Clone()
	}
	if err := fn(&memTx{r: r}); err != nil {
		r.tasks = snapshot
		return err
	}
	return nil
}

type memTx struct {
	r *memTaskRepo
}

func (x *memTx) Insert(_ context.Context, t *models.Task) error {
	c := t.Clone()
	c.AssigneeIDs = []string{}
	x.r.tasks[t.ID] = c
	return nil
}

func (x *memTx) UpdateFields(_ context.Context, t *models.Task) error {
	if x.r.failUpdate != nil {
		return x.r.failUpdate
	}
	cur, ok := x.r.tasks[t.ID]
	if !ok || cur.DeletedAt != nil {
		return repositories.ErrNotFound
	}
	c := t.Clone()
	c.AssigneeIDs = cur.AssigneeIDs
	x.r.tasks[t.ID] = c
	return nil
}

func (x *memTx) ReplaceAssignees(_ context.Context, taskID string, ids []string) error {
	t := x.r.tasks[taskID]
	t.AssigneeIDs = []string{}
	if x.r.failReplace != nil {
		return x.r.failReplace
	}
	t.AssigneeIDs = append([]string{}, ids...)
	return nil
}

func (x *memTx) SoftDelete(_ context.Context, id string, at time.Time) error {
	t, ok := x.r.tasks[id]
	if !ok || t.DeletedAt != nil {
		return repositories.ErrNotFound
	}
	t.DeletedAt = &at
	return nil
}

func (x *memTx) SoftDeleteChildren(_ context.Context, parentID string, at time.Time) (int64, error) {
	var n int64
	for _, t := range x.r.tasks {
		if t.ParentTaskID != nil && *t.ParentTaskID == parentID && t.DeletedAt == nil {
			t.DeletedAt = &at
			n++
		}
	}
	if x.r.failChild != nil {
		return 0, x.r.failChild
	}
	return n, nil
}

type fakeProjects struct {
	members map[string]models.ProjectRole
	states  map[string][]models.TemplateState
	err     error
}

func newFakeProjects() *fakeProjects {
	return &fakeProjects{
		members: map[string]models.ProjectRole{
			projectID + "/" + userOwner: models.RoleOwner,
			projectID + "/" + userU1:    models.RoleMember,
			projectID + "/" + userU2:    models.RoleMember,
			projectID + "/" + userU3:    models.RoleAdmin,
			projectID + "/" + userView:  models.RoleViewer,
		},
		states: map[string][]models.TemplateState{},
	}
}

func (p *fakeProjects) GetMember(_ context.Context, project, user string) (*models.ProjectMember, error) {
	role, ok := p.members[project+"/"+user]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &models.ProjectMember{ProjectID: project, UserID: user, Role: role}, nil
}

func (p *fakeProjects) ListTemplateStates(_ context.Context, project string) ([]models.TemplateState, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.states[project], nil
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []models.AuditEntry
	err     error
}

func (a *fakeAuditRepo) CreateBatch(_ context.Context, entries []models.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.entries = append(a.entries, entries...)
	return nil
}

func (a *fakeAuditRepo) ListByTask(_ context.Context, taskID string) ([]models.AuditEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []models.AuditEntry
	for _, e := range a.entries {
		if e.TaskID == taskID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (a *fakeAuditRepo) fields() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []string
	for _, e := range a.entries {
		out = append(out, e.Field)
	}
	sort.Strings(out)
	return out
}

type sent struct {
	Kind      models.NotificationKind
	Recipient string
	TaskID    string
	ActorName string
}

// recordingNotifier records deliveries and fails for recipients in failFor.
type recordingNotifier struct {
	mu      sync.Mutex
	sent    []sent
	failFor map[string]error
}

func (n *recordingNotifier) record(kind models.NotificationKind, recipient, taskID, actor string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.failFor[recipient]; err != nil {
		return err
	}
	n.sent = append(n.sent, sent{Kind: kind, Recipient: recipient, TaskID: taskID, ActorName: actor})
	return nil
}

func (n *recordingNotifier) NotifyAssigned(_ context.Context, taskID, recipientID, _, _ string) error {
	return n.record(models.NotificationAssigned, recipientID, taskID, "")
}

func (n *recordingNotifier) NotifyCompleted(_ context.Context, recipientID, taskID, _, actor, _ string) error {
	return n.record(models.NotificationCompleted, recipientID, taskID, actor)
}

func (n *recordingNotifier) NotifyUpdated(_ context.Context, taskID, recipientID, _, actor, _ string) error {
	return n.record(models.NotificationUpdated, recipientID, taskID, actor)
}

func (n *recordingNotifier) byKind(kind models.NotificationKind) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, s := range n.sent {
		if s.Kind == kind {
			out = append(out, s.Recipient)
		}
	}
	sort.Strings(out)
	return out
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = nil
}

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func (u *fakeUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if usr, ok := u.users[id]; ok {
		c := *usr
		return &c, nil
	}
	return nil, repositories.ErrNotFound
}

func (u *fakeUsers) UpdateTelegramLink(_ context.Context, id string, chatID int64, notify bool) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	usr, ok := u.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	usr.TelegramChatID = chatID
	usr.NotifyTelegram = notify
	return nil
}

// inlineEffects runs jobs synchronously so assertions can follow the call.
type inlineEffects struct {
	jobs []string
}

func (e *inlineEffects) Enqueue(job SideEffectJob) bool {
	e.jobs = append(e.jobs, job.Name)
	job.Run(context.Background())
	return true
}

type testEnv struct {
	repo     *memTaskRepo
	projects *fakeProjects
	audit    *fakeAuditRepo
	notifier *recordingNotifier
	effects  *inlineEffects
	svc      TaskService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		repo:     newMemTaskRepo(),
		projects: newFakeProjects(),
		audit:    &fakeAuditRepo{},
		notifier: &recordingNotifier{failFor: map[string]error{}},
		effects:  &inlineEffects{},
	}
	users := &fakeUsers{users: map[string]*models.User{
		userU1: {ID: userU1, DisplayName: "Uma One"},
	}}
	env.svc = NewTaskService(
		env.repo,
		NewAccessService(env.projects),
		NewWorkflowResolver(env.projects),
		NewAuditService(env.audit),
		NewNotificationDispatcher(env.notifier, users),
		env.effects,
	)
	return env
}

func (e *testEnv) seedTask(id, status, creator string, assignees ...string) *models.Task {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	t := &models.Task{
		ID:          id,
		Title:       "Task " + id[len(id)-2:],
		Status:      status,
		Priority:    models.PriorityMedium,
		ProjectID:   projectID,
		CreatedByID: creator,
		AssigneeIDs: assignees,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	e.repo.put(t)
	return t
}

func (e *testEnv) seedSubtask(id, parent, creator string) *models.Task {
	t := e.seedTask(id, StatusPending, creator)
	t.ParentTaskID = &parent
	e.repo.put(t)
	return t
}

func actorOf(id string) models.Actor { return models.Actor{UserID: id} }

func ptr[T any](v T) *T { return &v }

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sorted(ids ...string) []string {
	out := append([]string{}, ids...)
	sort.Strings(out)
	return out
}
