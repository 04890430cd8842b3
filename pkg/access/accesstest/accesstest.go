// Package accesstest provides an in-memory access.Repository and audit trail for
// tests of packages that sit behind the verifier.
package accesstest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/platinummonkey/groundwork/pkg/access"
	"github.com/platinummonkey/groundwork/pkg/audit"
	"github.com/platinummonkey/groundwork/pkg/models"
)

// Repository is an in-memory access.Repository
type Repository struct {
	mu       sync.Mutex
	projects map[int64]*models.Project
	grants   []*models.ProjectAccess
	nextID   int64
}

// NewRepository creates an empty repository
func NewRepository() *Repository {
	return &Repository{projects: make(map[int64]*models.Project)}
}

// AddProject stores p
func (r *Repository) AddProject(p *models.Project) *models.Project {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.projects[p.ID] = p
	return p
}

// Share gives userID accepted access at perm and returns the access id
func (r *Repository) Share(projectID, userID int64, perm models.Permission) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	now := time.Now()
	r.grants = append(r.grants, &models.ProjectAccess{
		ID:         r.nextID,
		ProjectID:  projectID,
		UserID:     &userID,
		Permission: perm,
		AcceptedAt: &now,
	})
	return r.nextID
}

// FindActiveProject implements access.Repository
func (r *Repository) FindActiveProject(_ context.Context, id int64) (*models.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[id]
	if !ok || p.DeletedAt != nil {
		return nil, nil
	}
	c := *p
	return &c, nil
}

// FindAcceptedAccess implements access.Repository
func (r *Repository) FindAcceptedAccess(_ context.Context, projectID, userID int64) (*models.ProjectAccess, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.grants {
		if a.ProjectID == projectID && *a.UserID == userID && a.Live() {
			c := *a
			return &c, nil
		}
	}
	return nil, nil
}

// Trail records audit entries in memory
type Trail struct {
	mu      sync.Mutex
	entries []*audit.Entry
	failOn  map[audit.Action]bool
}

// FailOn makes Log fail for the given actions
func (t *Trail) FailOn(actions ...audit.Action) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failOn == nil {
		t.failOn = make(map[audit.Action]bool)
	}
	for _, a := range actions {
		t.failOn[a] = true
	}
}

// Log implements audit.Logger
func (t *Trail) Log(_ context.Context, e *audit.Entry) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failOn[e.Action] {
		return errors.New("audit store unavailable")
	}
	t.entries = append(t.entries, e)
	return nil
}

// Entries returns a copy of everything logged
func (t *Trail) Entries() []*audit.Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*audit.Entry(nil), t.entries...)
}

// Mutations returns the actions logged, skipping access decisions
func (t *Trail) Mutations() []audit.Action {
	var out []audit.Action
	for _, e := range t.Entries() {
		if e.Action != audit.ActionAccessCheck && e.Action != audit.ActionRequireOwner {
			out = append(out, e.Action)
		}
	}
	return out
}

// Last returns the most recent entry, or nil
func (t *Trail) Last() *audit.Entry {
	entries := t.Entries()
	if len(entries) == 0 {
		return nil
	}
	return entries[len(entries)-1]
}

// Fixture wires a real verifier to a Repository and Trail. It seeds one project
// with an owner, a read partner, a write partner and an outsider.
type Fixture struct {
	*access.Verifier
	Repo     *Repository
	Trail    *Trail
	Project  *models.Project
	Owner    *models.User
	Reader   *models.User
	Writer   *models.User
	Outsider *models.User
}

// NewFixture builds the seeded fixture
func NewFixture() *Fixture {
	repo := NewRepository()
	trail := &Trail{}
	f := &Fixture{
		Verifier: access.NewVerifier(repo, trail, nil),
		Repo:     repo,
		Trail:    trail,
		Owner:    &models.User{ID: 1, Email: "owner@example.com", DisplayName: "Olive Owner", Role: models.UserRoleAdmin},
		Reader:   &models.User{ID: 2, Email: "reader@example.com", DisplayName: "Rae Reader", Role: models.UserRolePartner},
		Writer:   &models.User{ID: 3, Email: "writer@example.com", DisplayName: "Wes Writer", Role: models.UserRolePartner},
		Outsider: &models.User{ID: 4, Email: "outsider@example.com", DisplayName: "Oz Outsider", Role: models.UserRolePartner},
	}
	f.Project = repo.AddProject(&models.Project{
		ID:          10,
		Name:        "Harbor Lofts",
		City:        "Portland",
		OwnerID:     f.Owner.ID,
		Status:      models.ProjectStatusActive,
		BudgetCents: 1_000_000,
	})
	repo.Share(f.Project.ID, f.Reader.ID, models.PermissionRead)
	repo.Share(f.Project.ID, f.Writer.ID, models.PermissionWrite)
	return f
}
