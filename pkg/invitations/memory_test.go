package invitations

import (
	"context"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/platinummonkey/groundwork/pkg/audit"
	"github.com/platinummonkey/groundwork/pkg/models"
	"github.com/platinummonkey/groundwork/pkg/notifications"
)

// memory backs both Store and access.Repository so the verifier sees the same rows
type memory struct {
	mu        sync.Mutex
	projects  map[int64]*models.Project
	users     map[int64]*models.User
	rows      []*models.ProjectAccess
	reminders map[int64]time.Time
	nextID    int64
}

func newMemory() *memory {
	return &memory{
		projects:  map[int64]*models.Project{},
		users:     map[int64]*models.User{},
		reminders: map[int64]time.Time{},
	}
}

func (m *memory) addUser(u *models.User) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return u
}

func (m *memory) addProject(p *models.Project) *models.Project {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[p.ID] = p
	return p
}

func clone(a *models.ProjectAccess) *models.ProjectAccess {
	c := *a
	return &c
}

func (m *memory) FindActiveProject(_ context.Context, id int64) (*models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok || p.DeletedAt != nil {
		return nil, nil
	}
	return p, nil
}

func (m *memory) FindAcceptedAccess(_ context.Context, projectID, userID int64) (*models.ProjectAccess, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.rows {
		if a.ProjectID == projectID && a.UserID != nil && *a.UserID == userID && a.Live() {
			return clone(a), nil
		}
	}
	return nil, nil
}

func (m *memory) find(match func(*models.ProjectAccess) bool) *models.ProjectAccess {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.rows {
		if a.DeletedAt == nil && match(a) {
			return clone(a)
		}
	}
	return nil
}

func (m *memory) FindLiveByEmail(_ context.Context, projectID int64, email string) (*models.ProjectAccess, error) {
	return m.find(func(a *models.ProjectAccess) bool {
		return a.ProjectID == projectID && a.InvitedEmail == email
	}), nil
}

func (m *memory) FindLive(_ context.Context, id int64) (*models.ProjectAccess, error) {
	return m.find(func(a *models.ProjectAccess) bool { return a.ID == id }), nil
}

func (m *memory) FindByToken(_ context.Context, token string) (*models.ProjectAccess, error) {
	return m.find(func(a *models.ProjectAccess) bool { return a.Token != nil && *a.Token == token }), nil
}

func (m *memory) ListByProject(_ context.Context, projectID int64) ([]*models.ProjectAccess, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*models.ProjectAccess
	for _, a := range m.rows {
		if a.ProjectID == projectID && a.DeletedAt == nil {
			result = append(result, clone(a))
		}
	}
	return result, nil
}

func (m *memory) Create(_ context.Context, a *models.ProjectAccess) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.DeletedAt == nil && r.ProjectID == a.ProjectID && r.InvitedEmail == a.InvitedEmail {
			return &pq.Error{Code: "23505"}
		}
	}
	m.nextID++
	a.ID = m.nextID
	m.rows = append(m.rows, clone(a))
	return nil
}

func (m *memory) update(id int64, apply func(*models.ProjectAccess) bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.rows {
		if a.ID == id {
			return apply(a)
		}
	}
	return false
}

func (m *memory) Reissue(_ context.Context, id int64, token string, permission models.Permission, invitedAt, expiresAt time.Time) (bool, error) {
	ok := m.update(id, func(a *models.ProjectAccess) bool {
		if a.AcceptedAt != nil || a.DeletedAt != nil {
			return false
		}
		a.Token = &token
		a.Permission = permission
		a.InvitedAt = invitedAt
		a.ExpiresAt = expiresAt
		return true
	})
	if ok {
		m.mu.Lock()
		delete(m.reminders, id)
		m.mu.Unlock()
	}
	return ok, nil
}

func (m *memory) MarkAccepted(_ context.Context, id, userID int64, at time.Time) (bool, error) {
	return m.update(id, func(a *models.ProjectAccess) bool {
		if a.AcceptedAt != nil || a.DeletedAt != nil {
			return false
		}
		a.UserID = &userID
		a.AcceptedAt = &at
		a.Token = nil
		return true
	}), nil
}

func (m *memory) SoftDelete(_ context.Context, id int64, at time.Time) (bool, error) {
	return m.update(id, func(a *models.ProjectAccess) bool {
		if a.DeletedAt != nil {
			return false
		}
		a.DeletedAt = &at
		a.Token = nil
		return true
	}), nil
}

func (m *memory) Preview(_ context.Context, token string) (*Preview, error) {
	a := m.find(func(a *models.ProjectAccess) bool { return a.Token != nil && *a.Token == token })
	if a == nil {
		return nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[a.ProjectID]
	if !ok || p.DeletedAt != nil {
		return nil, nil
	}
	return &Preview{
		ProjectID:    p.ID,
		ProjectName:  p.Name,
		InviterName:  m.users[a.InvitedBy].DisplayName,
		InvitedEmail: a.InvitedEmail,
		Permission:   a.Permission,
		ExpiresAt:    a.ExpiresAt,
	}, nil
}

func (m *memory) ListExpiring(_ context.Context, from, until time.Time) ([]*Pending, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*Pending
	for _, a := range m.rows {
		if a.AcceptedAt != nil || a.DeletedAt != nil || a.Token == nil {
			continue
		}
		if !a.ExpiresAt.After(from) || a.ExpiresAt.After(until) {
			continue
		}
		if _, done := m.reminders[a.ID]; done {
			continue
		}
		result = append(result, &Pending{
			Access:      clone(a),
			ProjectName: m.projects[a.ProjectID].Name,
			InviterName: m.users[a.InvitedBy].DisplayName,
		})
	}
	return result, nil
}

func (m *memory) RecordReminder(_ context.Context, accessID int64, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, done := m.reminders[accessID]; done {
		return false, nil
	}
	m.reminders[accessID] = at
	return true, nil
}

type auditTrail struct {
	mu      sync.Mutex
	entries []*audit.Entry
}

func (t *auditTrail) Log(_ context.Context, e *audit.Entry) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, e)
	return nil
}

func (t *auditTrail) actions() []audit.Action {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []audit.Action
	for _, e := range t.entries {
		out = append(out, e.Action)
	}
	return out
}

type sentMail struct {
	email string
	msg   notifications.Message
}

type fakeNotifier struct {
	mu     sync.Mutex
	inbox  map[int64][]notifications.Message
	emails []sentMail
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{inbox: map[int64][]notifications.Message{}}
}

func (f *fakeNotifier) Notify(_ context.Context, userID int64, msg notifications.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inbox[userID] = append(f.inbox[userID], msg)
	return nil
}

func (f *fakeNotifier) NotifyEmail(_ context.Context, email string, msg notifications.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emails = append(f.emails, sentMail{email: email, msg: msg})
}

func (f *fakeNotifier) lastEmail() sentMail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.emails[len(f.emails)-1]
}

func (f *fakeNotifier) emailCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.emails)
}
