package events

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/groundwork/pkg/access/accesstest"
	"github.com/platinummonkey/groundwork/pkg/apierr"
	"github.com/platinummonkey/groundwork/pkg/audit"
)

type memoryStore struct {
	mu     sync.Mutex
	events map[int64]*Event
	nextID int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{events: map[int64]*Event{}}
}

func (m *memoryStore) List(_ context.Context, projectID int64, filter Filter) ([]*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	out := []*Event{}
	for _, e := range m.events {
		if e.ProjectID != projectID {
			continue
		}
		if filter.Upcoming && (e.Completed() || e.ScheduledAt.Before(now)) {
			continue
		}
		c := *e
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *memoryStore) Create(_ context.Context, e *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	e.ID = m.nextID
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	c := *e
	m.events[e.ID] = &c
	return nil
}

func (m *memoryStore) Update(_ context.Context, e *Event) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.events[e.ID]
	if !ok || cur.ProjectID != e.ProjectID {
		return nil, nil
	}
	cur.Title, cur.Kind, cur.ScheduledAt, cur.Notes = e.Title, e.Kind, e.ScheduledAt, e.Notes
	c := *cur
	return &c, nil
}

func (m *memoryStore) Complete(_ context.Context, projectID, id int64) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.events[id]
	if !ok || cur.ProjectID != projectID {
		return nil, nil
	}
	if cur.CompletedAt == nil {
		now := time.Now()
		cur.CompletedAt = &now
	}
	c := *cur
	return &c, nil
}

func (m *memoryStore) Delete(_ context.Context, projectID, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.events[id]
	if !ok || cur.ProjectID != projectID {
		return false, nil
	}
	delete(m.events, id)
	return true, nil
}

func TestService_Lifecycle(t *testing.T) {
	f := accesstest.NewFixture()
	svc := NewService(newMemoryStore(), f.Verifier, f.Trail)
	ctx := context.Background()
	pid := f.Project.ID
	next := time.Now().Add(72 * time.Hour)

	e, err := svc.Add(ctx, f.Writer, pid, Input{Title: " Framing inspection ", Kind: KindInspection, ScheduledAt: next})
	require.NoError(t, err)
	assert.Equal(t, "Framing inspection", e.Title)
	assert.False(t, e.Completed())

	updated, err := svc.Update(ctx, f.Owner, pid, e.ID, Input{Title: "Framing inspection", Kind: KindInspection,
		ScheduledAt: next.Add(time.Hour), Notes: "bring permit"})
	require.NoError(t, err)
	assert.Equal(t, "bring permit", updated.Notes)

	done, err := svc.Complete(ctx, f.Writer, pid, e.ID)
	require.NoError(t, err)
	require.NotNil(t, done.CompletedAt)
	again, err := svc.Complete(ctx, f.Writer, pid, e.ID)
	require.NoError(t, err)
	assert.Equal(t, *done.CompletedAt, *again.CompletedAt, "first completion time is kept")

	require.NoError(t, svc.Delete(ctx, f.Writer, pid, e.ID))
	assert.Equal(t, apierr.CodeNotFound, apierr.CodeOf(svc.Delete(ctx, f.Writer, pid, e.ID)))
	_, err = svc.Complete(ctx, f.Writer, pid, e.ID)
	assert.Equal(t, apierr.CodeNotFound, apierr.CodeOf(err))

	assert.Equal(t, []audit.Action{
		audit.ActionEventCreate, audit.ActionEventUpdate, audit.ActionEventComplete,
		audit.ActionEventComplete, audit.ActionEventDelete,
	}, f.Trail.Mutations())
}

func TestService_ListUpcoming(t *testing.T) {
	f := accesstest.NewFixture()
	svc := NewService(newMemoryStore(), f.Verifier, f.Trail)
	ctx := context.Background()
	pid := f.Project.ID
	now := time.Now()

	_, err := svc.Add(ctx, f.Owner, pid, Input{Title: "Kickoff", Kind: KindMeeting, ScheduledAt: now.Add(-48 * time.Hour)})
	require.NoError(t, err)
	topOut, err := svc.Add(ctx, f.Owner, pid, Input{Title: "Top out", Kind: KindMilestone, ScheduledAt: now.Add(30 * 24 * time.Hour)})
	require.NoError(t, err)
	permit, err := svc.Add(ctx, f.Owner, pid, Input{Title: "Permit filing", Kind: KindDeadline, ScheduledAt: now.Add(24 * time.Hour)})
	require.NoError(t, err)

	all, err := svc.List(ctx, f.Reader, pid, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	upcoming, err := svc.List(ctx, f.Reader, pid, Filter{Upcoming: true})
	require.NoError(t, err)
	require.Len(t, upcoming, 2)
	assert.Equal(t, permit.ID, upcoming[0].ID)
	assert.Equal(t, topOut.ID, upcoming[1].ID)
}

func TestService_AccessCheckedBeforeInput(t *testing.T) {
	f := accesstest.NewFixture()
	svc := NewService(newMemoryStore(), f.Verifier, f.Trail)
	ctx := context.Background()
	bad := Input{Kind: "party"}

	_, err := svc.Add(ctx, nil, f.Project.ID, bad)
	assert.Equal(t, apierr.CodeUnauthorized, apierr.CodeOf(err))

	_, err = svc.Update(ctx, f.Outsider, f.Project.ID, 1, bad)
	assert.Equal(t, apierr.CodeForbidden, apierr.CodeOf(err))
	assert.Empty(t, apierr.From(err).Fields)
}

func TestService_Rejects(t *testing.T) {
	f := accesstest.NewFixture()
	svc := NewService(newMemoryStore(), f.Verifier, f.Trail)
	ctx := context.Background()
	pid := f.Project.ID
	valid := Input{Title: "Pour", Kind: KindMilestone, ScheduledAt: time.Now()}

	_, err := svc.Add(ctx, f.Reader, pid, valid)
	assert.Equal(t, apierr.CodeForbidden, apierr.CodeOf(err))

	_, err = svc.Add(ctx, f.Writer, pid, Input{Title: "Pour", Kind: "party", ScheduledAt: time.Now()})
	assert.Equal(t, apierr.CodeBadRequest, apierr.CodeOf(err))

	_, err = svc.Add(ctx, f.Writer, pid, Input{Title: "Pour", Kind: KindMilestone})
	assert.Equal(t, apierr.CodeBadRequest, apierr.CodeOf(err), "scheduled_at is required")

	_, err = svc.List(ctx, f.Outsider, pid, Filter{})
	assert.Equal(t, apierr.CodeForbidden, apierr.CodeOf(err))

	_, err = svc.Update(ctx, f.Writer, pid, 42, valid)
	assert.Equal(t, apierr.CodeNotFound, apierr.CodeOf(err))

	assert.Empty(t, f.Trail.Mutations())
}
