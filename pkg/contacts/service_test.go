package contacts

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/groundwork/pkg/access/accesstest"
	"github.com/platinummonkey/groundwork/pkg/apierr"
	"github.com/platinummonkey/groundwork/pkg/audit"
)

type memoryStore struct {
	mu       sync.Mutex
	contacts map[int64]*Contact
	ratings  []*Rating
	nextID   int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{contacts: map[int64]*Contact{}}
}

func (m *memoryStore) summarize(c *Contact) *Contact {
	out := *c
	var sum, n int
	for _, r := range m.ratings {
		if r.ContactID == c.ID {
			sum += r.Score
			n++
		}
	}
	out.RatingCount = n
	if n > 0 {
		avg := float64(sum) / float64(n)
		out.AverageRating = &avg
	}
	return &out
}

func (m *memoryStore) List(_ context.Context, projectID int64) ([]*Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Contact
	for id := int64(1); id <= m.nextID; id++ {
		if c, ok := m.contacts[id]; ok && c.ProjectID == projectID {
			out = append(out, m.summarize(c))
		}
	}
	return out, nil
}

func (m *memoryStore) Get(_ context.Context, projectID, id int64) (*Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contacts[id]
	if !ok || c.ProjectID != projectID {
		return nil, nil
	}
	return m.summarize(c), nil
}

func (m *memoryStore) Create(_ context.Context, c *Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	c.ID = m.nextID
	c.CreatedAt = time.Now()
	stored := *c
	m.contacts[c.ID] = &stored
	return nil
}

func (m *memoryStore) Update(_ context.Context, c *Contact) (*Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.contacts[c.ID]
	if !ok || cur.ProjectID != c.ProjectID {
		return nil, nil
	}
	c.CreatedBy = cur.CreatedBy
	stored := *c
	m.contacts[c.ID] = &stored
	return m.summarize(&stored), nil
}

func (m *memoryStore) Delete(_ context.Context, projectID, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contacts[id]
	if !ok || c.ProjectID != projectID {
		return false, nil
	}
	delete(m.contacts, id)
	return true, nil
}

func (m *memoryStore) CreateRating(_ context.Context, r *Rating) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.ratings {
		if existing.ContactID == r.ContactID && existing.UserID == r.UserID {
			return fmt.Errorf("failed to create rating: %w", &pq.Error{Code: "23505"})
		}
	}
	m.nextID++
	r.ID = m.nextID
	m.ratings = append(m.ratings, r)
	return nil
}

func TestService_AddUpdateDelete(t *testing.T) {
	f := accesstest.NewFixture()
	svc := NewService(newMemoryStore(), f.Verifier, f.Trail)
	ctx := context.Background()
	pid := f.Project.ID

	c, err := svc.Add(ctx, f.Writer, pid, Input{Name: " Pat Surveyor ", Company: "Lines LLC", Email: "Pat@Example.com"})
	require.NoError(t, err)
	assert.Equal(t, "Pat Surveyor", c.Name)
	assert.Equal(t, "pat@example.com", c.Email)

	_, err = svc.Add(ctx, f.Reader, pid, Input{Name: "Nope"})
	assert.Equal(t, apierr.CodeForbidden, apierr.CodeOf(err))

	updated, err := svc.Update(ctx, f.Owner, pid, c.ID, Input{Name: "Pat Surveyor", Role: "surveyor"})
	require.NoError(t, err)
	assert.Equal(t, "surveyor", updated.Role)
	assert.Equal(t, f.Writer.ID, updated.CreatedBy)

	_, err = svc.Update(ctx, f.Owner, pid+1, c.ID, Input{Name: "x"})
	assert.Equal(t, apierr.CodeForbidden, apierr.CodeOf(err), "no access to the other project")

	require.NoError(t, svc.Delete(ctx, f.Owner, pid, c.ID))
	assert.Equal(t, apierr.CodeNotFound, apierr.CodeOf(svc.Delete(ctx, f.Owner, pid, c.ID)))

	assert.Equal(t, []audit.Action{audit.ActionContactCreate, audit.ActionContactUpdate, audit.ActionContactDelete}, f.Trail.Mutations())
}

func TestService_Rate(t *testing.T) {
	f := accesstest.NewFixture()
	svc := NewService(newMemoryStore(), f.Verifier, f.Trail)
	ctx := context.Background()
	pid := f.Project.ID

	c, err := svc.Add(ctx, f.Owner, pid, Input{Name: "Gale General Contractor"})
	require.NoError(t, err)

	_, err = svc.Rate(ctx, f.Reader, pid, c.ID, RatingInput{Score: 4, Comment: "on time"})
	require.NoError(t, err, "read access is enough to rate")
	_, err = svc.Rate(ctx, f.Owner, pid, c.ID, RatingInput{Score: 5})
	require.NoError(t, err)

	_, err = svc.Rate(ctx, f.Reader, pid, c.ID, RatingInput{Score: 1})
	assert.Equal(t, apierr.CodeConflict, apierr.CodeOf(err))
	assert.Equal(t, MsgAlreadyRated, apierr.From(err).Message)

	_, err = svc.Rate(ctx, f.Writer, pid, c.ID, RatingInput{Score: 6})
	assert.Equal(t, apierr.CodeBadRequest, apierr.CodeOf(err))

	_, err = svc.Rate(ctx, f.Writer, pid, 999, RatingInput{Score: 3})
	assert.Equal(t, apierr.CodeNotFound, apierr.CodeOf(err))

	_, err = svc.Rate(ctx, f.Outsider, pid, c.ID, RatingInput{Score: 3})
	assert.Equal(t, apierr.CodeForbidden, apierr.CodeOf(err))

	list, err := svc.List(ctx, f.Reader, pid)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].AverageRating)
	assert.InDelta(t, 4.5, *list[0].AverageRating, 0.001)
	assert.Equal(t, 2, list[0].RatingCount)
}

func TestService_AccessCheckedBeforeInput(t *testing.T) {
	f := accesstest.NewFixture()
	svc := NewService(newMemoryStore(), f.Verifier, f.Trail)
	ctx := context.Background()
	pid := f.Project.ID

	_, err := svc.Rate(ctx, nil, pid, 1, RatingInput{Score: 9})
	assert.Equal(t, apierr.CodeUnauthorized, apierr.CodeOf(err))

	_, err = svc.Rate(ctx, f.Outsider, pid, 1, RatingInput{Score: 9})
	assert.Equal(t, apierr.CodeForbidden, apierr.CodeOf(err))
	assert.Empty(t, apierr.From(err).Fields)

	_, err = svc.Add(ctx, f.Reader, pid, Input{Name: " "})
	assert.Equal(t, apierr.CodeForbidden, apierr.CodeOf(err))

	_, err = svc.Update(ctx, nil, pid, 1, Input{})
	assert.Equal(t, apierr.CodeUnauthorized, apierr.CodeOf(err))

	assert.Len(t, f.Trail.Entries(), 4, "every refusal is an audited access decision")
	assert.Empty(t, f.Trail.Mutations())
}
