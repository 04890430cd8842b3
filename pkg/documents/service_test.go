package documents

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/groundwork/pkg/access/accesstest"
	"github.com/platinummonkey/groundwork/pkg/apierr"
	"github.com/platinummonkey/groundwork/pkg/audit"
	"github.com/platinummonkey/groundwork/pkg/blob"
)

type memoryStore struct {
	mu        sync.Mutex
	docs      []*Document
	failWrite bool
}

func (m *memoryStore) List(_ context.Context, projectID int64) ([]*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*Document{}
	for _, d := range m.docs {
		if d.ProjectID == projectID && d.DeletedAt == nil {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memoryStore) Get(_ context.Context, projectID, id int64) (*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.docs {
		if d.ID == id && d.ProjectID == projectID && d.DeletedAt == nil {
			return d, nil
		}
	}
	return nil, nil
}

func (m *memoryStore) Create(_ context.Context, d *Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite {
		return errors.New("connection refused")
	}
	d.ID = int64(len(m.docs) + 1)
	d.CreatedAt = time.Now()
	m.docs = append(m.docs, d)
	return nil
}

func (m *memoryStore) SoftDelete(ctx context.Context, projectID, id int64) (*Document, error) {
	d, _ := m.Get(ctx, projectID, id)
	if d == nil {
		return nil, nil
	}
	now := time.Now()
	d.DeletedAt = &now
	return d, nil
}

func newTestService(t *testing.T) (*Service, *memoryStore, blob.Store, *accesstest.Fixture) {
	t.Helper()
	blobs, err := blob.NewFileSystemStore(t.TempDir())
	require.NoError(t, err)
	f := accesstest.NewFixture()
	store := &memoryStore{}
	return NewService(store, blobs, f.Verifier, f.Trail), store, blobs, f
}

func TestService_UploadOpenDelete(t *testing.T) {
	svc, _, blobs, f := newTestService(t)
	ctx := context.Background()
	pid := f.Project.ID

	doc, err := svc.Upload(ctx, f.Writer, pid, Upload{
		Name:    "plans/Site Plan.PDF",
		Content: strings.NewReader("%PDF-1.4 site plan"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Site Plan.PDF", doc.Name)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.Equal(t, int64(18), doc.SizeBytes)
	assert.Regexp(t, `^documents/10/[0-9a-f-]{36}\.pdf$`, doc.BlobKey)

	list, err := svc.List(ctx, f.Reader, pid)
	require.NoError(t, err)
	require.Len(t, list, 1)

	got, rc, err := svc.Open(ctx, f.Reader, pid, doc.ID)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "%PDF-1.4 site plan", string(data))
	assert.Equal(t, doc.ID, got.ID)

	require.NoError(t, svc.Delete(ctx, f.Owner, pid, doc.ID))
	_, err = blobs.Get(ctx, doc.BlobKey)
	assert.ErrorIs(t, err, blob.ErrNotFound, "content removed with the document")

	_, _, err = svc.Open(ctx, f.Reader, pid, doc.ID)
	assert.Equal(t, apierr.CodeNotFound, apierr.CodeOf(err))
	assert.Equal(t, apierr.CodeNotFound, apierr.CodeOf(svc.Delete(ctx, f.Owner, pid, doc.ID)))

	assert.Equal(t, []audit.Action{audit.ActionDocumentUpload, audit.ActionDocumentDelete}, f.Trail.Mutations())
}

func TestService_UploadRejects(t *testing.T) {
	svc, store, _, f := newTestService(t)
	ctx := context.Background()
	pid := f.Project.ID

	_, err := svc.Upload(ctx, f.Reader, pid, Upload{Name: "a.txt", Content: strings.NewReader("x")})
	assert.Equal(t, apierr.CodeForbidden, apierr.CodeOf(err), "read access cannot upload")

	_, err = svc.Upload(ctx, f.Writer, pid, Upload{Name: "  ", Content: strings.NewReader("x")})
	assert.Equal(t, apierr.CodeBadRequest, apierr.CodeOf(err))

	_, err = svc.Upload(ctx, f.Writer, pid, Upload{Name: "a.txt"})
	assert.Equal(t, apierr.CodeBadRequest, apierr.CodeOf(err))

	big := bytes.NewReader(make([]byte, MaxUploadBytes+1))
	_, err = svc.Upload(ctx, f.Writer, pid, Upload{Name: "big.bin", Content: big})
	assert.Equal(t, apierr.CodeBadRequest, apierr.CodeOf(err))

	assert.Empty(t, store.docs)
	assert.Empty(t, f.Trail.Mutations())
}

func TestService_UploadChecksAccessFirst(t *testing.T) {
	svc, store, _, f := newTestService(t)
	ctx := context.Background()

	_, err := svc.Upload(ctx, nil, f.Project.ID, Upload{Name: " "})
	assert.Equal(t, apierr.CodeUnauthorized, apierr.CodeOf(err))

	_, err = svc.Upload(ctx, f.Outsider, f.Project.ID, Upload{Name: " "})
	assert.Equal(t, apierr.CodeForbidden, apierr.CodeOf(err))
	assert.Empty(t, apierr.From(err).Fields)

	assert.Empty(t, store.docs)
	assert.Len(t, f.Trail.Entries(), 2)
}

func TestService_UploadCleansUpOnStoreFailure(t *testing.T) {
	dir := t.TempDir()
	blobs, err := blob.NewFileSystemStore(dir)
	require.NoError(t, err)
	f := accesstest.NewFixture()
	svc := NewService(&memoryStore{failWrite: true}, blobs, f.Verifier, f.Trail)

	_, err = svc.Upload(context.Background(), f.Owner, f.Project.ID, Upload{
		Name: "notes.txt", ContentType: "text/plain", Content: strings.NewReader("hello"),
	})
	assert.Equal(t, apierr.CodeInternal, apierr.CodeOf(err))

	var files []string
	require.NoError(t, filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			files = append(files, path)
		}
		return err
	}))
	assert.Empty(t, files, "orphaned content removed")
	assert.Empty(t, f.Trail.Mutations())
}

func TestService_OpenMissingContent(t *testing.T) {
	svc, store, _, f := newTestService(t)
	require.NoError(t, store.Create(context.Background(), &Document{
		ProjectID: f.Project.ID, Name: "gone.txt", BlobKey: "documents/10/gone.txt",
	}))

	_, _, err := svc.Open(context.Background(), f.Reader, f.Project.ID, 1)
	assert.Equal(t, apierr.CodeNotFound, apierr.CodeOf(err))
}

func TestService_OutsiderDenied(t *testing.T) {
	svc, _, _, f := newTestService(t)
	_, err := svc.List(context.Background(), f.Outsider, f.Project.ID)
	assert.Equal(t, apierr.CodeForbidden, apierr.CodeOf(err))
}
