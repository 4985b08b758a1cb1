package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"comfygate/internal/apperr"
	"comfygate/internal/models"
	"comfygate/internal/repository"
)

type memRepo struct {
	rows map[string]models.Resource

	createErr error
	updateErr error
	deleteErr error
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[string]models.Resource)}
}

func (r *memRepo) Create(_ context.Context, resource models.Resource) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.rows[resource.ID] = resource
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id string) (models.Resource, error) {
	row, ok := r.rows[id]
	if !ok {
		return models.Resource{}, repository.ErrResourceNotFound
	}
	return row, nil
}

func (r *memRepo) UpdateFile(_ context.Context, id, storageName, displayFilename string, sizeBytes int64, mimeType string) (models.Resource, error) {
	if r.updateErr != nil {
		return models.Resource{}, r.updateErr
	}
	row, ok := r.rows[id]
	if !ok {
		return models.Resource{}, repository.ErrResourceNotFound
	}
	row.StorageName = storageName
	row.DisplayFilename = displayFilename
	row.SizeBytes = sizeBytes
	row.MimeType = mimeType
	r.rows[id] = row
	return row, nil
}

func (r *memRepo) Delete(_ context.Context, id string) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	delete(r.rows, id)
	return nil
}

func (r *memRepo) ListByOwner(_ context.Context, ownerUserID string, kind models.ResourceKind) ([]models.Resource, error) {
	var out []models.Resource
	for _, row := range r.rows {
		if row.OwnerUserID != ownerUserID {
			continue
		}
		if kind != "" && row.Kind != kind {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

type memStore struct {
	objects map[string][]byte

	putErr    error
	removeErr error
	removed   []string
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (s *memStore) Put(_ context.Context, key string, data []byte, _ string) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.objects[key] = data
	return nil
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	data, ok := s.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func (s *memStore) Remove(_ context.Context, key string) error {
	s.removed = append(s.removed, key)
	if s.removeErr != nil {
		return s.removeErr
	}
	delete(s.objects, key)
	return nil
}

func newTestResourceService(repo *memRepo, store *memStore) *ResourceService {
	return NewResourceService(repo, store, zerolog.Nop())
}

func TestResourceCreateAndRead(t *testing.T) {
	repo := newMemRepo()
	store := newMemStore()
	svc := newTestResourceService(repo, store)

	created, err := svc.Create(context.Background(), "user-1", []byte("bytes"), "photo.png", "image/png", models.ResourceKindUploaded)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "user-1", created.OwnerUserID)
	assert.Equal(t, "photo.png", created.DisplayFilename)
	assert.NotEqual(t, "photo.png", created.StorageName)
	assert.Equal(t, int64(5), created.SizeBytes)

	row, data, err := svc.Read(context.Background(), created.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, row.ID)
	assert.Equal(t, []byte("bytes"), data)

	// The timestamps handed back on create are the persisted ones, so a
	// later read reports the same values.
	assert.False(t, created.CreatedAt.IsZero())
	assert.True(t, row.CreatedAt.Equal(created.CreatedAt))
	assert.True(t, row.UpdatedAt.Equal(created.UpdatedAt))
}

func TestResourceCreateEmptyDataRejected(t *testing.T) {
	svc := newTestResourceService(newMemRepo(), newMemStore())

	_, err := svc.Create(context.Background(), "user-1", nil, "photo.png", "image/png", models.ResourceKindUploaded)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestResourceCreateInsertFailureLeavesBytesForSweep(t *testing.T) {
	repo := newMemRepo()
	repo.createErr = errors.New("connection reset")
	store := newMemStore()
	svc := newTestResourceService(repo, store)

	_, err := svc.Create(context.Background(), "user-1", []byte("bytes"), "photo.png", "image/png", models.ResourceKindUploaded)
	require.Error(t, err)
	assert.Equal(t, apperr.KindStorage, apperr.KindOf(err))

	// The written object is intentionally not rolled back here.
	assert.Len(t, store.objects, 1)
	assert.Empty(t, store.removed)
}

func TestResourceReadNotFound(t *testing.T) {
	svc := newTestResourceService(newMemRepo(), newMemStore())

	_, _, err := svc.Read(context.Background(), "missing", "user-1")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestResourceReadDeniedForNonOwner(t *testing.T) {
	repo := newMemRepo()
	store := newMemStore()
	svc := newTestResourceService(repo, store)

	created, err := svc.Create(context.Background(), "owner", []byte("bytes"), "photo.png", "image/png", models.ResourceKindUploaded)
	require.NoError(t, err)

	_, _, err = svc.Read(context.Background(), created.ID, "intruder")
	require.Error(t, err)
	assert.Equal(t, apperr.KindOwnership, apperr.KindOf(err))
}

func TestResourceUpdateSwapsBytesAndRemovesOld(t *testing.T) {
	repo := newMemRepo()
	store := newMemStore()
	svc := newTestResourceService(repo, store)

	created, err := svc.Create(context.Background(), "user-1", []byte("old"), "v1.png", "image/png", models.ResourceKindUploaded)
	require.NoError(t, err)
	oldStorageName := created.StorageName

	updated, err := svc.Update(context.Background(), created.ID, "user-1", []byte("newer"), "v2.png", "image/png")
	require.NoError(t, err)
	assert.Equal(t, "v2.png", updated.DisplayFilename)
	assert.NotEqual(t, oldStorageName, updated.StorageName)
	assert.Equal(t, int64(5), updated.SizeBytes)

	_, hasOld := store.objects[oldStorageName]
	assert.False(t, hasOld)
	data, err := store.Get(context.Background(), updated.StorageName)
	require.NoError(t, err)
	assert.Equal(t, []byte("newer"), data)
}

func TestResourceUpdateMetadataFailureRollsBackNewBytes(t *testing.T) {
	repo := newMemRepo()
	store := newMemStore()
	svc := newTestResourceService(repo, store)

	created, err := svc.Create(context.Background(), "user-1", []byte("old"), "v1.png", "image/png", models.ResourceKindUploaded)
	require.NoError(t, err)

	repo.updateErr = errors.New("deadlock detected")

	_, err = svc.Update(context.Background(), created.ID, "user-1", []byte("newer"), "v2.png", "image/png")
	require.Error(t, err)
	assert.Equal(t, apperr.KindStorage, apperr.KindOf(err))

	// The original pair must be intact and the new bytes gone.
	row, data, err := svc.Read(context.Background(), created.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, created.StorageName, row.StorageName)
	assert.Equal(t, []byte("old"), data)
	assert.Len(t, store.objects, 1)
	require.Len(t, store.removed, 1)
	assert.NotEqual(t, created.StorageName, store.removed[0])
}

func TestResourceDeleteRemovesRowEvenWhenBytesLinger(t *testing.T) {
	repo := newMemRepo()
	store := newMemStore()
	svc := newTestResourceService(repo, store)

	created, err := svc.Create(context.Background(), "user-1", []byte("bytes"), "photo.png", "image/png", models.ResourceKindUploaded)
	require.NoError(t, err)

	store.removeErr = errors.New("storage unavailable")

	require.NoError(t, svc.Delete(context.Background(), created.ID, "user-1"))

	_, err = repo.GetByID(context.Background(), created.ID)
	assert.ErrorIs(t, err, repository.ErrResourceNotFound)
}

func TestResourceDeleteDeniedForNonOwner(t *testing.T) {
	repo := newMemRepo()
	store := newMemStore()
	svc := newTestResourceService(repo, store)

	created, err := svc.Create(context.Background(), "owner", []byte("bytes"), "photo.png", "image/png", models.ResourceKindUploaded)
	require.NoError(t, err)

	err = svc.Delete(context.Background(), created.ID, "intruder")
	require.Error(t, err)
	assert.Equal(t, apperr.KindOwnership, apperr.KindOf(err))

	// Nothing was touched.
	_, getErr := repo.GetByID(context.Background(), created.ID)
	assert.NoError(t, getErr)
	assert.Empty(t, store.removed)
}

func TestResourceListFiltersByKind(t *testing.T) {
	repo := newMemRepo()
	store := newMemStore()
	svc := newTestResourceService(repo, store)

	_, err := svc.Create(context.Background(), "user-1", []byte("a"), "up.png", "image/png", models.ResourceKindUploaded)
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), "user-1", []byte("b"), "gen.png", "image/png", models.ResourceKindGenerated)
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), "user-2", []byte("c"), "other.png", "image/png", models.ResourceKindUploaded)
	require.NoError(t, err)

	all, err := svc.List(context.Background(), "user-1", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	generated, err := svc.List(context.Background(), "user-1", models.ResourceKindGenerated)
	require.NoError(t, err)
	require.Len(t, generated, 1)
	assert.Equal(t, "gen.png", generated[0].DisplayFilename)
}
