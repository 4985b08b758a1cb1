package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/rs/zerolog"

	"comfygate/internal/apperr"
	"comfygate/internal/ids"
	"comfygate/internal/models"
	"comfygate/internal/repository"
)

// ResourceRepo is the metadata layer behind the resource store.
type ResourceRepo interface {
	Create(ctx context.Context, resource models.Resource) error
	GetByID(ctx context.Context, id string) (models.Resource, error)
	UpdateFile(ctx context.Context, id, storageName, displayFilename string, sizeBytes int64, mimeType string) (models.Resource, error)
	Delete(ctx context.Context, id string) error
	ListByOwner(ctx context.Context, ownerUserID string, kind models.ResourceKind) ([]models.Resource, error)
}

// ByteStore is the durable blob layer behind the resource store.
type ByteStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Remove(ctx context.Context, key string) error
}

// ResourceService owns the byte-blob/metadata-row pair for every image
// resource and enforces ownership on each operation, independent of the
// caller's role.
type ResourceService struct {
	repo  ResourceRepo
	store ByteStore
	log   zerolog.Logger
}

func NewResourceService(repo ResourceRepo, store ByteStore, log zerolog.Logger) *ResourceService {
	return &ResourceService{
		repo:  repo,
		store: store,
		log:   log,
	}
}

// Create writes the bytes under a freshly generated opaque storage name,
// then inserts the metadata row. The caller-supplied filename is kept for
// display only. If the insert fails after the bytes were written, the bytes
// are not rolled back; the scheduled orphan sweep reclaims them later.
func (s *ResourceService) Create(ctx context.Context, ownerUserID string, data []byte, displayFilename, mimeType string, kind models.ResourceKind) (models.Resource, error) {
	if len(data) == 0 {
		return models.Resource{}, apperr.New(apperr.KindValidation, "image data is empty")
	}

	storageName := s.buildStorageName(displayFilename)

	if err := s.store.Put(ctx, storageName, data, mimeType); err != nil {
		return models.Resource{}, apperr.Wrap(apperr.KindStorage, "write resource bytes", err)
	}

	resource := models.Resource{
		ID:              ids.New(),
		OwnerUserID:     ownerUserID,
		DisplayFilename: displayFilename,
		StorageName:     storageName,
		SizeBytes:       int64(len(data)),
		MimeType:        mimeType,
		Kind:            kind,
	}
	now := time.Now().UTC()
	resource.CreatedAt = now
	resource.UpdatedAt = now

	if err := s.repo.Create(ctx, resource); err != nil {
		s.log.Error().Err(err).
			Str("storage_name", storageName).
			Msg("metadata insert failed after byte write, object left for sweep")
		return models.Resource{}, apperr.Wrap(apperr.KindStorage, "insert resource metadata", err)
	}

	return resource, nil
}

// Read returns the resource row and its bytes, gated by ownership.
func (s *ResourceService) Read(ctx context.Context, resourceID, requestingUserID string) (models.Resource, []byte, error) {
	resource, err := s.getOwned(ctx, resourceID, requestingUserID)
	if err != nil {
		return models.Resource{}, nil, err
	}

	data, err := s.store.Get(ctx, resource.StorageName)
	if err != nil {
		return models.Resource{}, nil, apperr.Wrap(apperr.KindStorage, "read resource bytes", err)
	}

	return resource, data, nil
}

// Update writes the new bytes under a new storage name before touching the
// row. If the metadata swap fails the new bytes are deleted and the original
// row and bytes stay intact. If the swap succeeds the old bytes are removed
// best-effort; the row is already consistent, so a failure there is only
// logged.
func (s *ResourceService) Update(ctx context.Context, resourceID, requestingUserID string, data []byte, displayFilename, mimeType string) (models.Resource, error) {
	if len(data) == 0 {
		return models.Resource{}, apperr.New(apperr.KindValidation, "image data is empty")
	}

	resource, err := s.getOwned(ctx, resourceID, requestingUserID)
	if err != nil {
		return models.Resource{}, err
	}

	newStorageName := s.buildStorageName(displayFilename)
	if err := s.store.Put(ctx, newStorageName, data, mimeType); err != nil {
		return models.Resource{}, apperr.Wrap(apperr.KindStorage, "write new resource bytes", err)
	}

	updated, err := s.repo.UpdateFile(ctx, resourceID, newStorageName, displayFilename, int64(len(data)), mimeType)
	if err != nil {
		if removeErr := s.store.Remove(ctx, newStorageName); removeErr != nil {
			s.log.Warn().Err(removeErr).
				Str("storage_name", newStorageName).
				Msg("rollback of new resource bytes failed")
		}
		return models.Resource{}, apperr.Wrap(apperr.KindStorage, "update resource metadata", err)
	}

	if err := s.store.Remove(ctx, resource.StorageName); err != nil {
		s.log.Warn().Err(err).
			Str("resource_id", resourceID).
			Str("storage_name", resource.StorageName).
			Msg("old resource bytes not removed")
	}

	return updated, nil
}

// Delete removes the bytes best-effort, then the metadata row
// unconditionally.
func (s *ResourceService) Delete(ctx context.Context, resourceID, requestingUserID string) error {
	resource, err := s.getOwned(ctx, resourceID, requestingUserID)
	if err != nil {
		return err
	}

	if err := s.store.Remove(ctx, resource.StorageName); err != nil {
		s.log.Warn().Err(err).
			Str("resource_id", resourceID).
			Str("storage_name", resource.StorageName).
			Msg("resource bytes not removed, deleting row anyway")
	}

	if err := s.repo.Delete(ctx, resourceID); err != nil {
		return apperr.Wrap(apperr.KindStorage, "delete resource metadata", err)
	}

	return nil
}

// List returns the owner's resources newest first, optionally filtered by
// kind.
func (s *ResourceService) List(ctx context.Context, ownerUserID string, kind models.ResourceKind) ([]models.Resource, error) {
	resources, err := s.repo.ListByOwner(ctx, ownerUserID, kind)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, "list resources", err)
	}
	return resources, nil
}

func (s *ResourceService) getOwned(ctx context.Context, resourceID, requestingUserID string) (models.Resource, error) {
	resource, err := s.repo.GetByID(ctx, resourceID)
	if err != nil {
		if errors.Is(err, repository.ErrResourceNotFound) {
			return models.Resource{}, apperr.New(apperr.KindNotFound, "resource not found")
		}
		return models.Resource{}, apperr.Wrap(apperr.KindStorage, "load resource metadata", err)
	}

	if resource.OwnerUserID != requestingUserID {
		s.log.Warn().
			Str("resource_id", resourceID).
			Str("user_id", requestingUserID).
			Msg("resource access denied")
		return models.Resource{}, apperr.New(apperr.KindOwnership, "not the owner of this resource")
	}

	return resource, nil
}

func (s *ResourceService) buildStorageName(displayFilename string) string {
	datePrefix := time.Now().UTC().Format("2006/01/02")
	return path.Join(datePrefix, fmt.Sprintf("%s%s", ids.New(), path.Ext(displayFilename)))
}
