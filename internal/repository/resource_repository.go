package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"comfygate/internal/models"
)

var ErrResourceNotFound = errors.New("resource not found")

type ResourceRepository struct {
	pool *pgxpool.Pool
}

func NewResourceRepository(pool *pgxpool.Pool) *ResourceRepository {
	return &ResourceRepository{pool: pool}
}

func (r *ResourceRepository) Create(ctx context.Context, resource models.Resource) error {
	const query = `
		INSERT INTO resources (
			id, owner_user_id, display_filename, storage_name, size_bytes, mime_type, kind,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
	`

	_, err := r.pool.Exec(ctx, query,
		resource.ID,
		resource.OwnerUserID,
		resource.DisplayFilename,
		resource.StorageName,
		resource.SizeBytes,
		resource.MimeType,
		resource.Kind,
		resource.CreatedAt,
		resource.UpdatedAt,
	)
	return err
}

func (r *ResourceRepository) GetByID(ctx context.Context, id string) (models.Resource, error) {
	const query = `
		SELECT id, owner_user_id, display_filename, storage_name, size_bytes, mime_type, kind,
		       created_at, updated_at
		FROM resources WHERE id = $1
	`

	row := r.pool.QueryRow(ctx, query, id)
	resource, err := scanResource(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Resource{}, ErrResourceNotFound
		}
		return models.Resource{}, err
	}
	return resource, nil
}

// UpdateFile swaps the row over to freshly written bytes. The caller has
// already stored the new object; the old storage name is returned through
// the previously fetched row.
func (r *ResourceRepository) UpdateFile(ctx context.Context, id, storageName, displayFilename string, sizeBytes int64, mimeType string) (models.Resource, error) {
	const query = `
		UPDATE resources
		SET storage_name = $2,
		    display_filename = $3,
		    size_bytes = $4,
		    mime_type = $5,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING id, owner_user_id, display_filename, storage_name, size_bytes, mime_type, kind,
		          created_at, updated_at
	`

	row := r.pool.QueryRow(ctx, query, id, storageName, displayFilename, sizeBytes, mimeType)
	resource, err := scanResource(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Resource{}, ErrResourceNotFound
		}
		return models.Resource{}, err
	}
	return resource, nil
}

func (r *ResourceRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM resources WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}

// ListByOwner returns the owner's resources newest first. An empty kind
// means all kinds.
func (r *ResourceRepository) ListByOwner(ctx context.Context, ownerUserID string, kind models.ResourceKind) ([]models.Resource, error) {
	const query = `
		SELECT id, owner_user_id, display_filename, storage_name, size_bytes, mime_type, kind,
		       created_at, updated_at
		FROM resources
		WHERE owner_user_id = $1 AND ($2 = '' OR kind = $2)
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, ownerUserID, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var resources []models.Resource
	for rows.Next() {
		resource, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		resources = append(resources, resource)
	}
	return resources, rows.Err()
}

// ExistsByStorageName reports whether any row points at the given object key.
// Used by the orphan sweep.
func (r *ResourceRepository) ExistsByStorageName(ctx context.Context, storageName string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM resources WHERE storage_name = $1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, storageName).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func scanResource(row pgx.Row) (models.Resource, error) {
	var resource models.Resource
	err := row.Scan(
		&resource.ID,
		&resource.OwnerUserID,
		&resource.DisplayFilename,
		&resource.StorageName,
		&resource.SizeBytes,
		&resource.MimeType,
		&resource.Kind,
		&resource.CreatedAt,
		&resource.UpdatedAt,
	)
	return resource, err
}
