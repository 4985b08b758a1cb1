package models

import "time"

type ResourceKind string

const (
	ResourceKindUploaded  ResourceKind = "uploaded"
	ResourceKindGenerated ResourceKind = "generated"
)

// Resource is one stored image: a metadata row plus a byte blob in the
// object store. DisplayFilename is what the user sees; StorageName is the
// opaque server-generated object key the bytes actually live under.
type Resource struct {
	ID              string
	OwnerUserID     string
	DisplayFilename string
	StorageName     string
	SizeBytes       int64
	MimeType        string
	Kind            ResourceKind
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
