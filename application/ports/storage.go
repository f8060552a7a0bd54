package ports

import "context"

// Object is one file to upload
type Object struct {
	Key         string
	Body        []byte
	ContentType string
}

// ObjectStore is the binary blob storage that lives outside the metadata
// transaction. Implementations must be safe for concurrent use.
type ObjectStore interface {
	// UploadFiles uploads every object or reports failure. Objects written
	// before a failure may remain; callers compensate with DeleteFiles.
	UploadFiles(ctx context.Context, bucket string, objects []Object) error

	// DeleteFiles deletes every listed key. Missing keys are not an error.
	DeleteFiles(ctx context.Context, bucket string, keys []string) error

	// DownloadURL returns a time-limited signed URL for reading key
	DownloadURL(ctx context.Context, bucket, key string) (string, error)
}
