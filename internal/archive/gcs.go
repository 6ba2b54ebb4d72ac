package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"

	"ocrarchive/internal/gcloud"
	"ocrarchive/internal/logger"
)

// GCSRepository archives into a Cloud Storage bucket. A folder is an empty
// marker object "<prefix><name>/"; entries are stored beneath it.
type GCSRepository struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
	prefix string
	log    zerolog.Logger
}

// NewGCSRepository creates a Storage client from the environment credentials.
func NewGCSRepository(ctx context.Context, bucket, prefix string) (*GCSRepository, error) {
	const op = "NewGCSRepository"

	if bucket == "" {
		return nil, wrapError("gcs", op, ErrMissingBucket, "")
	}

	opts, err := gcloud.ClientOptions()
	if err != nil {
		return nil, wrapError("gcs", op, err, "failed to load credentials")
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, wrapError("gcs", op, err, "failed to create storage client")
	}

	return NewGCSRepositoryWithClient(client, bucket, prefix), nil
}

// NewGCSRepositoryWithClient creates the repository with an explicit client (for testing).
func NewGCSRepositoryWithClient(client *storage.Client, bucket, prefix string) *GCSRepository {
	return &GCSRepository{
		client: client,
		bucket: client.Bucket(bucket),
		name:   bucket,
		prefix: normalizePrefix(prefix),
		log:    logger.WithComponent("archive-gcs"),
	}
}

// FindFolders reports the marker object for name, if present. Cloud Storage
// has no trash, so at most one folder matches.
func (g *GCSRepository) FindFolders(ctx context.Context, name string) ([]Folder, error) {
	const op = "FindFolders"

	marker := g.markerName(name)
	_, err := g.bucket.Object(marker).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapError("gcs", op, err, fmt.Sprintf("gs://%s/%s", g.name, marker))
	}
	return []Folder{{ID: marker, Name: name}}, nil
}

// CreateFolder writes the marker object. If another session created it
// first, the existing marker is used.
func (g *GCSRepository) CreateFolder(ctx context.Context, name string) (*Folder, error) {
	const op = "CreateFolder"

	marker := g.markerName(name)
	w := g.bucket.Object(marker).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = "application/x-directory"
	err := w.Close()
	switch {
	case isPreconditionFailed(err):
		g.log.Warn().Str("folder", name).Msg("Archive folder created concurrently, reusing it")
	case err != nil:
		return nil, wrapError("gcs", op, err, fmt.Sprintf("gs://%s/%s", g.name, marker))
	default:
		g.log.Info().Str("folder", name).Str("folder_id", marker).Msg("Created archive folder")
	}

	return &Folder{ID: marker, Name: name}, nil
}

// Upload copies localPath to "<folderID><name>". When that object already
// exists the entry is stored as "<folderID><uuid>/<name>" instead, so earlier
// submissions are never overwritten.
func (g *GCSRepository) Upload(ctx context.Context, folderID, name, localPath string) (*Entry, error) {
	const op = "Upload"

	objectName := folderID + name
	entry, err := g.put(ctx, objectName, localPath)
	if isPreconditionFailed(err) {
		objectName = folderID + uuid.NewString() + "/" + name
		g.log.Debug().Str("file", name).Str("object", objectName).Msg("Entry exists, storing under unique prefix")
		entry, err = g.put(ctx, objectName, localPath)
	}
	if err != nil {
		return nil, wrapError("gcs", op, err, fmt.Sprintf("gs://%s/%s", g.name, objectName))
	}

	entry.Name = name
	entry.FolderID = folderID

	g.log.Debug().
		Str("file", name).
		Str("object", objectName).
		Int64("size", entry.Size).
		Msg("Uploaded archive entry")

	return entry, nil
}

func (g *GCSRepository) put(ctx context.Context, objectName, localPath string) (*Entry, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	contentType, err := sniffContentType(file)
	if err != nil {
		return nil, err
	}

	w := g.bucket.Object(objectName).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = contentType

	size, err := io.Copy(w, file)
	if err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	return &Entry{ID: objectName, Size: size}, nil
}

// Close closes the storage client.
func (g *GCSRepository) Close() error {
	return g.client.Close()
}

func (g *GCSRepository) markerName(folder string) string {
	return g.prefix + folder + "/"
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return path.Clean(prefix) + "/"
}

func isPreconditionFailed(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed
}
