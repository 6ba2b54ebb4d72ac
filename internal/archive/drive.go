package archive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"ocrarchive/internal/gcloud"
	"ocrarchive/internal/logger"
)

// FolderMimeType marks a Drive file as a folder.
const FolderMimeType = "application/vnd.google-apps.folder"

// DriveRepository archives into Google Drive folders below a parent folder.
type DriveRepository struct {
	service  *drive.Service
	parentID string
	log      zerolog.Logger
}

// NewDriveRepository creates a Drive client from the environment credentials.
func NewDriveRepository(ctx context.Context, parentID string) (*DriveRepository, error) {
	const op = "NewDriveRepository"

	if parentID == "" {
		return nil, wrapError("drive", op, ErrMissingParent, "")
	}

	client, err := gcloud.HTTPClient(ctx, drive.DriveScope)
	if err != nil {
		return nil, wrapError("drive", op, err, "failed to authorize")
	}

	service, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, wrapError("drive", op, err, "failed to create drive service")
	}

	return NewDriveRepositoryWithService(service, parentID), nil
}

// NewDriveRepositoryWithService creates the repository with an explicit service (for testing).
func NewDriveRepositoryWithService(service *drive.Service, parentID string) *DriveRepository {
	return &DriveRepository{
		service:  service,
		parentID: parentID,
		log:      logger.WithComponent("archive-drive"),
	}
}

// FindFolders lists non-trashed folders called name directly under the parent.
func (d *DriveRepository) FindFolders(ctx context.Context, name string) ([]Folder, error) {
	const op = "FindFolders"

	resp, err := d.service.Files.List().
		Q(folderQuery(name, d.parentID)).
		Fields("files(id, name)").
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, wrapError("drive", op, err, fmt.Sprintf("folder %q", name))
	}

	folders := make([]Folder, 0, len(resp.Files))
	for _, f := range resp.Files {
		folders = append(folders, Folder{ID: f.Id, Name: f.Name})
	}

	d.log.Debug().
		Str("folder", name).
		Int("matches", len(folders)).
		Msg("Searched archive folders")

	return folders, nil
}

// CreateFolder creates a folder under the parent.
func (d *DriveRepository) CreateFolder(ctx context.Context, name string) (*Folder, error) {
	const op = "CreateFolder"

	created, err := d.service.Files.Create(&drive.File{
		Name:     name,
		MimeType: FolderMimeType,
		Parents:  []string{d.parentID},
	}).
		Fields("id, name").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, wrapError("drive", op, err, fmt.Sprintf("folder %q", name))
	}

	d.log.Info().
		Str("folder", name).
		Str("folder_id", created.Id).
		Msg("Created archive folder")

	return &Folder{ID: created.Id, Name: created.Name}, nil
}

// Upload sends localPath as a new file in folderID. The file handle is closed
// before Upload returns.
func (d *DriveRepository) Upload(ctx context.Context, folderID, name, localPath string) (*Entry, error) {
	const op = "Upload"

	file, err := os.Open(localPath)
	if err != nil {
		return nil, wrapError("drive", op, err, "failed to open staged file")
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, wrapError("drive", op, err, "failed to stat staged file")
	}

	contentType, err := sniffContentType(file)
	if err != nil {
		return nil, wrapError("drive", op, err, "failed to read staged file")
	}

	created, err := d.service.Files.Create(&drive.File{
		Name:    name,
		Parents: []string{folderID},
	}).
		Media(file, googleapi.ContentType(contentType)).
		Fields("id, name").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, wrapError("drive", op, err, fmt.Sprintf("file %q", name))
	}

	d.log.Debug().
		Str("file", name).
		Str("file_id", created.Id).
		Str("folder_id", folderID).
		Int64("size", info.Size()).
		Msg("Uploaded archive entry")

	return &Entry{ID: created.Id, Name: created.Name, FolderID: folderID, Size: info.Size()}, nil
}

// folderQuery builds the Drive search for a folder by name and parent.
func folderQuery(name, parentID string) string {
	return fmt.Sprintf("name = '%s' and '%s' in parents and mimeType = '%s' and trashed = false",
		escapeQuery(name), escapeQuery(parentID), FolderMimeType)
}

var queryEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func escapeQuery(s string) string {
	return queryEscaper.Replace(s)
}

// sniffContentType reads the first bytes of f and rewinds it.
func sniffContentType(f io.ReadSeeker) (string, error) {
	buf := make([]byte, 512)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(buf[:n]), nil
}
