// Package archive stores reviewed artifacts in a remote folder hierarchy.
//
// A Repository is addressed by human-readable names: folders are named after
// the reference number and live under one fixed parent container, and entries
// keep the display name of the local file they were uploaded from. Two
// backends are provided:
//   - DriveRepository: Google Drive folders under DRIVE_PARENT_FOLDER_ID
//   - GCSRepository: "directory" marker objects in a Cloud Storage bucket
package archive

import "context"

// Folder is a named container directly under the repository root.
type Folder struct {
	ID   string
	Name string
}

// Entry is one uploaded file.
type Entry struct {
	ID       string
	Name     string
	FolderID string
	Size     int64
}

// Repository is the remote store the archival workflow writes to.
type Repository interface {
	// FindFolders returns the non-trashed folders called name under the root,
	// in the order the backend reports them. No match is not an error.
	FindFolders(ctx context.Context, name string) ([]Folder, error)

	// CreateFolder creates a folder called name under the root.
	CreateFolder(ctx context.Context, name string) (*Folder, error)

	// Upload stores the file at localPath in folderID under the given name.
	// Uploading the same name twice keeps both entries.
	Upload(ctx context.Context, folderID, name, localPath string) (*Entry, error)
}
