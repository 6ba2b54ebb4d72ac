package archival

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"testing"
	"time"

	"ocrarchive/internal/archive"
	"ocrarchive/internal/ledger"
	"ocrarchive/pkg/models"
)

type upload struct {
	folderID string
	name     string
	content  string
}

// fakeRepo keeps folders and uploads in memory. Upload reads the staged file
// so tests see exactly what would have been sent.
type fakeRepo struct {
	folders    []archive.Folder
	created    []string
	uploads    []upload
	findErr    error
	failUpload string
}

func (r *fakeRepo) FindFolders(_ context.Context, name string) ([]archive.Folder, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	var matches []archive.Folder
	for _, f := range r.folders {
		if f.Name == name {
			matches = append(matches, f)
		}
	}
	return matches, nil
}

func (r *fakeRepo) CreateFolder(_ context.Context, name string) (*archive.Folder, error) {
	f := archive.Folder{ID: fmt.Sprintf("folder-%d", len(r.folders)+1), Name: name}
	r.folders = append(r.folders, f)
	r.created = append(r.created, name)
	return &f, nil
}

func (r *fakeRepo) Upload(_ context.Context, folderID, name, localPath string) (*archive.Entry, error) {
	if name == r.failUpload {
		return nil, errUploadRejected
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return nil, err
	}
	r.uploads = append(r.uploads, upload{folderID: folderID, name: name, content: string(data)})
	return &archive.Entry{
		ID:       fmt.Sprintf("file-%d", len(r.uploads)),
		Name:     name,
		FolderID: folderID,
		Size:     int64(len(data)),
	}, nil
}

var errUploadRejected = errors.New("403: insufficient permissions")

type fakeLedger struct {
	rows []ledger.Row
	err  error
}

func (l *fakeLedger) Append(_ context.Context, row ledger.Row) error {
	if l.err != nil {
		return l.err
	}
	l.rows = append(l.rows, row)
	return nil
}

func newTestController(t *testing.T, repo archive.Repository, l ledger.Ledger) *Controller {
	t.Helper()
	c := NewController(repo, l, Config{
		StagingDir: t.TempDir(),
		Retry:      RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond},
	})
	c.sleep = func(time.Duration) {}
	return c
}

func newSubmission(t *testing.T, ref, text, notes string, rating int) *models.Submission {
	t.Helper()
	sub, err := models.NewSubmission(ref, text, notes, rating, []byte("\x89PNG\r\n\x1a\nimage-bytes"))
	if err != nil {
		t.Fatalf("NewSubmission: %v", err)
	}
	return sub
}

func uploadNames(uploads []upload) []string {
	names := make([]string, len(uploads))
	for i, u := range uploads {
		names[i] = u.name
	}
	return names
}

func TestArchiveEndToEnd(t *testing.T) {
	repo := &fakeRepo{}
	l := &fakeLedger{}
	c := newTestController(t, repo, l)

	sub := newSubmission(t, "INV007", "TOTAL 42.50", "", 4)
	receipt, err := c.Archive(context.Background(), sub)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}

	if !reflect.DeepEqual(repo.created, []string{"INV007"}) {
		t.Fatalf("created folders = %v, want [INV007]", repo.created)
	}
	if !receipt.FolderCreated || receipt.FolderID != "folder-1" {
		t.Errorf("unexpected folder on receipt: %+v", receipt)
	}

	want := []upload{
		{folderID: "folder-1", name: "INV007_extracted_text.txt", content: "TOTAL 42.50"},
		{folderID: "folder-1", name: "INV007.png", content: "\x89PNG\r\n\x1a\nimage-bytes"},
		{folderID: "folder-1", name: "INV007_rating.txt", content: "User Rating: 4/5"},
	}
	if !reflect.DeepEqual(repo.uploads, want) {
		t.Fatalf("uploads = %+v, want %+v", repo.uploads, want)
	}
	if len(receipt.Entries) != 3 {
		t.Errorf("receipt entries = %d, want 3", len(receipt.Entries))
	}

	if !reflect.DeepEqual(l.rows, []ledger.Row{{ReferenceNumber: "INV007", Rating: 4, ErrorNotes: ""}}) {
		t.Fatalf("ledger rows = %+v", l.rows)
	}
	if !receipt.LedgerRecorded || receipt.LedgerErr != nil {
		t.Errorf("ledger outcome = %v, %v", receipt.LedgerRecorded, receipt.LedgerErr)
	}

	staged, err := os.ReadDir(c.config.StagingDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(staged) != 0 {
		t.Errorf("staged files left behind: %v", staged)
	}
}

func TestArchiveTwiceReusesFolder(t *testing.T) {
	repo := &fakeRepo{}
	l := &fakeLedger{}
	c := newTestController(t, repo, l)
	ctx := context.Background()

	first, err := c.Archive(ctx, newSubmission(t, "INV007", "TOTAL 42.50", "", 4))
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Archive(ctx, newSubmission(t, "INV007", "TOTAL 42.50", "cents misread", 3))
	if err != nil {
		t.Fatal(err)
	}

	if len(repo.created) != 1 {
		t.Fatalf("expected one folder, created %v", repo.created)
	}
	if first.FolderID != second.FolderID || second.FolderCreated {
		t.Fatalf("second archive should reuse folder %s, got %s (created=%v)", first.FolderID, second.FolderID, second.FolderCreated)
	}
	if len(repo.uploads) != 6 {
		t.Fatalf("expected 6 uploads, got %d: %v", len(repo.uploads), uploadNames(repo.uploads))
	}
	if len(l.rows) != 2 {
		t.Fatalf("expected 2 ledger rows, got %d", len(l.rows))
	}
	if l.rows[1].ErrorNotes != "cents misread" || l.rows[1].Rating != 3 {
		t.Errorf("second row = %+v", l.rows[1])
	}
}

func TestArchiveUsesFirstMatchingFolder(t *testing.T) {
	repo := &fakeRepo{folders: []archive.Folder{
		{ID: "older", Name: "INV007"},
		{ID: "newer", Name: "INV007"},
	}}
	c := newTestController(t, repo, &fakeLedger{})

	receipt, err := c.Archive(context.Background(), newSubmission(t, "INV007", "x", "", 5))
	if err != nil {
		t.Fatal(err)
	}
	if receipt.FolderID != "older" || len(repo.created) != 0 {
		t.Fatalf("expected reuse of first match, got %s (created %v)", receipt.FolderID, repo.created)
	}
}

func TestArchiveCleanupFailureIsNotFatal(t *testing.T) {
	repo := &fakeRepo{}
	l := &fakeLedger{}
	c := newTestController(t, repo, l)

	attempts := make(map[string]int)
	c.remove = func(path string) error {
		attempts[path]++
		return &fs.PathError{Op: "remove", Path: path, Err: fs.ErrPermission}
	}
	var sleeps []time.Duration
	c.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }

	receipt, err := c.Archive(context.Background(), newSubmission(t, "INV007", "TOTAL 42.50", "", 4))
	if err != nil {
		t.Fatalf("cleanup failures must not fail archival: %v", err)
	}

	if len(repo.uploads) != 3 || len(l.rows) != 1 {
		t.Fatalf("uploads=%d rows=%d, want 3 and 1", len(repo.uploads), len(l.rows))
	}
	if len(attempts) != 3 {
		t.Fatalf("expected deletes for 3 staged files, got %v", attempts)
	}
	for path, n := range attempts {
		if n != 3 {
			t.Errorf("%s: %d delete attempts, want 3", path, n)
		}
	}
	if len(sleeps) != 6 {
		t.Errorf("expected 2 waits per file, got %d", len(sleeps))
	}
	for _, d := range sleeps {
		if d != time.Millisecond {
			t.Errorf("waited %v, want the configured delay", d)
		}
	}
	if len(receipt.CleanupFailures) != 3 {
		t.Errorf("cleanup failures = %v", receipt.CleanupFailures)
	}
}

func TestArchiveCleanupRecoversFromTransientLock(t *testing.T) {
	c := newTestController(t, &fakeRepo{}, &fakeLedger{})

	calls := 0
	c.remove = func(path string) error {
		calls++
		if calls%2 == 1 {
			return &fs.PathError{Op: "remove", Path: path, Err: fs.ErrPermission}
		}
		return os.Remove(path)
	}

	receipt, err := c.Archive(context.Background(), newSubmission(t, "INV008", "a", "", 2))
	if err != nil {
		t.Fatal(err)
	}
	if calls != 6 {
		t.Errorf("expected 2 attempts per file, got %d calls", calls)
	}
	if len(receipt.CleanupFailures) != 0 {
		t.Errorf("unexpected cleanup failures %v", receipt.CleanupFailures)
	}
}

func TestRemoveStagedDoesNotRetryOtherErrors(t *testing.T) {
	c := newTestController(t, &fakeRepo{}, &fakeLedger{})

	calls := 0
	c.remove = func(string) error {
		calls++
		return errors.New("input/output error")
	}
	if err := c.removeStaged(c.log, "x"); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}

	c.remove = func(path string) error {
		return &fs.PathError{Op: "remove", Path: path, Err: fs.ErrNotExist}
	}
	if err := c.removeStaged(c.log, "gone"); err != nil {
		t.Fatalf("missing file should count as deleted: %v", err)
	}
}

func TestArchiveLedgerFailureSuppressed(t *testing.T) {
	repo := &fakeRepo{}
	ledgerErr := errors.New("sheets: 503 backend unavailable")
	c := newTestController(t, repo, &fakeLedger{err: ledgerErr})

	receipt, err := c.Archive(context.Background(), newSubmission(t, "INV007", "TOTAL 42.50", "", 4))
	if err != nil {
		t.Fatalf("ledger failure must not fail archival: %v", err)
	}
	if len(repo.uploads) != 3 {
		t.Fatalf("expected 3 uploads, got %d", len(repo.uploads))
	}
	if receipt.LedgerRecorded || !errors.Is(receipt.LedgerErr, ledgerErr) {
		t.Fatalf("receipt ledger outcome = %v, %v", receipt.LedgerRecorded, receipt.LedgerErr)
	}
}

func TestArchiveUploadErrorPropagates(t *testing.T) {
	repo := &fakeRepo{failUpload: "INV007.png"}
	l := &fakeLedger{}
	c := newTestController(t, repo, l)

	_, err := c.Archive(context.Background(), newSubmission(t, "INV007", "TOTAL 42.50", "", 4))
	if !errors.Is(err, errUploadRejected) {
		t.Fatalf("expected upload error, got %v", err)
	}
	if !reflect.DeepEqual(uploadNames(repo.uploads), []string{"INV007_extracted_text.txt"}) {
		t.Errorf("uploads after failure = %v", uploadNames(repo.uploads))
	}
	if len(l.rows) != 0 {
		t.Errorf("ledger must not be written after a failed upload, got %v", l.rows)
	}

	staged, err := os.ReadDir(c.config.StagingDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(staged) != 0 {
		t.Errorf("staged file of failed upload not cleaned up: %v", staged)
	}
}

func TestArchiveFolderLookupErrorPropagates(t *testing.T) {
	lookupErr := errors.New("401: invalid credentials")
	repo := &fakeRepo{findErr: lookupErr}
	l := &fakeLedger{}
	c := newTestController(t, repo, l)

	_, err := c.Archive(context.Background(), newSubmission(t, "INV007", "TOTAL 42.50", "", 4))
	if !errors.Is(err, lookupErr) {
		t.Fatalf("expected lookup error, got %v", err)
	}
	if len(repo.uploads) != 0 || len(l.rows) != 0 {
		t.Fatalf("nothing should be written after a failed lookup")
	}
}

func TestArchiveNilSubmission(t *testing.T) {
	c := newTestController(t, &fakeRepo{}, nil)
	if _, err := c.Archive(context.Background(), nil); !errors.Is(err, models.ErrInvalidSubmission) {
		t.Fatalf("expected ErrInvalidSubmission, got %v", err)
	}
}

func TestDefaultRetryPolicy(t *testing.T) {
	if got := DefaultRetryPolicy(); got.MaxAttempts != 3 || got.Delay != time.Second {
		t.Fatalf("DefaultRetryPolicy() = %+v", got)
	}
}
