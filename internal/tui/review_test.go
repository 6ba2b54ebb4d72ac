package tui

import (
	"context"
	"errors"
	"image"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"ocrarchive/internal/archival"
	"ocrarchive/internal/ocr"
	"ocrarchive/internal/review"
	"ocrarchive/pkg/models"
)

type fakeRecognizer struct{}

func (fakeRecognizer) ProcessImage(context.Context, image.Image) (string, error) {
	return "TOTAL 42.50", nil
}

func (fakeRecognizer) ProcessImageWithMetadata(context.Context, image.Image) (*ocr.OCRResult, error) {
	return &ocr.OCRResult{Text: "TOTAL 42.50"}, nil
}

type fakeArchiver struct {
	subs []*models.Submission
	err  error
}

func (f *fakeArchiver) Archive(_ context.Context, sub *models.Submission) (*archival.Receipt, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.subs = append(f.subs, sub)
	return &archival.Receipt{ReferenceNumber: sub.ReferenceNumber}, nil
}

func newTestModel(arch *fakeArchiver) *Model {
	m := New(context.Background(), review.NewService(fakeRecognizer{}, arch), "receipt.png", []byte("png-bytes"))
	m.Update(extractedMsg{text: "TOTAL 42.50"})
	return m
}

func press(t *testing.T, m *Model, key tea.KeyMsg) tea.Cmd {
	t.Helper()
	_, cmd := m.Update(key)
	return cmd
}

func typeText(t *testing.T, m *Model, text string) {
	t.Helper()
	for _, r := range text {
		press(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

var (
	keyTab   = tea.KeyMsg{Type: tea.KeyTab}
	keySave  = tea.KeyMsg{Type: tea.KeyCtrlS}
	keyRight = tea.KeyMsg{Type: tea.KeyRight}
)

func TestSubmitDisabledWithoutReference(t *testing.T) {
	arch := &fakeArchiver{}
	m := newTestModel(arch)

	press(t, m, keyTab) // rating
	typeText(t, m, "4")
	if m.form.Rating != 4 {
		t.Fatalf("rating = %d, want 4", m.form.Rating)
	}

	if cmd := press(t, m, keySave); cmd != nil {
		t.Fatal("ctrl+s must do nothing without a reference number")
	}
	if !strings.Contains(m.View(), "needs reference number and rating") {
		t.Error("view should show submit as unavailable")
	}
	if len(arch.subs) != 0 {
		t.Fatal("archiver called while submit disabled")
	}
}

func TestSubmitArchivesAndClears(t *testing.T) {
	arch := &fakeArchiver{}
	m := newTestModel(arch)

	typeText(t, m, "smudge")
	press(t, m, keyTab)
	typeText(t, m, "3")
	press(t, m, keyRight)
	press(t, m, keyTab)
	typeText(t, m, "INV007")

	cmd := press(t, m, keySave)
	if cmd == nil {
		t.Fatal("expected submit command")
	}
	if !m.submitting {
		t.Error("model should be submitting")
	}

	msg := cmd()
	if _, ok := msg.(archivedMsg); !ok {
		t.Fatalf("expected archivedMsg, got %T", msg)
	}
	m.Update(msg)

	if len(arch.subs) != 1 {
		t.Fatalf("expected one submission, got %d", len(arch.subs))
	}
	sub := arch.subs[0]
	if sub.ReferenceNumber != "INV007" || sub.Rating != 4 || sub.ErrorNotes != "smudge" || sub.ExtractedText != "TOTAL 42.50" {
		t.Errorf("unexpected submission %+v", sub)
	}

	if m.Archived() != "INV007" {
		t.Errorf("Archived() = %q", m.Archived())
	}
	if m.form.ReferenceNumber != "" || m.form.Rating != 0 || m.reference.Value() != "" || m.notes.Value() != "" {
		t.Errorf("state not cleared after archival: %+v", m.form)
	}
}

func TestReferenceLimitedToTenCharacters(t *testing.T) {
	m := newTestModel(&fakeArchiver{})
	press(t, m, keyTab)
	press(t, m, keyTab)
	typeText(t, m, "ABCDEFGHIJKLMN")
	if got := m.reference.Value(); got != "ABCDEFGHIJ" {
		t.Fatalf("reference = %q, want first 10 characters", got)
	}
}

func TestSubmitFailureKeepsInputs(t *testing.T) {
	arch := &fakeArchiver{err: errors.New("drive: 403")}
	m := newTestModel(arch)

	press(t, m, keyTab)
	typeText(t, m, "5")
	press(t, m, keyTab)
	typeText(t, m, "INV009")

	cmd := press(t, m, keySave)
	if cmd == nil {
		t.Fatal("expected submit command")
	}
	m.Update(cmd())

	if m.Err() == nil || !strings.Contains(m.View(), "upload failed") {
		t.Fatalf("failure not shown: %v", m.Err())
	}
	if m.form.ReferenceNumber != "INV009" || m.form.Rating != 5 {
		t.Errorf("inputs lost after failure: %+v", m.form)
	}
}

func TestQuitIgnoredWhileArchiving(t *testing.T) {
	m := newTestModel(&fakeArchiver{})
	press(t, m, keyTab)
	typeText(t, m, "4")
	press(t, m, keyTab)
	typeText(t, m, "INV007")

	if cmd := press(t, m, keySave); cmd == nil {
		t.Fatal("expected submit command")
	}
	for _, key := range []tea.KeyMsg{{Type: tea.KeyEsc}, {Type: tea.KeyCtrlC}} {
		if cmd := press(t, m, key); cmd != nil {
			t.Errorf("%s must not quit during archival", key)
		}
	}
	if !m.submitting {
		t.Error("archival should still be in progress")
	}
}

func TestSubmitDisabledAfterExtractionFailure(t *testing.T) {
	arch := &fakeArchiver{}
	m := New(context.Background(), review.NewService(fakeRecognizer{}, arch), "receipt.png", []byte("png-bytes"))
	m.Update(extractedMsg{err: errors.New("vision: unavailable")})

	press(t, m, keyTab)
	typeText(t, m, "4")
	press(t, m, keyTab)
	typeText(t, m, "INV007")

	if cmd := press(t, m, keySave); cmd != nil {
		t.Fatal("ctrl+s must do nothing without extracted text")
	}
	if !strings.Contains(m.View(), "needs extracted text") {
		t.Error("view should say why submit is unavailable")
	}
	if len(arch.subs) != 0 {
		t.Fatal("archiver called after a failed extraction")
	}
}
