// Package tui is a terminal review session for one image.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ocrarchive/internal/archival"
	"ocrarchive/internal/review"
	"ocrarchive/pkg/models"
)

type focus int

const (
	focusNotes focus = iota
	focusRating
	focusReference
	focusCount
)

type extractedMsg struct {
	text string
	err  error
}

type archivedMsg struct {
	receipt *archival.Receipt
}

type submitFailedMsg struct {
	err error
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF")).MarginBottom(1)
	labelStyle    = lipgloss.NewStyle().Bold(true)
	focusedStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F7B801"))
	textBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	ratingOnStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4CAF50"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	noticeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))
)

// Model is the bubbletea model of one review.
type Model struct {
	ctx     context.Context
	service *review.Service
	form    review.Form

	notes     textarea.Model
	reference textinput.Model
	focus     focus

	extracting bool
	extracted  bool
	submitting bool
	archived   string
	err        error
	width      int
}

// New creates a review of image. Text extraction starts with Init.
func New(ctx context.Context, service *review.Service, imageName string, image []byte) *Model {
	notes := textarea.New()
	notes.Placeholder = "Describe any mistakes in the extracted text"
	notes.ShowLineNumbers = false
	notes.SetHeight(4)

	reference := textinput.New()
	reference.Placeholder = "e.g. INV007"
	reference.CharLimit = models.MaxReferenceLength
	reference.Width = models.MaxReferenceLength + 2

	m := &Model{
		ctx:        ctx,
		service:    service,
		form:       review.Form{ImageName: imageName, Image: image},
		notes:      notes,
		reference:  reference,
		extracting: true,
	}
	m.notes.Focus()
	return m
}

// Init starts text extraction.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.extract())
}

func (m *Model) extract() tea.Cmd {
	name, data := m.form.ImageName, m.form.Image
	return func() tea.Msg {
		text, err := m.service.Extract(m.ctx, name, data)
		return extractedMsg{text: text, err: err}
	}
}

func (m *Model) submit() tea.Cmd {
	form := m.form
	return func() tea.Msg {
		receipt, err := m.service.Submit(m.ctx, &form)
		if err != nil {
			return submitFailedMsg{err: err}
		}
		return archivedMsg{receipt: receipt}
	}
}

// Update handles key presses and async results.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.notes.SetWidth(max(20, msg.Width-4))
		return m, nil

	case extractedMsg:
		m.extracting = false
		if msg.err != nil {
			m.err = fmt.Errorf("text extraction failed: %w", msg.err)
			return m, nil
		}
		m.form.ExtractedText = msg.text
		m.extracted = true
		return m, nil

	case archivedMsg:
		m.submitting = false
		m.archived = msg.receipt.ReferenceNumber
		m.err = nil
		m.form.Reset()
		m.notes.Reset()
		m.reference.Reset()
		return m, tea.Quit

	case submitFailedMsg:
		m.submitting = false
		m.err = fmt.Errorf("upload failed: %w", msg.err)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			// A started archival is never abandoned halfway
			if m.submitting {
				return m, nil
			}
			return m, tea.Quit
		case "tab":
			return m, m.setFocus((m.focus + 1) % focusCount)
		case "shift+tab":
			return m, m.setFocus((m.focus + focusCount - 1) % focusCount)
		case "ctrl+s":
			m.sync()
			if !m.canSubmit() {
				return m, nil
			}
			m.submitting = true
			m.err = nil
			return m, m.submit()
		}

		if m.focus == focusRating {
			m.handleRatingKey(msg.String())
			return m, nil
		}
	}

	var cmd tea.Cmd
	switch m.focus {
	case focusNotes:
		m.notes, cmd = m.notes.Update(msg)
	case focusReference:
		m.reference, cmd = m.reference.Update(msg)
	}
	m.sync()
	return m, cmd
}

func (m *Model) handleRatingKey(key string) {
	switch key {
	case "1", "2", "3", "4", "5":
		m.form.Rating = int(key[0] - '0')
	case "left", "h":
		if m.form.Rating > models.MinRating {
			m.form.Rating--
		}
	case "right", "l":
		if m.form.Rating < models.MaxRating {
			m.form.Rating++
		}
	case "backspace", "0":
		m.form.Rating = 0
	}
}

func (m *Model) setFocus(f focus) tea.Cmd {
	m.focus = f
	m.notes.Blur()
	m.reference.Blur()
	switch f {
	case focusNotes:
		return m.notes.Focus()
	case focusReference:
		return m.reference.Focus()
	}
	return nil
}

// sync copies the widget values into the form.
func (m *Model) sync() {
	m.form.ErrorNotes = m.notes.Value()
	m.form.ReferenceNumber = m.reference.Value()
}

// canSubmit gates ctrl+s on a finished extraction and a complete form.
func (m *Model) canSubmit() bool {
	return m.extracted && !m.submitting && m.form.CanSubmit()
}

// Archived returns the reference number of a completed archival, if any.
func (m *Model) Archived() string {
	return m.archived
}

// Err returns the last extraction or archival error.
func (m *Model) Err() error {
	return m.err
}

// View renders the review.
func (m *Model) View() string {
	if m.archived != "" {
		return noticeStyle.Render(fmt.Sprintf("Archived %s.", m.archived)) + "\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("OCR Review: " + m.form.ImageName))
	b.WriteString("\n")

	b.WriteString(labelStyle.Render("Extracted text"))
	b.WriteString("\n")
	switch {
	case m.extracting:
		b.WriteString(dimStyle.Render("Extracting..."))
	case m.form.ExtractedText == "":
		b.WriteString(textBoxStyle.Render(dimStyle.Render("(no text found)")))
	default:
		b.WriteString(textBoxStyle.Render(m.form.ExtractedText))
	}
	b.WriteString("\n\n")

	b.WriteString(m.label("Errors", focusNotes))
	b.WriteString("\n")
	b.WriteString(m.notes.View())
	b.WriteString("\n\n")

	b.WriteString(m.label("Rating", focusRating))
	b.WriteString("  ")
	for r := models.MinRating; r <= models.MaxRating; r++ {
		cell := fmt.Sprintf("[%d]", r)
		if r == m.form.Rating {
			b.WriteString(ratingOnStyle.Render(cell))
		} else {
			b.WriteString(dimStyle.Render(cell))
		}
		b.WriteString(" ")
	}
	b.WriteString("\n\n")

	b.WriteString(m.label("Reference number", focusReference))
	b.WriteString("  ")
	b.WriteString(m.reference.View())
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()))
		b.WriteString("\n\n")
	}

	submit := "ctrl+s submit"
	switch {
	case m.submitting:
		submit = "archiving..."
	case !m.extracted:
		submit = dimStyle.Render(submit + " (needs extracted text)")
	case !m.form.CanSubmit():
		submit = dimStyle.Render(submit + " (needs reference number and rating)")
	}
	b.WriteString(submit)
	b.WriteString(dimStyle.Render("  •  tab next field  •  1-5 rate  •  esc quit"))
	b.WriteString("\n")

	return b.String()
}

func (m *Model) label(text string, f focus) string {
	if m.focus == f {
		return focusedStyle.Render("> " + text)
	}
	return labelStyle.Render("  " + text)
}
