package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	// MaxReferenceLength is the longest reference number the review form accepts.
	MaxReferenceLength = 10

	// MinRating and MaxRating bound the reviewer's quality rating.
	MinRating = 1
	MaxRating = 5
)

// Submission is one completed review, ready to be archived.
// It is built once by NewSubmission and not modified afterwards.
type Submission struct {
	ID              string    // Unique id used to correlate log lines of one archival
	ReferenceNumber string    // Folder name and ledger key; not guaranteed unique
	ExtractedText   string    // Text as recognized and shown to the reviewer
	ErrorNotes      string    // Free-text notes on recognition mistakes
	Rating          int       // Quality rating, 1-5
	Image           []byte    // Original uploaded image bytes
	ImageName       string    // Name of the uploaded file (informational)
	CreatedAt       time.Time // When the review was completed
}

// NewSubmission validates the review inputs and returns an immutable Submission.
func NewSubmission(referenceNumber, extractedText, errorNotes string, rating int, image []byte) (*Submission, error) {
	ref := strings.TrimSpace(referenceNumber)
	if err := ValidateReferenceNumber(ref); err != nil {
		return nil, err
	}
	if err := ValidateRating(rating); err != nil {
		return nil, err
	}
	if len(image) == 0 {
		return nil, NewValidationError("image", len(image), "an image is required")
	}

	img := make([]byte, len(image))
	copy(img, image)

	return &Submission{
		ID:              uuid.NewString(),
		ReferenceNumber: ref,
		ExtractedText:   extractedText,
		ErrorNotes:      errorNotes,
		Rating:          rating,
		Image:           img,
		CreatedAt:       time.Now(),
	}, nil
}

// ValidateReferenceNumber checks that ref can be used as a folder and file name prefix.
func ValidateReferenceNumber(ref string) error {
	switch {
	case ref == "":
		return NewValidationError("reference_number", ref, "reference number is required")
	case utf8.RuneCountInString(ref) > MaxReferenceLength:
		return NewValidationError("reference_number", ref, fmt.Sprintf("must be at most %d characters", MaxReferenceLength))
	case strings.ContainsAny(ref, `/\`) || strings.Contains(ref, ".."):
		return NewValidationError("reference_number", ref, "must not contain path separators")
	}
	return nil
}

// ValidateRating checks that rating is within MinRating..MaxRating.
func ValidateRating(rating int) error {
	if rating < MinRating || rating > MaxRating {
		return NewValidationError("rating", rating, fmt.Sprintf("must be between %d and %d", MinRating, MaxRating))
	}
	return nil
}

// RatingText renders the rating the way it is stored in the rating file.
func RatingText(rating int) string {
	return fmt.Sprintf("User Rating: %d/%d", rating, MaxRating)
}
