package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"ocrarchive/internal/archival"
	"ocrarchive/internal/archive"
)

func failedSideEffectsReceipt() *archival.Receipt {
	return &archival.Receipt{
		SubmissionID:    "sub-1",
		ReferenceNumber: "INV007",
		FolderID:        "folder-1",
		FolderCreated:   true,
		Entries: []archive.Entry{
			{Name: "INV007_extracted_text.txt"},
			{Name: "INV007.png"},
			{Name: "INV007_rating.txt"},
		},
		CleanupFailures: []string{"/tmp/INV007.png"},
		LedgerErr:       errors.New("sheets: 503 backend error"),
	}
}

func TestPrintReceiptHidesLedgerAndCleanupOutcome(t *testing.T) {
	for _, jsonOutput := range []bool{false, true} {
		var buf bytes.Buffer
		if err := printReceipt(&buf, failedSideEffectsReceipt(), jsonOutput); err != nil {
			t.Fatalf("printReceipt(json=%v): %v", jsonOutput, err)
		}
		out := buf.String()

		if !strings.Contains(out, "INV007_rating.txt") {
			t.Errorf("json=%v: archived files missing from %q", jsonOutput, out)
		}
		for _, hidden := range []string{"ledger", "Warning", "503", "/tmp/INV007.png", "cleanup"} {
			if strings.Contains(out, hidden) {
				t.Errorf("json=%v: output mentions %q: %q", jsonOutput, hidden, out)
			}
		}
	}
}
