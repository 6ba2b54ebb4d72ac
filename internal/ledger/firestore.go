package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"

	"ocrarchive/internal/gcloud"
	"ocrarchive/internal/logger"
)

// record is the stored form of a Row.
type record struct {
	ReferenceNumber string    `firestore:"reference_number"`
	Rating          int64     `firestore:"rating"`
	ErrorNotes      string    `firestore:"error_notes"`
	RecordedAt      time.Time `firestore:"recorded_at,serverTimestamp"`
}

func recordFromRow(row Row) record {
	return record{
		ReferenceNumber: row.ReferenceNumber,
		Rating:          int64(row.Rating),
		ErrorNotes:      row.ErrorNotes,
	}
}

func (r record) row() Row {
	return Row{
		ReferenceNumber: r.ReferenceNumber,
		Rating:          int(r.Rating),
		ErrorNotes:      r.ErrorNotes,
		RecordedAt:      r.RecordedAt,
	}
}

// FirestoreLedger stores one document per row in a collection.
type FirestoreLedger struct {
	client     *firestore.Client
	collection string
	log        zerolog.Logger
}

// NewFirestoreLedger creates a Firestore client for projectID.
func NewFirestoreLedger(ctx context.Context, projectID, collection string) (*FirestoreLedger, error) {
	const op = "NewFirestoreLedger"

	if projectID == "" {
		return nil, wrapError("firestore", op, errors.New("projectID must be provided to create a firestore client"))
	}

	opts, err := gcloud.ClientOptions()
	if err != nil {
		return nil, wrapError("firestore", op, err)
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, wrapError("firestore", op, fmt.Errorf("failed to create Firestore client: %w", err))
	}

	return NewFirestoreLedgerWithClient(client, collection), nil
}

// NewFirestoreLedgerWithClient creates the ledger with an explicit client (for testing).
func NewFirestoreLedgerWithClient(client *firestore.Client, collection string) *FirestoreLedger {
	return &FirestoreLedger{
		client:     client,
		collection: collection,
		log:        logger.WithComponent("ledger-firestore"),
	}
}

// Append adds a new document; the server stamps recorded_at.
func (f *FirestoreLedger) Append(ctx context.Context, row Row) error {
	const op = "Append"

	docRef, _, err := f.client.Collection(f.collection).Add(ctx, recordFromRow(row))
	if err != nil {
		return wrapError("firestore", op, err)
	}

	f.log.Info().
		Str("reference_number", row.ReferenceNumber).
		Int("rating", row.Rating).
		Str("doc_id", docRef.ID).
		Msg("Appended ledger row")

	return nil
}

// List returns all rows, oldest first.
func (f *FirestoreLedger) List(ctx context.Context) ([]Row, error) {
	const op = "List"

	iter := f.client.Collection(f.collection).OrderBy("recorded_at", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var rows []Row
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, wrapError("firestore", op, err)
		}

		var rec record
		if err := doc.DataTo(&rec); err != nil {
			return nil, wrapError("firestore", op, fmt.Errorf("document %s: %w", doc.Ref.ID, err))
		}
		rows = append(rows, rec.row())
	}
	return rows, nil
}

// Close closes the Firestore client.
func (f *FirestoreLedger) Close() error {
	return f.client.Close()
}
