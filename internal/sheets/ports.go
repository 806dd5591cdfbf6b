package sheets

import (
	"context"

	"meurenda/internal/core"
)

// Ports for outbound adapters.
type (
	// RecordExporter mirrors records into an external spreadsheet. The
	// spreadsheet is a copy for the owner's convenience; the store stays
	// authoritative.
	RecordExporter interface {
		// AppendRecord writes one row and returns a reference to it.
		AppendRecord(ctx context.Context, r core.Record) (rowRef string, err error)
		// DeleteRecord removes every row carrying the record ID. Missing rows are not an error.
		DeleteRecord(ctx context.Context, id string) error
		// DeleteOwner removes every row of a user.
		DeleteOwner(ctx context.Context, ownerID string) error
	}
)
