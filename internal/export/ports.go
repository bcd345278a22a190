// Package export defines the outbound backup port. The only adapter
// today appends transactions to a Google spreadsheet.
package export

import (
	"context"

	"tally/internal/core"
)

// TransactionWriter appends a batch of transactions to the external
// backup. Implementations must be safe to retry with the same batch.
type TransactionWriter interface {
	Append(ctx context.Context, txs []core.Transaction) error
}
