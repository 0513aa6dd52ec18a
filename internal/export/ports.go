package export

import (
	"context"

	"dispensa/internal/billing"
	"dispensa/internal/core"
)

// BillWriter is the outbound port for pushing a computed bill somewhere
// outside the ledger, one block of rows per cycle.
type BillWriter interface {
	AppendBill(ctx context.Context, cycle core.Cycle, bill billing.Bill) error
}
