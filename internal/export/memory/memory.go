package memory

import (
	"context"
	"sync"

	"dispensa/internal/billing"
	"dispensa/internal/core"
	ports "dispensa/internal/export"
)

// Writer is an in-memory bill sink for tests and the memory backend.
type Writer struct {
	mu    sync.Mutex
	bills []Exported
}

type Exported struct {
	Cycle core.Cycle
	Bill  billing.Bill
}

var _ ports.BillWriter = (*Writer)(nil)

func New() *Writer {
	return &Writer{}
}

func (w *Writer) AppendBill(_ context.Context, cycle core.Cycle, bill billing.Bill) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.bills = append(w.bills, Exported{Cycle: cycle, Bill: bill})
	return nil
}

// Bills returns a copy of everything appended so far.
func (w *Writer) Bills() []Exported {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Exported(nil), w.bills...)
}
