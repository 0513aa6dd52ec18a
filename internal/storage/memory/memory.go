// Package memory provides an in-memory storage.Store used by tests and the
// "memory" data backend. It mirrors the sqlite implementation's semantics
// (uniqueness, cascade deletes, transactional rollback) without touching disk.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"dispensa/internal/core"
	"dispensa/internal/storage"
)

var _ storage.Store = (*Store)(nil)

type Store struct {
	mu       sync.Mutex
	people   map[string]core.Person
	cycles   map[string]core.Cycle
	txns     map[string]core.Transaction
	entries  map[string]core.ConsumptionEntry // keyed by cycleID+"/"+personID
	payments map[string]core.PersonalPayment

	// inTx suppresses locking on the transactional child view, which is
	// only ever touched by one goroutine.
	inTx bool
}

func New() *Store {
	return &Store{
		people:   make(map[string]core.Person),
		cycles:   make(map[string]core.Cycle),
		txns:     make(map[string]core.Transaction),
		entries:  make(map[string]core.ConsumptionEntry),
		payments: make(map[string]core.PersonalPayment),
	}
}

func (s *Store) lock() {
	if !s.inTx {
		s.mu.Lock()
	}
}

func (s *Store) unlock() {
	if !s.inTx {
		s.mu.Unlock()
	}
}

func entryKey(cycleID, personID string) string { return cycleID + "/" + personID }

// People

func (s *Store) CreatePerson(_ context.Context, p *core.Person) error {
	s.lock()
	defer s.unlock()
	for _, existing := range s.people {
		if existing.Name == p.Name {
			return core.Conflictf("person %q already exists", p.Name)
		}
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	s.people[p.ID] = *p
	return nil
}

func (s *Store) GetPerson(_ context.Context, id string) (*core.Person, error) {
	s.lock()
	defer s.unlock()
	p, ok := s.people[id]
	if !ok {
		return nil, core.NotFoundf("person %s", id)
	}
	return &p, nil
}

func (s *Store) ListPeople(_ context.Context, activeOnly bool) ([]core.Person, error) {
	s.lock()
	defer s.unlock()
	out := make([]core.Person, 0, len(s.people))
	for _, p := range s.people {
		if activeOnly && !p.Active {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) UpdatePerson(_ context.Context, p *core.Person) error {
	s.lock()
	defer s.unlock()
	if _, ok := s.people[p.ID]; !ok {
		return core.NotFoundf("person %s", p.ID)
	}
	for id, existing := range s.people {
		if id != p.ID && existing.Name == p.Name {
			return core.Conflictf("person %q already exists", p.Name)
		}
	}
	s.people[p.ID] = *p
	return nil
}

// Cycles

func (s *Store) CreateCycle(_ context.Context, c *core.Cycle) error {
	s.lock()
	defer s.unlock()
	for _, existing := range s.cycles {
		if existing.MonthKey == c.MonthKey {
			return core.Conflictf("cycle %s already exists", c.MonthKey)
		}
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	s.cycles[c.ID] = *c
	return nil
}

func (s *Store) GetCycle(_ context.Context, id string) (*core.Cycle, error) {
	s.lock()
	defer s.unlock()
	c, ok := s.cycles[id]
	if !ok {
		return nil, core.NotFoundf("cycle %s", id)
	}
	return &c, nil
}

func (s *Store) GetCycleByMonth(_ context.Context, monthKey string) (*core.Cycle, error) {
	s.lock()
	defer s.unlock()
	for _, c := range s.cycles {
		if c.MonthKey == monthKey {
			cc := c
			return &cc, nil
		}
	}
	return nil, core.NotFoundf("cycle %s", monthKey)
}

func (s *Store) ListCycles(_ context.Context) ([]core.Cycle, error) {
	s.lock()
	defer s.unlock()
	out := make([]core.Cycle, 0, len(s.cycles))
	for _, c := range s.cycles {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MonthKey > out[j].MonthKey })
	return out, nil
}

func (s *Store) SetCycleFinalized(_ context.Context, id string, finalized bool) error {
	s.lock()
	defer s.unlock()
	c, ok := s.cycles[id]
	if !ok {
		return core.NotFoundf("cycle %s", id)
	}
	c.Finalized = finalized
	s.cycles[id] = c
	return nil
}

func (s *Store) DeleteCycle(_ context.Context, id string) error {
	s.lock()
	defer s.unlock()
	if _, ok := s.cycles[id]; !ok {
		return core.NotFoundf("cycle %s", id)
	}
	delete(s.cycles, id)
	for k, t := range s.txns {
		if t.CycleID == id {
			delete(s.txns, k)
		}
	}
	for k, e := range s.entries {
		if e.CycleID == id {
			delete(s.entries, k)
		}
	}
	for k, p := range s.payments {
		if p.CycleID == id {
			delete(s.payments, k)
		}
	}
	return nil
}

// Transactions

func (s *Store) CreateTransaction(_ context.Context, t *core.Transaction) error {
	s.lock()
	defer s.unlock()
	if _, ok := s.cycles[t.CycleID]; !ok {
		return core.NotFoundf("cycle %s", t.CycleID)
	}
	if t.Fingerprint != "" {
		for _, existing := range s.txns {
			if existing.Fingerprint == t.Fingerprint {
				return core.Conflictf("fingerprint %q already present", t.Fingerprint)
			}
		}
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	s.txns[t.ID] = *t
	return nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (*core.Transaction, error) {
	s.lock()
	defer s.unlock()
	t, ok := s.txns[id]
	if !ok {
		return nil, core.NotFoundf("transaction %s", id)
	}
	return &t, nil
}

func (s *Store) ListTransactions(_ context.Context, cycleID string) ([]core.Transaction, error) {
	s.lock()
	defer s.unlock()
	var out []core.Transaction
	for _, t := range s.txns {
		if t.CycleID == cycleID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.Before(out[j].Date.Time)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) SetTransactionVerified(_ context.Context, id string, verified bool) error {
	s.lock()
	defer s.unlock()
	t, ok := s.txns[id]
	if !ok {
		return core.NotFoundf("transaction %s", id)
	}
	t.Verified = verified
	s.txns[id] = t
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.lock()
	defer s.unlock()
	if _, ok := s.txns[id]; !ok {
		return core.NotFoundf("transaction %s", id)
	}
	delete(s.txns, id)
	return nil
}

func (s *Store) FindTransactionByFingerprint(_ context.Context, fingerprint string) (*core.Transaction, error) {
	if fingerprint == "" {
		return nil, nil
	}
	s.lock()
	defer s.unlock()
	for _, t := range s.txns {
		if t.Fingerprint == fingerprint {
			tt := t
			return &tt, nil
		}
	}
	return nil, nil
}

// Consumption entries

func (s *Store) UpsertConsumptionEntry(_ context.Context, e *core.ConsumptionEntry) error {
	s.lock()
	defer s.unlock()
	if _, ok := s.cycles[e.CycleID]; !ok {
		return core.NotFoundf("cycle %s", e.CycleID)
	}
	if _, ok := s.people[e.PersonID]; !ok {
		return core.NotFoundf("person %s", e.PersonID)
	}
	key := entryKey(e.CycleID, e.PersonID)
	if existing, ok := s.entries[key]; ok {
		e.ID = existing.ID
	} else if e.ID == "" {
		e.ID = uuid.New().String()
	}
	s.entries[key] = *e
	return nil
}

func (s *Store) ListConsumptionEntries(_ context.Context, cycleID string) ([]core.ConsumptionEntry, error) {
	s.lock()
	defer s.unlock()
	var out []core.ConsumptionEntry
	for _, e := range s.entries {
		if e.CycleID == cycleID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PersonID < out[j].PersonID })
	return out, nil
}

// Personal payments

func (s *Store) CreatePayment(_ context.Context, p *core.PersonalPayment) error {
	s.lock()
	defer s.unlock()
	if _, ok := s.cycles[p.CycleID]; !ok {
		return core.NotFoundf("cycle %s", p.CycleID)
	}
	if _, ok := s.people[p.PersonID]; !ok {
		return core.NotFoundf("person %s", p.PersonID)
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	s.payments[p.ID] = *p
	return nil
}

func (s *Store) GetPayment(_ context.Context, id string) (*core.PersonalPayment, error) {
	s.lock()
	defer s.unlock()
	p, ok := s.payments[id]
	if !ok {
		return nil, core.NotFoundf("payment %s", id)
	}
	return &p, nil
}

func (s *Store) ListPayments(_ context.Context, cycleID string) ([]core.PersonalPayment, error) {
	s.lock()
	defer s.unlock()
	var out []core.PersonalPayment
	for _, p := range s.payments {
		if p.CycleID == cycleID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) DeletePayment(_ context.Context, id string) error {
	s.lock()
	defer s.unlock()
	if _, ok := s.payments[id]; !ok {
		return core.NotFoundf("payment %s", id)
	}
	delete(s.payments, id)
	return nil
}

// RunInTransaction runs fn against a deep copy and adopts the copy's state
// only when fn returns nil, matching the sqlite store's rollback semantics.
func (s *Store) RunInTransaction(_ context.Context, fn func(storage.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	child := &Store{
		people:   copyMap(s.people),
		cycles:   copyMap(s.cycles),
		txns:     copyMap(s.txns),
		entries:  copyMap(s.entries),
		payments: copyMap(s.payments),
		inTx:     true,
	}
	if err := fn(child); err != nil {
		return err
	}
	s.people = child.people
	s.cycles = child.cycles
	s.txns = child.txns
	s.entries = child.entries
	s.payments = child.payments
	return nil
}

func (s *Store) Close() error { return nil }

func copyMap[V any](in map[string]V) map[string]V {
	out := make(map[string]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
