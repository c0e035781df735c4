package ledger

import (
	"github.com/friendcoin/friendcoin/internal/currency"
)

// SeedBalance is a test helper that creates the account if needed and sets its
// balance when using the in-memory store.
func SeedBalance(s Store, id string, amount currency.Amount) {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		acc := mem.state.accounts[id]
		acc.ID = id
		acc.Balance = amount
		mem.state.accounts[id] = acc
	}
}

// SeedCirculation sets the circulation counter of an in-memory store.
func SeedCirculation(s Store, total int64) {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.state.circulation = total
	}
}

// FailOn makes the next call to the named in-memory Tx write method return
// err, which lets tests break an atomic unit half-way through.
func FailOn(s Store, op string, err error) {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.faults[op] = err
	}
}

// CirculationChanges returns the audit rows of an in-memory store.
func CirculationChanges(s Store) []CirculationChange {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		return append([]CirculationChange(nil), mem.state.changes...)
	}
	return nil
}
