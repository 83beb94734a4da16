// Package clearing owns the cross-market orchestration: a registry of
// markets and participants by role, processed in a fixed order once
// per simulation cycle.
package clearing

import (
	"errors"

	"go.uber.org/zap"

	"github.com/efreitasn/clearsim/internal/domain"
	"github.com/efreitasn/clearsim/internal/market"
)

// Role names a participant capability class in the clearing house
// registry.
type Role string

const (
	RoleStockholder Role = "stockholder"
	RoleBorrower    Role = "borrower"
	RoleLender      Role = "lender"
	RoleBank        Role = "bank"
	RoleFirm        Role = "firm"
	RoleFund        Role = "fund"
)

// Roles lists every role in its fixed registry order.
var Roles = []Role{RoleStockholder, RoleBorrower, RoleLender, RoleBank, RoleFirm, RoleFund}

// roleSet is an insertion-ordered set of participants.
type roleSet struct {
	order   []string
	members map[string]domain.CashHolder
}

func newRoleSet() *roleSet {
	return &roleSet{members: make(map[string]domain.CashHolder)}
}

func (s *roleSet) add(h domain.CashHolder) {
	if _, ok := s.members[h.ID()]; ok {
		return
	}
	s.members[h.ID()] = h
	s.order = append(s.order, h.ID())
}

func (s *roleSet) remove(id string) bool {
	if _, ok := s.members[id]; !ok {
		return false
	}
	delete(s.members, id)
	for i, m := range s.order {
		if m == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// ClearingHouse registers markets and participants and triggers the
// processing of every market, in registration order, exactly once
// per cycle. The ordering is a correctness requirement: downstream
// consumers depend on deterministic cross-market sequencing.
type ClearingHouse struct {
	markets     []market.Market
	marketNames map[string]bool

	master map[string]domain.CashHolder
	roles  map[Role]*roleSet

	log *zap.Logger
}

// New creates an empty clearing house.
func New(log *zap.Logger) *ClearingHouse {
	if log == nil {
		log = zap.NewNop()
	}
	roles := make(map[Role]*roleSet, len(Roles))
	for _, r := range Roles {
		roles[r] = newRoleSet()
	}
	return &ClearingHouse{
		marketNames: make(map[string]bool),
		master:      make(map[string]domain.CashHolder),
		roles:       roles,
		log:         log.Named("clearinghouse"),
	}
}

// AddMarket registers m for per-cycle processing. Adding the same
// market name again is a no-op.
func (ch *ClearingHouse) AddMarket(m market.Market) {
	if ch.marketNames[m.Name()] {
		return
	}
	ch.marketNames[m.Name()] = true
	ch.markets = append(ch.markets, m)
}

// Markets returns the registered markets in registration order.
func (ch *ClearingHouse) Markets() []market.Market {
	out := make([]market.Market, len(ch.markets))
	copy(out, ch.markets)
	return out
}

// AddStockholder registers h under the stockholder role. Idempotent.
func (ch *ClearingHouse) AddStockholder(h domain.StockHolder) { ch.add(RoleStockholder, h) }

// AddBorrower registers h under the borrower role. Idempotent.
func (ch *ClearingHouse) AddBorrower(h domain.Borrower) { ch.add(RoleBorrower, h) }

// AddLender registers h under the lender role. Idempotent.
func (ch *ClearingHouse) AddLender(h domain.Lender) { ch.add(RoleLender, h) }

// AddBank registers h under the bank role. Idempotent.
func (ch *ClearingHouse) AddBank(h domain.CashHolder) { ch.add(RoleBank, h) }

// AddFirm registers h under the firm role. Idempotent.
func (ch *ClearingHouse) AddFirm(h domain.CashHolder) { ch.add(RoleFirm, h) }

// AddFund registers h under the fund role. Idempotent.
func (ch *ClearingHouse) AddFund(h domain.CashHolder) { ch.add(RoleFund, h) }

func (ch *ClearingHouse) add(role Role, h domain.CashHolder) {
	ch.roles[role].add(h)
	ch.master[h.ID()] = h
}

// Participant returns the registered participant with the given id.
func (ch *ClearingHouse) Participant(id string) (domain.CashHolder, bool) {
	h, ok := ch.master[id]
	return h, ok
}

// MembersOf returns the participants registered under role, in
// registration order.
func (ch *ClearingHouse) MembersOf(role Role) []domain.CashHolder {
	set, ok := ch.roles[role]
	if !ok {
		return nil
	}
	out := make([]domain.CashHolder, 0, len(set.order))
	for _, id := range set.order {
		out = append(out, set.members[id])
	}
	return out
}

// HasRole reports whether the participant id is registered under
// role.
func (ch *ClearingHouse) HasRole(id string, role Role) bool {
	set, ok := ch.roles[role]
	if !ok {
		return false
	}
	_, ok = set.members[id]
	return ok
}

// RemoveParticipant purges the participant from every role map and
// the master map atomically, returning whether it had been present.
func (ch *ClearingHouse) RemoveParticipant(id string) bool {
	if _, ok := ch.master[id]; !ok {
		return false
	}
	for _, r := range Roles {
		ch.roles[r].remove(id)
	}
	delete(ch.master, id)
	return true
}

// ParticipantCount returns the size of the master registry.
func (ch *ClearingHouse) ParticipantCount() int { return len(ch.master) }

// ProcessAllInstruments processes every registered market in
// registration order, exactly once. An InvariantError terminates
// only the offending market's cycle; the remaining markets still
// process, and the errors come back joined.
func (ch *ClearingHouse) ProcessAllInstruments() error {
	var errs []error
	for _, m := range ch.markets {
		if err := m.Process(); err != nil {
			ch.log.Error("market processing aborted",
				zap.String("market", m.Name()),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CancelAllOrders force-cancels every open order on every market, in
// registration order.
func (ch *ClearingHouse) CancelAllOrders() {
	for _, m := range ch.markets {
		m.CancelAllOrders()
	}
}
