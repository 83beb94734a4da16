package clearing

import (
	"errors"

	"go.uber.org/zap"

	"github.com/efreitasn/clearsim/internal/domain"
)

// Phase names one slot in the per-cycle execution order.
type Phase string

// The standard cycle: order submission, matching, distribution
// through the clearing markets, then unconditional cancellation of
// whatever is still open.
const (
	PhaseSubmitOrders   Phase = "submit-orders"
	PhaseProcessMarkets Phase = "process-markets"
	PhaseCancelOrders   Phase = "cancel-orders"
)

// DefaultPhases is the standard phase order.
var DefaultPhases = []Phase{PhaseSubmitOrders, PhaseProcessMarkets, PhaseCancelOrders}

// Schedule executes registered callbacks phase by phase, in the
// fixed phase order given at construction. It replaces scheduler
// coupling with an explicit registration interface: components only
// need "register a callback for phase X".
type Schedule struct {
	order     []Phase
	callbacks map[Phase][]func() error
	log       *zap.Logger
}

// NewSchedule creates a schedule over the given phase order, or
// DefaultPhases when none is given.
func NewSchedule(log *zap.Logger, phases ...Phase) *Schedule {
	if log == nil {
		log = zap.NewNop()
	}
	if len(phases) == 0 {
		phases = DefaultPhases
	}
	order := make([]Phase, len(phases))
	copy(order, phases)
	return &Schedule{
		order:     order,
		callbacks: make(map[Phase][]func() error),
		log:       log.Named("schedule"),
	}
}

// Register appends fn to the callbacks of phase. Registering against
// an unknown phase is an InvariantError: it means the caller and the
// schedule disagree about the cycle structure.
func (s *Schedule) Register(phase Phase, fn func() error) error {
	if !s.knows(phase) {
		return &domain.InvariantError{Message: "unknown phase " + string(phase)}
	}
	s.callbacks[phase] = append(s.callbacks[phase], fn)
	return nil
}

// RunCycle executes every callback of every phase, phases in
// construction order and callbacks in registration order. Fatal
// errors are collected and joined but never stop the cycle: each
// remaining callback still runs.
func (s *Schedule) RunCycle() error {
	var errs []error
	for _, phase := range s.order {
		for _, fn := range s.callbacks[phase] {
			if err := fn(); err != nil {
				s.log.Error("phase callback failed",
					zap.String("phase", string(phase)),
					zap.Error(err))
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (s *Schedule) knows(phase Phase) bool {
	for _, p := range s.order {
		if p == phase {
			return true
		}
	}
	return false
}
