package cabfile

import (
	"errors"

	"github.com/pchchv/cabfile/fdi"
)

// outcome is how a visit ended.
type outcome int

const (
	completed outcome = iota
	stoppedEarly
	failed
)

// visitState is owned by one in-flight engine call.
// Faults raised while the engine is on the stack are captured here,
// the engine is told to abort, and result turns them back into Go errors
// once the engine has returned.
type visitState struct {
	fault  error
	opened map[int]bool // handles registered during the call
}

func newVisitState() *visitState {
	return &visitState{opened: make(map[int]bool)}
}

// capture keeps the first fault.
func (s *visitState) capture(err error) {
	if s.fault == nil {
		s.fault = err
	}
}

func (s *visitState) result(ok bool, erf fdi.ERF) (outcome, error) {
	switch {
	case s.fault != nil && errors.Is(s.fault, ErrStop):
		return stoppedEarly, nil
	case s.fault != nil:
		return failed, s.fault
	case !ok:
		return failed, &CabinetError{Code: erf.Oper, Detail: erf.Type}
	}
	return completed, nil
}
