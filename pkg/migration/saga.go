// Package migration implements the 11-state migration saga of spec §4.8:
// a forward pipeline with lateral terminals, an append-only transition
// history, a compensation stack unwound on abort or timeout, and an
// orchestrator driving the pipeline through pluggable handlers. It
// generalizes the teacher's lifecycle transition ledger
// (pkg/governance/lifecycle.go) to a multi-state saga, and borrows the
// deterministic step-replay idiom of pkg/replay/engine.go for the
// orchestrator's handler dispatch.
package migration

import (
	"sync"
	"time"

	"github.com/momentum-sez/msez-core/pkg/msezerr"
)

// State is one of the saga's 11 states: 8 forward-pipeline states plus 3
// lateral terminals (COMPENSATED, DISPUTED, CANCELLED); COMPLETED is the
// forward-pipeline terminal.
type State string

const (
	Initiated               State = "INITIATED"
	ComplianceCheck         State = "COMPLIANCE_CHECK"
	AttestationGathering    State = "ATTESTATION_GATHERING"
	SourceLock              State = "SOURCE_LOCK"
	Transit                 State = "TRANSIT"
	DestinationVerification State = "DESTINATION_VERIFICATION"
	DestinationUnlock       State = "DESTINATION_UNLOCK"
	Completed               State = "COMPLETED"
	Compensated             State = "COMPENSATED"
	Disputed                State = "DISPUTED"
	Cancelled               State = "CANCELLED"
)

var forwardOrder = []State{
	Initiated, ComplianceCheck, AttestationGathering, SourceLock,
	Transit, DestinationVerification, DestinationUnlock, Completed,
}

var terminalStates = map[State]bool{
	Completed:   true,
	Compensated: true,
	Disputed:    true,
	Cancelled:   true,
}

// allowed is the transition legality table of spec §8: each forward state
// may advance to its pipeline successor or divert to any lateral terminal.
var allowed = buildAllowed()

func buildAllowed() map[State]map[State]bool {
	m := make(map[State]map[State]bool, len(forwardOrder))
	laterals := []State{Compensated, Disputed, Cancelled}
	for i, s := range forwardOrder {
		m[s] = make(map[State]bool)
		if i+1 < len(forwardOrder) {
			m[s][forwardOrder[i+1]] = true
		}
		if !terminalStates[s] {
			for _, l := range laterals {
				m[s][l] = true
			}
		}
	}
	return m
}

// IsTerminal reports whether s admits no further transitions.
func IsTerminal(s State) bool { return terminalStates[s] }

// StateTransition is one append-only record in a saga's history.
type StateTransition struct {
	From        State
	To          State
	At          string
	Reason      string
	EvidenceRef string
}

// CompensationAction is one step the orchestrator must drive to undo a
// saga's forward progress on abort or timeout.
type CompensationAction struct {
	Step        string
	Description string
	Undo        func() error
}

// Saga is one migration-saga instance.
type Saga struct {
	mu            sync.Mutex
	ID            string
	state         State
	Deadline      *time.Time
	history       []StateTransition
	compensations []CompensationAction
}

// NewSaga constructs a saga in the INITIATED state with an optional
// deadline (nil means no timeout is enforced).
func NewSaga(id string, deadline *time.Time) *Saga {
	return &Saga{ID: id, state: Initiated, Deadline: deadline}
}

// State returns the saga's current state.
func (s *Saga) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// History returns a copy of the saga's transition log.
func (s *Saga) History() []StateTransition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]StateTransition{}, s.history...)
}

// Compensations returns a copy of the compensation stack.
func (s *Saga) Compensations() []CompensationAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CompensationAction{}, s.compensations...)
}

// checkDeadline implements spec §4.8 step 1: if now is past the saga's
// deadline and the saga is non-terminal, drive compensation, transition to
// COMPENSATED, and fail with a timeout error. Must be called with mu held.
func (s *Saga) checkDeadline(now time.Time, reason string) error {
	if s.Deadline == nil || terminalStates[s.state] {
		return nil
	}
	if !now.After(*s.Deadline) {
		return nil
	}
	s.driveCompensationsLocked(now, "deadline exceeded")
	from := s.state
	s.state = Compensated
	s.history = append(s.history, StateTransition{From: from, To: Compensated, At: now.Format(time.RFC3339), Reason: "deadline exceeded"})
	return msezerr.New(msezerr.KindTimeout, msezerr.CodeMigrationTimeout, "saga deadline exceeded")
}

// AdvanceTo validates and applies a transition to target, per spec §4.8:
// check the deadline first, validate the (state, target) pair against the
// legality table, append a semantic StateTransition record (the very first
// transition records from=INITIATED only if target is not INITIATED
// itself), advance state, and append any compensations the caller supplies
// for this step.
func (s *Saga) AdvanceTo(target State, reason, evidenceRef string, now time.Time, compensationsForStep []CompensationAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkDeadline(now, reason); err != nil {
		return err
	}

	if !allowed[s.state][target] {
		return msezerr.New(msezerr.KindState, msezerr.CodeIllegalTransition,
			"saga transition "+string(s.state)+" -> "+string(target)+" is not permitted")
	}

	from := s.state
	s.history = append(s.history, StateTransition{From: from, To: target, At: now.Format(time.RFC3339), Reason: reason, EvidenceRef: evidenceRef})
	s.state = target
	s.compensations = append(s.compensations, compensationsForStep...)
	return nil
}

// Cancel is only valid from a non-terminal state: it records the reason,
// drives every accumulated compensation in reverse order, and transitions
// to CANCELLED.
func (s *Saga) Cancel(reason string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if terminalStates[s.state] {
		return msezerr.New(msezerr.KindState, msezerr.CodeIllegalTransition, "cannot cancel a terminal saga")
	}

	s.driveCompensationsLocked(now, reason)
	from := s.state
	s.state = Cancelled
	s.history = append(s.history, StateTransition{From: from, To: Cancelled, At: now.Format(time.RFC3339), Reason: reason})
	return nil
}

// driveCompensationsLocked unwinds the compensation stack in reverse order.
// Errors from individual Undo calls are discarded so that every
// compensation is attempted regardless of earlier failures; they are not
// reported to the caller.
func (s *Saga) driveCompensationsLocked(now time.Time, reason string) {
	for i := len(s.compensations) - 1; i >= 0; i-- {
		c := s.compensations[i]
		if c.Undo != nil {
			_ = c.Undo()
		}
	}
	s.compensations = nil
}
