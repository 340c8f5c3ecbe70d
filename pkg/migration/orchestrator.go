package migration

import "time"

// Handlers bundles the pluggable steps the Orchestrator drives a saga
// through. Each handler is pure on saga state except for emitting
// Evidence, per spec §4.8.
type Handlers struct {
	Compliance  func(*Saga) (evidenceRef string, comp []CompensationAction, err error)
	Attestation func(*Saga) (evidenceRef string, comp []CompensationAction, err error)
	Lock        func(*Saga) (evidenceRef string, comp []CompensationAction, err error)
	TransitStep func(*Saga) (evidenceRef string, comp []CompensationAction, err error)
	Verify      func(*Saga) (evidenceRef string, comp []CompensationAction, err error)
	Unlock      func(*Saga) (evidenceRef string, comp []CompensationAction, err error)
}

type step struct {
	target State
	reason string
	run    func(*Saga) (string, []CompensationAction, error)
}

// Orchestrator drives a Saga through the forward pipeline, stopping and
// propagating the error (with the saga left in whatever state AdvanceTo or
// the failing handler produced) on the first failure.
type Orchestrator struct {
	handlers Handlers
	now      func() time.Time
}

// NewOrchestrator builds an orchestrator bound to handlers. now defaults to
// time.Now if nil.
func NewOrchestrator(handlers Handlers, now func() time.Time) *Orchestrator {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Orchestrator{handlers: handlers, now: now}
}

func (o *Orchestrator) steps() []step {
	return []step{
		{ComplianceCheck, "compliance check", o.handlers.Compliance},
		{AttestationGathering, "attestation gathering", o.handlers.Attestation},
		{SourceLock, "source lock", o.handlers.Lock},
		{Transit, "transit", o.handlers.TransitStep},
		{DestinationVerification, "destination verification", o.handlers.Verify},
		{DestinationUnlock, "destination unlock", o.handlers.Unlock},
	}
}

// Drive advances the saga through every configured step in order, stopping
// at the first handler error. On success the saga reaches DESTINATION_UNLOCK;
// the caller is responsible for the final advance to COMPLETED once any
// post-unlock settlement has been confirmed.
func (o *Orchestrator) Drive(s *Saga) error {
	for _, st := range o.steps() {
		if st.run == nil {
			continue
		}
		evidenceRef, comp, err := st.run(s)
		if err != nil {
			return err
		}
		if advErr := s.AdvanceTo(st.target, st.reason, evidenceRef, o.now(), comp); advErr != nil {
			return advErr
		}
	}
	return nil
}
