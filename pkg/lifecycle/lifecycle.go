// Package lifecycle implements the corridor lifecycle state machine of spec
// §4.5: a loaded transition-rule table, evidence-gated and finality-floored
// transitions, and an append-only history. It generalizes the teacher's
// governance module lifecycle (pkg/governance/lifecycle.go) from a single
// "activate module" action to a general evidence-gated FSM, and adopts its
// CEL-guard idiom (pkg/governance/policy_evaluator_cel.go) for optional
// per-transition guard expressions.
package lifecycle

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/momentum-sez/msez-core/pkg/msezerr"
)

// FinalityLevel is the strictly ordered 0..5 finality floor a transition
// rule may require evidence to have cleared.
type FinalityLevel int

const (
	FinalityProposed FinalityLevel = iota
	FinalityReceiptSigned
	FinalityCheckpointSigned
	FinalityWatcherQuorum
	FinalityL1Anchored
	FinalityLegallyRecognized
)

var finalityNames = map[string]FinalityLevel{
	"proposed":           FinalityProposed,
	"receipt_signed":     FinalityReceiptSigned,
	"checkpoint_signed":  FinalityCheckpointSigned,
	"watcher_quorum":     FinalityWatcherQuorum,
	"l1_anchored":        FinalityL1Anchored,
	"legally_recognized": FinalityLegallyRecognized,
}

// ParseFinalityLevel resolves a finality-level name to its ordinal.
func ParseFinalityLevel(name string) (FinalityLevel, error) {
	lv, ok := finalityNames[name]
	if !ok {
		return 0, msezerr.New(msezerr.KindValidation, "MSEZ/LIFECYCLE/UNKNOWN_FINALITY_LEVEL",
			fmt.Sprintf("unknown finality level %q", name))
	}
	return lv, nil
}

// EvidenceRef is a weak reference to a VC artifact carried as transition
// evidence; it names the VC type and the artifact digest resolving it.
type EvidenceRef struct {
	VCType       string
	DigestSHA256 string
	Finality     FinalityLevel
}

// TransitionRule is one edge of the loaded state-machine artifact
// (corridor.state-machine.v1.json in spec terms).
type TransitionRule struct {
	FromState              string
	ToState                string
	RequiresEvidenceVCType []string
	RequiresFinalityLevel  FinalityLevel
	// Guard, if non-empty, is a CEL boolean expression evaluated against the
	// transition input; a false or erroring guard blocks the transition.
	Guard string
}

func ruleKey(from, to string) string { return from + "->" + to }

// HistoryEntry records one applied transition for audit purposes.
type HistoryEntry struct {
	FromState string
	ToState   string
	AppliedAt string
	Evidence  []EvidenceRef
}

// Machine is a loaded corridor lifecycle state machine bound to one
// corridor instance.
type Machine struct {
	mu      sync.Mutex
	rules   map[string]TransitionRule
	state   string
	history []HistoryEntry

	celEnv   *cel.Env
	prgCache map[string]cel.Program
}

// NewMachine builds a machine from a transition-rule table and an initial
// state. celEnv may be nil if no rule uses a Guard expression.
func NewMachine(initialState string, rules []TransitionRule, celEnv *cel.Env) *Machine {
	m := &Machine{
		rules:    make(map[string]TransitionRule, len(rules)),
		state:    initialState,
		celEnv:   celEnv,
		prgCache: make(map[string]cel.Program),
	}
	for _, r := range rules {
		m.rules[ruleKey(r.FromState, r.ToState)] = r
	}
	return m
}

// State returns the machine's current state.
func (m *Machine) State() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// History returns a copy of the applied-transition log.
func (m *Machine) History() []HistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]HistoryEntry{}, m.history...)
}

// EvidenceResolver resolves one evidence reference to its VC type, the
// finality level it has cleared, and whether its proof verifies.
type EvidenceResolver func(ref EvidenceRef) (vcType string, finality FinalityLevel, proofOK bool, err error)

// Apply validates and applies a transition to targetState, per spec §4.5:
// look up the rule for (current, target), resolve and verify each evidence
// reference, enforce the required evidence VC types and finality floor, run
// an optional CEL guard, then advance state and append history.
func (m *Machine) Apply(targetState string, evidence []EvidenceRef, resolve EvidenceResolver, appliedAt string, guardInput map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rule, ok := m.rules[ruleKey(m.state, targetState)]
	if !ok {
		return msezerr.New(msezerr.KindState, msezerr.CodeIllegalTransition,
			fmt.Sprintf("no transition rule from %q to %q", m.state, targetState))
	}

	seenTypes := make(map[string]bool, len(evidence))
	for _, ref := range evidence {
		vcType, finality, proofOK, err := resolve(ref)
		if err != nil {
			return msezerr.Wrap(msezerr.KindMissing, msezerr.CodeNotFound, "failed to resolve evidence reference", err)
		}
		if !proofOK {
			return msezerr.New(msezerr.KindSecurity, "MSEZ/LIFECYCLE/EVIDENCE_PROOF_INVALID",
				fmt.Sprintf("evidence VC %s failed proof verification", ref.DigestSHA256))
		}
		if finality < rule.RequiresFinalityLevel {
			return msezerr.New(msezerr.KindState, "MSEZ/LIFECYCLE/FINALITY_FLOOR_NOT_MET",
				fmt.Sprintf("evidence %s cleared finality %d, rule requires %d", ref.DigestSHA256, finality, rule.RequiresFinalityLevel))
		}
		seenTypes[vcType] = true
	}
	for _, required := range rule.RequiresEvidenceVCType {
		if !seenTypes[required] {
			return msezerr.New(msezerr.KindValidation, msezerr.CodeMissingEvidence,
				"missing required evidence VC types")
		}
	}

	if rule.Guard != "" {
		allowed, err := m.evalGuard(rule.Guard, guardInput)
		if err != nil {
			return msezerr.Wrap(msezerr.KindValidation, "MSEZ/LIFECYCLE/GUARD_ERROR", "transition guard failed to evaluate", err)
		}
		if !allowed {
			return msezerr.New(msezerr.KindState, "MSEZ/LIFECYCLE/GUARD_DENIED",
				fmt.Sprintf("transition guard denied %s -> %s", m.state, targetState))
		}
	}

	m.history = append(m.history, HistoryEntry{
		FromState: m.state,
		ToState:   targetState,
		AppliedAt: appliedAt,
		Evidence:  append([]EvidenceRef{}, evidence...),
	})
	m.state = targetState
	return nil
}

func (m *Machine) evalGuard(expr string, input map[string]interface{}) (bool, error) {
	if m.celEnv == nil {
		return false, fmt.Errorf("no CEL environment configured for guarded transition")
	}
	prg, hit := m.prgCache[expr]
	if !hit {
		ast, issues := m.celEnv.Compile(expr)
		if issues != nil && issues.Err() != nil {
			return false, fmt.Errorf("compile guard: %w", issues.Err())
		}
		p, err := m.celEnv.Program(ast, cel.InterruptCheckFrequency(100), cel.CostLimit(10000))
		if err != nil {
			return false, fmt.Errorf("compile guard program: %w", err)
		}
		m.prgCache[expr] = p
		prg = p
	}
	out, _, err := prg.Eval(input)
	if err != nil {
		return false, fmt.Errorf("eval guard: %w", err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("guard %q did not evaluate to bool", expr)
	}
	return b, nil
}

// NewGuardEnv builds the standard CEL environment lifecycle guards evaluate
// against: a single dynamic "transition" input variable plus an int
// "timestamp", matching the teacher's policy_evaluator_cel.go environment
// shape.
func NewGuardEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("transition", cel.DynType),
		cel.Variable("timestamp", cel.IntType),
	)
}

// now is overridable in tests; production callers pass an explicit
// appliedAt timestamp to Apply rather than relying on wall time here.
var now = func() time.Time { return time.Now().UTC() }
