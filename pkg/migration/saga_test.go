package migration

import (
	"testing"
	"time"

	"github.com/momentum-sez/msez-core/pkg/msezerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaga_AdvanceThroughForwardPipeline(t *testing.T) {
	s := NewSaga("saga-1", nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.AdvanceTo(ComplianceCheck, "ok", "", now, nil))
	require.NoError(t, s.AdvanceTo(AttestationGathering, "ok", "", now, nil))
	assert.Equal(t, AttestationGathering, s.State())

	hist := s.History()
	require.Len(t, hist, 2)
	assert.Equal(t, Initiated, hist[0].From)
	assert.Equal(t, ComplianceCheck, hist[0].To)
}

func TestSaga_RejectsSkippingStates(t *testing.T) {
	s := NewSaga("saga-1", nil)
	now := time.Now()
	err := s.AdvanceTo(SourceLock, "skip", "", now, nil)
	require.Error(t, err)
	assert.Equal(t, msezerr.CodeIllegalTransition, msezerr.CodeOf(err))
}

func TestSaga_TimeoutTriggersCompensationAndCompensatedState(t *testing.T) {
	// S4: a saga constructed with a deadline one hour in the past, on first
	// advance_to(COMPLIANCE_CHECK), raises MigrationTimeout. state == COMPENSATED.
	past := time.Now().Add(-1 * time.Hour)
	s := NewSaga("saga-1", &past)

	undone := false
	s.compensations = []CompensationAction{{Step: "pre", Undo: func() error { undone = true; return nil }}}

	err := s.AdvanceTo(ComplianceCheck, "ok", "", time.Now(), nil)
	require.Error(t, err)
	assert.Equal(t, msezerr.CodeMigrationTimeout, msezerr.CodeOf(err))
	assert.Equal(t, Compensated, s.State())
	assert.True(t, undone)
}

func TestSaga_CancelFromNonTerminal(t *testing.T) {
	s := NewSaga("saga-1", nil)
	now := time.Now()
	require.NoError(t, s.AdvanceTo(ComplianceCheck, "ok", "", now, nil))

	require.NoError(t, s.Cancel("user requested", now))
	assert.Equal(t, Cancelled, s.State())

	err := s.Cancel("again", now)
	require.Error(t, err)
}

func TestSaga_MonotonicityAfterTerminal(t *testing.T) {
	s := NewSaga("saga-1", nil)
	now := time.Now()
	require.NoError(t, s.Cancel("early abort", now))
	assert.True(t, IsTerminal(s.State()))

	err := s.AdvanceTo(ComplianceCheck, "resurrect", "", now, nil)
	require.Error(t, err)
}

func TestOrchestrator_DrivesThroughAllHandlers(t *testing.T) {
	s := NewSaga("saga-1", nil)
	handlers := Handlers{
		Compliance:  func(*Saga) (string, []CompensationAction, error) { return "ev-1", nil, nil },
		Attestation: func(*Saga) (string, []CompensationAction, error) { return "ev-2", nil, nil },
		Lock:        func(*Saga) (string, []CompensationAction, error) { return "ev-3", nil, nil },
		TransitStep: func(*Saga) (string, []CompensationAction, error) { return "ev-4", nil, nil },
		Verify:      func(*Saga) (string, []CompensationAction, error) { return "ev-5", nil, nil },
		Unlock:      func(*Saga) (string, []CompensationAction, error) { return "ev-6", nil, nil },
	}
	orch := NewOrchestrator(handlers, func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) })

	require.NoError(t, orch.Drive(s))
	assert.Equal(t, DestinationUnlock, s.State())
	assert.Len(t, s.History(), 6)
}
