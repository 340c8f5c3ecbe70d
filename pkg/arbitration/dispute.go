package arbitration

import "time"

// Dispute opens the pipeline. Every downstream artifact references it by
// DisputeID.
type Dispute struct {
	DisputeID  string
	CorridorID string
	Claimant   string
	Respondent string
	Amount     Money
	Reason     string
	FiledAt    time.Time
}

// EvidenceRef points at supporting material (a VC, an attestation, a
// migration receipt) submitted in support of one side of a Dispute.
type EvidenceRef struct {
	EvidenceID  string
	DisputeID   string
	VCType      string
	Digest      string
	SubmittedBy string
	SubmittedAt time.Time
}

// RulingOutcome is the arbitrator's decision.
type RulingOutcome string

const (
	RulingForClaimant   RulingOutcome = "FOR_CLAIMANT"
	RulingForRespondent RulingOutcome = "FOR_RESPONDENT"
	RulingSplit         RulingOutcome = "SPLIT"
)

// Ruling is the signed decision artifact produced once evidence closes.
type Ruling struct {
	RulingID    string
	DisputeID   string
	Outcome     RulingOutcome
	ClaimantPct float64 // used only when Outcome == RulingSplit
	DecidedBy   string
	DecidedAt   time.Time
}

// EnforcementKind names how a Ruling is realized.
type EnforcementKind string

const (
	EnforcementScheduleTransition EnforcementKind = "SCHEDULE_TRANSITION"
	EnforcementReleaseEscrow      EnforcementKind = "RELEASE_ESCROW"
	EnforcementForfeitEscrow      EnforcementKind = "FORFEIT_ESCROW"
)

// EnforcementReceipt is the terminal artifact of the pipeline. It is
// written into the same corridor's receipt chain as a dedicated
// enforcement transition, so the corridor's hash chain carries the full
// dispute-to-enforcement history rather than treating arbitration as a
// side channel.
type EnforcementReceipt struct {
	ReceiptID  string
	DisputeID  string
	RulingID   string
	Kind       EnforcementKind
	CorridorID string
	EnforcedAt time.Time
}
