package arbitration

import (
	"sync"
	"time"

	"github.com/momentum-sez/msez-core/pkg/msezerr"
)

// EscrowStatus is one state in the escrow FSM:
// pending -> funded -> {partially_released | fully_released | forfeited}.
type EscrowStatus string

const (
	EscrowPending           EscrowStatus = "pending"
	EscrowFunded            EscrowStatus = "funded"
	EscrowPartiallyReleased EscrowStatus = "partially_released"
	EscrowFullyReleased     EscrowStatus = "fully_released"
	EscrowForfeited         EscrowStatus = "forfeited"
)

// ReleaseCondition names why funds are being released or forfeited.
type ReleaseCondition string

const (
	RulingEnforced      ReleaseCondition = "RulingEnforced"
	AppealPeriodExpired ReleaseCondition = "AppealPeriodExpired"
	SettlementAgreed    ReleaseCondition = "SettlementAgreed"
	DisputeWithdrawn    ReleaseCondition = "DisputeWithdrawn"
	InstitutionOrder    ReleaseCondition = "InstitutionOrder"
)

// Transaction is one immutable entry in an escrow's append-only ledger.
type Transaction struct {
	At        time.Time
	FromState EscrowStatus
	ToState   EscrowStatus
	Amount    Money
	Condition ReleaseCondition
	Reason    string
}

var allowedEscrowMoves = map[EscrowStatus]map[EscrowStatus]bool{
	EscrowPending: {EscrowFunded: true},
	EscrowFunded: {
		EscrowPartiallyReleased: true,
		EscrowFullyReleased:     true,
		EscrowForfeited:         true,
	},
	EscrowPartiallyReleased: {
		EscrowPartiallyReleased: true,
		EscrowFullyReleased:     true,
		EscrowForfeited:         true,
	},
}

// Escrow holds funds for a Dispute pending resolution.
type Escrow struct {
	mu sync.Mutex

	EscrowID  string
	DisputeID string
	Total     Money
	Released  Money
	status    EscrowStatus
	txs       []Transaction
}

// NewEscrow opens a pending escrow for amount.
func NewEscrow(escrowID, disputeID string, amount Money) *Escrow {
	return &Escrow{
		EscrowID:  escrowID,
		DisputeID: disputeID,
		Total:     amount,
		Released:  ZeroMoney(amount.Currency),
		status:    EscrowPending,
	}
}

func (e *Escrow) Status() EscrowStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

func (e *Escrow) Transactions() []Transaction {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Transaction, len(e.txs))
	copy(out, e.txs)
	return out
}

// Fund moves a pending escrow to funded.
func (e *Escrow) Fund(at time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != EscrowPending {
		return msezerr.New(msezerr.KindState, msezerr.CodeIllegalTransition, "escrow must be pending to fund")
	}
	e.status = EscrowFunded
	e.txs = append(e.txs, Transaction{At: at, FromState: EscrowPending, ToState: EscrowFunded, Amount: e.Total})
	return nil
}

// Release moves funded/partially_released escrow toward (fully or
// partially) released, crediting amount against the total. amount equal to
// the remaining balance transitions to fully_released; anything less
// transitions to partially_released.
func (e *Escrow) Release(amount Money, condition ReleaseCondition, reason string, at time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !allowedEscrowMoves[e.status][EscrowPartiallyReleased] && !allowedEscrowMoves[e.status][EscrowFullyReleased] {
		return msezerr.New(msezerr.KindState, msezerr.CodeIllegalTransition, "escrow is not in a releasable state")
	}
	remaining, err := e.Total.Sub(e.Released)
	if err != nil {
		return err
	}
	cmp, err := amount.Cmp(remaining)
	if err != nil {
		return err
	}
	if cmp > 0 {
		return msezerr.New(msezerr.KindValidation, "MSEZ/ARBITRATION/OVER_RELEASE", "release amount exceeds remaining escrow balance")
	}
	newReleased, err := e.Released.Add(amount)
	if err != nil {
		return err
	}
	e.Released = newReleased

	from := e.status
	to := EscrowPartiallyReleased
	if cmp == 0 {
		to = EscrowFullyReleased
	}
	e.status = to
	e.txs = append(e.txs, Transaction{At: at, FromState: from, ToState: to, Amount: amount, Condition: condition, Reason: reason})
	return nil
}

// Forfeit moves a funded (or partially released) escrow to forfeited,
// terminally.
func (e *Escrow) Forfeit(condition ReleaseCondition, reason string, at time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !allowedEscrowMoves[e.status][EscrowForfeited] {
		return msezerr.New(msezerr.KindState, msezerr.CodeIllegalTransition, "escrow is not in a forfeitable state")
	}
	from := e.status
	e.status = EscrowForfeited
	remaining, err := e.Total.Sub(e.Released)
	if err != nil {
		return err
	}
	e.txs = append(e.txs, Transaction{At: at, FromState: from, ToState: EscrowForfeited, Amount: remaining, Condition: condition, Reason: reason})
	return nil
}
