package security

import (
	"time"

	"github.com/momentum-sez/msez-core/pkg/msezerr"
)

// TimeLock guards a value behind a wall-clock unlock time.
type TimeLock struct {
	UnlockAt time.Time
	value    interface{}
}

func NewTimeLock(unlockAt time.Time, value interface{}) *TimeLock {
	return &TimeLock{UnlockAt: unlockAt, value: value}
}

// Read returns the locked value, or a typed error if now is still before
// UnlockAt.
func (t *TimeLock) Read(now time.Time) (interface{}, error) {
	if now.Before(t.UnlockAt) {
		return nil, msezerr.New(msezerr.KindState, "MSEZ/SECURITY/LOCKED", "time lock has not reached its unlock time")
	}
	return t.value, nil
}
