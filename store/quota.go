package store

import (
	"errors"
	"fmt"
)

// stepQuota counts reductions in one synchronous chain.
//
// Chains are resolved in a loop, so a reducer that keeps returning Reduce
// effects never overflows the stack; it spins instead. The quota turns that
// spin into a reported, terminated chain when WithMaxSteps is set.
type stepQuota struct {
	maxSteps int // 0 means unbounded
	current  int
}

func newStepQuota(maxSteps int) *stepQuota {
	return &stepQuota{maxSteps: maxSteps}
}

// check counts one step and fails once the limit is exceeded.
func (q *stepQuota) check(chainID string) error {
	q.current++
	if q.maxSteps > 0 && q.current > q.maxSteps {
		return &StepsExceededError{
			ChainID: chainID,
			Steps:   q.current,
			Limit:   q.maxSteps,
		}
	}
	return nil
}

// StepsExceededError describes a chain cut short by WithMaxSteps.
// It is reported through the EventQuotaExceeded event, never returned.
type StepsExceededError struct {
	ChainID string
	Steps   int
	Limit   int
}

func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("chain %s exceeded max steps: %d steps > %d limit",
		e.ChainID, e.Steps, e.Limit)
}

// IsStepsExceededError reports whether err is a StepsExceededError.
func IsStepsExceededError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}
