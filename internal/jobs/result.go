// Package jobs runs résumé analysis and retention cleanup.
package jobs

import (
	"fmt"
	"time"
)

// Outcome is the kind of a job Result.
type Outcome int

const (
	Success Outcome = iota
	RetryableFailure
	TerminalFailure
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case RetryableFailure:
		return "retry"
	case TerminalFailure:
		return "terminal"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result tells the queue runtime what to do with a message.
type Result struct {
	Outcome Outcome
	Err     error
	// NextAttempt and Delay are set for RetryableFailure.
	NextAttempt int
	Delay       time.Duration
}

// Done is the successful result.
func Done() Result { return Result{Outcome: Success} }

// Retry asks for redelivery as attempt nextAttempt after delay.
func Retry(err error, nextAttempt int, delay time.Duration) Result {
	return Result{Outcome: RetryableFailure, Err: err, NextAttempt: nextAttempt, Delay: delay}
}

// Terminal ends the job without redelivery.
func Terminal(err error) Result {
	return Result{Outcome: TerminalFailure, Err: err}
}
