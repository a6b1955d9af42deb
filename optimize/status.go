// Package optimize contains the small numerical solvers used by the
// contingency table estimators: a pseudoinverse, a Levenberg-Marquardt
// root finder, a damped Newton minimizer and an active-set quadratic
// program.
package optimize

import (
	"fmt"

	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("optimize")

const (
	// TINY is the relative tolerance for convergence checks.
	TINY = 1e-10
	// SMALL is the relative step used for numerical derivatives.
	SMALL = 1.4901161193847656e-08
)

// Status is a solver termination status.
type Status int

// Termination statuses.
const (
	Optimal Status = iota
	MaxIterations
	Stalled
	Singular
	Infeasible
	Inaccurate
)

var statusNames = [...]string{
	Optimal:       "optimal",
	MaxIterations: "maximum number of iterations reached",
	Stalled:       "no further progress possible",
	Singular:      "singular system",
	Infeasible:    "infeasible starting point",
	Inaccurate:    "solution failed the final checks",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// StatusError is returned when a solver finishes with a status other
// than Optimal.
type StatusError struct {
	Solver string
	Status Status
	Iter   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %v after %d iterations", e.Solver, e.Status, e.Iter)
}
