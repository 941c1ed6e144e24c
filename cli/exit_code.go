// cli/exit_code.go
package cli

import (
	"errors"
	"strconv"

	"github.com/bctw/collector/models"
)

// Process exit statuses. A scheduler alerts differently on configuration
// problems than on a vendor outage, so they get their own status.
const (
	exitFailure     = 1
	exitFatalConfig = 2
)

// ExitError pins the exit status of a command failure. Errors without one
// are classified by ExitCode.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e == nil || e.Err == nil {
		return "exit status " + strconv.Itoa(e.code())
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *ExitError) code() int {
	if e == nil {
		return 0
	}
	return e.Code
}

func exitCodeError(code int, err error) error {
	if code <= 0 || err == nil {
		return err
	}
	return &ExitError{Code: code, Err: err}
}

// ExitCode maps err to the process exit status: an explicit ExitError code
// first, then 2 for any fatal configuration error in the chain, else 1.
func ExitCode(err error) int {
	var coded *ExitError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &coded) && coded.Code > 0:
		return coded.Code
	case errors.Is(err, models.ErrFatalConfig):
		return exitFatalConfig
	default:
		return exitFailure
	}
}
