package supervisor

import (
	"fmt"
	"strings"
)

// ServiceUnavailableError reports that a service cannot serve and which
// dependents were withheld because of it.
type ServiceUnavailableError struct {
	Service string
	Blocked []string
	Cause   error
}

func (e *ServiceUnavailableError) Error() string {
	msg := fmt.Sprintf("service %q unavailable", e.Service)
	if len(e.Blocked) > 0 {
		msg += fmt.Sprintf(", blocking [%s]", strings.Join(e.Blocked, ", "))
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ServiceUnavailableError) Unwrap() error { return e.Cause }
