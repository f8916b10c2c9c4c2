package topology

import "strings"

// MissingVariableError reports document variable references that have no
// default and no binding in the environment source. Load fails with this
// before anything is started.
type MissingVariableError struct {
	Variables []string
}

func (e *MissingVariableError) Error() string {
	if len(e.Variables) == 1 {
		return "missing required environment variable " + e.Variables[0]
	}
	return "missing required environment variables " + strings.Join(e.Variables, ", ")
}

// MalformedDocumentError reports a structural problem in the topology
// document or a violated topology invariant.
type MalformedDocumentError struct {
	Detail string
	Err    error
}

func (e *MalformedDocumentError) Error() string {
	if e.Err != nil {
		if e.Detail != "" {
			return "malformed topology: " + e.Detail + ": " + e.Err.Error()
		}
		return "malformed topology: " + e.Err.Error()
	}
	return "malformed topology: " + e.Detail
}

func (e *MalformedDocumentError) Unwrap() error { return e.Err }
