package deploy

import (
	"fmt"
	"strings"
)

// CyclicDependencyError reports a dependency cycle in the service graph.
// Services lists every service still caught in the cycle, sorted by name.
type CyclicDependencyError struct {
	Services []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("dependency cycle detected among services [%s]", strings.Join(e.Services, ", "))
}
