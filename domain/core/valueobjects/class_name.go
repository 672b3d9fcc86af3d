package valueobjects

import (
	"fmt"
	"regexp"
)

var classNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{0,127}$`)

// ValidateClassName checks a node or edge class name. Class names are
// identifiers such as "BfPerson" or "BfEdge".
func ValidateClassName(className string) error {
	if !classNamePattern.MatchString(className) {
		return fmt.Errorf("invalid class name %q", className)
	}
	return nil
}

// DefaultEdgeClassName is the class of edges created without an explicit one
const DefaultEdgeClassName = "BfEdge"
