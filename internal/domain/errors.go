package domain

import (
	"errors"
	"fmt"
	"strings"
)

var ErrNotFound = errors.New("not found")

// ParentConflict names a requested SKU together with the parent family
// it resolved to.
type ParentConflict struct {
	SKU    string
	Parent string
}

// MultipleParentsError is raised when one request batch spans more than
// one parent family. A purchase order describes a single family, so the
// caller has to split the request.
type MultipleParentsError struct {
	Conflicts []ParentConflict
}

func (e *MultipleParentsError) Error() string {
	parts := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		parts = append(parts, fmt.Sprintf("%s (parent %s)", c.SKU, c.Parent))
	}
	return "request spans multiple parent families: " + strings.Join(parts, ", ")
}

// NotOrderableError is raised when a parent SKU is requested directly.
// Only concrete child SKUs and standalone products are orderable.
type NotOrderableError struct {
	SKU string
}

func (e *NotOrderableError) Error() string {
	return fmt.Sprintf("sku %s is a parent entry and cannot be ordered directly", e.SKU)
}

// LayoutError reports a destination layout that cannot satisfy the
// editable/formula cell contract. It aborts only the affected group.
type LayoutError struct {
	Layout  string
	Reason  string
	Missing []string
}

func (e *LayoutError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("layout %s: %s: %s", e.Layout, e.Reason, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("layout %s: %s", e.Layout, e.Reason)
}
