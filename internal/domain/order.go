package domain

import "context"

type Role string

const (
	RoleMain      Role = "main"
	RoleAccessory Role = "accessory"
)

// OrderLineRequest is one caller-supplied (SKU, quantity) pair.
type OrderLineRequest struct {
	SKU      string
	Quantity int
}

// ResolvedLine is the unit of work handed to grouping. Supplier stays
// empty until the merge stage has consulted the template store.
type ResolvedLine struct {
	SKU      string
	Name     string
	Quantity int
	Role     Role
	Supplier string
}

type WarningCode string

const (
	WarnMappingNotFound  WarningCode = "mapping_not_found"
	WarnTemplateNotFound WarningCode = "template_not_found"
	WarnImageNotFound    WarningCode = "image_not_found"
	WarnFormulaCell      WarningCode = "formula_cell_skipped"
	WarnUnknownCell      WarningCode = "unknown_cell_skipped"
	WarnCellConflict     WarningCode = "cell_conflict"
)

// Warning is a recoverable condition. Failures are data here, not
// control flow: the pipeline keeps going and the caller gets the union
// of everything collected across stages.
type Warning struct {
	Code    WarningCode
	SKU     string
	Message string
}

// WriteResult describes one published artifact.
type WriteResult struct {
	Supplier string
	Path     string
	Rows     int
	Warnings []Warning
}

// GroupFailure records a supplier group whose write was aborted while
// the other groups proceeded.
type GroupFailure struct {
	Supplier string
	Err      error
}

// Report is the structured outcome of one pipeline run.
type Report struct {
	Warnings []Warning
	Outputs  []WriteResult
	Failed   []GroupFailure
}

func (r *Report) Warn(ws ...Warning) {
	r.Warnings = append(r.Warnings, ws...)
}

// ArtifactWriter renders one merged order document into a new artifact.
type ArtifactWriter interface {
	Write(ctx context.Context, m *MergedOrderTemplate) (WriteResult, error)
}
