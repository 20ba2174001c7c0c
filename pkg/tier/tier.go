// Package tier maps a configured capability tier to the operations a client
// may see and invoke.
package tier

import (
	"go.uber.org/zap"

	"github.com/DeBrosOfficial/tidewave/pkg/logging"
)

// Tier is a capability level.
type Tier string

const (
	Readonly Tier = "readonly"
	Full     Tier = "full"
	Local    Tier = "local"
)

// All lists the known tiers.
var All = []Tier{Readonly, Full, Local}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	switch t {
	case Readonly, Full, Local:
		return true
	}
	return false
}

// Tag classifies an operation.
type Tag string

const (
	// TagReadonly marks introspection that never mutates state or runs code.
	TagReadonly Tag = "readonly"
	// TagExec marks operations that execute arbitrary commands.
	TagExec Tag = "exec"
	// TagFilesystem marks operations reading project files.
	TagFilesystem Tag = "filesystem"
)

// Operation is one entry in the static operation table.
type Operation struct {
	Name string
	Tags []Tag
}

// Has reports whether the operation carries tag.
func (o Operation) Has(tag Tag) bool {
	for _, t := range o.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Operation names known to the gateway.
const (
	OpGetLogs         = "get_logs"
	OpGetJobFailures  = "get_job_failures"
	OpGetSystemStats  = "get_system_stats"
	OpReadProjectFile = "read_project_file"
	OpShell           = "shell"
)

// Operations is the declared operation table.
var Operations = []Operation{
	{Name: OpGetLogs, Tags: []Tag{TagReadonly}},
	{Name: OpGetJobFailures, Tags: []Tag{TagReadonly}},
	{Name: OpGetSystemStats, Tags: []Tag{TagReadonly}},
	{Name: OpReadProjectFile, Tags: []Tag{TagFilesystem}},
	{Name: OpShell, Tags: []Tag{TagExec}},
}

// Filter returns the subset of declared operations available at tier t,
// preserving declaration order. An unrecognized tier yields no operations.
// logger may be nil.
func Filter(t Tier, declared []Operation, logger *logging.ColoredLogger) []Operation {
	switch t {
	case Full, Local:
		out := make([]Operation, len(declared))
		copy(out, declared)
		return out
	case Readonly:
		out := make([]Operation, 0, len(declared))
		for _, op := range declared {
			if op.Has(TagReadonly) {
				out = append(out, op)
			}
		}
		return out
	default:
		logging.OrNop(logger).ComponentWarn(logging.ComponentGateway,
			"unrecognized tier; exposing no operations", zap.String("tier", string(t)))
		return []Operation{}
	}
}

// Allows reports whether the named operation survives Filter at tier t.
func Allows(t Tier, declared []Operation, name string, logger *logging.ColoredLogger) bool {
	for _, op := range Filter(t, declared, logger) {
		if op.Name == name {
			return true
		}
	}
	return false
}

// Names returns the operation names in order.
func Names(ops []Operation) []string {
	names := make([]string, len(ops))
	for i, op := range ops {
		names[i] = op.Name
	}
	return names
}
