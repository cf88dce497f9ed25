// Package capability holds the static command-type catalog of spec.md
// §4.4.1 (required capability tag, label, parameter schema per command
// type) and the filtering logic behind GET
// /api/v1/deployments/{deployment_hash}/capabilities.
package capability

import "github.com/agentbridge/agentbridge/internal/model"

// ParamSchema describes one accepted command parameter.
type ParamSchema struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
	Kind     string `json:"kind"`
}

// TypeSchema is the parameter table for one CommandType plus the
// capability tag an agent must advertise before it may be issued.
type TypeSchema struct {
	Type               model.CommandType `json:"type"`
	RequiredCapability string            `json:"requires"`
	Label              string            `json:"label"`
	Params             []ParamSchema     `json:"params,omitempty"`
}

// Parameter kinds beyond the JSON-primitive ones ("string", "number",
// "bool") that carry spec.md §4.4's extra validation rules.
const (
	KindAppCode      = "app_code"
	KindLimit1To1000 = "limit_1_1000"
	KindStreamsSet   = "streams_subset"
)

// Catalog is the static table of built-in command types. New types are
// additive entries here, not a closed type switch, matching the teacher's
// table-driven validTransitions style.
var Catalog = map[model.CommandType]TypeSchema{
	model.CommandHealth: {
		Type:               model.CommandHealth,
		RequiredCapability: "health_check",
		Label:              "Health probe",
		Params: []ParamSchema{
			{Name: "app_code", Required: true, Kind: KindAppCode},
			{Name: "include_metrics", Required: true, Kind: "bool"},
		},
	},
	model.CommandLogs: {
		Type:               model.CommandLogs,
		RequiredCapability: "log_retrieval",
		Label:              "Retrieve logs",
		Params: []ParamSchema{
			{Name: "app_code", Required: true, Kind: KindAppCode},
			{Name: "cursor", Required: false, Kind: "string"},
			{Name: "limit", Required: true, Kind: KindLimit1To1000},
			{Name: "streams", Required: true, Kind: KindStreamsSet},
			{Name: "redact", Required: true, Kind: "bool"},
		},
	},
	model.CommandRestart: {
		Type:               model.CommandRestart,
		RequiredCapability: "container_restart",
		Label:              "Restart container",
		Params: []ParamSchema{
			{Name: "app_code", Required: true, Kind: KindAppCode},
			{Name: "force", Required: true, Kind: "bool"},
		},
	},
}

// ForAgent returns the command types an agent advertising the given
// capability tags is eligible to receive.
func ForAgent(agentCapabilities []string) []TypeSchema {
	has := make(map[string]bool, len(agentCapabilities))
	for _, c := range agentCapabilities {
		has[c] = true
	}
	var out []TypeSchema
	for _, schema := range Catalog {
		if has[schema.RequiredCapability] {
			out = append(out, schema)
		}
	}
	return out
}
