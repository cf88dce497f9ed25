package command

import (
	"regexp"

	"github.com/agentbridge/agentbridge/internal/apierr"
	"github.com/agentbridge/agentbridge/internal/capability"
	"github.com/agentbridge/agentbridge/internal/model"
)

// appCodePattern is spec.md §4.4's app_code format: [A-Za-z0-9_\-]{1,128}.
var appCodePattern = regexp.MustCompile(`^[A-Za-z0-9_\-]{1,128}$`)

var validStreams = map[string]bool{"stdout": true, "stderr": true}

// ValidatePayload checks params against the declared schema for cmdType in
// the capability catalog.
func ValidatePayload(cmdType model.CommandType, params map[string]any) error {
	schema, ok := capability.Catalog[cmdType]
	if !ok {
		return apierr.Newf(apierr.KindInvalidArgument, "unknown command type %q", cmdType)
	}

	for _, p := range schema.Params {
		v, present := params[p.Name]
		if !present {
			if p.Required {
				return apierr.Newf(apierr.KindInvalidArgument, "missing required parameter %q", p.Name)
			}
			continue
		}
		if err := checkKind(p.Name, p.Kind, v); err != nil {
			return err
		}
	}
	return nil
}

// ValidateReport checks a report payload against the fixed report schema
// for cmdType (spec.md §4.4), mirroring ValidatePayload on the report side.
// A violation is the caller's cue to reject the report with Conflict, since
// an unparseable terminal payload taints the command.
func ValidateReport(cmdType model.CommandType, report map[string]any) error {
	switch cmdType {
	case model.CommandHealth:
		if err := requireEnum(report, "status", "ok", "unhealthy", "unknown"); err != nil {
			return err
		}
		if err := requireEnum(report, "container_state", "running", "exited", "starting", "unknown"); err != nil {
			return err
		}
		return requireField(report, "last_heartbeat_at", "string")
	case model.CommandLogs:
		if err := requireField(report, "cursor", "string"); err != nil {
			return err
		}
		if _, present := report["lines"]; !present {
			return apierr.New(apierr.KindInvalidArgument, "missing required report field \"lines\"")
		}
		return requireField(report, "truncated", "bool")
	case model.CommandRestart:
		if err := requireEnum(report, "status", "ok", "failed"); err != nil {
			return err
		}
		return requireEnum(report, "container_state", "running", "failed", "unknown")
	default:
		return apierr.Newf(apierr.KindInvalidArgument, "unknown command type %q", cmdType)
	}
}

func requireField(report map[string]any, name, kind string) error {
	v, present := report[name]
	if !present {
		return apierr.Newf(apierr.KindInvalidArgument, "missing required report field %q", name)
	}
	return checkKind(name, kind, v)
}

func requireEnum(report map[string]any, name string, allowed ...string) error {
	v, present := report[name]
	if !present {
		return apierr.Newf(apierr.KindInvalidArgument, "missing required report field %q", name)
	}
	s, ok := v.(string)
	if !ok {
		return apierr.Newf(apierr.KindInvalidArgument, "report field %q must be a string", name)
	}
	for _, a := range allowed {
		if s == a {
			return nil
		}
	}
	return apierr.Newf(apierr.KindInvalidArgument, "report field %q has invalid value %q", name, s)
}

func checkKind(name, kind string, v any) error {
	switch kind {
	case "string":
		if _, ok := v.(string); !ok {
			return apierr.Newf(apierr.KindInvalidArgument, "parameter %q has wrong type, expected string", name)
		}
	case "number":
		switch v.(type) {
		case float64, int, int64:
		default:
			return apierr.Newf(apierr.KindInvalidArgument, "parameter %q has wrong type, expected number", name)
		}
	case "bool":
		if _, ok := v.(bool); !ok {
			return apierr.Newf(apierr.KindInvalidArgument, "parameter %q has wrong type, expected bool", name)
		}
	case capability.KindAppCode:
		s, ok := v.(string)
		if !ok || !appCodePattern.MatchString(s) {
			return apierr.Newf(apierr.KindInvalidArgument, "parameter %q must match [A-Za-z0-9_-]{1,128}", name)
		}
	case capability.KindLimit1To1000:
		n, ok := asInt(v)
		if !ok || n < 1 || n > 1000 {
			return apierr.Newf(apierr.KindInvalidArgument, "parameter %q must be an integer in [1, 1000]", name)
		}
	case capability.KindStreamsSet:
		items, ok := v.([]any)
		if !ok || len(items) == 0 {
			return apierr.Newf(apierr.KindInvalidArgument, "parameter %q must be a non-empty subset of [\"stdout\", \"stderr\"]", name)
		}
		seen := make(map[string]bool, len(items))
		for _, item := range items {
			s, ok := item.(string)
			if !ok || !validStreams[s] || seen[s] {
				return apierr.Newf(apierr.KindInvalidArgument, "parameter %q must be a non-empty subset of [\"stdout\", \"stderr\"]", name)
			}
			seen[s] = true
		}
	default:
		// unrecognized kind tags are accepted as-is, matching the catalog's
		// additive/table-driven extension point for future command types.
	}
	return nil
}

// asInt accepts both the float64 encoding/json produces and plain ints; a
// float64 with a fractional part is rejected.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	default:
		return 0, false
	}
}
