package command

import (
	"testing"

	"github.com/agentbridge/agentbridge/internal/model"
)

func TestValidatePayload(t *testing.T) {
	tests := []struct {
		name    string
		cmdType model.CommandType
		params  map[string]any
		wantErr bool
	}{
		{"health missing app_code", model.CommandHealth, map[string]any{"include_metrics": true}, true},
		{"health valid", model.CommandHealth, map[string]any{"app_code": "web", "include_metrics": false}, false},
		{"health bad app_code", model.CommandHealth, map[string]any{"app_code": "web!", "include_metrics": false}, true},
		{"restart missing app_code", model.CommandRestart, map[string]any{"force": true}, true},
		{"restart valid", model.CommandRestart, map[string]any{"app_code": "web", "force": true}, false},
		{"restart wrong type for force", model.CommandRestart, map[string]any{"app_code": "web", "force": "yes"}, true},
		{"logs valid", model.CommandLogs, map[string]any{
			"app_code": "web", "limit": float64(50), "streams": []any{"stdout"}, "redact": true,
		}, false},
		{"logs limit out of range", model.CommandLogs, map[string]any{
			"app_code": "web", "limit": float64(5000), "streams": []any{"stderr"}, "redact": true,
		}, true},
		{"logs empty streams", model.CommandLogs, map[string]any{
			"app_code": "web", "limit": float64(10), "streams": []any{}, "redact": true,
		}, true},
		{"logs invalid stream name", model.CommandLogs, map[string]any{
			"app_code": "web", "limit": float64(10), "streams": []any{"stdout", "combined"}, "redact": true,
		}, true},
		{"logs optional cursor accepted", model.CommandLogs, map[string]any{
			"app_code": "web", "cursor": "abc", "limit": float64(10), "streams": []any{"stdout", "stderr"}, "redact": false,
		}, false},
		{"unknown type rejected", model.CommandType("reboot_host"), nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePayload(tt.cmdType, tt.params)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePayload(%s, %v) error = %v, wantErr %v", tt.cmdType, tt.params, err, tt.wantErr)
			}
		})
	}
}

func TestValidateReport(t *testing.T) {
	tests := []struct {
		name    string
		cmdType model.CommandType
		report  map[string]any
		wantErr bool
	}{
		{"health valid", model.CommandHealth, map[string]any{
			"status": "ok", "container_state": "running", "last_heartbeat_at": "2026-01-01T00:00:00Z",
		}, false},
		{"health bad status enum", model.CommandHealth, map[string]any{
			"status": "green", "container_state": "running", "last_heartbeat_at": "2026-01-01T00:00:00Z",
		}, true},
		{"health missing heartbeat", model.CommandHealth, map[string]any{
			"status": "ok", "container_state": "running",
		}, true},
		{"restart valid", model.CommandRestart, map[string]any{
			"status": "ok", "container_state": "running",
		}, false},
		{"restart bad container_state", model.CommandRestart, map[string]any{
			"status": "ok", "container_state": "zombie",
		}, true},
		{"logs valid", model.CommandLogs, map[string]any{
			"cursor": "abc", "lines": []any{}, "truncated": false,
		}, false},
		{"logs missing lines", model.CommandLogs, map[string]any{
			"cursor": "abc", "truncated": false,
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateReport(tt.cmdType, tt.report)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateReport(%s, %v) error = %v, wantErr %v", tt.cmdType, tt.report, err, tt.wantErr)
			}
		})
	}
}
