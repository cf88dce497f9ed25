package httpapi

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/agentbridge/agentbridge/internal/apierr"
)

// statusForKind maps apierr.Kind to HTTP status per spec.md §7.
func statusForKind(k apierr.Kind) int {
	switch k {
	case apierr.KindInvalidArgument:
		return http.StatusBadRequest
	case apierr.KindUnauthenticated:
		return http.StatusUnauthorized
	case apierr.KindPermissionDenied:
		return http.StatusForbidden
	case apierr.KindNotFound:
		return http.StatusNotFound
	case apierr.KindConflict:
		return http.StatusConflict
	case apierr.KindGone:
		return http.StatusGone
	case apierr.KindRateLimited:
		return http.StatusTooManyRequests
	case apierr.KindServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// writeError maps err to a JSON {error:{code,message,details?}} envelope
// and the matching HTTP status, logging internal errors for operators.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	kind := apierr.KindOf(err)
	status := statusForKind(kind)

	if status == http.StatusInternalServerError {
		log.Error("internal error handling request", zap.Error(err))
	}

	body := errorBody{Code: string(kind), Message: err.Error()}
	if e, ok := apierr.As(err); ok {
		body.Message = e.Message
		body.Details = e.Details
	}

	w.Header().Set("Content-Type", "application/json")
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "1")
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{Error: body})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
