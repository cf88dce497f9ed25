package apierr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfDefaultsToInternal(t *testing.T) {
	if got := KindOf(errors.New("plain error")); got != KindInternal {
		t.Errorf("KindOf(plain error) = %s, want %s", got, KindInternal)
	}
	if got := KindOf(New(KindNotFound, "missing")); got != KindNotFound {
		t.Errorf("KindOf(*Error) = %s, want %s", got, KindNotFound)
	}
}

func TestAsUnwrapsWrappedError(t *testing.T) {
	base := New(KindConflict, "already sent")
	wrapped := fmt.Errorf("handling request: %w", base)

	found, ok := As(wrapped)
	if !ok {
		t.Fatal("expected As to find the wrapped *Error")
	}
	if found.Kind != KindConflict {
		t.Errorf("found.Kind = %s, want %s", found.Kind, KindConflict)
	}
}

func TestWrapPreservesCauseInErrorString(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(KindInternal, "failed to persist", cause)
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
	if err.Error() == "failed to persist" {
		t.Error("expected Error() to include the cause, not just the message")
	}
}

func TestWithDetailsAttachesDetails(t *testing.T) {
	err := New(KindInvalidArgument, "bad field").WithDetails(map[string]any{"field": "priority"})
	if err.Details["field"] != "priority" {
		t.Errorf("expected details to carry field=priority, got %v", err.Details)
	}
}
