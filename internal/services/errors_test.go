package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"tsencode/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "encoder", "drapto", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"encoder", "drapto", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarkerAndDetail(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{services.Wrap(services.ErrValidation, "manager", "push", "bad", nil), "validation"},
		{fmt.Errorf("lookup: %w", services.ErrNotFound), "not_found"},
		{services.Wrap(services.ErrExternalTool, "encoder", "run", "", errors.New("exit 1")), "external_tool"},
		{errors.New("plain"), "transient"},
	}
	for _, tc := range tests {
		if got := services.Kind(tc.err); got != tc.want {
			t.Fatalf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestIsCallerError(t *testing.T) {
	if !services.IsCallerError(services.Wrap(services.ErrValidation, "", "", "x", nil)) {
		t.Fatal("validation error should be a caller error")
	}
	if services.IsCallerError(services.Wrap(services.ErrTransient, "", "", "x", nil)) {
		t.Fatal("transient error should not be a caller error")
	}
}
