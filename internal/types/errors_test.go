package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	err := NewAppError(FaultServer, "upload rejected", nil)
	want := "server: upload rejected"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewAppError(FaultWifi, "connectivity unavailable", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}

	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatal("errors.As should match *AppError")
	}
	if appErr.Code != FaultWifi {
		t.Errorf("Code = %q, want %q", appErr.Code, FaultWifi)
	}
}

func TestAppError_UnwrapThroughWrapping(t *testing.T) {
	inner := NewAppError(FaultPump, "relay did not respond", nil)
	wrapped := fmt.Errorf("watering aborted: %w", inner)

	var appErr *AppError
	if !errors.As(wrapped, &appErr) {
		t.Fatal("errors.As should find AppError through fmt.Errorf wrapping")
	}
	if appErr.Code != FaultPump {
		t.Errorf("Code = %q, want %q", appErr.Code, FaultPump)
	}
}

func TestAppError_WithDetails(t *testing.T) {
	base := NewAppError(FaultSoil, "reading out of range", nil).
		WithDetails(map[string]any{"raw": 2048})
	merged := base.WithDetails(map[string]any{"channel": 3})

	if base.Details["channel"] != nil {
		t.Error("WithDetails should not mutate the original error")
	}
	if merged.Details["raw"] != 2048 || merged.Details["channel"] != 3 {
		t.Errorf("merged details = %v, want raw and channel present", merged.Details)
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(nil); got != FaultNone {
		t.Errorf("CodeOf(nil) = %q, want %q", got, FaultNone)
	}
	if got := CodeOf(errors.New("plain")); got != FaultNone {
		t.Errorf("CodeOf(plain error) = %q, want %q", got, FaultNone)
	}

	err := fmt.Errorf("send: %w", NewAppError(FaultServer, "status 503", nil))
	if got := CodeOf(err); got != FaultServer {
		t.Errorf("CodeOf(wrapped AppError) = %q, want %q", got, FaultServer)
	}
}
