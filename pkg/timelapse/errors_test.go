package timelapse

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestIsKind(t *testing.T) {
	err := NewError(ErrCancelled)
	if !IsKind(err, ErrCancelled) {
		t.Error("expected IsKind to match the kind")
	}
	if IsKind(err, ErrNoFrames) {
		t.Error("IsKind must not match a different kind")
	}
	if IsKind(nil, ErrCancelled) {
		t.Error("IsKind(nil) must be false")
	}
	if IsKind(errors.New("plain"), ErrCancelled) {
		t.Error("IsKind must not match foreign errors")
	}
}

func TestIsKind_Wrapped(t *testing.T) {
	inner := WrapError(ErrWritingFailed, errors.New("pipe closed"))
	outer := fmt.Errorf("finish encoder session: %w", inner)
	if !IsKind(outer, ErrWritingFailed) {
		t.Error("expected IsKind to see through fmt.Errorf wrapping")
	}
	if !errors.Is(outer, inner) {
		t.Error("expected errors.Is to find the inner error")
	}
}

func TestError_Message(t *testing.T) {
	err := InvalidImageData(7, errors.New("bad header"))
	msg := err.Error()
	if !strings.Contains(msg, "7") {
		t.Errorf("message should name the source index: %q", msg)
	}
	if !strings.Contains(msg, "bad header") {
		t.Errorf("message should include the cause: %q", msg)
	}

	cfg := InvalidConfig("fps must be positive, got %v", -1.0)
	if !strings.Contains(cfg.Error(), "fps must be positive") {
		t.Errorf("unexpected message: %q", cfg.Error())
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := WrapError(ErrWritingFailed, cause)
	if !errors.Is(err, cause) {
		t.Error("expected Unwrap to expose the cause")
	}
	if NewError(ErrNoFrames).Unwrap() != nil {
		t.Error("expected nil cause for a bare error")
	}
}
