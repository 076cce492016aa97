package errors

import (
	"errors"
	"testing"
)

func TestNewError(t *testing.T) {
	err := NewError(11001, "test error")

	if err.Code != 11001 {
		t.Errorf("Expected code 11001, got %d", err.Code)
	}
	if err.Message != "test error" {
		t.Errorf("Expected message 'test error', got '%s'", err.Message)
	}
	if err.Err != nil {
		t.Error("Expected Err to be nil")
	}
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			err:      NewError(11001, "test error"),
			expected: "[11001] test error",
		},
		{
			name:     "with wrapped error",
			err:      NewError(11001, "test error").Wrap(errors.New("original error")),
			expected: "[11001] test error: original error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, got)
			}
		})
	}
}

func TestAppError_Wrap(t *testing.T) {
	originalErr := errors.New("original error")
	appErr := ErrConversationNotFound.Wrap(originalErr)

	if appErr.Code != ErrConversationNotFound.Code {
		t.Errorf("Expected code %d, got %d", ErrConversationNotFound.Code, appErr.Code)
	}
	if appErr.Message != ErrConversationNotFound.Message {
		t.Errorf("Expected message '%s', got '%s'", ErrConversationNotFound.Message, appErr.Message)
	}
	if appErr.Err != originalErr {
		t.Error("Expected wrapped error to be the original error")
	}
	if !errors.Is(appErr, originalErr) {
		t.Error("Expected errors.Is to match the original error")
	}
}

func TestIs(t *testing.T) {
	err := ErrPeerUnreachable.Wrap(errors.New("nats: timeout"))

	if !Is(err, ErrPeerUnreachable) {
		t.Error("Expected Is to match ErrPeerUnreachable")
	}
	if Is(err, ErrNodeUnknown) {
		t.Error("Expected Is not to match ErrNodeUnknown")
	}
	if Is(errors.New("plain"), ErrPeerUnreachable) {
		t.Error("Expected Is to be false for non-AppError")
	}
}

func TestGetCode(t *testing.T) {
	if got := GetCode(ErrNodeUnknown); got != CodeNodeUnknown {
		t.Errorf("Expected code %d, got %d", CodeNodeUnknown, got)
	}
	if got := GetCode(errors.New("plain")); got != CodeServerError {
		t.Errorf("Expected default code %d, got %d", CodeServerError, got)
	}
}
