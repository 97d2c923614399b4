package errors

import (
	"errors"
	"testing"
)

func TestNewValidationError(t *testing.T) {
	tests := []struct {
		name    string
		message string
		err     error
	}{
		{
			name:    "validation error with underlying error",
			message: "Invalid input",
			err:     errors.New("field required"),
		},
		{
			name:    "validation error without underlying error",
			message: "Invalid input",
			err:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewValidationError(tt.message, tt.err)
			if err == nil {
				t.Fatal("NewValidationError() returned nil")
			}
			if err.Code != "VALIDATION_ERROR" {
				t.Errorf("Code = %v, want VALIDATION_ERROR", err.Code)
			}
			if err.Message != tt.message {
				t.Errorf("Message = %v, want %v", err.Message, tt.message)
			}
		})
	}
}

func TestNewInternalError(t *testing.T) {
	message := "Database connection failed"
	err := NewInternalError(message, nil)

	if err.Code != "INTERNAL_ERROR" {
		t.Errorf("Code = %v, want INTERNAL_ERROR", err.Code)
	}
	if err.Message != message {
		t.Errorf("Message = %v, want %v", err.Message, message)
	}
}

func TestNewNotFoundError(t *testing.T) {
	message := "Resource not found"
	err := NewNotFoundError(message, nil)

	if err.Code != "NOT_FOUND" {
		t.Errorf("Code = %v, want NOT_FOUND", err.Code)
	}
	if err.Message != message {
		t.Errorf("Message = %v, want %v", err.Message, message)
	}
}

func TestNewConflictError(t *testing.T) {
	message := "Unsent reminder jobs already exist"
	err := NewConflictError(message, nil)

	if err.Code != "CONFLICT" {
		t.Errorf("Code = %v, want CONFLICT", err.Code)
	}
	if err.Message != message {
		t.Errorf("Message = %v, want %v", err.Message, message)
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := NewInternalError("wrapper", inner)

	if !errors.Is(err, inner) {
		t.Error("errors.Is() should match the wrapped error")
	}
}

func TestAppErrorError(t *testing.T) {
	tests := []struct {
		name   string
		appErr *AppError
		want   string
	}{
		{
			name: "error with underlying error",
			appErr: &AppError{
				Code:    "TEST_ERROR",
				Message: "Test message",
				Err:     errors.New("underlying"),
			},
			want: "TEST_ERROR: Test message - underlying",
		},
		{
			name: "error without underlying error",
			appErr: &AppError{
				Code:    "TEST_ERROR",
				Message: "Test message",
				Err:     nil,
			},
			want: "TEST_ERROR: Test message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.appErr.Error()
			if got != tt.want {
				t.Errorf("Error() = %v, want %v", got, tt.want)
			}
		})
	}
}
