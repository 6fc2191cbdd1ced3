package validation

import (
	"testing"
	"time"

	"github.com/vnykmshr/chanflow/pkg/common/errors"
)

func TestValidatePositive(t *testing.T) {
	tests := []struct {
		name      string
		value     int
		wantError bool
	}{
		{"positive value", 10, false},
		{"positive value 1", 1, false},
		{"zero value", 0, true},
		{"negative value", -1, true},
		{"large positive", 1000000, false},
		{"large negative", -1000000, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePositive("channel", "capacity", tt.value)

			if tt.wantError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.IsValidationError(err) {
					t.Errorf("expected ValidationError, got %T", err)
				}
			} else if err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestValidateNonNegative(t *testing.T) {
	tests := []struct {
		name      string
		value     int
		wantError bool
	}{
		{"zero", 0, false},
		{"positive", 5, false},
		{"negative", -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNonNegative("workerpool", "queueSize", tt.value)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidateNonNegative(%d) error = %v, wantError %v", tt.value, err, tt.wantError)
			}
		})
	}
}

func TestValidateNonNegativeDuration(t *testing.T) {
	tests := []struct {
		name      string
		value     time.Duration
		wantError bool
	}{
		{"zero disables", 0, false},
		{"positive", time.Second, false},
		{"one nanosecond", time.Nanosecond, false},
		{"negative", -time.Millisecond, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNonNegativeDuration("channel", "sendTimeout", tt.value)

			if tt.wantError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.IsValidationError(err) {
					t.Errorf("expected ValidationError, got %T", err)
				}
			} else if err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestValidateNotNil(t *testing.T) {
	tests := []struct {
		name      string
		value     interface{}
		wantError bool
	}{
		{"non-nil int", 123, false},
		{"non-nil struct", struct{}{}, false},
		{"non-nil func", func() {}, false},
		{"nil value", nil, true},
		{"nil pointer", (*int)(nil), false}, // typed nil is not nil interface
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNotNil("monitor", "source", tt.value)

			if tt.wantError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.IsValidationError(err) {
					t.Errorf("expected ValidationError, got %T", err)
				}
			} else if err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestValidateNotEmpty(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		wantError bool
	}{
		{"non-empty string", "jobs", false},
		{"whitespace", " ", false}, // Whitespace is not empty
		{"empty string", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNotEmpty("metrics", "name", tt.value)

			if tt.wantError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.IsValidationError(err) {
					t.Errorf("expected ValidationError, got %T", err)
				}
			} else if err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestValidationErrorDetails(t *testing.T) {
	err := ValidatePositive("channel", "capacity", -5)
	if err == nil {
		t.Fatal("expected error")
	}

	valErr, ok := err.(*errors.ValidationError)
	if !ok {
		t.Fatalf("could not cast %T to ValidationError", err)
	}

	if valErr.Module != "channel" {
		t.Errorf("Module = %q, want %q", valErr.Module, "channel")
	}
	if valErr.Field != "capacity" {
		t.Errorf("Field = %q, want %q", valErr.Field, "capacity")
	}
	if valErr.Value != -5 {
		t.Errorf("Value = %v, want %v", valErr.Value, -5)
	}
	if valErr.Hint != "value must be greater than 0" {
		t.Errorf("Hint = %q, want %q", valErr.Hint, "value must be greater than 0")
	}
}

func TestValidationErrorWrapping(t *testing.T) {
	testCases := []struct {
		name string
		err  error
	}{
		{"ValidatePositive", ValidatePositive("test", "field", -1)},
		{"ValidateNonNegativeDuration", ValidateNonNegativeDuration("test", "field", -time.Second)},
		{"ValidateNotNil", ValidateNotNil("test", "field", nil)},
		{"ValidateNotEmpty", ValidateNotEmpty("test", "field", "")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.err == nil {
				t.Fatal("expected error")
			}
			if !errors.IsValidationError(tc.err) {
				t.Error("error should be a ValidationError")
			}
			valErr, ok := tc.err.(*errors.ValidationError)
			if !ok {
				t.Fatalf("unexpected type %T", tc.err)
			}
			if wrapped := valErr.Unwrap(); wrapped != errors.ErrInvalidConfiguration {
				t.Errorf("should unwrap to ErrInvalidConfiguration, got %v", wrapped)
			}
		})
	}
}
