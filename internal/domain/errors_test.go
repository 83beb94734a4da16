package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrInsufficientFunds,
		ErrDoubleEmployment,
		ErrUnknownTicker,
		ErrUnknownParty,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && errors.Is(a, b) {
				t.Errorf("sentinel %v should not match %v", a, b)
			}
		}
	}
}

func TestSentinelErrors_MatchThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("settling loan: %w", ErrInsufficientFunds)
	if !errors.Is(wrapped, ErrInsufficientFunds) {
		t.Error("wrapped sentinel should match via errors.Is")
	}
}

func TestOrderError_Message(t *testing.T) {
	err := &OrderError{Reason: "negative price"}
	want := "order rejected: negative price"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestAllocationError_Message(t *testing.T) {
	err := &AllocationError{Resource: "cash", Requested: 100, Allocated: 0}
	want := "allocation failed: cash"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"invariant error", &InvariantError{Message: "duplicate order"}, true},
		{"wrapped invariant error", fmt.Errorf("matching: %w", &InvariantError{Message: "x"}), true},
		{"sentinel", ErrInsufficientFunds, false},
		{"order error", &OrderError{Reason: "zero quantity"}, false},
		{"allocation error", &AllocationError{Resource: "labour"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFatal(tt.err); got != tt.want {
				t.Errorf("IsFatal(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
